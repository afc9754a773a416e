package bus

import (
	"fmt"
	"strings"

	"github.com/raglab/raglab/internal/config"
	"github.com/raglab/raglab/internal/pkg/errors"
)

// NewBus creates a new Bus instance based on the configuration.
func NewBus(cfg config.BusConfig) (Bus, error) {
	switch strings.ToLower(cfg.Type) {
	case "memory", "":
		return NewMemoryBus(), nil

	case "kafka":
		brokers := ParseKafkaBrokers(cfg.KafkaBrokers)
		if len(brokers) == 0 {
			return nil, errors.New(errors.CodeValidation, "kafka brokers not configured")
		}

		consumerGroup := cfg.KafkaGroup
		if consumerGroup == "" {
			consumerGroup = "raglab"
		}

		return NewKafkaBus(KafkaConfig{
			Brokers:       brokers,
			ConsumerGroup: consumerGroup,
			ClientID:      "raglab-bus",
		})

	default:
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("unknown bus type: %s", cfg.Type))
	}
}
