package llm

import (
	"math"
	"testing"
)

func TestCost(t *testing.T) {
	tests := []struct {
		name  string
		model string
		usage Usage
		want  float64
	}{
		{
			name:  "gemini 1.5 flash",
			model: "gemini-1.5-flash",
			usage: Usage{InputTokens: 1000, OutputTokens: 1000},
			want:  0.00001875 + 0.000075,
		},
		{
			name:  "zero usage",
			model: "gemini-2.0-flash",
			usage: Usage{},
			want:  0,
		},
		{
			name:  "unknown model falls back to default pricing",
			model: "some-future-model",
			usage: Usage{InputTokens: 2000, OutputTokens: 500},
			want:  2*0.0001 + 0.5*0.0004,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cost(tt.model, tt.usage)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Cost() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUsageAdd(t *testing.T) {
	u := Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}
	u.Add(Usage{InputTokens: 3, OutputTokens: 2, TotalTokens: 5})

	if u.InputTokens != 13 || u.OutputTokens != 7 || u.TotalTokens != 20 {
		t.Errorf("unexpected accumulated usage: %+v", u)
	}
}
