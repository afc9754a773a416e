package security

import (
	"strings"
	"testing"
)

func TestValidateQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{"valid simple", "how long is parental leave?", false},
		{"valid unicode", "搜索 query", false},
		{"valid long", strings.Repeat("a", 1000), false},
		{"valid at max", strings.Repeat("a", MaxQueryLength), false},
		{"empty", "", true},
		{"whitespace only", "   \t  ", true},
		{"too long", strings.Repeat("a", MaxQueryLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuery(tt.query)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateQuery() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDocumentName(t *testing.T) {
	tests := []struct {
		name     string
		document string
		wantErr  bool
	}{
		{"valid simple", "handbook.md", false},
		{"valid with spaces", "employee handbook 2026.pdf", false},
		{"valid unicode", "社内規定.md", false},
		{"empty", "", true},
		{"whitespace only", "  ", true},
		{"null byte", "doc\x00.md", true},
		{"newline", "doc\n.md", true},
		{"too long", strings.Repeat("a", MaxDocumentNameLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocumentName(tt.document)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDocumentName(%q) error = %v, wantErr %v", tt.document, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTopK(t *testing.T) {
	tests := []struct {
		name    string
		topK    int
		wantErr bool
	}{
		{"valid min", 1, false},
		{"valid default", 5, false},
		{"valid max", 100, false},
		{"zero", 0, true},
		{"negative", -1, true},
		{"too large", 101, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTopK(tt.topK)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTopK(%d) error = %v, wantErr %v", tt.topK, err, tt.wantErr)
			}
		})
	}
}

func TestValidateDocumentContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"valid small", "hello world", false},
		{"valid unicode", "hello 世界 🌍", false},
		{"invalid utf8", "hello\xff\xfeworld", true},
		{"too large", strings.Repeat("a", MaxDocumentSize+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocumentContent(tt.content)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDocumentContent() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{
		Field:      "query",
		Value:      "test",
		Constraint: "too short",
	}
	if !strings.Contains(err.Error(), "query") {
		t.Error("Error() should contain field name")
	}
	if !strings.Contains(err.Error(), "test") {
		t.Error("Error() should contain value")
	}

	errNoValue := &ValidationError{
		Field:      "query",
		Constraint: "required",
	}
	if !strings.Contains(errNoValue.Error(), "query") {
		t.Error("Error() should contain field name")
	}
}
