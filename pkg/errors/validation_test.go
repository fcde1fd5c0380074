package errors

import (
	"strings"
	"testing"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "node-1", false},
		{"valid uuid", "0b6b1b1e-6a4f-4b43-9a77-1f0c2f1b2b3c", false},
		{"valid unicode", "ノード", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 300), true},
		{"null byte", "foo\x00bar", true},
		{"newline", "foo\nbar", true},
		{"colon", "node:port", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID("node", tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidID) {
				t.Errorf("ValidateID(%q) code = %v, want %v", tt.input, GetCode(err), ErrCodeInvalidID)
			}
		})
	}
}

func TestValidateUniqueIDs(t *testing.T) {
	if err := ValidateUniqueIDs("edge", []string{"a", "b"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateUniqueIDs("edge", []string{"a", "a"}); err == nil {
		t.Error("expected duplicate error")
	}
	if err := ValidateUniqueIDs("edge", []string{"a", ""}); err == nil {
		t.Error("expected empty id error")
	}
}

func TestValidateFraction(t *testing.T) {
	for _, v := range []float64{0, 0.5, 1} {
		if err := ValidateFraction("positionOnEdge", v); err != nil {
			t.Errorf("ValidateFraction(%v) unexpected error: %v", v, err)
		}
	}
	for _, v := range []float64{-0.1, 1.01} {
		if err := ValidateFraction("positionOnEdge", v); err == nil {
			t.Errorf("ValidateFraction(%v) expected error", v)
		}
	}
}
