package validation

import (
	"strings"
	"testing"
)

func TestIsValidAccountNum(t *testing.T) {
	valid := []string{"1234567890", "0000000000", "9999999999"}
	for _, num := range valid {
		if !IsValidAccountNum(num) {
			t.Errorf("IsValidAccountNum(%q) = false, want true", num)
		}
	}

	invalid := []string{"", "123456789", "12345678901", "123456789a", "12345 6789", "-123456789"}
	for _, num := range invalid {
		if IsValidAccountNum(num) {
			t.Errorf("IsValidAccountNum(%q) = true, want false", num)
		}
	}
}

func TestIsValidRoutingNum(t *testing.T) {
	if !IsValidRoutingNum("123456789") {
		t.Error("9-digit routing number rejected")
	}
	if IsValidRoutingNum("1234567890") {
		t.Error("10-digit routing number accepted")
	}
	if IsValidRoutingNum("12345678a") {
		t.Error("non-numeric routing number accepted")
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"  hello  ", 100, "hello"},
		{"with\x00null", 100, "withnull"},
		{strings.Repeat("a", 50), 10, strings.Repeat("a", 10)},
		{"", 100, ""},
	}
	for _, tt := range tests {
		if got := SanitizeString(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("SanitizeString(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	errs := Validate(
		Required("fromAccountNum", ""),
		ValidAccountNum("toAccountNum", "abc"),
		MaxLength("description", strings.Repeat("x", 600), MaxDescriptionLength),
	)
	if len(errs) != 3 {
		t.Fatalf("got %d errors, want 3", len(errs))
	}
	if errs[0].Field != "fromAccountNum" {
		t.Errorf("first error field = %q", errs[0].Field)
	}
	if !strings.Contains(errs.Error(), "fromAccountNum") {
		t.Errorf("Error() = %q, should name the first failed field", errs.Error())
	}
}

func TestValidatePassesCleanInput(t *testing.T) {
	errs := Validate(
		Required("fromAccountNum", "1234567890"),
		ValidAccountNum("fromAccountNum", "1234567890"),
		MaxLength("description", "groceries", MaxDescriptionLength),
	)
	if len(errs) != 0 {
		t.Fatalf("got %d errors, want 0: %v", len(errs), errs)
	}
}

func TestValidAccountNumSkipsEmpty(t *testing.T) {
	// Empty is Required's job, not the format check's.
	if err := ValidAccountNum("account", "")(); err != nil {
		t.Errorf("empty account flagged by format validator: %v", err)
	}
}

func TestValidationErrorsEmpty(t *testing.T) {
	var errs ValidationErrors
	if errs.Error() != "validation failed" {
		t.Errorf("Error() = %q", errs.Error())
	}
}
