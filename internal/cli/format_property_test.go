package cli

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// parseCurrency strips formatting from FormatCurrency output for round-trips.
func parseCurrency(s string) float64 {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "$", "")
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// For any amount, FormatCurrency should:
// 1. Start with $ (or -$ for negative)
// 2. Have exactly 2 decimal places
// 3. Group the integer part in threes from the right
// 4. Preserve the numeric value when parsed back
func TestCurrencyFormattingProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("FormatCurrency produces valid grouped format", prop.ForAll(
		func(amount float64) bool {
			if math.IsNaN(amount) || math.IsInf(amount, 0) {
				return true
			}
			if math.Abs(amount) > 1e15 {
				return true
			}

			formatted := FormatCurrency(amount)

			if amount >= 0 {
				if !strings.HasPrefix(formatted, "$") {
					t.Logf("Expected $ prefix for %f, got %s", amount, formatted)
					return false
				}
			} else {
				if !strings.HasPrefix(formatted, "-$") {
					t.Logf("Expected -$ prefix for %f, got %s", amount, formatted)
					return false
				}
			}

			parts := strings.Split(formatted, ".")
			if len(parts) != 2 || len(parts[1]) != 2 {
				t.Logf("Expected 2 decimal places for %f, got %s", amount, formatted)
				return false
			}

			numPart := strings.TrimPrefix(parts[0], "-")
			numPart = strings.TrimPrefix(numPart, "$")

			groupPattern := regexp.MustCompile(`^\d{1,3}(,\d{3})*$`)
			if !groupPattern.MatchString(numPart) {
				t.Logf("Invalid grouping for %f: %s", amount, formatted)
				return false
			}

			return true
		},
		gen.Float64Range(-1e12, 1e12),
	))

	properties.Property("FormatCurrency preserves value", prop.ForAll(
		func(amount float64) bool {
			if math.IsNaN(amount) || math.IsInf(amount, 0) {
				return true
			}

			formatted := FormatCurrency(amount)
			parsed := parseCurrency(formatted)

			rounded := math.Round(amount*100) / 100
			if math.Abs(parsed-rounded) > 0.01 {
				t.Logf("Value not preserved: original=%f, formatted=%s, parsed=%f", amount, formatted, parsed)
				return false
			}
			return true
		},
		gen.Float64Range(-1e9, 1e9),
	))

	properties.TestingRun(t)
}

func TestFormatCurrencyExamples(t *testing.T) {
	cases := map[float64]string{
		0:          "$0.00",
		999.5:      "$999.50",
		1000:       "$1,000.00",
		1234567.89: "$1,234,567.89",
		-2500:      "-$2,500.00",
	}
	for amount, want := range cases {
		if got := FormatCurrency(amount); got != want {
			t.Errorf("FormatCurrency(%v) = %q, want %q", amount, got, want)
		}
	}
}
