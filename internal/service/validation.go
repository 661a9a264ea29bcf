package service

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Violations maps an input field to the rule it broke
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Err returns nil when nothing was violated
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return &ValidationError{Violations: v}
}

func required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func positiveInt(field string, val int, v Violations) {
	if val <= 0 {
		v[field] = "must_be_positive"
	}
}

func nonNegativeInt(field string, val int, v Violations) {
	if val < 0 {
		v[field] = "must_not_be_negative"
	}
}

func positiveID(field string, val int64, v Violations) {
	if val <= 0 {
		v[field] = "required"
	}
}

// nonNegativeMoney also rejects sub-cent amounts; money columns hold two
// decimal places.
func nonNegativeMoney(field string, val decimal.Decimal, v Violations) {
	switch {
	case val.IsNegative():
		v[field] = "must_not_be_negative"
	case val.Exponent() < -2 && !val.Equal(val.Round(2)):
		v[field] = "too_many_decimals"
	}
}

func optionalNonNegativeMoney(field string, val *decimal.Decimal, v Violations) {
	if val != nil {
		nonNegativeMoney(field, *val, v)
	}
}
