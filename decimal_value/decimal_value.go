// Package decimal_value provides a nullable decimal. Null stands for a value
// which is undefined (a guarded division by zero) or unavailable (missing
// market data), and propagates through arithmetic instead of becoming zero.
package decimal_value

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

var Zero = DecimalOpt{Decimal: decimal.Zero}
var Null = DecimalOpt{IsNull: true}

var hundred = decimal.NewFromInt(100)

type DecimalOpt struct {
	Decimal decimal.Decimal
	IsNull  bool
}

func New(value decimal.Decimal) DecimalOpt {
	return DecimalOpt{Decimal: value}
}

func NewFromInt(value int64) DecimalOpt {
	return DecimalOpt{Decimal: decimal.NewFromInt(value)}
}

func NewFromFloat(value float64) DecimalOpt {
	return DecimalOpt{Decimal: decimal.NewFromFloat(value)}
}

func NewFromString(value string) (DecimalOpt, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Null, err
	}

	return DecimalOpt{Decimal: d}, nil
}

func RequireFromString(value string) DecimalOpt {
	return DecimalOpt{Decimal: decimal.RequireFromString(value)}
}

// Ratio returns num/den, or Null when den is zero.
func Ratio(num, den decimal.Decimal) DecimalOpt {
	return New(num).DivD(den)
}

// Pct returns num/den*100, or Null when den is zero.
func Pct(num, den decimal.Decimal) DecimalOpt {
	return Ratio(num, den).MulD(hundred)
}

func (d DecimalOpt) Add(d2 DecimalOpt) DecimalOpt {
	if d.IsNull || d2.IsNull {
		return Null
	}
	return DecimalOpt{Decimal: d.Decimal.Add(d2.Decimal)}
}

func (d DecimalOpt) AddD(d2 decimal.Decimal) DecimalOpt {
	return d.Add(New(d2))
}

func (d DecimalOpt) Neg() DecimalOpt {
	if d.IsNull {
		return Null
	}
	return DecimalOpt{Decimal: d.Decimal.Neg()}
}

func (d DecimalOpt) Sub(d2 DecimalOpt) DecimalOpt {
	if d.IsNull || d2.IsNull {
		return Null
	}
	return DecimalOpt{Decimal: d.Decimal.Sub(d2.Decimal)}
}

func (d DecimalOpt) SubD(d2 decimal.Decimal) DecimalOpt {
	return d.Sub(New(d2))
}

func (d DecimalOpt) Mul(d2 DecimalOpt) DecimalOpt {
	if d.IsNull || d2.IsNull {
		return Null
	}
	return DecimalOpt{Decimal: d.Decimal.Mul(d2.Decimal)}
}

func (d DecimalOpt) MulD(d2 decimal.Decimal) DecimalOpt {
	return d.Mul(New(d2))
}

func (d DecimalOpt) Div(d2 DecimalOpt) DecimalOpt {
	if d.IsNull || d2.IsNull || d2.Decimal.IsZero() {
		return Null
	}
	return DecimalOpt{Decimal: d.Decimal.Div(d2.Decimal)}
}

func (d DecimalOpt) DivD(d2 decimal.Decimal) DecimalOpt {
	return d.Div(New(d2))
}

func (d DecimalOpt) Round(places int32) DecimalOpt {
	if d.IsNull {
		return Null
	}
	return DecimalOpt{Decimal: d.Decimal.Round(places)}
}

// Equal is true if both are null, or both are non-null and numerically equal.
func (d DecimalOpt) Equal(d2 DecimalOpt) bool {
	if d.IsNull || d2.IsNull {
		return d.IsNull == d2.IsNull
	}
	return d.Decimal.Equal(d2.Decimal)
}

// OrZero collapses Null into zero. Only use it where zero is the defined
// fallback for an undefined value.
func (d DecimalOpt) OrZero() decimal.Decimal {
	if d.IsNull {
		return decimal.Zero
	}
	return d.Decimal
}

func (d DecimalOpt) GreaterThan(d2 DecimalOpt) bool {
	if d.IsNull || d2.IsNull {
		return false
	}

	return d.Decimal.GreaterThan(d2.Decimal)
}

func (d DecimalOpt) LessThan(d2 DecimalOpt) bool {
	if d.IsNull || d2.IsNull {
		return false
	}

	return d.Decimal.LessThan(d2.Decimal)
}

func (d DecimalOpt) IsZero() bool {
	if d.IsNull {
		return false
	}

	return d.Decimal.IsZero()
}

func (d DecimalOpt) IsPositive() bool {
	if d.IsNull {
		return false
	}

	return d.Decimal.IsPositive()
}

func (d DecimalOpt) IsNegative() bool {
	if d.IsNull {
		return false
	}

	return d.Decimal.IsNegative()
}

func (d DecimalOpt) String() string {
	if d.IsNull {
		return "NaN"
	}

	return d.Decimal.String()
}

func (d DecimalOpt) StringFixed(places int32) string {
	if d.IsNull {
		return "NaN"
	}

	return d.Decimal.StringFixed(places)
}

// MarshalJSON writes null for Null, otherwise the decimal as a quoted string
// so no precision is lost.
func (d DecimalOpt) MarshalJSON() ([]byte, error) {
	if d.IsNull {
		return []byte("null"), nil
	}
	return d.Decimal.MarshalJSON()
}

func (d *DecimalOpt) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*d = Null
		return nil
	}
	var dec decimal.Decimal
	if err := json.Unmarshal(b, &dec); err != nil {
		return err
	}
	*d = New(dec)
	return nil
}
