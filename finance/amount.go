package finance

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/currency"
)

// ErrUnparsable reports a total line that does not hold an amount.
var ErrUnparsable = errors.New("finance: amount not parsable")

// Amount is an exact decimal amount. The zero value is 0.
type Amount struct {
	r *big.Rat
}

var decimalPattern = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+)?$`)

// ParseAmount reads a plain decimal number with a period separator.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if !decimalPattern.MatchString(s) {
		return Amount{}, fmt.Errorf("%w: %q", ErrUnparsable, s)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Amount{}, fmt.Errorf("%w: %q", ErrUnparsable, s)
	}
	return Amount{r: r}, nil
}

// MustAmount is ParseAmount for constants.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) rat() *big.Rat {
	if a.r == nil {
		return new(big.Rat)
	}
	return a.r
}

// Percent returns a × pct / 100 rounded to cents, halves away from zero.
func (a Amount) Percent(pct float64) Amount {
	p, ok := new(big.Rat).SetString(strconv.FormatFloat(pct, 'f', -1, 64))
	if !ok {
		return Amount{}
	}
	v := new(big.Rat).Mul(a.rat(), p)
	v.Quo(v, big.NewRat(100, 1))
	return Amount{r: v}.Round(2)
}

// Round rounds to the given number of decimals, halves away from zero.
func (a Amount) Round(places int) Amount {
	r, _ := new(big.Rat).SetString(a.rat().FloatString(places))
	return Amount{r: r}
}

// Format renders the amount with a fixed number of decimals and a period
// separator.
func (a Amount) Format(places int) string { return a.rat().FloatString(places) }

func (a Amount) String() string { return a.Format(2) }

func (a Amount) Cmp(o Amount) int { return a.rat().Cmp(o.rat()) }

func (a Amount) Equal(o Amount) bool { return a.Cmp(o) == 0 }

// Float64 is for logging only.
func (a Amount) Float64() float64 {
	f, _ := a.rat().Float64()
	return f
}

// MonetaryValue is an amount in a currency.
type MonetaryValue struct {
	Amount   Amount
	Currency currency.Unit
}

func (m MonetaryValue) String() string {
	return m.Amount.String() + " " + m.Currency.String()
}

var currencySymbols = map[string]currency.Unit{
	"€":   currency.EUR,
	"$":   currency.USD,
	"£":   currency.GBP,
	"CHF": currency.CHF,
}

// ParseMonetary normalizes a rendered amount such as "1 800,00 EUR",
// "1.234,56 €" or "€1,234.56". Spaces of every width are dropped, a
// trailing or leading currency marker selects the currency (fallback when
// there is none), and the right-most of comma and period is the decimal
// separator. A separator repeated with no other present groups thousands.
func ParseMonetary(token string, fallback currency.Unit) (MonetaryValue, error) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\u202f' || r == '\u00a0' {
			return -1
		}
		return r
	}, token)

	unit := fallback
	digits := strings.IndexFunc(s, func(r rune) bool { return unicode.IsDigit(r) || r == '-' || r == '+' })
	if digits < 0 {
		return MonetaryValue{}, fmt.Errorf("%w: %q", ErrUnparsable, token)
	}
	last := strings.LastIndexFunc(s, unicode.IsDigit)
	prefix, suffix := s[:digits], s[last+1:]
	if prefix != "" && suffix != "" {
		return MonetaryValue{}, fmt.Errorf("%w: %q", ErrUnparsable, token)
	}
	if marker := prefix + suffix; marker != "" {
		u, err := parseCurrency(marker)
		if err != nil {
			return MonetaryValue{}, fmt.Errorf("%w: %q: %v", ErrUnparsable, token, err)
		}
		unit = u
	}

	amount, err := ParseAmount(normalizeSeparators(s[digits : last+1]))
	if err != nil {
		return MonetaryValue{}, fmt.Errorf("%w: %q", ErrUnparsable, token)
	}
	return MonetaryValue{Amount: amount, Currency: unit}, nil
}

func parseCurrency(marker string) (currency.Unit, error) {
	if u, ok := currencySymbols[marker]; ok {
		return u, nil
	}
	return currency.ParseISO(strings.ToUpper(marker))
}

func normalizeSeparators(s string) string {
	comma, period := strings.LastIndexByte(s, ','), strings.LastIndexByte(s, '.')
	switch {
	case comma >= 0 && period >= 0:
		if comma > period {
			return strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
		}
		return strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case period >= 0 && strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}
