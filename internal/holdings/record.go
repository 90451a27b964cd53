package holdings

import (
	"math"
	"regexp"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var maxCents = decimal.NewFromInt(math.MaxInt64)

var numberRe = regexp.MustCompile(`^[-+]?[0-9][0-9,]*(\.[0-9]+)?$`)

// Record is one extracted position.
type Record struct {
	Ticker string   `json:"ticker"`
	RawRow []string `json:"raw_row,omitempty"`
	Source Source   `json:"source"`

	// Units, Price and Value are only set for structured rows whose cells
	// could be read as numbers.
	Units decimal.NullDecimal `json:"units"`
	Price decimal.NullDecimal `json:"price"`
	Value string              `json:"value,omitempty"`
}

// fillNumbers reads units from the first bare number and price from the first
// currency-marked number in cells.
func (r *Record) fillNumbers(cells []string, currency string) {
	for _, c := range cells {
		priced := strings.ContainsAny(c, "$€£")
		d, ok := parseNumber(c)
		if !ok {
			continue
		}
		switch {
		case priced && !r.Price.Valid:
			r.Price = decimal.NewNullDecimal(d)
		case !priced && !r.Units.Valid:
			r.Units = decimal.NewNullDecimal(d)
		}
	}
	if r.Units.Valid && r.Price.Valid && currency != "" {
		cents := r.Units.Decimal.Mul(r.Price.Decimal).Shift(2).Round(0)
		// money amounts are int64 minor units; larger values are left unset.
		if cents.Abs().GreaterThanOrEqual(maxCents) {
			return
		}
		r.Value = money.New(cents.IntPart(), currency).Display()
	}
}

// parseNumber accepts plain and currency-marked numbers such as "1,234",
// "$45.20" or "A$45.20". Percentages are rejected.
func parseNumber(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasSuffix(s, "%") {
		return decimal.Decimal{}, false
	}
	s = strings.TrimLeft(s, "A$€£ ")
	if !numberRe.MatchString(s) {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// Merge combines structured and heuristic records. Order of first appearance
// is kept, structured records come first, and a ticker seen in structured is
// never repeated from heuristic.
func Merge(structured, heuristic []Record) []Record {
	out := make([]Record, 0, len(structured)+len(heuristic))
	seen := make(map[string]struct{}, cap(out))
	for _, group := range [][]Record{structured, heuristic} {
		for _, r := range group {
			if _, dup := seen[r.Ticker]; dup {
				continue
			}
			seen[r.Ticker] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}
