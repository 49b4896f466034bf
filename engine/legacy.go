/*
legacy.go - Description parsing for transactions without structured metadata

Older records were written before TransactionMetadata existed and only
describe their side effects in free text:

  expense:  "Stock purchase: 24 x Panadol Extra"
  payment:  "Payment for order 1042: Panadol Extra x2, Augmentin 1g x1"

These parsers exist only so such records can still be reversed on delete.
Nothing new is written in this form.
*/
package engine

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// "<qty> x <name>", also accepting the multiplication sign.
	qtyFirstPattern = regexp.MustCompile(`(?i)(\d+)\s*[x×]\s*([^,;:]+)`)
	// "<name> x<qty>"
	nameFirstPattern = regexp.MustCompile(`(?i)^\s*(.+?)\s*[x×]\s*(\d+)\s*$`)
)

// legacyLine is one "quantity × name" pair recovered from a description.
type legacyLine struct {
	Name     string
	Quantity int
}

// parseLegacyExpenseQuantity finds the purchased quantity in an expense
// description. It returns false when no "quantity × name" form is present.
func parseLegacyExpenseQuantity(description string) (int, bool) {
	m := qtyFirstPattern.FindStringSubmatch(description)
	if m == nil {
		return 0, false
	}
	qty, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return qty, true
}

// parseLegacyPaidItems recovers the itemized part of a payment description:
// everything after the last ':' split on ','. Segments that do not look like
// "name xN" or "N x name" are ignored.
func parseLegacyPaidItems(description string) []legacyLine {
	body := description
	if i := strings.LastIndex(description, ":"); i >= 0 {
		body = description[i+1:]
	}

	var lines []legacyLine
	for _, seg := range strings.Split(body, ",") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if m := nameFirstPattern.FindStringSubmatch(seg); m != nil {
			if qty, err := strconv.Atoi(m[2]); err == nil {
				lines = append(lines, legacyLine{Name: strings.TrimSpace(m[1]), Quantity: qty})
				continue
			}
		}
		if m := qtyFirstPattern.FindStringSubmatch(seg); m != nil {
			if qty, err := strconv.Atoi(m[1]); err == nil {
				lines = append(lines, legacyLine{Name: strings.TrimSpace(m[2]), Quantity: qty})
			}
		}
	}
	return lines
}
