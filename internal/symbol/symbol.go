// Package symbol handles instrument symbol validation and classification.
package symbol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// symbolRegex matches an uppercase alphanumeric base with an optional
// derivative suffix. Examples: BTCUSD, AAPL, ETHUSD-PERP.
var symbolRegex = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,15}(-PERP)?$`)

// PerpSuffix marks a derivative-like symbol. Perp symbols may be shorted;
// spot symbols may not.
const PerpSuffix = "-PERP"

var ErrInvalidSymbol = errors.New("symbol: invalid symbol format")

// Symbol is a parsed instrument identifier.
type Symbol struct {
	Name       string `json:"name"`
	Base       string `json:"base"`
	Derivative bool   `json:"derivative"`
}

// Parse validates a symbol string.
// Format: uppercase alphanumeric, 2-16 chars, optional -PERP suffix.
func Parse(s string) (*Symbol, error) {
	if !symbolRegex.MatchString(s) {
		return nil, fmt.Errorf("%w: %q (expected e.g. BTCUSD or ETHUSD-PERP)", ErrInvalidSymbol, s)
	}
	return &Symbol{
		Name:       s,
		Base:       strings.TrimSuffix(s, PerpSuffix),
		Derivative: strings.HasSuffix(s, PerpSuffix),
	}, nil
}

// Shortable reports whether negative position quantity is allowed for s.
// Spot symbols carry spot semantics: no shorting.
func Shortable(s string) bool {
	return strings.HasSuffix(s, PerpSuffix)
}

// ValidateAll parses every symbol in the list, rejecting duplicates.
func ValidateAll(symbols []string) error {
	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		if _, err := Parse(s); err != nil {
			return err
		}
		if seen[s] {
			return fmt.Errorf("%w: duplicate symbol %q", ErrInvalidSymbol, s)
		}
		seen[s] = true
	}
	return nil
}
