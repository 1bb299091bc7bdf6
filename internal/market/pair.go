package market

import (
	"errors"
	"strings"
)

// Separator splits the base and quote segments of a pair.
const Separator = "-"

// ErrInvalidPair is returned for identifiers not of the form "BASE-QUOTE".
var ErrInvalidPair = errors.New("invalid pair")

// ParsePair splits "BASE-QUOTE" into its segments. Extra segments (e.g.
// "BTC-USDT-SWAP") are allowed; base and quote must be non-empty.
func ParsePair(pair string) (base, quote string, err error) {
	parts := strings.Split(pair, Separator)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrInvalidPair
	}
	return parts[0], parts[1], nil
}

// BaseSymbol returns the base segment of a pair, or "" if the pair is malformed.
func BaseSymbol(pair string) string {
	base, _, err := ParsePair(pair)
	if err != nil {
		return ""
	}
	return base
}
