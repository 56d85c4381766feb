package card

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrDuplicateID = errors.New("duplicate multiverse id")
	ErrInvalidCard = errors.New("invalid card")
)

// Card is one record of the working dataset. Optional attributes are nil
// when the provider did not supply them; defaults are a comparator concern.
type Card struct {
	MultiverseID  int      `json:"multiverse_id"`
	Name          string   `json:"name"`
	Text          *string  `json:"text,omitempty"`
	Power         *string  `json:"power,omitempty"`
	Toughness     *string  `json:"toughness,omitempty"`
	ColorIdentity []string `json:"color_identity,omitempty"`
	Type          *string  `json:"type,omitempty"`
	CMC           *float64 `json:"cmc,omitempty"`
}

// StatKind classifies a power or toughness value.
type StatKind string

const (
	StatInteger StatKind = "i"
	StatSymbol  StatKind = "s"
	StatAbsent  StatKind = "n"
)

// Kinds lists every StatKind in one-hot column order.
var Kinds = []StatKind{StatInteger, StatSymbol, StatAbsent}

// ParseStat reports the kind of a power/toughness value and, for integer
// values, the number itself.
func ParseStat(v *string) (StatKind, int) {
	if v == nil {
		return StatAbsent, 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(*v))
	if err != nil {
		return StatSymbol, 0
	}
	return StatInteger, n
}

// Colors is the color-identity alphabet, lowercase.
var Colors = []string{"w", "u", "b", "r", "g"}

// Validate checks the invariants the similarity engine relies on.
func (c Card) Validate() error {
	for _, code := range c.ColorIdentity {
		if !isColor(code) {
			return fmt.Errorf("%w: card %d has color code %q", ErrInvalidCard, c.MultiverseID, code)
		}
	}
	if c.CMC != nil && (*c.CMC < 0 || math.IsNaN(*c.CMC) || math.IsInf(*c.CMC, 0)) {
		return fmt.Errorf("%w: card %d has cmc %v", ErrInvalidCard, c.MultiverseID, *c.CMC)
	}
	return nil
}

func isColor(code string) bool {
	code = strings.ToLower(code)
	for _, c := range Colors {
		if c == code {
			return true
		}
	}
	return false
}

// Str returns a pointer to s. Handy for building cards in code.
func Str(s string) *string { return &s }

// Num returns a pointer to f.
func Num(f float64) *float64 { return &f }
