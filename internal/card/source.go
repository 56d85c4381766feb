package card

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// SelectAll selects every card the source holds.
const SelectAll = "all"

var ErrUnknownSelection = errors.New("unknown selection")

// Source yields the complete card dataset for a selection criterion
// ("all" or a set code) in a single call.
type Source interface {
	Load(ctx context.Context, selection string) ([]Card, error)
}

// Record is a card as published by the magicthegathering.io card API.
type Record struct {
	MultiverseID  flexInt  `json:"multiverseid"`
	Name          string   `json:"name"`
	Text          *string  `json:"text"`
	Power         *string  `json:"power"`
	Toughness     *string  `json:"toughness"`
	ColorIdentity []string `json:"colorIdentity"`
	Type          *string  `json:"type"`
	CMC           *float64 `json:"cmc"`
	Set           string   `json:"set"`
	Lang          string   `json:"lang,omitempty"`
}

// ToCard maps a record onto the internal Card. ok is false for records
// without a multiverse id, which cannot take part in a run.
func (r Record) ToCard() (Card, bool) {
	if !r.MultiverseID.valid {
		return Card{}, false
	}
	return Card{
		MultiverseID:  r.MultiverseID.v,
		Name:          r.Name,
		Text:          r.Text,
		Power:         r.Power,
		Toughness:     r.Toughness,
		ColorIdentity: r.ColorIdentity,
		Type:          r.Type,
		CMC:           r.CMC,
	}, true
}

// Matches reports whether the record belongs to selection.
func (r Record) Matches(selection string) bool {
	if r.Lang != "" && !strings.EqualFold(r.Lang, "en") && !strings.EqualFold(r.Lang, "english") {
		return false
	}
	return selection == SelectAll || strings.EqualFold(r.Set, selection)
}

// flexInt accepts both JSON numbers and numeric strings; the API has
// published multiverse ids in both shapes.
type flexInt struct {
	v     int
	valid bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = flexInt{}
		return nil
	}
	s := strings.Trim(string(data), `"`)
	if s == "" {
		*f = flexInt{}
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("multiverseid %s: %w", data, err)
	}
	*f = flexInt{v: n, valid: true}
	return nil
}

func (f flexInt) MarshalJSON() ([]byte, error) {
	if !f.valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(f.v)), nil
}

// FileSource reads a JSON dump of card records, either a bare array or an
// API page of the form {"cards": [...]}.
type FileSource struct {
	path   string
	logger *zap.Logger
}

// NewFileSource creates a Source backed by the JSON file at path.
func NewFileSource(path string, logger *zap.Logger) *FileSource {
	return &FileSource{path: path, logger: logger}
}

// Load reads the whole file and returns the cards matching selection in
// file order.
func (s *FileSource) Load(ctx context.Context, selection string) ([]Card, error) {
	if selection == "" {
		return nil, fmt.Errorf("%w: empty selection", ErrUnknownSelection)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read cards %s: %w", s.path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := DecodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("decode cards %s: %w", s.path, err)
	}

	var (
		cards     []Card
		matched   int
		skippedID int
	)
	for _, r := range records {
		if !r.Matches(selection) {
			continue
		}
		matched++
		c, ok := r.ToCard()
		if !ok {
			skippedID++
			continue
		}
		cards = append(cards, c)
	}
	if matched == 0 && selection != SelectAll {
		return nil, fmt.Errorf("%w: no cards in set %q", ErrUnknownSelection, selection)
	}
	if skippedID > 0 {
		s.logger.Warn("skipped cards without multiverse id",
			zap.String("selection", selection), zap.Int("count", skippedID))
	}
	s.logger.Info("cards loaded",
		zap.String("path", s.path),
		zap.String("selection", selection),
		zap.Int("count", len(cards)))
	return cards, nil
}

// DecodeRecords parses a bare array or a {"cards": [...]} page.
func DecodeRecords(data []byte) ([]Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var records []Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, err
		}
		return records, nil
	}
	var page struct {
		Cards []Record `json:"cards"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, err
	}
	return page.Cards, nil
}
