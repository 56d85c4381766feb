package card

import "fmt"

// Set is the ordered card collection of one run. Position i of Cards is
// row and column i of every similarity matrix computed from the set.
type Set struct {
	cards []Card
	index map[int]int
}

// NewSet validates cards and freezes their order. Duplicate ids and cards
// that break Validate are rejected rather than silently dropped.
func NewSet(cards []Card) (*Set, error) {
	s := &Set{
		cards: make([]Card, len(cards)),
		index: make(map[int]int, len(cards)),
	}
	for i, c := range cards {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if prev, ok := s.index[c.MultiverseID]; ok {
			return nil, fmt.Errorf("%w: %d at positions %d and %d", ErrDuplicateID, c.MultiverseID, prev, i)
		}
		s.index[c.MultiverseID] = i
		s.cards[i] = c
	}
	return s, nil
}

// Len returns the number of cards.
func (s *Set) Len() int { return len(s.cards) }

// At returns the card at row i.
func (s *Set) At(i int) Card { return s.cards[i] }

// IndexOf returns the row of the card with the given id.
func (s *Set) IndexOf(id int) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// IDs returns the multiverse ids in row order.
func (s *Set) IDs() []int {
	ids := make([]int, len(s.cards))
	for i, c := range s.cards {
		ids[i] = c.MultiverseID
	}
	return ids
}

// Cards returns a copy of the cards in row order.
func (s *Set) Cards() []Card {
	out := make([]Card, len(s.cards))
	copy(out, s.cards)
	return out
}
