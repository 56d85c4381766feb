package pipeline

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/nidhogg/cardclusters/internal/card"
	"github.com/nidhogg/cardclusters/internal/similarity"
	"go.uber.org/zap"
)

type staticSource struct {
	cards []card.Card
	err   error
}

func (s staticSource) Load(ctx context.Context, selection string) ([]card.Card, error) {
	return s.cards, s.err
}

type recordingSink struct {
	name    string
	err     error
	results []*Result
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Emit(ctx context.Context, res *Result) error {
	s.results = append(s.results, res)
	return s.err
}

func testCards() []card.Card {
	return []card.Card{
		{MultiverseID: 11, Name: "Shock", Text: card.Str("Shock deals 2 damage to any target."), Type: card.Str("Instant"), ColorIdentity: []string{"R"}, CMC: card.Num(1)},
		{MultiverseID: 12, Name: "Lightning Bolt", Text: card.Str("Lightning Bolt deals 3 damage to any target."), Type: card.Str("Instant"), ColorIdentity: []string{"R"}, CMC: card.Num(1)},
		{MultiverseID: 13, Name: "Giant Growth", Text: card.Str("Target creature gets +3/+3 until end of turn."), Type: card.Str("Instant"), ColorIdentity: []string{"G"}, CMC: card.Num(1)},
		{MultiverseID: 14, Name: "Grizzly Bears", Type: card.Str("Creature — Bear"), Power: card.Str("2"), Toughness: card.Str("2"), ColorIdentity: []string{"G"}, CMC: card.Num(2)},
	}
}

func newTestPipeline(src card.Source, sinks ...Sink) *Pipeline {
	engine := similarity.NewEngine(similarity.DefaultOptions(), zap.NewNop())
	return New(src, engine, 50, zap.NewNop(), sinks...)
}

func TestRunEmitsToEverySink(t *testing.T) {
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b"}
	res, err := newTestPipeline(staticSource{cards: testCards()}, a, b).Run(context.Background(), card.SelectAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a.results) != 1 || len(b.results) != 1 {
		t.Fatalf("got %d/%d emits, want 1/1", len(a.results), len(b.results))
	}
	if res.RunID == "" {
		t.Error("expected a run id")
	}
	if res.Cards.Len() != 4 || len(res.Neighbors) != 4 {
		t.Fatalf("got %d cards, %d lists, want 4, 4", res.Cards.Len(), len(res.Neighbors))
	}
	for id, list := range res.Neighbors {
		if len(list) != 3 {
			t.Errorf("card %d has %d neighbors, want 3", id, len(list))
		}
	}
	// Shock's closest card is the other burn spell
	if got := res.Neighbors[11][0].ID; got != 12 {
		t.Errorf("Shock's best neighbor = %d, want 12", got)
	}
}

func TestRunJoinsSinkErrors(t *testing.T) {
	boom := errors.New("boom")
	a := &recordingSink{name: "a", err: boom}
	b := &recordingSink{name: "b"}
	_, err := newTestPipeline(staticSource{cards: testCards()}, a, b).Run(context.Background(), card.SelectAll)
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}
	if len(b.results) != 1 {
		t.Error("second sink should still be written")
	}
}

func TestComputeRejectsDuplicateIDs(t *testing.T) {
	cards := append(testCards(), card.Card{MultiverseID: 11, Name: "Shock reprint"})
	_, err := newTestPipeline(staticSource{cards: cards}).Compute(context.Background(), card.SelectAll)
	if !errors.Is(err, card.ErrDuplicateID) {
		t.Fatalf("got %v, want ErrDuplicateID", err)
	}
}

func TestComputePropagatesSourceError(t *testing.T) {
	_, err := newTestPipeline(staticSource{err: card.ErrUnknownSelection}).Compute(context.Background(), "XYZ")
	if !errors.Is(err, card.ErrUnknownSelection) {
		t.Fatalf("got %v, want ErrUnknownSelection", err)
	}
}

func TestComputeEmptySet(t *testing.T) {
	res, err := newTestPipeline(staticSource{}).Compute(context.Background(), card.SelectAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Neighbors) != 0 {
		t.Errorf("got %d lists, want 0", len(res.Neighbors))
	}
}

func TestComputeDeterministic(t *testing.T) {
	p := newTestPipeline(staticSource{cards: testCards()})
	a, err := p.Compute(context.Background(), card.SelectAll)
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.Compute(context.Background(), card.SelectAll)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Neighbors, b.Neighbors) {
		t.Error("neighbor lists differ between runs")
	}
}
