package similarity

import (
	"context"
	"fmt"
	"time"

	"github.com/nidhogg/cardclusters/internal/card"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Weights are the fusion coefficients of each attribute family.
type Weights struct {
	Text      float64 `json:"text"`
	Power     float64 `json:"power"`
	Toughness float64 `json:"toughness"`
	Type      float64 `json:"type"`
	CMC       float64 `json:"cmc"`
	Color     float64 `json:"color"`
}

// DefaultWeights is the tuned fusion policy.
var DefaultWeights = Weights{
	Text:      0.50,
	Power:     0.05,
	Toughness: 0.05,
	Type:      0.20,
	CMC:       0.10,
	Color:     0.10,
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.Text + w.Power + w.Toughness + w.Type + w.CMC + w.Color
}

// Options configures an Engine.
type Options struct {
	Text    TfidfOptions
	Type    TfidfOptions
	Weights Weights
	// Parallelism bounds how many fusion terms are computed at once.
	Parallelism int
	// Workers bounds the goroutines filling each matrix.
	Workers int
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		Text:        TfidfOptions{MinDF: 0.01, MaxDF: 0.25, NGramMin: 1, NGramMax: 3},
		Type:        TfidfOptions{MinDF: 0.01, MaxDF: 0.80, NGramMin: 1, NGramMax: 3},
		Weights:     DefaultWeights,
		Parallelism: 2,
	}
}

// Term is one weighted summand of the fused matrix: the elementwise
// product of its factors, scaled by Weight.
type Term struct {
	Name    string
	Weight  float64
	Factors []Comparator
}

// Engine computes the fused similarity matrix of a card set.
type Engine struct {
	opts   Options
	logger *zap.Logger
}

// NewEngine creates an Engine.
func NewEngine(opts Options, logger *zap.Logger) *Engine {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	return &Engine{opts: opts, logger: logger}
}

// Terms returns the fusion terms in fold order. Numeric power and toughness
// are gated by their kind masks so values of different kinds contribute 0.
func (e *Engine) Terms() []Term {
	w := e.opts.Weights
	return []Term{
		{Name: "text", Weight: w.Text, Factors: []Comparator{Text(e.opts.Text)}},
		{Name: "power", Weight: w.Power, Factors: []Comparator{PowerKind(), Power()}},
		{Name: "toughness", Weight: w.Toughness, Factors: []Comparator{ToughnessKind(), Toughness()}},
		{Name: "type", Weight: w.Type, Factors: []Comparator{TypeLine(e.opts.Type)}},
		{Name: "cmc", Weight: w.CMC, Factors: []Comparator{CMC()}},
		{Name: "color", Weight: w.Color, Factors: []Comparator{Color()}},
	}
}

// Compute returns the weighted overall similarity matrix. Terms are
// computed concurrently but folded in Terms order, so the result is
// bit-identical across runs. Each term matrix is dropped once folded.
func (e *Engine) Compute(ctx context.Context, cards *card.Set) (*Matrix, error) {
	start := time.Now()
	terms := e.Terms()
	n := cards.Len()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Parallelism)

	results := make([]chan *Matrix, len(terms))
	for i := range results {
		results[i] = make(chan *Matrix, 1)
	}
	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i, t := range terms {
			i, t := i, t
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					results[i] <- nil
					return err
				}
				m, err := e.computeTerm(gctx, t, cards)
				results[i] <- m
				return err
			})
		}
	}()

	overall := NewMatrix(n)
	for i, t := range terms {
		m := <-results[i]
		if m == nil {
			break
		}
		if err := overall.AddScaled(t.Weight, m); err != nil {
			return nil, err
		}
	}
	<-launched
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.Info("similarity computed",
		zap.Int("cards", n),
		zap.Duration("elapsed", time.Since(start)))
	return overall, nil
}

func (e *Engine) computeTerm(ctx context.Context, t Term, cards *card.Set) (*Matrix, error) {
	var product *Matrix
	for _, c := range t.Factors {
		start := time.Now()
		m, err := c.Compare(ctx, cards, e.opts.Workers)
		if err != nil {
			return nil, fmt.Errorf("compare %s: %w", c.Name, err)
		}
		e.logger.Debug("comparator done",
			zap.String("comparator", c.Name),
			zap.Duration("elapsed", time.Since(start)))
		if product == nil {
			product = m
			continue
		}
		if err := product.MulElem(m); err != nil {
			return nil, err
		}
	}
	return product, nil
}
