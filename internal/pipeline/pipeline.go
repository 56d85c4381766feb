// Package pipeline runs one card-clustering computation end to end.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/cardclusters/internal/card"
	"github.com/nidhogg/cardclusters/internal/rank"
	"github.com/nidhogg/cardclusters/internal/similarity"
	"go.uber.org/zap"
)

// Result is everything a run hands to persistence. Selection is stored
// lower-cased since set codes match case-insensitively.
type Result struct {
	RunID      string
	Selection  string
	Cards      *card.Set
	Neighbors  rank.Neighbors
	StartedAt  time.Time
	FinishedAt time.Time
}

// Sink persists a finished run.
type Sink interface {
	Name() string
	Emit(ctx context.Context, res *Result) error
}

// Pipeline wires a card source, the similarity engine and the sinks.
type Pipeline struct {
	source card.Source
	engine *similarity.Engine
	k      int
	sinks  []Sink
	logger *zap.Logger
}

// New creates a Pipeline. k is the neighbour list length.
func New(source card.Source, engine *similarity.Engine, k int, logger *zap.Logger, sinks ...Sink) *Pipeline {
	return &Pipeline{source: source, engine: engine, k: k, sinks: sinks, logger: logger}
}

// Compute loads the selection and ranks every card without persisting.
func (p *Pipeline) Compute(ctx context.Context, selection string) (*Result, error) {
	res := &Result{
		RunID:     uuid.New().String(),
		Selection: strings.ToLower(selection),
		StartedAt: time.Now(),
	}
	log := p.logger.With(zap.String("run", res.RunID), zap.String("selection", selection))

	cards, err := p.source.Load(ctx, selection)
	if err != nil {
		return nil, fmt.Errorf("load cards: %w", err)
	}
	set, err := card.NewSet(cards)
	if err != nil {
		return nil, fmt.Errorf("build card set: %w", err)
	}
	res.Cards = set
	log.Info("comparing cards", zap.Int("count", set.Len()))

	overall, err := p.engine.Compute(ctx, set)
	if err != nil {
		return nil, fmt.Errorf("compute similarity: %w", err)
	}
	res.Neighbors, err = rank.TopK(overall, set.IDs(), p.k)
	if err != nil {
		return nil, err
	}
	res.FinishedAt = time.Now()
	log.Info("neighbors ranked",
		zap.Int("cards", len(res.Neighbors)),
		zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)))
	return res, nil
}

// Run computes the selection and emits the result to every sink. All sinks
// are attempted; their errors are joined.
func (p *Pipeline) Run(ctx context.Context, selection string) (*Result, error) {
	res, err := p.Compute(ctx, selection)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, s := range p.sinks {
		start := time.Now()
		if err := s.Emit(ctx, res); err != nil {
			p.logger.Error("sink failed", zap.String("sink", s.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("emit %s: %w", s.Name(), err))
			continue
		}
		p.logger.Info("sink written",
			zap.String("sink", s.Name()),
			zap.String("run", res.RunID),
			zap.Duration("elapsed", time.Since(start)))
	}
	return res, errors.Join(errs...)
}
