package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nidhogg/cardclusters/internal/pipeline"
	"github.com/nidhogg/cardclusters/internal/rank"
	"go.uber.org/zap"
)

// Run is an archived computation.
type Run struct {
	ID         string    `json:"id"`
	Selection  string    `json:"selection"`
	CardCount  int       `json:"card_count"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Name implements pipeline.Sink.
func (s *Store) Name() string { return "postgres" }

// Emit archives a run in one transaction: the run row, an upsert of every
// card and a bulk copy of the neighbour lists.
func (s *Store) Emit(ctx context.Context, res *pipeline.Result) error {
	runID, err := uuid.Parse(res.RunID)
	if err != nil {
		return fmt.Errorf("run id %q: %w", res.RunID, err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO runs (id, selection, card_count, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5)`,
		runID, res.Selection, res.Cards.Len(), res.StartedAt, res.FinishedAt)
	if err != nil {
		return fmt.Errorf("save run %s: %w", res.RunID, err)
	}

	batch := &pgx.Batch{}
	for _, c := range res.Cards.Cards() {
		batch.Queue(`
			INSERT INTO cards (multiverse_id, name, text, power, toughness, color_identity, type, cmc, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			ON CONFLICT (multiverse_id) DO UPDATE SET
				name = EXCLUDED.name,
				text = EXCLUDED.text,
				power = EXCLUDED.power,
				toughness = EXCLUDED.toughness,
				color_identity = EXCLUDED.color_identity,
				type = EXCLUDED.type,
				cmc = EXCLUDED.cmc,
				updated_at = EXCLUDED.updated_at`,
			c.MultiverseID, c.Name, c.Text, c.Power, c.Toughness, c.ColorIdentity, c.Type, c.CMC)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save cards: %w", err)
	}

	var rows [][]any
	for _, id := range res.Cards.IDs() {
		for pos, nb := range res.Neighbors[id] {
			rows = append(rows, []any{runID, id, pos + 1, nb.ID, nb.Score})
		}
	}
	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{"card_neighbors"},
		[]string{"run_id", "multiverse_id", "rank", "neighbor_id", "score"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("save neighbors: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit run %s: %w", res.RunID, err)
	}
	s.logger.Info("run archived", zap.String("run", res.RunID), zap.Int64("neighbors", copied))
	return nil
}

// LatestRun returns the most recently finished run for selection.
func (s *Store) LatestRun(ctx context.Context, selection string) (*Run, error) {
	var r Run
	err := s.db.QueryRow(ctx, `
		SELECT id::text, selection, card_count, started_at, finished_at
		FROM runs WHERE selection = $1
		ORDER BY finished_at DESC LIMIT 1`, selection).
		Scan(&r.ID, &r.Selection, &r.CardCount, &r.StartedAt, &r.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run %s: %w", selection, err)
	}
	return &r, nil
}

// Neighbors returns the archived neighbour list of a card in a run.
func (s *Store) Neighbors(ctx context.Context, runID string, id int) (rank.List, error) {
	rows, err := s.db.Query(ctx, `
		SELECT neighbor_id, score FROM card_neighbors
		WHERE run_id::text = $1 AND multiverse_id = $2
		ORDER BY rank`, runID, id)
	if err != nil {
		return nil, fmt.Errorf("neighbors %d: %w", id, err)
	}
	defer rows.Close()

	list := rank.List{}
	for rows.Next() {
		var nb rank.Neighbor
		if err := rows.Scan(&nb.ID, &nb.Score); err != nil {
			return nil, fmt.Errorf("scan neighbor: %w", err)
		}
		list = append(list, nb)
	}
	return list, rows.Err()
}
