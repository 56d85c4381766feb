// Package graph exports the neighbour lists to Neo4j as
// (:Card)-[:SIMILAR_TO {score, rank}]->(:Card) relationships.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/nidhogg/cardclusters/internal/pipeline"
	"github.com/nidhogg/cardclusters/internal/rank"
	"go.uber.org/zap"
)

const defaultBatchSize = 1000

// Store writes similarity graphs to Neo4j.
type Store struct {
	driver    neo4j.DriverWithContext
	batchSize int
	logger    *zap.Logger
}

// NewStore creates a Neo4j graph store.
func NewStore(uri, user, password string, logger *zap.Logger) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return &Store{driver: driver, batchSize: defaultBatchSize, logger: logger}, nil
}

// Close shuts down the Neo4j driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Ping verifies the Neo4j connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// Name implements pipeline.Sink.
func (s *Store) Name() string { return "neo4j" }

// Emit merges every card node and replaces each card's outgoing
// SIMILAR_TO relationships with the run's neighbour list.
func (s *Store) Emit(ctx context.Context, res *pipeline.Result) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	if _, err := session.Run(ctx,
		`CREATE CONSTRAINT card_id IF NOT EXISTS FOR (c:Card) REQUIRE c.multiverse_id IS UNIQUE`, nil); err != nil {
		return fmt.Errorf("ensure constraint: %w", err)
	}

	cards := res.Cards.Cards()
	for start := 0; start < len(cards); start += s.batchSize {
		end := min(start+s.batchSize, len(cards))
		nodes := make([]map[string]any, 0, end-start)
		for _, c := range cards[start:end] {
			nodes = append(nodes, map[string]any{"id": c.MultiverseID, "name": c.Name})
		}
		if _, err := session.Run(ctx,
			`UNWIND $cards AS c
			 MERGE (n:Card {multiverse_id: c.id})
			 SET n.name = c.name`,
			map[string]any{"cards": nodes}); err != nil {
			return fmt.Errorf("merge cards %d-%d: %w", start, end, err)
		}
	}

	ids := res.Cards.IDs()
	for start := 0; start < len(ids); start += s.batchSize {
		end := min(start+s.batchSize, len(ids))
		rows := make([]map[string]any, 0, end-start)
		for _, id := range ids[start:end] {
			rows = append(rows, map[string]any{"id": id, "neighbors": edges(res.Neighbors[id])})
		}
		params := map[string]any{"rows": rows, "run": res.RunID}
		// old edges are dropped and new ones created in the same transaction
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			if _, err := tx.Run(ctx,
				`UNWIND $rows AS row
				 MATCH (a:Card {multiverse_id: row.id})-[old:SIMILAR_TO]->()
				 DELETE old`, params); err != nil {
				return nil, err
			}
			_, err := tx.Run(ctx,
				`UNWIND $rows AS row
				 MATCH (a:Card {multiverse_id: row.id})
				 UNWIND row.neighbors AS nb
				 MATCH (b:Card {multiverse_id: nb.id})
				 CREATE (a)-[:SIMILAR_TO {score: nb.score, rank: nb.rank, run_id: $run}]->(b)`, params)
			return nil, err
		})
		if err != nil {
			return fmt.Errorf("write neighbors %d-%d: %w", start, end, err)
		}
	}
	s.logger.Info("graph exported", zap.String("run", res.RunID), zap.Int("cards", len(cards)))
	return nil
}

func edges(list rank.List) []map[string]any {
	out := make([]map[string]any, len(list))
	for i, nb := range list {
		out[i] = map[string]any{"id": nb.ID, "score": nb.Score, "rank": i + 1}
	}
	return out
}

// Similar returns the stored neighbours of id, best first.
func (s *Store) Similar(ctx context.Context, id, limit int) (rank.List, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (:Card {multiverse_id: $id})-[r:SIMILAR_TO]->(b:Card)
		 RETURN b.multiverse_id AS id, r.score AS score
		 ORDER BY r.rank LIMIT $limit`,
		map[string]any{"id": id, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("similar %d: %w", id, err)
	}

	list := rank.List{}
	for result.Next(ctx) {
		rec := result.Record()
		nid, _ := rec.Get("id")
		score, _ := rec.Get("score")
		list = append(list, rank.Neighbor{ID: int(nid.(int64)), Score: score.(float64)})
	}
	return list, result.Err()
}
