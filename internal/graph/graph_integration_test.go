//go:build integration

package graph

import (
	"context"
	"testing"

	"github.com/nidhogg/cardclusters/internal/card"
	"github.com/nidhogg/cardclusters/internal/pipeline"
	"github.com/nidhogg/cardclusters/internal/rank"
	tcneo4j "github.com/testcontainers/testcontainers-go/modules/neo4j"
	"go.uber.org/zap"
)

// startNeo4j starts a Neo4j testcontainer and returns a connected Store.
func startNeo4j(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	container, err := tcneo4j.Run(ctx, "neo4j:5-community",
		tcneo4j.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("start neo4j: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	uri, err := container.BoltUrl(ctx)
	if err != nil {
		t.Fatalf("neo4j bolt url: %v", err)
	}
	s, err := NewStore(uri, "", "", zap.NewNop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { s.Close(ctx) })
	return s
}

func TestEmitReplacesEdges(t *testing.T) {
	s := startNeo4j(t)
	ctx := context.Background()

	set, err := card.NewSet([]card.Card{
		{MultiverseID: 1, Name: "Shock"},
		{MultiverseID: 2, Name: "Lightning Bolt"},
		{MultiverseID: 3, Name: "Grizzly Bears"},
	})
	if err != nil {
		t.Fatal(err)
	}
	res := &pipeline.Result{
		RunID: "run-1",
		Cards: set,
		Neighbors: rank.Neighbors{
			1: {{ID: 2, Score: 0.9}, {ID: 3, Score: 0.1}},
			2: {{ID: 1, Score: 0.9}, {ID: 3, Score: 0.2}},
			3: {{ID: 2, Score: 0.2}, {ID: 1, Score: 0.1}},
		},
	}
	if err := s.Emit(ctx, res); err != nil {
		t.Fatalf("emit: %v", err)
	}

	list, err := s.Similar(ctx, 1, 10)
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if len(list) != 2 || list[0].ID != 2 || list[1].ID != 3 {
		t.Errorf("got %v", list)
	}

	res.RunID = "run-2"
	res.Neighbors[1] = rank.List{{ID: 3, Score: 0.5}}
	if err := s.Emit(ctx, res); err != nil {
		t.Fatalf("second emit: %v", err)
	}
	list, err = s.Similar(ctx, 1, 10)
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if len(list) != 1 || list[0].ID != 3 || list[0].Score != 0.5 {
		t.Errorf("got %v after rerun", list)
	}
}
