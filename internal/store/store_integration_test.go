//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/cardclusters/internal/card"
	"github.com/nidhogg/cardclusters/internal/pipeline"
	"github.com/nidhogg/cardclusters/internal/rank"
	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
)

// startPostgres starts a PostgreSQL testcontainer and returns a migrated Store.
func startPostgres(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	container, err := tcpg.Run(ctx, "postgres:16-alpine",
		tcpg.WithDatabase("cardclusters_test"),
		tcpg.WithUsername("test"),
		tcpg.WithPassword("test"),
		tcpg.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("pg connection string: %v", err)
	}
	s, err := New(dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(s.Close)
	if err := s.Migrate(ctx, "../../migrations"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestEmitArchivesRun(t *testing.T) {
	s := startPostgres(t)
	ctx := context.Background()

	set, err := card.NewSet([]card.Card{
		{MultiverseID: 1, Name: "Shock", ColorIdentity: []string{"R"}, CMC: card.Num(1)},
		{MultiverseID: 2, Name: "Grizzly Bears", Power: card.Str("2"), Toughness: card.Str("2")},
	})
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	res := &pipeline.Result{
		RunID:      uuid.New().String(),
		Selection:  "LEA",
		Cards:      set,
		Neighbors:  rank.Neighbors{1: {{ID: 2, Score: 0.3}}, 2: {{ID: 1, Score: 0.3}}},
		StartedAt:  now,
		FinishedAt: now.Add(time.Second),
	}
	if err := s.Emit(ctx, res); err != nil {
		t.Fatalf("emit: %v", err)
	}
	// re-emitting the cards under a new run upserts instead of failing
	res2 := *res
	res2.RunID = uuid.New().String()
	res2.FinishedAt = now.Add(2 * time.Second)
	if err := s.Emit(ctx, &res2); err != nil {
		t.Fatalf("second emit: %v", err)
	}

	run, err := s.LatestRun(ctx, "LEA")
	if err != nil {
		t.Fatalf("latest run: %v", err)
	}
	if run == nil || run.ID != res2.RunID || run.CardCount != 2 {
		t.Fatalf("got %+v, want run %s", run, res2.RunID)
	}

	list, err := s.Neighbors(ctx, res.RunID, 1)
	if err != nil {
		t.Fatalf("neighbors: %v", err)
	}
	if len(list) != 1 || list[0].ID != 2 || list[0].Score != 0.3 {
		t.Errorf("got %v", list)
	}

	none, err := s.LatestRun(ctx, "unknown")
	if err != nil || none != nil {
		t.Errorf("got (%v, %v), want (nil, nil)", none, err)
	}
}
