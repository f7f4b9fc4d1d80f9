package calls

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"debt-collector/pkg/utils"
)

// Runs against DATABASE_URL with migrations/001_dialer.sql applied.
func TestPostgresRepo_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := utils.OpenPostgres(ctx, "pgx", dsn, utils.PostgresPoolConfig{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	schema, err := os.ReadFile("../../migrations/001_dialer.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	repo := NewPostgresRepo(db)
	inst := "it-" + uuid.NewString()
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	for _, h := range []int{8, 12} {
		if err := repo.AppendHistory(ctx, HistoryEntry{
			ID:            uuid.NewString(),
			InstanceID:    inst,
			ContactNumber: "11999990000",
			BillRefs:      []string{"B-1", "B-2"},
			TriggeredAt:   day.Add(time.Duration(h) * time.Hour),
			Outcome:       OutcomeTriggered,
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	n, err := repo.CountSince(ctx, inst, "11999990000", day.Add(9*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("count since 09:00: n=%d err=%v", n, err)
	}

	last, ok, err := repo.MostRecent(ctx, inst, "11999990000")
	if err != nil || !ok {
		t.Fatalf("most recent: ok=%v err=%v", ok, err)
	}
	if !last.TriggeredAt.Equal(day.Add(12*time.Hour)) || len(last.BillRefs) != 2 {
		t.Fatalf("unexpected latest entry: %+v", last)
	}

	rec := GatewayCallRecord{GatewayCallID: inst + "-call", InstanceID: inst, ContactNumber: "11999990000", TriggeredAt: day}
	for i := 0; i < 2; i++ {
		if err := repo.UpsertGatewayCall(ctx, rec); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}
	recs, err := repo.ListGatewayCalls(ctx, inst, day, time.Time{})
	if err != nil || len(recs) != 1 {
		t.Fatalf("expected one correlation record, got %d (err=%v)", len(recs), err)
	}
}
