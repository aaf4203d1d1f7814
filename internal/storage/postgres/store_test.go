package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"lpMonitor/internal/model"
)

func TestSnapshotArgs(t *testing.T) {
	roi := 12.5
	snap := model.Snapshot{
		PositionID: "p1",
		Protocol:   model.ProtocolV4,
		Liquidity:  "1000",
		Amount0:    decimal.RequireFromString("1.25"),
		ROI:        &roi,
		Degraded:   []string{"fees: missing", "usd: no reference price"},
		TakenAt:    time.Date(2024, 1, 1, 0, 0, 0, 1500, time.FixedZone("x", 3600)),
	}
	args := snapshotArgs(snap)
	if len(args) != 21 {
		t.Fatalf("expected 21 args, got %d", len(args))
	}
	if ts := args[1].(time.Time); ts.Location() != time.UTC || ts.Nanosecond() != 1000 {
		t.Fatalf("timestamp not normalized: %v", ts)
	}
	if args[3] != "v4" || args[11] != "1.25" {
		t.Fatalf("unexpected args: protocol=%v amount0=%v", args[3], args[11])
	}
	if args[17].(*float64) != &roi {
		t.Fatalf("roi pointer not passed through")
	}
	if args[18].(*float64) != nil {
		t.Fatalf("missing apr must be NULL")
	}
	if args[20] != "fees: missing; usd: no reference price" {
		t.Fatalf("unexpected degraded column %q", args[20])
	}
}

func TestStoreValidation(t *testing.T) {
	if _, err := NewStore(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
	s := &Store{}
	if err := s.PutAction(context.Background(), model.ActionResult{}); err == nil {
		t.Fatalf("expected error for missing position id")
	}
	if err := s.PutSnapshots(context.Background(), nil); err != nil {
		t.Fatalf("empty batch should be a no-op: %v", err)
	}
	if RedactDSN("postgres://u:p@h/db") != "***" || RedactDSN("") != "" {
		t.Fatalf("redact mismatch")
	}
}
