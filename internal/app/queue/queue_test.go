package queue

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/coinflow-app/coinflow/internal/domain"
	"github.com/coinflow-app/coinflow/internal/infra/sqlite"
)

func newTestQueue(t *testing.T) (*Queue, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "queue_test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), db
}

type spinArgs struct {
	AccountID string `json:"account_id"`
}

func TestEnqueueAndDrain(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	var replayed []string
	q.Register("spin", func(ctx context.Context, args []byte) error {
		var a spinArgs
		if err := decode(args, &a); err != nil {
			return err
		}
		replayed = append(replayed, a.AccountID)
		return nil
	})

	for _, id := range []string{"u1", "u2", "u3"} {
		if _, err := q.Enqueue(ctx, "spin", spinArgs{AccountID: id}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	stats, err := q.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if stats.Replayed != 3 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want 3 replayed", stats)
	}
	if len(replayed) != 3 || replayed[0] != "u1" || replayed[2] != "u3" {
		t.Errorf("replay order = %v, want FIFO u1,u2,u3", replayed)
	}

	depth, err := q.Depth(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if depth != 0 {
		t.Errorf("depth after drain = %d, want 0", depth)
	}
}

func TestDrain_FailuresKeepTheirPlace(t *testing.T) {
	q, db := newTestQueue(t)
	ctx := context.Background()

	// Two of three actions fail validation on replay; the drain must
	// not stop at them and the survivors must keep their order.
	q.Register("checkin", func(ctx context.Context, args []byte) error {
		var a spinArgs
		if err := decode(args, &a); err != nil {
			return err
		}
		if a.AccountID != "u2" {
			return domain.ErrAlreadyCheckedIn
		}
		return nil
	})

	for _, id := range []string{"u1", "u2", "u3"} {
		if _, err := q.Enqueue(ctx, "checkin", spinArgs{AccountID: id}); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := q.Drain(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if stats.Replayed != 1 || stats.Failed != 2 {
		t.Errorf("stats = %+v, want 1 replayed / 2 failed", stats)
	}

	pending, err := db.PendingActions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want the 2 failed items", len(pending))
	}
	for _, p := range pending {
		if p.Attempts != 1 {
			t.Errorf("attempts = %d for id=%d, want 1", p.Attempts, p.ID)
		}
	}

	// A second drain bumps them again without removing them.
	if _, err := q.Drain(ctx); err != nil {
		t.Fatal(err)
	}
	pending, _ = db.PendingActions(ctx)
	if len(pending) != 2 || pending[0].Attempts != 2 {
		t.Errorf("pending after second drain = %+v, want both with attempts=2", pending)
	}
}

func TestDrain_UnregisteredKindSkipped(t *testing.T) {
	q, db := newTestQueue(t)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, "mystery", spinArgs{AccountID: "u1"}); err != nil {
		t.Fatal(err)
	}

	stats, err := q.Drain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Skipped != 1 {
		t.Errorf("stats = %+v, want 1 skipped", stats)
	}

	pending, _ := db.PendingActions(ctx)
	if len(pending) != 1 {
		t.Errorf("pending = %d, unhandled actions must remain", len(pending))
	}
}

func TestDrain_EmptyQueue(t *testing.T) {
	q, _ := newTestQueue(t)
	stats, err := q.Drain(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats != (DrainStats{}) {
		t.Errorf("stats = %+v, want zero", stats)
	}
}

func TestEnqueue_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "queue_test.db")

	db, err := sqlite.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	q := New(db)
	if _, err := q.Enqueue(ctx, "spin", spinArgs{AccountID: "u1"}); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db2, err := sqlite.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db2.Close()

	replayed := 0
	q2 := New(db2)
	q2.Register("spin", func(context.Context, []byte) error {
		replayed++
		return nil
	})
	stats, err := q2.Drain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Replayed != 1 || replayed != 1 {
		t.Errorf("stats = %+v replayed = %d, want the persisted action replayed once", stats, replayed)
	}
}

func decode(args []byte, v any) error {
	if len(args) == 0 {
		return errors.New("empty args")
	}
	return json.Unmarshal(args, v)
}
