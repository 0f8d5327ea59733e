package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tbourn/go-messages-api/internal/domain"
)

func TestMemory_LoadReturnsCopy(t *testing.T) {
	m := NewMemory(domain.Thread{ID: "t1", Title: "a"})
	got, _ := m.LoadAll(context.Background())
	got[0].Title = "mutated"

	again, _ := m.LoadAll(context.Background())
	if again[0].Title != "a" {
		t.Fatalf("LoadAll leaked internal slice")
	}
}

func TestMemory_MutateErrorKeepsState(t *testing.T) {
	m := NewMemory(domain.Thread{ID: "t1"})
	boom := errors.New("boom")
	err := m.Mutate(context.Background(), func(cur []domain.Thread) ([]domain.Thread, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	got, _ := m.LoadAll(context.Background())
	if len(got) != 1 {
		t.Fatalf("state changed: %+v", got)
	}
}

func TestMemory_CanceledContext(t *testing.T) {
	m := NewMemory[domain.Thread]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.LoadAll(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if err := m.SaveAll(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestInstrument_CountsOutcomes(t *testing.T) {
	c := Instrument[domain.Thread](NewMemory[domain.Thread](), "memory", "instrument_test")
	ctx := context.Background()

	_, _ = c.LoadAll(ctx)
	_ = c.SaveAll(ctx, []domain.Thread{{ID: "t", CreatedAt: time.Now()}})
	_ = c.Mutate(ctx, func([]domain.Thread) ([]domain.Thread, error) { return nil, errors.New("x") })
	_ = c.Ping(ctx)

	if got := testutil.ToFloat64(storeOps.WithLabelValues("memory", "instrument_test", "load_all", "ok")); got != 1 {
		t.Fatalf("load_all ok = %v", got)
	}
	if got := testutil.ToFloat64(storeOps.WithLabelValues("memory", "instrument_test", "mutate", "error")); got != 1 {
		t.Fatalf("mutate error = %v", got)
	}
	if n := testutil.CollectAndCount(storeLat); n == 0 {
		t.Fatalf("expected latency series")
	}
}
