package gormstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-messages-api/internal/domain"
)

func newTestDB(t *testing.T, migrate bool) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("gormstore_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	db.Exec("PRAGMA busy_timeout=5000;")
	if migrate {
		if err := AutoMigrate(db); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func msg(id string, at time.Time, text string) domain.Message {
	return domain.Message{ID: id, ThreadID: "t1", Sender: domain.SenderUser, Text: text, CreatedAt: at, UpdatedAt: at}
}

func TestOpenSQLite_ErrorOnBadPath(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "does-not-exist", "app.db")
	db, err := OpenSQLite(bad)
	if err == nil || db != nil {
		t.Fatalf("expected error opening %q, got db=%v err=%v", bad, db, err)
	}
	lower := strings.ToLower(err.Error())
	if !(os.IsNotExist(err) ||
		strings.Contains(lower, "unable to open database file") ||
		strings.Contains(lower, "no such file or directory")) {
		t.Fatalf("unexpected error opening %q: %v", bad, err)
	}
}

func TestOpenSQLite_PragmasAndMigrate(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	var journalMode string
	if err := db.Raw("PRAGMA journal_mode;").Row().Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if strings.ToLower(journalMode) != "wal" {
		t.Fatalf("expected journal_mode=wal, got %q", journalMode)
	}
	if stats := sqlDB.Stats(); stats.MaxOpenConnections != 10 {
		t.Fatalf("expected MaxOpenConnections=10, got %d", stats.MaxOpenConnections)
	}

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, tbl := range []any{&domain.Thread{}, &domain.Message{}} {
		if !db.Migrator().HasTable(tbl) {
			t.Fatalf("expected table for %T", tbl)
		}
	}
}

func TestLoadAll_Error_NoTable(t *testing.T) {
	c := New[domain.Message](newTestDB(t, false))
	if _, err := c.LoadAll(context.Background()); err == nil {
		t.Fatalf("expected error when table missing")
	}
}

func TestLoadAll_EmptyIsNonNil(t *testing.T) {
	c := New[domain.Message](newTestDB(t, true))
	got, err := c.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestMutate_InsertUpdateDelete(t *testing.T) {
	ctx := context.Background()
	c := New[domain.Message](newTestDB(t, true))
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	// insert three
	err := c.Mutate(ctx, func(cur []domain.Message) ([]domain.Message, error) {
		return append(cur, msg("b", base.Add(time.Hour), "two"), msg("a", base, "one"), msg("c", base.Add(2*time.Hour), "three")), nil
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := c.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(got) != 3 || got[0].ID != "a" || got[1].ID != "b" || got[2].ID != "c" {
		t.Fatalf("unexpected order/content: %+v", got)
	}

	// update b, delete c
	err = c.Mutate(ctx, func(cur []domain.Message) ([]domain.Message, error) {
		out := make([]domain.Message, 0, len(cur))
		for _, m := range cur {
			switch m.ID {
			case "b":
				m.Text = "TWO"
				out = append(out, m)
			case "c":
			default:
				out = append(out, m)
			}
		}
		return out, nil
	})
	if err != nil {
		t.Fatalf("update/delete: %v", err)
	}

	got, _ = c.LoadAll(ctx)
	if len(got) != 2 || got[1].ID != "b" || got[1].Text != "TWO" {
		t.Fatalf("unexpected after mutate: %+v", got)
	}
	if !got[1].CreatedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("created_at changed: %v", got[1].CreatedAt)
	}
}

func TestMutate_CallbackErrorRollsBack(t *testing.T) {
	ctx := context.Background()
	c := New[domain.Message](newTestDB(t, true))
	now := time.Now().UTC()
	if err := c.SaveAll(ctx, []domain.Message{msg("a", now, "keep")}); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	boom := errors.New("boom")
	err := c.Mutate(ctx, func(cur []domain.Message) ([]domain.Message, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v; want boom", err)
	}
	got, _ := c.LoadAll(ctx)
	if len(got) != 1 || got[0].Text != "keep" {
		t.Fatalf("collection changed on failed mutate: %+v", got)
	}
}

func TestSaveAll_ReplacesCollection(t *testing.T) {
	ctx := context.Background()
	c := New[domain.Thread](newTestDB(t, true))
	now := time.Now().UTC()

	first := []domain.Thread{{ID: "t1", Title: "a", CreatedAt: now}, {ID: "t2", Title: "b", CreatedAt: now.Add(time.Second)}}
	if err := c.SaveAll(ctx, first); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	if err := c.SaveAll(ctx, []domain.Thread{{ID: "t3", Title: "c", CreatedAt: now}}); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	got, _ := c.LoadAll(ctx)
	if len(got) != 1 || got[0].ID != "t3" {
		t.Fatalf("unexpected: %+v", got)
	}
}

func TestMutate_ConcurrentWritersDoNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	c := New[domain.Message](newTestDB(t, true))
	base := time.Now().UTC()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = c.Mutate(ctx, func(cur []domain.Message) ([]domain.Message, error) {
				return append(cur, msg(fmt.Sprintf("m%02d", i), base.Add(time.Duration(i)*time.Second), "x")), nil
			})
		}(i)
	}
	wg.Wait()

	got, err := c.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(got) != n {
		t.Fatalf("expected %d rows, got %d", n, len(got))
	}
}

func TestPing(t *testing.T) {
	c := New[domain.Message](newTestDB(t, true))
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
