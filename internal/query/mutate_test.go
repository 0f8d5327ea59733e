package query

import (
	"errors"
	"reflect"
	"testing"
)

func TestInsert_AppendsWithoutResorting(t *testing.T) {
	in := []rec{{id: "b", at: day(2)}}
	out, err := Insert(in, rec{id: "a", at: day(1)})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !reflect.DeepEqual(ids(out), []string{"b", "a"}) {
		t.Fatalf("order = %v", ids(out))
	}
	if len(in) != 1 {
		t.Fatalf("input mutated")
	}
}

func TestInsert_DuplicateID(t *testing.T) {
	in := sample()
	out, err := Insert(in, rec{id: "a"})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("err = %v; want ErrDuplicateID", err)
	}
	if len(out) != len(in) {
		t.Fatalf("collection changed on error")
	}
}

func TestReplace_UpdatesInPlaceKeepsOthers(t *testing.T) {
	in := sample()
	out, updated, err := Replace(in, "a", func(r rec) (rec, error) {
		r.text = "changed"
		return r, nil
	})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if updated.text != "changed" || out[0].text != "changed" || out[1].id != "b" {
		t.Fatalf("unexpected result: %+v", out)
	}
	if in[0].text != "hello world" {
		t.Fatalf("input mutated: %+v", in[0])
	}
}

func TestReplace_NotFoundLeavesCollection(t *testing.T) {
	in := sample()
	called := false
	out, _, err := Replace(in, "missing", func(r rec) (rec, error) {
		called = true
		return r, nil
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v; want ErrNotFound", err)
	}
	if called {
		t.Fatalf("callback must not run for a missing id")
	}
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("collection changed")
	}
}

func TestReplace_CallbackErrorAndIDChange(t *testing.T) {
	boom := errors.New("boom")
	in := sample()
	if _, _, err := Replace(in, "a", func(r rec) (rec, error) { return r, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v; want boom", err)
	}
	if _, _, err := Replace(in, "a", func(r rec) (rec, error) { r.id = "z"; return r, nil }); err == nil {
		t.Fatalf("expected error when id changes")
	}
}

func TestRemove(t *testing.T) {
	in := []rec{{id: "a"}, {id: "b"}, {id: "c"}}
	out, removed, err := Remove(in, "b")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if removed.id != "b" || !reflect.DeepEqual(ids(out), []string{"a", "c"}) {
		t.Fatalf("unexpected: removed=%v out=%v", removed.id, ids(out))
	}
	if _, _, err := Remove(out, "b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second remove err = %v; want ErrNotFound", err)
	}
}

func TestRemoveWhere(t *testing.T) {
	in := []rec{{id: "a", text: "x"}, {id: "b", text: "y"}, {id: "c", text: "x"}}
	out, n := RemoveWhere(in, func(r rec) bool { return r.text == "x" })
	if n != 2 || !reflect.DeepEqual(ids(out), []string{"b"}) {
		t.Fatalf("n=%d out=%v", n, ids(out))
	}
}
