package query

import (
	"errors"
	"slices"
)

var (
	// ErrNotFound is returned when no record carries the requested id.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateID is returned when inserting a record whose id is taken.
	ErrDuplicateID = errors.New("duplicate record id")
)

// Insert returns a new collection with rec appended. The stored order is not
// re-sorted; consumers order at query time.
func Insert[T Record](coll []T, rec T) ([]T, error) {
	if _, ok := FindByID(coll, rec.RecordID()); ok {
		return coll, ErrDuplicateID
	}
	out := make([]T, 0, len(coll)+1)
	out = append(out, coll...)
	return append(out, rec), nil
}

// Replace applies fn to the record with the given id and returns a new
// collection containing the result in the same position, plus the updated
// record. If the id is missing, or fn fails, or fn changes the record id, the
// original collection is returned untouched along with the error.
func Replace[T Record](coll []T, id string, fn func(T) (T, error)) ([]T, T, error) {
	var zero T
	i := slices.IndexFunc(coll, func(r T) bool { return r.RecordID() == id })
	if i < 0 {
		return coll, zero, ErrNotFound
	}
	updated, err := fn(coll[i])
	if err != nil {
		return coll, zero, err
	}
	if updated.RecordID() != id {
		return coll, zero, errors.New("record id is immutable")
	}
	out := slices.Clone(coll)
	out[i] = updated
	return out, updated, nil
}

// Remove returns a new collection without the record carrying id, keeping
// the order of the remaining records, plus the removed record.
func Remove[T Record](coll []T, id string) ([]T, T, error) {
	var zero T
	i := slices.IndexFunc(coll, func(r T) bool { return r.RecordID() == id })
	if i < 0 {
		return coll, zero, ErrNotFound
	}
	removed := coll[i]
	out := make([]T, 0, len(coll)-1)
	out = append(out, coll[:i]...)
	out = append(out, coll[i+1:]...)
	return out, removed, nil
}

// RemoveWhere returns a new collection without the records for which drop
// reports true, and the number removed.
func RemoveWhere[T Record](coll []T, drop func(T) bool) ([]T, int) {
	out := make([]T, 0, len(coll))
	for _, r := range coll {
		if !drop(r) {
			out = append(out, r)
		}
	}
	return out, len(coll) - len(out)
}
