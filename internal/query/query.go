// Package query implements the collection query engine: a pure pipeline that
// turns an in-memory snapshot of records plus caller-supplied parameters into
// a filtered, date-ordered, paginated page with a total count.
//
// The pipeline runs in a fixed order:
//
//  1. Filter     case-insensitive substring match on the record text
//  2. Sort       by creation time, ascending unless Sort is "-date" (stable)
//  3. Count      total = number of records after filtering
//  4. Paginate   [ (page-1)*limit, page*limit ) clamped to the filtered length
//
// Every stage is exported so callers can compose only the stages they need.
// No stage mutates its input slice, performs I/O, or keeps state; the engine
// is safe for concurrent use.
package query

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Record is the minimal view of a persisted item the engine needs.
type Record interface {
	// RecordID returns the stable unique identifier.
	RecordID() string
	// RecordText returns the free-text payload used by Filter.
	RecordText() string
	// RecordTime returns the immutable creation timestamp.
	RecordTime() time.Time
}

const (
	// SortAsc orders oldest first. It is the default.
	SortAsc = "date"
	// SortDesc orders newest first.
	SortDesc = "-date"
)

// Params configures a query. Zero values mean "use the default".
type Params struct {
	Search string
	Sort   string
	Page   int
	Limit  int
}

// Result is one page of a query together with pagination metadata.
// Total counts records after filtering and before pagination.
type Result[T Record] struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Data  []T `json:"data"`
}

// Normalize applies the lenient defaulting policy for a collection of n
// records: non-positive page becomes 1, non-positive limit becomes n (at
// least 1), and any sort value other than "-date" becomes "date". Search is
// passed through untouched.
func Normalize(p Params, n int) Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = max(n, 1)
	}
	if p.Sort != SortDesc {
		p.Sort = SortAsc
	}
	return p
}

// Run executes the full pipeline over records. The returned Page and Limit
// are the effective values after Normalize, never the raw input.
func Run[T Record](records []T, p Params) Result[T] {
	p = Normalize(p, len(records))

	filtered := Filter(records, p.Search)
	sorted := SortByDate(filtered, p.Sort == SortDesc)

	return Result[T]{
		Total: len(sorted),
		Page:  p.Page,
		Limit: p.Limit,
		Data:  Paginate(sorted, p.Page, p.Limit),
	}
}

// Filter returns the records whose lower-cased text contains the lower-cased
// search string. Only the empty string keeps every record; whitespace is
// matched like any other character. The result is always a new slice.
func Filter[T Record](records []T, search string) []T {
	if search == "" {
		return slices.Clone(records)
	}

	// cases.Caser keeps internal state; one per call.
	lower := cases.Lower(language.Und)
	needle := lower.String(search)

	out := make([]T, 0, len(records))
	for _, r := range records {
		if strings.Contains(lower.String(r.RecordText()), needle) {
			out = append(out, r)
		}
	}
	return out
}

// SortByDate returns a copy of records ordered by creation time. Records with
// equal timestamps keep their input order in both directions.
func SortByDate[T Record](records []T, desc bool) []T {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b T) int {
		if desc {
			return b.RecordTime().Compare(a.RecordTime())
		}
		return a.RecordTime().Compare(b.RecordTime())
	})
	return out
}

// Paginate returns the [ (page-1)*limit, page*limit ) window of records,
// clamped to the slice bounds. Pages past the end yield an empty, non-nil
// slice. page < 1 is treated as 1; limit < 1 yields an empty page.
func Paginate[T Record](records []T, page, limit int) []T {
	n := len(records)
	if page < 1 {
		page = 1
	}
	if limit < 1 || n == 0 {
		return []T{}
	}

	// (page-1)*limit may overflow for hostile input; compare by division first.
	if page-1 > (n-1)/limit {
		return []T{}
	}
	start := (page - 1) * limit
	end := n
	if limit < n-start {
		end = start + limit
	}
	return slices.Clone(records[start:end])
}

// FindByID returns the first record whose id matches. The boolean reports
// presence; absence is not an error at this layer.
func FindByID[T Record](records []T, id string) (T, bool) {
	for _, r := range records {
		if r.RecordID() == id {
			return r, true
		}
	}
	var zero T
	return zero, false
}
