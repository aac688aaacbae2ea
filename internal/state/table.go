// Package state holds the pure operations on the post table. The table is
// an ordered slice of records keyed by URL; every function returns a new
// slice and leaves its input untouched.
package state

import (
	"errors"
	"fmt"

	"github.com/pauljones0/fly4deals/internal/models"
)

var (
	ErrResponseSet = errors.New("response already set")
	ErrNoSuchRow   = errors.New("row index out of range")
)

// Merge appends the discovered posts whose URL is not yet in the table.
// It returns the merged table and the number of rows added.
func Merge(table, discovered []models.PostRecord) ([]models.PostRecord, int) {
	merged := clone(table, len(discovered))
	seen := make(map[string]bool, len(table)+len(discovered))
	for _, r := range table {
		seen[r.URL] = true
	}

	added := 0
	for _, r := range discovered {
		if seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		merged = append(merged, r)
		added++
	}
	return merged, added
}

// PendingExtraction lists rows that are unchecked and have no response yet.
func PendingExtraction(table []models.PostRecord) []int {
	var idx []int
	for i, r := range table {
		if !r.Checked && !r.Processed() {
			idx = append(idx, i)
		}
	}
	return idx
}

// PendingNotification lists rows that are unchecked and have a response.
func PendingNotification(table []models.PostRecord) []int {
	var idx []int
	for i, r := range table {
		if !r.Checked && r.Processed() {
			idx = append(idx, i)
		}
	}
	return idx
}

// WithResponse sets the response of row i. A response is written once.
func WithResponse(table []models.PostRecord, i int, deal models.Deal) ([]models.PostRecord, error) {
	if i < 0 || i >= len(table) {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchRow, i)
	}
	if table[i].Response != nil {
		return nil, fmt.Errorf("%w for %s", ErrResponseSet, table[i].URL)
	}
	out := clone(table, 0)
	out[i].Response = &deal
	return out, nil
}

// MarkChecked flags row i as notified. Marking an already checked row is a no-op.
func MarkChecked(table []models.PostRecord, i int) ([]models.PostRecord, error) {
	if i < 0 || i >= len(table) {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchRow, i)
	}
	out := clone(table, 0)
	out[i].Checked = true
	return out, nil
}

// CheckMonotonic verifies that next is a valid successor of prev: every URL
// of prev is still present, no checked flag went back to false and no
// response was removed or replaced.
func CheckMonotonic(prev, next []models.PostRecord) error {
	byURL := make(map[string]models.PostRecord, len(next))
	for _, r := range next {
		byURL[r.URL] = r
	}
	for _, old := range prev {
		cur, ok := byURL[old.URL]
		if !ok {
			return fmt.Errorf("row %s was removed", old.URL)
		}
		if old.Checked && !cur.Checked {
			return fmt.Errorf("row %s was unchecked", old.URL)
		}
		if old.Response != nil && (cur.Response == nil || !sameDeal(*old.Response, *cur.Response)) {
			return fmt.Errorf("response of row %s was overwritten", old.URL)
		}
	}
	return nil
}

// Summary counts rows by processing stage.
type Summary struct {
	Total     int
	Checked   int
	Extracted int
	Pending   int
}

func Summarize(table []models.PostRecord) Summary {
	s := Summary{Total: len(table)}
	for _, r := range table {
		if r.Checked {
			s.Checked++
		}
		if r.Processed() {
			s.Extracted++
		}
		if !r.Checked {
			s.Pending++
		}
	}
	return s
}

func clone(table []models.PostRecord, extra int) []models.PostRecord {
	out := make([]models.PostRecord, len(table), len(table)+extra)
	copy(out, table)
	return out
}

func sameDeal(a, b models.Deal) bool {
	if a.From != b.From || a.To != b.To || a.Price != b.Price || a.When != b.When || len(a.Airlines) != len(b.Airlines) {
		return false
	}
	for i := range a.Airlines {
		if a.Airlines[i] != b.Airlines[i] {
			return false
		}
	}
	return true
}
