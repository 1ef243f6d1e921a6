package grading

import "time"

const (
	DefaultHistoryLimit = 50
	DefaultDedupWindow  = time.Second
)

// Tracker keeps the most recent ChangeRecords, newest first.
type Tracker struct {
	records []ChangeRecord
	limit   int
	window  time.Duration
}

func NewTracker(limit int, window time.Duration) *Tracker {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if window < 0 {
		window = 0
	}
	return &Tracker{limit: limit, window: window}
}

// Track inserts rec at the front of the history, dropping the oldest records beyond the limit.
// rec is discarded (and false returned) when it repeats the previous record:
// same student, same type, less than the dedup window apart.
func (t *Tracker) Track(rec ChangeRecord) bool {
	if len(t.records) > 0 {
		prev := t.records[0]
		if prev.StudentName == rec.StudentName && prev.Type == rec.Type && absDuration(rec.Timestamp.Sub(prev.Timestamp)) < t.window {
			return false
		}
	}

	size := len(t.records) + 1
	if size > t.limit {
		size = t.limit
	}
	records := make([]ChangeRecord, 0, size)
	records = append(records, rec)
	records = append(records, t.records[:size-1]...)
	t.records = records
	return true
}

// Find returns the record tracked at ts for studentName.
func (t *Tracker) Find(ts time.Time, studentName string) (ChangeRecord, bool) {
	if i := t.index(ts, studentName); i >= 0 {
		return t.records[i], true
	}
	return ChangeRecord{}, false
}

// Remove drops the single record tracked at ts for studentName.
func (t *Tracker) Remove(ts time.Time, studentName string) bool {
	i := t.index(ts, studentName)
	if i < 0 {
		return false
	}
	records := make([]ChangeRecord, 0, len(t.records)-1)
	records = append(records, t.records[:i]...)
	records = append(records, t.records[i+1:]...)
	t.records = records
	return true
}

func (t *Tracker) index(ts time.Time, studentName string) int {
	for i, rec := range t.records {
		if rec.StudentName == studentName && rec.Timestamp.Equal(ts) {
			return i
		}
	}
	return -1
}

// Rewrite replaces every record with fn(record), keeping the order.
func (t *Tracker) Rewrite(fn func(rec ChangeRecord) ChangeRecord) {
	records := make([]ChangeRecord, len(t.records))
	for i, rec := range t.records {
		records[i] = fn(rec)
	}
	t.records = records
}

// Records returns a copy of the history, newest first.
func (t *Tracker) Records() []ChangeRecord {
	records := make([]ChangeRecord, len(t.records))
	copy(records, t.records)
	return records
}

func (t *Tracker) Len() int { return len(t.records) }

func (t *Tracker) Clear() { t.records = nil }

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
