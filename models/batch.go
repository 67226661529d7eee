package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrWindowGap is returned when a window would leave targets between the
// recorded rows and the window without a row.
var ErrWindowGap = errors.New("window start leaves unrecorded targets")

// Target is one input URL with its position in the input file.
type Target struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
}

// BatchProgress is the single source of truth for a run. Records[i] belongs
// to the target at FirstIndex+i; LastCompletedIndex is the highest input
// index recorded. Rows are replaced or appended during a run, never removed.
type BatchProgress struct {
	FirstIndex         int                `json:"first_index"`
	LastCompletedIndex int                `json:"last_completed_index"`
	Records            []EngagementRecord `json:"-"`
}

// NewBatchProgress creates empty progress for a window starting at start.
func NewBatchProgress(start int) *BatchProgress {
	return &BatchProgress{FirstIndex: start, LastCompletedIndex: start - 1}
}

// Append records the outcome for the target at index.
func (p *BatchProgress) Append(index int, r EngagementRecord) {
	p.Records = append(p.Records, r)
	p.LastCompletedIndex = index
}

// ResumeAt prepares loaded progress for a window starting at start. Rows
// already recorded are kept; the window overwrites the rows it revisits and
// appends past the end. Empty progress is rebased to start. A start before
// FirstIndex or past the end of the recorded rows is rejected, since either
// would leave targets without a row.
func (p *BatchProgress) ResumeAt(start int) error {
	if len(p.Records) == 0 {
		*p = *NewBatchProgress(start)
		return nil
	}
	end := p.FirstIndex + len(p.Records)
	if start < p.FirstIndex || start > end {
		return fmt.Errorf("%w: output covers [%d, %d), window starts at %d", ErrWindowGap, p.FirstIndex, end, start)
	}
	return nil
}

// Put records the outcome for the target at index, replacing an earlier row
// for the same target. index may be at most one past the last row.
func (p *BatchProgress) Put(index int, r EngagementRecord) error {
	i := index - p.FirstIndex
	switch {
	case i >= 0 && i < len(p.Records):
		p.Records[i] = r
	case i == len(p.Records):
		p.Records = append(p.Records, r)
	default:
		return fmt.Errorf("%w: index %d outside [%d, %d]", ErrWindowGap, index, p.FirstIndex, p.FirstIndex+len(p.Records))
	}
	p.LastCompletedIndex = max(p.LastCompletedIndex, index)
	return nil
}

// Checkpoint is the sidecar persisted next to the output file.
type Checkpoint struct {
	FirstIndex         int       `json:"first_index"`
	LastCompletedIndex int       `json:"last_completed_index"`
	Rows               int       `json:"rows"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ProgressStats is a point-in-time summary of a running batch, served by the
// status endpoint.
type ProgressStats struct {
	State              string `json:"state"`
	WindowStart        int    `json:"window_start"`
	WindowEnd          int    `json:"window_end"`
	LastCompletedIndex int    `json:"last_completed_index"`
	Processed          int    `json:"processed"`
	Succeeded          int    `json:"succeeded"`
	Partial            int    `json:"partial"`
	Failed             int    `json:"failed"`
	CacheHits          int    `json:"cache_hits"`
	Saved              int    `json:"saved"`
}
