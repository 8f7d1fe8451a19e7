package model

import "time"

// SegmentHistory Append-only audit record of a segment's computed size and its
// drift since the previous calculation. Deltas are one-dimensional drift of the
// scalar count, not a true set diff: AddedDelta and RemovedDelta are floored at
// zero and never both non-zero for the same row.
type SegmentHistory struct {
	ID           int64     `gorm:"primary_key:true;AUTO_INCREMENT" json:"id"`
	ProjectID    int64     `json:"project_id"`
	SegmentID    string    `json:"segment_id"`
	MemberCount  int64     `json:"member_count"`
	AddedDelta   int64     `json:"added_delta"`
	RemovedDelta int64     `json:"removed_delta"`
	CalculatedAt time.Time `json:"calculated_at"`
}
