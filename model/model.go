package model

import (
	"relate/model/model"
)

// Model - Interface of all methods to be implemented by the stores.
type Model interface {
	// segment
	CreateSegment(projectID int64, segmentPayload *model.SegmentPayload) (model.Segment, int, error)
	GetAllSegments(projectID int64) ([]model.Segment, int)
	GetSegmentById(projectID int64, segmentID string) (*model.Segment, int)
	GetSegmentByName(projectID int64, name string) (*model.Segment, int)
	UpdateSegmentById(projectID int64, segmentID string, segmentPayload model.SegmentPayload) (*model.Segment, int, error)
	DeleteSegmentById(projectID int64, segmentID string) (int, error)

	// segment_history
	GetSegmentHistory(projectID int64, segmentID string, limit int) ([]model.SegmentHistory, int)

	// segment_evaluator
	PreviewSegment(projectID int64, predicates []model.SegmentPredicate, combinator string) (*model.SegmentPreviewResult, int, error)
	CalculateSegment(projectID int64, segmentID string) (*model.Segment, int, error)
	ListSegmentMembers(projectID int64, segmentID string, page, pageSize int) (*model.SegmentMembersResult, int, error)

	// segment_metadata
	DescribeSegmentFields(projectID int64) (*model.SegmentFieldsDescription, int)
}
