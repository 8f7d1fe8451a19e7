package model

// FieldDescriptor One entry of the static filter field catalog exposed to
// segment authoring UIs.
type FieldDescriptor struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	Type      string   `json:"type"`
	Operators []string `json:"operators"`
}

type FieldOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// SegmentFieldsDescription Field catalog composed with the tenant-specific
// option lists used to populate dynamic predicate choices.
type SegmentFieldsDescription struct {
	Fields               []FieldDescriptor `json:"fields"`
	TagOptions           []FieldOption     `json:"tag_options"`
	UserOptions          []FieldOption     `json:"user_options"`
	PipelineStageOptions []FieldOption     `json:"pipeline_stage_options"`
}
