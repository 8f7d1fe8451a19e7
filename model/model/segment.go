package model

import (
	"time"

	"github.com/jinzhu/gorm/dialects/postgres"
)

// Segment kinds. Dynamic segments are recomputed from predicates on every
// calculation. Static segments carry a manually curated member id list and
// never go through the filter compiler.
const (
	SegmentKindDynamic = "dynamic"
	SegmentKindStatic  = "static"
)

// Combinators. Applied uniformly across all predicates of a segment,
// no nested grouping.
const (
	CombinatorAnd = "and"
	CombinatorOr  = "or"
)

// Logical filter fields. Closed catalog, anything outside it is skipped
// during compilation.
const (
	FieldStatus        = "status"
	FieldEmail         = "email"
	FieldPhone         = "phone"
	FieldCompany       = "company"
	FieldAssignedTo    = "assigned_to"
	FieldCreatedAt     = "created_at"
	FieldTags          = "tags"
	FieldActivity      = "activity"
	FieldDealStage     = "deal_stage"
	FieldBookingStatus = "booking_status"
	FieldCampaignEmail = "campaign_email"
	FieldCustomField   = "custom_field"
)

// Filter operators.
const (
	EqualsOpStr     = "equals"
	NotEqualsOpStr  = "notEquals"
	InListOpStr     = "in"
	ContainsOpStr   = "contains"
	EndsWithOpStr   = "endsWith"
	IsEmptyOpStr    = "isEmpty"
	IsNotEmptyOpStr = "isNotEmpty"
	BetweenOpStr    = "between"
	InLastOpStr     = "inLast"
	NotInLastOpStr  = "notInLast"

	HasAnyOpStr  = "has_any"
	HasAllOpStr  = "has_all"
	HasNoneOpStr = "has_none"

	OpenedInLastOpStr  = "openedInLast"
	ClickedInLastOpStr = "clickedInLast"
)

// Field value types exposed on the field catalog.
const (
	FieldTypeCategorical = "categorical"
	FieldTypeText        = "text"
	FieldTypeDatetime    = "datetime"
	FieldTypeNumerical   = "numerical"
	FieldTypeMultiSelect = "multi_select"
)

// SegmentPredicate One filter term of a segment definition. Value is typed per
// field/operator combination: scalar for comparisons, array for set membership,
// {start, end} object for date ranges, day count for trailing windows.
// CustomFieldKey is set only for FieldCustomField and names a key inside the
// contact's open attributes document.
type SegmentPredicate struct {
	Field          string      `json:"field"`
	Operator       string      `json:"operator"`
	Value          interface{} `json:"value"`
	CustomFieldKey string      `json:"custom_field_key,omitempty"`
}

type Segment struct {
	ProjectID        int64           `gorm:"primary_key:true" json:"project_id"`
	Id               string          `gorm:"primary_key:true" json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Color            string          `json:"color"`
	Icon             string          `json:"icon"`
	Kind             string          `json:"kind"`
	Combinator       string          `json:"combinator"`
	Predicates       *postgres.Jsonb `json:"predicates"`
	StaticMemberIds  *postgres.Jsonb `json:"static_member_ids,omitempty"`
	MemberCount      int64           `json:"member_count"`
	LastCalculatedAt *time.Time      `json:"last_calculated_at"`
	IsActive         bool            `json:"is_active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type SegmentPayload struct {
	Name            string             `json:"name"`
	Description     string             `json:"description"`
	Color           string             `json:"color"`
	Icon            string             `json:"icon"`
	Kind            string             `json:"kind"`
	Combinator      string             `json:"combinator"`
	Predicates      []SegmentPredicate `json:"predicates"`
	StaticMemberIds []string           `json:"static_member_ids,omitempty"`
}

type SegmentResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SegmentPreviewResult Live-authoring feedback: count plus a small bounded
// sample. Never persisted.
type SegmentPreviewResult struct {
	Count  int64     `json:"count"`
	Sample []Contact `json:"sample"`
}

type PaginationMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

type SegmentMembersResult struct {
	Contacts   []Contact      `json:"contacts"`
	Pagination PaginationMeta `json:"pagination"`
}

func IsValidCombinator(combinator string) bool {
	return combinator == CombinatorAnd || combinator == CombinatorOr
}

func IsValidSegmentKind(kind string) bool {
	return kind == SegmentKindDynamic || kind == SegmentKindStatic
}
