package postgres

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	C "relate/config"
	"relate/filters"
	"relate/model/model"
	U "relate/util"
)

const previewSampleLimit = 5

const defaultMembersPageSize = 20
const maxMembersPageSize = 100

const contactSelectColumns = "contacts.id, contacts.project_id, contacts.first_name," +
	" contacts.last_name, contacts.email, contacts.phone, contacts.company," +
	" contacts.status, contacts.assigned_to, contacts.created_at"

// buildContactsWhere Compiles the predicate list and embeds it after the
// mandatory tenant scope, which binds $1. Compiler and embedder own all
// placeholder numbering past that point.
func buildContactsWhere(projectID int64, predicates []model.SegmentPredicate,
	combinator string) (string, []interface{}, error) {

	compiled, err := filters.CompileAll(predicates, combinator)
	if err != nil {
		return "", nil, err
	}

	embedded := filters.Embed(compiled, 1)
	whereStmnt := "contacts.project_id = $1 AND contacts.is_deleted = false AND " + embedded.SQL

	params := make([]interface{}, 0, len(embedded.Params)+1)
	params = append(params, projectID)
	params = append(params, embedded.Params...)
	return whereStmnt, params, nil
}

func buildStaticContactsWhere(projectID int64, memberIds []string) (string, []interface{}) {
	whereStmnt := "contacts.project_id = $1 AND contacts.is_deleted = false AND contacts.id = ANY($2)"
	return whereStmnt, []interface{}{projectID, pq.Array(memberIds)}
}

func (store *Postgres) execCountQuery(whereStmnt string, params []interface{}) (int64, error) {
	db := C.GetServices().Db

	stmnt := "SELECT COUNT(*) FROM contacts WHERE " + whereStmnt
	var count int64
	if err := db.DB().QueryRow(stmnt, params...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed executing contacts count query")
	}
	return count, nil
}

func (store *Postgres) execContactsQuery(stmnt string, params []interface{}) ([]model.Contact, error) {
	db := C.GetServices().Db

	rows, err := db.DB().Query(stmnt, params...)
	if err != nil {
		return nil, errors.Wrap(err, "failed executing contacts query")
	}
	defer rows.Close()

	contacts := make([]model.Contact, 0)
	for rows.Next() {
		var contact model.Contact
		var firstName, lastName, email, phone, company, status, assignedTo sql.NullString
		if err := rows.Scan(&contact.ID, &contact.ProjectID, &firstName, &lastName,
			&email, &phone, &company, &status, &assignedTo, &contact.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed reading contact row")
		}

		contact.FirstName = firstName.String
		contact.LastName = lastName.String
		contact.Email = email.String
		contact.Phone = phone.String
		contact.Company = company.String
		contact.Status = status.String
		contact.AssignedTo = assignedTo.String
		contacts = append(contacts, contact)
	}

	return contacts, rows.Err()
}

// PreviewSegment Compiles and executes a count plus a small bounded sample
// without touching the store. Partially-invalid predicate lists degrade
// through the skip policy instead of raising.
func (store *Postgres) PreviewSegment(projectID int64, predicates []model.SegmentPredicate,
	combinator string) (*model.SegmentPreviewResult, int, error) {
	logFields := log.Fields{
		"project_id": projectID,
		"combinator": combinator,
	}
	defer U.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	if projectID == 0 {
		logCtx.Error("Failed to preview segment. Invalid projectID.")
		return nil, http.StatusBadRequest, errors.New("segment preview failed. invalid project_id")
	}

	whereStmnt, params, err := buildContactsWhere(projectID, predicates, combinator)
	if err != nil {
		logCtx.WithError(err).Error("Failed to compile segment predicates for preview.")
		return nil, http.StatusBadRequest, err
	}

	count, err := store.execCountQuery(whereStmnt, params)
	if err != nil {
		logCtx.WithError(err).Error("Failed executing preview count query.")
		return nil, http.StatusServiceUnavailable, err
	}

	sampleStmnt := fmt.Sprintf("SELECT %s FROM contacts WHERE %s ORDER BY contacts.created_at DESC LIMIT %d",
		contactSelectColumns, whereStmnt, previewSampleLimit)
	sample, err := store.execContactsQuery(sampleStmnt, params)
	if err != nil {
		logCtx.WithError(err).Error("Failed executing preview sample query.")
		return nil, http.StatusServiceUnavailable, err
	}

	return &model.SegmentPreviewResult{Count: count, Sample: sample}, http.StatusOK, nil
}

// CalculateSegment Recomputes the member count from the current definition,
// appends one history snapshot with the drift against the previous count, and
// updates the stored count and timestamp. Snapshot and count update commit in
// one transaction. Safe to call repeatedly: the stored count converges, every
// call appends a history row for the audit trail.
func (store *Postgres) CalculateSegment(projectID int64, segmentID string) (*model.Segment, int, error) {
	logFields := log.Fields{
		"project_id": projectID,
		"segment_id": segmentID,
	}
	defer U.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	segment, errCode := store.GetSegmentById(projectID, segmentID)
	if errCode != http.StatusFound {
		return nil, errCode, errors.New("segment calculation failed. segment not found")
	}

	whereStmnt, params, errCode, err := store.buildSegmentWhere(segment)
	if err != nil {
		logCtx.WithError(err).Error("Failed to compile segment definition for calculation.")
		return nil, errCode, err
	}

	count, err := store.execCountQuery(whereStmnt, params)
	if err != nil {
		logCtx.WithError(err).Error("Failed executing segment count query.")
		return nil, http.StatusServiceUnavailable, err
	}

	previousCount := segment.MemberCount
	addedDelta := count - previousCount
	if addedDelta < 0 {
		addedDelta = 0
	}
	removedDelta := previousCount - count
	if removedDelta < 0 {
		removedDelta = 0
	}
	calculatedAt := U.TimeNowZ()

	db := C.GetServices().Db
	tx, err := db.DB().Begin()
	if err != nil {
		logCtx.WithError(err).Error("Failed to begin transaction on segment calculation.")
		return nil, http.StatusServiceUnavailable, err
	}

	_, err = tx.Exec("UPDATE segments SET member_count = $1, last_calculated_at = $2,"+
		" updated_at = $2 WHERE project_id = $3 AND id = $4",
		count, calculatedAt, projectID, segmentID)
	if err == nil {
		_, err = tx.Exec("INSERT INTO segment_histories"+
			" (project_id, segment_id, member_count, added_delta, removed_delta, calculated_at)"+
			" VALUES ($1, $2, $3, $4, $5, $6)",
			projectID, segmentID, count, addedDelta, removedDelta, calculatedAt)
	}
	if err != nil {
		tx.Rollback()
		logCtx.WithError(err).Error("Failed writing segment calculation. Rolled back.")
		return nil, http.StatusInternalServerError, err
	}
	if err := tx.Commit(); err != nil {
		logCtx.WithError(err).Error("Failed to commit segment calculation.")
		return nil, http.StatusInternalServerError, err
	}

	segment.MemberCount = count
	segment.LastCalculatedAt = &calculatedAt
	segment.UpdatedAt = calculatedAt
	return segment, http.StatusOK, nil
}

// ListSegmentMembers Current membership of a stored segment with limit/offset
// pagination and a parallel count for the total.
func (store *Postgres) ListSegmentMembers(projectID int64, segmentID string,
	page, pageSize int) (*model.SegmentMembersResult, int, error) {
	logFields := log.Fields{
		"project_id": projectID,
		"segment_id": segmentID,
		"page":       page,
	}
	defer U.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	segment, errCode := store.GetSegmentById(projectID, segmentID)
	if errCode != http.StatusFound {
		return nil, errCode, errors.New("segment members listing failed. segment not found")
	}

	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultMembersPageSize
	}
	if pageSize > maxMembersPageSize {
		pageSize = maxMembersPageSize
	}

	whereStmnt, params, errCode, err := store.buildSegmentWhere(segment)
	if err != nil {
		logCtx.WithError(err).Error("Failed to compile segment definition for members listing.")
		return nil, errCode, err
	}

	total, err := store.execCountQuery(whereStmnt, params)
	if err != nil {
		logCtx.WithError(err).Error("Failed executing members count query.")
		return nil, http.StatusServiceUnavailable, err
	}

	pageStmnt := fmt.Sprintf("SELECT %s FROM contacts WHERE %s"+
		" ORDER BY contacts.created_at DESC LIMIT $%d OFFSET $%d",
		contactSelectColumns, whereStmnt, len(params)+1, len(params)+2)
	pageParams := append(params, pageSize, (page-1)*pageSize)

	contacts, err := store.execContactsQuery(pageStmnt, pageParams)
	if err != nil {
		logCtx.WithError(err).Error("Failed executing members page query.")
		return nil, http.StatusServiceUnavailable, err
	}

	totalPages := (total + int64(pageSize) - 1) / int64(pageSize)
	return &model.SegmentMembersResult{
		Contacts: contacts,
		Pagination: model.PaginationMeta{
			Page:       page,
			Limit:      pageSize,
			Total:      total,
			TotalPages: totalPages,
		},
	}, http.StatusOK, nil
}

// buildSegmentWhere Resolves a stored segment to its tenant-scoped where
// clause. Dynamic segments go through the filter compiler; static segments are
// a plain membership list.
func (store *Postgres) buildSegmentWhere(segment *model.Segment) (string, []interface{}, int, error) {
	if segment.Kind == model.SegmentKindStatic {
		memberIds, err := decodeStaticMemberIds(segment)
		if err != nil {
			return "", nil, http.StatusInternalServerError, err
		}
		whereStmnt, params := buildStaticContactsWhere(segment.ProjectID, memberIds)
		return whereStmnt, params, http.StatusOK, nil
	}

	predicates, err := decodeSegmentPredicates(segment)
	if err != nil {
		return "", nil, http.StatusInternalServerError, err
	}

	whereStmnt, params, err := buildContactsWhere(segment.ProjectID, predicates, segment.Combinator)
	if err != nil {
		return "", nil, http.StatusBadRequest, err
	}
	return whereStmnt, params, http.StatusOK, nil
}

func decodeSegmentPredicates(segment *model.Segment) ([]model.SegmentPredicate, error) {
	var predicates []model.SegmentPredicate
	if err := U.DecodePostgresJsonbToStructType(segment.Predicates, &predicates); err != nil {
		return nil, errors.Wrap(err, "unable to decode segment predicates")
	}
	return predicates, nil
}

func decodeStaticMemberIds(segment *model.Segment) ([]string, error) {
	memberIds := make([]string, 0)
	if err := U.DecodePostgresJsonbToStructType(segment.StaticMemberIds, &memberIds); err != nil {
		return nil, errors.Wrap(err, "unable to decode static member ids")
	}
	return memberIds, nil
}
