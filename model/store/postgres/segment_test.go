package postgres

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"relate/model/model"
)

func segmentRowColumns() []string {
	return []string{"project_id", "id", "name", "description", "color", "icon",
		"kind", "combinator", "predicates", "member_count", "last_calculated_at",
		"is_active", "created_at", "updated_at"}
}

func dynamicSegmentRow(projectID int64, segmentID string, memberCount int64,
	combinator, predicatesJSON string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(segmentRowColumns()).
		AddRow(projectID, segmentID, "Leads", "", "", "", model.SegmentKindDynamic,
			combinator, []byte(predicatesJSON), memberCount, nil, true, now, now)
}

func TestCreateSegmentValidation(t *testing.T) {
	store, _ := setupTestStore(t)

	// Invalid project.
	_, errCode, err := store.CreateSegment(0, &model.SegmentPayload{Name: "Leads"})
	assert.Equal(t, http.StatusBadRequest, errCode)
	assert.NotNil(t, err)

	// Missing name.
	_, errCode, err = store.CreateSegment(1, &model.SegmentPayload{
		Predicates: []model.SegmentPredicate{
			{Field: model.FieldStatus, Operator: model.EqualsOpStr, Value: "lead"}},
	})
	assert.Equal(t, http.StatusBadRequest, errCode)
	assert.NotNil(t, err)

	// Dynamic segment with no predicates would compile to an always-true
	// condition. Rejected at creation.
	_, errCode, err = store.CreateSegment(1, &model.SegmentPayload{Name: "Everyone"})
	assert.Equal(t, http.StatusBadRequest, errCode)
	assert.NotNil(t, err)

	// Unsupported combinator.
	_, errCode, err = store.CreateSegment(1, &model.SegmentPayload{
		Name:       "Leads",
		Combinator: "xor",
		Predicates: []model.SegmentPredicate{
			{Field: model.FieldStatus, Operator: model.EqualsOpStr, Value: "lead"}},
	})
	assert.Equal(t, http.StatusBadRequest, errCode)
	assert.NotNil(t, err)

	// Unsafe custom field key surfaces at creation, not at calculation.
	_, errCode, err = store.CreateSegment(1, &model.SegmentPayload{
		Name: "Gold plans",
		Predicates: []model.SegmentPredicate{
			{Field: model.FieldCustomField, Operator: model.EqualsOpStr,
				Value: "gold", CustomFieldKey: "bad'key"}},
	})
	assert.Equal(t, http.StatusBadRequest, errCode)
	assert.NotNil(t, err)

	// Invalid kind.
	_, errCode, err = store.CreateSegment(1, &model.SegmentPayload{
		Name: "Leads",
		Kind: "computed",
		Predicates: []model.SegmentPredicate{
			{Field: model.FieldStatus, Operator: model.EqualsOpStr, Value: "lead"}},
	})
	assert.Equal(t, http.StatusBadRequest, errCode)
	assert.NotNil(t, err)
}

func TestGetAllSegments(t *testing.T) {
	store, mock := setupTestStore(t)

	rows := sqlmock.NewRows(segmentRowColumns())
	now := time.Now().UTC()
	rows.AddRow(int64(1), "seg-a", "Churn risk", "", "", "", model.SegmentKindDynamic,
		model.CombinatorAnd, []byte(`[]`), int64(3), nil, true, now, now)
	rows.AddRow(int64(1), "seg-b", "Leads", "", "", "", model.SegmentKindDynamic,
		model.CombinatorAnd, []byte(`[]`), int64(10), nil, true, now, now)

	mock.ExpectQuery(`SELECT (.+) FROM "segments"`).
		WithArgs(int64(1)).
		WillReturnRows(rows)

	segments, errCode := store.GetAllSegments(1)
	assert.Equal(t, http.StatusFound, errCode)
	assert.Len(t, segments, 2)
	assert.Equal(t, "Churn risk", segments[0].Name)

	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestGetSegmentById(t *testing.T) {
	store, mock := setupTestStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM "segments"`).
		WithArgs(int64(1), "seg-1").
		WillReturnRows(dynamicSegmentRow(1, "seg-1", 10, model.CombinatorAnd,
			`[{"field":"status","operator":"equals","value":"lead"}]`))

	segment, errCode := store.GetSegmentById(1, "seg-1")
	assert.Equal(t, http.StatusFound, errCode)
	assert.Equal(t, "seg-1", segment.Id)
	assert.Equal(t, int64(10), segment.MemberCount)
	assert.Equal(t, model.SegmentKindDynamic, segment.Kind)

	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestGetSegmentByIdNotFound(t *testing.T) {
	store, mock := setupTestStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM "segments"`).
		WithArgs(int64(1), "missing").
		WillReturnRows(sqlmock.NewRows(segmentRowColumns()))

	segment, errCode := store.GetSegmentById(1, "missing")
	assert.Equal(t, http.StatusNotFound, errCode)
	assert.Nil(t, segment)
}

func TestGetSegmentByIdInvalidParams(t *testing.T) {
	store, _ := setupTestStore(t)

	_, errCode := store.GetSegmentById(0, "seg-1")
	assert.Equal(t, http.StatusBadRequest, errCode)

	_, errCode = store.GetSegmentById(1, "")
	assert.Equal(t, http.StatusBadRequest, errCode)
}

// A cosmetic rename must not trigger recalculation.
func TestUpdateSegmentByIdRename(t *testing.T) {
	store, mock := setupTestStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM "segments"`).
		WithArgs(int64(1), "seg-1").
		WillReturnRows(dynamicSegmentRow(1, "seg-1", 10, model.CombinatorAnd,
			`[{"field":"status","operator":"equals","value":"lead"}]`))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "segments" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT (.+) FROM "segments"`).
		WithArgs(int64(1), "seg-1").
		WillReturnRows(dynamicSegmentRow(1, "seg-1", 10, model.CombinatorAnd,
			`[{"field":"status","operator":"equals","value":"lead"}]`))

	segment, errCode, err := store.UpdateSegmentById(1, "seg-1",
		model.SegmentPayload{Name: "Hot leads"})
	assert.Nil(t, err)
	assert.Equal(t, http.StatusOK, errCode)
	assert.NotNil(t, segment)

	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestUpdateSegmentByIdRejectsInvalidCombinator(t *testing.T) {
	store, mock := setupTestStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM "segments"`).
		WithArgs(int64(1), "seg-1").
		WillReturnRows(dynamicSegmentRow(1, "seg-1", 10, model.CombinatorAnd,
			`[{"field":"status","operator":"equals","value":"lead"}]`))

	_, errCode, err := store.UpdateSegmentById(1, "seg-1", model.SegmentPayload{
		Combinator: "xor",
		Predicates: []model.SegmentPredicate{
			{Field: model.FieldStatus, Operator: model.EqualsOpStr, Value: "lead"}},
	})
	assert.Equal(t, http.StatusBadRequest, errCode)
	assert.NotNil(t, err)
}

func TestGetSegmentHistory(t *testing.T) {
	store, mock := setupTestStore(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "project_id", "segment_id",
		"member_count", "added_delta", "removed_delta", "calculated_at"}).
		AddRow(int64(2), int64(1), "seg-1", int64(7), int64(0), int64(3), now).
		AddRow(int64(1), int64(1), "seg-1", int64(10), int64(10), int64(0), now.Add(-time.Hour))

	mock.ExpectQuery(`SELECT (.+) FROM "segment_histories"`).
		WithArgs(int64(1), "seg-1").
		WillReturnRows(rows)

	snapshots, errCode := store.GetSegmentHistory(1, "seg-1", 0)
	assert.Equal(t, http.StatusFound, errCode)
	assert.Len(t, snapshots, 2)
	// Newest first.
	assert.Equal(t, int64(7), snapshots[0].MemberCount)
	assert.Equal(t, int64(3), snapshots[0].RemovedDelta)

	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestGetSegmentHistoryInvalidParams(t *testing.T) {
	store, _ := setupTestStore(t)

	_, errCode := store.GetSegmentHistory(0, "seg-1", 10)
	assert.Equal(t, http.StatusBadRequest, errCode)

	_, errCode = store.GetSegmentHistory(1, "", 10)
	assert.Equal(t, http.StatusBadRequest, errCode)
}

// Deleting a segment removes its history snapshots in the same transaction.
func TestDeleteSegmentByIdCascadesHistory(t *testing.T) {
	store, mock := setupTestStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "segment_histories"`).
		WithArgs(int64(1), "seg-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM "segments"`).
		WithArgs(int64(1), "seg-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	errCode, err := store.DeleteSegmentById(1, "seg-1")
	assert.Equal(t, http.StatusOK, errCode)
	assert.Nil(t, err)

	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestDeleteSegmentByIdInvalidParams(t *testing.T) {
	store, _ := setupTestStore(t)

	errCode, _ := store.DeleteSegmentById(0, "seg-1")
	assert.Equal(t, http.StatusBadRequest, errCode)

	errCode, _ = store.DeleteSegmentById(1, "")
	assert.Equal(t, http.StatusBadRequest, errCode)
}
