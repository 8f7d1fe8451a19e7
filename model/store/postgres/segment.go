package postgres

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jinzhu/gorm"
	log "github.com/sirupsen/logrus"

	C "relate/config"
	"relate/filters"
	"relate/model/model"
	U "relate/util"
)

func (store *Postgres) CreateSegment(projectID int64, segmentPayload *model.SegmentPayload) (model.Segment, int, error) {
	logFields := log.Fields{
		"project_id": projectID,
		"name":       segmentPayload.Name,
	}
	defer U.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	if projectID == 0 {
		logCtx.Error("segment creation failed. invalid projectID")
		return model.Segment{}, http.StatusBadRequest, errors.New("segment creation failed. invalid project_id")
	}

	applySegmentPayloadDefaults(segmentPayload)
	if errCode, err := validateSegmentPayload(segmentPayload); err != nil {
		return model.Segment{}, errCode, err
	}

	if store.isDuplicateSegmentName(projectID, segmentPayload.Name) {
		logCtx.Error("segment creation failed. Duplicate Name")
		return model.Segment{}, http.StatusBadRequest, errors.New("segment creation failed. Duplicate Name")
	}

	predicatesJsonb, err := U.EncodeStructTypeToPostgresJsonb(segmentPayload.Predicates)
	if err != nil {
		logCtx.WithError(err).Error("Failed to encode segment predicates while segment creation")
		return model.Segment{}, http.StatusInternalServerError, err
	}

	segment := model.Segment{
		ProjectID:   projectID,
		Id:          U.GetUUID(),
		Name:        segmentPayload.Name,
		Description: segmentPayload.Description,
		Color:       segmentPayload.Color,
		Icon:        segmentPayload.Icon,
		Kind:        segmentPayload.Kind,
		Combinator:  segmentPayload.Combinator,
		Predicates:  predicatesJsonb,
		IsActive:    true,
		CreatedAt:   U.TimeNowZ(),
		UpdatedAt:   U.TimeNowZ(),
	}

	if segmentPayload.Kind == model.SegmentKindStatic {
		staticIdsJsonb, err := U.EncodeStructTypeToPostgresJsonb(segmentPayload.StaticMemberIds)
		if err != nil {
			logCtx.WithError(err).Error("Failed to encode static member ids while segment creation")
			return model.Segment{}, http.StatusInternalServerError, err
		}
		segment.StaticMemberIds = staticIdsJsonb
	}

	db := C.GetServices().Db
	dbx := db.Create(&segment)
	if dbx.Error != nil {
		if IsDuplicateRecordError(dbx.Error) {
			return model.Segment{}, http.StatusConflict, errors.New("failed to create a segment. Duplicate Record")
		}
		logCtx.WithError(dbx.Error).Error("Failed to create a segment.")
		return model.Segment{}, http.StatusInternalServerError, errors.New("failed to create a segment")
	}

	// Initial member count and first history row.
	calculated, errCode, err := store.CalculateSegment(projectID, segment.Id)
	if err != nil {
		logCtx.WithError(err).WithField("err_code", errCode).
			Warn("Failed to calculate segment after creation. Returning uncalculated segment.")
		return segment, http.StatusCreated, nil
	}

	return *calculated, http.StatusCreated, nil
}

func applySegmentPayloadDefaults(segmentPayload *model.SegmentPayload) {
	if segmentPayload.Kind == "" {
		segmentPayload.Kind = model.SegmentKindDynamic
	}
	if segmentPayload.Combinator == "" {
		segmentPayload.Combinator = model.CombinatorAnd
	}
}

// validateSegmentPayload An empty predicate set on a dynamic segment would
// compile to an always-true condition, so it is rejected here instead of
// silently matching every contact of the tenant.
func validateSegmentPayload(segmentPayload *model.SegmentPayload) (int, error) {
	if segmentPayload.Name == "" {
		return http.StatusBadRequest, errors.New("segment validation failed. Name Field Empty")
	}

	if !model.IsValidSegmentKind(segmentPayload.Kind) {
		return http.StatusBadRequest, fmt.Errorf("segment validation failed. invalid kind %s", segmentPayload.Kind)
	}

	if !model.IsValidCombinator(segmentPayload.Combinator) {
		return http.StatusBadRequest, fmt.Errorf("segment validation failed. invalid combinator %s", segmentPayload.Combinator)
	}

	if segmentPayload.Kind == model.SegmentKindDynamic {
		if len(segmentPayload.Predicates) == 0 {
			return http.StatusBadRequest, errors.New("segment validation failed. Predicates Empty")
		}

		// Surfaces custom field key rejections at creation time. Unknown
		// (field, operator) pairs still pass, by the skip policy.
		if _, err := filters.CompileAll(segmentPayload.Predicates, segmentPayload.Combinator); err != nil {
			return http.StatusBadRequest, err
		}
	}

	return http.StatusOK, nil
}

func (store *Postgres) isDuplicateSegmentName(projectID int64, name string) bool {
	segments, _ := store.GetAllSegments(projectID)
	for _, segment := range segments {
		if segment.Name == name {
			return true
		}
	}
	return false
}

func (store *Postgres) GetAllSegments(projectID int64) ([]model.Segment, int) {
	logFields := log.Fields{
		"project_id": projectID,
	}
	defer U.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	if projectID == 0 {
		logCtx.Error("Failed to get all segments by ProjectId. Invalid projectID.")
		return nil, http.StatusBadRequest
	}

	db := C.GetServices().Db
	var segments []model.Segment
	err := db.Table("segments").Where("project_id = ?", projectID).
		Order("name").Find(&segments).Error
	if err != nil {
		logCtx.WithError(err).Error("Failed while getting all segments by ProjectId.")
		return nil, http.StatusInternalServerError
	}

	return segments, http.StatusFound
}

func (store *Postgres) GetSegmentById(projectID int64, segmentID string) (*model.Segment, int) {
	logFields := log.Fields{
		"project_id": projectID,
		"id":         segmentID,
	}
	defer U.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	if projectID == 0 || segmentID == "" {
		logCtx.Error("Failed to get segment by ID. Invalid parameters.")
		return nil, http.StatusBadRequest
	}

	var segment model.Segment
	db := C.GetServices().Db
	err := db.Limit(1).Where("project_id = ? AND id = ?",
		projectID, segmentID).Find(&segment).Error
	if err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, http.StatusNotFound
		}

		logCtx.WithError(err).Error(
			"Failed at getting segment on GetSegmentById.")
		return nil, http.StatusInternalServerError
	}

	return &segment, http.StatusFound
}

// NOTE: used for testing only.
func (store *Postgres) GetSegmentByName(projectID int64, name string) (*model.Segment, int) {
	if projectID == 0 || name == "" {
		return nil, http.StatusBadRequest
	}

	var segment model.Segment
	db := C.GetServices().Db
	err := db.Limit(1).Where("project_id = ? AND name = ?",
		projectID, name).Find(&segment).Error
	if err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, http.StatusNotFound
		}

		return nil, http.StatusInternalServerError
	}

	return &segment, http.StatusFound
}

// UpdateSegmentById Predicates are replaced wholesale, never patched. A change
// to predicates or combinator triggers recalculation of the member count.
func (store *Postgres) UpdateSegmentById(projectID int64, segmentID string,
	segmentPayload model.SegmentPayload) (*model.Segment, int, error) {
	logFields := log.Fields{
		"project_id": projectID,
		"id":         segmentID,
		"name":       segmentPayload.Name,
	}
	defer U.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	if projectID == 0 || segmentID == "" {
		logCtx.Error("Failed to update segment by ID. Invalid parameters.")
		return nil, http.StatusBadRequest, fmt.Errorf("failed to update segment. Invalid parameters")
	}

	existing, errCode := store.GetSegmentById(projectID, segmentID)
	if errCode != http.StatusFound {
		return nil, errCode, fmt.Errorf("failed to update segment. Not found")
	}

	var updatedFields model.Segment
	if segmentPayload.Name != "" {
		updatedFields.Name = segmentPayload.Name
	}
	if segmentPayload.Description != "" {
		updatedFields.Description = segmentPayload.Description
	}
	if segmentPayload.Color != "" {
		updatedFields.Color = segmentPayload.Color
	}
	if segmentPayload.Icon != "" {
		updatedFields.Icon = segmentPayload.Icon
	}

	definitionChanged := len(segmentPayload.Predicates) > 0 ||
		(segmentPayload.Combinator != "" && segmentPayload.Combinator != existing.Combinator)

	if definitionChanged {
		combinator := segmentPayload.Combinator
		if combinator == "" {
			combinator = existing.Combinator
		}
		if !model.IsValidCombinator(combinator) {
			logCtx.Error("Failed to update segment by ID. Invalid combinator.")
			return nil, http.StatusBadRequest, fmt.Errorf("failed to update segment. Invalid combinator")
		}

		if existing.Kind == model.SegmentKindDynamic && len(segmentPayload.Predicates) == 0 {
			logCtx.Error("Failed to update segment by ID. Predicates are empty.")
			return nil, http.StatusBadRequest, fmt.Errorf("failed to update segment. Predicates are empty")
		}

		if len(segmentPayload.Predicates) > 0 {
			if _, err := filters.CompileAll(segmentPayload.Predicates, combinator); err != nil {
				logCtx.WithError(err).Error("Failed to update segment by ID. Invalid predicates.")
				return nil, http.StatusBadRequest, err
			}

			predicatesJsonb, err := U.EncodeStructTypeToPostgresJsonb(segmentPayload.Predicates)
			if err != nil {
				logCtx.WithError(err).Error("Failed to encode segment predicates while segment updation")
				return nil, http.StatusInternalServerError, err
			}
			updatedFields.Predicates = predicatesJsonb
		}
		updatedFields.Combinator = combinator
	}
	updatedFields.UpdatedAt = U.TimeNowZ()

	db := C.GetServices().Db
	err := db.Model(&model.Segment{}).Where("project_id = ? AND id = ?",
		projectID, segmentID).UpdateColumns(updatedFields).Error
	if err != nil {
		logCtx.WithError(err).Error(
			"Failed while updating segment on UpdateSegmentById.")
		return nil, http.StatusInternalServerError, err
	}

	if definitionChanged {
		calculated, errCode, err := store.CalculateSegment(projectID, segmentID)
		if err != nil {
			logCtx.WithError(err).WithField("err_code", errCode).
				Warn("Failed to recalculate segment after update.")
		} else {
			return calculated, http.StatusOK, nil
		}
	}

	updated, errCode := store.GetSegmentById(projectID, segmentID)
	if errCode != http.StatusFound {
		return nil, errCode, fmt.Errorf("failed to read segment back after update")
	}
	return updated, http.StatusOK, nil
}

// DeleteSegmentById Removes the segment and its history snapshots in one
// transaction, mirroring the cascade on the foreign key.
func (store *Postgres) DeleteSegmentById(projectID int64, segmentID string) (int, error) {
	logFields := log.Fields{
		"project_id": projectID,
		"id":         segmentID,
	}
	defer U.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	if projectID == 0 || segmentID == "" {
		logCtx.Error("Failed to delete segment by ID. Invalid parameters.")
		return http.StatusBadRequest, nil
	}

	db := C.GetServices().Db
	tx := db.Begin()
	if tx.Error != nil {
		logCtx.WithError(tx.Error).Error("Failed to begin transaction on segment delete.")
		return http.StatusServiceUnavailable, tx.Error
	}

	if err := tx.Table("segment_histories").Where("project_id = ? AND segment_id = ?",
		projectID, segmentID).Delete(&model.SegmentHistory{}).Error; err != nil {
		tx.Rollback()
		logCtx.WithError(err).Error("Failed to delete segment history by segment ID.")
		return http.StatusInternalServerError, err
	}

	dbx := tx.Table("segments").Where("project_id = ? AND id = ?",
		projectID, segmentID).Delete(&model.Segment{})
	if err := dbx.Error; err != nil {
		tx.Rollback()
		logCtx.WithError(err).Error("Failed to delete segment by ID.")
		return http.StatusInternalServerError, err
	}

	if err := tx.Commit().Error; err != nil {
		logCtx.WithError(err).Error("Failed to commit segment delete.")
		return http.StatusInternalServerError, err
	}

	return http.StatusOK, nil
}
