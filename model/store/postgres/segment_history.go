package postgres

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	C "relate/config"
	"relate/model/model"
	U "relate/util"
)

func (store *Postgres) GetSegmentHistory(projectID int64, segmentID string, limit int) ([]model.SegmentHistory, int) {
	logFields := log.Fields{
		"project_id": projectID,
		"segment_id": segmentID,
	}
	defer U.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	if projectID == 0 || segmentID == "" {
		logCtx.Error("Failed to get segment history. Invalid parameters.")
		return nil, http.StatusBadRequest
	}

	if limit <= 0 {
		limit = 30
	}

	db := C.GetServices().Db
	var snapshots []model.SegmentHistory
	err := db.Table("segment_histories").
		Where("project_id = ? AND segment_id = ?", projectID, segmentID).
		Order("calculated_at DESC").Limit(limit).Find(&snapshots).Error
	if err != nil {
		logCtx.WithError(err).Error("Failed while getting segment history.")
		return nil, http.StatusInternalServerError
	}

	return snapshots, http.StatusFound
}
