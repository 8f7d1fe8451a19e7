package postgres

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	cacheRedis "relate/cache/redis"
	C "relate/config"
	"relate/filters"
	"relate/model/model"
	U "relate/util"
)

const segmentFieldsCachePrefix = "segment:fields"
const segmentFieldsCacheExpiryInSecs = 300

// DescribeSegmentFields Composes the static field catalog with the tenant's
// dynamic option lists. A failure on any one option list degrades to an empty
// list for that entry; the rest of the catalog is still returned. The response
// is cached best-effort for a few minutes.
func (store *Postgres) DescribeSegmentFields(projectID int64) (*model.SegmentFieldsDescription, int) {
	logFields := log.Fields{
		"project_id": projectID,
	}
	defer U.LogOnSlowExecutionWithParams(time.Now(), &logFields)
	logCtx := log.WithFields(logFields)

	if projectID == 0 {
		logCtx.Error("Failed to describe segment fields. Invalid projectID.")
		return nil, http.StatusBadRequest
	}

	if cached := getCachedFieldsDescription(projectID); cached != nil {
		return cached, http.StatusOK
	}

	description := &model.SegmentFieldsDescription{
		Fields:               filters.FieldCatalog(),
		TagOptions:           store.getTagOptions(projectID),
		UserOptions:          store.getAgentOptions(projectID),
		PipelineStageOptions: store.getPipelineStageOptions(projectID),
	}

	setCachedFieldsDescription(projectID, description)
	return description, http.StatusOK
}

func getCachedFieldsDescription(projectID int64) *model.SegmentFieldsDescription {
	key, err := cacheRedis.NewKey(projectID, segmentFieldsCachePrefix, "")
	if err != nil {
		return nil
	}

	cached, err := cacheRedis.Get(key)
	if err != nil || cached == "" {
		return nil
	}

	var description model.SegmentFieldsDescription
	if err := json.Unmarshal([]byte(cached), &description); err != nil {
		log.WithError(err).WithField("project_id", projectID).
			Warn("Failed to decode cached segment fields description.")
		return nil
	}
	return &description
}

func setCachedFieldsDescription(projectID int64, description *model.SegmentFieldsDescription) {
	key, err := cacheRedis.NewKey(projectID, segmentFieldsCachePrefix, "")
	if err != nil {
		return
	}

	encoded, err := json.Marshal(description)
	if err != nil {
		return
	}

	if err := cacheRedis.Set(key, string(encoded), segmentFieldsCacheExpiryInSecs); err != nil {
		log.WithError(err).WithField("project_id", projectID).
			Warn("Failed to cache segment fields description.")
	}
}

func (store *Postgres) getTagOptions(projectID int64) []model.FieldOption {
	db := C.GetServices().Db

	var tags []model.Tag
	err := db.Table("tags").Where("project_id = ?", projectID).
		Order("name").Find(&tags).Error
	if err != nil {
		log.WithError(err).WithField("project_id", projectID).
			Error("Failed to get tag options for segment fields.")
		return []model.FieldOption{}
	}

	options := make([]model.FieldOption, 0, len(tags))
	for _, tag := range tags {
		options = append(options, model.FieldOption{ID: tag.ID, Label: tag.Name})
	}
	return options
}

func (store *Postgres) getAgentOptions(projectID int64) []model.FieldOption {
	db := C.GetServices().Db

	var agents []model.Agent
	err := db.Table("agents").
		Joins("JOIN project_agent_mappings ON project_agent_mappings.agent_uuid = agents.uuid").
		Where("project_agent_mappings.project_id = ?", projectID).
		Order("agents.email").Find(&agents).Error
	if err != nil {
		log.WithError(err).WithField("project_id", projectID).
			Error("Failed to get agent options for segment fields.")
		return []model.FieldOption{}
	}

	options := make([]model.FieldOption, 0, len(agents))
	for _, agent := range agents {
		label := strings.TrimSpace(agent.FirstName + " " + agent.LastName)
		if label == "" {
			label = agent.Email
		}
		options = append(options, model.FieldOption{ID: agent.UUID, Label: label})
	}
	return options
}

func (store *Postgres) getPipelineStageOptions(projectID int64) []model.FieldOption {
	db := C.GetServices().Db

	var stages []model.PipelineStage
	err := db.Table("pipeline_stages").Where("project_id = ?", projectID).
		Order("position").Find(&stages).Error
	if err != nil {
		log.WithError(err).WithField("project_id", projectID).
			Error("Failed to get pipeline stage options for segment fields.")
		return []model.FieldOption{}
	}

	options := make([]model.FieldOption, 0, len(stages))
	for _, stage := range stages {
		options = append(options, model.FieldOption{ID: stage.ID, Label: stage.Name})
	}
	return options
}
