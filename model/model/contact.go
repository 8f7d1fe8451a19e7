package model

import (
	"time"

	"github.com/jinzhu/gorm/dialects/postgres"
)

// Contact Tenant-scoped CRM contact. The segment engine reads this relation
// and its related tables only; writes are owned by the contact CRUD surface.
type Contact struct {
	ID         string          `gorm:"primary_key:true" json:"id"`
	ProjectID  int64           `json:"project_id"`
	FirstName  string          `json:"first_name"`
	LastName   string          `json:"last_name"`
	Email      string          `json:"email"`
	Phone      string          `json:"phone"`
	Company    string          `json:"company"`
	Status     string          `json:"status"`
	AssignedTo string          `json:"assigned_to"`
	Attributes *postgres.Jsonb `json:"attributes"`
	IsDeleted  bool            `json:"is_deleted"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type Tag struct {
	ID        string    `gorm:"primary_key:true" json:"id"`
	ProjectID int64     `json:"project_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// ContactTag Join rows between contacts and tags. May contain duplicates for
// the same (contact_id, tag_id) pair; membership predicates must tolerate that.
type ContactTag struct {
	ProjectID int64  `json:"project_id"`
	ContactID string `json:"contact_id"`
	TagID     string `json:"tag_id"`
}

type Activity struct {
	ID        string    `gorm:"primary_key:true" json:"id"`
	ProjectID int64     `json:"project_id"`
	ContactID string    `json:"contact_id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

type Deal struct {
	ID              string    `gorm:"primary_key:true" json:"id"`
	ProjectID       int64     `json:"project_id"`
	ContactID       string    `json:"contact_id"`
	PipelineStageID string    `json:"pipeline_stage_id"`
	Status          string    `json:"status"`
	Value           float64   `json:"value"`
	CreatedAt       time.Time `json:"created_at"`
}

type PipelineStage struct {
	ID        string `gorm:"primary_key:true" json:"id"`
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
	Position  int    `json:"position"`
}

type Booking struct {
	ID        string    `gorm:"primary_key:true" json:"id"`
	ProjectID int64     `json:"project_id"`
	ContactID string    `json:"contact_id"`
	Status    string    `json:"status"`
	StartsAt  time.Time `json:"starts_at"`
}

// CampaignRecipient One delivery of a campaign email to a contact, with
// engagement timestamps filled in as events arrive.
type CampaignRecipient struct {
	ID         string     `gorm:"primary_key:true" json:"id"`
	ProjectID  int64      `json:"project_id"`
	CampaignID string     `json:"campaign_id"`
	ContactID  string     `json:"contact_id"`
	SentAt     *time.Time `json:"sent_at"`
	OpenedAt   *time.Time `json:"opened_at"`
	ClickedAt  *time.Time `json:"clicked_at"`
}

type Agent struct {
	UUID      string `gorm:"primary_key:true" json:"uuid"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type ProjectAgentMapping struct {
	ProjectID int64  `gorm:"primary_key:true" json:"project_id"`
	AgentUUID string `gorm:"primary_key:true" json:"agent_uuid"`
}
