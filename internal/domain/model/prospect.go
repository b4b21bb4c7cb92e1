package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Prospect is a candidate web site discovered during a run.
type Prospect struct {
	ID          string    `json:"id"              db:"id"`
	RunID       string    `json:"workflow_run_id" db:"workflow_run_id"`
	URL         string    `json:"url"             db:"url"`
	SourceQuery *string   `json:"source_query"    db:"source_query"`
	CreatedAt   time.Time `json:"created_at"      db:"created_at"`
}

// CreateProspectRequest is a worker report of a newly discovered site.
type CreateProspectRequest struct {
	RunID       string  `json:"-"                      validate:"required"`
	URL         string  `json:"url"                    validate:"required,url,max=2048"`
	SourceQuery *string `json:"source_query,omitempty" validate:"omitempty,max=1000"`
}

// SiteAnalysis holds the scores computed for one prospect.
type SiteAnalysis struct {
	ID         string             `json:"id"          db:"id"`
	ProspectID string             `json:"prospect_id" db:"prospect_id"`
	Scores     map[string]float64 `json:"scores"      db:"scores"`
	TechIssues json.RawMessage    `json:"tech_issues" db:"tech_issues"`
	AnalyzedAt time.Time          `json:"analyzed_at" db:"analyzed_at"`
}

// CreateSiteAnalysisRequest is a worker report of a finished analysis.
type CreateSiteAnalysisRequest struct {
	ProspectID string             `json:"-"                     validate:"required"`
	Scores     map[string]float64 `json:"scores"                validate:"required"`
	TechIssues json.RawMessage    `json:"tech_issues,omitempty"`
}

// ContactType classifies a contact value.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type ContactType string

const (
	ContactTypeEmail  ContactType = "email"
	ContactTypePhone  ContactType = "phone"
	ContactTypeSocial ContactType = "social"
)

// Valid returns true if the ContactType is valid.
func (t ContactType) Valid() bool {
	return t == ContactTypeEmail || t == ContactTypePhone || t == ContactTypeSocial
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ContactType) UnmarshalText(text []byte) error {
	v := ContactType(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid ContactType: %q", string(text))
	}
	*t = v
	return nil
}

// Contact is one way of reaching a prospect.
type Contact struct {
	ID         string      `json:"id"          db:"id"`
	ProspectID string      `json:"prospect_id" db:"prospect_id"`
	Type       ContactType `json:"type"        db:"type"`
	Value      string      `json:"value"       db:"value"`
	CreatedAt  time.Time   `json:"created_at"  db:"created_at"`
}

// ContactInput is a single contact in a worker report.
type ContactInput struct {
	Type  ContactType `json:"type"  validate:"required,oneof=email phone social"`
	Value string      `json:"value" validate:"required,max=512"`
}

// AddContactsRequest appends contacts to a prospect.
type AddContactsRequest struct {
	ProspectID string         `json:"-"        validate:"required"`
	Contacts   []ContactInput `json:"contacts" validate:"required,min=1,max=100,dive"`
}
