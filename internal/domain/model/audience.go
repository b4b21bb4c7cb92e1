// Package model defines the core data types shared by the prospector store, services and transports.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Audience is a saved targeting configuration reused across runs.
type Audience struct {
	ID          string          `json:"id"                    db:"id"`
	Name        string          `json:"name"                  db:"name"`
	Description *string         `json:"description,omitempty" db:"description"`
	Config      json.RawMessage `json:"config"                db:"config"`
	CreatedAt   time.Time       `json:"created_at"            db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"            db:"updated_at"`
}

// CreateAudienceRequest represents a request to create a new audience.
type CreateAudienceRequest struct {
	Name        string          `json:"name"                  validate:"required,max=255"`
	Description *string         `json:"description,omitempty" validate:"omitempty,max=2000"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Normalize trims whitespace and defaults an empty config to an empty object.
func (r *CreateAudienceRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	if len(r.Config) == 0 {
		r.Config = json.RawMessage(`{}`)
	}
}

// UpdateAudienceRequest represents an administrative edit. Nil fields are left unchanged.
type UpdateAudienceRequest struct {
	Name        *string         `json:"name,omitempty"        validate:"omitempty,min=1,max=255"`
	Description *string         `json:"description,omitempty" validate:"omitempty,max=2000"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// HasUpdates returns true if at least one field is set.
func (r *UpdateAudienceRequest) HasUpdates() bool {
	return r.Name != nil || r.Description != nil || len(r.Config) > 0
}

// AudienceDeletePolicy states what happens to runs that reference a deleted audience.
type AudienceDeletePolicy string

const (
	// AudienceDeleteCascade removes dependent runs and everything they own.
	AudienceDeleteCascade AudienceDeletePolicy = "cascade"
	// AudienceDeleteDetach keeps runs and clears their audience reference.
	AudienceDeleteDetach AudienceDeletePolicy = "detach"
)

// Valid returns true if the policy is known.
func (p AudienceDeletePolicy) Valid() bool {
	return p == AudienceDeleteCascade || p == AudienceDeleteDetach
}

// ParseAudienceDeletePolicy parses a policy name. There is no default: deletion must be explicit.
func ParseAudienceDeletePolicy(s string) (AudienceDeletePolicy, error) {
	p := AudienceDeletePolicy(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("invalid delete policy %q (valid options: cascade, detach)", s)
	}
	return p, nil
}

// AudienceDeleteResult reports what a delete touched.
type AudienceDeleteResult struct {
	Deleted      bool                 `json:"deleted"`
	Policy       AudienceDeletePolicy `json:"policy"`
	RunsAffected int64                `json:"runs_affected"`
}
