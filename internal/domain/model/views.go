package model

import "time"

// RunView is a run joined with its audience's name.
type RunView struct {
	ID           string     `json:"id"            db:"id"`
	AudienceID   *string    `json:"audience_id"   db:"audience_id"`
	AudienceName *string    `json:"audience_name" db:"audience_name"`
	Location     string     `json:"location"      db:"location"`
	MaxProspects int        `json:"max_prospects" db:"max_prospects"`
	Status       RunStatus  `json:"status"        db:"status"`
	Error        *string    `json:"error"         db:"error"`
	StartedAt    *time.Time `json:"started_at"    db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at"   db:"finished_at"`
	CreatedAt    time.Time  `json:"created_at"    db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"    db:"updated_at"`
}

// ProspectView is a prospect joined with its run's location and audience name.
// Location and AudienceName are nil when the join target is gone.
type ProspectView struct {
	ID           string    `json:"id"              db:"id"`
	RunID        string    `json:"workflow_run_id" db:"workflow_run_id"`
	URL          string    `json:"url"             db:"url"`
	SourceQuery  *string   `json:"source_query"    db:"source_query"`
	CreatedAt    time.Time `json:"created_at"      db:"created_at"`
	Location     *string   `json:"location"        db:"location"`
	AudienceName *string   `json:"audience_name"   db:"audience_name"`
}

// ProspectDetail is a prospect with everything the worker recorded about it.
type ProspectDetail struct {
	ProspectView
	Analysis *SiteAnalysis `json:"analysis"`
	Contacts []Contact     `json:"contacts"`
}

// RunContext is the parent data a prospect view borrows from its run.
type RunContext struct {
	RunID        string  `json:"run_id"        db:"run_id"`
	Location     *string `json:"location"      db:"location"`
	AudienceName *string `json:"audience_name" db:"audience_name"`
}

// NewRunView builds a view from a run row and an optional audience name.
func NewRunView(run WorkflowRun, audienceName *string) RunView {
	return RunView{
		ID:           run.ID,
		AudienceID:   run.AudienceID,
		AudienceName: audienceName,
		Location:     run.Location,
		MaxProspects: run.MaxProspects,
		Status:       run.Status,
		Error:        run.Error,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
		CreatedAt:    run.CreatedAt,
		UpdatedAt:    run.UpdatedAt,
	}
}

// NewProspectView builds a view from a prospect row and its run context.
func NewProspectView(p Prospect, rc *RunContext) ProspectView {
	v := ProspectView{
		ID:          p.ID,
		RunID:       p.RunID,
		URL:         p.URL,
		SourceQuery: p.SourceQuery,
		CreatedAt:   p.CreatedAt,
	}
	if rc != nil {
		v.Location = rc.Location
		v.AudienceName = rc.AudienceName
	}
	return v
}
