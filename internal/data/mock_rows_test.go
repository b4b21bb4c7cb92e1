package data

import (
	"encoding/json"
	"time"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/target/prospector/internal/domain/model"
)

const (
	testAudienceID = "6f1c2a52-4a0b-4cf5-9d44-0d7d3a0a7e01"
	testRunID      = "0b8e9c64-5b9e-4c55-8f0f-3f6a1c2d4e02"
	testJobID      = "a3d2f1e0-1c2b-4a5d-9e8f-7a6b5c4d3e03"
	testProspectID = "c9b8a7d6-e5f4-4321-8765-43210fedcb04"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

var (
	runCols = []string{"id", "audience_id", "location", "max_prospects", "status", "error",
		"started_at", "finished_at", "created_at", "updated_at"}
	jobCols = []string{"id", "queue", "run_id", "payload", "status", "attempts", "max_attempts",
		"last_error", "visible_at", "lease_expires_at", "enqueued_at", "updated_at"}
)

func strPtr(s string) *string { return &s }

func runRows(status model.RunStatus) *pgxmock.Rows {
	return pgxmock.NewRows(runCols).AddRow(
		testRunID, strPtr(testAudienceID), "Johannesburg", 5, status, (*string)(nil),
		(*time.Time)(nil), (*time.Time)(nil), testNow, testNow,
	)
}

func jobRows(status model.JobStatus, attempts int) *pgxmock.Rows {
	payload, _ := json.Marshal(model.RunJobPayload{
		RunID: testRunID, AudienceID: testAudienceID, Location: "Johannesburg", MaxProspects: 5,
	})
	return pgxmock.NewRows(jobCols).AddRow(
		testJobID, "worker_jobs", testRunID, json.RawMessage(payload), status, attempts, 5,
		(*string)(nil), testNow, (*time.Time)(nil), testNow, testNow,
	)
}
