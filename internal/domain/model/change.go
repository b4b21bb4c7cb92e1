package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Table names a change feed topic.
type Table string

const (
	TableWorkflowRuns Table = "workflow_runs"
	TableProspects    Table = "prospects"
)

// Tables returns every table that publishes change events.
func Tables() []Table {
	return []Table{TableWorkflowRuns, TableProspects}
}

// Valid returns true if the table publishes change events.
func (t Table) Valid() bool {
	return t == TableWorkflowRuns || t == TableProspects
}

// ParseTables parses a comma-delimited list of table names. An empty string yields every table.
func ParseTables(s string) ([]Table, error) {
	if strings.TrimSpace(s) == "" {
		return Tables(), nil
	}
	seen := make(map[Table]bool)
	var out []Table
	for _, part := range strings.Split(s, ",") {
		t := Table(strings.TrimSpace(part))
		if t == "" || seen[t] {
			continue
		}
		if !t.Valid() {
			return nil, fmt.Errorf("unknown table %q", part)
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, errors.New("no tables specified")
	}
	return out, nil
}

// Operation is the kind of write a change event describes.
type Operation string

const (
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
)

// Valid returns true if the Operation is valid.
func (o Operation) Valid() bool {
	return o == OperationInsert || o == OperationUpdate
}

// ChangeEvent is an immutable notification of a row write carrying the full
// post-write row image.
type ChangeEvent struct {
	Table     Table           `json:"table"`
	Operation Operation       `json:"operation"`
	Row       json.RawMessage `json:"row"`
}

// NewChangeEvent marshals row into a change event.
func NewChangeEvent(table Table, op Operation, row any) (ChangeEvent, error) {
	b, err := json.Marshal(row)
	if err != nil {
		return ChangeEvent{}, fmt.Errorf("marshal %s row: %w", table, err)
	}
	evt := ChangeEvent{Table: table, Operation: op, Row: b}
	return evt, evt.Validate()
}

// Validate checks the envelope.
func (e ChangeEvent) Validate() error {
	if !e.Table.Valid() {
		return fmt.Errorf("invalid change table %q", e.Table)
	}
	if !e.Operation.Valid() {
		return fmt.Errorf("invalid change operation %q", e.Operation)
	}
	if len(e.Row) == 0 {
		return errors.New("change event has no row")
	}
	return nil
}

// RowID extracts the primary key from the row image.
func (e ChangeEvent) RowID() (string, error) {
	var k struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(e.Row, &k); err != nil {
		return "", fmt.Errorf("decode row id: %w", err)
	}
	if k.ID == "" {
		return "", errors.New("row has no id")
	}
	return k.ID, nil
}

// DecodeRun decodes a workflow_runs row image.
func (e ChangeEvent) DecodeRun() (WorkflowRun, error) {
	var r WorkflowRun
	if e.Table != TableWorkflowRuns {
		return r, fmt.Errorf("event table is %q, not %q", e.Table, TableWorkflowRuns)
	}
	if err := json.Unmarshal(e.Row, &r); err != nil {
		return r, fmt.Errorf("decode run row: %w", err)
	}
	return r, nil
}

// DecodeProspect decodes a prospects row image.
func (e ChangeEvent) DecodeProspect() (Prospect, error) {
	var p Prospect
	if e.Table != TableProspects {
		return p, fmt.Errorf("event table is %q, not %q", e.Table, TableProspects)
	}
	if err := json.Unmarshal(e.Row, &p); err != nil {
		return p, fmt.Errorf("decode prospect row: %w", err)
	}
	return p, nil
}
