package realtime

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/target/prospector/internal/domain/model"
)

// Snapshot is the initial state of one table sent when a stream opens.
type Snapshot struct {
	Table model.Table     `json:"table"`
	Rows  json.RawMessage `json:"rows"`
}

// Change is a change event as sent to stream clients. View carries the
// joined projection of the row when the server could build one.
type Change struct {
	model.ChangeEvent
	View json.RawMessage `json:"view,omitempty"`
}

// Mirror is a client-side copy of the read projection kept current by
// snapshots and change events. Applying the same event twice, or events out
// of order, converges to the same state.
type Mirror struct {
	mu        sync.RWMutex
	runs      map[string]model.RunView
	prospects map[string]model.ProspectView
}

// NewMirror returns an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{
		runs:      make(map[string]model.RunView),
		prospects: make(map[string]model.ProspectView),
	}
}

// ApplySnapshot replaces the state of the snapshot's table.
func (m *Mirror) ApplySnapshot(s Snapshot) error {
	switch s.Table {
	case model.TableWorkflowRuns:
		var rows []model.RunView
		if err := json.Unmarshal(s.Rows, &rows); err != nil {
			return fmt.Errorf("decode runs snapshot: %w", err)
		}
		m.ReplaceRuns(rows)
	case model.TableProspects:
		var rows []model.ProspectView
		if err := json.Unmarshal(s.Rows, &rows); err != nil {
			return fmt.Errorf("decode prospects snapshot: %w", err)
		}
		m.ReplaceProspects(rows)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTable, s.Table)
	}
	return nil
}

// ReplaceRuns replaces every run.
func (m *Mirror) ReplaceRuns(rows []model.RunView) {
	next := make(map[string]model.RunView, len(rows))
	for _, r := range rows {
		next[r.ID] = r
	}
	m.mu.Lock()
	m.runs = next
	m.mu.Unlock()
}

// ReplaceProspects replaces every prospect.
func (m *Mirror) ReplaceProspects(rows []model.ProspectView) {
	next := make(map[string]model.ProspectView, len(rows))
	for _, p := range rows {
		next[p.ID] = p
	}
	m.mu.Lock()
	m.prospects = next
	m.mu.Unlock()
}

// Apply merges one change and reports whether the mirror changed.
func (m *Mirror) Apply(ch Change) (bool, error) {
	switch ch.Table {
	case model.TableWorkflowRuns:
		v, err := runViewOf(ch)
		if err != nil {
			return false, err
		}
		return m.mergeRun(v), nil
	case model.TableProspects:
		v, err := prospectViewOf(ch)
		if err != nil {
			return false, err
		}
		return m.mergeProspect(v), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownTable, ch.Table)
	}
}

func runViewOf(ch Change) (model.RunView, error) {
	if len(ch.View) > 0 && string(ch.View) != "null" {
		var v model.RunView
		if err := json.Unmarshal(ch.View, &v); err != nil {
			return v, fmt.Errorf("decode run view: %w", err)
		}
		return v, nil
	}
	run, err := ch.DecodeRun()
	if err != nil {
		return model.RunView{}, err
	}
	return model.NewRunView(run, nil), nil
}

func prospectViewOf(ch Change) (model.ProspectView, error) {
	if len(ch.View) > 0 && string(ch.View) != "null" {
		var v model.ProspectView
		if err := json.Unmarshal(ch.View, &v); err != nil {
			return v, fmt.Errorf("decode prospect view: %w", err)
		}
		return v, nil
	}
	p, err := ch.DecodeProspect()
	if err != nil {
		return model.ProspectView{}, err
	}
	return model.NewProspectView(p, nil), nil
}

// mergeRun keeps whichever version is further along the lifecycle; at equal
// rank the later updated_at wins.
func (m *Mirror) mergeRun(in model.RunView) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.runs[in.ID]
	if !ok {
		m.runs[in.ID] = in
		return true
	}
	if !supersedes(in, cur) {
		return false
	}
	if in.AudienceName == nil && sameString(in.AudienceID, cur.AudienceID) {
		in.AudienceName = cur.AudienceName
	}
	m.runs[in.ID] = in
	return true
}

func supersedes(in, cur model.RunView) bool {
	ir, cr := in.Status.Rank(), cur.Status.Rank()
	if ir != cr {
		return ir > cr
	}
	return in.UpdatedAt.After(cur.UpdatedAt)
}

func (m *Mirror) mergeProspect(in model.ProspectView) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.prospects[in.ID]
	if !ok {
		m.prospects[in.ID] = in
		return true
	}
	changed := false
	if cur.Location == nil && in.Location != nil {
		cur.Location = in.Location
		changed = true
	}
	if cur.AudienceName == nil && in.AudienceName != nil {
		cur.AudienceName = in.AudienceName
		changed = true
	}
	if changed {
		m.prospects[in.ID] = cur
	}
	return changed
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Run returns one run.
func (m *Mirror) Run(id string) (model.RunView, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.runs[id]
	return v, ok
}

// Prospect returns one prospect.
func (m *Mirror) Prospect(id string) (model.ProspectView, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.prospects[id]
	return v, ok
}

// Runs returns every run, newest first.
func (m *Mirror) Runs() []model.RunView {
	m.mu.RLock()
	out := make([]model.RunView, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Prospects returns every prospect, newest first.
func (m *Mirror) Prospects() []model.ProspectView {
	m.mu.RLock()
	out := make([]model.ProspectView, 0, len(m.prospects))
	for _, p := range m.prospects {
		out = append(out, p)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
