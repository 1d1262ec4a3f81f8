package appraisalhandler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"staffappraisal/internal/domain/apperr"
	"staffappraisal/internal/domain/appraisal"
	"staffappraisal/internal/domain/lock"
	"staffappraisal/internal/domain/sections"
	"staffappraisal/internal/domain/workflow"
	"staffappraisal/internal/platform/cache"
)

type memoryAppraisals struct {
	mu      sync.Mutex
	items   map[string]appraisal.Appraisal
	cursors map[string]workflow.Cursor
	locks   map[string]lock.State
}

func newMemoryAppraisals() *memoryAppraisals {
	return &memoryAppraisals{
		items:   map[string]appraisal.Appraisal{},
		cursors: map[string]workflow.Cursor{},
		locks:   map[string]lock.State{},
	}
}

func (m *memoryAppraisals) Create(_ context.Context, in appraisal.NewAppraisal) (appraisal.Appraisal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := appraisal.Appraisal{
		ID:          fmt.Sprintf("appr-%d", len(m.items)+1),
		AppraiseeID: in.AppraiseeID,
		AppraiserID: in.AppraiserID,
		PeriodStart: in.PeriodStart,
		PeriodEnd:   in.PeriodEnd,
		Status:      appraisal.StatusDraft,
	}
	m.items[out.ID] = out
	return out, nil
}

func (m *memoryAppraisals) Get(_ context.Context, id string) (appraisal.Appraisal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out, ok := m.items[id]
	if !ok {
		return appraisal.Appraisal{}, apperr.ErrNotFound
	}
	return out, nil
}

func (m *memoryAppraisals) ListForUser(_ context.Context, userID string, _, _ int) ([]appraisal.Appraisal, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []appraisal.Appraisal
	for _, item := range m.items {
		if userID == "" || item.AppraiseeID == userID || item.AppraiserID == userID {
			out = append(out, item)
		}
	}
	return out, len(out), nil
}

func (m *memoryAppraisals) AdvanceStatus(_ context.Context, id string, to appraisal.Status, from []appraisal.Status) (appraisal.Appraisal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := m.items[id]
	for _, allowed := range from {
		if current.Status == allowed {
			current.Status = to
			m.items[id] = current
			return current, true, nil
		}
	}
	return appraisal.Appraisal{}, false, nil
}

func (m *memoryAppraisals) LoadCursor(_ context.Context, id string, role workflow.Role) (workflow.Cursor, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cursor, ok := m.cursors[id+"/"+string(role)]
	return cursor, ok, nil
}

func (m *memoryAppraisals) SaveCursor(_ context.Context, id string, role workflow.Role, cursor workflow.Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[id+"/"+string(role)] = cursor
	return nil
}

func (m *memoryAppraisals) LockState(_ context.Context, id string, step workflow.Step) (lock.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locks[id+"/"+string(step)], nil
}

func (m *memoryAppraisals) LockStates(_ context.Context, id string) (map[workflow.Step]lock.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[workflow.Step]lock.State{}
	for _, step := range workflow.Steps {
		if state, ok := m.locks[id+"/"+string(step)]; ok {
			out[step] = state
		}
	}
	return out, nil
}

func (m *memoryAppraisals) MarkLocked(_ context.Context, id string, step workflow.Step, at time.Time) (lock.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := id + "/" + string(step)
	if state, ok := m.locks[key]; ok {
		return state, nil
	}
	m.locks[key] = lock.Locked(at)
	return m.locks[key], nil
}

func (m *memoryAppraisals) ClearLock(_ context.Context, id string, step workflow.Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, id+"/"+string(step))
	return nil
}

type memoryRecords struct {
	mu      sync.Mutex
	records map[sections.Key]sections.Record
}

func (m *memoryRecords) Upsert(_ context.Context, rec sections.Record, role workflow.Role) (sections.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = map[sections.Key]sections.Record{}
	}
	existing, found := m.records[rec.Key()]
	out := sections.Apply(existing, found, rec, role)
	if !found {
		out.ID = fmt.Sprintf("rec-%d", len(m.records)+1)
	}
	m.records[rec.Key()] = out
	return out, nil
}

func (m *memoryRecords) LatestByOwner(_ context.Context, key sections.Key) (sections.Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	return rec, ok, nil
}

func (m *memoryRecords) ListByAppraisal(_ context.Context, appraisalID string) ([]sections.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sections.Record
	for _, rec := range m.records {
		if rec.AppraisalID == appraisalID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memoryRecords) Sign(_ context.Context, key sections.Key, role workflow.Role, sig sections.Signature) (sections.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return sections.Record{}, apperr.ErrNotFound
	}
	rec.Signatures.Set(role, &sig)
	m.records[key] = rec
	return rec, nil
}

func (m *memoryRecords) Delete(_ context.Context, key sections.Key) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[key]
	delete(m.records, key)
	return ok, nil
}

type memoryIdempotency struct {
	mu    sync.Mutex
	items map[string]cache.StoredResponse
}

func (m *memoryIdempotency) Check(_ context.Context, key, hash string) (cache.StoredResponse, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.items[key]
	if !ok {
		return cache.StoredResponse{}, false, nil
	}
	if stored.RequestHash != hash {
		return cache.StoredResponse{}, false, cache.ErrIdempotencyConflict
	}
	return stored, true, nil
}

func (m *memoryIdempotency) Save(_ context.Context, key string, resp cache.StoredResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = map[string]cache.StoredResponse{}
	}
	m.items[key] = resp
	return nil
}
