package appraisal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"staffappraisal/internal/domain/apperr"
	"staffappraisal/internal/domain/lock"
	"staffappraisal/internal/domain/sections"
	"staffappraisal/internal/domain/workflow"
)

var errStoreDown = errors.New("connection refused")

type memoryStore struct {
	mu            sync.Mutex
	appraisals    map[string]Appraisal
	locks         map[string]lock.State
	nextID        int
	saveCursorErr error
	lockErr       error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{appraisals: map[string]Appraisal{}, locks: map[string]lock.State{}}
}

func lockKey(id string, step workflow.Step) string {
	return id + "/" + string(step)
}

func (m *memoryStore) Create(_ context.Context, in NewAppraisal) (Appraisal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	out := Appraisal{
		ID:          fmt.Sprintf("appr-%d", m.nextID),
		AppraiseeID: in.AppraiseeID,
		AppraiserID: in.AppraiserID,
		PeriodStart: in.PeriodStart,
		PeriodEnd:   in.PeriodEnd,
		Status:      StatusDraft,
	}
	m.appraisals[out.ID] = out
	return out, nil
}

func (m *memoryStore) Get(_ context.Context, id string) (Appraisal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out, ok := m.appraisals[id]
	if !ok {
		return Appraisal{}, apperr.ErrNotFound
	}
	return out, nil
}

func (m *memoryStore) ListForUser(_ context.Context, userID string, limit, offset int) ([]Appraisal, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appraisal
	for _, item := range m.appraisals {
		if userID == "" || item.AppraiseeID == userID || item.AppraiserID == userID {
			out = append(out, item)
		}
	}
	return out, len(out), nil
}

func (m *memoryStore) AdvanceStatus(_ context.Context, id string, to Status, from []Status) (Appraisal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.appraisals[id]
	if !ok {
		return Appraisal{}, false, nil
	}
	for _, allowed := range from {
		if current.Status == allowed {
			current.Status = to
			m.appraisals[id] = current
			return current, true, nil
		}
	}
	return Appraisal{}, false, nil
}

func (m *memoryStore) LoadCursor(_ context.Context, id string, role workflow.Role) (workflow.Cursor, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := m.appraisals[id]
	cursor := current.AppraiseeCursor
	if role == workflow.RoleAppraiser {
		cursor = current.AppraiserCursor
	}
	if cursor == nil {
		return workflow.Cursor{}, false, nil
	}
	return *cursor, true, nil
}

func (m *memoryStore) SaveCursor(_ context.Context, id string, role workflow.Role, cursor workflow.Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveCursorErr != nil {
		return m.saveCursorErr
	}
	current := m.appraisals[id]
	if role == workflow.RoleAppraiser {
		current.AppraiserCursor = &cursor
	} else {
		current.AppraiseeCursor = &cursor
	}
	m.appraisals[id] = current
	return nil
}

func (m *memoryStore) LockState(_ context.Context, id string, step workflow.Step) (lock.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lockErr != nil {
		return lock.State{}, m.lockErr
	}
	return m.locks[lockKey(id, step)], nil
}

func (m *memoryStore) LockStates(_ context.Context, id string) (map[workflow.Step]lock.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[workflow.Step]lock.State{}
	for _, step := range workflow.Steps {
		if state, ok := m.locks[lockKey(id, step)]; ok {
			out[step] = state
		}
	}
	return out, nil
}

func (m *memoryStore) MarkLocked(_ context.Context, id string, step workflow.Step, at time.Time) (lock.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := lockKey(id, step)
	if state, ok := m.locks[key]; ok {
		return state, nil
	}
	m.locks[key] = lock.Locked(at)
	return m.locks[key], nil
}

func (m *memoryStore) ClearLock(_ context.Context, id string, step workflow.Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, lockKey(id, step))
	return nil
}

type memorySections struct {
	mu        sync.Mutex
	records   map[sections.Key]sections.Record
	upsertErr error
	writes    int
}

func newMemorySections() *memorySections {
	return &memorySections{records: map[sections.Key]sections.Record{}}
}

func (m *memorySections) Upsert(_ context.Context, rec sections.Record, role workflow.Role) (sections.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return sections.Record{}, m.upsertErr
	}
	existing, found := m.records[rec.Key()]
	out := sections.Apply(existing, found, rec, role)
	if !found {
		out.ID = fmt.Sprintf("rec-%d", len(m.records)+1)
	}
	m.records[rec.Key()] = out
	m.writes++
	return out, nil
}

func (m *memorySections) LatestByOwner(_ context.Context, key sections.Key) (sections.Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	return rec, ok, nil
}

func (m *memorySections) ListByAppraisal(_ context.Context, appraisalID string) ([]sections.Record, error) {
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

func (m *memorySections) Sign(_ context.Context, key sections.Key, role workflow.Role, sig sections.Signature) (sections.Record, error) {
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

func (m *memorySections) Delete(_ context.Context, key sections.Key) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[key]
	delete(m.records, key)
	return ok, nil
}

type sentNotification struct {
	userID string
	ntype  string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Create(_ context.Context, userID, ntype, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{userID: userID, ntype: ntype})
	return nil
}

func (n *recordingNotifier) count(userID, ntype string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, sent := range n.sent {
		if sent.userID == userID && sent.ntype == ntype {
			total++
		}
	}
	return total
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingMetrics) Inc(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[name]++
}

func (c *countingMetrics) get(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name]
}
