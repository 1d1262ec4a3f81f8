package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"staffappraisal/internal/domain/apperr"
)

var (
	ErrStepNotVisited = errors.New("step has not been visited")
	ErrNoPreviousStep = errors.New("no previous step")
	ErrInvalidStep    = errors.New("invalid workflow step")
	ErrInvalidRole    = errors.New("invalid workflow role")
)

// Cursor is one role's position in the step sequence. Visited steps always
// form a prefix of the order, so Furthest is enough to answer "was it visited".
type Cursor struct {
	Current   Step      `json:"current"`
	Furthest  Step      `json:"furthest"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewCursor(now time.Time) Cursor {
	return Cursor{Current: First(), Furthest: First(), UpdatedAt: now}
}

func (c Cursor) Visited(step Step) bool {
	return step.Valid() && step.Index() <= c.Furthest.Index()
}

type CursorStore interface {
	LoadCursor(ctx context.Context, appraisalID string, role Role) (Cursor, bool, error)
	SaveCursor(ctx context.Context, appraisalID string, role Role, cursor Cursor) error
}

// Decision is the session-start answer. Resume set without Explicit means the
// caller has to offer "resume or restart"; Restart means start at the first step.
type Decision struct {
	Resume   Step `json:"resume,omitempty"`
	Restart  bool `json:"restart,omitempty"`
	Explicit bool `json:"explicit,omitempty"`
}

type Machine struct {
	store CursorStore
	now   func() time.Time
}

func NewMachine(store CursorStore) *Machine {
	return &Machine{store: store, now: time.Now}
}

// CurrentStep returns the saved step, or false when there is no progress. A
// failing cursor store is treated as "no progress" so entry is never blocked.
func (m *Machine) CurrentStep(ctx context.Context, appraisalID string, role Role) (Step, bool) {
	cursor, ok := m.loadDegraded(ctx, appraisalID, role)
	if !ok {
		return "", false
	}
	return cursor.Current, true
}

func (m *Machine) Cursor(ctx context.Context, appraisalID string, role Role) (Cursor, bool) {
	return m.loadDegraded(ctx, appraisalID, role)
}

func (m *Machine) Advance(ctx context.Context, appraisalID string, role Role, from Step) (Step, error) {
	if err := checkArgs(role, from); err != nil {
		return "", err
	}
	cursor, err := m.load(ctx, appraisalID, role)
	if err != nil {
		return "", err
	}
	if !cursor.Visited(from) {
		return "", apperr.Conflict(ErrStepNotVisited, cursor)
	}

	next, ok := from.Next()
	if !ok {
		next = from
	}
	cursor.Current = next
	if cursor.Furthest.Before(next) {
		cursor.Furthest = next
	}
	if err := m.save(ctx, appraisalID, role, cursor); err != nil {
		return "", err
	}
	return next, nil
}

func (m *Machine) GoBack(ctx context.Context, appraisalID string, role Role, from Step) (Step, error) {
	if err := checkArgs(role, from); err != nil {
		return "", err
	}
	prev, ok := from.Prev()
	if !ok {
		return "", apperr.Invalid("from", ErrNoPreviousStep.Error())
	}
	cursor, err := m.load(ctx, appraisalID, role)
	if err != nil {
		return "", err
	}
	if !cursor.Visited(prev) {
		return "", apperr.Conflict(ErrStepNotVisited, cursor)
	}
	cursor.Current = prev
	if err := m.save(ctx, appraisalID, role, cursor); err != nil {
		return "", err
	}
	return prev, nil
}

// ResumeOrRestart is called once per session start. requested is the step the
// caller asked for explicitly, or empty.
func (m *Machine) ResumeOrRestart(ctx context.Context, appraisalID string, role Role, requested Step) (Decision, error) {
	if !role.Valid() {
		return Decision{}, apperr.Invalid("role", ErrInvalidRole.Error())
	}
	cursor, ok := m.loadDegraded(ctx, appraisalID, role)
	if requested != "" {
		if !requested.Valid() {
			return Decision{}, apperr.Invalid("step", ErrInvalidStep.Error())
		}
		if requested != First() && (!ok || !cursor.Visited(requested)) {
			return Decision{}, apperr.Conflict(ErrStepNotVisited, cursor)
		}
		return Decision{Resume: requested, Explicit: true}, nil
	}
	if !ok {
		return Decision{Restart: true}, nil
	}
	return Decision{Resume: cursor.Current}, nil
}

// Restart moves the cursor back to the first step. Section records are left
// alone so previously saved data reloads as the user walks forward again.
func (m *Machine) Restart(ctx context.Context, appraisalID string, role Role) (Step, error) {
	if !role.Valid() {
		return "", apperr.Invalid("role", ErrInvalidRole.Error())
	}
	if err := m.save(ctx, appraisalID, role, NewCursor(m.now())); err != nil {
		return "", err
	}
	return First(), nil
}

// Rewind pulls both cursors back so neither sits past step.
func (m *Machine) Rewind(ctx context.Context, appraisalID string, step Step) error {
	if !step.Valid() {
		return apperr.Invalid("step", ErrInvalidStep.Error())
	}
	for _, role := range Roles {
		cursor, ok, err := m.store.LoadCursor(ctx, appraisalID, role)
		if err != nil {
			return apperr.Unavailable("load cursor", err)
		}
		if !ok || !step.Before(cursor.Furthest) {
			continue
		}
		cursor.Furthest = step
		if step.Before(cursor.Current) {
			cursor.Current = step
		}
		if err := m.save(ctx, appraisalID, role, cursor); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) load(ctx context.Context, appraisalID string, role Role) (Cursor, error) {
	cursor, ok, err := m.store.LoadCursor(ctx, appraisalID, role)
	if err != nil {
		return Cursor{}, apperr.Unavailable("load cursor", err)
	}
	if !ok {
		return NewCursor(m.now()), nil
	}
	return cursor, nil
}

func (m *Machine) loadDegraded(ctx context.Context, appraisalID string, role Role) (Cursor, bool) {
	cursor, ok, err := m.store.LoadCursor(ctx, appraisalID, role)
	if err != nil {
		slog.Warn("workflow cursor load failed, starting without saved progress", "appraisalId", appraisalID, "role", role, "err", err)
		return Cursor{}, false
	}
	return cursor, ok
}

func (m *Machine) save(ctx context.Context, appraisalID string, role Role, cursor Cursor) error {
	cursor.UpdatedAt = m.now()
	if err := m.store.SaveCursor(ctx, appraisalID, role, cursor); err != nil {
		return apperr.Unavailable("save cursor", err)
	}
	return nil
}

func checkArgs(role Role, from Step) error {
	if !role.Valid() {
		return apperr.Invalid("role", ErrInvalidRole.Error())
	}
	if !from.Valid() {
		return apperr.Invalid("from", ErrInvalidStep.Error())
	}
	return nil
}
