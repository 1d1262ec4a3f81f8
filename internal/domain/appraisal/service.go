package appraisal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"staffappraisal/internal/domain/apperr"
	"staffappraisal/internal/domain/audit"
	"staffappraisal/internal/domain/scoring"
	"staffappraisal/internal/domain/sections"
	"staffappraisal/internal/domain/workflow"
)

type Notifier interface {
	Create(ctx context.Context, userID, ntype, title, body string) error
}

type Auditor interface {
	Record(ctx context.Context, entry audit.Entry) error
}

type Counter interface {
	Inc(name string)
}

type Deps struct {
	Store    StoreAPI
	Sections sections.StoreAPI
	Template scoring.Template
	Notifier Notifier
	Audit    Auditor
	Metrics  Counter
	Now      func() time.Time
}

type Service struct {
	store    StoreAPI
	sections sections.StoreAPI
	machine  *workflow.Machine
	template scoring.Template
	notifier Notifier
	audit    Auditor
	metrics  Counter
	now      func() time.Time
}

func NewService(deps Deps) *Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:    deps.Store,
		sections: deps.Sections,
		machine:  workflow.NewMachine(deps.Store),
		template: deps.Template,
		notifier: deps.Notifier,
		audit:    deps.Audit,
		metrics:  deps.Metrics,
		now:      now,
	}
}

func (s *Service) Template() scoring.Template {
	return s.template
}

func (s *Service) Create(ctx context.Context, actor Actor, in NewAppraisal) (Appraisal, error) {
	if err := in.Validate(); err != nil {
		return Appraisal{}, err
	}
	if !actor.Admin && actor.UserID != in.AppraiseeID && actor.UserID != in.AppraiserID {
		return Appraisal{}, fmt.Errorf("create appraisal: %w", apperr.ErrForbidden)
	}
	created, err := s.store.Create(ctx, in)
	if err != nil {
		return Appraisal{}, apperr.Unavailable("create appraisal", err)
	}
	s.record(ctx, actor, AuditCreated, created.ID, "", nil, created)
	for _, userID := range []string{created.AppraiseeID, created.AppraiserID} {
		if userID != actor.UserID {
			s.notify(ctx, userID, NotificationCreated, "New appraisal", "An appraisal for "+formatPeriod(created)+" was opened.")
		}
	}
	return created, nil
}

func (s *Service) Get(ctx context.Context, actor Actor, id string) (Appraisal, error) {
	out, err := s.load(ctx, id)
	if err != nil {
		return Appraisal{}, err
	}
	if _, ok := out.RoleOf(actor.UserID); !ok && !actor.Admin {
		return Appraisal{}, fmt.Errorf("%w: %v", apperr.ErrForbidden, ErrNotParticipant)
	}
	return out, nil
}

func (s *Service) List(ctx context.Context, actor Actor, limit, offset int) ([]Appraisal, int, error) {
	userID := actor.UserID
	if actor.Admin {
		userID = ""
	}
	items, total, err := s.store.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Unavailable("list appraisals", err)
	}
	return items, total, nil
}

// UpdateStatus moves the appraisal forward. Repeating the current status is a
// no-op; moving backwards is a conflict that carries the stored appraisal.
// Each party may only reach its own stage: the appraisee submits, the
// appraiser reviews. Completion comes from Final Sections, or from an admin.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, id string, to Status) (Appraisal, error) {
	if to.Rank() < 0 {
		return Appraisal{}, apperr.Invalid("status", "must be one of draft, submitted, reviewed, completed")
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return Appraisal{}, err
	}
	role, ok := current.RoleOf(actor.UserID)
	if !ok && !actor.Admin {
		return Appraisal{}, fmt.Errorf("%w: %v", apperr.ErrForbidden, ErrNotParticipant)
	}
	if to == current.Status {
		return current, nil
	}
	if to.Rank() < current.Status.Rank() {
		return Appraisal{}, apperr.Conflict(ErrStatusRegression, current)
	}
	if !actor.Admin && to.Rank() > statusCeiling(role).Rank() {
		return Appraisal{}, fmt.Errorf("%w: %v", apperr.ErrForbidden, ErrStatusNotAllowed)
	}
	return s.advanceStatus(ctx, actor, current, to)
}

// statusCeiling is the furthest status a party may set by hand.
func statusCeiling(role workflow.Role) Status {
	if role == workflow.RoleAppraiser {
		return StatusReviewed
	}
	return StatusSubmitted
}

func (s *Service) advanceStatus(ctx context.Context, actor Actor, current Appraisal, to Status) (Appraisal, error) {
	updated, ok, err := s.store.AdvanceStatus(ctx, current.ID, to, to.Below())
	if err != nil {
		return Appraisal{}, apperr.Unavailable("update status", err)
	}
	if !ok {
		// Someone else moved it first; report what is stored now.
		latest, err := s.load(ctx, current.ID)
		if err != nil {
			return Appraisal{}, err
		}
		if latest.Status == to {
			return latest, nil
		}
		return Appraisal{}, apperr.Conflict(ErrStatusRegression, latest)
	}
	s.record(ctx, actor, AuditStatusChanged, updated.ID, "", map[string]Status{"status": current.Status}, map[string]Status{"status": updated.Status})
	for _, userID := range []string{updated.AppraiseeID, updated.AppraiserID} {
		if userID != actor.UserID {
			s.notify(ctx, userID, NotificationStatusChanged, "Appraisal status changed", "Appraisal for "+formatPeriod(updated)+" is now "+string(updated.Status)+".")
		}
	}
	return updated, nil
}

// moveStatus is the orchestration variant: regressions are logged and ignored.
func (s *Service) moveStatus(ctx context.Context, actor Actor, current Appraisal, to Status) Appraisal {
	if to.Rank() <= current.Status.Rank() {
		if to.Rank() < current.Status.Rank() {
			slog.Info("status regression ignored", "appraisalId", current.ID, "status", current.Status, "requested", to)
			s.inc(MetricStatusRegression)
		}
		return current
	}
	updated, err := s.advanceStatus(ctx, actor, current, to)
	if err != nil {
		slog.Warn("status transition failed", "appraisalId", current.ID, "requested", to, "err", err)
		return current
	}
	return updated
}

func (s *Service) load(ctx context.Context, id string) (Appraisal, error) {
	out, err := s.store.Get(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return Appraisal{}, fmt.Errorf("appraisal %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return Appraisal{}, apperr.Unavailable("load appraisal", err)
	}
	return out, nil
}

// participant loads the appraisal and resolves the actor's role. Only the two
// parties may change it.
func (s *Service) participant(ctx context.Context, actor Actor, id string) (Appraisal, workflow.Role, error) {
	out, err := s.load(ctx, id)
	if err != nil {
		return Appraisal{}, "", err
	}
	role, ok := out.RoleOf(actor.UserID)
	if !ok {
		return Appraisal{}, "", fmt.Errorf("%w: %v", apperr.ErrForbidden, ErrNotParticipant)
	}
	return out, role, nil
}

func (s *Service) notify(ctx context.Context, userID, ntype, title, body string) {
	if s.notifier == nil || userID == "" {
		return
	}
	if err := s.notifier.Create(ctx, userID, ntype, title, body); err != nil {
		slog.Warn("notification create failed", "type", ntype, "err", err)
	}
}

func (s *Service) record(ctx context.Context, actor Actor, action, appraisalID string, section workflow.Step, before, after any) {
	if s.audit == nil {
		return
	}
	entry := audit.Entry{
		ActorID:     actor.UserID,
		Action:      action,
		AppraisalID: appraisalID,
		Section:     string(section),
		RequestID:   actor.RequestID,
		IP:          actor.IP,
		Before:      before,
		After:       after,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}

func (s *Service) inc(name string) {
	if s.metrics != nil {
		s.metrics.Inc(name)
	}
}

func formatPeriod(a Appraisal) string {
	return a.PeriodStart.Format("2006-01-02") + " to " + a.PeriodEnd.Format("2006-01-02")
}
