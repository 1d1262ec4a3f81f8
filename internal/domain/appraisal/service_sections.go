package appraisal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"staffappraisal/internal/domain/apperr"
	"staffappraisal/internal/domain/lock"
	"staffappraisal/internal/domain/scoring"
	"staffappraisal/internal/domain/sections"
	"staffappraisal/internal/domain/workflow"
)

func (s *Service) Section(ctx context.Context, actor Actor, id string, step workflow.Step) (SectionView, error) {
	if !step.Valid() {
		return SectionView{}, apperr.Invalid("section", workflow.ErrInvalidStep.Error())
	}
	current, err := s.Get(ctx, actor, id)
	if err != nil {
		return SectionView{}, err
	}
	return s.view(ctx, current, step)
}

func (s *Service) Sections(ctx context.Context, actor Actor, id string) ([]SectionView, error) {
	current, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	records, err := s.sections.ListByAppraisal(ctx, current.ID)
	if err != nil {
		return nil, apperr.Unavailable("list sections", err)
	}
	locks, err := s.store.LockStates(ctx, current.ID)
	if err != nil {
		return nil, apperr.Unavailable("load locks", err)
	}
	byStep := make(map[workflow.Step]sections.Record, len(records))
	for _, rec := range records {
		byStep[rec.Section] = rec
	}
	out := make([]SectionView, 0, len(workflow.Steps))
	for _, step := range workflow.Steps {
		view := SectionView{Section: step, Lock: locks[step]}
		if rec, ok := byStep[step]; ok {
			view.Record = &rec
		}
		out = append(out, view)
	}
	return out, nil
}

// SaveDraft stores work in progress without moving the cursor. A locked
// section rejects drafts and returns what is stored.
func (s *Service) SaveDraft(ctx context.Context, actor Actor, id string, step workflow.Step, payload sections.Payload) (SectionView, error) {
	current, role, err := s.writable(ctx, actor, id, step, payload)
	if err != nil {
		return SectionView{}, err
	}
	state, err := s.store.LockState(ctx, current.ID, step)
	if err != nil {
		return SectionView{}, apperr.Unavailable("load lock", err)
	}
	if state.Locked {
		s.inc(MetricDraftsRejected)
		return SectionView{}, s.lockedConflict(ctx, current, step)
	}
	payload, err = s.derive(ctx, current, payload, false)
	if err != nil {
		return SectionView{}, err
	}
	if err := validatePayload(payload); err != nil {
		return SectionView{}, err
	}
	saved, err := s.sections.Upsert(ctx, s.newRecord(current, step, payload), role)
	if errors.Is(err, sections.ErrLocked) {
		s.inc(MetricDraftsRejected)
		return SectionView{}, s.lockedConflict(ctx, current, step)
	}
	if err != nil {
		return SectionView{}, apperr.Unavailable("save section", err)
	}
	s.record(ctx, actor, AuditSectionDraft, current.ID, step, nil, saved)
	return SectionView{Section: step, Record: &saved, Lock: state}, nil
}

// SubmitSection is the "save and continue" path. The cursor only moves after
// the record is stored; a locked section is passed through without a write.
func (s *Service) SubmitSection(ctx context.Context, actor Actor, id string, step workflow.Step, payload sections.Payload, sig *sections.Signature) (SubmitResult, error) {
	current, role, err := s.writable(ctx, actor, id, step, payload)
	if err != nil {
		return SubmitResult{}, err
	}
	cursor, ok := s.machine.Cursor(ctx, current.ID, role)
	if !ok {
		cursor = workflow.NewCursor(s.now())
	}
	if !cursor.Visited(step) {
		return SubmitResult{}, apperr.Conflict(workflow.ErrStepNotVisited, cursor)
	}

	state, err := s.store.LockState(ctx, current.ID, step)
	if err != nil {
		return SubmitResult{}, apperr.Unavailable("load lock", err)
	}
	if state.Locked {
		s.inc(MetricPassThrough)
		view, err := s.view(ctx, current, step)
		if err != nil {
			return SubmitResult{}, err
		}
		next, err := s.machine.Advance(ctx, current.ID, role, step)
		if err != nil {
			return SubmitResult{}, err
		}
		return SubmitResult{SectionView: view, Next: next, Status: current.Status, PassedThrough: true}, nil
	}

	if sig != nil && sig.URL == "" {
		return SubmitResult{}, apperr.Invalid("signature.url", "is required")
	}
	payload, err = s.derive(ctx, current, payload, true)
	if err != nil {
		return SubmitResult{}, err
	}
	if err := validatePayload(payload); err != nil {
		return SubmitResult{}, err
	}
	rec := s.newRecord(current, step, payload)
	if sig != nil {
		stamped := *sig
		if stamped.Date.IsZero() {
			stamped.Date = s.now()
		}
		rec.Signatures.Set(role, &stamped)
	}
	saved, err := s.sections.Upsert(ctx, rec, role)
	if errors.Is(err, sections.ErrLocked) {
		return SubmitResult{}, s.lockedConflict(ctx, current, step)
	}
	if err != nil {
		return SubmitResult{}, apperr.Unavailable("save section", err)
	}
	s.inc(MetricSubmissions)
	s.record(ctx, actor, AuditSectionSubmit, current.ID, step, nil, saved)

	state = s.relock(ctx, actor, current, saved)

	next, err := s.machine.Advance(ctx, current.ID, role, step)
	if err != nil {
		return SubmitResult{}, err
	}

	if step == workflow.StepFinalSections {
		current = s.finalTransition(ctx, actor, current, role, saved)
	}
	s.notify(ctx, current.PartyID(role.Counterpart()), NotificationSectionSubmitted, "Section submitted",
		fmt.Sprintf("The %s submitted the %s section.", role, step))

	return SubmitResult{
		SectionView: SectionView{Section: step, Record: &saved, Lock: state},
		Next:        next,
		Status:      current.Status,
	}, nil
}

// Sign stores the actor's signature on an existing record and re-evaluates
// the locks that depend on it.
func (s *Service) Sign(ctx context.Context, actor Actor, id string, step workflow.Step, sig sections.Signature) (SectionView, error) {
	if !step.Valid() {
		return SectionView{}, apperr.Invalid("section", workflow.ErrInvalidStep.Error())
	}
	if sig.URL == "" {
		return SectionView{}, apperr.Invalid("signature.url", "is required")
	}
	current, role, err := s.participant(ctx, actor, id)
	if err != nil {
		return SectionView{}, err
	}
	state, err := s.store.LockState(ctx, current.ID, step)
	if err != nil {
		return SectionView{}, apperr.Unavailable("load lock", err)
	}
	if state.Locked {
		return SectionView{}, s.lockedConflict(ctx, current, step)
	}
	if sig.Date.IsZero() {
		sig.Date = s.now()
	}
	saved, err := s.sections.Sign(ctx, current.SectionKey(step), role, sig)
	if errors.Is(err, apperr.ErrNotFound) {
		return SectionView{}, fmt.Errorf("%s section: %w", step, apperr.ErrNotFound)
	}
	if err != nil {
		return SectionView{}, apperr.Unavailable("sign section", err)
	}
	s.record(ctx, actor, AuditSectionSign, current.ID, step, nil, saved.Signatures)
	state = s.relock(ctx, actor, current, saved)
	s.notify(ctx, current.PartyID(role.Counterpart()), NotificationSectionSigned, "Section signed",
		fmt.Sprintf("The %s signed the %s section.", role, step))
	return SectionView{Section: step, Record: &saved, Lock: state}, nil
}

// ClearSection deletes the record, drops its lock and pulls both cursors back
// so nobody sits past the cleared section. A section locked by a different,
// still signed section cannot be cleared.
func (s *Service) ClearSection(ctx context.Context, actor Actor, id string, step workflow.Step) error {
	if !step.Valid() {
		return apperr.Invalid("section", workflow.ErrInvalidStep.Error())
	}
	current, _, err := s.participant(ctx, actor, id)
	if err != nil {
		return err
	}
	before, found, err := s.sections.LatestByOwner(ctx, current.SectionKey(step))
	if err != nil {
		return apperr.Unavailable("load section", err)
	}
	if !found {
		return fmt.Errorf("%s section: %w", step, apperr.ErrNotFound)
	}
	if gate := lock.Gate(step); gate != step {
		gated, found, err := s.sections.LatestByOwner(ctx, current.SectionKey(gate))
		if err != nil {
			return apperr.Unavailable("load section", err)
		}
		if found && lock.Outlives(step, lock.SnapshotOf([]sections.Record{gated})) {
			return s.lockedConflict(ctx, current, step)
		}
	}
	if _, err := s.sections.Delete(ctx, current.SectionKey(step)); err != nil {
		return apperr.Unavailable("clear section", err)
	}
	if err := s.store.ClearLock(ctx, current.ID, step); err != nil {
		return apperr.Unavailable("clear lock", err)
	}
	if err := s.machine.Rewind(ctx, current.ID, step); err != nil {
		return err
	}
	s.record(ctx, actor, AuditSectionClear, current.ID, step, before, nil)
	return nil
}

// Score recomputes the annual result from the stored Annual Appraisal and the
// latest End-Year Review. It fails closed when either cannot be read.
func (s *Service) Score(ctx context.Context, actor Actor, id string) (scoring.AppraisalResult, error) {
	current, err := s.Get(ctx, actor, id)
	if err != nil {
		return scoring.AppraisalResult{}, err
	}
	rec, found, err := s.sections.LatestByOwner(ctx, current.SectionKey(workflow.StepAnnualAppraisal))
	if err != nil {
		return scoring.AppraisalResult{}, apperr.Unavailable("load annual appraisal", err)
	}
	if !found {
		return scoring.AppraisalResult{}, fmt.Errorf("%s section: %w", workflow.StepAnnualAppraisal, apperr.ErrNotFound)
	}
	annual, _ := rec.Payload.(sections.AnnualAppraisal)
	m, err := s.performanceAssessment(ctx, current)
	if err != nil {
		return scoring.AppraisalResult{}, err
	}
	return scoring.ScoreAppraisal(m, annual.Core, annual.NonCore).Rounded(), nil
}

type PreviewInput struct {
	Targets []scoring.Target             `json:"targets"`
	Core    []scoring.CompetencyCategory `json:"core"`
	NonCore []scoring.CompetencyCategory `json:"nonCore"`
}

type PreviewResult struct {
	EndYear   scoring.TargetSummary   `json:"endYear"`
	Appraisal scoring.AppraisalResult `json:"appraisal"`
}

// Preview scores input without reading or writing anything.
func (s *Service) Preview(in PreviewInput) (PreviewResult, error) {
	core, nonCore, err := s.template.Apply(in.Core, in.NonCore)
	if err != nil {
		return PreviewResult{}, err
	}
	var issues apperr.Collector
	scoring.ValidateTargets("targets", in.Targets, &issues)
	scoring.ValidateCategories("core", core, &issues)
	scoring.ValidateCategories("nonCore", nonCore, &issues)
	if err := issues.Err(); err != nil {
		return PreviewResult{}, err
	}
	summary := scoring.ScoreTargets(in.Targets)
	return PreviewResult{
		EndYear:   summary.Rounded(),
		Appraisal: scoring.ScoreAppraisal(summary.FinalScore, core, nonCore).Rounded(),
	}, nil
}

func (s *Service) writable(ctx context.Context, actor Actor, id string, step workflow.Step, payload sections.Payload) (Appraisal, workflow.Role, error) {
	if !step.Valid() {
		return Appraisal{}, "", apperr.Invalid("section", workflow.ErrInvalidStep.Error())
	}
	if payload == nil || payload.Section() != step {
		return Appraisal{}, "", apperr.Invalid("payload", "does not match section "+string(step))
	}
	return s.participant(ctx, actor, id)
}

func validatePayload(payload sections.Payload) error {
	var issues apperr.Collector
	payload.Validate(&issues)
	return issues.Err()
}

// derive fills computed fields and, for competencies, lays the input over the
// template so weights never come from the client. The overall annual score needs the stored
// End-Year Review, so it is only required on submit; drafts without one are
// stored with no score at all.
func (s *Service) derive(ctx context.Context, current Appraisal, payload sections.Payload, submit bool) (sections.Payload, error) {
	switch p := payload.(type) {
	case sections.EndYearReview:
		p.Summary = scoring.ScoreTargets(p.Targets).Rounded()
		return p, nil
	case sections.AnnualAppraisal:
		core, nonCore, err := s.template.Apply(p.Core, p.NonCore)
		if err != nil {
			return nil, err
		}
		m, err := s.performanceAssessment(ctx, current)
		if err != nil && (submit || !isMissingEndYear(err)) {
			return nil, err
		}
		result := scoring.ScoreAppraisal(m, core, nonCore).Rounded()
		p.Core, p.NonCore, p.Score = result.Core, result.NonCore, nil
		if err == nil {
			p.Score = &result.Score
		}
		return p, nil
	}
	return payload, nil
}

// performanceAssessment returns M from the most recently stored End-Year
// Review, recomputed at full precision from its targets.
func (s *Service) performanceAssessment(ctx context.Context, current Appraisal) (float64, error) {
	rec, found, err := s.sections.LatestByOwner(ctx, current.SectionKey(workflow.StepEndYearReview))
	if err != nil {
		return 0, apperr.Unavailable("load end-year review", err)
	}
	if !found {
		return 0, apperr.Conflict(ErrEndYearReviewMissing, nil)
	}
	review, _ := rec.Payload.(sections.EndYearReview)
	return scoring.ScoreTargets(review.Targets).FinalScore, nil
}

func isMissingEndYear(err error) bool {
	return errors.Is(err, ErrEndYearReviewMissing)
}

func (s *Service) newRecord(current Appraisal, step workflow.Step, payload sections.Payload) sections.Record {
	now := s.now()
	return sections.Record{
		OwnerUserID: current.AppraiseeID,
		AppraisalID: current.ID,
		Section:     step,
		Payload:     payload,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// relock re-evaluates every lock gated by saved's section. Failures are
// logged: the predicate still holds next time, so the lock is not lost.
func (s *Service) relock(ctx context.Context, actor Actor, current Appraisal, saved sections.Record) lock.State {
	snapshot := lock.Snapshot{saved.Section: saved.Signatures}
	var own lock.State
	for _, step := range lock.Affected(saved.Section) {
		prior, err := s.store.LockState(ctx, current.ID, step)
		if err != nil {
			slog.Warn("lock state load failed", "appraisalId", current.ID, "section", step, "err", err)
			continue
		}
		state, changed := lock.Evaluate(step, snapshot, prior, s.now())
		if changed {
			stored, err := s.store.MarkLocked(ctx, current.ID, step, *state.LockedAt)
			if err != nil {
				slog.Warn("lock persist failed", "appraisalId", current.ID, "section", step, "err", err)
			} else {
				state = stored
				s.inc(MetricLocks)
				s.record(ctx, actor, AuditSectionLocked, current.ID, step, nil, state)
				for _, userID := range []string{current.AppraiseeID, current.AppraiserID} {
					s.notify(ctx, userID, NotificationSectionLocked, "Section locked",
						fmt.Sprintf("The %s section is now signed by both parties and locked.", step))
				}
			}
		}
		if step == saved.Section {
			own = state
		}
	}
	return own
}

// finalTransition applies the Final Sections status rules: the appraisee's
// submission marks the appraisal submitted, the appraiser's marks it
// reviewed, and it completes once reviewed with the appraisee's decision on
// record.
func (s *Service) finalTransition(ctx context.Context, actor Actor, current Appraisal, role workflow.Role, saved sections.Record) Appraisal {
	target := StatusSubmitted
	if role == workflow.RoleAppraiser {
		target = StatusReviewed
	}
	current = s.moveStatus(ctx, actor, current, target)
	final, _ := saved.Payload.(sections.FinalSections)
	if current.Status.Rank() >= StatusReviewed.Rank() && final.Agreed() {
		current = s.moveStatus(ctx, actor, current, StatusCompleted)
	}
	return current
}

// lockedConflict reports ErrSectionLocked with what is stored for step.
func (s *Service) lockedConflict(ctx context.Context, current Appraisal, step workflow.Step) error {
	view, err := s.view(ctx, current, step)
	if err != nil {
		return err
	}
	return apperr.Conflict(ErrSectionLocked, view)
}

func (s *Service) view(ctx context.Context, current Appraisal, step workflow.Step) (SectionView, error) {
	rec, found, err := s.sections.LatestByOwner(ctx, current.SectionKey(step))
	if err != nil {
		return SectionView{}, apperr.Unavailable("load section", err)
	}
	state, err := s.store.LockState(ctx, current.ID, step)
	if err != nil {
		return SectionView{}, apperr.Unavailable("load lock", err)
	}
	view := SectionView{Section: step, Lock: state}
	if found {
		view.Record = &rec
	}
	return view, nil
}
