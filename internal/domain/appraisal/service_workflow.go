package appraisal

import (
	"context"

	"staffappraisal/internal/domain/workflow"
)

type Position struct {
	Role    workflow.Role    `json:"role"`
	Current workflow.Step    `json:"current,omitempty"`
	Cursor  *workflow.Cursor `json:"cursor,omitempty"`
}

// CurrentStep never fails on cursor storage problems; they read as "no
// progress".
func (s *Service) CurrentStep(ctx context.Context, actor Actor, id string) (Position, error) {
	current, role, err := s.participant(ctx, actor, id)
	if err != nil {
		return Position{}, err
	}
	pos := Position{Role: role}
	if cursor, ok := s.machine.Cursor(ctx, current.ID, role); ok {
		pos.Current = cursor.Current
		pos.Cursor = &cursor
	}
	return pos, nil
}

func (s *Service) Resume(ctx context.Context, actor Actor, id string, requested workflow.Step) (workflow.Decision, error) {
	current, role, err := s.participant(ctx, actor, id)
	if err != nil {
		return workflow.Decision{}, err
	}
	return s.machine.ResumeOrRestart(ctx, current.ID, role, requested)
}

func (s *Service) Advance(ctx context.Context, actor Actor, id string, from workflow.Step) (workflow.Step, error) {
	current, role, err := s.participant(ctx, actor, id)
	if err != nil {
		return "", err
	}
	return s.machine.Advance(ctx, current.ID, role, from)
}

func (s *Service) GoBack(ctx context.Context, actor Actor, id string, from workflow.Step) (workflow.Step, error) {
	current, role, err := s.participant(ctx, actor, id)
	if err != nil {
		return "", err
	}
	return s.machine.GoBack(ctx, current.ID, role, from)
}

func (s *Service) Restart(ctx context.Context, actor Actor, id string) (workflow.Step, error) {
	current, role, err := s.participant(ctx, actor, id)
	if err != nil {
		return "", err
	}
	step, err := s.machine.Restart(ctx, current.ID, role)
	if err != nil {
		return "", err
	}
	s.record(ctx, actor, AuditWorkflowRestart, current.ID, "", nil, map[string]workflow.Role{"role": role})
	return step, nil
}
