package appraisal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"staffappraisal/internal/domain/apperr"
	"staffappraisal/internal/domain/lock"
	"staffappraisal/internal/domain/workflow"
)

const appraisalColumns = `id::text, appraisee_id, appraiser_id, period_start, period_end, status,
    appraisee_cursor, appraiser_cursor, created_at, updated_at`

func (s *Store) Create(ctx context.Context, in NewAppraisal) (Appraisal, error) {
	return scanAppraisal(s.DB.QueryRow(ctx, `
    INSERT INTO appraisals (appraisee_id, appraiser_id, period_start, period_end, status)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING `+appraisalColumns, in.AppraiseeID, in.AppraiserID, in.PeriodStart, in.PeriodEnd, string(StatusDraft)))
}

func (s *Store) Get(ctx context.Context, id string) (Appraisal, error) {
	if uuid.Validate(id) != nil {
		return Appraisal{}, apperr.ErrNotFound
	}
	out, err := scanAppraisal(s.DB.QueryRow(ctx, `
    SELECT `+appraisalColumns+`
    FROM appraisals
    WHERE id = $1
  `, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Appraisal{}, apperr.ErrNotFound
	}
	return out, err
}

func (s *Store) ListForUser(ctx context.Context, userID string, limit, offset int) ([]Appraisal, int, error) {
	where := ""
	args := []any{}
	if userID != "" {
		where = " WHERE appraisee_id = $1 OR appraiser_id = $1"
		args = append(args, userID)
	}

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM appraisals"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + appraisalColumns + " FROM appraisals" + where +
		fmt.Sprintf(" ORDER BY period_start DESC, created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Appraisal
	for rows.Next() {
		item, err := scanAppraisal(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, item)
	}
	return out, total, rows.Err()
}

func (s *Store) AdvanceStatus(ctx context.Context, id string, to Status, from []Status) (Appraisal, bool, error) {
	allowed := make([]string, len(from))
	for i, status := range from {
		allowed[i] = string(status)
	}
	out, err := scanAppraisal(s.DB.QueryRow(ctx, `
    UPDATE appraisals
    SET status = $1, updated_at = now()
    WHERE id = $2 AND status = ANY($3)
    RETURNING `+appraisalColumns, string(to), id, allowed))
	if errors.Is(err, pgx.ErrNoRows) {
		return Appraisal{}, false, nil
	}
	if err != nil {
		return Appraisal{}, false, err
	}
	return out, true, nil
}

func cursorColumn(role workflow.Role) string {
	if role == workflow.RoleAppraiser {
		return "appraiser_cursor"
	}
	return "appraisee_cursor"
}

func (s *Store) LoadCursor(ctx context.Context, appraisalID string, role workflow.Role) (workflow.Cursor, bool, error) {
	var raw []byte
	err := s.DB.QueryRow(ctx, "SELECT "+cursorColumn(role)+" FROM appraisals WHERE id = $1", appraisalID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return workflow.Cursor{}, false, nil
	}
	if err != nil {
		return workflow.Cursor{}, false, err
	}
	cursor, err := decodeCursor(raw)
	if err != nil || cursor == nil {
		return workflow.Cursor{}, false, err
	}
	return *cursor, true, nil
}

func (s *Store) SaveCursor(ctx context.Context, appraisalID string, role workflow.Role, cursor workflow.Cursor) error {
	raw, err := json.Marshal(cursor)
	if err != nil {
		return err
	}
	tag, err := s.DB.Exec(ctx, "UPDATE appraisals SET "+cursorColumn(role)+" = $1, updated_at = now() WHERE id = $2", raw, appraisalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *Store) LockState(ctx context.Context, id string, step workflow.Step) (lock.State, error) {
	var lockedAt time.Time
	err := s.DB.QueryRow(ctx, `
    SELECT locked_at FROM section_locks WHERE appraisal_id = $1 AND section_type = $2
  `, id, string(step)).Scan(&lockedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return lock.State{}, nil
	}
	if err != nil {
		return lock.State{}, err
	}
	return lock.Locked(lockedAt), nil
}

func (s *Store) LockStates(ctx context.Context, id string) (map[workflow.Step]lock.State, error) {
	rows, err := s.DB.Query(ctx, "SELECT section_type, locked_at FROM section_locks WHERE appraisal_id = $1", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[workflow.Step]lock.State{}
	for rows.Next() {
		var section string
		var lockedAt time.Time
		if err := rows.Scan(&section, &lockedAt); err != nil {
			return nil, err
		}
		out[workflow.Step(section)] = lock.Locked(lockedAt)
	}
	return out, rows.Err()
}

func (s *Store) MarkLocked(ctx context.Context, id string, step workflow.Step, at time.Time) (lock.State, error) {
	if _, err := s.DB.Exec(ctx, `
    INSERT INTO section_locks (appraisal_id, section_type, locked_at)
    VALUES ($1,$2,$3)
    ON CONFLICT (appraisal_id, section_type) DO NOTHING
  `, id, string(step), at); err != nil {
		return lock.State{}, err
	}
	return s.LockState(ctx, id, step)
}

func (s *Store) ClearLock(ctx context.Context, id string, step workflow.Step) error {
	_, err := s.DB.Exec(ctx, "DELETE FROM section_locks WHERE appraisal_id = $1 AND section_type = $2", id, string(step))
	return err
}

func scanAppraisal(row pgx.Row) (Appraisal, error) {
	var (
		out                  Appraisal
		status               string
		appraiseeRaw, apprRaw []byte
	)
	if err := row.Scan(&out.ID, &out.AppraiseeID, &out.AppraiserID, &out.PeriodStart, &out.PeriodEnd, &status,
		&appraiseeRaw, &apprRaw, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return Appraisal{}, err
	}
	out.Status = Status(status)
	var err error
	if out.AppraiseeCursor, err = decodeCursor(appraiseeRaw); err != nil {
		return Appraisal{}, err
	}
	if out.AppraiserCursor, err = decodeCursor(apprRaw); err != nil {
		return Appraisal{}, err
	}
	return out, nil
}

func decodeCursor(raw []byte) (*workflow.Cursor, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var cursor workflow.Cursor
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	return &cursor, nil
}
