package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is what callers hand to Record; Before and After are marshalled as
// JSON snapshots.
type Entry struct {
	ActorID     string
	Action      string
	AppraisalID string
	Section     string
	RequestID   string
	IP          string
	Before      any
	After       any
}

type Event struct {
	ID          string          `json:"id"`
	ActorID     string          `json:"actorId"`
	Action      string          `json:"action"`
	AppraisalID string          `json:"appraisalId"`
	Section     string          `json:"section,omitempty"`
	RequestID   string          `json:"requestId"`
	IP          string          `json:"ip"`
	CreatedAt   time.Time       `json:"createdAt"`
	Before      json.RawMessage `json:"before,omitempty"`
	After       json.RawMessage `json:"after,omitempty"`
}

type Filter struct {
	Action    string
	Section   string
	ActorUser string
}

type Service struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

func (s *Service) Record(ctx context.Context, entry Entry) error {
	beforeJSON, err := snapshot(entry.Before)
	if err != nil {
		return err
	}
	afterJSON, err := snapshot(entry.After)
	if err != nil {
		return err
	}

	_, err = s.DB.Exec(ctx, `
    INSERT INTO audit_events (appraisal_id, section_type, actor_user_id, action, before_json, after_json, request_id, ip)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
  `, entry.AppraisalID, entry.Section, entry.ActorID, entry.Action, beforeJSON, afterJSON, entry.RequestID, entry.IP)
	return err
}

func (s *Service) Count(ctx context.Context, appraisalID string, filter Filter) (int, error) {
	query, args := buildBaseQuery("SELECT COUNT(1)", appraisalID, filter)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Service) List(ctx context.Context, appraisalID string, filter Filter, includeDetails bool, limit, offset int) ([]Event, error) {
	selectCols := "id::text, actor_user_id, action, appraisal_id::text, section_type, request_id, ip, created_at"
	if includeDetails {
		selectCols += ", before_json, after_json"
	}
	query, args := buildBaseQuery("SELECT "+selectCols, appraisalID, filter)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var evt Event
		dest := []any{&evt.ID, &evt.ActorID, &evt.Action, &evt.AppraisalID, &evt.Section, &evt.RequestID, &evt.IP, &evt.CreatedAt}
		if includeDetails {
			dest = append(dest, &evt.Before, &evt.After)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func buildBaseQuery(prefix, appraisalID string, filter Filter) (string, []any) {
	query := prefix + " FROM audit_events WHERE appraisal_id = $1"
	args := []any{appraisalID}
	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", len(args)+1)
		args = append(args, filter.Action)
	}
	if filter.Section != "" {
		query += fmt.Sprintf(" AND section_type = $%d", len(args)+1)
		args = append(args, filter.Section)
	}
	if filter.ActorUser != "" {
		query += fmt.Sprintf(" AND actor_user_id = $%d", len(args)+1)
		args = append(args, filter.ActorUser)
	}
	return query, args
}

func snapshot(value any) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	return json.Marshal(value)
}
