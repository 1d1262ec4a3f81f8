package sections

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"staffappraisal/internal/domain/apperr"
	"staffappraisal/internal/domain/workflow"
)

const recordColumns = `id::text, owner_user_id, appraisal_id::text, section_type, payload,
    appraisee_signature_url, appraisee_signed_at, appraiser_signature_url, appraiser_signed_at,
    created_at, updated_at`

func signatureColumns(role workflow.Role) (string, string) {
	if role == workflow.RoleAppraiser {
		return "appraiser_signature_url", "appraiser_signed_at"
	}
	return "appraisee_signature_url", "appraisee_signed_at"
}

// Upsert serialises writers on the row: the record is created empty if
// missing, then locked, merged and updated inside one transaction. A section
// lock committed before the row lock was taken fails the write with ErrLocked.
func (s *Store) Upsert(ctx context.Context, rec Record, role workflow.Role) (Record, error) {
	empty, err := EmptyPayload(rec.Section)
	if err != nil {
		return Record{}, err
	}
	emptyJSON, err := json.Marshal(empty)
	if err != nil {
		return Record{}, err
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
    INSERT INTO section_records (owner_user_id, appraisal_id, section_type, payload)
    VALUES ($1,$2,$3,$4)
    ON CONFLICT (owner_user_id, appraisal_id, section_type) DO NOTHING
  `, rec.OwnerUserID, rec.AppraisalID, string(rec.Section), emptyJSON); err != nil {
		return Record{}, err
	}

	existing, err := scanRecord(tx.QueryRow(ctx, `
    SELECT `+recordColumns+`
    FROM section_records
    WHERE owner_user_id = $1 AND appraisal_id = $2 AND section_type = $3
    FOR UPDATE
  `, rec.OwnerUserID, rec.AppraisalID, string(rec.Section)))
	if err != nil {
		return Record{}, err
	}

	var lockedAt time.Time
	err = tx.QueryRow(ctx, `
    SELECT locked_at FROM section_locks
    WHERE appraisal_id = $1 AND section_type = $2
    FOR SHARE
  `, rec.AppraisalID, string(rec.Section)).Scan(&lockedAt)
	if err == nil {
		return Record{}, ErrLocked
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Record{}, err
	}

	merged := Apply(existing, true, rec, role)
	payloadJSON, err := json.Marshal(merged.Payload)
	if err != nil {
		return Record{}, err
	}
	var url *string
	var signedAt *time.Time
	if own := merged.Signatures.For(role); own != nil && rec.Signatures.For(role) != nil {
		url, signedAt = &own.URL, &own.Date
	}
	urlCol, dateCol := signatureColumns(role)
	saved, err := scanRecord(tx.QueryRow(ctx, fmt.Sprintf(`
    UPDATE section_records
    SET payload = $1,
        %[1]s = COALESCE($2, %[1]s),
        %[2]s = COALESCE($3, %[2]s),
        updated_at = now()
    WHERE id = $4
    RETURNING `, urlCol, dateCol)+recordColumns, payloadJSON, url, signedAt, existing.ID))
	if err != nil {
		return Record{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Record{}, err
	}
	return saved, nil
}

func (s *Store) LatestByOwner(ctx context.Context, key Key) (Record, bool, error) {
	rec, err := scanRecord(s.DB.QueryRow(ctx, `
    SELECT `+recordColumns+`
    FROM section_records
    WHERE owner_user_id = $1 AND appraisal_id = $2 AND section_type = $3
    ORDER BY updated_at DESC
    LIMIT 1
  `, key.OwnerUserID, key.AppraisalID, string(key.Section)))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *Store) ListByAppraisal(ctx context.Context, appraisalID string) ([]Record, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+recordColumns+`
    FROM section_records
    WHERE appraisal_id = $1
    ORDER BY created_at
  `, appraisalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Sign touches only role's signature columns.
func (s *Store) Sign(ctx context.Context, key Key, role workflow.Role, sig Signature) (Record, error) {
	urlCol, dateCol := signatureColumns(role)
	rec, err := scanRecord(s.DB.QueryRow(ctx, fmt.Sprintf(`
    UPDATE section_records
    SET %s = $1, %s = $2, updated_at = now()
    WHERE owner_user_id = $3 AND appraisal_id = $4 AND section_type = $5
    RETURNING `, urlCol, dateCol)+recordColumns, sig.URL, sig.Date, key.OwnerUserID, key.AppraisalID, string(key.Section)))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, apperr.ErrNotFound
	}
	return rec, err
}

func (s *Store) Delete(ctx context.Context, key Key) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    DELETE FROM section_records
    WHERE owner_user_id = $1 AND appraisal_id = $2 AND section_type = $3
  `, key.OwnerUserID, key.AppraisalID, string(key.Section))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec                   Record
		section               string
		payload               []byte
		appraiseeURL, apprURL *string
		appraiseeAt, apprAt   *time.Time
	)
	if err := row.Scan(&rec.ID, &rec.OwnerUserID, &rec.AppraisalID, &section, &payload,
		&appraiseeURL, &appraiseeAt, &apprURL, &apprAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	rec.Section = workflow.Step(section)
	decoded, err := decode(rec.Section, payload, false)
	if err != nil {
		return Record{}, fmt.Errorf("decode %s payload: %w", section, err)
	}
	rec.Payload = decoded
	rec.Signatures.Appraisee = signatureFrom(appraiseeURL, appraiseeAt)
	rec.Signatures.Appraiser = signatureFrom(apprURL, apprAt)
	return rec, nil
}

func signatureFrom(url *string, at *time.Time) *Signature {
	if url == nil || *url == "" {
		return nil
	}
	sig := &Signature{URL: *url}
	if at != nil {
		sig.Date = *at
	}
	return sig
}
