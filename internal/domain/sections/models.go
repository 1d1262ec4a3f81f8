package sections

import (
	"encoding/json"
	"fmt"
	"time"

	"staffappraisal/internal/domain/workflow"
)

type Signature struct {
	URL  string    `json:"url"`
	Date time.Time `json:"date"`
}

type Signatures struct {
	Appraisee *Signature `json:"appraisee,omitempty"`
	Appraiser *Signature `json:"appraiser,omitempty"`
}

// Complete reports whether both parties have signed.
func (s Signatures) Complete() bool {
	return s.Appraisee != nil && s.Appraisee.URL != "" &&
		s.Appraiser != nil && s.Appraiser.URL != ""
}

func (s Signatures) For(role workflow.Role) *Signature {
	if role == workflow.RoleAppraiser {
		return s.Appraiser
	}
	return s.Appraisee
}

// Only keeps the signature owned by role; used so one party's write can never
// carry the other party's signature.
func (s Signatures) Only(role workflow.Role) Signatures {
	if role == workflow.RoleAppraiser {
		return Signatures{Appraiser: s.Appraiser}
	}
	return Signatures{Appraisee: s.Appraisee}
}

// Record is the persisted form data for one section of one appraisal. At most
// one exists per (owner, appraisal, section).
type Record struct {
	ID          string
	OwnerUserID string
	AppraisalID string
	Section     workflow.Step
	Payload     Payload
	Signatures  Signatures
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type recordJSON struct {
	ID          string          `json:"id,omitempty"`
	OwnerUserID string          `json:"ownerUserId"`
	AppraisalID string          `json:"appraisalId"`
	Section     workflow.Step   `json:"section"`
	Payload     json.RawMessage `json:"payload"`
	Signatures  Signatures      `json:"signatures"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	payload := r.Payload
	if payload == nil {
		empty, err := EmptyPayload(r.Section)
		if err != nil {
			return nil, err
		}
		payload = empty
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(recordJSON{
		ID:          r.ID,
		OwnerUserID: r.OwnerUserID,
		AppraisalID: r.AppraisalID,
		Section:     r.Section,
		Payload:     raw,
		Signatures:  r.Signatures,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	})
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var wire recordJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	payload, err := decode(wire.Section, wire.Payload, false)
	if err != nil {
		return fmt.Errorf("record payload: %w", err)
	}
	*r = Record{
		ID:          wire.ID,
		OwnerUserID: wire.OwnerUserID,
		AppraisalID: wire.AppraisalID,
		Section:     wire.Section,
		Payload:     payload,
		Signatures:  wire.Signatures,
		CreatedAt:   wire.CreatedAt,
		UpdatedAt:   wire.UpdatedAt,
	}
	return nil
}

// Key identifies the single active record of a section.
type Key struct {
	OwnerUserID string
	AppraisalID string
	Section     workflow.Step
}

func (r Record) Key() Key {
	return Key{OwnerUserID: r.OwnerUserID, AppraisalID: r.AppraisalID, Section: r.Section}
}

func (s *Signatures) Set(role workflow.Role, sig *Signature) {
	if role == workflow.RoleAppraiser {
		s.Appraiser = sig
		return
	}
	s.Appraisee = sig
}
