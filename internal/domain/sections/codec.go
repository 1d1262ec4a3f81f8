package sections

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"staffappraisal/internal/domain/apperr"
	"staffappraisal/internal/domain/workflow"
)

var (
	ErrUnknownSection = errors.New("unknown section")
	ErrLocked         = errors.New("section is locked")
)

// EmptyPayload returns the zero payload for a section.
func EmptyPayload(step workflow.Step) (Payload, error) {
	switch step {
	case workflow.StepPersonalInfo:
		return PersonalInfo{}, nil
	case workflow.StepPerformancePlanning:
		return PerformancePlanning{}, nil
	case workflow.StepMidYearReview:
		return MidYearReview{}, nil
	case workflow.StepEndYearReview:
		return EndYearReview{}, nil
	case workflow.StepAnnualAppraisal:
		return AnnualAppraisal{}, nil
	case workflow.StepFinalSections:
		return FinalSections{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSection, step)
}

// DecodePayload parses client input for a section. Unknown fields are
// rejected as validation errors.
func DecodePayload(step workflow.Step, raw json.RawMessage) (Payload, error) {
	payload, err := decode(step, raw, true)
	if err != nil {
		if errors.Is(err, ErrUnknownSection) {
			return nil, apperr.Invalid("section", err.Error())
		}
		return nil, apperr.Invalid("payload", err.Error())
	}
	return payload, nil
}

func decode(step workflow.Step, raw json.RawMessage, strict bool) (Payload, error) {
	empty, err := EmptyPayload(step)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return empty, nil
	}
	switch empty.(type) {
	case PersonalInfo:
		return decodeInto[PersonalInfo](trimmed, strict)
	case PerformancePlanning:
		return decodeInto[PerformancePlanning](trimmed, strict)
	case MidYearReview:
		return decodeInto[MidYearReview](trimmed, strict)
	case EndYearReview:
		return decodeInto[EndYearReview](trimmed, strict)
	case AnnualAppraisal:
		return decodeInto[AnnualAppraisal](trimmed, strict)
	default:
		return decodeInto[FinalSections](trimmed, strict)
	}
}

func decodeInto[T Payload](raw []byte, strict bool) (Payload, error) {
	var out T
	dec := json.NewDecoder(bytes.NewReader(raw))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
