package appraisal

import "errors"

var (
	ErrStatusRegression     = errors.New("status cannot move backwards")
	ErrStatusNotAllowed     = errors.New("status is not yours to set")
	ErrSectionLocked        = errors.New("section is locked")
	ErrEndYearReviewMissing = errors.New("end-year review has not been saved")
	ErrSamePerson           = errors.New("appraisee and appraiser must differ")
	ErrNotParticipant       = errors.New("user is not a party to this appraisal")
)
