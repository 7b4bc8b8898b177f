package services

import "errors"

// Engine error taxonomy. Handlers map these to HTTP codes; nothing below is
// ever swallowed inside the services.
var (
	ErrAlreadyRecorded  = errors.New("already recorded")        // second gate entry/exit for the day
	ErrDuplicateRecord  = errors.New("duplicate record")        // classroom record exists for (student, date, session)
	ErrImmutableRecord  = errors.New("immutable record")        // mutation of a final-state retiro
	ErrAlreadyReviewed  = errors.New("already reviewed")        // second review of a justificacion
	ErrNoPendingAbsence = errors.New("no pending absence")      // justification against records not currently pending
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")               // actor outside institution/guardian scope
	ErrInvalidArgument  = errors.New("invalid argument")
)
