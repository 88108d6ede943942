package service

import "errors"

var (
	// ErrUnknownReport means neither an override nor a built-in default
	// exists for the requested report name.
	ErrUnknownReport = errors.New("unknown report")

	// ErrDefinitionNotFound means the requested definition row does not exist.
	ErrDefinitionNotFound = errors.New("report definition not found")

	// ErrInvalidDefinition means a definition failed validation before it
	// could be stored.
	ErrInvalidDefinition = errors.New("invalid report definition")

	// ErrDuplicateDefinition means an active definition already exists for
	// the name and the caller asked not to replace it.
	ErrDuplicateDefinition = errors.New("active definition already exists")

	// ErrReportNotReady means a run's artifact was requested before the run
	// completed.
	ErrReportNotReady = errors.New("report is not ready")

	// ErrReportNotFound means the requested report run does not exist.
	ErrReportNotFound = errors.New("report not found")

	// ErrExtractNotFound means the requested extract does not exist.
	ErrExtractNotFound = errors.New("extract not found")
)
