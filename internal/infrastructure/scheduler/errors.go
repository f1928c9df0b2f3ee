package scheduler

import "errors"

var (
	// ErrJobNotFound is returned when a job is not registered
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyRunning is returned when a run of the same job is in progress
	ErrJobAlreadyRunning = errors.New("job already running")

	// ErrDuplicateJob is returned when a job name is registered twice
	ErrDuplicateJob = errors.New("job already registered")

	// ErrInvalidSchedule is returned when a schedule expression cannot be parsed
	ErrInvalidSchedule = errors.New("invalid schedule expression")
)
