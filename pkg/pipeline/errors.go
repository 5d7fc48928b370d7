package pipeline

import "errors"

var (
	// ErrAlreadyRunning is returned by Start when the pipeline is not idle.
	ErrAlreadyRunning = errors.New("pipeline already running")

	// ErrNotRunning is returned by Stop/Pause/Resume when there is nothing
	// to act on.
	ErrNotRunning = errors.New("pipeline is not running")

	// ErrUpdateWhileRunning is returned by UpdateLanguages while listening.
	ErrUpdateWhileRunning = errors.New("cannot update languages while running")

	// ErrInvalidStateTransition is returned by PipelineStateManager.SetState.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrQueueFull is returned by TranslationQueueManager.Enqueue.
	ErrQueueFull = errors.New("translation queue full")

	// ErrNilProvider is returned when a required adapter port is nil.
	ErrNilProvider = errors.New("required provider is nil")

	// ErrUnknownCommand is returned for an unrecognized external command.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrCommandValidation is returned for a malformed external command.
	ErrCommandValidation = errors.New("command validation failed")
)
