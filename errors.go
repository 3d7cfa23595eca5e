package taskq

import "errors"

var (
	// Lifecycle errors.
	ErrVetoed = errors.New("taskq: operation vetoed")

	// Execution errors.
	ErrNoDispatcher      = errors.New("taskq: no route dispatcher configured")
	ErrRouteNotFound     = errors.New("taskq: no route detected")
	ErrTaskNotExecutable = errors.New("taskq: task is not executable")
	ErrTaskNotRegistered = errors.New("taskq: task type not registered")
	ErrInvalidJob        = errors.New("taskq: invalid job")

	// Payload errors.
	ErrMalformedPayload = errors.New("taskq: malformed payload")
	ErrUnknownCodec     = errors.New("taskq: unknown codec")

	// Backend errors.
	ErrMissingReceipt    = errors.New("taskq: missing receipt handle")
	ErrNoSuchQueue       = errors.New("taskq: no such member queue")
	ErrNotComposite      = errors.New("taskq: backend is not a composite queue")
	ErrMissingQueueIndex = errors.New("taskq: missing member queue index")
	ErrUnknownBackend    = errors.New("taskq: unknown backend driver")

	// Configuration errors.
	ErrInvalidConfig = errors.New("taskq: invalid configuration")
)
