package custom_errors

import "errors"

var (
	ErrHandlerNotFound      = errors.New("handler not found")
	ErrAmbiguousHandler     = errors.New("ambiguous handler: same type, method and argument count")
	ErrUnsupportedParameter = errors.New("unsupported handler parameter")
	ErrInvalidArguments     = errors.New("invalid job arguments")
	ErrUnknownQueue         = errors.New("unknown queue")
	ErrInvalidCron          = errors.New("invalid cron expression")
	ErrLockNotAcquired      = errors.New("named lock not acquired")
	ErrPeriodicNotFound     = errors.New("periodic job not found")
	ErrLeaseLost            = errors.New("job lease lost")
)
