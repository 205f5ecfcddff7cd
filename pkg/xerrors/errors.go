package xerrors

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Generic
var (
	ErrInvalidInput   = errors.New("invalid input provided")
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInternalServer = errors.New("internal server error")
)

// Events
var (
	ErrUnknownEventType     = errors.New("unknown event type")
	ErrUnknownAggregateType = errors.New("unknown aggregate type")
	ErrTooManyListeners     = errors.New("max listeners reached for event type")
)

// Notifications
var ErrNoEnabledChannels = errors.New("no enabled channels for user")

func ParsePGErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code // e.g. 23505 for unique_violation
	}
	return "unknown"
}
