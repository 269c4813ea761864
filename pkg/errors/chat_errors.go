package errors

import pkgerrors "github.com/pkg/errors"

var (
	// Validation errors, rejected before any I/O
	ErrInvalidRole        = InvalidArg("permission level must be one of: owner, manager, trusted, muted, banned")
	ErrChannelNameTooLong = InvalidArg("channel name must be 16 characters or less")
	ErrChannelNameEmpty   = InvalidArg("channel name cannot be empty")
	ErrChannelExists      = AlreadyExists("a channel with that name already exists")
	ErrChannelNotFound    = NotFound("channel not found")
	ErrUnknownStorageType = InvalidArg("storage type must be \"postgres\", \"sqlite\" or \"file\"")

	// Precondition failures surfaced by manager workflows
	ErrNotInChannel      = FailedPrecondition("user is not in that channel")
	ErrOwnerCannotLeave  = FailedPrecondition("channel owners must transfer ownership before leaving")
	ErrCannotLeavePublic = FailedPrecondition("the public channel cannot be left")
)

// ErrStorageIO attaches a stack to the driver error so storage faults
// remain debuggable after crossing the future boundary.
func ErrStorageIO(op string, cause error) error {
	return Wrap(CodeInternal, "storage operation failed: "+op, pkgerrors.WithStack(cause))
}

func ErrBackendUnavailable(cause error) error {
	return Wrap(CodeUnavailable, "relational backend unavailable", cause)
}
