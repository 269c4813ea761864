package chat

import "github.com/google/uuid"

// Capabilities granted by the host environment's permission system. The
// core only ever asks whether a user holds one; it never grants them.
const (
	CapAdmin             = "chat.admin"
	CapStaff             = "chat.staff"
	CapDev               = "chat.dev"
	CapUnlimitedChannels = "chat.channels.unlimited"
)

// CapabilityChecker is implemented by the host permission system.
type CapabilityChecker interface {
	Has(user uuid.UUID, capability string) bool
}

type Status string

const (
	// StatusOK: the workflow completed all of its steps.
	StatusOK Status = "ok"
	// StatusDenied: an authorization or eligibility check failed. This is
	// a normal negative outcome, not an error.
	StatusDenied Status = "denied"
	// StatusNoop: nothing needed doing (unban of a non-banned user,
	// unmute of an unmuted user, ...).
	StatusNoop Status = "noop"
	// StatusSwitched: a join of an already-joined channel became a
	// current-channel switch.
	StatusSwitched Status = "switched"
)

// Outcome is what every manager workflow reports back through its future.
type Outcome struct {
	Status Status
	Detail string
}

func OK(detail string) Outcome       { return Outcome{Status: StatusOK, Detail: detail} }
func Denied(detail string) Outcome   { return Outcome{Status: StatusDenied, Detail: detail} }
func Noop(detail string) Outcome     { return Outcome{Status: StatusNoop, Detail: detail} }
func Switched(detail string) Outcome { return Outcome{Status: StatusSwitched, Detail: detail} }
