package enums

import "fmt"

// HandshakeStatus is the authoritative lifecycle state of a handshake.
//
// Transitions are driven exclusively by the workflow engine:
//
//	NEGOTIATION -> LOCK        both parties accepted terms
//	LOCK        -> EXECUTION   both parties' tokens observed locked
//	EXECUTION   -> CONFIRMATION bidder ended the job before the deadline
//	EXECUTION   -> EXPIRED     deadline passed and both parties unlocked
//	CONFIRMATION-> ACCEPTED    dealer accepted the job (terminal)
//	CONFIRMATION-> DISPUTE     dealer opened a dispute
//	DISPUTE     -> VOTING      both motivations recorded
//	VOTING      -> RESOLVED    all three jurors voted (terminal)
type HandshakeStatus string

const (
	HandshakeStatusNegotiation  HandshakeStatus = "negotiation"
	HandshakeStatusLock         HandshakeStatus = "lock"
	HandshakeStatusExecution    HandshakeStatus = "execution"
	HandshakeStatusConfirmation HandshakeStatus = "confirmation"
	HandshakeStatusAccepted     HandshakeStatus = "accepted"
	HandshakeStatusDispute      HandshakeStatus = "dispute"
	HandshakeStatusVoting       HandshakeStatus = "voting"
	HandshakeStatusResolved     HandshakeStatus = "resolved"
	HandshakeStatusExpired      HandshakeStatus = "expired"
)

var validHandshakeStatuses = []HandshakeStatus{
	HandshakeStatusNegotiation,
	HandshakeStatusLock,
	HandshakeStatusExecution,
	HandshakeStatusConfirmation,
	HandshakeStatusAccepted,
	HandshakeStatusDispute,
	HandshakeStatusVoting,
	HandshakeStatusResolved,
	HandshakeStatusExpired,
}

// String implements fmt.Stringer.
func (s HandshakeStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known HandshakeStatus.
func (s HandshakeStatus) IsValid() bool {
	for _, candidate := range validHandshakeStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s HandshakeStatus) IsTerminal() bool {
	switch s {
	case HandshakeStatusAccepted, HandshakeStatusResolved, HandshakeStatusExpired:
		return true
	}
	return false
}

// ParseHandshakeStatus converts raw input into a HandshakeStatus.
func ParseHandshakeStatus(value string) (HandshakeStatus, error) {
	for _, candidate := range validHandshakeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid handshake status %q", value)
}
