package payloads

import (
	"time"

	"github.com/digitalhandshake/dhs-backend/pkg/enums"
)

// RequestPostedEvent signals a dealer publishing a new service request.
type RequestPostedEvent struct {
	RequestID   int64  `json:"requestId"`
	Dealer      string `json:"dealer"`
	PriceAmount int64  `json:"priceAmount"`
	Deadline    int64  `json:"deadline"`
}

// RequestClosedEvent is emitted when a dealer selects a bidder and the
// request leaves the open listing.
type RequestClosedEvent struct {
	RequestID      int64  `json:"requestId"`
	Dealer         string `json:"dealer"`
	SelectedBidder string `json:"selectedBidder"`
}

// HandshakeCreatedEvent marks the start of negotiation between the parties.
type HandshakeCreatedEvent struct {
	HandshakeID int64  `json:"handshakeId"`
	Dealer      string `json:"dealer"`
	Bidder      string `json:"bidder"`
}

// TermsAcceptedEvent carries the frozen terms once both parties accept.
type TermsAcceptedEvent struct {
	HandshakeID int64  `json:"handshakeId"`
	TermsHash   string `json:"termsHash"`
	PriceAmount int64  `json:"priceAmount"`
	Deadline    int64  `json:"deadline"`
}

// HandshakeExecutingEvent reports that both escrow locks were notified and
// work may begin.
type HandshakeExecutingEvent struct {
	HandshakeID int64 `json:"handshakeId"`
}

// JobEndedEvent is emitted when the bidder reports the work done.
type JobEndedEvent struct {
	HandshakeID int64  `json:"handshakeId"`
	Bidder      string `json:"bidder"`
}

// HandshakeAcceptedEvent reports the dealer approving delivered work and the
// escrow settlement that follows.
type HandshakeAcceptedEvent struct {
	HandshakeID int64 `json:"handshakeId"`
	PriceAmount int64 `json:"priceAmount"`
	StakeAmount int64 `json:"stakeAmount"`
}

// DisputeOpenedEvent carries the drawn jury for a disputed handshake.
type DisputeOpenedEvent struct {
	HandshakeID int64    `json:"handshakeId"`
	OpenedBy    string   `json:"openedBy"`
	Jurors      []string `json:"jurors"`
}

// DisputeVotingEvent reports both motivations being in and voting opening.
type DisputeVotingEvent struct {
	HandshakeID int64 `json:"handshakeId"`
}

// DisputeResolvedEvent carries the verdict once all jurors have voted.
type DisputeResolvedEvent struct {
	HandshakeID int64       `json:"handshakeId"`
	Winner      enums.Party `json:"winner"`
	Votes       []string    `json:"votes"`
}

// HandshakeExpiredEvent is emitted when both parties unlock after the
// deadline passes.
type HandshakeExpiredEvent struct {
	HandshakeID int64     `json:"handshakeId"`
	ExpiredAt   time.Time `json:"expiredAt"`
}

// DeadlinePassedEvent is produced by the sweep job for handshakes whose
// deadline elapsed without the job being ended.
type DeadlinePassedEvent struct {
	HandshakeID int64 `json:"handshakeId"`
	Deadline    int64 `json:"deadline"`
}
