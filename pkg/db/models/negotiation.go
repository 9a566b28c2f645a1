package models

import (
	"time"

	dbtypes "github.com/digitalhandshake/dhs-backend/pkg/db/types"
)

// Negotiation is the append-only record of counter-proposals for a handshake.
// The three lists move in lockstep: index i holds one proposal's terms hash,
// price and deadline. Index 0 is seeded from the original request, so even
// indexes are dealer proposals and odd indexes bidder proposals.
type Negotiation struct {
	HandshakeID         int64              `gorm:"column:handshake_id;primaryKey"`
	ProposedTermsHashes dbtypes.StringList `gorm:"column:proposed_terms_hashes;type:text;not null"`
	ProposedPrices      dbtypes.Int64List  `gorm:"column:proposed_prices;type:text;not null"`
	ProposedDeadlines   dbtypes.Int64List  `gorm:"column:proposed_deadlines;type:text;not null"`
	AcceptedByDealer    bool               `gorm:"column:accepted_by_dealer;not null;default:false"`
	AcceptedByBidder    bool               `gorm:"column:accepted_by_bidder;not null;default:false"`
	LockedByDealer      bool               `gorm:"column:locked_by_dealer;not null;default:false"`
	LockedByBidder      bool               `gorm:"column:locked_by_bidder;not null;default:false"`
	CreatedAt           time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// ProposalCount returns how many proposals have been recorded, the seeded
// request included.
func (n *Negotiation) ProposalCount() int {
	return len(n.ProposedPrices)
}
