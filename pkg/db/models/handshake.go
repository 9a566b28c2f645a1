package models

import (
	"time"

	"github.com/digitalhandshake/dhs-backend/pkg/enums"
)

// Handshake is a single dealer/bidder transaction instance. It shares its ID
// with the request, negotiation and dispute records. Price, deadline and
// terms hash are only authoritative once the negotiation snapshot lands at
// the LOCK transition.
type Handshake struct {
	ID               int64                 `gorm:"column:id;primaryKey"`
	Dealer           string                `gorm:"column:dealer;not null;index"`
	Bidder           string                `gorm:"column:bidder;not null;index"`
	PriceAmount      int64                 `gorm:"column:price_amount;not null;default:0"`
	Deadline         int64                 `gorm:"column:deadline;not null;default:0"`
	TermsHash        string                `gorm:"column:terms_hash;type:char(64)"`
	Status           enums.HandshakeStatus `gorm:"column:status;not null"`
	UnlockedByDealer bool                  `gorm:"column:unlocked_by_dealer;not null;default:false"`
	UnlockedByBidder bool                  `gorm:"column:unlocked_by_bidder;not null;default:false"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// PartyOf returns which side of the handshake the account is on; ok is false
// for non-participants.
func (h *Handshake) PartyOf(account string) (enums.Party, bool) {
	switch account {
	case h.Dealer:
		return enums.PartyDealer, true
	case h.Bidder:
		return enums.PartyBidder, true
	}
	return "", false
}
