package models

import "time"

// Dispute records the arbitration of a single handshake: the three randomly
// selected jurors, both parties' motivation digests and the incoming votes.
// Votes hold the preferred participant account or the empty string while
// unset.
type Dispute struct {
	HandshakeID             int64     `gorm:"column:handshake_id;primaryKey"`
	Dealer                  string    `gorm:"column:dealer;not null"`
	Bidder                  string    `gorm:"column:bidder;not null"`
	Juror1                  string    `gorm:"column:juror1;not null;index"`
	Juror2                  string    `gorm:"column:juror2;not null;index"`
	Juror3                  string    `gorm:"column:juror3;not null;index"`
	Vote1                   string    `gorm:"column:vote1;not null;default:''"`
	Vote2                   string    `gorm:"column:vote2;not null;default:''"`
	Vote3                   string    `gorm:"column:vote3;not null;default:''"`
	DealerMotivationHash    string    `gorm:"column:dealer_motivation_hash;not null;default:''"`
	BidderMotivationHash    string    `gorm:"column:bidder_motivation_hash;not null;default:''"`
	CreatedAt               time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Jurors returns the three assigned juror accounts in selection order.
func (d *Dispute) Jurors() []string {
	return []string{d.Juror1, d.Juror2, d.Juror3}
}

// IsAssignedJuror reports whether the account sits on this dispute's panel.
func (d *Dispute) IsAssignedJuror(account string) bool {
	return account == d.Juror1 || account == d.Juror2 || account == d.Juror3
}

// AllVotesIn reports whether every juror has voted.
func (d *Dispute) AllVotesIn() bool {
	return d.Vote1 != "" && d.Vote2 != "" && d.Vote3 != ""
}
