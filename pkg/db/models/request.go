package models

import (
	"time"

	dbtypes "github.com/digitalhandshake/dhs-backend/pkg/db/types"
	"github.com/digitalhandshake/dhs-backend/pkg/enums"
)

// Request is a dealer's public call for bids. IDs are assigned as
// max-existing-id + 1 inside the posting transaction.
type Request struct {
	ID             int64               `gorm:"column:id;primaryKey"`
	Dealer         string              `gorm:"column:dealer;not null;index"`
	Summary        string              `gorm:"column:summary;not null"`
	TermsHash      string              `gorm:"column:terms_hash;type:char(64);not null"`
	PriceAmount    int64               `gorm:"column:price_amount;not null"`
	Deadline       int64               `gorm:"column:deadline;not null"`
	Status         enums.RequestStatus `gorm:"column:status;not null"`
	Bidders        dbtypes.StringList  `gorm:"column:bidders;type:text;not null"`
	SelectedBidder string              `gorm:"column:selected_bidder"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
