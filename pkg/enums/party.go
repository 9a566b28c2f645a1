package enums

import "fmt"

// Party identifies one side of a handshake. Dispute winners are expressed in
// the same terms.
type Party string

const (
	PartyDealer Party = "dealer"
	PartyBidder Party = "bidder"
)

var validParties = []Party{
	PartyDealer,
	PartyBidder,
}

// String implements fmt.Stringer.
func (p Party) String() string {
	return string(p)
}

// IsValid reports whether the value is a known Party.
func (p Party) IsValid() bool {
	for _, candidate := range validParties {
		if candidate == p {
			return true
		}
	}
	return false
}

// Opponent returns the other side of the handshake.
func (p Party) Opponent() Party {
	if p == PartyDealer {
		return PartyBidder
	}
	return PartyDealer
}

// ParseParty converts raw input into a Party.
func ParseParty(value string) (Party, error) {
	for _, candidate := range validParties {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid party %q", value)
}
