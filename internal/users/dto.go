package users

import "github.com/digitalhandshake/dhs-backend/pkg/enums"

// SignupInput carries everything an account registration needs.
type SignupInput struct {
	Account          string
	Role             enums.AccountRole
	ExternalDataHash string
	Password         string
}

// Profile is the public view of a registered account.
type Profile struct {
	Account          string            `json:"account"`
	Role             enums.AccountRole `json:"role"`
	Rating           int64             `json:"rating"`
	ExternalDataHash string            `json:"externalDataHash"`
}
