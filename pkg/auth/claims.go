package auth

import (
	"github.com/digitalhandshake/dhs-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	Account string
	Role    enums.AccountRole
}

// AccessTokenClaims is the typed JWT issued to clients. Account is the
// platform identity every public operation authorizes against.
type AccessTokenClaims struct {
	Account string            `json:"account"`
	Role    enums.AccountRole `json:"role"`
	jwt.RegisteredClaims
}
