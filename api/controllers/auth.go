package controllers

import (
	"net/http"

	"github.com/digitalhandshake/dhs-backend/api/responses"
	"github.com/digitalhandshake/dhs-backend/api/validators"
	authsvc "github.com/digitalhandshake/dhs-backend/internal/auth"
	pkgerrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
	"github.com/digitalhandshake/dhs-backend/pkg/logger"
)

type loginRequest struct {
	Account  string `json:"account" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// Login exchanges account credentials for a bearer token.
func Login(svc authsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var payload loginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.Login(r.Context(), authsvc.LoginRequest{
			Account:  payload.Account,
			Password: payload.Password,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, resp)
	}
}
