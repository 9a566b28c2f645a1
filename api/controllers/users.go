package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/digitalhandshake/dhs-backend/api/middleware"
	"github.com/digitalhandshake/dhs-backend/api/responses"
	"github.com/digitalhandshake/dhs-backend/api/validators"
	userssvc "github.com/digitalhandshake/dhs-backend/internal/users"
	"github.com/digitalhandshake/dhs-backend/pkg/enums"
	pkgerrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
	"github.com/digitalhandshake/dhs-backend/pkg/logger"
)

type signupRequest struct {
	Account          string `json:"account" validate:"required,min=1,max=12,lowercase"`
	Role             string `json:"role" validate:"required,oneof=user juror"`
	ExternalDataHash string `json:"externalDataHash" validate:"required,len=64,hexadecimal"`
	Password         string `json:"password" validate:"required,min=8,max=128"`
}

// Signup registers a new account in exactly one of the two roles.
func Signup(svc userssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "users service unavailable"))
			return
		}

		var payload signupRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role, err := enums.ParseAccountRole(payload.Role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role"))
			return
		}

		profile, err := svc.Signup(r.Context(), userssvc.SignupInput{
			Account:          payload.Account,
			Role:             role,
			ExternalDataHash: payload.ExternalDataHash,
			Password:         payload.Password,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, profile)
	}
}

// MyProfile returns the authenticated account's own profile.
func MyProfile(svc userssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account := middleware.AccountFromContext(r.Context())
		if account == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing"))
			return
		}

		profile, err := svc.GetProfile(r.Context(), account)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, profile)
	}
}

// GetProfile returns the public profile of any registered account.
func GetProfile(svc userssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account := chi.URLParam(r, "account")
		if account == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "account is required"))
			return
		}

		profile, err := svc.GetProfile(r.Context(), account)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, profile)
	}
}
