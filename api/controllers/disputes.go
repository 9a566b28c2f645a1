package controllers

import (
	"net/http"

	"github.com/digitalhandshake/dhs-backend/api/middleware"
	"github.com/digitalhandshake/dhs-backend/api/responses"
	"github.com/digitalhandshake/dhs-backend/api/validators"
	disputessvc "github.com/digitalhandshake/dhs-backend/internal/disputes"
	pkgerrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
	"github.com/digitalhandshake/dhs-backend/pkg/logger"
)

type motivationRequest struct {
	MotivationHash string `json:"motivationHash" validate:"required,len=64,hexadecimal"`
}

type voteRequest struct {
	Preferred string `json:"preferred" validate:"required,min=3,max=64"`
}

// OpenDispute starts arbitration on a confirmed handshake. Dealer only.
func OpenDispute(svc disputessvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := middleware.AccountFromContext(r.Context())
		if caller == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing"))
			return
		}

		id, err := validators.ParsePathID(r, "handshakeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.Open(r.Context(), id, caller)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, dispute)
	}
}

// SubmitMotivation records a party's motivation digest for the jurors.
func SubmitMotivation(svc disputessvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := middleware.AccountFromContext(r.Context())
		if caller == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing"))
			return
		}

		id, err := validators.ParsePathID(r, "handshakeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload motivationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.Motivate(r.Context(), id, caller, payload.MotivationHash)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, dispute)
	}
}

// CastVote records an assigned juror's vote for one of the parties.
func CastVote(svc disputessvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := middleware.AccountFromContext(r.Context())
		if caller == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing"))
			return
		}

		id, err := validators.ParsePathID(r, "handshakeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload voteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.Vote(r.Context(), id, caller, payload.Preferred)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, dispute)
	}
}

// GetDispute returns the dispute attached to a handshake.
func GetDispute(svc disputessvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathID(r, "handshakeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, dispute)
	}
}

// ListAssignedDisputes returns the disputes the calling juror sits on.
func ListAssignedDisputes(svc disputessvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := middleware.AccountFromContext(r.Context())
		if caller == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ListForJuror(r.Context(), caller, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, items)
	}
}
