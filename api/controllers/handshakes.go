package controllers

import (
	"net/http"

	"github.com/digitalhandshake/dhs-backend/api/middleware"
	"github.com/digitalhandshake/dhs-backend/api/responses"
	"github.com/digitalhandshake/dhs-backend/api/validators"
	handshakessvc "github.com/digitalhandshake/dhs-backend/internal/handshakes"
	pkgerrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
	"github.com/digitalhandshake/dhs-backend/pkg/logger"
)

type negotiateRequest struct {
	TermsHash   string `json:"termsHash" validate:"required,len=64,hexadecimal"`
	PriceAmount int64  `json:"priceAmount" validate:"required,min=1"`
	Deadline    int64  `json:"deadline" validate:"required,min=1"`
}

// ListHandshakes returns the handshakes the caller participates in.
func ListHandshakes(svc handshakessvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account := middleware.AccountFromContext(r.Context())
		if account == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ListByParticipant(r.Context(), account, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, items)
	}
}

// GetHandshake returns a handshake with its negotiation history.
func GetHandshake(svc handshakessvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathID(r, "handshakeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, detail)
	}
}

// Negotiate appends a counter-proposal to an open negotiation.
func Negotiate(svc handshakessvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload negotiateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		negotiation, err := svc.Negotiate(r.Context(), handshakessvc.NegotiateInput{
			HandshakeID: id,
			Caller:      caller,
			TermsHash:   payload.TermsHash,
			PriceAmount: payload.PriceAmount,
			Deadline:    payload.Deadline,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, negotiation)
	}
}

// handshakeAction factors the shared shape of the lifecycle endpoints: a
// path id, the caller account, and a single service call.
func handshakeAction(
	logg *logger.Logger,
	action func(r *http.Request, handshakeID int64, caller string) (any, error),
) http.HandlerFunc {
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

		result, err := action(r, id, caller)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// AcceptTerms records the caller's acceptance of the latest proposal.
func AcceptTerms(svc handshakessvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handshakeAction(logg, func(r *http.Request, id int64, caller string) (any, error) {
		return svc.AcceptTerms(r.Context(), id, caller)
	})
}

// EndJob moves an executing handshake into confirmation. Bidder only.
func EndJob(svc handshakessvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handshakeAction(logg, func(r *http.Request, id int64, caller string) (any, error) {
		return svc.EndJob(r.Context(), id, caller)
	})
}

// AcceptJob settles a confirmed handshake in the bidder's favor. Dealer only.
func AcceptJob(svc handshakessvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handshakeAction(logg, func(r *http.Request, id int64, caller string) (any, error) {
		return svc.AcceptJob(r.Context(), id, caller)
	})
}

// ExpireHandshake releases the caller's locked funds after the deadline.
func ExpireHandshake(svc handshakessvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handshakeAction(logg, func(r *http.Request, id int64, caller string) (any, error) {
		return svc.Expire(r.Context(), id, caller)
	})
}
