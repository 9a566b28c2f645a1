package controllers

import (
	"net/http"

	"github.com/digitalhandshake/dhs-backend/api/middleware"
	"github.com/digitalhandshake/dhs-backend/api/responses"
	"github.com/digitalhandshake/dhs-backend/api/validators"
	requestssvc "github.com/digitalhandshake/dhs-backend/internal/requests"
	pkgerrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
	"github.com/digitalhandshake/dhs-backend/pkg/logger"
)

type postRequestRequest struct {
	Summary     string `json:"summary" validate:"required,min=3,max=512"`
	TermsHash   string `json:"termsHash" validate:"required,len=64,hexadecimal"`
	PriceAmount int64  `json:"priceAmount" validate:"required,min=1"`
	Deadline    int64  `json:"deadline" validate:"required,min=1"`
}

type selectBidderRequest struct {
	Bidder string `json:"bidder" validate:"required,min=3,max=64"`
}

// PostRequest publishes a new work request for the authenticated dealer.
func PostRequest(svc requestssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dealer := middleware.AccountFromContext(r.Context())
		if dealer == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing"))
			return
		}

		var payload postRequestRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.PostRequest(r.Context(), requestssvc.PostRequestInput{
			Dealer:      dealer,
			Summary:     payload.Summary,
			TermsHash:   payload.TermsHash,
			PriceAmount: payload.PriceAmount,
			Deadline:    payload.Deadline,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, request)
	}
}

// ListOpenRequests pages through open requests by ascending id. Clients pass
// the last id they saw as afterId.
func ListOpenRequests(svc requestssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		afterID, err := validators.ParseQueryInt64(r, "afterId", 0)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ListOpen(r.Context(), afterID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, items)
	}
}

// ListMyRequests returns the authenticated dealer's own requests.
func ListMyRequests(svc requestssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dealer := middleware.AccountFromContext(r.Context())
		if dealer == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ListByDealer(r.Context(), dealer, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, items)
	}
}

// GetRequest returns a single request with its proposal list.
func GetRequest(svc requestssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, request)
	}
}

// Propose adds the authenticated bidder to a request's proposal list.
func Propose(svc requestssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bidder := middleware.AccountFromContext(r.Context())
		if bidder == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing"))
			return
		}

		id, err := validators.ParsePathID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Propose(r.Context(), id, bidder)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, request)
	}
}

// SelectBidder lets the dealer pick one proposal and open the handshake.
func SelectBidder(svc requestssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dealer := middleware.AccountFromContext(r.Context())
		if dealer == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing"))
			return
		}

		id, err := validators.ParsePathID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload selectBidderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		handshake, err := svc.SelectBidder(r.Context(), id, dealer, payload.Bidder)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, handshake)
	}
}
