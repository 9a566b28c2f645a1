package controllers

import (
	"net/http"
	"strings"

	"github.com/digitalhandshake/dhs-backend/api/middleware"
	"github.com/digitalhandshake/dhs-backend/api/responses"
	"github.com/digitalhandshake/dhs-backend/api/validators"
	tokensvc "github.com/digitalhandshake/dhs-backend/internal/token"
	"github.com/digitalhandshake/dhs-backend/pkg/config"
	pkgerrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
	"github.com/digitalhandshake/dhs-backend/pkg/logger"
	"github.com/digitalhandshake/dhs-backend/pkg/types"
)

type transferRequest struct {
	To     string `json:"to" validate:"required,min=3,max=64"`
	Amount string `json:"amount" validate:"required"`
	Symbol string `json:"symbol,omitempty"`
	Memo   string `json:"memo,omitempty" validate:"max=256"`
}

type balanceResponse struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
	Symbol  string `json:"symbol"`
}

// GetBalance returns the caller's spendable token balance.
func GetBalance(svc tokensvc.Service, cfg config.EscrowConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account := middleware.AccountFromContext(r.Context())
		if account == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing"))
			return
		}

		balance, err := svc.Balance(r.Context(), account)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, balanceResponse{
			Account: account,
			Amount:  types.FormatAmount(balance, cfg.TokenPrecision),
			Symbol:  cfg.TokenSymbol,
		})
	}
}

// Transfer moves tokens from the caller to another account. Amounts arrive
// as decimal strings and are converted to minor units at the platform
// precision. Transfers to the engine account double as escrow deposits, with
// the handshake id carried in the memo.
func Transfer(svc tokensvc.Service, cfg config.EscrowConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from := middleware.AccountFromContext(r.Context())
		if from == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing"))
			return
		}

		var payload transferRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if payload.Symbol != "" && !strings.EqualFold(payload.Symbol, cfg.TokenSymbol) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unsupported token symbol"))
			return
		}

		amount, err := types.ParseAmount(payload.Amount, cfg.TokenPrecision)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}
		if amount <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive"))
			return
		}

		if err := svc.Transfer(r.Context(), tokensvc.TransferInput{
			From:   from,
			To:     payload.To,
			Amount: amount,
			Memo:   payload.Memo,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "transferred"})
	}
}
