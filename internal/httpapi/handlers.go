package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/OneMiay/CustodialWallet/internal/domain"
	"github.com/OneMiay/CustodialWallet/internal/ledger"
	"github.com/OneMiay/CustodialWallet/internal/store"
)

// Amounts and balances travel as JSON numbers on the wire, matching how
// they are decoded. The default quoted-string form would change the
// response shape for every client.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

type Handlers struct {
	svc *ledger.Service
}

func NewHandlers(svc *ledger.Service) *Handlers { return &Handlers{svc: svc} }

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func httpStatusForErr(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	// Ledger business outcomes
	case errors.Is(err, ledger.ErrEmailRequired),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrEmailExists):
		return http.StatusConflict

	// Transient conditions worth a client retry
	case errors.Is(err, ledger.ErrTooMuchContention),
		errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable

	// Context / timeouts
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout

	default:
		return http.StatusInternalServerError
	}
}

func publicErrMessage(code int, err error) string {
	// Don't leak internals on 5xx.
	switch {
	case code == http.StatusServiceUnavailable:
		return "temporarily unavailable, retry later"
	case code >= 500:
		return "internal error"
	default:
		return err.Error()
	}
}

func writeLedgerErr(w http.ResponseWriter, err error) {
	code := httpStatusForErr(err)
	writeErr(w, code, publicErrMessage(code, err))
}

// POST /v1/accounts
func (h *Handlers) CreateAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req domain.CreateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	acc, err := h.svc.CreateAccount(ctx, req.Email)
	if err != nil {
		writeLedgerErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, domain.CreateAccountResponse{
		UserID:  acc.ID,
		Email:   acc.Email,
		Balance: acc.Balance,
	})
}

// AccountSubresource dispatches
//
//	GET  /v1/accounts/{uuid}/balance
//	POST /v1/accounts/{uuid}/deposit
//	POST /v1/accounts/{uuid}/withdraw
func (h *Handlers) AccountSubresource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/accounts/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 {
		writeErr(w, http.StatusNotFound, "not found")
		return
	}

	accID, err := uuid.Parse(parts[0])
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid account id")
		return
	}

	switch parts[1] {
	case "balance":
		h.getBalance(w, r, accID)
	case "deposit":
		h.mutateBalance(w, r, accID, h.svc.Deposit)
	case "withdraw":
		h.mutateBalance(w, r, accID, h.svc.Withdraw)
	default:
		writeErr(w, http.StatusNotFound, "not found")
	}
}

func (h *Handlers) getBalance(w http.ResponseWriter, r *http.Request, accID uuid.UUID) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	acc, err := h.svc.GetBalance(ctx, accID)
	if err != nil {
		writeLedgerErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domain.BalanceResponse{
		UserID:  acc.ID,
		Balance: acc.Balance,
	})
}

func (h *Handlers) mutateBalance(w http.ResponseWriter, r *http.Request, accID uuid.UUID, op func(context.Context, uuid.UUID, decimal.Decimal) (domain.Account, error)) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req domain.AmountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	acc, err := op(ctx, accID, req.Amount)
	if err != nil {
		writeLedgerErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domain.MutationResponse{
		UserID:     acc.ID,
		NewBalance: acc.Balance,
	})
}
