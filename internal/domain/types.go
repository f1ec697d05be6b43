package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is the durable wallet record. Version counts successful balance
// mutations and backs the store's conditional-write primitive; it is never
// exposed over the API.
type Account struct {
	ID        uuid.UUID
	Email     string
	Balance   decimal.Decimal
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateAccountRequest struct {
	Email string `json:"email"`
}

type CreateAccountResponse struct {
	UserID  uuid.UUID       `json:"user_id"`
	Email   string          `json:"email"`
	Balance decimal.Decimal `json:"balance"`
}

type BalanceResponse struct {
	UserID  uuid.UUID       `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type MutationResponse struct {
	UserID     uuid.UUID       `json:"user_id"`
	NewBalance decimal.Decimal `json:"new_balance"`
}
