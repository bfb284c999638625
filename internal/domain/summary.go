package domain

import "github.com/shopspring/decimal"

// CompanySummary aggregates the financial position of one condominium.
// Served read-only; every figure is re-derived from the store.
type CompanySummary struct {
	Company          string          `json:"company"`
	ActiveAccounts   int             `json:"active_accounts"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	TotalOverdue     decimal.Decimal `json:"total_overdue"`
	TotalCredit      decimal.Decimal `json:"total_credit"`
	OpenCycles       int             `json:"open_cycles"`
	CollectionRate   decimal.Decimal `json:"collection_rate"`
	OpenFines        int             `json:"open_fines"`
	FinesOutstanding decimal.Decimal `json:"fines_outstanding"`
	CreditsExpiring  int             `json:"credits_expiring"`
	ExpiringAmount   decimal.Decimal `json:"expiring_amount"`
}
