// Package port defines the interfaces the ledger core consumes: the record
// store (per aggregate), a transaction scope, a clock, and the reminder
// delivery boundary. Services depend on these, never on concrete stores.
package port

import (
	"context"
	"time"
)

// Transactor frames a set of store writes as one atomic transaction.
// Implementations propagate the transaction through the context; nested
// calls join the enclosing transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Clock abstracts time so the core never reads the system clock directly.
type Clock interface {
	Now() time.Time
	Today() time.Time
}

// SystemClock is the production clock. Today truncates to UTC midnight.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

func (SystemClock) Today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// FixedClock serves a constant instant; used by tests and replays.
type FixedClock struct {
	Instant time.Time
}

func (c FixedClock) Now() time.Time { return c.Instant }

func (c FixedClock) Today() time.Time {
	return time.Date(c.Instant.Year(), c.Instant.Month(), c.Instant.Day(), 0, 0, 0, 0, time.UTC)
}

// ReminderSender delivers payment reminders. Delivery is delegated and may
// fail independently of the ledger state.
type ReminderSender interface {
	SendReminder(ctx context.Context, accountID, invoiceID string, message string) error
}

// Store is the full persistence surface of the ledger. Both backing stores
// implement it; services only ever see this interface.
type Store interface {
	Transactor
	RegistryStore
	FeeStructureStore
	AccountStore
	BillingStore
	PaymentStore
	CreditStore
	FineStore
}
