// Package service provides the business logic layer (use cases).
// LedgerService handles all ledger operations: property registry, fee
// structures, accounts, billing cycles, payments, credits and fines.
package service

import (
	"time"

	"github.com/arvetta/condo-ledger-go/internal/config"
	"github.com/arvetta/condo-ledger-go/internal/domain"
	"github.com/arvetta/condo-ledger-go/internal/infra/cache"
	"github.com/arvetta/condo-ledger-go/internal/infra/observability"
	"github.com/arvetta/condo-ledger-go/internal/infra/resilience"
	"github.com/arvetta/condo-ledger-go/internal/port"

	"go.uber.org/zap"
)

// Policy carries the tunable ledger rules, resolved once from config.
type Policy struct {
	CreditExpiryMonths int
	DefaultGraceDays   int
	Escalation         domain.EscalationPolicy
	MaxConcurrency     int
}

// PolicyFromConfig builds the runtime policy from the environment config.
func PolicyFromConfig(cfg *config.Config) Policy {
	esc := domain.DefaultEscalationPolicy()
	esc.DailyInterestPct = cfg.DailyInterestPct
	esc.AdminFeeStep = cfg.AdminFeeStep
	esc.LegalFee = cfg.LegalFee
	esc.CollectionPct = cfg.CollectionPct
	return Policy{
		CreditExpiryMonths: cfg.CreditExpiryMonths,
		DefaultGraceDays:   cfg.DefaultGraceDays,
		Escalation:         esc,
		MaxConcurrency:     cfg.MaxConcurrency,
	}
}

// LedgerService orchestrates all ledger operations over the record store.
type LedgerService struct {
	store     port.Store
	clock     port.Clock
	reminders port.ReminderSender
	metrics   *observability.Metrics
	logger    *zap.Logger
	policy    Policy

	// structCache caches the resolved active fee structure per company;
	// invalidated whenever a structure is created, updated or submitted.
	structCache *cache.InMemory[domain.FeeStructure]
	locks       *keyedLocks
	bulkhead    *resilience.Bulkhead
}

// NewLedgerService creates a new ledger service.
func NewLedgerService(store port.Store, clock port.Clock, reminders port.ReminderSender, metrics *observability.Metrics, logger *zap.Logger, policy Policy, cacheTTL time.Duration) *LedgerService {
	if policy.MaxConcurrency <= 0 {
		policy.MaxConcurrency = 1
	}
	return &LedgerService{
		store:       store,
		clock:       clock,
		reminders:   reminders,
		metrics:     metrics,
		logger:      logger,
		policy:      policy,
		structCache: cache.New[domain.FeeStructure](cacheTTL),
		locks:       newKeyedLocks(),
		bulkhead:    resilience.NewBulkhead(policy.MaxConcurrency),
	}
}
