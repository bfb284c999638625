package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Fine Management
// ============================================================

// FineStatus is the lifecycle status of a fine.
type FineStatus string

const (
	FinePending       FineStatus = "pending"
	FineOverdue       FineStatus = "overdue"
	FinePartiallyPaid FineStatus = "partially_paid"
	FinePaid          FineStatus = "paid"
	FineDisputed      FineStatus = "disputed"
	FineWaived        FineStatus = "waived"
	FineWrittenOff    FineStatus = "written_off"
)

// FineCategory classifies the infraction.
type FineCategory string

const (
	FineNoise         FineCategory = "noise"
	FineParking       FineCategory = "parking"
	FineCommonAreas   FineCategory = "common_areas"
	FineLatePayment   FineCategory = "late_payment"
	FineRuleViolation FineCategory = "rule_violation"
)

// Fine is a non-recurring penalty charge with its own escalation ladder.
// TotalAmount = escalated original + interest + admin + legal + collection
// fees, and is monotonically non-decreasing while unpaid.
type Fine struct {
	ID             string          `json:"id"`
	AccountID      string          `json:"account_id"`
	Company        string          `json:"company"`
	Category       FineCategory    `json:"category"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	IssueDate      time.Time       `json:"issue_date"`
	DueDate        time.Time       `json:"due_date"`
	Level          int             `json:"level"`
	Interest       decimal.Decimal `json:"interest"`
	AdminFees      decimal.Decimal `json:"admin_fees"`
	LegalFees      decimal.Decimal `json:"legal_fees"`
	CollectionFees decimal.Decimal `json:"collection_fees"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	Status         FineStatus      `json:"status"`
	WaivedBy       string          `json:"waived_by,omitempty"`
	DisputedBy     string          `json:"disputed_by,omitempty"`
	WrittenOffBy   string          `json:"written_off_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Validate enforces fine invariants on create.
func (f *Fine) Validate() error {
	if f.AccountID == "" {
		return &ErrValidation{Field: "account_id", Message: "required"}
	}
	if !f.OriginalAmount.IsPositive() {
		return &ErrValidation{Field: "original_amount", Message: "must be positive"}
	}
	if f.IssueDate.IsZero() {
		return &ErrValidation{Field: "issue_date", Message: "required"}
	}
	if f.DueDate.Before(f.IssueDate) {
		return &ErrValidation{Field: "due_date", Message: "must not be before issue_date"}
	}
	return nil
}

// Outstanding is the unpaid portion of the fine's current total.
func (f *Fine) Outstanding() decimal.Decimal {
	out := f.TotalAmount.Sub(f.PaidAmount)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// Open reports whether the fine can still receive payments.
func (f *Fine) Open() bool {
	switch f.Status {
	case FinePending, FineOverdue, FinePartiallyPaid:
		return true
	}
	return false
}

// EscalationStep is one rung of the escalation ladder.
type EscalationStep struct {
	AfterDays  int
	Level      int
	Action     string
	Multiplier decimal.Decimal
}

// EscalationPolicy drives fine escalation. DailyInterestPct accrues on the
// original amount; AdminFeeStep increases linearly with level; LegalFee
// applies from LegalLevel; CollectionPct of the escalated amount applies
// from CollectionLevel.
type EscalationPolicy struct {
	Steps            []EscalationStep
	DailyInterestPct decimal.Decimal
	AdminFeeStep     decimal.Decimal
	LegalFee         decimal.Decimal
	LegalLevel       int
	CollectionPct    decimal.Decimal
	CollectionLevel  int
}

// DefaultEscalationPolicy mirrors the standard notice ladder:
// 7d first notice x1.0, 14d second notice x1.25, 21d final notice x1.5,
// 30d legal action x2.0, 45d collection agency x2.5.
func DefaultEscalationPolicy() EscalationPolicy {
	return EscalationPolicy{
		Steps: []EscalationStep{
			{AfterDays: 7, Level: 1, Action: "first_notice", Multiplier: decimal.NewFromInt(1)},
			{AfterDays: 14, Level: 2, Action: "second_notice", Multiplier: MustMoney("1.25")},
			{AfterDays: 21, Level: 3, Action: "final_notice", Multiplier: MustMoney("1.5")},
			{AfterDays: 30, Level: 4, Action: "legal_action", Multiplier: decimal.NewFromInt(2)},
			{AfterDays: 45, Level: 5, Action: "collection_agency", Multiplier: MustMoney("2.5")},
		},
		DailyInterestPct: MustMoney("0.1"),
		AdminFeeStep:     decimal.NewFromInt(50),
		LegalFee:         decimal.NewFromInt(500),
		LegalLevel:       4,
		CollectionPct:    decimal.NewFromInt(25),
		CollectionLevel:  5,
	}
}

// FineAssessment is the outcome of evaluating a fine at a point in time.
type FineAssessment struct {
	Level          int             `json:"level"`
	Action         string          `json:"action"`
	Multiplier     decimal.Decimal `json:"multiplier"`
	Escalated      decimal.Decimal `json:"escalated"`
	Interest       decimal.Decimal `json:"interest"`
	AdminFees      decimal.Decimal `json:"admin_fees"`
	LegalFees      decimal.Decimal `json:"legal_fees"`
	CollectionFees decimal.Decimal `json:"collection_fees"`
	Total          decimal.Decimal `json:"total"`
}

// Evaluate computes the level, component breakdown and new total for a fine
// as of now. Pure given its inputs; safe to call on demand. The returned
// level never goes below the fine's current level, keeping escalation
// monotonic.
func (f *Fine) Evaluate(now time.Time, policy EscalationPolicy) FineAssessment {
	days := int(now.Sub(f.IssueDate).Hours() / 24)
	if days < 0 {
		days = 0
	}

	level := 0
	action := ""
	multiplier := decimal.NewFromInt(1)
	for _, step := range policy.Steps {
		if days >= step.AfterDays {
			level = step.Level
			action = step.Action
			multiplier = step.Multiplier
		}
	}
	if level < f.Level {
		level = f.Level
		for _, step := range policy.Steps {
			if step.Level == level {
				action = step.Action
				multiplier = step.Multiplier
			}
		}
	}

	escalated := f.OriginalAmount.Mul(multiplier)
	interest := Percent(f.OriginalAmount, policy.DailyInterestPct).Mul(decimal.NewFromInt(int64(days)))

	adminFees := decimal.Zero
	if level > 0 {
		adminFees = policy.AdminFeeStep.Mul(decimal.NewFromInt(int64(level)))
	}
	legalFees := decimal.Zero
	if level >= policy.LegalLevel {
		legalFees = policy.LegalFee
	}
	collectionFees := decimal.Zero
	if level >= policy.CollectionLevel {
		collectionFees = Percent(escalated, policy.CollectionPct)
	}

	return FineAssessment{
		Level:          level,
		Action:         action,
		Multiplier:     multiplier,
		Escalated:      RoundMoney(escalated),
		Interest:       RoundMoney(interest),
		AdminFees:      RoundMoney(adminFees),
		LegalFees:      RoundMoney(legalFees),
		CollectionFees: RoundMoney(collectionFees),
		Total:          RoundMoney(escalated.Add(interest).Add(adminFees).Add(legalFees).Add(collectionFees)),
	}
}
