package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Fee Structure
// ============================================================

// CalculationMethod selects how the periodic base fee is derived.
type CalculationMethod string

const (
	MethodFixedAmount CalculationMethod = "fixed_amount"
	MethodByShare     CalculationMethod = "by_share"
	MethodByArea      CalculationMethod = "by_area"
	MethodMixed       CalculationMethod = "mixed"
)

// StructureStatus is the approval state of a fee structure.
// A structure is active when it is submitted and its effective window
// contains the target date.
type StructureStatus string

const (
	StructureDraft      StructureStatus = "draft"
	StructureSubmitted  StructureStatus = "submitted"
	StructureSuperseded StructureStatus = "superseded"
)

// ComponentKind distinguishes fixed from percentage components.
type ComponentKind string

const (
	ComponentFixed   ComponentKind = "fixed"
	ComponentPercent ComponentKind = "percent"
)

// FeeComponent is an additional charge layered on the base fee.
// A component applies to a property when AppliesToAll is set or the
// property's usage type is listed.
type FeeComponent struct {
	Name         string          `json:"name"`
	Kind         ComponentKind   `json:"kind"`
	Amount       decimal.Decimal `json:"amount"` // fixed amount or percent of base
	AppliesToAll bool            `json:"applies_to_all"`
	UsageTypes   []UsageType     `json:"usage_types,omitempty"`
}

// appliesTo reports whether the component applies to the given usage type.
func (c *FeeComponent) appliesTo(usage UsageType) bool {
	if c.AppliesToAll {
		return true
	}
	for _, u := range c.UsageTypes {
		if u == usage {
			return true
		}
	}
	return false
}

// FeeStructure is a versioned per-company policy mapping a property to a
// periodic fee.
type FeeStructure struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	Company            string            `json:"company"`
	BaseAmount         decimal.Decimal   `json:"base_amount"`
	Method             CalculationMethod `json:"method"`
	EffectiveFrom      time.Time         `json:"effective_from"`
	EffectiveTo        *time.Time        `json:"effective_to,omitempty"`
	ReserveFundPercent decimal.Decimal   `json:"reserve_fund_percent"` // 0 disables the reserve fund
	EarlyDiscountPct   decimal.Decimal   `json:"early_discount_pct"`
	EarlyThresholdDays int               `json:"early_threshold_days"`
	LateSurchargePct   decimal.Decimal   `json:"late_surcharge_pct"`
	LateGraceDays      int               `json:"late_grace_days"`
	Status             StructureStatus   `json:"status"`
	Components         []FeeComponent    `json:"components,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

var fiftyPercent = decimal.NewFromInt(50)

// Validate enforces structure invariants before submission.
func (fs *FeeStructure) Validate() error {
	if fs.Name == "" {
		return &ErrValidation{Field: "name", Message: "required"}
	}
	if fs.Company == "" {
		return &ErrValidation{Field: "company", Message: "required"}
	}
	if !fs.BaseAmount.IsPositive() {
		return &ErrValidation{Field: "base_amount", Message: "must be positive"}
	}
	switch fs.Method {
	case MethodFixedAmount, MethodByShare, MethodByArea, MethodMixed:
	default:
		return &ErrValidation{Field: "method", Message: "unknown calculation method"}
	}
	if fs.EffectiveFrom.IsZero() {
		return &ErrValidation{Field: "effective_from", Message: "required"}
	}
	if fs.EffectiveTo != nil && !fs.EffectiveTo.After(fs.EffectiveFrom) {
		return &ErrValidation{Field: "effective_to", Message: "must be after effective_from"}
	}
	if !fs.ReserveFundPercent.IsZero() {
		if !fs.ReserveFundPercent.IsPositive() || fs.ReserveFundPercent.GreaterThan(fiftyPercent) {
			return &ErrValidation{Field: "reserve_fund_percent", Message: "must be within (0, 50]"}
		}
	}

	names := make(map[string]bool, len(fs.Components))
	pctSum := decimal.Zero
	for _, c := range fs.Components {
		if c.Name == "" {
			return &ErrValidation{Field: "components.name", Message: "required"}
		}
		if names[c.Name] {
			return &ErrValidation{Field: "components.name", Message: "duplicate component " + c.Name}
		}
		names[c.Name] = true
		if c.Amount.IsNegative() {
			return &ErrValidation{Field: "components.amount", Message: "must not be negative"}
		}
		if c.Kind == ComponentPercent {
			pctSum = pctSum.Add(c.Amount)
		}
	}
	if pctSum.GreaterThan(Hundred) {
		return &ErrValidation{Field: "components", Message: "percent components must sum to at most 100"}
	}
	return nil
}

// ActiveOn reports whether the structure governs fees on the given date.
func (fs *FeeStructure) ActiveOn(date time.Time) bool {
	if fs.Status != StructureSubmitted {
		return false
	}
	if date.Before(fs.EffectiveFrom) {
		return false
	}
	if fs.EffectiveTo != nil && date.After(*fs.EffectiveTo) {
		return false
	}
	return true
}

// BreakdownLine is one row of a fee breakdown.
type BreakdownLine struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// FeeBreakdown is the result of a fee calculation for one property.
type FeeBreakdown struct {
	Base            decimal.Decimal `json:"base"`
	ComponentsTotal decimal.Decimal `json:"components_total"`
	ReserveFund     decimal.Decimal `json:"reserve_fund"`
	Total           decimal.Decimal `json:"total"`
	Lines           []BreakdownLine `json:"lines"`
}

// FeeFor computes the periodic fee for a property. Pure given its inputs:
// repeated calls yield identical breakdowns. Activation and date checks are
// the caller's responsibility.
//
// The mixed method has no component-resolution rules of its own and falls
// back to per-share.
func (fs *FeeStructure) FeeFor(p *Property) (*FeeBreakdown, error) {
	var base decimal.Decimal
	switch fs.Method {
	case MethodFixedAmount:
		base = fs.BaseAmount
	case MethodByShare, MethodMixed:
		if p.OwnershipShare.IsZero() {
			return nil, &ErrNoOwnershipShare{PropertyCode: p.Code}
		}
		base = Percent(fs.BaseAmount, p.OwnershipShare)
	case MethodByArea:
		base = fs.BaseAmount.Mul(p.BuiltArea)
	default:
		return nil, &ErrValidation{Field: "method", Message: "unknown calculation method"}
	}

	bd := &FeeBreakdown{Base: base}
	bd.Lines = append(bd.Lines, BreakdownLine{Label: "base", Amount: base})

	componentsTotal := decimal.Zero
	for _, c := range fs.Components {
		if !c.appliesTo(p.UsageType) {
			continue
		}
		var amt decimal.Decimal
		if c.Kind == ComponentPercent {
			amt = Percent(base, c.Amount)
		} else {
			amt = c.Amount
		}
		componentsTotal = componentsTotal.Add(amt)
		bd.Lines = append(bd.Lines, BreakdownLine{Label: c.Name, Amount: amt})
	}
	bd.ComponentsTotal = componentsTotal

	if fs.ReserveFundPercent.IsPositive() {
		bd.ReserveFund = Percent(base.Add(componentsTotal), fs.ReserveFundPercent)
		bd.Lines = append(bd.Lines, BreakdownLine{Label: "reserve_fund", Amount: bd.ReserveFund})
	}

	bd.Total = RoundMoney(base.Add(componentsTotal).Add(bd.ReserveFund))
	return bd, nil
}
