package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Property Registry
// ============================================================

// UsageType classifies what a property is used for.
type UsageType string

const (
	UsageResidential UsageType = "residential"
	UsageCommercial  UsageType = "commercial"
	UsageParking     UsageType = "parking"
	UsageStorage     UsageType = "storage"
	UsageAmenity     UsageType = "amenity"
)

// AcquisitionType records how the current holder acquired the property.
type AcquisitionType string

const (
	AcquisitionPurchase    AcquisitionType = "purchase"
	AcquisitionInheritance AcquisitionType = "inheritance"
	AcquisitionDonation    AcquisitionType = "donation"
	AcquisitionAuction     AcquisitionType = "auction"
)

// PropertyStatus is the registry status of a property.
type PropertyStatus string

const (
	PropertyActive      PropertyStatus = "active"
	PropertyVacant      PropertyStatus = "vacant"
	PropertyUnderWorks  PropertyStatus = "under_works"
	PropertyDeactivated PropertyStatus = "deactivated"
)

// OwnerKind distinguishes individual from corporate owners.
type OwnerKind string

const (
	OwnerIndividual OwnerKind = "individual"
	OwnerCompany    OwnerKind = "company"
)

// OwnershipEntry is one row of a property's ownership breakdown.
type OwnershipEntry struct {
	OwnerID      string          `json:"owner_id"`
	OwnerKind    OwnerKind       `json:"owner_kind"`
	SharePercent decimal.Decimal `json:"share_percent"`
}

// Property is a registered real-estate unit inside a condominium.
// OwnershipShare is the property's percentage of the common mass
// (indiviso), used by per-share fee calculation.
type Property struct {
	Code            string           `json:"code"`
	Company         string           `json:"company"`
	TotalArea       decimal.Decimal  `json:"total_area"`
	BuiltArea       decimal.Decimal  `json:"built_area"`
	UsageType       UsageType        `json:"usage_type"`
	AcquisitionType AcquisitionType  `json:"acquisition_type"`
	Status          PropertyStatus   `json:"status"`
	OwnershipShare  decimal.Decimal  `json:"ownership_share"`
	Owners          []OwnershipEntry `json:"owners,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Validate enforces the registry invariants: built area within total area,
// and a non-empty ownership breakdown summing to exactly 100.00 with
// unique owner identities.
func (p *Property) Validate() error {
	if p.Code == "" {
		return &ErrValidation{Field: "code", Message: "required"}
	}
	if p.Company == "" {
		return &ErrValidation{Field: "company", Message: "required"}
	}
	if p.TotalArea.IsNegative() {
		return &ErrValidation{Field: "total_area", Message: "must not be negative"}
	}
	if p.BuiltArea.IsNegative() {
		return &ErrValidation{Field: "built_area", Message: "must not be negative"}
	}
	if p.BuiltArea.GreaterThan(p.TotalArea) {
		return &ErrValidation{Field: "built_area", Message: "must not exceed total area"}
	}
	if p.OwnershipShare.IsNegative() || p.OwnershipShare.GreaterThan(Hundred) {
		return &ErrValidation{Field: "ownership_share", Message: "must be within [0, 100]"}
	}

	if len(p.Owners) == 0 {
		return nil
	}

	sum := decimal.Zero
	seen := make(map[string]bool, len(p.Owners))
	for _, o := range p.Owners {
		if o.OwnerID == "" {
			return &ErrValidation{Field: "owners.owner_id", Message: "required"}
		}
		if seen[o.OwnerID] {
			return &ErrValidation{Field: "owners.owner_id", Message: "duplicate owner " + o.OwnerID}
		}
		seen[o.OwnerID] = true
		if !o.SharePercent.IsPositive() {
			return &ErrValidation{Field: "owners.share_percent", Message: "must be positive"}
		}
		sum = sum.Add(o.SharePercent)
	}
	if !sum.Equal(Hundred) {
		return &ErrValidation{
			Field:   "owners.share_percent",
			Message: "shares must sum to exactly 100.00, got " + sum.StringFixed(2),
		}
	}
	return nil
}
