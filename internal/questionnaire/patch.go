package questionnaire

import (
	"errors"
	"fmt"
)

var (
	ErrPrerequisiteUnmet = errors.New("PREREQUISITE_UNMET")
	ErrInvalidValue      = errors.New("INVALID_VALUE")
)

// Field names one answer field. The names double as the JSON keys of Answers.
type Field string

const (
	FieldHousehold         Field = "householdType"
	FieldEmployment        Field = "employmentSituations"
	FieldNeedsBookkeeping  Field = "needsBookkeeping"
	FieldAssets            Field = "assets"
	FieldSecuritiesOver10  Field = "securitiesOver10Positions"
	FieldProperty          Field = "propertyDetail"
	FieldForeignIncome     Field = "foreignIncomeOrAssets"
	FieldDocumentReadiness Field = "documentReadiness"
	FieldContact           Field = "contactInfo"
)

// Step returns the step on which the field is answered.
func (f Field) Step() Step {
	switch f {
	case FieldHousehold:
		return StepHousehold
	case FieldEmployment:
		return StepEmployment
	case FieldNeedsBookkeeping:
		return StepBookkeepingNeed
	case FieldAssets, FieldSecuritiesOver10, FieldProperty:
		return StepAssets
	case FieldForeignIncome:
		return StepForeignIncome
	case FieldDocumentReadiness:
		return StepDocumentReadiness
	case FieldContact:
		return StepContactForm
	default:
		return ""
	}
}

// Patch assigns one field. Every patch carries the full new value of its
// field, so applying it twice is the same as applying it once.
type Patch struct {
	field      Field
	household  Household
	employment EmploymentSet
	flag       Flag
	assets     AssetSet
	property   PropertyDetail
	documents  DocumentReadiness
	contact    Contact
}

func (p Patch) Field() Field { return p.field }

func (p Patch) String() string {
	return fmt.Sprintf("Patch(%s)", p.field)
}

func SetHousehold(h Household) Patch {
	return Patch{field: FieldHousehold, household: h}
}

func SetEmployment(s EmploymentSet) Patch {
	return Patch{field: FieldEmployment, employment: s}
}

func SetBookkeeping(needed bool) Patch {
	return Patch{field: FieldNeedsBookkeeping, flag: FlagOf(needed)}
}

func SetAssets(s AssetSet) Patch {
	return Patch{field: FieldAssets, assets: s.normalize()}
}

func SetSecuritiesOver10(over bool) Patch {
	return Patch{field: FieldSecuritiesOver10, flag: FlagOf(over)}
}

// SetPropertyCounts clamps both counts into their bounds. A total of zero is
// accepted: selecting property starts there, and the assets gate rather than
// Apply keeps the session from advancing until at least one unit is counted.
func SetPropertyCounts(ownerOccupied, rented int) Patch {
	return Patch{field: FieldProperty, property: PropertyDetail{
		OwnerOccupied: clamp(ownerOccupied, 0, MaxOwnerOccupied),
		Rented:        clamp(rented, 0, MaxRented),
	}}
}

func SetForeignIncome(foreign bool) Patch {
	return Patch{field: FieldForeignIncome, flag: FlagOf(foreign)}
}

func SetDocumentReadiness(d DocumentReadiness) Patch {
	return Patch{field: FieldDocumentReadiness, documents: d}
}

func SetContact(c Contact) Patch {
	return Patch{field: FieldContact, contact: c}
}

// Apply merges p into a. A changed value clears every answer that depends on
// it; an unchanged value leaves a as is. Patches whose step is not currently
// reachable, or whose parent answer is missing, are rejected with
// ErrPrerequisiteUnmet and a is returned untouched.
func Apply(a Answers, p Patch) (Answers, error) {
	if err := p.validate(); err != nil {
		return a, err
	}
	if err := prerequisites(a, p); err != nil {
		return a, err
	}

	next := a
	switch p.field {
	case FieldHousehold:
		if a.Household != p.household {
			next = Answers{Household: p.household}
		}
	case FieldEmployment:
		if a.Employment != p.employment {
			next = Answers{Household: a.Household, Employment: p.employment}
		}
	case FieldNeedsBookkeeping:
		if a.NeedsBookkeeping != p.flag {
			next = Answers{Household: a.Household, Employment: a.Employment, NeedsBookkeeping: p.flag}
		}
	case FieldAssets:
		next.Assets = p.assets
		if !p.assets.Has(AssetSecurities) {
			next.SecuritiesOver10 = FlagUnset
		}
		if !p.assets.Has(AssetProperty) {
			next.Property = PropertyDetail{}
		}
	case FieldSecuritiesOver10:
		next.SecuritiesOver10 = p.flag
	case FieldProperty:
		next.Property = p.property
	case FieldForeignIncome:
		next.ForeignIncome = p.flag
	case FieldDocumentReadiness:
		next.DocumentReadiness = p.documents
	case FieldContact:
		next.Contact = p.contact
	}
	return next, nil
}

func (p Patch) validate() error {
	switch p.field {
	case FieldHousehold:
		if !p.household.Valid() {
			return fmt.Errorf("%w: household %q", ErrInvalidValue, p.household)
		}
	case FieldDocumentReadiness:
		if !p.documents.Valid() {
			return fmt.Errorf("%w: document readiness %q", ErrInvalidValue, p.documents)
		}
	case FieldNeedsBookkeeping, FieldSecuritiesOver10, FieldForeignIncome:
		if !p.flag.IsSet() {
			return fmt.Errorf("%w: %s must be true or false", ErrInvalidValue, p.field)
		}
	case FieldEmployment, FieldAssets, FieldProperty, FieldContact:
	default:
		return fmt.Errorf("%w: unknown field %q", ErrInvalidValue, p.field)
	}
	return nil
}

func prerequisites(a Answers, p Patch) error {
	step := p.field.Step()
	if !reachable(Steps(a), step, a) {
		return fmt.Errorf("%w: step %s is not reachable", ErrPrerequisiteUnmet, step)
	}
	switch p.field {
	case FieldSecuritiesOver10:
		if !a.Assets.Has(AssetSecurities) {
			return fmt.Errorf("%w: securities not selected", ErrPrerequisiteUnmet)
		}
	case FieldProperty:
		if !a.Assets.Has(AssetProperty) {
			return fmt.Errorf("%w: property not selected", ErrPrerequisiteUnmet)
		}
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
