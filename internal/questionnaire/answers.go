// Package questionnaire holds the tax-filing questionnaire: the answer
// record, the step sequence derived from it, the per-step gates, the tier
// classifier and the navigation controller that ties them together.
package questionnaire

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// Household is the filing unit.
type Household string

const (
	HouseholdUnset      Household = ""
	HouseholdIndividual Household = "individual"
	HouseholdCouple     Household = "couple"
)

func (h Household) Valid() bool {
	return h == HouseholdIndividual || h == HouseholdCouple
}

// Employment is one selectable employment situation.
type Employment string

const (
	EmploymentNone         Employment = ""
	EmploymentEmployed     Employment = "employed"
	EmploymentRetired      Employment = "retired"
	EmploymentSelfEmployed Employment = "self_employed"
	EmploymentCompany      Employment = "company"
)

var employmentOrder = []Employment{EmploymentEmployed, EmploymentRetired, EmploymentSelfEmployed, EmploymentCompany}

// Asset is one selectable asset class.
type Asset string

const (
	AssetSecurities Asset = "securities"
	AssetProperty   Asset = "property"
	AssetCrypto     Asset = "crypto"
	AssetNone       Asset = "none"
)

var assetOrder = []Asset{AssetSecurities, AssetProperty, AssetCrypto, AssetNone}

// DocumentReadiness is how far the customer's paperwork is prepared.
type DocumentReadiness string

const (
	DocumentsUnset    DocumentReadiness = ""
	DocumentsComplete DocumentReadiness = "complete"
	DocumentsPartial  DocumentReadiness = "partial"
	DocumentsNone     DocumentReadiness = "none"
)

func (d DocumentReadiness) Valid() bool {
	return d == DocumentsComplete || d == DocumentsPartial || d == DocumentsNone
}

// Flag is a tri-state boolean. The zero value is unset.
type Flag uint8

const (
	FlagUnset Flag = iota
	FlagTrue
	FlagFalse
)

// FlagOf converts a bool to a set Flag.
func FlagOf(b bool) Flag {
	if b {
		return FlagTrue
	}
	return FlagFalse
}

func (f Flag) IsSet() bool { return f == FlagTrue || f == FlagFalse }
func (f Flag) IsTrue() bool { return f == FlagTrue }
func (f Flag) IsFalse() bool { return f == FlagFalse }

func (f Flag) MarshalJSON() ([]byte, error) {
	switch f {
	case FlagTrue:
		return []byte("true"), nil
	case FlagFalse:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (f *Flag) UnmarshalJSON(data []byte) error {
	switch strings.TrimSpace(string(data)) {
	case "true":
		*f = FlagTrue
	case "false":
		*f = FlagFalse
	case "null":
		*f = FlagUnset
	default:
		return fmt.Errorf("flag must be true, false or null, got %s", data)
	}
	return nil
}

// EmploymentSet is a set of employment situations.
type EmploymentSet uint8

func employmentBit(e Employment) EmploymentSet {
	for i, v := range employmentOrder {
		if v == e {
			return 1 << i
		}
	}
	return 0
}

// NewEmploymentSet builds a set, ignoring unknown members.
func NewEmploymentSet(members ...Employment) EmploymentSet {
	var s EmploymentSet
	for _, m := range members {
		s |= employmentBit(m)
	}
	return s
}

func (s EmploymentSet) Has(e Employment) bool {
	b := employmentBit(e)
	return b != 0 && s&b != 0
}

func (s EmploymentSet) With(e Employment) EmploymentSet    { return s | employmentBit(e) }
func (s EmploymentSet) Without(e Employment) EmploymentSet { return s &^ employmentBit(e) }
func (s EmploymentSet) Empty() bool                        { return s == 0 }

func (s EmploymentSet) Toggle(e Employment) EmploymentSet {
	if s.Has(e) {
		return s.Without(e)
	}
	return s.With(e)
}

func (s EmploymentSet) Members() []Employment {
	out := make([]Employment, 0, len(employmentOrder))
	for _, e := range employmentOrder {
		if s.Has(e) {
			out = append(out, e)
		}
	}
	return out
}

// Effective resolves the set to its dominant situation:
// company > self_employed > employed/retired.
func (s EmploymentSet) Effective() Employment {
	switch {
	case s.Has(EmploymentCompany):
		return EmploymentCompany
	case s.Has(EmploymentSelfEmployed):
		return EmploymentSelfEmployed
	case s.Has(EmploymentEmployed):
		return EmploymentEmployed
	case s.Has(EmploymentRetired):
		return EmploymentRetired
	default:
		return EmploymentNone
	}
}

func (s EmploymentSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Members())
}

func (s *EmploymentSet) UnmarshalJSON(data []byte) error {
	var members []Employment
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}
	set, err := ParseEmploymentSet(members)
	if err != nil {
		return err
	}
	*s = set
	return nil
}

// ParseEmploymentSet rejects unknown members instead of dropping them.
func ParseEmploymentSet(members []Employment) (EmploymentSet, error) {
	var s EmploymentSet
	for _, m := range members {
		b := employmentBit(m)
		if b == 0 {
			return 0, fmt.Errorf("unknown employment situation %q", m)
		}
		s |= b
	}
	return s, nil
}

// AssetSet is a set of asset classes where AssetNone excludes every other member.
type AssetSet uint8

func assetBit(a Asset) AssetSet {
	for i, v := range assetOrder {
		if v == a {
			return 1 << i
		}
	}
	return 0
}

var noneBit = assetBit(AssetNone)

// NewAssetSet builds a normalised set. When AssetNone arrives together with
// real asset classes the real classes win.
func NewAssetSet(members ...Asset) AssetSet {
	var s AssetSet
	for _, m := range members {
		s |= assetBit(m)
	}
	return s.normalize()
}

func (s AssetSet) normalize() AssetSet {
	if s&noneBit != 0 && s&^noneBit != 0 {
		return s &^ noneBit
	}
	return s
}

func (s AssetSet) Has(a Asset) bool {
	b := assetBit(a)
	return b != 0 && s&b != 0
}

// With adds a member: adding AssetNone clears the rest, adding anything else
// drops AssetNone.
func (s AssetSet) With(a Asset) AssetSet {
	b := assetBit(a)
	if b == 0 {
		return s
	}
	if b == noneBit {
		return noneBit
	}
	return (s &^ noneBit) | b
}

func (s AssetSet) Without(a Asset) AssetSet { return s &^ assetBit(a) }
func (s AssetSet) Empty() bool              { return s == 0 }

func (s AssetSet) Toggle(a Asset) AssetSet {
	if s.Has(a) {
		return s.Without(a)
	}
	return s.With(a)
}

// HasAssets is true when at least one real asset class is selected.
func (s AssetSet) HasAssets() bool {
	return s&^noneBit != 0
}

// Only reports whether a is the sole member.
func (s AssetSet) Only(a Asset) bool {
	b := assetBit(a)
	return b != 0 && s == b
}

func (s AssetSet) Members() []Asset {
	out := make([]Asset, 0, len(assetOrder))
	for _, a := range assetOrder {
		if s.Has(a) {
			out = append(out, a)
		}
	}
	return out
}

func (s AssetSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Members())
}

func (s *AssetSet) UnmarshalJSON(data []byte) error {
	var members []Asset
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}
	set, err := ParseAssetSet(members)
	if err != nil {
		return err
	}
	*s = set
	return nil
}

// ParseAssetSet rejects unknown members and normalises the result.
func ParseAssetSet(members []Asset) (AssetSet, error) {
	var s AssetSet
	for _, m := range members {
		b := assetBit(m)
		if b == 0 {
			return 0, fmt.Errorf("unknown asset class %q", m)
		}
		s |= b
	}
	return s.normalize(), nil
}

const (
	MaxOwnerOccupied = 5
	MaxRented        = 3
)

// PropertyDetail counts owned properties. Counts are always within bounds.
type PropertyDetail struct {
	OwnerOccupied int `json:"ownerOccupiedCount"`
	Rented        int `json:"rentedCount"`
}

func (p PropertyDetail) Total() int {
	return p.OwnerOccupied + p.Rented
}

// Contact is collected on the manual-quote branch only.
type Contact struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

// Answers is everything answered so far. It is a comparable value; mutate it
// through Apply only.
type Answers struct {
	Household         Household         `json:"householdType,omitempty"`
	Employment        EmploymentSet     `json:"employmentSituations"`
	NeedsBookkeeping  Flag              `json:"needsBookkeeping"`
	Assets            AssetSet          `json:"assets"`
	SecuritiesOver10  Flag              `json:"securitiesOver10Positions"`
	Property          PropertyDetail    `json:"propertyDetail"`
	ForeignIncome     Flag              `json:"foreignIncomeOrAssets"`
	DocumentReadiness DocumentReadiness `json:"documentReadiness,omitempty"`
	Contact           Contact           `json:"contactInfo"`
}

// EffectiveEmployment is the dominant employment situation, or EmploymentNone.
func (a Answers) EffectiveEmployment() Employment {
	return a.Employment.Effective()
}

// selfEmployedBranch is true when the bookkeeping question applies.
func (a Answers) selfEmployedBranch() bool {
	eff := a.EffectiveEmployment()
	return eff == EmploymentSelfEmployed || eff == EmploymentCompany
}

// ManualQuote is true on the branch that collects contact details instead of
// classifying.
func (a Answers) ManualQuote() bool {
	return a.selfEmployedBranch() && a.NeedsBookkeeping.IsTrue()
}
