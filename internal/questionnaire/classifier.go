package questionnaire

// Tier is the service class a customer lands in.
type Tier string

const (
	TierBasic    Tier = "basic"
	TierExtended Tier = "extended"
	TierComplex  Tier = "complex"
)

// Fixed prices per tier. Complex engagements are quoted manually.
const (
	PriceBasic    = 149
	PriceExtended = 199
)

// Code is the numeric tier code order creation expects.
func (t Tier) Code() int {
	switch t {
	case TierBasic:
		return 1
	case TierExtended:
		return 2
	case TierComplex:
		return 3
	default:
		return 0
	}
}

// Price returns the fixed price, or false when the tier needs a manual quote.
func (t Tier) Price() (int, bool) {
	switch t {
	case TierBasic:
		return PriceBasic, true
	case TierExtended:
		return PriceExtended, true
	default:
		return 0, false
	}
}

// Classification is the classifier's verdict for one answer set.
type Classification struct {
	Tier        Tier `json:"tier"`
	Code        int  `json:"tierCode"`
	Price       *int `json:"price"`
	ManualQuote bool `json:"manualQuote"`
	// Complete is false while some applicable question is still unanswered;
	// the tier is then a provisional reading of the partial answers.
	Complete bool `json:"complete"`
}

// Classify maps answers to a tier. Rules are evaluated in order and the first
// match wins. Partial answers classify as if unanswered questions were "no".
func Classify(a Answers) Classification {
	if a.ManualQuote() {
		return newClassification(TierComplex, true, ContactComplete(a.Contact))
	}
	return newClassification(classifyTier(a), false, questionsComplete(a))
}

func classifyTier(a Answers) Tier {
	eff := a.EffectiveEmployment()

	switch {
	case eff == EmploymentCompany:
		return TierComplex
	case eff == EmploymentSelfEmployed:
		if a.ForeignIncome.IsTrue() {
			return TierComplex
		}
		return TierExtended
	case a.ForeignIncome.IsTrue():
		return TierComplex
	case a.Assets.Has(AssetProperty) && a.Property.Total() > 2:
		return TierComplex
	}

	if (eff == EmploymentEmployed || eff == EmploymentRetired) && a.Assets.HasAssets() {
		// A small securities portfolio alone stays basic.
		if a.Assets.Only(AssetSecurities) && a.SecuritiesOver10.IsFalse() {
			return TierBasic
		}
		return TierExtended
	}

	return TierBasic
}

func questionsComplete(a Answers) bool {
	for _, s := range QuestionSteps(a) {
		if !CanAdvance(s, a) {
			return false
		}
	}
	return true
}

func newClassification(t Tier, manual, complete bool) Classification {
	c := Classification{
		Tier:        t,
		Code:        t.Code(),
		ManualQuote: manual,
		Complete:    complete,
	}
	if p, ok := t.Price(); ok {
		c.Price = &p
	}
	return c
}
