package questionnaire

import (
	"regexp"
	"strings"
)

const minPhoneDigits = 10

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// CanAdvance reports whether the answer for step is complete enough to move on.
// It never fails: unknown steps and partial answers simply return false.
func CanAdvance(step Step, a Answers) bool {
	switch step {
	case StepHousehold:
		return a.Household.Valid()
	case StepEmployment:
		return !a.Employment.Empty()
	case StepBookkeepingNeed:
		return a.NeedsBookkeeping.IsSet()
	case StepAssets:
		return assetsComplete(a)
	case StepForeignIncome:
		return a.ForeignIncome.IsSet()
	case StepDocumentReadiness:
		return a.DocumentReadiness.Valid()
	case StepContactForm:
		return ContactComplete(a.Contact)
	case StepResult:
		return true
	default:
		return false
	}
}

func assetsComplete(a Answers) bool {
	if a.Assets.Empty() {
		return false
	}
	if a.Assets.Has(AssetSecurities) && !a.SecuritiesOver10.IsSet() {
		return false
	}
	if a.Assets.Has(AssetProperty) && a.Property.Total() < 1 {
		return false
	}
	return true
}

// ContactComplete validates the manual-quote contact form.
func ContactComplete(c Contact) bool {
	return strings.TrimSpace(c.FirstName) != "" &&
		strings.TrimSpace(c.LastName) != "" &&
		phoneDigits(c.Phone) >= minPhoneDigits &&
		emailPattern.MatchString(strings.TrimSpace(c.Email))
}

// phoneDigits counts ASCII digits. Digits of other scripts do not dial.
func phoneDigits(phone string) int {
	n := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// reachable reports whether every question step before target passes its gate.
func reachable(steps []Step, target Step, a Answers) bool {
	for _, s := range steps {
		if s == target {
			return true
		}
		if !CanAdvance(s, a) {
			return false
		}
	}
	return false
}
