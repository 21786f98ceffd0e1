package questionnaire

// Step identifies one screen of the questionnaire.
type Step string

const (
	StepHousehold         Step = "household"
	StepEmployment        Step = "employment"
	StepBookkeepingNeed   Step = "bookkeepingNeed"
	StepAssets            Step = "assets"
	StepForeignIncome     Step = "foreignIncome"
	StepDocumentReadiness Step = "documentReadiness"
	StepContactForm       Step = "contactForm"
	StepResult            Step = "result"
)

// AllSteps lists every step identifier.
var AllSteps = []Step{
	StepHousehold,
	StepEmployment,
	StepBookkeepingNeed,
	StepAssets,
	StepForeignIncome,
	StepDocumentReadiness,
	StepContactForm,
	StepResult,
}

// ParseStep returns false for unknown identifiers.
func ParseStep(s string) (Step, bool) {
	for _, st := range AllSteps {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Terminal steps end the flow and are not counted in progress.
func (s Step) Terminal() bool {
	return s == StepContactForm || s == StepResult
}

// autoAdvances lists the single-choice steps that move on by themselves once
// answered.
func (s Step) autoAdvances() bool {
	switch s {
	case StepHousehold, StepBookkeepingNeed, StepForeignIncome, StepDocumentReadiness:
		return true
	}
	return false
}

// Steps returns the ordered steps that apply to the given answers. Branches
// not yet excluded are kept in so that the total only shrinks as answers
// accumulate.
func Steps(a Answers) []Step {
	steps := make([]Step, 0, 7)
	steps = append(steps, StepHousehold, StepEmployment)

	eff := a.EffectiveEmployment()
	if a.selfEmployedBranch() {
		steps = append(steps, StepBookkeepingNeed)
		if a.NeedsBookkeeping.IsTrue() {
			return append(steps, StepContactForm)
		}
	}

	switch {
	case eff == EmploymentNone,
		eff == EmploymentEmployed,
		eff == EmploymentRetired,
		eff == EmploymentSelfEmployed && a.NeedsBookkeeping.IsFalse():
		steps = append(steps, StepAssets)
	}

	return append(steps, StepForeignIncome, StepDocumentReadiness, StepResult)
}

// QuestionSteps is Steps without the terminal steps.
func QuestionSteps(a Answers) []Step {
	all := Steps(a)
	out := all[:0:0]
	for _, s := range all {
		if !s.Terminal() {
			out = append(out, s)
		}
	}
	return out
}

func indexOf(steps []Step, target Step) int {
	for i, s := range steps {
		if s == target {
			return i
		}
	}
	return -1
}

func contains(steps []Step, target Step) bool {
	return indexOf(steps, target) >= 0
}
