package questionnaire

// Progress is the 1-based position among question steps and their count.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// ProgressAt computes progress for the given step. Terminal steps report a
// full bar.
func ProgressAt(a Answers, step Step) Progress {
	questions := QuestionSteps(a)
	total := len(questions)
	if step.Terminal() {
		return Progress{Current: total, Total: total}
	}
	return Progress{Current: indexOf(questions, step) + 1, Total: total}
}

// Percent is the progress as an integer percentage.
func (p Progress) Percent() int {
	if p.Total == 0 {
		return 0
	}
	return p.Current * 100 / p.Total
}
