package classifytier

import "tax-intake/internal/questionnaire"

type Input struct {
	Answers questionnaire.Answers `json:"answers"`
}

type Output struct {
	Tier        questionnaire.Tier   `json:"tier"`
	TierCode    int                  `json:"tierCode"`
	Price       *int                 `json:"price"`
	ManualQuote bool                 `json:"manualQuote"`
	Complete    bool                 `json:"complete"`
	Steps       []questionnaire.Step `json:"steps"`
}
