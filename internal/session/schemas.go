package session

import "tax-intake/internal/common/validation"

var answerSchema = validation.MustCompile("answer", `{
	"type": "object",
	"properties": {
		"field": {
			"type": "string",
			"enum": [
				"householdType", "employmentSituations", "needsBookkeeping",
				"assets", "securitiesOver10Positions", "propertyDetail",
				"foreignIncomeOrAssets", "documentReadiness", "contactInfo"
			]
		},
		"value": {},
		"toggle": {
			"type": "string",
			"enum": ["employed", "retired", "self_employed", "company", "securities", "property", "crypto", "none"]
		},
		"adjust": {"type": "string", "enum": ["ownerOccupiedCount", "rentedCount"]},
		"delta": {"type": "integer", "minimum": -1, "maximum": 1}
	},
	"oneOf": [
		{"required": ["field", "value"], "not": {"anyOf": [{"required": ["toggle"]}, {"required": ["adjust"]}]}},
		{"required": ["toggle"], "not": {"anyOf": [{"required": ["field"]}, {"required": ["adjust"]}]}},
		{"required": ["adjust", "delta"], "not": {"anyOf": [{"required": ["field"]}, {"required": ["toggle"]}]}}
	],
	"additionalProperties": false
}`)

var gotoSchema = validation.MustCompile("goto", `{
	"type": "object",
	"properties": {
		"step": {"type": "string", "minLength": 1}
	},
	"required": ["step"],
	"additionalProperties": false
}`)
