package questionnaire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanAdvance(t *testing.T) {
	tests := []struct {
		name     string
		step     Step
		answers  Answers
		expected bool
	}{
		{"household unset", StepHousehold, Answers{}, false},
		{"household set", StepHousehold, Answers{Household: HouseholdCouple}, true},
		{"employment empty", StepEmployment, Answers{}, false},
		{"employment chosen", StepEmployment, Answers{Employment: NewEmploymentSet(EmploymentRetired)}, true},
		{"bookkeeping unset", StepBookkeepingNeed, Answers{}, false},
		{"bookkeeping false", StepBookkeepingNeed, Answers{NeedsBookkeeping: FlagFalse}, true},
		{"assets empty", StepAssets, Answers{}, false},
		{"assets none", StepAssets, Answers{Assets: NewAssetSet(AssetNone)}, true},
		{"crypto only", StepAssets, Answers{Assets: NewAssetSet(AssetCrypto)}, true},
		{"securities without position answer", StepAssets, Answers{Assets: NewAssetSet(AssetSecurities)}, false},
		{"securities with position answer", StepAssets, Answers{Assets: NewAssetSet(AssetSecurities), SecuritiesOver10: FlagFalse}, true},
		{"property without count", StepAssets, Answers{Assets: NewAssetSet(AssetProperty)}, false},
		{"property with a rented unit", StepAssets, Answers{Assets: NewAssetSet(AssetProperty), Property: PropertyDetail{Rented: 1}}, true},
		{
			name:     "securities answered but property missing",
			step:     StepAssets,
			answers:  Answers{Assets: NewAssetSet(AssetProperty, AssetSecurities), SecuritiesOver10: FlagTrue},
			expected: false,
		},
		{"foreign unset", StepForeignIncome, Answers{}, false},
		{"foreign true", StepForeignIncome, Answers{ForeignIncome: FlagTrue}, true},
		{"documents unset", StepDocumentReadiness, Answers{}, false},
		{"documents none", StepDocumentReadiness, Answers{DocumentReadiness: DocumentsNone}, true},
		{"result always", StepResult, Answers{}, true},
		{"unknown step", Step("payment"), Answers{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanAdvance(tt.step, tt.answers))
		})
	}
}

func TestContactComplete(t *testing.T) {
	valid := Contact{FirstName: "Anna", LastName: "Muster", Phone: "+41 79 123 45 67", Email: "anna@example.ch"}

	tests := []struct {
		name     string
		mutate   func(c *Contact)
		expected bool
	}{
		{"valid", func(c *Contact) {}, true},
		{"blank first name", func(c *Contact) { c.FirstName = "   " }, false},
		{"missing last name", func(c *Contact) { c.LastName = "" }, false},
		{"phone with nine digits", func(c *Contact) { c.Phone = "079 123 45 6" }, false},
		{"phone with exactly ten digits and punctuation", func(c *Contact) { c.Phone = "(079) 123-45-67" }, true},
		{"phone in Arabic-Indic digits", func(c *Contact) { c.Phone = "١٢٣٤٥٦٧٨٩٠" }, false},
		{"phone in full-width digits", func(c *Contact) { c.Phone = "０７９１２３４５６７" }, false},
		{"email without tld", func(c *Contact) { c.Email = "anna@example" }, false},
		{"email without local part", func(c *Contact) { c.Email = "@example.ch" }, false},
		{"email with space", func(c *Contact) { c.Email = "an na@example.ch" }, false},
		{"email with surrounding whitespace", func(c *Contact) { c.Email = " anna@example.ch " }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.Equal(t, tt.expected, ContactComplete(c))
			assert.Equal(t, tt.expected, CanAdvance(StepContactForm, Answers{Contact: c}))
		})
	}
}
