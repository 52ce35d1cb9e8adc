package model

import "strings"

// ClinicalNote is the raw, unstructured text a clinician pastes in.
type ClinicalNote = string

// MedicalCode is one ICD or CPT coding entry
type MedicalCode struct {
	Code        string `json:"code"`        // e.g. "J45.909" (ICD) or "99213" (CPT)
	Description string `json:"description"` // Human-readable meaning of the code
}

// NlpInsights holds the three independent fragment lists extracted from the note.
// Order is whatever the service returned.
type NlpInsights struct {
	Sentiment           []string `json:"sentiment"`
	Negations           []string `json:"negations"`
	TemporalInformation []string `json:"temporalInformation"`
}

// ClinicalSummary is the structured SOAP result for one note.
// It is only ever built whole from a service response and never mutated afterwards.
type ClinicalSummary struct {
	Subjective string `json:"subjective"`
	Objective  string `json:"objective"`
	Assessment string `json:"assessment"`
	Plan       string `json:"plan"`

	ICDCodes []MedicalCode `json:"icdCodes"`
	CPTCodes []MedicalCode `json:"cptCodes"`

	SuggestedDiagnosis string `json:"suggestedDiagnosis"`

	IsEmergency     bool   `json:"isEmergency"`
	EmergencyReason string `json:"emergencyReason"` // Empty iff IsEmergency is false (service contract, not enforced)

	NlpInsights NlpInsights `json:"nlpInsights"`
}

// Consistent reports whether the emergency flag and reason agree.
// The result is informational; callers must not alter the summary based on it.
func (s *ClinicalSummary) Consistent() bool {
	hasReason := strings.TrimSpace(s.EmergencyReason) != ""
	return s.IsEmergency == hasReason
}
