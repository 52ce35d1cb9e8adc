package llm

import (
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// SummarySchemaName is the name some backends require for the output schema
const SummarySchemaName = "clinical_summary"

// SystemInstruction is the fixed extraction task sent with every note
const SystemInstruction = `You are a specialized AI assistant for medical professionals, designed to transform unstructured clinical notes into structured SOAP summaries. Your primary function is to analyze the provided text and populate a JSON object according to a strict schema. You must extract information accurately, preserving the original clinical meaning. Do not invent or infer information that isn't present in the note.

Critically, you must also act as an intelligent agent to identify and flag potential emergency symptoms like chest pain, shortness of breath, severe bleeding, or sudden neurological changes. If such symptoms are detected, set the 'isEmergency' flag to true and specify the reason.

Additionally, perform advanced NLP analysis to extract deeper clinical context. Identify and categorize the following:
- Sentiment: Key expressions of patient feeling (e.g., anxiety, pain level, distress).
- Negations: Explicit denials of symptoms or conditions (e.g., 'patient denies chest pain').
- Temporal Information: Phrases indicating timing or duration (e.g., 'symptoms started 3 days ago', 'pain for the last week').
Place this information in the 'nlpInsights' object.`

// summaryFields is the declared field order, used for required lists and Gemini's propertyOrdering
var summaryFields = []string{
	"subjective", "objective", "assessment", "plan",
	"icdCodes", "cptCodes", "suggestedDiagnosis",
	"isEmergency", "emergencyReason", "nlpInsights",
}

var insightFields = []string{"sentiment", "negations", "temporalInformation"}

func codeList(description, kind, example string) jsonschema.Definition {
	return jsonschema.Definition{
		Type:        jsonschema.Array,
		Description: description,
		Items: &jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"code": {
					Type:        jsonschema.String,
					Description: "The specific " + kind + " code, e.g., '" + example + "'.",
				},
				"description": {
					Type:        jsonschema.String,
					Description: "The description of the " + kind + " code.",
				},
			},
			Required:             []string{"code", "description"},
			AdditionalProperties: false,
		},
	}
}

func stringList(description string) jsonschema.Definition {
	return jsonschema.Definition{
		Type:        jsonschema.Array,
		Description: description,
		Items:       &jsonschema.Definition{Type: jsonschema.String},
	}
}

// SummarySchema returns the strict output schema for model.ClinicalSummary.
// Every field is required.
func SummarySchema() *jsonschema.Definition {
	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"subjective": {
				Type:        jsonschema.String,
				Description: "Patient's subjective complaints, history of present illness, etc., as reported by the patient or their representative.",
			},
			"objective": {
				Type:        jsonschema.String,
				Description: "Objective, measurable findings from physical exams, lab results, and imaging studies.",
			},
			"assessment": {
				Type:        jsonschema.String,
				Description: "The clinician's diagnosis or differential diagnoses based on the subjective and objective data.",
			},
			"plan": {
				Type:        jsonschema.String,
				Description: "The treatment plan, including medications, therapies, patient education, and follow-up instructions.",
			},
			"icdCodes": codeList("List of identified ICD (International Classification of Diseases) diagnosis codes.", "ICD", "J45.909"),
			"cptCodes": codeList("List of identified CPT (Current Procedural Terminology) codes for procedures performed.", "CPT", "99213"),
			"suggestedDiagnosis": {
				Type:        jsonschema.String,
				Description: "A preliminary diagnosis suggested based on reported symptoms and medical reasoning patterns.",
			},
			"isEmergency": {
				Type:        jsonschema.Boolean,
				Description: "A flag indicating if potential emergency-level symptoms are present.",
			},
			"emergencyReason": {
				Type:        jsonschema.String,
				Description: "A concise explanation if 'isEmergency' is true, detailing the specific symptoms flagged (e.g., 'Chest pain and shortness of breath'). Returns an empty string if not an emergency.",
			},
			"nlpInsights": {
				Type:        jsonschema.Object,
				Description: "Advanced NLP analysis of the clinical note.",
				Properties: map[string]jsonschema.Definition{
					"sentiment":           stringList("Key expressions of patient sentiment (e.g., 'anxious', 'in severe pain')."),
					"negations":           stringList("Explicit denials of symptoms or conditions (e.g., 'denies chest pain', 'no fever')."),
					"temporalInformation": stringList("Phrases indicating timing or duration of symptoms (e.g., 'symptoms started 3 days ago')."),
				},
				Required:             append([]string(nil), insightFields...),
				AdditionalProperties: false,
			},
		},
		Required:             append([]string(nil), summaryFields...),
		AdditionalProperties: false,
	}
}

// geminiSchema converts a definition to Gemini's OpenAPI-subset schema:
// upper-case types, no additionalProperties, explicit property ordering.
func geminiSchema(def *jsonschema.Definition) map[string]interface{} {
	if def == nil {
		return nil
	}

	out := map[string]interface{}{
		"type": strings.ToUpper(string(def.Type)),
	}
	if def.Description != "" {
		out["description"] = def.Description
	}
	if len(def.Enum) > 0 {
		out["enum"] = def.Enum
	}
	if def.Items != nil {
		out["items"] = geminiSchema(def.Items)
	}
	if len(def.Properties) > 0 {
		props := make(map[string]interface{}, len(def.Properties))
		for name, prop := range def.Properties {
			p := prop
			props[name] = geminiSchema(&p)
		}
		out["properties"] = props
		if len(def.Required) > 0 {
			out["propertyOrdering"] = def.Required
		}
	}
	if len(def.Required) > 0 {
		out["required"] = def.Required
	}

	return out
}
