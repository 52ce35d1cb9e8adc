package render

import (
	"github.com/ppiankov/clinsum/internal/model"
	"github.com/ppiankov/clinsum/internal/session"
)

// Fixed user-facing labels
const (
	PanelTitle = "Structured Summary"
	InputTitle = "Unstructured Clinical Note"

	SummarizeLabel  = "Summarize Note"
	ProcessingLabel = "Processing..."
	ExportLabel     = "Export as PDF"
	ExportingLabel  = "Exporting..."

	LoadingText      = "Analyzing clinical note..."
	ErrorTitle       = "An Error Occurred"
	EmptyTitle       = "Summary Will Appear Here"
	EmptyHint        = `Enter a note and click "Summarize Note" to begin.`
	EmergencyTitle   = "⚠️ Emergency Symptom Flagged"
	ExportErrorTitle = "Export Failed"

	DiagnosisTitle = "Suggested Diagnosis"
	InsightsTitle  = "Clinical Insights (NLP)"
	CodesTitle     = "Medical Codes"

	NoneDetected = "None detected."
	NoICDCodes   = "No ICD codes detected."
	NoCPTCodes   = "No CPT codes detected."
)

// Kind selects which of the mutually exclusive panel views is shown
type Kind int

const (
	KindLoading Kind = iota
	KindError
	KindEmpty
	KindSummary
)

func (k Kind) String() string {
	switch k {
	case KindLoading:
		return "loading"
	case KindError:
		return "error"
	case KindEmpty:
		return "empty"
	case KindSummary:
		return "summary"
	default:
		return "unknown"
	}
}

// BadgeKind styles a code badge
type BadgeKind string

const (
	BadgeICD BadgeKind = "icd"
	BadgeCPT BadgeKind = "cpt"
)

// ExportStatus is the export pipeline's state as the page needs it
type ExportStatus struct {
	InProgress bool
	Err        string
}

// View is everything the page shows for one state snapshot
type View struct {
	Kind Kind

	Input  InputView
	Export *ExportButton // nil unless a summary is shown

	ExportError string
	Error       string
	Summary     *SummaryView
}

// InputView is the note form
type InputView struct {
	Note        string
	Disabled    bool
	ButtonLabel string
}

// ExportButton is the secondary action shown next to a summary
type ExportButton struct {
	Label    string
	Disabled bool
}

// SummaryView is the populated summary region, the part that gets exported
type SummaryView struct {
	Emergency *Banner
	SOAP      []Section
	Diagnosis Section
	Insights  []InsightGroup
	Codes     []CodeGroup
}

// Banner is the emergency alert
type Banner struct {
	Title  string
	Reason string
}

// Section is a titled free-text block
type Section struct {
	Title string
	Body  string
}

// InsightGroup is one labeled NLP list; Placeholder is set iff Items is empty
type InsightGroup struct {
	Title       string
	Items       []string
	Placeholder string
}

// CodeGroup is one ICD or CPT badge row; Placeholder is set iff Badges is empty
type CodeGroup struct {
	Title       string
	Kind        BadgeKind
	Badges      []Badge
	Placeholder string
}

// Badge is one rendered code
type Badge struct {
	Kind        BadgeKind
	Code        string
	Description string
}

// Build maps a state snapshot and the export status to the view.
// Loading wins over an error, an error over the empty placeholder.
func Build(st session.State, export ExportStatus) View {
	v := View{
		Input: InputView{
			Note:        st.Note,
			Disabled:    st.IsLoading(),
			ButtonLabel: SummarizeLabel,
		},
	}
	if st.IsLoading() {
		v.Input.ButtonLabel = ProcessingLabel
	}

	switch {
	case st.Phase == session.Loading:
		v.Kind = KindLoading
	case st.Err != "":
		v.Kind = KindError
		v.Error = st.Err
	case st.Summary == nil:
		v.Kind = KindEmpty
	default:
		v.Kind = KindSummary
		v.Summary = BuildSummary(st.Summary)
		v.Export = &ExportButton{Label: ExportLabel, Disabled: export.InProgress}
		if export.InProgress {
			v.Export.Label = ExportingLabel
		}
		v.ExportError = export.Err
	}

	return v
}

// BuildSummary lays out a summary record
func BuildSummary(s *model.ClinicalSummary) *SummaryView {
	sv := &SummaryView{
		SOAP: []Section{
			{Title: "Subjective (S)", Body: s.Subjective},
			{Title: "Objective (O)", Body: s.Objective},
			{Title: "Assessment (A)", Body: s.Assessment},
			{Title: "Plan (P)", Body: s.Plan},
		},
		Diagnosis: Section{Title: DiagnosisTitle, Body: s.SuggestedDiagnosis},
		Insights: []InsightGroup{
			insightGroup("Sentiment", s.NlpInsights.Sentiment),
			insightGroup("Negations", s.NlpInsights.Negations),
			insightGroup("Temporal Information", s.NlpInsights.TemporalInformation),
		},
		Codes: []CodeGroup{
			codeGroup("ICD Codes (Diagnosis)", BadgeICD, s.ICDCodes, NoICDCodes),
			codeGroup("CPT Codes (Procedure)", BadgeCPT, s.CPTCodes, NoCPTCodes),
		},
	}

	if s.IsEmergency {
		sv.Emergency = &Banner{Title: EmergencyTitle, Reason: s.EmergencyReason}
	}

	return sv
}

func insightGroup(title string, items []string) InsightGroup {
	g := InsightGroup{Title: title, Items: items}
	if len(items) == 0 {
		g.Items = nil
		g.Placeholder = NoneDetected
	}
	return g
}

func codeGroup(title string, kind BadgeKind, codes []model.MedicalCode, placeholder string) CodeGroup {
	g := CodeGroup{Title: title, Kind: kind}
	if len(codes) == 0 {
		g.Placeholder = placeholder
		return g
	}
	g.Badges = make([]Badge, 0, len(codes))
	for _, c := range codes {
		g.Badges = append(g.Badges, Badge{Kind: kind, Code: c.Code, Description: c.Description})
	}
	return g
}
