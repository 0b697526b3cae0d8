package types

// Person is one row of the requirement matrix.
type Person struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// ViewItem is one required document that has a registry entry.
type ViewItem struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
	Link         string `json:"link"`
	Done         bool   `json:"done"`
}

// CompletionView is the derived per-person checklist. It is recomputed on
// every read and never cached.
type CompletionView struct {
	Items         []ViewItem `json:"items"`
	DoneCount     int        `json:"done_count"`
	TotalRequired int        `json:"total_required"`
}

// Progress returns DoneCount/TotalRequired, or 0 when nothing is required.
func (v CompletionView) Progress() float64 {
	if v.TotalRequired == 0 {
		return 0
	}
	return float64(v.DoneCount) / float64(v.TotalRequired)
}

// PersonView pairs a person with their completion view.
type PersonView struct {
	Person   Person         `json:"person"`
	View     CompletionView `json:"view"`
	Progress float64        `json:"progress"`
}

// PendingItem is a required document not yet completed.
type PendingItem struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
}

// String renders the item as "documentId: documentName".
func (p PendingItem) String() string {
	return p.DocumentID + ": " + p.DocumentName
}

// ReportEntry summarizes one person in the aggregation report.
type ReportEntry struct {
	Person        Person        `json:"person"`
	Done          []string      `json:"done"`
	Pending       []PendingItem `json:"pending"`
	DoneCount     int           `json:"done_count"`
	TotalRequired int           `json:"total_required"`
}

// SkippedRow records a matrix row the report could not evaluate.
type SkippedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Report is the aggregation over every person in the matrix.
type Report struct {
	Entries []ReportEntry `json:"entries"`
	Skipped []SkippedRow  `json:"skipped,omitempty"`
}

// MutationResult is the outcome of a successful upsert or retract.
type MutationResult string

// Mutation outcomes.
const (
	ResultUpdated  MutationResult = "updated"
	ResultAppended MutationResult = "appended"
	ResultDeleted  MutationResult = "deleted"
	ResultNotFound MutationResult = "not_found"
)
