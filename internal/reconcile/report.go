package reconcile

import (
	"strings"

	"github.com/mesh-intelligence/formtrack/pkg/types"
)

// Aggregate computes every person's view and partitions their documents
// into done and pending. Each matrix row is evaluated on its own, so rows
// sharing an id are reported separately. Rows without an id cannot be
// matched to status rows; they are skipped and listed in Report.Skipped
// with their sheet row number.
func Aggregate(matrix, registry, status types.RowSet) types.Report {
	idx := newIndex(registry, status)
	report := types.Report{Entries: []types.ReportEntry{}}

	for i, row := range matrix.Rows {
		person := personOf(row)
		if person.ID == "" {
			report.Skipped = append(report.Skipped, types.SkippedRow{
				Row:    i + 2,
				Reason: "empty " + types.ColPersonID,
			})
			continue
		}

		view := idx.view(person.ID, RequiredDocuments(matrix.Columns, row))
		entry := types.ReportEntry{
			Person:        person,
			Done:          []string{},
			Pending:       []types.PendingItem{},
			DoneCount:     view.DoneCount,
			TotalRequired: view.TotalRequired,
		}
		for _, item := range view.Items {
			if item.Done {
				entry.Done = append(entry.Done, item.DocumentID)
				continue
			}
			entry.Pending = append(entry.Pending, types.PendingItem{
				DocumentID:   item.DocumentID,
				DocumentName: item.DocumentName,
			})
		}
		report.Entries = append(report.Entries, entry)
	}
	return report
}

// PendingOnly filters a report down to people with at least one pending
// document.
func PendingOnly(r types.Report) types.Report {
	out := types.Report{Entries: []types.ReportEntry{}, Skipped: r.Skipped}
	for _, e := range r.Entries {
		if len(e.Pending) > 0 {
			out.Entries = append(out.Entries, e)
		}
	}
	return out
}

// FilterPeople keeps the entries whose id or display name contains query,
// ignoring case.
func FilterPeople(r types.Report, query string) types.Report {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return r
	}
	out := types.Report{Entries: []types.ReportEntry{}, Skipped: r.Skipped}
	for _, e := range r.Entries {
		if strings.Contains(strings.ToLower(e.Person.ID), q) ||
			strings.Contains(strings.ToLower(e.Person.DisplayName), q) {
			out.Entries = append(out.Entries, e)
		}
	}
	return out
}
