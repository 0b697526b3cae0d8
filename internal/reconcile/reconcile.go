// Package reconcile joins the requirement matrix, the document registry, and
// the status log into per-person completion views. Everything here is pure:
// inputs are never modified and nothing is cached.
//
// Two joins use different keys. Required documents are joined to the
// registry by document id, while status rows are matched by document name.
// Two registry entries sharing a name therefore share a completion state.
package reconcile

import (
	"strings"

	"github.com/mesh-intelligence/formtrack/pkg/types"
)

// FindPerson returns the first matrix row whose id equals personID ignoring
// case and surrounding space.
func FindPerson(personID string, matrix types.RowSet) (types.Person, types.Row, error) {
	key := strings.TrimSpace(personID)
	if key != "" {
		for _, row := range matrix.Rows {
			if strings.EqualFold(strings.TrimSpace(row.Get(types.ColPersonID)), key) {
				return personOf(row), row, nil
			}
		}
	}
	return types.Person{}, nil, &types.Error{
		Op:       "find person",
		Table:    types.MatrixTable,
		PersonID: personID,
		Kind:     types.ErrPersonNotFound,
	}
}

// ComputeRequired returns the document ids the person must complete, in
// matrix column order.
func ComputeRequired(personID string, matrix types.RowSet) ([]string, error) {
	_, row, err := FindPerson(personID, matrix)
	if err != nil {
		return nil, err
	}
	return RequiredDocuments(matrix.Columns, row), nil
}

// RequiredDocuments returns the document-type columns of row whose value is
// TRUE in any case. The id and display name columns are never documents.
func RequiredDocuments(columns []string, row types.Row) []string {
	docs := []string{}
	for _, col := range columns {
		switch types.NormalizeColumn(col) {
		case types.ColPersonID, types.ColDisplayName:
			continue
		}
		if strings.EqualFold(strings.TrimSpace(row.Get(col)), types.ValueRequired) {
			docs = append(docs, col)
		}
	}
	return docs
}

// ComputeView builds the completion view for personID. Required documents
// without a registry entry are left out of the view and of TotalRequired.
// A document is done when at least one status row for the person and the
// document name says Y.
func ComputeView(personID string, required []string, registry, status types.RowSet) types.CompletionView {
	return newIndex(registry, status).view(personID, required)
}

// index holds the registry and status lookups shared by every person of a
// report.
type index struct {
	registry map[string]types.Row // trimmed doc_no -> first registry row
	done     map[statusKey]bool
}

type statusKey struct {
	personID string
	docName  string
}

func newIndex(registry, status types.RowSet) *index {
	idx := &index{
		registry: make(map[string]types.Row, registry.Len()),
		done:     make(map[statusKey]bool),
	}
	for _, row := range registry.Rows {
		id := strings.TrimSpace(row.Get(types.ColDocNo))
		if _, dup := idx.registry[id]; !dup {
			idx.registry[id] = row
		}
	}
	for _, row := range status.Rows {
		if !strings.EqualFold(strings.TrimSpace(row.Get(types.ColCompleted)), types.ValueCompleted) {
			continue
		}
		idx.done[statusKey{
			personID: strings.TrimSpace(row.Get(types.ColPersonID)),
			docName:  strings.TrimSpace(row.Get(types.ColDocName)),
		}] = true
	}
	return idx
}

func (idx *index) view(personID string, required []string) types.CompletionView {
	pid := strings.TrimSpace(personID)
	v := types.CompletionView{Items: []types.ViewItem{}}
	for _, docID := range required {
		reg, ok := idx.registry[strings.TrimSpace(docID)]
		if !ok {
			continue
		}
		name := strings.TrimSpace(reg.Get(types.ColDocName))
		item := types.ViewItem{
			DocumentID:   docID,
			DocumentName: name,
			Link:         strings.TrimSpace(reg.Get(types.ColLink)),
			Done:         idx.done[statusKey{personID: pid, docName: name}],
		}
		if item.Done {
			v.DoneCount++
		}
		v.Items = append(v.Items, item)
	}
	v.TotalRequired = len(v.Items)
	return v
}

func personOf(row types.Row) types.Person {
	return types.Person{
		ID:          strings.TrimSpace(row.Get(types.ColPersonID)),
		DisplayName: strings.TrimSpace(row.Get(types.ColDisplayName)),
	}
}
