package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/formtrack/pkg/types"
)

func reportFixture() (types.RowSet, types.RowSet, types.RowSet) {
	matrix := matrixOf(
		[]string{"id", "full_name", "doc1", "doc2", "doc3"},
		[]string{"e1", "Alice", "TRUE", "TRUE", "FALSE"},
		[]string{"", "Nobody", "TRUE", "TRUE", "TRUE"},
		[]string{"e2", "Bob", "TRUE", "FALSE", "TRUE"},
		[]string{"e3", "Carol", "FALSE", "FALSE", "FALSE"},
	)
	registry := registryOf(
		[]string{"doc1", "Form One", "u1"},
		[]string{"doc2", "Form Two", "u2"},
	)
	status := statusOf(
		[]string{"e1", "Form One", "Y", "2024-01-01 00:00:00"},
		[]string{"e2", "Form One", "Y", "2024-01-02 00:00:00"},
	)
	return matrix, registry, status
}

func TestAggregate(t *testing.T) {
	r := Aggregate(reportFixture())

	require.Len(t, r.Entries, 3)

	alice := r.Entries[0]
	assert.Equal(t, types.Person{ID: "e1", DisplayName: "Alice"}, alice.Person)
	assert.Equal(t, []string{"doc1"}, alice.Done)
	assert.Equal(t, []types.PendingItem{{DocumentID: "doc2", DocumentName: "Form Two"}}, alice.Pending)
	assert.Equal(t, 1, alice.DoneCount)
	assert.Equal(t, 2, alice.TotalRequired)
	assert.Equal(t, "doc2: Form Two", alice.Pending[0].String())

	bob := r.Entries[1]
	assert.Equal(t, "e2", bob.Person.ID)
	assert.Equal(t, []string{"doc1"}, bob.Done)
	assert.Empty(t, bob.Pending)
	assert.Equal(t, 1, bob.TotalRequired, "doc3 has no registry entry")

	carol := r.Entries[2]
	assert.Empty(t, carol.Done)
	assert.Empty(t, carol.Pending)
	assert.Zero(t, carol.TotalRequired)

	require.Len(t, r.Skipped, 1)
	assert.Equal(t, 3, r.Skipped[0].Row)
}

func TestAggregate_DuplicateIDsReportedPerRow(t *testing.T) {
	matrix := matrixOf(
		[]string{"id", "full_name", "doc1", "doc2"},
		[]string{"e1", "Alice", "TRUE", "FALSE"},
		[]string{"e1", "Alice again", "FALSE", "TRUE"},
	)
	registry := registryOf(
		[]string{"doc1", "Form One", "u1"},
		[]string{"doc2", "Form Two", "u2"},
	)
	r := Aggregate(matrix, registry, statusOf())

	require.Len(t, r.Entries, 2)
	assert.Equal(t, "doc1", r.Entries[0].Pending[0].DocumentID)
	assert.Equal(t, "doc2", r.Entries[1].Pending[0].DocumentID)
}

func TestAggregate_EmptyMatrix(t *testing.T) {
	r := Aggregate(types.RowSet{}, types.RowSet{}, types.RowSet{})
	assert.Empty(t, r.Entries)
	assert.NotNil(t, r.Entries)
	assert.Empty(t, r.Skipped)
}

func TestPendingOnly(t *testing.T) {
	r := PendingOnly(Aggregate(reportFixture()))
	require.Len(t, r.Entries, 1)
	assert.Equal(t, "e1", r.Entries[0].Person.ID)
	assert.Len(t, r.Skipped, 1)
}

func TestFilterPeople(t *testing.T) {
	full := Aggregate(reportFixture())

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"e1", "e2", "e3"}},
		{"ali", []string{"e1"}},
		{"E2", []string{"e2"}},
		{"zzz", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := []string{}
			for _, e := range FilterPeople(full, tt.query).Entries {
				got = append(got, e.Person.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
