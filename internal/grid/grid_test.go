package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/formtrack/pkg/types"
)

func TestValidateTable(t *testing.T) {
	for _, name := range []string{"training_status", "form links"} {
		assert.NoError(t, ValidateTable(name), name)
	}
	for _, name := range []string{"", "  ", "../x", `a\b`, ".hidden", "a:b"} {
		assert.ErrorIs(t, ValidateTable(name), types.ErrInvalidTable, name)
	}
}

func TestUpdate(t *testing.T) {
	g := [][]string{{"id", "doc_name"}, {"e1", "Form One"}}

	require.NoError(t, Update(g, 2, []types.Cell{{Col: 1, Value: "e2"}, {Col: 4, Value: "ts"}}))
	assert.Equal(t, []string{"e2", "Form One", "", "ts"}, g[1])

	assert.ErrorIs(t, Update(g, 3, nil), types.ErrRowOutOfRange)
	assert.ErrorIs(t, Update(g, 0, nil), types.ErrRowOutOfRange)
	assert.ErrorIs(t, Update(g, 2, []types.Cell{{Col: 0}}), types.ErrRowOutOfRange)
}

func TestDelete(t *testing.T) {
	g := [][]string{{"h"}, {"a"}, {"b"}, {"c"}}

	g, err := Delete(g, 3)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"h"}, {"a"}, {"c"}}, g)

	_, err = Delete(g, 4)
	assert.ErrorIs(t, err, types.ErrRowOutOfRange)
}

func TestClone_IsDeep(t *testing.T) {
	g := [][]string{{"a", "b"}}
	c := Clone(g)
	c[0][0] = "z"
	assert.Equal(t, "a", g[0][0])
}
