package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	w := New(nil, "")
	assert.Equal(t, "formtrack:sheets", w.sheetsKey())
	assert.Equal(t, "formtrack:sheet:training_status", w.sheetKey("training_status"))

	w = New(nil, "tenant-a")
	assert.Equal(t, "tenant-a:sheet:form_links", w.sheetKey("form_links"))
}

func TestRowEncoding(t *testing.T) {
	s, err := encodeRow(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", s)

	s, err = encodeRow([]string{"e1", "ฟอร์ม \"หนึ่ง\"", ""})
	require.NoError(t, err)

	row, err := decodeRow(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "ฟอร์ม \"หนึ่ง\"", ""}, row)

	_, err = decodeRow("{")
	assert.Error(t, err)
}

func TestClose_BorrowedClientIsLeftOpen(t *testing.T) {
	w := New(nil, "")
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
