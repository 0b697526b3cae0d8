package types

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_UnwrapsKindAndCause(t *testing.T) {
	err := &Error{
		Op:       "upsert",
		Table:    StatusTable,
		PersonID: "e1",
		Document: "Form One",
		Kind:     ErrMutationFailure,
		Err:      io.ErrUnexpectedEOF,
	}

	assert.ErrorIs(t, err, ErrMutationFailure)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.NotErrorIs(t, err, ErrSourceUnavailable)

	msg := err.Error()
	for _, want := range []string{"upsert", StatusTable, `person="e1"`, `document="Form One"`, "mutation failed", "unexpected EOF"} {
		assert.True(t, strings.Contains(msg, want), "message %q missing %q", msg, want)
	}
}

func TestError_AsThroughWrapping(t *testing.T) {
	inner := &Error{Op: "view", PersonID: "zz", Kind: ErrPersonNotFound}
	wrapped := errors.Join(errors.New("outer"), inner)

	var got *Error
	if assert.ErrorAs(t, wrapped, &got) {
		assert.Equal(t, "zz", got.PersonID)
	}
	assert.ErrorIs(t, wrapped, ErrPersonNotFound)
}

func TestRow_GetNormalizesName(t *testing.T) {
	r := Row{"doc_name": "Form One"}
	assert.Equal(t, "Form One", r.Get("  DOC_Name "))
	assert.Equal(t, "", r.Get("missing"))
}

func TestCompletionView_Progress(t *testing.T) {
	assert.Equal(t, 0.0, CompletionView{}.Progress())
	assert.Equal(t, 0.5, CompletionView{DoneCount: 1, TotalRequired: 2}.Progress())
}

func TestPendingItem_String(t *testing.T) {
	assert.Equal(t, "doc1: Form One", PendingItem{DocumentID: "doc1", DocumentName: "Form One"}.String())
}
