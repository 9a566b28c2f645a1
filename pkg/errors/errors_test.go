package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := Wrap(CodeDependency, cause, "load handshake")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, CodeDependency, err.Code())
	assert.Equal(t, "DEPENDENCY_ERROR: load handshake", err.Error())
}

func TestAsFindsTypedErrorInChain(t *testing.T) {
	inner := New(CodeAlreadyDone, "dealer already accepted terms")
	wrapped := fmt.Errorf("operation failed: %w", inner)

	typed := As(wrapped)
	require.NotNil(t, typed)
	assert.Equal(t, CodeAlreadyDone, typed.Code())

	assert.Nil(t, As(fmt.Errorf("plain")))
}

func TestHasCode(t *testing.T) {
	err := New(CodeInsufficientFunds, "bidder stake not covered")

	assert.True(t, HasCode(err, CodeInsufficientFunds))
	assert.False(t, HasCode(err, CodeStateConflict))
	assert.False(t, HasCode(nil, CodeInternal))
}

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("NOPE"))
	assert.Equal(t, http.StatusInternalServerError, meta.HTTPStatus)
}

func TestDumpCollectsChain(t *testing.T) {
	cause := fmt.Errorf("sql: no rows")
	err := Wrap(CodeNotFound, cause, "request not posted")

	d := Dump(err)
	assert.Equal(t, CodeNotFound, d.Code)
	assert.Len(t, d.Chain, 2)
}
