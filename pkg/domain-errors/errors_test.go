package derrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rezscan/pkg/platform/sentinel"
)

func TestWrapPreservesChain(t *testing.T) {
	err := Wrap(sentinel.ErrConflict, CodeUnavailable, "scan contention")

	assert.True(t, errors.Is(err, sentinel.ErrConflict))
	assert.True(t, HasCode(err, CodeUnavailable))
	assert.Contains(t, err.Error(), "scan contention")
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, CodeInternal, "nothing"))
}

func TestHasCodeThroughWrapping(t *testing.T) {
	inner := New(CodeUnknownPrefix, "prefix not mapped")
	outer := fmt.Errorf("handling scan: %w", inner)

	assert.True(t, HasCode(outer, CodeUnknownPrefix))
	assert.False(t, HasCode(outer, CodeNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeUnknownPrefix))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeBadRequest, CodeOf(New(CodeBadRequest, "bad")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestNewf(t *testing.T) {
	err := Newf(CodeUnknownResident, "no resident registered for mdoc %q", "1234")
	require.Error(t, err)
	assert.Equal(t, `no resident registered for mdoc "1234"`, err.Error())
}

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeBadRequest, http.StatusBadRequest},
		{CodeUnknownPrefix, http.StatusNotFound},
		{CodeNotFound, http.StatusNotFound},
		{CodeUnknownResident, http.StatusUnprocessableEntity},
		{CodeConflict, http.StatusConflict},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeInternal, http.StatusInternalServerError},
		{Code("made_up"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ToHTTPStatus(tt.code), "code %s", tt.code)
	}
}
