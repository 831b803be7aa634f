package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := NewDegenerateRegionError("plan", "width %d", 0)
	wrapped := fmt.Errorf("polygon 2: %w", err)

	assert.ErrorIs(t, wrapped, ErrDegenerateRegion)
	assert.NotErrorIs(t, wrapped, ErrInvalidPolygon)
	assert.NotErrorIs(t, ErrDegenerateRegion, err, "sentinel must not match a specific error")
}

func TestInferenceErrorKeepsCause(t *testing.T) {
	cause := stderrors.New("session run failed")
	err := NewInferenceError("infer", cause)

	require.ErrorIs(t, err, cause)
	require.ErrorIs(t, err, ErrInference)
	assert.Equal(t, "infer: inference: session run failed", err.Error())
}

func TestKindOf(t *testing.T) {
	kind, ok := KindOf(fmt.Errorf("outer: %w", NewModelNotReadyError("infer", "loading")))
	require.True(t, ok)
	assert.Equal(t, KindModelNotReady, kind)

	_, ok = KindOf(stderrors.New("plain"))
	assert.False(t, ok)
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid polygon", NewInvalidPolygonError("bbox", "empty"), http.StatusBadRequest},
		{"no valid regions", NewNoValidRegionsError("process", 2), http.StatusBadRequest},
		{"degenerate", NewDegenerateRegionError("plan", "x"), http.StatusBadRequest},
		{"not ready", NewModelNotReadyError("infer", "loading"), http.StatusServiceUnavailable},
		{"inference", NewInferenceError("infer", stderrors.New("boom")), http.StatusBadGateway},
		{"conversion", NewIOConversionError("tensor", "bad shape"), http.StatusUnprocessableEntity},
		{"plain", stderrors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}
