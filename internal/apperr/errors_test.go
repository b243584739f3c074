package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run TestKindStatus
func TestKindStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:      http.StatusBadRequest,
		KindSessionExpired:  http.StatusUnauthorized,
		KindAccountInactive: http.StatusUnauthorized,
		KindNoData:          http.StatusNotFound,
		KindConflict:        http.StatusConflict,
		KindRateLimit:       http.StatusTooManyRequests,
		KindUpstream:        http.StatusBadGateway,
		Kind("Bogus"):       http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.Status(), string(kind))
	}
}

// go test -v --run TestIsKindThroughWrapping
func TestIsKindThroughWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("get quote: %w", Upstream(cause, "quote for %s", "AAPL"))

	assert.True(t, IsKind(err, KindUpstream))
	assert.False(t, IsKind(err, KindNoData))
	assert.ErrorIs(t, err, cause)

	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "quote for AAPL", e.Message)
	assert.Contains(t, e.Error(), "connection refused")
}
