package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run TestClockStatus
func TestClockStatus(t *testing.T) {
	clock := NewClock()
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Wednesday mid-session
	open := time.Date(2024, 6, 5, 10, 0, 0, 0, ny)
	assert.True(t, clock.IsOpen(open))
	st := clock.Status(open)
	assert.True(t, st.IsOpen)
	assert.Empty(t, st.NextOpen)

	// Saturday: next open is Monday 09:30
	sat := time.Date(2024, 6, 8, 12, 0, 0, 0, ny)
	assert.False(t, clock.IsOpen(sat))
	next := clock.NextOpen(sat)
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 30, next.Minute())

	// after the close rolls to the next morning
	evening := time.Date(2024, 6, 5, 17, 0, 0, 0, ny)
	assert.False(t, clock.IsOpen(evening))
	assert.Equal(t, 6, clock.NextOpen(evening).Day())
}
