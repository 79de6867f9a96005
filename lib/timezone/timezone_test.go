package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFloorHour(t *testing.T) {
	at := time.Date(2024, 3, 14, 15, 59, 26, 535, Location)
	floored := FloorHour(at)

	require.Equal(t, 15, floored.Hour())
	require.Equal(t, 0, floored.Minute())
	require.Equal(t, 0, floored.Second())
	require.Equal(t, 0, floored.Nanosecond())
	require.Equal(t, Location, floored.Location())
}

func TestNextHour(t *testing.T) {
	at := time.Date(2024, 3, 14, 15, 0, 0, 0, Location)
	require.Equal(t, 16, NextHour(at).Hour())

	// a time already at the boundary still advances a full hour
	require.True(t, NextHour(at).After(at))

	late := time.Date(2024, 3, 14, 23, 59, 59, 0, Location)
	next := NextHour(late)
	require.Equal(t, 0, next.Hour())
	require.Equal(t, 15, next.Day())
}

func TestNowIsKST(t *testing.T) {
	_, offset := Now().Zone()
	require.Equal(t, 9*60*60, offset)
}
