package monitor

import (
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShiftStart_NilScheduleIsMidnightUTC(t *testing.T) {
	now := time.Date(2024, 11, 5, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC), shiftStart(nil, now))
}

func TestShiftStart_AfterBoundary(t *testing.T) {
	sched, err := cron.ParseStandard("0 6 * * *")
	require.NoError(t, err)

	now := time.Date(2024, 11, 5, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 11, 5, 6, 0, 0, 0, time.UTC), shiftStart(sched, now))
}

func TestShiftStart_BeforeBoundaryUsesPreviousDay(t *testing.T) {
	sched, err := cron.ParseStandard("0 6 * * *")
	require.NoError(t, err)

	// 03:00 is before today's 06:00 start, so the working day began yesterday.
	now := time.Date(2024, 11, 5, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 11, 4, 6, 0, 0, 0, time.UTC), shiftStart(sched, now))
}

func TestShiftStart_ExactlyOnBoundary(t *testing.T) {
	sched, err := cron.ParseStandard("0 6 * * *")
	require.NoError(t, err)

	now := time.Date(2024, 11, 5, 6, 0, 0, 0, time.UTC)
	assert.Equal(t, now, shiftStart(sched, now))
}
