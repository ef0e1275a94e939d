package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// helper: build a time in given tz
func mustLocal(t *testing.T, tz string, y int, m time.Month, d, hh, mm int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation(tz)
	if err != nil {
		t.Fatalf("load tz: %v", err)
	}
	return time.Date(y, m, d, hh, mm, 0, 0, loc)
}

func TestFutureReminders_AllAheadAtCreation(t *testing.T) {
	eventAt := mustLocal(t, "Asia/Almaty", 2024, time.June, 1, 10, 0)
	now := mustLocal(t, "Asia/Almaty", 2024, time.May, 31, 9, 0)

	got := FutureReminders(eventAt, now)
	require.Len(t, got, 5)

	want := []struct {
		kind Kind
		at   time.Time
	}{
		{KindDayBefore, mustLocal(t, "Asia/Almaty", 2024, time.May, 31, 10, 0)},
		{KindSixHoursBefore, mustLocal(t, "Asia/Almaty", 2024, time.June, 1, 4, 0)},
		{KindHourBefore, mustLocal(t, "Asia/Almaty", 2024, time.June, 1, 9, 0)},
		{KindQuarterBefore, mustLocal(t, "Asia/Almaty", 2024, time.June, 1, 9, 45)},
		{KindStarted, mustLocal(t, "Asia/Almaty", 2024, time.June, 1, 10, 15)},
	}
	for i, w := range want {
		require.Equal(t, w.kind, got[i].Kind)
		require.True(t, w.at.Equal(got[i].At), "kind %s: want %s, got %s", w.kind, w.at, got[i].At)
	}
}

func TestFutureReminders_SkipsPastOffsets(t *testing.T) {
	eventAt := mustLocal(t, "Asia/Almaty", 2024, time.June, 1, 10, 0)
	now := mustLocal(t, "Asia/Almaty", 2024, time.June, 1, 9, 50)

	got := FutureReminders(eventAt, now)
	require.Len(t, got, 1)
	require.Equal(t, KindStarted, got[0].Kind)
}

func TestFutureReminders_DueExactlyNowIsSkipped(t *testing.T) {
	eventAt := time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)
	now := eventAt.Add(-15 * time.Minute)

	got := FutureReminders(eventAt, now)
	require.Len(t, got, 1)
	require.Equal(t, KindStarted, got[0].Kind)
}

func TestFutureReminders_EventOver(t *testing.T) {
	eventAt := time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)
	require.Empty(t, FutureReminders(eventAt, eventAt.Add(time.Hour)))
}

func TestJobIDs(t *testing.T) {
	require.Equal(t, "event_7_notification_minus_1_hour", BroadcastJobID(7, KindHourBefore))
	require.Equal(t, "event_7_user_42_notification_minus_1_hour", UserJobID(7, 42, KindHourBefore))
	require.NotEqual(t, BroadcastJobID(7, KindHourBefore), UserJobID(7, 42, KindHourBefore))
}

func TestKindLabelAndValid(t *testing.T) {
	require.Equal(t, "Event started 15 minutes ago", KindStarted.Label())
	require.True(t, KindInitial.Valid())
	require.True(t, KindDayBefore.Valid())
	require.False(t, Kind("minus_2_days").Valid())
}
