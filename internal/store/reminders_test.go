package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dhwani/internal/kv"
)

func at(h, m int) time.Time {
	return time.Date(2024, 6, 1, h, m, 0, 0, time.UTC)
}

func TestRemindersSeedOnEmptyStore(t *testing.T) {
	db := kv.NewMemory()
	r := NewReminders(db, fixedNow)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "1", list[0].ID)
	assert.Equal(t, "2", list[1].ID)
	assert.Equal(t, "06:00", list[0].Time)
	assert.Equal(t, "17:00", list[1].Time)

	_, err := db.Get(KeyReminders)
	assert.NoError(t, err, "defaults should be persisted")
}

func TestRemindersSeedOnlyOnce(t *testing.T) {
	r := NewReminders(kv.NewMemory(), fixedNow)

	for _, rem := range r.List() {
		ok, err := r.Remove(rem.ID)
		require.NoError(t, err)
		require.True(t, ok)
	}

	assert.Empty(t, r.List(), "an emptied list must not be reseeded")
}

func TestRemindersCorruptBlobReseeds(t *testing.T) {
	db := kv.NewMemory()
	require.NoError(t, db.Set(KeyReminders, []byte("garbage")))

	list := NewReminders(db, fixedNow).List()
	require.Len(t, list, 2)
	assert.Equal(t, "1", list[0].ID)
}

func TestRemindersAdd(t *testing.T) {
	r := NewReminders(kv.NewMemory(), fixedNow)

	rem, err := r.Add("  Check pump  ", "7:05")
	require.NoError(t, err)
	assert.Equal(t, "Check pump", rem.Task)
	assert.Equal(t, "07:05", rem.Time)
	assert.Equal(t, fixedNow(), rem.CreatedAt)
	assert.NotEmpty(t, rem.ID)

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, rem.ID, list[2].ID)

	got, ok := r.Get(rem.ID)
	require.True(t, ok)
	assert.Equal(t, rem, got)
}

func TestRemindersAddValidation(t *testing.T) {
	r := NewReminders(kv.NewMemory(), fixedNow)

	_, err := r.Add("   ", "06:00")
	assert.ErrorIs(t, err, ErrEmptyTask)

	for _, bad := range []string{"", "6", "24:00", "12:60", "ab:cd", "1:5", "+1:00", "123:00"} {
		_, err := r.Add("task", bad)
		assert.ErrorIs(t, err, ErrInvalidTime, bad)
	}
}

func TestRemindersRemoveMissing(t *testing.T) {
	r := NewReminders(kv.NewMemory(), fixedNow)
	ok, err := r.Remove("nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, r.List(), 2)
}

func TestNextDueWrapsPastMidnight(t *testing.T) {
	r := NewReminders(kv.NewMemory(), fixedNow)
	removeAll(t, r)
	_, err := r.Add("Night check", "00:10")
	require.NoError(t, err)

	due, ok := r.NextDue(at(23, 50))
	require.True(t, ok)
	assert.Equal(t, 20, due.Minutes)
}

func TestNextDueAlreadyPassedToday(t *testing.T) {
	r := NewReminders(kv.NewMemory(), fixedNow)
	removeAll(t, r)
	_, err := r.Add("Irrigate", "06:00")
	require.NoError(t, err)

	due, ok := r.NextDue(at(7, 0))
	require.True(t, ok)
	assert.Equal(t, 1380, due.Minutes)
}

func TestNextDuePicksSmallestDelta(t *testing.T) {
	r := NewReminders(kv.NewMemory(), fixedNow)

	// seeded 06:00 and 17:00
	due, ok := r.NextDue(at(7, 0))
	require.True(t, ok)
	assert.Equal(t, "2", due.Reminder.ID)
	assert.Equal(t, 600, due.Minutes)

	due, ok = r.NextDue(at(18, 0))
	require.True(t, ok)
	assert.Equal(t, "1", due.Reminder.ID)
	assert.Equal(t, 720, due.Minutes)

	due, ok = r.NextDue(at(6, 0))
	require.True(t, ok)
	assert.Equal(t, "1", due.Reminder.ID)
	assert.Zero(t, due.Minutes)
}

func TestNextDueTieKeepsFirst(t *testing.T) {
	r := NewReminders(kv.NewMemory(), fixedNow)
	removeAll(t, r)
	first, err := r.Add("first", "09:00")
	require.NoError(t, err)
	_, err = r.Add("second", "09:00")
	require.NoError(t, err)

	due, ok := r.NextDue(at(8, 0))
	require.True(t, ok)
	assert.Equal(t, first.ID, due.Reminder.ID)
}

func TestNextDueEmpty(t *testing.T) {
	r := NewReminders(kv.NewMemory(), fixedNow)
	removeAll(t, r)
	_, ok := r.NextDue(at(8, 0))
	assert.False(t, ok)
}

func TestNextDueSkipsBadTimes(t *testing.T) {
	db := kv.NewMemory()
	require.NoError(t, db.Set(KeyReminders, []byte(`[
		{"id":"x","task":"broken","time":"soon"},
		{"id":"y","task":"ok","time":"10:00"}
	]`)))
	r := NewReminders(db, fixedNow)

	due, ok := r.NextDue(at(9, 0))
	require.True(t, ok)
	assert.Equal(t, "y", due.Reminder.ID)
}

func TestMinutesUntil(t *testing.T) {
	assert.Equal(t, 20, MinutesUntil(1430, 10))
	assert.Equal(t, 1380, MinutesUntil(420, 360))
	assert.Equal(t, 0, MinutesUntil(600, 600))
	assert.Equal(t, 1439, MinutesUntil(1, 0))
}

func TestFormatClock(t *testing.T) {
	cases := map[string]string{
		"00:00": "12:00 AM",
		"06:00": "6:00 AM",
		"12:30": "12:30 PM",
		"17:05": "5:05 PM",
		"bogus": "bogus",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatClock(in), in)
	}
}

func removeAll(t *testing.T, r *Reminders) {
	t.Helper()
	for _, rem := range r.List() {
		_, err := r.Remove(rem.ID)
		require.NoError(t, err)
	}
}
