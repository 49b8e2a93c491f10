package attendance_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classboard/core"
	. "github.com/trezcool/classboard/core/attendance"
	"github.com/trezcool/classboard/core/classroom"
	"github.com/trezcool/classboard/storage/database/inmem"
	"github.com/trezcool/classboard/tests"
)

const (
	cohort = "c1"
	day    = "2024-03-04"
)

func setup(t *testing.T, rosterSize int) (*Reconciler, *testutil.FakeRemote, DraftStore) {
	t.Helper()
	remote := testutil.NewFakeRemote()
	drafts := inmemdb.NewDraftRepository(inmemdb.Open())
	rec := NewReconciler(cohort, remote, drafts, nil)
	rec.SetRoster(testutil.Roster(rosterSize))
	return rec, remote, drafts
}

// loaded returns a reconciler hydrated from one remote event of day with the given present ids.
func loaded(t *testing.T, rosterSize int, present ...string) (*Reconciler, *testutil.FakeRemote, DraftStore, Event) {
	t.Helper()
	rec, remote, drafts := setup(t, rosterSize)
	ev := remote.AddEvent(cohort, day, present...)
	require.NoError(t, rec.Load(context.Background()))
	remote.ResetCalls()
	return rec, remote, drafts, ev
}

func statuses(entries []Entry) map[string]Status {
	out := make(map[string]Status, len(entries))
	for _, e := range entries {
		out[e.StudentID] = e.Status
	}
	return out
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name        string
		local       []string
		remote      []string
		wantAdded   []string
		wantRemoved []string
	}{
		{name: "swap one", local: []string{"B", "C", "D"}, remote: []string{"A", "B", "C"}, wantAdded: []string{"D"}, wantRemoved: []string{"A"}},
		{name: "same", local: []string{"A", "B"}, remote: []string{"B", "A"}},
		{name: "all new", local: []string{"B", "A"}, wantAdded: []string{"A", "B"}},
		{name: "all gone", remote: []string{"A"}, wantRemoved: []string{"A"}},
		{name: "duplicates", local: []string{"A", "A"}, remote: []string{"B", "B"}, wantAdded: []string{"A"}, wantRemoved: []string{"B"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			added, removed := Diff(tt.local, tt.remote)
			assert.Equal(t, tt.wantAdded, added)
			assert.Equal(t, tt.wantRemoved, removed)
		})
	}
}

func TestReconciler_CreateRecord(t *testing.T) {
	ctx := context.Background()
	rec, remote, drafts := setup(t, 3)

	r, err := rec.CreateRecord(ctx, day)
	require.NoError(t, err)
	assert.False(t, r.Synced())
	assert.NotEmpty(t, r.ID)
	require.Len(t, r.Entries, 3)
	for _, e := range r.Entries {
		assert.Equal(t, StatusAbsent, e.Status)
	}
	assert.True(t, rec.HasRecord(day))
	assert.Equal(t, []string{day}, rec.Pending())
	assert.Empty(t, remote.Calls(), "creating a record is local")

	saved, err := drafts.ListDrafts(ctx, cohort)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, r.ID, saved[0].RecordID)

	_, err = rec.CreateRecord(ctx, day)
	assert.Equal(t, ErrRecordExists, err)

	_, err = rec.CreateRecord(ctx, "04/03/2024")
	assert.True(t, core.IsValidationError(err))
}

func TestReconciler_Toggle(t *testing.T) {
	ctx := context.Background()
	rec, _, _ := setup(t, 3)

	assert.Equal(t, ErrNoRecord, rec.Toggle(ctx, day, "s1", StatusPresent))

	_, err := rec.CreateRecord(ctx, day)
	require.NoError(t, err)

	tests := []struct {
		name      string
		studentID string
		status    Status
		wantErr   error
		wantValid bool
	}{
		{name: "unknown student", studentID: "ghost", status: StatusPresent, wantErr: ErrUnknownStudent},
		{name: "invalid status", studentID: "s1", status: "late", wantValid: true},
		{name: "present", studentID: "s1", status: StatusPresent},
		{name: "absent", studentID: "s2", status: StatusAbsent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rec.Toggle(ctx, day, tt.studentID, tt.status)
			switch {
			case tt.wantValid:
				assert.True(t, core.IsValidationError(err))
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			default:
				assert.NoError(t, err)
				assert.Equal(t, tt.status, statuses(rec.Students(day))[tt.studentID])
			}
		})
	}

	require.NoError(t, rec.SelectAll(ctx, day))
	assert.Equal(t, Stats{Present: 3, Total: 3, Percentage: 100}, rec.Stats(day))
	require.NoError(t, rec.UnselectAll(ctx, day))
	assert.Equal(t, Stats{Absent: 3, Total: 3}, rec.Stats(day))
}

func TestReconciler_Publish(t *testing.T) {
	ctx := context.Background()
	rec, remote, drafts := setup(t, 3)

	_, err := rec.Publish(ctx, day)
	assert.Equal(t, ErrNoRecord, err)

	_, err = rec.CreateRecord(ctx, day)
	require.NoError(t, err)
	require.NoError(t, rec.Toggle(ctx, day, "s2", StatusPresent))

	r, err := rec.Publish(ctx, day)
	require.NoError(t, err)
	assert.True(t, r.Synced())
	assert.Equal(t, []string{"s2"}, r.RemotePresent)
	assert.Equal(t, []string{"s2"}, remote.Present(r.EventID.String))
	assert.Empty(t, rec.Pending())

	saved, err := drafts.ListDrafts(ctx, cohort)
	require.NoError(t, err)
	assert.Empty(t, saved)

	// already published
	_, err = rec.Publish(ctx, day)
	require.NoError(t, err)
	assert.Len(t, remote.Calls("CreateEvent"), 1)
}

func TestReconciler_CreateAndPublish(t *testing.T) {
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		rec, remote, _ := setup(t, 2)
		r, err := rec.CreateAndPublish(ctx, day)
		require.NoError(t, err)
		assert.True(t, r.Synced())
		assert.Empty(t, remote.Present(r.EventID.String))
		assert.Empty(t, rec.Pending())
	})

	t.Run("remote failure keeps nothing", func(t *testing.T) {
		rec, remote, drafts := setup(t, 2)
		remote.FailCreate = true

		_, err := rec.CreateAndPublish(ctx, day)
		assert.Equal(t, testutil.ErrRemote, errors.Cause(err))
		assert.False(t, rec.HasRecord(day))
		assert.Empty(t, rec.Pending())

		saved, err := drafts.ListDrafts(ctx, cohort)
		require.NoError(t, err)
		assert.Empty(t, saved)
	})
}

func TestReconciler_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("not synced", func(t *testing.T) {
		rec, _, _ := setup(t, 2)
		_, err := rec.Save(ctx, day)
		assert.Equal(t, ErrNoRecord, err)

		_, err = rec.CreateRecord(ctx, day)
		require.NoError(t, err)
		_, err = rec.Save(ctx, day)
		assert.Equal(t, ErrNotSynced, err)
	})

	t.Run("diff and idempotence", func(t *testing.T) {
		rec, remote, drafts, ev := loaded(t, 4, "s1", "s2", "s3")
		require.NoError(t, rec.Toggle(ctx, day, "s1", StatusAbsent))
		require.NoError(t, rec.Toggle(ctx, day, "s4", StatusPresent))
		assert.Equal(t, []string{day}, rec.Pending())

		res, err := rec.Save(ctx, day)
		require.NoError(t, err)
		assert.Equal(t, []string{"s4"}, res.Added)
		assert.Equal(t, []string{"s1"}, res.Removed)

		calls := remote.Calls("MarkPresent", "RemovePresent")
		require.Len(t, calls, 2)
		assert.Equal(t, []string{"s4"}, calls[0].IDs)
		assert.Equal(t, []string{"s1"}, calls[1].IDs)
		assert.Len(t, remote.Calls("GetEvent"), 1)
		assert.Equal(t, []string{"s2", "s3", "s4"}, remote.Present(ev.ID))
		assert.Empty(t, rec.Pending())

		saved, err := drafts.ListDrafts(ctx, cohort)
		require.NoError(t, err)
		assert.Empty(t, saved)

		remote.ResetCalls()
		res, err = rec.Save(ctx, day)
		require.NoError(t, err)
		assert.True(t, res.NoOp())
		assert.Empty(t, remote.Calls())
	})

	t.Run("toggle back is a no-op", func(t *testing.T) {
		rec, remote, _, _ := loaded(t, 2, "s1")
		require.NoError(t, rec.Toggle(ctx, day, "s1", StatusAbsent))
		require.NoError(t, rec.Toggle(ctx, day, "s1", StatusPresent))

		res, err := rec.Save(ctx, day)
		require.NoError(t, err)
		assert.True(t, res.NoOp())
		assert.Empty(t, remote.Calls())
		assert.Empty(t, rec.Pending())
	})

	t.Run("outright failure leaves state untouched", func(t *testing.T) {
		rec, remote, _, _ := loaded(t, 3, "s1")
		require.NoError(t, rec.Toggle(ctx, day, "s1", StatusAbsent))
		require.NoError(t, rec.Toggle(ctx, day, "s2", StatusPresent))
		remote.FailMark = true

		_, err := rec.Save(ctx, day)
		require.Error(t, err)
		assert.False(t, IsPartialSave(err))
		assert.Empty(t, remote.Calls("RemovePresent"))

		r, _ := rec.Record(day)
		assert.Equal(t, []string{"s1"}, r.RemotePresent)
		assert.Equal(t, []string{"s2"}, r.PresentIDs())
		assert.Equal(t, []string{day}, rec.Pending())
	})

	t.Run("partial failure then retry", func(t *testing.T) {
		rec, remote, drafts, ev := loaded(t, 4, "s1", "s2", "s3")
		require.NoError(t, rec.Toggle(ctx, day, "s1", StatusAbsent))
		require.NoError(t, rec.Toggle(ctx, day, "s4", StatusPresent))
		remote.FailRemove = true

		res, err := rec.Save(ctx, day)
		require.Error(t, err)
		require.True(t, IsPartialSave(err))
		var pe *PartialSaveError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, []string{"s4"}, pe.Applied)
		assert.Equal(t, []string{"s1"}, pe.Failed)
		assert.Equal(t, []string{"s4"}, res.Added)
		assert.Equal(t, []string{day}, rec.Pending())

		saved, err := drafts.ListDrafts(ctx, cohort)
		require.NoError(t, err)
		require.Len(t, saved, 1)
		assert.ElementsMatch(t, []string{"s1", "s2", "s3", "s4"}, saved[0].RemotePresent)

		remote.FailRemove = false
		remote.ResetCalls()
		res, err = rec.Save(ctx, day)
		require.NoError(t, err)
		assert.Empty(t, res.Added)
		assert.Equal(t, []string{"s1"}, res.Removed)
		assert.Empty(t, remote.Calls("MarkPresent"))
		assert.Equal(t, []string{"s2", "s3", "s4"}, remote.Present(ev.ID))
		assert.Empty(t, rec.Pending())
	})

	t.Run("refresh failure falls back to the sent diff", func(t *testing.T) {
		rec, remote, _, _ := loaded(t, 3, "s1")
		require.NoError(t, rec.Toggle(ctx, day, "s2", StatusPresent))
		remote.FailGet = true

		_, err := rec.Save(ctx, day)
		require.NoError(t, err)
		r, _ := rec.Record(day)
		assert.ElementsMatch(t, []string{"s1", "s2"}, r.RemotePresent)

		remote.ResetCalls()
		res, err := rec.Save(ctx, day)
		require.NoError(t, err)
		assert.True(t, res.NoOp())
	})

	t.Run("concurrent saves are serialised", func(t *testing.T) {
		rec, remote, _, _ := loaded(t, 3)
		require.NoError(t, rec.SelectAll(ctx, day))

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := rec.Save(ctx, day)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.Len(t, remote.Calls("MarkPresent"), 1)
	})
}

func TestReconciler_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("local record", func(t *testing.T) {
		rec, _, _ := setup(t, 2)
		assert.Equal(t, ErrNoRecord, rec.Delete(ctx, day))
		_, err := rec.CreateRecord(ctx, day)
		require.NoError(t, err)
		assert.Equal(t, ErrNotSynced, rec.Delete(ctx, day))
	})

	t.Run("synced record", func(t *testing.T) {
		rec, remote, drafts, ev := loaded(t, 2, "s1")
		require.NoError(t, rec.Toggle(ctx, day, "s2", StatusPresent))

		require.NoError(t, rec.Delete(ctx, day))
		assert.False(t, rec.HasRecord(day))
		assert.Empty(t, rec.Pending())
		assert.Nil(t, remote.Present(ev.ID))
		assert.Equal(t, Stats{Absent: 2, Total: 2}, rec.Stats(day))

		saved, err := drafts.ListDrafts(ctx, cohort)
		require.NoError(t, err)
		assert.Empty(t, saved)

		// behaves as if no record ever existed
		_, err = rec.CreateRecord(ctx, day)
		assert.NoError(t, err)
	})

	t.Run("remote failure", func(t *testing.T) {
		rec, remote, _, _ := loaded(t, 2, "s1")
		remote.FailDelete = true
		assert.Error(t, rec.Delete(ctx, day))
		assert.True(t, rec.HasRecord(day))
	})
}

func TestReconciler_SetRoster(t *testing.T) {
	ctx := context.Background()
	rec, _, _, _ := loaded(t, 3, "s1", "s3")
	_, err := rec.CreateRecord(ctx, "2024-03-05")
	require.NoError(t, err)
	require.NoError(t, rec.Toggle(ctx, "2024-03-05", "s2", StatusPresent))

	rec.SetRoster([]classroom.Student{
		testutil.Student("s1", "Ana"),
		testutil.Student("s2", "Beto"),
		testutil.Student("s4", "Dora"),
	})

	first := statuses(rec.Students(day))
	assert.Equal(t, map[string]Status{"s1": StatusPresent, "s2": StatusAbsent, "s4": StatusAbsent}, first)
	second := statuses(rec.Students("2024-03-05"))
	assert.Equal(t, map[string]Status{"s1": StatusAbsent, "s2": StatusPresent, "s4": StatusAbsent}, second)
	assert.Equal(t, "Ana", rec.Students(day)[0].Name)
	assert.Len(t, rec.Records(), 2)
}

func TestReconciler_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("hydrates events", func(t *testing.T) {
		rec, remote, _ := setup(t, 3)
		ev := remote.AddEvent(cohort, day, "s2")
		remote.AddEvent("other", day, "s1")
		remote.FailSync = true

		require.NoError(t, rec.Load(ctx))
		assert.Len(t, remote.Calls("SyncCohort"), 1)

		records := rec.Records()
		require.Len(t, records, 1)
		r := records[0]
		assert.Equal(t, null.StringFrom(ev.ID), r.EventID)
		assert.Equal(t, map[string]Status{"s1": StatusAbsent, "s2": StatusPresent, "s3": StatusAbsent}, statuses(r.Entries))
		assert.Empty(t, rec.Pending())
	})

	t.Run("list failure", func(t *testing.T) {
		rec, remote, _ := setup(t, 3)
		remote.FailList = true
		assert.Equal(t, testutil.ErrRemote, errors.Cause(rec.Load(ctx)))
	})

	t.Run("restores drafts", func(t *testing.T) {
		remote := testutil.NewFakeRemote()
		drafts := inmemdb.NewDraftRepository(inmemdb.Open())
		remote.AddEvent(cohort, day, "s1")

		first := NewReconciler(cohort, remote, drafts, nil)
		first.SetRoster(testutil.Roster(3))
		require.NoError(t, first.Load(ctx))
		require.NoError(t, first.Toggle(ctx, day, "s3", StatusPresent))
		_, err := first.CreateRecord(ctx, "2024-03-06")
		require.NoError(t, err)

		// a new process picks up where the first left off
		second := NewReconciler(cohort, remote, drafts, nil)
		second.SetRoster(testutil.Roster(3))
		require.NoError(t, second.Load(ctx))

		assert.Equal(t, []string{day, "2024-03-06"}, second.Pending())
		r, ok := second.Record(day)
		require.True(t, ok)
		assert.ElementsMatch(t, []string{"s1", "s3"}, r.PresentIDs())
		assert.Equal(t, []string{"s1"}, r.RemotePresent)

		local, ok := second.Record("2024-03-06")
		require.True(t, ok)
		assert.False(t, local.Synced())
	})

	t.Run("drops drafts of deleted events", func(t *testing.T) {
		remote := testutil.NewFakeRemote()
		drafts := inmemdb.NewDraftRepository(inmemdb.Open())
		ev := remote.AddEvent(cohort, day, "s1")

		first := NewReconciler(cohort, remote, drafts, nil)
		first.SetRoster(testutil.Roster(2))
		require.NoError(t, first.Load(ctx))
		require.NoError(t, first.Toggle(ctx, day, "s2", StatusPresent))

		require.NoError(t, remote.DeleteEvent(ctx, ev.ID))

		second := NewReconciler(cohort, remote, drafts, nil)
		second.SetRoster(testutil.Roster(2))
		require.NoError(t, second.Load(ctx))
		assert.False(t, second.HasRecord(day))
		assert.Empty(t, second.Pending())

		saved, err := drafts.ListDrafts(ctx, cohort)
		require.NoError(t, err)
		assert.Empty(t, saved)
	})

	t.Run("stale response is discarded", func(t *testing.T) {
		rec, remote, _ := setup(t, 2)
		remote.AddEvent(cohort, day, "s1")
		remote.BeforeList = func() { rec.SetRoster(testutil.Roster(3)) }

		assert.Equal(t, ErrStale, rec.Load(ctx))
		assert.False(t, rec.HasRecord(day))

		remote.BeforeList = nil
		require.NoError(t, rec.Load(ctx))
		assert.Len(t, rec.Students(day), 3)
	})
}

func TestReconciler_Stats(t *testing.T) {
	rec, _, _, _ := loaded(t, 3, "s1")

	assert.Equal(t, Stats{Present: 1, Absent: 2, Total: 3, Percentage: 33}, rec.Stats(day))
	assert.Equal(t, Stats{Absent: 3, Total: 3}, rec.Stats("2024-03-05"), "no record counts everyone absent")

	empty, _, _ := setup(t, 0)
	assert.Equal(t, Stats{}, empty.Stats(day))
}

func TestReconciler_Calendar(t *testing.T) {
	rec, remote, _ := setup(t, 2)
	remote.AddEvent(cohort, "2024-03-01", "s1")
	remote.AddEvent(cohort, "2024-03-02", "s1", "s2")
	remote.AddEvent(cohort, "2024-03-03")
	remote.AddEvent(cohort, "2024-04-01", "s1", "s2")
	require.NoError(t, rec.Load(context.Background()))

	cal := rec.Calendar()
	require.Len(t, cal, 4)
	assert.Equal(t, 50, cal["2024-03-01"].Percentage)
	assert.Equal(t, 100, cal["2024-03-02"].Percentage)
	assert.Equal(t, 0, cal["2024-03-03"].Percentage)

	assert.Equal(t, 50, rec.MonthlyAverage(2024, time.March))
	assert.Equal(t, 100, rec.MonthlyAverage(2024, time.April))
	assert.Equal(t, 0, rec.MonthlyAverage(2024, time.May))
	assert.Equal(t, 75, rec.DaysWithAttendance())
}

func TestMonthlyAverage_rounding(t *testing.T) {
	days := map[string]Stats{
		"2024-05-01": {Percentage: 33},
		"2024-05-02": {Percentage: 34},
		"bad-key":    {Percentage: 100},
	}
	assert.Equal(t, 34, MonthlyAverage(days, 2024, time.May))
	assert.Equal(t, 0, DaysWithAttendance(nil))
}

func TestWriteCSV(t *testing.T) {
	r := Record{
		Date: day,
		Entries: []Entry{
			{StudentID: "s1", Name: "Ana", Email: "ana@test.test", Status: StatusPresent},
			{StudentID: "s2", Name: `Beto "B"`, Email: "beto@test.test", Status: StatusAbsent},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, "Math, 1A", r))
	want := `"Cohorte","Fecha","Nombre","Email","Estado"
"Math, 1A","04/03/2024","Ana","ana@test.test","Presente"
"Math, 1A","04/03/2024","Beto ""B""","beto@test.test","Ausente"
`
	assert.Equal(t, want, buf.String())

	buf.Reset()
	require.NoError(t, WriteCSV(&buf, "", Record{Date: day}))
	assert.Equal(t, "\"Cohorte\",\"Fecha\",\"Nombre\",\"Email\",\"Estado\"\n", buf.String())

	assert.Equal(t, "asistencia_2024-03-04.csv", CSVFilename(day))
}
