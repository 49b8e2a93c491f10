package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classboard/core/attendance"
)

// TestDraftStore runs the behaviour every attendance.DraftStore must have.
func TestDraftStore(t *testing.T, store attendance.DraftStore) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	draft := func(cohortID, date string, present ...string) attendance.Draft {
		entries := []attendance.Entry{
			{StudentID: "s1", Name: "Student 1", Email: "s1@test.test", Status: attendance.StatusAbsent},
			{StudentID: "s2", Name: "Student 2", Email: "s2@test.test", Status: attendance.StatusAbsent},
		}
		for i := range entries {
			for _, id := range present {
				if entries[i].StudentID == id {
					entries[i].Status = attendance.StatusPresent
				}
			}
		}
		return attendance.Draft{
			CohortID:  cohortID,
			Date:      date,
			RecordID:  "r-" + cohortID + "-" + date,
			Entries:   entries,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	t.Run("put and list", func(t *testing.T) {
		require.NoError(t, store.PutDraft(ctx, draft("c1", "2024-03-06", "s1")))
		require.NoError(t, store.PutDraft(ctx, draft("c1", "2024-03-05")))
		require.NoError(t, store.PutDraft(ctx, draft("c2", "2024-03-05")))

		drafts, err := store.ListDrafts(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, drafts, 2)
		assert.Equal(t, "2024-03-05", drafts[0].Date)
		assert.Equal(t, "2024-03-06", drafts[1].Date)
		assert.Equal(t, attendance.StatusPresent, drafts[1].Entries[0].Status)
		assert.False(t, drafts[1].EventID.Valid)
		assert.True(t, drafts[1].UpdatedAt.Equal(now))
	})

	t.Run("put replaces", func(t *testing.T) {
		d := draft("c1", "2024-03-06", "s1", "s2")
		d.EventID = null.StringFrom("ev1")
		d.RemotePresent = []string{"s1"}
		require.NoError(t, store.PutDraft(ctx, d))

		drafts, err := store.ListDrafts(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, drafts, 2)
		assert.Equal(t, "ev1", drafts[1].EventID.String)
		assert.Equal(t, []string{"s1"}, drafts[1].RemotePresent)
		assert.Equal(t, attendance.StatusPresent, drafts[1].Entries[1].Status)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.DeleteDraft(ctx, "c1", "2024-03-05"))
		require.NoError(t, store.DeleteDraft(ctx, "c1", "2024-01-01")) // missing is fine

		drafts, err := store.ListDrafts(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, drafts, 1)
		assert.Equal(t, "2024-03-06", drafts[0].Date)
	})

	t.Run("unknown cohort", func(t *testing.T) {
		drafts, err := store.ListDrafts(ctx, "nope")
		require.NoError(t, err)
		assert.Empty(t, drafts)
	})
}
