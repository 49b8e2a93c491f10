package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/classboard/core/attendance"
)

type draftRepository struct {
	db *draftTable
}

var _ attendance.DraftStore = (*draftRepository)(nil) // interface compliance check

func NewDraftRepository(db *DB) *draftRepository {
	return &draftRepository{db: db.draft}
}

func copyDraft(d attendance.Draft) attendance.Draft {
	d.Entries = append([]attendance.Entry(nil), d.Entries...)
	d.RemotePresent = append([]string(nil), d.RemotePresent...)
	return d
}

func (repo *draftRepository) PutDraft(_ context.Context, d attendance.Draft) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := draftKey{cohortID: d.CohortID, date: d.Date}
	if prev, ok := repo.db.table[key]; ok {
		d.CreatedAt = prev.CreatedAt
	}
	repo.db.table[key] = copyDraft(d)
	return nil
}

func (repo *draftRepository) DeleteDraft(_ context.Context, cohortID, date string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.table, draftKey{cohortID: cohortID, date: date})
	return nil
}

func (repo *draftRepository) ListDrafts(_ context.Context, cohortID string) ([]attendance.Draft, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	drafts := make([]attendance.Draft, 0)
	for key, d := range repo.db.table {
		if key.cohortID == cohortID {
			drafts = append(drafts, copyDraft(d))
		}
	}
	sort.Slice(drafts, func(i, j int) bool { return drafts[i].Date < drafts[j].Date })
	return drafts, nil
}
