package inmemdb

import (
	"context"
	"time"

	"github.com/trezcool/classboard/core/session"
)

type sessionRepository struct {
	db *sessionTable
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) *sessionRepository {
	return &sessionRepository{db: db.session}
}

func (repo *sessionRepository) CreateSession(_ context.Context, s session.Session) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[s.ID] = s
	return nil
}

func (repo *sessionRepository) GetSession(_ context.Context, id string) (session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	s, ok := repo.db.table[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	return s, nil
}

func (repo *sessionRepository) UpdateSession(_ context.Context, s session.Session) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[s.ID]; !ok {
		return session.ErrNotFound
	}
	repo.db.table[s.ID] = s
	return nil
}

func (repo *sessionRepository) DeleteSession(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.table, id)
	return nil
}

func (repo *sessionRepository) DeleteExpiredSessions(_ context.Context, now time.Time) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var n int
	for id, s := range repo.db.table {
		if s.Expired(now) {
			delete(repo.db.table, id)
			n++
		}
	}
	return n, nil
}
