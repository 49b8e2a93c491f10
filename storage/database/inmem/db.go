// Package inmemdb keeps repositories in process memory.
// Nothing survives a restart.
package inmemdb

import (
	"sync"

	"github.com/trezcool/classboard/core/attendance"
	"github.com/trezcool/classboard/core/session"
)

type (
	DB struct {
		draft   *draftTable
		session *sessionTable
	}

	draftTable struct {
		sync.RWMutex
		table map[draftKey]attendance.Draft
	}

	draftKey struct {
		cohortID string
		date     string
	}

	sessionTable struct {
		sync.RWMutex
		table map[string]session.Session
	}
)

func Open() *DB {
	return &DB{
		draft:   &draftTable{table: make(map[draftKey]attendance.Draft)},
		session: &sessionTable{table: make(map[string]session.Session)},
	}
}
