package sqlxrepos_test

import (
	"testing"

	sqlxrepos "github.com/trezcool/classboard/storage/database/sqlx"
	"github.com/trezcool/classboard/tests"
)

func TestDraftRepository(t *testing.T) {
	db := testutil.OpenDB(t)
	testutil.ResetDB(t, db)
	t.Cleanup(func() { testutil.ResetDB(t, db) })

	testutil.TestDraftStore(t, sqlxrepos.NewDraftRepository(db))
}
