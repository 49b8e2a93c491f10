package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classboard/core"
	"github.com/trezcool/classboard/core/attendance"
)

type draftRow struct {
	CohortID      string         `db:"cohort_id"`
	DateKey       time.Time      `db:"date_key"`
	RecordID      string         `db:"record_id"`
	EventID       null.String    `db:"event_id"`
	Entries       types.JSONText `db:"entries"`
	RemotePresent types.JSONText `db:"remote_present"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

type draftRepository struct {
	db *sqlx.DB
}

var _ attendance.DraftStore = (*draftRepository)(nil) // interface compliance check

func NewDraftRepository(db *sqlx.DB) *draftRepository {
	return &draftRepository{db: db}
}

func (repo draftRepository) toRow(d attendance.Draft) (draftRow, error) {
	date, err := core.ParseDateKey(d.Date)
	if err != nil {
		return draftRow{}, errors.Wrapf(err, "parsing draft date %q", d.Date)
	}
	if d.Entries == nil {
		d.Entries = []attendance.Entry{}
	}
	if d.RemotePresent == nil {
		d.RemotePresent = []string{}
	}
	entries, err := json.Marshal(d.Entries)
	if err != nil {
		return draftRow{}, errors.Wrap(err, "encoding draft entries")
	}
	present, err := json.Marshal(d.RemotePresent)
	if err != nil {
		return draftRow{}, errors.Wrap(err, "encoding draft snapshot")
	}
	return draftRow{
		CohortID:      d.CohortID,
		DateKey:       date,
		RecordID:      d.RecordID,
		EventID:       d.EventID,
		Entries:       entries,
		RemotePresent: present,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}, nil
}

func (repo draftRepository) fromRow(row draftRow) (attendance.Draft, error) {
	d := attendance.Draft{
		CohortID:  row.CohortID,
		Date:      core.DateKey(row.DateKey),
		RecordID:  row.RecordID,
		EventID:   row.EventID,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
	if err := row.Entries.Unmarshal(&d.Entries); err != nil {
		return attendance.Draft{}, errors.Wrap(err, "decoding draft entries")
	}
	if err := row.RemotePresent.Unmarshal(&d.RemotePresent); err != nil {
		return attendance.Draft{}, errors.Wrap(err, "decoding draft snapshot")
	}
	return d, nil
}

const upsertDraft = `
INSERT INTO attendance_draft (cohort_id, date_key, record_id, event_id, entries, remote_present, created_at, updated_at)
VALUES (:cohort_id, :date_key, :record_id, :event_id, :entries, :remote_present, :created_at, :updated_at)
ON CONFLICT (cohort_id, date_key) DO UPDATE SET
    record_id = EXCLUDED.record_id,
    event_id = EXCLUDED.event_id,
    entries = EXCLUDED.entries,
    remote_present = EXCLUDED.remote_present,
    updated_at = EXCLUDED.updated_at`

func (repo draftRepository) PutDraft(ctx context.Context, d attendance.Draft) error {
	row, err := repo.toRow(d)
	if err != nil {
		return err
	}
	_, err = repo.db.NamedExecContext(ctx, upsertDraft, row)
	return errors.Wrap(err, "upserting draft")
}

func (repo draftRepository) DeleteDraft(ctx context.Context, cohortID, date string) error {
	key, err := core.ParseDateKey(date)
	if err != nil {
		return errors.Wrapf(err, "parsing draft date %q", date)
	}
	_, err = repo.db.ExecContext(ctx, "DELETE FROM attendance_draft WHERE cohort_id = $1 AND date_key = $2", cohortID, key)
	return errors.Wrap(err, "deleting draft")
}

func (repo draftRepository) ListDrafts(ctx context.Context, cohortID string) ([]attendance.Draft, error) {
	var rows []draftRow
	err := repo.db.SelectContext(ctx, &rows, "SELECT * FROM attendance_draft WHERE cohort_id = $1 ORDER BY date_key", cohortID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting drafts")
	}

	drafts := make([]attendance.Draft, 0, len(rows))
	for _, row := range rows {
		d, err := repo.fromRow(row)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}
