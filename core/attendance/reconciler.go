package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classboard/core"
	"github.com/trezcool/classboard/core/classroom"
)

type (
	// Remote is the attendance-event backend.
	Remote interface {
		CreateEvent(ctx context.Context, cohortID, date string, present []string) (Event, error)
		ListEvents(ctx context.Context, cohortID string) ([]Event, error)
		MarkPresent(ctx context.Context, eventID string, ids []string) error
		RemovePresent(ctx context.Context, eventID string, ids []string) error
		GetEvent(ctx context.Context, eventID string) (Event, error)
		DeleteEvent(ctx context.Context, eventID string) error
		SyncCohort(ctx context.Context, cohortID string) error
	}

	// DraftStore persists records with unsaved local changes.
	DraftStore interface {
		PutDraft(ctx context.Context, draft Draft) error
		DeleteDraft(ctx context.Context, cohortID, date string) error
		ListDrafts(ctx context.Context, cohortID string) ([]Draft, error)
	}
)

var nowFunc = time.Now

// Reconciler holds the attendance records of one cohort and keeps them in sync
// with the Remote. Local edits never block on the network. Network operations
// on the same date are serialised.
type Reconciler struct {
	cohortID string
	remote   Remote
	drafts   DraftStore
	logger   core.Logger

	mu       sync.RWMutex
	gen      uint64 // bumped by Load and SetRoster
	roster   []classroom.Student
	records  map[string]*Record
	versions map[string]uint64 // bumped by every local edit
	pending  map[string]bool

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewReconciler returns an empty Reconciler. drafts may be nil.
func NewReconciler(cohortID string, remote Remote, drafts DraftStore, logger core.Logger) *Reconciler {
	if logger == nil {
		logger = core.NopLogger()
	}
	return &Reconciler{
		cohortID: cohortID,
		remote:   remote,
		drafts:   drafts,
		logger:   logger,
		records:  make(map[string]*Record),
		versions: make(map[string]uint64),
		pending:  make(map[string]bool),
		locks:    make(map[string]*sync.Mutex),
	}
}

func (r *Reconciler) CohortID() string { return r.cohortID }

func (r *Reconciler) lockDate(date string) func() {
	r.locksMu.Lock()
	l, ok := r.locks[date]
	if !ok {
		l = new(sync.Mutex)
		r.locks[date] = l
	}
	r.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}

func validateDate(date string) error {
	if _, err := core.ParseDateKey(date); err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "date", Error: "date must be formatted as YYYY-MM-DD"})
	}
	return nil
}

func (r *Reconciler) putDraft(ctx context.Context, rec Record) {
	if r.drafts == nil {
		return
	}
	if err := r.drafts.PutDraft(ctx, draftOf(r.cohortID, rec)); err != nil {
		r.logger.Warn("saving attendance draft", errors.Wrapf(err, "cohort %s date %s", r.cohortID, rec.Date))
	}
}

func (r *Reconciler) deleteDraft(ctx context.Context, date string) {
	if r.drafts == nil {
		return
	}
	if err := r.drafts.DeleteDraft(ctx, r.cohortID, date); err != nil {
		r.logger.Warn("deleting attendance draft", errors.Wrapf(err, "cohort %s date %s", r.cohortID, date))
	}
}

// Load replaces the records with the cohort's remote events, then restores
// persisted drafts on top of them. Records that only exist locally are kept.
// It returns ErrStale if another Load or SetRoster started meanwhile.
func (r *Reconciler) Load(ctx context.Context) error {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.mu.Unlock()

	if err := r.remote.SyncCohort(ctx, r.cohortID); err != nil {
		r.logger.Warn("syncing cohort", errors.Wrap(err, r.cohortID))
	}

	events, err := r.remote.ListEvents(ctx, r.cohortID)
	if err != nil {
		return errors.Wrap(err, "listing events")
	}

	var drafts []Draft
	if r.drafts != nil {
		if drafts, err = r.drafts.ListDrafts(ctx, r.cohortID); err != nil {
			r.logger.Warn("listing attendance drafts", errors.Wrap(err, r.cohortID))
		}
	}

	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return ErrStale
	}

	records := make(map[string]*Record, len(events))
	for _, ev := range events {
		if prev, ok := records[ev.Date]; ok && prev.UpdatedAt.After(ev.UpdatedAt) {
			continue
		}
		records[ev.Date] = &Record{
			ID:            ev.ID,
			Date:          ev.Date,
			Entries:       entriesFromPresent(r.roster, ev.Present),
			EventID:       null.StringFrom(ev.ID),
			RemotePresent: append([]string(nil), ev.Present...),
			CreatedAt:     ev.CreatedAt,
			UpdatedAt:     ev.UpdatedAt,
		}
	}
	for date, rec := range r.records {
		if _, ok := records[date]; !ok && !rec.Synced() {
			records[date] = rec
		}
	}

	pending := make(map[string]bool)
	for date := range r.pending {
		if rec, ok := records[date]; ok && !rec.Synced() {
			pending[date] = true
		}
	}

	var stale []string
	for _, d := range drafts {
		rec, ok := records[d.Date]
		switch {
		case !d.EventID.Valid && !ok:
			rec = &Record{ID: d.RecordID, Date: d.Date, CreatedAt: d.CreatedAt}
			records[d.Date] = rec
		case !ok, d.EventID != rec.EventID:
			// the event was deleted or replaced remotely
			stale = append(stale, d.Date)
			continue
		}
		rec.Entries = Rehydrate(d.Entries, r.roster)
		rec.UpdatedAt = d.UpdatedAt
		pending[d.Date] = true
	}

	for date := range records {
		r.versions[date]++
	}
	r.records = records
	r.pending = pending
	r.mu.Unlock()

	for _, date := range stale {
		r.deleteDraft(ctx, date)
	}
	return nil
}

// SetRoster replaces the roster and remaps every record onto it.
// It invalidates any Load in flight.
func (r *Reconciler) SetRoster(roster []classroom.Student) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gen++
	r.roster = append([]classroom.Student(nil), roster...)
	for _, rec := range r.records {
		rec.Entries = Rehydrate(rec.Entries, r.roster)
	}
}

// CreateRecord adds a local record for date with every roster student absent.
func (r *Reconciler) CreateRecord(ctx context.Context, date string) (Record, error) {
	if err := validateDate(date); err != nil {
		return Record{}, err
	}

	r.mu.Lock()
	if _, ok := r.records[date]; ok {
		r.mu.Unlock()
		return Record{}, ErrRecordExists
	}
	now := nowFunc().UTC()
	rec := &Record{
		ID:        uuid.NewString(),
		Date:      date,
		Entries:   entriesFromPresent(r.roster, nil),
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.records[date] = rec
	r.versions[date]++
	r.pending[date] = true
	out := rec.clone()
	r.mu.Unlock()

	r.putDraft(ctx, out)
	return out, nil
}

// Publish creates the remote event of a local record.
// Publishing a record that already has an event is a no-op.
func (r *Reconciler) Publish(ctx context.Context, date string) (Record, error) {
	defer r.lockDate(date)()
	return r.publish(ctx, date)
}

// CreateAndPublish creates a record and its remote event in one step.
// Nothing is kept locally if the remote call fails.
func (r *Reconciler) CreateAndPublish(ctx context.Context, date string) (Record, error) {
	defer r.lockDate(date)()

	if _, err := r.CreateRecord(ctx, date); err != nil {
		return Record{}, err
	}
	rec, err := r.publish(ctx, date)
	if err != nil {
		r.mu.Lock()
		r.forget(date)
		r.mu.Unlock()
		r.deleteDraft(ctx, date)
		return Record{}, err
	}
	return rec, nil
}

func (r *Reconciler) publish(ctx context.Context, date string) (Record, error) {
	r.mu.RLock()
	rec, ok := r.records[date]
	if !ok {
		r.mu.RUnlock()
		return Record{}, ErrNoRecord
	}
	if rec.Synced() {
		out := rec.clone()
		r.mu.RUnlock()
		return out, nil
	}
	present := rec.PresentIDs()
	version := r.versions[date]
	r.mu.RUnlock()

	ev, err := r.remote.CreateEvent(ctx, r.cohortID, date, present)
	if err != nil {
		return Record{}, errors.Wrap(err, "creating event")
	}

	r.mu.Lock()
	rec, ok = r.records[date]
	if !ok {
		r.mu.Unlock()
		return Record{}, ErrNoRecord
	}
	rec.EventID = null.StringFrom(ev.ID)
	rec.RemotePresent = append([]string(nil), ev.Present...)
	clean := r.versions[date] == version && sameSet(rec.PresentIDs(), rec.RemotePresent)
	if clean {
		delete(r.pending, date)
	}
	out := rec.clone()
	r.mu.Unlock()

	if clean {
		r.deleteDraft(ctx, date)
	} else {
		r.putDraft(ctx, out)
	}
	return out, nil
}

// Toggle sets the status of one student.
func (r *Reconciler) Toggle(ctx context.Context, date, studentID string, status Status) error {
	if !status.Valid() {
		return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "status must be either present or absent"})
	}
	return r.edit(ctx, date, func(rec *Record) error {
		for i := range rec.Entries {
			if rec.Entries[i].StudentID == studentID {
				rec.Entries[i].Status = status
				return nil
			}
		}
		return ErrUnknownStudent
	})
}

// SelectAll marks every student of the record present.
func (r *Reconciler) SelectAll(ctx context.Context, date string) error {
	return r.setAll(ctx, date, StatusPresent)
}

// UnselectAll marks every student of the record absent.
func (r *Reconciler) UnselectAll(ctx context.Context, date string) error {
	return r.setAll(ctx, date, StatusAbsent)
}

func (r *Reconciler) setAll(ctx context.Context, date string, status Status) error {
	return r.edit(ctx, date, func(rec *Record) error {
		for i := range rec.Entries {
			rec.Entries[i].Status = status
		}
		return nil
	})
}

func (r *Reconciler) edit(ctx context.Context, date string, fn func(rec *Record) error) error {
	r.mu.Lock()
	rec, ok := r.records[date]
	if !ok {
		r.mu.Unlock()
		return ErrNoRecord
	}
	if err := fn(rec); err != nil {
		r.mu.Unlock()
		return err
	}
	rec.UpdatedAt = nowFunc().UTC()
	r.versions[date]++
	r.pending[date] = true
	out := rec.clone()
	r.mu.Unlock()

	r.putDraft(ctx, out)
	return nil
}

// Save sends the difference between the local present set and the last
// remote snapshot: one mark call for added ids, one remove call for removed ids.
// When there is no difference no call is made.
//
// If only one of the two calls succeeds, its ids are folded into the snapshot,
// the date stays pending and a *PartialSaveError is returned.
// If the first call fails the record is left untouched.
func (r *Reconciler) Save(ctx context.Context, date string) (SaveResult, error) {
	defer r.lockDate(date)()

	r.mu.RLock()
	rec, ok := r.records[date]
	if !ok {
		r.mu.RUnlock()
		return SaveResult{}, ErrNoRecord
	}
	if !rec.Synced() {
		r.mu.RUnlock()
		return SaveResult{}, ErrNotSynced
	}
	eventID := rec.EventID.String
	snapshot := append([]string(nil), rec.RemotePresent...)
	added, removed := Diff(rec.PresentIDs(), snapshot)
	version := r.versions[date]
	r.mu.RUnlock()

	res := SaveResult{Added: added, Removed: removed}
	if res.NoOp() {
		r.settle(ctx, date, version, snapshot)
		return res, nil
	}

	if len(added) > 0 {
		if err := r.remote.MarkPresent(ctx, eventID, added); err != nil {
			return SaveResult{}, errors.Wrap(err, "marking present")
		}
	}
	if len(removed) > 0 {
		if err := r.remote.RemovePresent(ctx, eventID, removed); err != nil {
			if len(added) == 0 {
				return SaveResult{}, errors.Wrap(err, "removing present")
			}
			r.foldSnapshot(ctx, date, union(snapshot, added))
			return SaveResult{Added: added}, &PartialSaveError{
				Op:      "remove present",
				Applied: added,
				Failed:  removed,
				Err:     err,
			}
		}
	}

	ev, err := r.remote.GetEvent(ctx, eventID)
	if err != nil {
		r.logger.Warn("refreshing event after save", errors.Wrap(err, eventID))
		ev.Present = subtract(union(snapshot, added), removed)
	}
	r.settle(ctx, date, version, ev.Present)
	return res, nil
}

// settle replaces the remote snapshot and clears the pending flag
// unless the record was edited after version.
func (r *Reconciler) settle(ctx context.Context, date string, version uint64, present []string) {
	r.mu.Lock()
	rec, ok := r.records[date]
	if !ok {
		r.mu.Unlock()
		return
	}
	rec.RemotePresent = append([]string(nil), present...)
	clean := r.versions[date] == version
	if clean {
		delete(r.pending, date)
	}
	out := rec.clone()
	r.mu.Unlock()

	if clean {
		r.deleteDraft(ctx, date)
	} else {
		r.putDraft(ctx, out)
	}
}

func (r *Reconciler) foldSnapshot(ctx context.Context, date string, present []string) {
	r.mu.Lock()
	rec, ok := r.records[date]
	if !ok {
		r.mu.Unlock()
		return
	}
	rec.RemotePresent = present
	out := rec.clone()
	r.mu.Unlock()

	r.putDraft(ctx, out)
}

// Delete removes the remote event, then the local record and its draft.
func (r *Reconciler) Delete(ctx context.Context, date string) error {
	defer r.lockDate(date)()

	r.mu.RLock()
	rec, ok := r.records[date]
	if !ok {
		r.mu.RUnlock()
		return ErrNoRecord
	}
	if !rec.Synced() {
		r.mu.RUnlock()
		return ErrNotSynced
	}
	eventID := rec.EventID.String
	r.mu.RUnlock()

	if err := r.remote.DeleteEvent(ctx, eventID); err != nil {
		return errors.Wrap(err, "deleting event")
	}

	r.mu.Lock()
	r.forget(date)
	r.mu.Unlock()
	r.deleteDraft(ctx, date)
	return nil
}

// forget must be called with mu held.
func (r *Reconciler) forget(date string) {
	delete(r.records, date)
	delete(r.pending, date)
	r.versions[date]++
}

func (r *Reconciler) Roster() []classroom.Student {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]classroom.Student(nil), r.roster...)
}

func (r *Reconciler) Record(date string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[date]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

func (r *Reconciler) HasRecord(date string) bool {
	_, ok := r.Record(date)
	return ok
}

// Records returns every record sorted by date.
func (r *Reconciler) Records() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Pending returns the sorted dates with unsaved local changes.
func (r *Reconciler) Pending() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dates := make([]string, 0, len(r.pending))
	for date, ok := range r.pending {
		if ok {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)
	return dates
}

func (r *Reconciler) IsPending(date string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pending[date]
}

// Students returns the entries of date, or the roster as absent when there is no record.
func (r *Reconciler) Students(date string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if rec, ok := r.records[date]; ok {
		return append([]Entry(nil), rec.Entries...)
	}
	return entriesFromPresent(r.roster, nil)
}

func (r *Reconciler) Stats(date string) Stats {
	return Record{Entries: r.Students(date)}.Stats()
}

func union(a, b []string) []string {
	set := toSet(a)
	out := append([]string(nil), a...)
	for _, id := range b {
		if !set[id] {
			set[id] = true
			out = append(out, id)
		}
	}
	return out
}

func subtract(a, b []string) []string {
	set := toSet(b)
	out := make([]string, 0, len(a))
	for _, id := range a {
		if !set[id] {
			out = append(out, id)
		}
	}
	return out
}
