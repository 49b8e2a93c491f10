package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/classboard/core"
	"github.com/trezcool/classboard/core/attendance"
	"github.com/trezcool/classboard/core/classroom"
)

type loadCall struct {
	done chan struct{}
	snap classroom.Snapshot
	err  error
}

// attendanceCall is the first load of a course's reconciler.
// It stays in the workspace once it succeeds.
type attendanceCall struct {
	done chan struct{}
	err  error
}

// workspace caches what one session has fetched.
// Snapshots are replaced wholesale; reconcilers live as long as the session.
type workspace struct {
	provider classroom.Provider
	remote   attendance.Remote
	drafts   attendance.DraftStore
	loader   *classroom.Loader
	logger   core.Logger

	mu          sync.Mutex
	courses     []classroom.Course
	snapshots   map[string]classroom.Snapshot
	inflight    map[string]*loadCall
	reconcilers map[string]*attendance.Reconciler
	attendance  map[string]*attendanceCall
}

func newWorkspace(provider classroom.Provider, remote attendance.Remote, drafts attendance.DraftStore, concurrency int, logger core.Logger) *workspace {
	return &workspace{
		provider:    provider,
		remote:      remote,
		drafts:      drafts,
		loader:      classroom.NewLoader(provider, concurrency),
		logger:      logger,
		snapshots:   make(map[string]classroom.Snapshot),
		inflight:    make(map[string]*loadCall),
		reconcilers: make(map[string]*attendance.Reconciler),
		attendance:  make(map[string]*attendanceCall),
	}
}

func (ws *workspace) listCourses(ctx context.Context) ([]classroom.Course, error) {
	ws.mu.Lock()
	courses := ws.courses
	ws.mu.Unlock()
	if courses != nil {
		return courses, nil
	}

	courses, err := ws.provider.ListCourses(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing courses")
	}
	if courses == nil {
		courses = []classroom.Course{}
	}
	ws.mu.Lock()
	ws.courses = courses
	ws.mu.Unlock()
	return courses, nil
}

// selectCourse aborts loads of other courses.
func (ws *workspace) selectCourse(courseID string) {
	ws.loader.CancelExcept(courseID)
}

// snapshot returns the cached snapshot of courseID or loads it.
// Concurrent callers for the same course share one load.
func (ws *workspace) snapshot(ctx context.Context, courseID string, refresh bool) (classroom.Snapshot, error) {
	ws.mu.Lock()
	if snap, ok := ws.snapshots[courseID]; ok && !refresh {
		ws.mu.Unlock()
		return snap, nil
	}
	if call, ok := ws.inflight[courseID]; ok {
		ws.mu.Unlock()
		return call.wait(ctx)
	}
	call := &loadCall{done: make(chan struct{})}
	ws.inflight[courseID] = call
	ws.mu.Unlock()

	call.snap, call.err = ws.loader.Load(context.WithoutCancel(ctx), courseID)

	ws.mu.Lock()
	delete(ws.inflight, courseID)
	if call.err == nil {
		ws.snapshots[courseID] = call.snap
	}
	rec := ws.reconcilers[courseID]
	ws.mu.Unlock()
	close(call.done)

	if call.err == nil && rec != nil {
		rec.SetRoster(call.snap.Roster)
	}
	return call.wait(ctx)
}

func (c *loadCall) wait(ctx context.Context) (classroom.Snapshot, error) {
	select {
	case <-c.done:
		return c.snap, c.err
	case <-ctx.Done():
		return classroom.Snapshot{}, ctx.Err()
	}
}

// reconciler returns the attendance reconciler of courseID, loading its
// roster and remote events on first use. Concurrent first callers share one load.
func (ws *workspace) reconciler(ctx context.Context, courseID string) (*attendance.Reconciler, error) {
	ws.mu.Lock()
	rec, ok := ws.reconcilers[courseID]
	if !ok {
		rec = attendance.NewReconciler(courseID, ws.remote, ws.drafts, ws.logger)
		ws.reconcilers[courseID] = rec
	}
	call, started := ws.attendance[courseID]
	if !started {
		call = &attendanceCall{done: make(chan struct{})}
		ws.attendance[courseID] = call
	}
	ws.mu.Unlock()

	if !started {
		call.err = ws.loadAttendance(context.WithoutCancel(ctx), courseID, rec)
		if call.err != nil {
			ws.mu.Lock()
			delete(ws.attendance, courseID)
			ws.mu.Unlock()
		}
		close(call.done)
	}

	select {
	case <-call.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if call.err != nil {
		return nil, call.err
	}
	return rec, nil
}

func (ws *workspace) loadAttendance(ctx context.Context, courseID string, rec *attendance.Reconciler) error {
	snap, err := ws.snapshot(ctx, courseID, false)
	if err != nil {
		return err
	}
	rec.SetRoster(snap.Roster)

	err = rec.Load(ctx)
	if errors.Cause(err) == attendance.ErrStale {
		// the roster was refreshed meanwhile
		err = rec.Load(ctx)
	}
	return errors.Wrap(err, "loading attendance")
}

func (ws *workspace) close() {
	ws.loader.CancelAll()
}
