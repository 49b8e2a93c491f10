package classroom

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Loader fetches course Snapshots. Starting a Load of a course cancels the
// Load of that same course in flight, and a superseded Load returns ErrStale
// instead of its data. Loads of different courses do not interfere.
type Loader struct {
	provider    Provider
	concurrency int

	mu    sync.Mutex
	loads map[string]*courseLoad
}

type courseLoad struct {
	gen    uint64
	cancel context.CancelFunc
}

func NewLoader(provider Provider, concurrency int) *Loader {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Loader{
		provider:    provider,
		concurrency: concurrency,
		loads:       make(map[string]*courseLoad),
	}
}

func (l *Loader) begin(ctx context.Context, courseID string) (context.Context, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cl, ok := l.loads[courseID]
	if !ok {
		cl = &courseLoad{}
		l.loads[courseID] = cl
	}
	if cl.cancel != nil {
		cl.cancel()
	}
	cl.gen++
	ctx, cl.cancel = context.WithCancel(ctx)
	return ctx, cl.gen
}

// end reports whether gen is still the latest Load of courseID and releases it.
func (l *Loader) end(courseID string, gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cl, ok := l.loads[courseID]
	if !ok || cl.gen != gen {
		return false
	}
	cl.cancel()
	cl.cancel = nil
	return true
}

func (l *Loader) cancelLocked(courseID string) {
	if cl, ok := l.loads[courseID]; ok {
		if cl.cancel != nil {
			cl.cancel()
			cl.cancel = nil
		}
		cl.gen++
	}
}

// Cancel aborts the Load of courseID in flight, if any.
func (l *Loader) Cancel(courseID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancelLocked(courseID)
}

// CancelExcept aborts the Loads in flight of every course but keep.
func (l *Loader) CancelExcept(keep string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id := range l.loads {
		if id != keep {
			l.cancelLocked(id)
		}
	}
}

// CancelAll aborts every Load in flight.
func (l *Loader) CancelAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id := range l.loads {
		l.cancelLocked(id)
	}
}

// Load fetches the course, its roster, its course work and every assignment's submissions.
func (l *Loader) Load(ctx context.Context, courseID string) (Snapshot, error) {
	ctx, gen := l.begin(ctx, courseID)

	snap, err := l.load(ctx, courseID)
	if !l.end(courseID, gen) {
		return Snapshot{}, ErrStale
	}
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (l *Loader) load(ctx context.Context, courseID string) (Snapshot, error) {
	var snap Snapshot

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Course, err = l.provider.GetCourse(gctx, courseID)
		return errors.Wrap(err, "getting course")
	})
	g.Go(func() (err error) {
		snap.Roster, err = l.provider.ListStudents(gctx, courseID)
		return errors.Wrap(err, "listing students")
	})
	g.Go(func() (err error) {
		snap.Assignments, err = l.provider.ListCourseWork(gctx, courseID)
		return errors.Wrap(err, "listing course work")
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	results := make([][]Submission, len(snap.Assignments))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, a := range snap.Assignments {
		i, a := i, a
		g.Go(func() error {
			subs, err := l.provider.ListSubmissions(gctx, courseID, a.ID)
			if err != nil {
				return errors.Wrapf(err, "listing submissions of %s", a.ID)
			}
			results[i] = subs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	snap.Submissions = make(map[string][]Submission, len(snap.Assignments))
	for i, a := range snap.Assignments {
		snap.Submissions[a.ID] = results[i]
	}
	return snap, nil
}
