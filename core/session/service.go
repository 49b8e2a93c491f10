package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/classboard/core"
	"github.com/trezcool/classboard/core/attendance"
	"github.com/trezcool/classboard/core/classroom"
	"github.com/trezcool/classboard/core/grading"
)

var nowFunc = time.Now

// Service owns sessions and the data each one has loaded.
type Service struct {
	repo      Repository
	providers classroom.ProviderFactory
	remotes   RemoteFactory
	drafts    attendance.DraftStore
	engine    *grading.Engine
	logger    core.Logger

	ttl         time.Duration
	concurrency int

	mu         sync.Mutex
	workspaces map[string]*workspace
}

func NewService(
	conf *core.Config,
	repo Repository,
	providers classroom.ProviderFactory,
	remotes RemoteFactory,
	drafts attendance.DraftStore,
	engine *grading.Engine,
	logger core.Logger,
) *Service {
	return &Service{
		repo:        repo,
		providers:   providers,
		remotes:     remotes,
		drafts:      drafts,
		engine:      engine,
		logger:      logger,
		ttl:         conf.Server.SessionIdleTimeout,
		concurrency: conf.Classroom.FetchConcurrency,
		workspaces:  make(map[string]*workspace),
	}
}

func (svc *Service) newWorkspace(ctx context.Context, s Session) (*workspace, error) {
	provider, err := svc.providers(ctx, s.AccessToken)
	if err != nil {
		return nil, errors.Wrap(err, "building classroom provider")
	}
	return newWorkspace(provider, svc.remotes(s.AccessToken), svc.drafts, svc.concurrency, svc.logger), nil
}

func (svc *Service) workspace(ctx context.Context, s Session) (*workspace, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if ws, ok := svc.workspaces[s.ID]; ok {
		return ws, nil
	}
	ws, err := svc.newWorkspace(ctx, s)
	if err != nil {
		return nil, err
	}
	svc.workspaces[s.ID] = ws
	return ws, nil
}

func (svc *Service) dropWorkspace(id string) {
	svc.mu.Lock()
	ws, ok := svc.workspaces[id]
	delete(svc.workspaces, id)
	svc.mu.Unlock()

	if ok {
		ws.close()
	}
}

// Create signs a teacher in with a Google access token.
func (svc *Service) Create(ctx context.Context, accessToken string) (Session, error) {
	accessToken = core.CleanString(accessToken)
	if accessToken == "" {
		return Session{}, core.NewValidationError(ErrMissingToken, core.FieldError{Field: "access_token", Error: "access_token is required"})
	}

	now := nowFunc().UTC()
	s := Session{
		ID:          uuid.NewString(),
		AccessToken: accessToken,
		CreatedAt:   now,
		ExpiresAt:   now.Add(svc.ttl),
	}
	ws, err := svc.newWorkspace(ctx, s)
	if err != nil {
		return Session{}, err
	}
	if s.Teacher, err = ws.provider.Me(ctx); err != nil {
		return Session{}, errors.Wrap(err, "fetching teacher profile")
	}

	if err = svc.repo.CreateSession(ctx, s); err != nil {
		return Session{}, errors.Wrap(err, "creating session")
	}
	svc.mu.Lock()
	svc.workspaces[s.ID] = ws
	svc.mu.Unlock()

	svc.logger.Info("session created", s.Teacher)
	return s, nil
}

// Get returns a live session and extends its expiry.
func (svc *Service) Get(ctx context.Context, id string) (Session, error) {
	s, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	now := nowFunc().UTC()
	if s.Expired(now) {
		svc.dropWorkspace(id)
		if err := svc.repo.DeleteSession(ctx, id); err != nil {
			svc.logger.Warn("deleting expired session", err)
		}
		return Session{}, ErrExpired
	}
	s.ExpiresAt = now.Add(svc.ttl)
	if err = svc.repo.UpdateSession(ctx, s); err != nil {
		return Session{}, errors.Wrap(err, "touching session")
	}
	return s, nil
}

// Delete signs out.
func (svc *Service) Delete(ctx context.Context, id string) error {
	svc.dropWorkspace(id)
	return svc.repo.DeleteSession(ctx, id)
}

// Sweep removes expired sessions and their workspaces.
func (svc *Service) Sweep(ctx context.Context) (int, error) {
	now := nowFunc().UTC()

	svc.mu.Lock()
	ids := make([]string, 0, len(svc.workspaces))
	for id := range svc.workspaces {
		ids = append(ids, id)
	}
	svc.mu.Unlock()

	for _, id := range ids {
		s, err := svc.repo.GetSession(ctx, id)
		if err == ErrNotFound || (err == nil && s.Expired(now)) {
			svc.dropWorkspace(id)
		}
	}
	return svc.repo.DeleteExpiredSessions(ctx, now)
}

func (svc *Service) Courses(ctx context.Context, s Session) ([]classroom.Course, error) {
	ws, err := svc.workspace(ctx, s)
	if err != nil {
		return nil, err
	}
	return ws.listCourses(ctx)
}

// SelectCourse makes courseID the current course and aborts loads of the previous one.
func (svc *Service) SelectCourse(ctx context.Context, s Session, courseID string) (Session, error) {
	courses, err := svc.Courses(ctx, s)
	if err != nil {
		return Session{}, err
	}
	var found bool
	for _, c := range courses {
		if c.ID == courseID {
			found = true
			break
		}
	}
	if !found {
		return Session{}, ErrCourseNotFound
	}

	ws, err := svc.workspace(ctx, s)
	if err != nil {
		return Session{}, err
	}
	ws.selectCourse(courseID)

	s.CourseID = courseID
	if err = svc.repo.UpdateSession(ctx, s); err != nil {
		return Session{}, errors.Wrap(err, "selecting course")
	}
	return s, nil
}

// Snapshot returns the Classroom data of courseID, cached unless refresh is set.
func (svc *Service) Snapshot(ctx context.Context, s Session, courseID string, refresh bool) (classroom.Snapshot, error) {
	ws, err := svc.workspace(ctx, s)
	if err != nil {
		return classroom.Snapshot{}, err
	}
	return ws.snapshot(ctx, courseID, refresh)
}

func (svc *Service) Report(ctx context.Context, s Session, courseID string, refresh bool) (grading.Report, error) {
	courses, err := svc.Courses(ctx, s)
	if err != nil {
		return grading.Report{}, err
	}
	snap, err := svc.Snapshot(ctx, s, courseID, refresh)
	if err != nil {
		return grading.Report{}, err
	}
	return svc.engine.BuildReport(snap, len(courses)), nil
}

// Attendance returns the loaded attendance reconciler of courseID.
func (svc *Service) Attendance(ctx context.Context, s Session, courseID string) (*attendance.Reconciler, error) {
	ws, err := svc.workspace(ctx, s)
	if err != nil {
		return nil, err
	}
	return ws.reconciler(ctx, courseID)
}

func (svc *Service) Dashboard(ctx context.Context, s Session, courseID string) (Dashboard, error) {
	report, err := svc.Report(ctx, s, courseID, false)
	if err != nil {
		return Dashboard{}, err
	}
	dash := Dashboard{
		Course:    report.Course,
		Histogram: report.Histogram,
		Courses:   svc.courseBars(ctx, s),
	}

	rec, err := svc.Attendance(ctx, s, courseID)
	if err != nil {
		// attendance is secondary on the dashboard
		svc.logger.Warn("loading dashboard attendance", err, s.Teacher)
		return dash, nil
	}
	days := rec.Calendar()
	dash.AttendanceDays = len(days)
	dash.AttendanceRate = attendance.DaysWithAttendance(days)
	return dash, nil
}

// courseBars aggregates the buckets of every course of the teacher.
// Courses that fail to load are left out.
func (svc *Service) courseBars(ctx context.Context, s Session) []grading.CourseBuckets {
	courses, err := svc.Courses(ctx, s)
	if err != nil {
		svc.logger.Warn("listing dashboard courses", err, s.Teacher)
		return []grading.CourseBuckets{}
	}

	snaps := make([]classroom.Snapshot, len(courses))
	loaded := make([]bool, len(courses))

	var g errgroup.Group
	g.SetLimit(max(svc.concurrency, 1))
	for i, c := range courses {
		i, c := i, c
		g.Go(func() error {
			snap, err := svc.Snapshot(ctx, s, c.ID, false)
			if err != nil {
				svc.logger.Warn(fmt.Sprintf("loading dashboard course %s", c.ID), err, s.Teacher)
				return nil
			}
			snaps[i], loaded[i] = snap, true
			return nil
		})
	}
	_ = g.Wait()

	kept := snaps[:0]
	for i, snap := range snaps {
		if loaded[i] {
			kept = append(kept, snap)
		}
	}
	return svc.engine.AggregateCourses(kept)
}
