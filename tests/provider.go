package testutil

import (
	"context"
	"sync"

	"github.com/trezcool/classboard/core"
	"github.com/trezcool/classboard/core/classroom"
)

// FakeProvider serves Snapshots as a classroom.Provider.
type FakeProvider struct {
	Teacher core.Teacher
	Courses map[string]classroom.Snapshot

	// Block, when set, is waited on by ListStudents.
	Block chan struct{}

	mu    sync.Mutex
	calls map[string]int
}

var _ classroom.Provider = (*FakeProvider)(nil)

func NewFakeProvider(snaps ...classroom.Snapshot) *FakeProvider {
	p := &FakeProvider{
		Teacher: core.Teacher{ID: "t1", Name: "Teacher", Email: "teacher@test.test"},
		Courses: make(map[string]classroom.Snapshot),
		calls:   make(map[string]int),
	}
	for _, s := range snaps {
		p.Courses[s.Course.ID] = s
	}
	return p
}

// Factory returns a ProviderFactory that always hands out p.
func (p *FakeProvider) Factory() classroom.ProviderFactory {
	return func(context.Context, string) (classroom.Provider, error) { return p, nil }
}

func (p *FakeProvider) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

func (p *FakeProvider) count(method string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[method]++
}

func (p *FakeProvider) course(courseID string) (classroom.Snapshot, error) {
	s, ok := p.Courses[courseID]
	if !ok {
		return classroom.Snapshot{}, classroom.ErrNotFound
	}
	return s, nil
}

func (p *FakeProvider) Me(context.Context) (core.Teacher, error) {
	p.count("Me")
	return p.Teacher, nil
}

func (p *FakeProvider) ListCourses(context.Context) ([]classroom.Course, error) {
	p.count("ListCourses")
	courses := make([]classroom.Course, 0, len(p.Courses))
	for _, s := range p.Courses {
		courses = append(courses, s.Course)
	}
	return courses, nil
}

func (p *FakeProvider) GetCourse(_ context.Context, courseID string) (classroom.Course, error) {
	p.count("GetCourse")
	s, err := p.course(courseID)
	return s.Course, err
}

func (p *FakeProvider) ListStudents(ctx context.Context, courseID string) ([]classroom.Student, error) {
	p.count("ListStudents")
	if p.Block != nil {
		select {
		case <-p.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s, err := p.course(courseID)
	return s.Roster, err
}

func (p *FakeProvider) ListCourseWork(_ context.Context, courseID string) ([]classroom.Assignment, error) {
	p.count("ListCourseWork")
	s, err := p.course(courseID)
	return s.Assignments, err
}

func (p *FakeProvider) ListSubmissions(_ context.Context, courseID, courseWorkID string) ([]classroom.Submission, error) {
	p.count("ListSubmissions")
	s, err := p.course(courseID)
	return s.Submissions[courseWorkID], err
}
