package testutil

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/trezcool/classboard/core/attendance"
	"github.com/trezcool/classboard/services/eventapi"
)

// ErrRemote is what a failing FakeRemote returns, shaped like a backend answer.
var ErrRemote error = &eventapi.Error{StatusCode: http.StatusServiceUnavailable, Message: "remote unavailable", Kind: "Service Unavailable"}

// RemoteCall is one recorded call to a FakeRemote.
type RemoteCall struct {
	Method  string
	EventID string
	IDs     []string
}

// FakeRemote is an in-memory attendance.Remote that records every call.
// Set a Fail* field to make the matching method return ErrRemote.
type FakeRemote struct {
	mu     sync.Mutex
	events map[string]*attendance.Event
	seq    int
	calls  []RemoteCall

	FailSync   bool
	FailList   bool
	FailCreate bool
	FailMark   bool
	FailRemove bool
	FailGet    bool
	FailDelete bool

	// BeforeList runs at the start of ListEvents, outside the lock.
	BeforeList func()
}

var _ attendance.Remote = (*FakeRemote)(nil)

func NewFakeRemote() *FakeRemote {
	return &FakeRemote{events: make(map[string]*attendance.Event)}
}

// AddEvent stores an event as if another client had created it.
func (f *FakeRemote) AddEvent(cohortID, date string, present ...string) attendance.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.add(cohortID, date, present)
}

func (f *FakeRemote) add(cohortID, date string, present []string) attendance.Event {
	f.seq++
	now := time.Now().UTC()
	ev := &attendance.Event{
		ID:        "ev" + strconv.Itoa(f.seq),
		CohortID:  cohortID,
		Date:      date,
		Present:   append([]string{}, present...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.events[ev.ID] = ev
	return copyEvent(ev)
}

// Present returns the sorted present ids of an event.
func (f *FakeRemote) Present(eventID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	ev, ok := f.events[eventID]
	if !ok {
		return nil
	}
	ids := append([]string{}, ev.Present...)
	sort.Strings(ids)
	return ids
}

func (f *FakeRemote) Calls(methods ...string) []RemoteCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(methods) == 0 {
		return append([]RemoteCall(nil), f.calls...)
	}
	var out []RemoteCall
	for _, c := range f.calls {
		for _, m := range methods {
			if c.Method == m {
				out = append(out, c)
			}
		}
	}
	return out
}

func (f *FakeRemote) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *FakeRemote) record(method, eventID string, ids []string) {
	f.calls = append(f.calls, RemoteCall{Method: method, EventID: eventID, IDs: append([]string(nil), ids...)})
}

func copyEvent(ev *attendance.Event) attendance.Event {
	c := *ev
	c.Present = append([]string{}, ev.Present...)
	return c
}

func (f *FakeRemote) CreateEvent(_ context.Context, cohortID, date string, present []string) (attendance.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("CreateEvent", "", present)
	if f.FailCreate {
		return attendance.Event{}, ErrRemote
	}
	return f.add(cohortID, date, present), nil
}

func (f *FakeRemote) ListEvents(_ context.Context, cohortID string) ([]attendance.Event, error) {
	if f.BeforeList != nil {
		f.BeforeList()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("ListEvents", "", nil)
	if f.FailList {
		return nil, ErrRemote
	}
	var out []attendance.Event
	for _, ev := range f.events {
		if ev.CohortID == cohortID {
			out = append(out, copyEvent(ev))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (f *FakeRemote) MarkPresent(_ context.Context, eventID string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("MarkPresent", eventID, ids)
	if f.FailMark {
		return ErrRemote
	}
	ev, ok := f.events[eventID]
	if !ok {
		return ErrRemote
	}
	present := make(map[string]bool, len(ev.Present))
	for _, id := range ev.Present {
		present[id] = true
	}
	for _, id := range ids {
		if !present[id] {
			ev.Present = append(ev.Present, id)
		}
	}
	ev.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *FakeRemote) RemovePresent(_ context.Context, eventID string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("RemovePresent", eventID, ids)
	if f.FailRemove {
		return ErrRemote
	}
	ev, ok := f.events[eventID]
	if !ok {
		return ErrRemote
	}
	remove := make(map[string]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}
	kept := ev.Present[:0]
	for _, id := range ev.Present {
		if !remove[id] {
			kept = append(kept, id)
		}
	}
	ev.Present = kept
	ev.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *FakeRemote) GetEvent(_ context.Context, eventID string) (attendance.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("GetEvent", eventID, nil)
	if f.FailGet {
		return attendance.Event{}, ErrRemote
	}
	ev, ok := f.events[eventID]
	if !ok {
		return attendance.Event{}, ErrRemote
	}
	return copyEvent(ev), nil
}

func (f *FakeRemote) DeleteEvent(_ context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("DeleteEvent", eventID, nil)
	if f.FailDelete {
		return ErrRemote
	}
	delete(f.events, eventID)
	return nil
}

func (f *FakeRemote) SyncCohort(_ context.Context, cohortID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("SyncCohort", cohortID, nil)
	if f.FailSync {
		return ErrRemote
	}
	return nil
}
