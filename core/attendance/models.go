package attendance

import (
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/classboard/core"
	"github.com/trezcool/classboard/core/classroom"
)

type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
)

func (s Status) Valid() bool {
	return s == StatusPresent || s == StatusAbsent
}

// Entry is one student's status in a Record.
type Entry struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Status    Status `json:"status"`
}

// Record is the attendance of one cohort on one date.
// A Record without EventID exists only locally.
type Record struct {
	ID            string      `json:"id"`
	Date          string      `json:"date"` // YYYY-MM-DD
	Entries       []Entry     `json:"entries"`
	EventID       null.String `json:"event_id"`
	RemotePresent []string    `json:"remote_present"` // present ids last confirmed by the server
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

func (r Record) Synced() bool {
	return r.EventID.Valid && r.EventID.String != ""
}

// PresentIDs returns the ids of present students, in entry order.
func (r Record) PresentIDs() []string {
	ids := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		if e.Status == StatusPresent {
			ids = append(ids, e.StudentID)
		}
	}
	return ids
}

func (r Record) Stats() Stats {
	var s Stats
	for _, e := range r.Entries {
		if e.Status == StatusPresent {
			s.Present++
		}
	}
	s.Total = len(r.Entries)
	s.Absent = s.Total - s.Present
	s.Percentage = core.Percent(s.Present, s.Total)
	return s
}

func (r Record) clone() Record {
	c := r
	c.Entries = append([]Entry(nil), r.Entries...)
	c.RemotePresent = append([]string(nil), r.RemotePresent...)
	return c
}

type Stats struct {
	Present    int `json:"present"`
	Absent     int `json:"absent"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Event is the remote attendance event ("evento") of one date.
type Event struct {
	ID        string    `json:"id"`
	CohortID  string    `json:"cohort_id"`
	Date      string    `json:"date"`
	Present   []string  `json:"present"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Draft is a persisted Record with unsaved local changes.
type Draft struct {
	CohortID      string      `json:"cohort_id"`
	Date          string      `json:"date"`
	RecordID      string      `json:"record_id"`
	EventID       null.String `json:"event_id"`
	Entries       []Entry     `json:"entries"`
	RemotePresent []string    `json:"remote_present"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

func draftOf(cohortID string, r Record) Draft {
	r = r.clone()
	return Draft{
		CohortID:      cohortID,
		Date:          r.Date,
		RecordID:      r.ID,
		EventID:       r.EventID,
		Entries:       r.Entries,
		RemotePresent: r.RemotePresent,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// SaveResult lists the ids sent to the server by a Save.
type SaveResult struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// NoOp reports whether the Save made no network call.
func (r SaveResult) NoOp() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0
}

// Diff returns the ids to mark present (local - remote) and to remove (remote - local).
// Both results are sorted.
func Diff(local, remote []string) (added, removed []string) {
	localSet := toSet(local)
	remoteSet := toSet(remote)
	for id := range localSet {
		if !remoteSet[id] {
			added = append(added, id)
		}
	}
	for id := range remoteSet {
		if !localSet[id] {
			removed = append(removed, id)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

// Rehydrate maps entries onto roster: known students keep their status,
// new ones are absent and departed ones are dropped. Names and emails follow the roster.
func Rehydrate(entries []Entry, roster []classroom.Student) []Entry {
	statuses := make(map[string]Status, len(entries))
	for _, e := range entries {
		statuses[e.StudentID] = e.Status
	}
	out := make([]Entry, 0, len(roster))
	for _, st := range roster {
		status, ok := statuses[st.ID]
		if !ok {
			status = StatusAbsent
		}
		out = append(out, Entry{StudentID: st.ID, Name: st.Name, Email: st.Email, Status: status})
	}
	return out
}

func entriesFromPresent(roster []classroom.Student, present []string) []Entry {
	set := toSet(present)
	out := make([]Entry, 0, len(roster))
	for _, st := range roster {
		status := StatusAbsent
		if set[st.ID] {
			status = StatusPresent
		}
		out = append(out, Entry{StudentID: st.ID, Name: st.Name, Email: st.Email, Status: status})
	}
	return out
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func sameSet(a, b []string) bool {
	added, removed := Diff(a, b)
	return len(added) == 0 && len(removed) == 0
}
