package eventapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/classboard/core/attendance"
)

// Error is a non-2xx answer of the backend.
type Error struct {
	StatusCode int
	Message    string
	Kind       string
}

func (e *Error) Error() string {
	return e.Message
}

// IsNotFound reports whether err is a 404 of the backend.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type errorBody struct {
	Message    string `json:"message"`
	Error      string `json:"error"`
	StatusCode int    `json:"statusCode"`
}

func newError(code int, body errorBody) *Error {
	err := &Error{StatusCode: code, Message: body.Message, Kind: body.Error}
	if err.Message == "" {
		err.Message = "HTTP " + strconv.Itoa(code) + ": " + http.StatusText(code)
	}
	if err.Kind == "" {
		err.Kind = http.StatusText(code)
	}
	return err
}

type event struct {
	ID        string   `json:"id"`
	CohortID  string   `json:"fk_cohorte_id"`
	Date      string   `json:"fecha"`
	Present   []string `json:"alumnos_presentes"`
	CreatedAt string   `json:"createdAt"`
	UpdatedAt string   `json:"updatedAt"`
}

func (e event) toEvent() attendance.Event {
	date := e.Date
	if len(date) > 10 { // full ISO timestamp
		date = date[:10]
	}
	present := e.Present
	if present == nil {
		present = []string{}
	}
	return attendance.Event{
		ID:        e.ID,
		CohortID:  e.CohortID,
		Date:      date,
		Present:   present,
		CreatedAt: parseTime(e.CreatedAt),
		UpdatedAt: parseTime(e.UpdatedAt),
	}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

type createEventRequest struct {
	CohortID string   `json:"cohorteId"`
	Date     string   `json:"fecha"`
	Present  []string `json:"alumnosPresentes"`
}

// EventUpdate is a partial event; empty fields are left unchanged.
type EventUpdate struct {
	Date    string   `json:"fecha,omitempty"`
	Present []string `json:"alumnosPresentes,omitempty"`
}

type attendanceRequest struct {
	StudentIDs []string `json:"alumnoIds"`
}

type Cohort struct {
	ID              string    `json:"id"`
	AttendanceTotal float64   `json:"presencialidad_total"`
	ClassesTotal    int       `json:"cantidad_clases_total"`
	Teachers        []string  `json:"profesores"`
	Students        []string  `json:"alumnos"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type Health struct {
	Status      string  `json:"status"`
	Timestamp   string  `json:"timestamp"`
	Uptime      float64 `json:"uptime"`
	Environment string  `json:"environment"`
	Version     string  `json:"version"`
	Database    struct {
		Status    string `json:"status"`
		Connected bool   `json:"connected"`
	} `json:"database"`
}
