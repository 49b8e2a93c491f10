// Package eventapi is the client of the attendance-event ("evento") backend.
package eventapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/classboard/core"
	"github.com/trezcool/classboard/core/attendance"
)

type Client struct {
	baseURL string
	token   string
	http    *rest.Client
}

var _ attendance.Remote = (*Client)(nil)

// NewClient returns a client authenticated with accessToken. An empty token sends no Authorization header.
func NewClient(conf core.EventAPIConfig, accessToken string) *Client {
	return &Client{
		baseURL: strings.TrimRight(conf.BaseURL, "/"),
		token:   accessToken,
		http:    &rest.Client{HTTPClient: &http.Client{Timeout: conf.Timeout}},
	}
}

// NewFactory builds one Client per access token.
func NewFactory(conf *core.Config) func(accessToken string) attendance.Remote {
	return func(accessToken string) attendance.Remote {
		return NewClient(conf.EventAPI, accessToken)
	}
}

func (c *Client) url(parts ...string) string {
	segs := make([]string, len(parts))
	for i, p := range parts {
		segs[i] = url.PathEscape(strings.Trim(p, "/"))
	}
	return c.baseURL + "/" + strings.Join(segs, "/")
}

// do sends body as JSON and decodes a JSON answer into out. out may be nil.
func (c *Client) do(ctx context.Context, method rest.Method, endpoint string, body, out interface{}) error {
	req := rest.Request{
		Method:  method,
		BaseURL: endpoint,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
	}
	if c.token != "" {
		req.Headers["Authorization"] = "Bearer " + c.token
	}
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		req.Body = b
	}

	resp, err := c.http.SendWithContext(ctx, req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, endpoint)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal([]byte(resp.Body), &eb)
		return newError(resp.StatusCode, eb)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || !isJSON(resp.Headers) || resp.Body == "" {
		return nil
	}
	if err = json.Unmarshal([]byte(resp.Body), out); err != nil {
		return errors.Wrapf(err, "decoding %s %s", method, endpoint)
	}
	return nil
}

func isJSON(headers map[string][]string) bool {
	for k, vals := range headers {
		if !strings.EqualFold(k, "Content-Type") {
			continue
		}
		for _, v := range vals {
			if strings.Contains(v, "application/json") {
				return true
			}
		}
	}
	return false
}

func (c *Client) CreateEvent(ctx context.Context, cohortID, date string, present []string) (attendance.Event, error) {
	if present == nil {
		present = []string{}
	}
	var ev event
	err := c.do(ctx, rest.Post, c.url("eventos"), createEventRequest{CohortID: cohortID, Date: date, Present: present}, &ev)
	if err != nil {
		return attendance.Event{}, err
	}
	return ev.toEvent(), nil
}

func (c *Client) ListEvents(ctx context.Context, cohortID string) ([]attendance.Event, error) {
	var evs []event
	if err := c.do(ctx, rest.Get, c.url("eventos", "cohorte", cohortID), nil, &evs); err != nil {
		return nil, err
	}
	events := make([]attendance.Event, 0, len(evs))
	for _, ev := range evs {
		events = append(events, ev.toEvent())
	}
	return events, nil
}

func (c *Client) MarkPresent(ctx context.Context, eventID string, ids []string) error {
	return c.do(ctx, rest.Post, c.url("eventos", eventID, "attendance"), attendanceRequest{StudentIDs: ids}, nil)
}

func (c *Client) RemovePresent(ctx context.Context, eventID string, ids []string) error {
	return c.do(ctx, rest.Delete, c.url("eventos", eventID, "attendance"), attendanceRequest{StudentIDs: ids}, nil)
}

func (c *Client) GetEvent(ctx context.Context, eventID string) (attendance.Event, error) {
	var ev event
	if err := c.do(ctx, rest.Get, c.url("eventos", eventID), nil, &ev); err != nil {
		return attendance.Event{}, err
	}
	return ev.toEvent(), nil
}

func (c *Client) UpdateEvent(ctx context.Context, eventID string, upd EventUpdate) (attendance.Event, error) {
	var ev event
	if err := c.do(ctx, rest.Put, c.url("eventos", eventID), upd, &ev); err != nil {
		return attendance.Event{}, err
	}
	return ev.toEvent(), nil
}

func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	return c.do(ctx, rest.Delete, c.url("eventos", eventID), nil, nil)
}

// SyncCohort asks the backend to refresh the cohort from Classroom.
func (c *Client) SyncCohort(ctx context.Context, cohortID string) error {
	return c.do(ctx, rest.Post, c.url("cohorte", cohortID, "sync"), nil, nil)
}

func (c *Client) GetCohort(ctx context.Context, cohortID string) (Cohort, error) {
	var co Cohort
	err := c.do(ctx, rest.Get, c.url("cohorte", cohortID), nil, &co)
	return co, err
}

func (c *Client) ListCohorts(ctx context.Context) ([]Cohort, error) {
	var cos []Cohort
	err := c.do(ctx, rest.Get, c.url("cohortes"), nil, &cos)
	return cos, err
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.do(ctx, rest.Get, c.url("health"), nil, &h)
	return h, err
}
