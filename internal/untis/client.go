package untis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"time"

	"github.com/in-nis/untis-back/internal/metrics"
)

type ClientOptions struct {
	Transport  Transport // nil builds an HTTPTransport from the identity
	Timeout    time.Duration
	RatePerSec float64
	SessionTTL time.Duration
	ClientName string
}

// Client reads one grade's timetable and exams. Every remote call goes
// through call/get, which own session expiry handling.
type Client struct {
	identity  Identity
	transport Transport
	session   *Session
}

func NewClient(id Identity, opts ClientOptions) (*Client, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	transport := opts.Transport
	if transport == nil {
		t, err := NewHTTPTransport(id, TransportOptions{Timeout: opts.Timeout, RatePerSec: opts.RatePerSec})
		if err != nil {
			return nil, err
		}
		transport = t
	}

	return &Client{
		identity:  id,
		transport: transport,
		session:   NewSession(id, transport, opts.ClientName, opts.SessionTTL),
	}, nil
}

func (c *Client) Grade() string     { return c.identity.Grade }
func (c *Client) Session() *Session { return c.session }

// Close logs the session out.
func (c *Client) Close(ctx context.Context) {
	c.session.Close(ctx)
}

// CallAuthenticated runs one JSON-RPC method with a live session. A
// not-authenticated failure triggers exactly one re-login and one retry; any
// other failure, or a second failure, is returned as is.
func (c *Client) CallAuthenticated(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return c.call(ctx, method, params)
}

func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return c.withSession(ctx, method, func(creds Credentials) (json.RawMessage, error) {
		return c.transport.Call(ctx, method, params, creds)
	})
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return c.withSession(ctx, "GET "+path, func(creds Credentials) (json.RawMessage, error) {
		return c.transport.Get(ctx, path, query, creds)
	})
}

func (c *Client) withSession(ctx context.Context, method string, do func(Credentials) (json.RawMessage, error)) (json.RawMessage, error) {
	creds, err := c.session.Ensure(ctx, false)
	if err != nil {
		return nil, err
	}

	res, err := do(creds)
	metrics.ProviderCalls.WithLabelValues(c.identity.Grade, method, metrics.Outcome(err)).Inc()
	if err == nil || !IsNotAuthenticated(err) {
		return res, err
	}

	log.Printf("🔁 untis[%s]: %s rejected session %s, logging in again", c.identity.Grade, method, creds.short())
	creds, err = c.session.Refresh(ctx, creds)
	if err != nil {
		return nil, err
	}

	res, err = do(creds)
	metrics.ProviderCalls.WithLabelValues(c.identity.Grade, method, metrics.Outcome(err)).Inc()
	return res, err
}

// FetchWeek returns the lessons of the seven days starting at weekStart.
func (c *Client) FetchWeek(ctx context.Context, weekStart time.Time) ([]Lesson, error) {
	start := truncateDay(weekStart)
	end := start.AddDate(0, 0, 6)

	raw, err := c.call(ctx, "getTimetable", map[string]any{
		"options": map[string]any{
			"element":   map[string]int{"id": c.identity.ElementID, "type": c.identity.ElementType},
			"startDate": YYYYMMDD(start),
			"endDate":   YYYYMMDD(end),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch week %s for %s: %w", start.Format("2006-01-02"), c.identity.Grade, err)
	}

	entries, err := decodeLessons(raw, c.identity.Grade)
	if err != nil {
		return nil, err
	}

	l := c.lookups(ctx, lookupTeachers, lookupSubjects, lookupRooms)

	lessons := make([]Lesson, 0, len(entries))
	for _, x := range entries {
		lessons = append(lessons, normalizeLesson(x, l, c.identity.Grade))
	}
	return lessons, nil
}

// FetchExams reads exams between start and end (inclusive). The JSON-RPC
// method is tried first and the REST path second; when both fail the first
// error is returned.
func (c *Client) FetchExams(ctx context.Context, start, end time.Time, examTypeID int) ([]Exam, error) {
	start, end = truncateDay(start), truncateDay(end)
	if end.Before(start) {
		start, end = end, start
	}

	raw, firstErr := c.call(ctx, "getExams", map[string]int{
		"startDate":  YYYYMMDD(start),
		"endDate":    YYYYMMDD(end),
		"examTypeId": examTypeID,
	})
	if errors.Is(firstErr, ErrAuthentication) {
		return nil, fmt.Errorf("fetch exams for %s: %w", c.identity.Grade, firstErr)
	}
	if firstErr != nil {
		log.Printf("⚠️ untis[%s]: getExams failed, trying REST: %v", c.identity.Grade, firstErr)
		var err error
		raw, err = c.get(ctx, "api/exams", c.examQuery(start, end, examTypeID))
		if err != nil {
			log.Printf("❌ untis[%s]: REST exams failed too: %v", c.identity.Grade, err)
			return nil, fmt.Errorf("fetch exams for %s: %w", c.identity.Grade, firstErr)
		}
	}

	l := c.lookups(ctx, lookupSubjects, lookupTeachers, lookupRooms, lookupClasses)
	return normalizeExams(raw, l, c.identity.Grade)
}

func (c *Client) examQuery(start, end time.Time, examTypeID int) url.Values {
	q := url.Values{}
	q.Set("startDate", strconv.Itoa(YYYYMMDD(start)))
	q.Set("endDate", strconv.Itoa(YYYYMMDD(end)))
	q.Set("withGrades", "true")
	q.Set("klasseId", "-1")
	if examTypeID > 0 {
		q.Set("examTypeId", strconv.Itoa(examTypeID))
	}
	switch c.identity.ElementType {
	case ElementClass:
		q.Set("klasseId", strconv.Itoa(c.identity.ElementID))
	case ElementStudent:
		q.Set("studentId", strconv.Itoa(c.identity.ElementID))
	}
	return q
}

// FetchSubjectMap, FetchTeacherMap, FetchRoomMap and FetchClassMap return
// the raw lookup lists; unlike the lookups used inside fetches they report
// errors.
func (c *Client) FetchSubjectMap(ctx context.Context) (map[int]string, error) {
	return c.fetchLookup(ctx, lookupSubjects)
}

func (c *Client) FetchTeacherMap(ctx context.Context) (map[int]string, error) {
	return c.fetchLookup(ctx, lookupTeachers)
}

func (c *Client) FetchRoomMap(ctx context.Context) (map[int]string, error) {
	return c.fetchLookup(ctx, lookupRooms)
}

func (c *Client) FetchClassMap(ctx context.Context) (map[int]string, error) {
	return c.fetchLookup(ctx, lookupClasses)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
