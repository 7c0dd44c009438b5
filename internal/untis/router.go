package untis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Router maps a grade ("EF", "Q1", ...) to the client holding that grade's
// identity. New grades are added with Register.
type Router struct {
	mu      sync.RWMutex
	clients map[string]*Client
	order   []string
}

func NewRouter() *Router {
	return &Router{clients: make(map[string]*Client)}
}

// NewRouterFromIdentities builds one client per identity. Any invalid
// identity fails the whole router.
func NewRouterFromIdentities(ids []Identity, opts ClientOptions) (*Router, error) {
	r := NewRouter()
	for _, id := range ids {
		c, err := NewClient(id, opts)
		if err != nil {
			return nil, err
		}
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Router) Register(c *Client) error {
	key := gradeKey(c.Grade())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.clients[key]; dup {
		return fmt.Errorf("%w: grade %q registered twice", ErrConfig, c.Grade())
	}
	r.clients[key] = c
	r.order = append(r.order, c.Grade())
	return nil
}

// Client returns the client for grade. An empty grade selects the first
// registered grade.
func (r *Router) Client(grade string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if strings.TrimSpace(grade) == "" {
		if len(r.order) == 0 {
			return nil, fmt.Errorf("%w: no grades configured", ErrUnknownGrade)
		}
		return r.clients[gradeKey(r.order[0])], nil
	}
	c, ok := r.clients[gradeKey(grade)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGrade, grade)
	}
	return c, nil
}

// AvailableGrades lists the registered grades in registration order.
func (r *Router) AvailableGrades() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// DefaultGrade is the grade used when a request names none.
func (r *Router) DefaultGrade() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return ""
	}
	return r.order[0]
}

func (r *Router) CallAuthenticated(ctx context.Context, grade, method string, params any) (json.RawMessage, error) {
	c, err := r.Client(grade)
	if err != nil {
		return nil, err
	}
	return c.CallAuthenticated(ctx, method, params)
}

func (r *Router) FetchWeek(ctx context.Context, weekStart time.Time, grade string) ([]Lesson, error) {
	c, err := r.Client(grade)
	if err != nil {
		return nil, err
	}
	return c.FetchWeek(ctx, weekStart)
}

func (r *Router) FetchExams(ctx context.Context, start, end time.Time, examTypeID int, grade string) ([]Exam, error) {
	c, err := r.Client(grade)
	if err != nil {
		return nil, err
	}
	return c.FetchExams(ctx, start, end, examTypeID)
}

func (r *Router) FetchSubjectMap(ctx context.Context, grade string) (map[int]string, error) {
	c, err := r.Client(grade)
	if err != nil {
		return nil, err
	}
	return c.FetchSubjectMap(ctx)
}

func (r *Router) FetchTeacherMap(ctx context.Context, grade string) (map[int]string, error) {
	c, err := r.Client(grade)
	if err != nil {
		return nil, err
	}
	return c.FetchTeacherMap(ctx)
}

func (r *Router) FetchRoomMap(ctx context.Context, grade string) (map[int]string, error) {
	c, err := r.Client(grade)
	if err != nil {
		return nil, err
	}
	return c.FetchRoomMap(ctx)
}

func (r *Router) FetchClassMap(ctx context.Context, grade string) (map[int]string, error) {
	c, err := r.Client(grade)
	if err != nil {
		return nil, err
	}
	return c.FetchClassMap(ctx)
}

// Close logs out every session.
func (r *Router) Close(ctx context.Context) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.clients {
		c.Close(ctx)
	}
}

func gradeKey(grade string) string {
	return strings.ToUpper(strings.TrimSpace(grade))
}
