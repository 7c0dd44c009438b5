package untis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/in-nis/untis-back/internal/metrics"
)

// DefaultSessionTTL is kept below the provider's idle timeout so sessions are
// refreshed before the provider drops them.
const DefaultSessionTTL = 12 * time.Minute

// Session owns the single live provider session of one Identity.
type Session struct {
	identity   Identity
	transport  Transport
	clientName string
	ttl        time.Duration
	now        func() time.Time

	mu      sync.Mutex
	creds   Credentials
	expires time.Time
	logins  int
}

type authResult struct {
	SessionID  string `json:"sessionId"`
	PersonType int    `json:"personType"`
	PersonID   int    `json:"personId"`
	ClassID    int    `json:"klasseId"`
}

func NewSession(id Identity, transport Transport, clientName string, ttl time.Duration) *Session {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if clientName == "" {
		clientName = "untis-pwa"
	}
	return &Session{
		identity:   id,
		transport:  transport,
		clientName: clientName,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Ensure returns the cached credentials while they are live, otherwise it
// logs in. force skips the cache.
func (s *Session) Ensure(ctx context.Context, force bool) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !force && s.liveLocked() {
		return s.creds, nil
	}
	return s.loginLocked(ctx)
}

// Refresh replaces a session the provider rejected. When another caller has
// already swapped stale for a live session, that session is reused and no
// second login happens.
func (s *Session) Refresh(ctx context.Context, stale Credentials) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.liveLocked() && s.creds.SessionID != stale.SessionID {
		return s.creds, nil
	}
	s.invalidateLocked()
	return s.loginLocked(ctx)
}

// Invalidate drops the cached session.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked()
}

// Logins reports how many logins this session has performed.
func (s *Session) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

// Close logs out a live session. Errors are ignored; the provider expires the
// session on its own.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.creds.valid() {
		return
	}
	if _, err := s.transport.Call(ctx, "logout", nil, s.creds); err != nil {
		log.Printf("⚠️ untis[%s]: logout failed: %v", s.identity.Grade, err)
	}
	s.invalidateLocked()
}

func (s *Session) liveLocked() bool {
	return s.creds.valid() && s.now().Before(s.expires)
}

func (s *Session) invalidateLocked() {
	s.creds = Credentials{}
	s.expires = time.Time{}
}

func (s *Session) loginLocked(ctx context.Context) (Credentials, error) {
	kind := "initial"
	if s.logins > 0 {
		kind = "relogin"
	}

	started := s.now()
	raw, err := s.transport.Call(ctx, "authenticate", map[string]string{
		"user":     s.identity.Username,
		"password": s.identity.Password,
		"client":   s.clientName,
	}, Credentials{})
	metrics.ProviderCalls.WithLabelValues(s.identity.Grade, "authenticate", metrics.Outcome(err)).Inc()
	if err != nil {
		s.invalidateLocked()
		return Credentials{}, fmt.Errorf("%w: grade %s: %w", ErrAuthentication, s.identity.Grade, err)
	}

	var res authResult
	if err := json.Unmarshal(raw, &res); err != nil || res.SessionID == "" {
		s.invalidateLocked()
		return Credentials{}, fmt.Errorf("%w: grade %s: no session id in login response", ErrAuthentication, s.identity.Grade)
	}

	s.creds = Credentials{
		SessionID:  res.SessionID,
		PersonID:   res.PersonID,
		PersonType: res.PersonType,
		ClassID:    res.ClassID,
	}
	s.expires = started.Add(s.ttl)
	s.logins++
	metrics.ProviderLogins.WithLabelValues(s.identity.Grade, kind).Inc()

	log.Printf("✅ untis[%s]: logged in (%s, session %s)", s.identity.Grade, kind, s.creds.short())
	return s.creds, nil
}
