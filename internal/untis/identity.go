package untis

import (
	"fmt"
	"strings"
)

// Element types understood by getTimetable.
const (
	ElementClass   = 1
	ElementTeacher = 2
	ElementSubject = 3
	ElementRoom    = 4
	ElementStudent = 5
)

// Identity is one set of provider credentials plus the timetable element it
// reads. There is one Identity per grade.
type Identity struct {
	Grade       string
	BaseURL     string // JSON-RPC endpoint, e.g. https://host/WebUntis/jsonrpc.do
	School      string
	Username    string
	Password    string
	ElementID   int
	ElementType int
}

// Validate fails when a required field is blank.
func (id Identity) Validate() error {
	var missing []string
	if strings.TrimSpace(id.Grade) == "" {
		missing = append(missing, "grade")
	}
	if strings.TrimSpace(id.BaseURL) == "" {
		missing = append(missing, "base url")
	}
	if strings.TrimSpace(id.School) == "" {
		missing = append(missing, "school")
	}
	if strings.TrimSpace(id.Username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(id.Password) == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: grade %q missing %s", ErrConfig, id.Grade, strings.Join(missing, ", "))
	}
	if id.ElementType <= 0 {
		return fmt.Errorf("%w: grade %q has element type %d", ErrConfig, id.Grade, id.ElementType)
	}
	return nil
}

// Credentials is what a live session hands to the transport.
type Credentials struct {
	SessionID  string
	PersonID   int
	PersonType int
	ClassID    int
}

func (c Credentials) valid() bool {
	return c.SessionID != ""
}

// short prints a token prefix safe for logs.
func (c Credentials) short() string {
	if len(c.SessionID) <= 6 {
		return c.SessionID
	}
	return c.SessionID[:6] + "…"
}
