package untis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// scalar accepts a JSON string, number, bool or null and keeps its text.
// The provider sends the same field as 935 on one endpoint and "09:35" on
// another.
type scalar string

func (s *scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = scalar(strings.TrimSpace(str))
		return nil
	}
	if b[0] == '{' || b[0] == '[' {
		return fmt.Errorf("untis: expected scalar, got %s", b[:1])
	}
	*s = scalar(b)
	return nil
}

func (s scalar) String() string { return string(s) }

func (s scalar) Int() (int, bool) {
	n, err := strconv.Atoi(string(s))
	return n, err == nil
}

func (s scalar) Bool() bool {
	b, err := strconv.ParseBool(string(s))
	return err == nil && b
}

// HM formats a packed HHMM integer: 935 -> "09:35".
func HM(n int) string {
	if n < 0 {
		n = 0
	}
	return fmt.Sprintf("%02d:%02d", n/100, n%100)
}

// normalizeTime accepts a packed integer or "H:MM"/"HH:MM" text and returns
// "HH:MM". Unparseable input is passed through.
func normalizeTime(v scalar) string {
	s := strings.TrimSpace(v.String())
	if s == "" {
		return ""
	}
	if n, ok := v.Int(); ok {
		return HM(n)
	}
	if h, m, ok := strings.Cut(s, ":"); ok {
		hh, err1 := strconv.Atoi(h)
		mm, err2 := strconv.Atoi(m[:min(2, len(m))])
		if err1 == nil && err2 == nil {
			return fmt.Sprintf("%02d:%02d", hh, mm)
		}
	}
	return s
}

// YYYYMMDD packs a date the way the provider expects it.
func YYYYMMDD(d time.Time) int {
	return d.Year()*10000 + int(d.Month())*100 + d.Day()
}

// isoDate turns 20240304 into "2024-03-04". Values that are already ISO are
// kept; anything else is passed through unchanged.
func isoDate(v scalar) string {
	s := v.String()
	if len(s) == 8 && isDigits(s) {
		return s[:4] + "-" + s[4:6] + "-" + s[6:]
	}
	return s
}

// validISODate reports whether s is a real YYYY-MM-DD date.
func validISODate(s string) bool {
	if len(s) != 10 {
		return false
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ref is the {"id": 12} element reference used by timetable entries.
type ref struct {
	ID int `json:"id"`
}

// refs decodes a reference list leniently: a single object counts as a
// one-element list and elements without a numeric id are dropped, so a
// malformed list resolves to nothing instead of failing the entry.
type refs []ref

func (r *refs) UnmarshalJSON(b []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		items = []json.RawMessage{b}
	}
	out := make(refs, 0, len(items))
	for _, item := range items {
		var x struct {
			ID scalar `json:"id"`
		}
		if err := json.Unmarshal(item, &x); err != nil {
			continue
		}
		if id, ok := x.ID.Int(); ok {
			out = append(out, ref{ID: id})
		}
	}
	*r = out
	return nil
}

func firstID(refs []ref) int {
	if len(refs) == 0 {
		return 0
	}
	return refs[0].ID
}

func firstText(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
