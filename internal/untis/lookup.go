package untis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/in-nis/untis-back/internal/metrics"
)

// Lookups resolves element ids to display names. It is built fresh for
// every top-level fetch.
type Lookups struct {
	Subjects map[int]string
	Teachers map[int]string
	Rooms    map[int]string
	Classes  map[int]string
}

type lookupKind struct {
	name      string
	method    string
	shortName bool // prefer "name" over "longName"
}

var (
	lookupSubjects = lookupKind{name: "subjects", method: "getSubjects"}
	lookupTeachers = lookupKind{name: "teachers", method: "getTeachers"}
	lookupRooms    = lookupKind{name: "rooms", method: "getRooms"}
	lookupClasses  = lookupKind{name: "classes", method: "getKlassen", shortName: true}
)

type element struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	LongName string `json:"longName"`
}

// name returns id's display name, or "" when it is unknown.
func name(m map[int]string, id int) string {
	if m == nil || id == 0 {
		return ""
	}
	return m[id]
}

func names(m map[int]string, ids []int) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if n := name(m, id); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// fetchLookup fails loudly; lookup guards the fetch for normalizers.
func (c *Client) fetchLookup(ctx context.Context, kind lookupKind) (map[int]string, error) {
	raw, err := c.call(ctx, kind.method, nil)
	if err != nil {
		return nil, err
	}

	var items []element
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind.method, err)
	}

	out := make(map[int]string, len(items))
	for _, it := range items {
		if kind.shortName {
			out[it.ID] = firstText(it.Name, it.LongName)
		} else {
			out[it.ID] = firstText(it.LongName, it.Name)
		}
	}
	return out, nil
}

// lookup never fails: a broken list degrades to an empty map so the rest of
// the fetch still renders.
func (c *Client) lookup(ctx context.Context, kind lookupKind) map[int]string {
	m, err := c.fetchLookup(ctx, kind)
	if err != nil {
		metrics.LookupFailures.WithLabelValues(c.identity.Grade, kind.name).Inc()
		log.Printf("⚠️ untis[%s]: %s lookup failed, continuing without it: %v", c.identity.Grade, kind.name, err)
		return map[int]string{}
	}
	return m
}

func (c *Client) lookups(ctx context.Context, kinds ...lookupKind) Lookups {
	var l Lookups
	for _, k := range kinds {
		m := c.lookup(ctx, k)
		switch k {
		case lookupSubjects:
			l.Subjects = m
		case lookupTeachers:
			l.Teachers = m
		case lookupRooms:
			l.Rooms = m
		case lookupClasses:
			l.Classes = m
		}
	}
	return l
}
