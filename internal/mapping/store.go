package mapping

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/in-nis/untis-back/internal/normalize"
)

// Kind names one of the two admin-editable mappings.
type Kind string

const (
	KindCourses Kind = "courses"
	KindRooms   Kind = "rooms"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindCourses, "course", "subjects":
		return KindCourses, nil
	case KindRooms, "room":
		return KindRooms, nil
	}
	return "", fmt.Errorf("unknown mapping kind %q", s)
}

// Entry is one mapping line. Raw is the spelling written on the left side of
// the file; Key is its canonical form.
type Entry struct {
	Key   string `json:"key"`
	Raw   string `json:"raw"`
	Label string `json:"label"`
}

// Store is a mapping file held in memory. Lookups go through the canonical
// key, so every spelling of a raw label hits the same entry. Every change is
// written back to disk before it becomes visible.
type Store struct {
	mu      sync.RWMutex
	path    string
	entries map[string]Entry
}

// Open loads path. A missing file is an empty mapping.
func Open(path string) (*Store, error) {
	s := &Store{path: path, entries: make(map[string]Entry)}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

// Reload re-reads the file, replacing what is in memory.
func (s *Store) Reload() error {
	entries, err := readFile(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}

// Lookup returns the label mapped to raw.
func (s *Store) Lookup(raw string) (string, bool) {
	key := normalize.Canonicalize(raw)
	if key == "" {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e.Label, ok
}

// Label returns the mapped label, or raw itself when it is unmapped.
func (s *Store) Label(raw string) string {
	if label, ok := s.Lookup(raw); ok {
		return label
	}
	return raw
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entries lists the mapping sorted by key.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedEntries(s.entries)
}

// Map returns raw -> label, the shape used by backups.
func (s *Store) Map() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.entries))
	for _, e := range s.entries {
		out[e.Raw] = e.Label
	}
	return out
}

// Set maps raw to label, replacing any entry with the same canonical key.
func (s *Store) Set(raw, label string) (Entry, error) {
	raw, label = strings.TrimSpace(raw), strings.TrimSpace(label)
	key := normalize.Canonicalize(raw)
	if key == "" {
		return Entry{}, fmt.Errorf("mapping: empty raw label")
	}
	if label == "" {
		return Entry{}, fmt.Errorf("mapping: empty label for %q", raw)
	}
	if strings.ContainsAny(raw+label, "\r\n") || strings.Contains(raw, "=") || strings.HasPrefix(raw, "#") {
		return Entry{}, fmt.Errorf("mapping: %q cannot be stored in a mapping file", raw)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := copyEntries(s.entries)
	e := Entry{Key: key, Raw: raw, Label: label}
	next[key] = e
	if err := writeFile(s.path, next); err != nil {
		return Entry{}, err
	}
	s.entries = next
	return e, nil
}

// Delete removes the entry for raw. It reports whether one existed.
func (s *Store) Delete(raw string) (bool, error) {
	key := normalize.Canonicalize(raw)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return false, nil
	}
	next := copyEntries(s.entries)
	delete(next, key)
	if err := writeFile(s.path, next); err != nil {
		return false, err
	}
	s.entries = next
	return true, nil
}

// Replace swaps the whole mapping for raw -> label pairs. Used by restore.
func (s *Store) Replace(pairs map[string]string) error {
	next := make(map[string]Entry, len(pairs))
	for raw, label := range pairs {
		raw, label = strings.TrimSpace(raw), strings.TrimSpace(label)
		key := normalize.Canonicalize(raw)
		if key == "" || label == "" {
			continue
		}
		next[key] = Entry{Key: key, Raw: raw, Label: label}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFile(s.path, next); err != nil {
		return err
	}
	s.entries = next
	return nil
}

func readFile(path string) (map[string]Entry, error) {
	out := make(map[string]Entry)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open mapping %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		left, right, ok := strings.Cut(text, "=")
		if !ok {
			log.Printf("⚠️ mapping %s:%d: no '=' in line, skipped", filepath.Base(path), line)
			continue
		}
		raw, label := strings.TrimSpace(left), strings.TrimSpace(right)
		key := normalize.Canonicalize(raw)
		if key == "" {
			continue
		}
		// Later lines win, like a re-assignment.
		out[key] = Entry{Key: key, Raw: raw, Label: label}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read mapping %s: %w", path, err)
	}
	return out, nil
}

// writeFile replaces path atomically: the content goes to a temp file in the
// same directory which is then renamed over the original.
func writeFile(path string, entries map[string]Entry) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create mapping dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write mapping %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, e := range sortedEntries(entries) {
		fmt.Fprintf(w, "%s = %s\n", e.Raw, e.Label)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write mapping %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write mapping %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write mapping %s: %w", path, err)
	}
	return nil
}

func sortedEntries(m map[string]Entry) []Entry {
	out := make([]Entry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func copyEntries(m map[string]Entry) map[string]Entry {
	out := make(map[string]Entry, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
