package mapping

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

const (
	subjectsAllFile    = "subjects_raw_all.txt"
	roomsSuggestedFile = "rooms_suggested.txt"
)

// SubjectsFile is the per-grade raw subject list name.
func SubjectsFile(grade string) string {
	return "subjects_raw_" + strings.ToLower(strings.TrimSpace(grade)) + ".txt"
}

// ExportSeen writes the raw label lists admins build mappings from: one
// subject list per grade, a combined subject list and the "subject · room"
// suggestions. When the room mapping file does not exist yet it is seeded
// with one "room = room" line per seen room. It returns the files written.
func ExportSeen(dir string, seen *Seen, rooms *Store) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	var written []string
	write := func(name string, lines []string) error {
		path := filepath.Join(dir, name)
		if err := writeLines(path, lines); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	for _, grade := range seen.Grades() {
		if err := write(SubjectsFile(grade), seen.Subjects(grade)); err != nil {
			return written, err
		}
	}
	if err := write(subjectsAllFile, seen.Subjects("")); err != nil {
		return written, err
	}
	if err := write(roomsSuggestedFile, seen.Pairs("")); err != nil {
		return written, err
	}

	if rooms != nil {
		if _, err := os.Stat(rooms.Path()); os.IsNotExist(err) {
			starter := make(map[string]string)
			for _, r := range seen.Rooms("") {
				starter[r] = r
			}
			if len(starter) > 0 {
				if err := rooms.Replace(starter); err != nil {
					return written, err
				}
				log.Printf("✅ created starter room mapping %s (%d rooms)", rooms.Path(), len(starter))
				written = append(written, rooms.Path())
			}
		}
	}
	return written, nil
}

func writeLines(path string, lines []string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}
