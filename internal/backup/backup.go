package backup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/in-nis/untis-back/internal/mapping"
	"github.com/in-nis/untis-back/internal/models"
)

// Version is written into every snapshot. Restore refuses newer versions.
const Version = 1

var ErrBadSnapshot = errors.New("bad snapshot")

// Snapshot is everything an admin can edit: both mapping files, vacations
// and manual exams.
type Snapshot struct {
	Version     int                 `json:"version"`
	CreatedAt   time.Time           `json:"created_at"`
	Courses     map[string]string   `json:"courses"`
	Rooms       map[string]string   `json:"rooms"`
	Vacations   []models.Vacation   `json:"vacations"`
	ManualExams []models.ManualExam `json:"manual_exams"`
}

// Source is the database side of a snapshot.
type Source interface {
	ListVacations(ctx context.Context) ([]models.Vacation, error)
	ListManualExams(ctx context.Context, grade string) ([]models.ManualExam, error)
	ReplaceVacations(ctx context.Context, vs []models.Vacation) error
	ReplaceManualExams(ctx context.Context, es []models.ManualExam) error
}

type Service struct {
	data    Source
	maps    *mapping.Mappings
	storage Storage
	now     func() time.Time
}

// NewService wires the snapshot sources. storage may be nil when backups
// are only downloaded, never stored.
func NewService(data Source, maps *mapping.Mappings, storage Storage) *Service {
	return &Service{data: data, maps: maps, storage: storage, now: time.Now}
}

// Build collects a snapshot of the current state.
func (s *Service) Build(ctx context.Context) (*Snapshot, error) {
	vacations, err := s.data.ListVacations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vacations: %w", err)
	}
	exams, err := s.data.ListManualExams(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list manual exams: %w", err)
	}
	if vacations == nil {
		vacations = []models.Vacation{}
	}
	if exams == nil {
		exams = []models.ManualExam{}
	}
	return &Snapshot{
		Version:     Version,
		CreatedAt:   s.now().UTC(),
		Courses:     s.maps.Courses.Map(),
		Rooms:       s.maps.Rooms.Map(),
		Vacations:   vacations,
		ManualExams: exams,
	}, nil
}

// Validate normalizes every record of snap and rejects it when any of them
// is invalid, so that a restore never half-applies.
func (snap *Snapshot) Validate() error {
	if snap.Version < 1 || snap.Version > Version {
		return fmt.Errorf("%w: unsupported version %d", ErrBadSnapshot, snap.Version)
	}
	for i := range snap.Vacations {
		if err := snap.Vacations[i].Normalize(); err != nil {
			return fmt.Errorf("%w: vacation %d: %v", ErrBadSnapshot, i, err)
		}
	}
	seen := make(map[string]bool, len(snap.ManualExams))
	for i := range snap.ManualExams {
		e := &snap.ManualExams[i]
		if strings.TrimSpace(e.ID) == "" {
			e.ID = uuid.NewString()
		}
		if seen[e.ID] {
			return fmt.Errorf("%w: manual exam id %s used twice", ErrBadSnapshot, e.ID)
		}
		seen[e.ID] = true
		if err := e.Normalize(); err != nil {
			return fmt.Errorf("%w: manual exam %s: %v", ErrBadSnapshot, e.ID, err)
		}
	}
	return nil
}

// Restore replaces mappings, vacations and manual exams with snap.
func (s *Service) Restore(ctx context.Context, snap *Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	// Vacation ids are reassigned by the database.
	vacations := make([]models.Vacation, len(snap.Vacations))
	for i, v := range snap.Vacations {
		v.ID = 0
		vacations[i] = v
	}

	if err := s.maps.Courses.Replace(snap.Courses); err != nil {
		return fmt.Errorf("restore courses: %w", err)
	}
	if err := s.maps.Rooms.Replace(snap.Rooms); err != nil {
		return fmt.Errorf("restore rooms: %w", err)
	}
	if err := s.data.ReplaceVacations(ctx, vacations); err != nil {
		return fmt.Errorf("restore vacations: %w", err)
	}
	if err := s.data.ReplaceManualExams(ctx, snap.ManualExams); err != nil {
		return fmt.Errorf("restore manual exams: %w", err)
	}
	log.Printf("✅ Restored backup from %s (%d courses, %d rooms, %d vacations, %d exams)",
		snap.CreatedAt.Format(time.RFC3339), len(snap.Courses), len(snap.Rooms), len(vacations), len(snap.ManualExams))
	return nil
}

// Save builds a snapshot and writes it to the configured storage.
func (s *Service) Save(ctx context.Context) (string, error) {
	if s.storage == nil {
		return "", errors.New("no backup storage configured")
	}
	snap, err := s.Build(ctx)
	if err != nil {
		return "", err
	}
	name := ObjectName(snap.CreatedAt)
	if err := s.storage.Put(ctx, name, snap); err != nil {
		return "", fmt.Errorf("store backup %s: %w", name, err)
	}
	log.Printf("✅ Backup %s written to %s", name, s.storage.Location())
	return name, nil
}

// Latest loads the most recent stored snapshot.
func (s *Service) Latest(ctx context.Context) (*Snapshot, string, error) {
	if s.storage == nil {
		return nil, "", errors.New("no backup storage configured")
	}
	names, err := s.storage.List(ctx)
	if err != nil {
		return nil, "", err
	}
	if len(names) == 0 {
		return nil, "", ErrNoBackups
	}
	name := names[len(names)-1]
	snap, err := s.storage.Get(ctx, name)
	if err != nil {
		return nil, "", err
	}
	return snap, name, nil
}

// ObjectName sorts by creation time; the uuid suffix keeps two backups of
// the same second apart.
func ObjectName(t time.Time) string {
	return fmt.Sprintf("%s%s-%s%s", objectPrefix, t.UTC().Format("20060102T150405Z"), uuid.NewString()[:8], objectSuffix)
}
