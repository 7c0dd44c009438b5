package backup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/in-nis/untis-back/internal/mapping"
	"github.com/in-nis/untis-back/internal/models"
)

type memSource struct {
	vacations []models.Vacation
	exams     []models.ManualExam
	fail      error
}

func (m *memSource) ListVacations(context.Context) ([]models.Vacation, error) {
	return m.vacations, m.fail
}

func (m *memSource) ListManualExams(context.Context, string) ([]models.ManualExam, error) {
	return m.exams, m.fail
}

func (m *memSource) ReplaceVacations(_ context.Context, vs []models.Vacation) error {
	m.vacations = vs
	return nil
}

func (m *memSource) ReplaceManualExams(_ context.Context, es []models.ManualExam) error {
	m.exams = es
	return nil
}

func newTestService(t *testing.T, src *memSource) (*Service, *mapping.Mappings, *LocalStorage) {
	t.Helper()
	maps, err := mapping.OpenDir(t.TempDir(), "course_mapping.txt", "rooms_mapping.txt")
	require.NoError(t, err)
	storage, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	s := NewService(src, maps, storage)
	s.now = func() time.Time { return time.Date(2024, 3, 4, 2, 0, 0, 0, time.UTC) }
	return s, maps, storage
}

func TestBuild(t *testing.T) {
	src := &memSource{
		vacations: []models.Vacation{{ID: 4, Title: "Osterferien", StartDate: "2024-03-25", EndDate: "2024-04-06"}},
	}
	s, maps, _ := newTestService(t, src)
	_, err := maps.Courses.Set("Mathematik GK", "Mathe GK")
	require.NoError(t, err)

	snap, err := s.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Version, snap.Version)
	assert.Equal(t, map[string]string{"Mathematik GK": "Mathe GK"}, snap.Courses)
	assert.Empty(t, snap.Rooms)
	assert.Len(t, snap.Vacations, 1)
	assert.NotNil(t, snap.ManualExams)
}

func TestBuildPropagatesErrors(t *testing.T) {
	s, _, _ := newTestService(t, &memSource{fail: errors.New("db down")})
	_, err := s.Build(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestSaveAndRestoreLatest(t *testing.T) {
	src := &memSource{
		vacations: []models.Vacation{{ID: 9, Title: "Herbstferien", StartDate: "2024-10-14", EndDate: "2024-10-26"}},
		exams: []models.ManualExam{{
			ID: "2b1c", Grade: "EF", Date: "2024-03-12", Start: "08:00", End: "09:30", Subject: "Mathematik",
		}},
	}
	s, maps, storage := newTestService(t, src)
	_, err := maps.Rooms.Set("R104", "Biolabor")
	require.NoError(t, err)

	name, err := s.Save(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, `^backup-20240304T020000Z-[0-9a-f]{8}\.json$`, name)

	names, err := storage.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{name}, names)

	// Change everything, then restore.
	_, err = maps.Rooms.Delete("R104")
	require.NoError(t, err)
	src.vacations, src.exams = nil, nil

	snap, latest, err := s.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, name, latest)
	require.NoError(t, s.Restore(context.Background(), snap))

	assert.Equal(t, "Biolabor", maps.Rooms.Label("r104"))
	require.Len(t, src.vacations, 1)
	assert.Zero(t, src.vacations[0].ID)
	require.Len(t, src.exams, 1)
	assert.Equal(t, "2b1c", src.exams[0].ID)
}

func TestLatestWithoutBackups(t *testing.T) {
	s, _, _ := newTestService(t, &memSource{})
	_, _, err := s.Latest(context.Background())
	assert.ErrorIs(t, err, ErrNoBackups)
}

func TestRestoreRejectsInvalidSnapshots(t *testing.T) {
	cases := map[string]Snapshot{
		"future version": {Version: Version + 1},
		"bad vacation":   {Version: Version, Vacations: []models.Vacation{{Title: "x", StartDate: "04.03.2024"}}},
		"bad exam":       {Version: Version, ManualExams: []models.ManualExam{{ID: "a", Grade: "EF", Date: "2024-03-12", Subject: "M", Start: "8"}}},
		"duplicate exam": {Version: Version, ManualExams: []models.ManualExam{
			{ID: "a", Grade: "EF", Date: "2024-03-12", Subject: "M"},
			{ID: "a", Grade: "EF", Date: "2024-03-13", Subject: "D"},
		}},
	}
	for name, snap := range cases {
		t.Run(name, func(t *testing.T) {
			src := &memSource{vacations: []models.Vacation{{Title: "keep", StartDate: "2024-01-01", EndDate: "2024-01-01"}}}
			s, _, _ := newTestService(t, src)
			err := s.Restore(context.Background(), &snap)
			assert.ErrorIs(t, err, ErrBadSnapshot)
			assert.Len(t, src.vacations, 1, "nothing replaced")
		})
	}
}

func TestValidateAssignsMissingExamIDs(t *testing.T) {
	snap := Snapshot{Version: Version, ManualExams: []models.ManualExam{{Grade: "ef", Date: "2024-03-12", Subject: "Mathe"}}}
	require.NoError(t, snap.Validate())
	assert.Len(t, snap.ManualExams[0].ID, 36)
	assert.Equal(t, "EF", snap.ManualExams[0].Grade)
}

func TestLocalStorageRejectsForeignNames(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	_, err = storage.Get(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, ErrBadSnapshot)
}
