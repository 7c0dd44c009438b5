package cron

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/in-nis/untis-back/internal/backup"
	"github.com/in-nis/untis-back/internal/mapping"
	"github.com/in-nis/untis-back/internal/untis"
)

const jobTimeout = 5 * time.Minute

// Provider is the part of untis.Router the jobs use.
type Provider interface {
	FetchWeek(ctx context.Context, weekStart time.Time, grade string) ([]untis.Lesson, error)
	AvailableGrades() []string
}

type Jobs struct {
	Provider Provider
	Seen     *mapping.Seen
	Mappings *mapping.Mappings
	DataDir  string
	Backups  *backup.Service
	Location *time.Location

	now func() time.Time
}

func (j *Jobs) clock() time.Time {
	if j.now != nil {
		return j.now()
	}
	return time.Now()
}

// weeks returns the Monday of the current and of the next week.
func (j *Jobs) weeks() []time.Time {
	loc := j.Location
	if loc == nil {
		loc = time.UTC
	}
	now := j.clock().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	monday := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
	return []time.Time{monday, monday.AddDate(0, 0, 7)}
}

// RefreshSeen fetches the current and the next week of every grade, records
// their labels and rewrites the raw subject and room lists. A grade that
// fails is logged and skipped.
func (j *Jobs) RefreshSeen(ctx context.Context) error {
	failed := 0
	grades := j.Provider.AvailableGrades()
	for _, grade := range grades {
		for _, week := range j.weeks() {
			lessons, err := j.Provider.FetchWeek(ctx, week, grade)
			if err != nil {
				log.Printf("❌ Failed to fetch week %s of %s: %v", week.Format("2006-01-02"), grade, err)
				failed++
				continue
			}
			j.Seen.Record(grade, lessons)
		}
	}

	files, err := mapping.ExportSeen(j.DataDir, j.Seen, j.Mappings.Rooms)
	if err != nil {
		return fmt.Errorf("export seen labels: %w", err)
	}
	log.Printf("✅ Seen labels refreshed: %d grades, %d labels, %d files written", len(grades), j.Seen.Len(), len(files))
	if failed > 0 {
		return fmt.Errorf("%d week fetches failed", failed)
	}
	return nil
}

func (j *Jobs) Backup(ctx context.Context) error {
	_, err := j.Backups.Save(ctx)
	return err
}

func run(name string, job func(context.Context) error) func() {
	return func() {
		log.Printf("Running %s job...", name)
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := job(ctx); err != nil {
			log.Printf("❌ %s job: %v", name, err)
		}
	}
}

// StartJobs schedules the seen-label refresh and, when a backup service is
// set, the backup job. An empty spec disables a job.
func StartJobs(j *Jobs, seenSpec, backupSpec string) (*cron.Cron, error) {
	opts := []cron.Option{cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))}
	if j.Location != nil {
		opts = append(opts, cron.WithLocation(j.Location))
	}
	c := cron.New(opts...)

	if seenSpec != "" {
		if _, err := c.AddFunc(seenSpec, run("seen-label", j.RefreshSeen)); err != nil {
			return nil, fmt.Errorf("schedule seen-label job %q: %w", seenSpec, err)
		}
	}
	if backupSpec != "" && j.Backups != nil {
		if _, err := c.AddFunc(backupSpec, run("backup", j.Backup)); err != nil {
			return nil, fmt.Errorf("schedule backup job %q: %w", backupSpec, err)
		}
	}

	c.Start()
	return c, nil
}
