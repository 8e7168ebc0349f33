package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Freeeeeet/lesson_scheduler/internal/app"
	"github.com/Freeeeeet/lesson_scheduler/internal/config"
	"github.com/Freeeeeet/lesson_scheduler/internal/events"
	"github.com/Freeeeeet/lesson_scheduler/internal/lock"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository"
	"github.com/Freeeeeet/lesson_scheduler/internal/scheduling"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
)

// Context передаётся во все команды через kong
type Context struct {
	Ctx    context.Context
	Config *config.Config
	Pool   *pgxpool.Pool
	Logger *zap.Logger
	Out    io.Writer
}

func (c *Context) availability() *service.AvailabilityService {
	return service.NewAvailabilityService(
		repository.NewAvailabilityRepository(c.Pool, c.Logger),
		repository.NewHolidayRepository(c.Pool),
		repository.NewLessonRepository(c.Pool, c.Logger),
		scheduling.NewResolver(c.Config.Location()),
		c.Config.DBTimeout,
		c.Logger,
	)
}

func (c *Context) migrator() (*app.Migrator, error) {
	return app.NewMigrator(c.Pool, c.Logger)
}

type MigrateUpCmd struct{}

func (cmd *MigrateUpCmd) Run(c *Context) error {
	m, err := c.migrator()
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Run(c.Ctx)
}

type MigrateDownCmd struct{}

func (cmd *MigrateDownCmd) Run(c *Context) error {
	m, err := c.migrator()
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Down(c.Ctx); err != nil {
		return err
	}
	version, err := m.Version(c.Ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "rolled back, version %d\n", version)
	return nil
}

type MigrateVersionCmd struct{}

func (cmd *MigrateVersionCmd) Run(c *Context) error {
	m, err := c.migrator()
	if err != nil {
		return err
	}
	defer m.Close()
	version, err := m.Version(c.Ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.Out, version)
	return nil
}

type FreeCmd struct {
	User int64     `arg:"" help:"User ID."`
	From time.Time `help:"Range start (RFC3339)." required:""`
	To   time.Time `help:"Range end (RFC3339)." required:""`
}

func (cmd *FreeCmd) Run(c *Context) error {
	free, err := c.availability().FreeIntervals(c.Ctx, cmd.User, cmd.From, cmd.To)
	if err != nil {
		return err
	}
	if len(free) == 0 {
		fmt.Fprintln(c.Out, "no free time")
		return nil
	}
	for _, iv := range free {
		fmt.Fprintf(c.Out, "%s  %s\n", iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
	}
	return nil
}

type SuggestCmd struct {
	Teacher   int64     `help:"Teacher user ID." required:""`
	Student   int64     `help:"Student user ID." required:""`
	Duration  int       `help:"Lesson duration in minutes." default:"60"`
	Max       int       `help:"Maximum number of suggestions." default:"5"`
	Step      int       `help:"Grid step in minutes." default:"15"`
	Buffer    int       `help:"Free minutes required around the lesson." default:"0"`
	Days      int       `help:"Search horizon in days." default:"7"`
	Algorithm string    `help:"Search strategy." enum:"greedy,backtracking" default:"greedy"`
	From      time.Time `help:"Search start (RFC3339), now by default."`
}

func (cmd *SuggestCmd) Run(c *Context) error {
	lessons := service.NewLessonService(
		repository.NewLessonRepository(c.Pool, c.Logger),
		c.availability(),
		lock.NewKeyedMutex(),
		events.NewLogPublisher(c.Logger),
		c.Config.DBTimeout,
		c.Logger,
	)

	candidates, err := lessons.SuggestSlots(c.Ctx, service.SuggestRequest{
		TeacherID:      cmd.Teacher,
		StudentID:      cmd.Student,
		DurationMin:    cmd.Duration,
		MaxSuggestions: cmd.Max,
		StepMinutes:    cmd.Step,
		BufferMinutes:  cmd.Buffer,
		Days:           cmd.Days,
		Algorithm:      cmd.Algorithm,
		From:           cmd.From,
	})
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		fmt.Fprintln(c.Out, "no common free slots")
		return nil
	}
	for i, cand := range candidates {
		fmt.Fprintf(c.Out, "%d. %s - %s\n", i+1, cand.Start.Format(time.RFC3339), cand.End.Format("15:04"))
	}
	return nil
}
