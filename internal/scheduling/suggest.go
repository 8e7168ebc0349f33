package scheduling

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const (
	AlgorithmGreedy       = "greedy"
	AlgorithmBacktracking = "backtracking"
)

// Constraints bound a slot search.
type Constraints struct {
	From           time.Time
	Duration       time.Duration
	Step           time.Duration
	Buffer         time.Duration
	MaxSuggestions int

	// Location decides what counts as an hour or half-hour boundary. Nil means UTC.
	Location *time.Location
}

func (c Constraints) Validate() error {
	switch {
	case c.Duration <= 0:
		return fmt.Errorf("%w: duration must be positive", ErrInvalid)
	case c.Step <= 0:
		return fmt.Errorf("%w: step must be positive", ErrInvalid)
	case c.Buffer < 0:
		return fmt.Errorf("%w: buffer must not be negative", ErrInvalid)
	case c.MaxSuggestions <= 0:
		return fmt.Errorf("%w: max suggestions must be positive", ErrInvalid)
	}
	return nil
}

// Fits reports whether a lesson starting at t, padded by Buffer on both sides,
// lies entirely inside window.
func (c Constraints) Fits(window Interval, t time.Time) bool {
	if t.Before(c.From) {
		return false
	}
	padded := Interval{Start: t.Add(-c.Buffer), End: t.Add(c.Duration + c.Buffer)}
	return window.Contains(padded)
}

// firstGridPoint returns the earliest point of the From-anchored grid not before lo
func (c Constraints) firstGridPoint(lo time.Time) time.Time {
	diff := lo.Sub(c.From)
	if diff <= 0 {
		return c.From
	}
	steps := (diff + c.Step - 1) / c.Step
	return c.From.Add(steps * c.Step)
}

func (c Constraints) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Candidate is a proposed lesson slot. It carries no reservation.
type Candidate struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Strategy searches mutually free windows for candidate start times.
// Every implementation returns only candidates that pass Constraints.Fits
// for one of the given windows.
type Strategy interface {
	Name() string
	Search(ctx context.Context, windows []Interval, c Constraints) ([]Candidate, error)
}

// StrategyByName resolves an algorithm name; empty means greedy.
func StrategyByName(name string) (Strategy, error) {
	switch name {
	case "", AlgorithmGreedy:
		return Greedy{}, nil
	case AlgorithmBacktracking:
		return Backtracking{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %q", ErrInvalid, name)
	}
}

// Suggest intersects both participants' free time and runs the strategy over it.
func Suggest(ctx context.Context, s Strategy, teacherFree, studentFree []Interval, c Constraints) ([]Candidate, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	mutual := IntersectAll(Merge(teacherFree), Merge(studentFree))
	return s.Search(ctx, mutual, c)
}

// Greedy walks a grid anchored at From window by window and returns the
// earliest fitting starts first.
type Greedy struct{}

func (Greedy) Name() string { return AlgorithmGreedy }

func (Greedy) Search(ctx context.Context, windows []Interval, c Constraints) ([]Candidate, error) {
	var out []Candidate
	for _, w := range Merge(windows) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for t := c.firstGridPoint(w.Start.Add(c.Buffer)); c.Fits(w, t); t = t.Add(c.Step) {
			out = append(out, Candidate{Start: t, End: t.Add(c.Duration)})
			if len(out) == c.MaxSuggestions {
				return out, nil
			}
		}
	}
	return out, nil
}

// Backtracking explores the same grid plus hour and half-hour boundaries, but
// tries the most round start times of a window first. A point that does not
// fit is dropped and the next preferred point of the same window is tried
// before the search moves on.
type Backtracking struct{}

func (Backtracking) Name() string { return AlgorithmBacktracking }

func (Backtracking) Search(ctx context.Context, windows []Interval, c Constraints) ([]Candidate, error) {
	var out []Candidate
	for _, w := range Merge(windows) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, t := range preferredPoints(w, c) {
			if !c.Fits(w, t) {
				continue
			}
			out = append(out, Candidate{Start: t, End: t.Add(c.Duration)})
			if len(out) == c.MaxSuggestions {
				return out, nil
			}
		}
	}
	return out, nil
}

// preferredPoints lists every start time worth trying inside w, best first.
func preferredPoints(w Interval, c Constraints) []time.Time {
	loc := c.location()
	seen := make(map[int64]bool)
	var points []time.Time
	add := func(t time.Time) {
		if seen[t.UnixNano()] {
			return
		}
		seen[t.UnixNano()] = true
		points = append(points, t)
	}

	for t := c.firstGridPoint(w.Start); t.Before(w.End); t = t.Add(c.Step) {
		add(t)
	}

	ws := w.Start.In(loc)
	for t := time.Date(ws.Year(), ws.Month(), ws.Day(), ws.Hour(), 0, 0, 0, loc); t.Before(w.End); t = t.Add(30 * time.Minute) {
		if !t.Before(w.Start) && !t.Before(c.From) {
			add(t)
		}
	}

	sort.Slice(points, func(i, j int) bool {
		ri, rj := alignmentRank(points[i], loc), alignmentRank(points[j], loc)
		if ri != rj {
			return ri < rj
		}
		return points[i].Before(points[j])
	})
	return points
}

// alignmentRank: 0 full hour, 1 half hour, 2 quarter hour, 3 anything else
func alignmentRank(t time.Time, loc *time.Location) int {
	t = t.In(loc)
	if t.Second() != 0 || t.Nanosecond() != 0 {
		return 3
	}
	switch m := t.Minute(); {
	case m == 0:
		return 0
	case m == 30:
		return 1
	case m%15 == 0:
		return 2
	default:
		return 3
	}
}
