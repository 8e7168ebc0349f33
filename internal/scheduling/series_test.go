package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
)

func TestExpandSeries(t *testing.T) {
	tests := []struct {
		name string
		spec SeriesSpec
		want []time.Time
	}{
		{
			name: "mon and thu every week from a monday",
			spec: SeriesSpec{Anchor: at(3, 10, 0), Duration: time.Hour, IntervalWeeks: 1, Count: 4, ByDay: []int{1, 4}},
			want: []time.Time{at(3, 10, 0), at(6, 10, 0), at(10, 10, 0), at(13, 10, 0)},
		},
		{
			name: "every other week",
			spec: SeriesSpec{Anchor: at(3, 10, 0), Duration: time.Hour, IntervalWeeks: 2, Count: 4, ByDay: []int{1, 4}},
			want: []time.Time{at(3, 10, 0), at(6, 10, 0), at(17, 10, 0), at(20, 10, 0)},
		},
		{
			name: "days before a midweek anchor are passed over",
			spec: SeriesSpec{Anchor: at(5, 9, 30), Duration: time.Hour, IntervalWeeks: 1, Count: 3, ByDay: []int{4, 1}},
			want: []time.Time{at(6, 9, 30), at(10, 9, 30), at(13, 9, 30)},
		},
		{
			name: "duplicate days collapse",
			spec: SeriesSpec{Anchor: at(2, 8, 0), Duration: time.Hour, IntervalWeeks: 1, Count: 2, ByDay: []int{0, 0}},
			want: []time.Time{at(2, 8, 0), at(9, 8, 0)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandSeries(tt.spec, time.UTC)
			require.NoError(t, err)
			require.Len(t, got, tt.spec.Count)
			for i, c := range got {
				assert.True(t, c.Start.Equal(tt.want[i]), "occurrence %d: got %s want %s", i, c.Start, tt.want[i])
				assert.Equal(t, tt.spec.Duration, c.Duration())
			}
		})
	}
}

func TestExpandSeriesKeepsWallClockAcrossOffsetChange(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata not available")
	}
	// Berlin moves to summer time on 2025-03-30
	anchor := time.Date(2025, 3, 24, 10, 0, 0, 0, loc)
	got, err := ExpandSeries(SeriesSpec{Anchor: anchor, Duration: time.Hour, IntervalWeeks: 1, Count: 2, ByDay: []int{1}}, loc)
	require.NoError(t, err)
	assert.Equal(t, 10, got[1].Start.In(loc).Hour())
	assert.Equal(t, 167*time.Hour, got[1].Start.Sub(got[0].Start))
}

func TestSeriesSpecValidate(t *testing.T) {
	valid := SeriesSpec{Anchor: at(3, 10, 0), Duration: time.Hour, IntervalWeeks: 1, Count: 1, ByDay: []int{1}}
	require.NoError(t, valid.Validate())

	broken := []func(s *SeriesSpec){
		func(s *SeriesSpec) { s.Anchor = time.Time{} },
		func(s *SeriesSpec) { s.Duration = 0 },
		func(s *SeriesSpec) { s.IntervalWeeks = 0 },
		func(s *SeriesSpec) { s.Count = 0 },
		func(s *SeriesSpec) { s.Count = MaxSeriesCount + 1 },
		func(s *SeriesSpec) { s.ByDay = nil },
		func(s *SeriesSpec) { s.ByDay = []int{7} },
	}
	for i, mutate := range broken {
		s := valid
		s.ByDay = append([]int(nil), valid.ByDay...)
		mutate(&s)
		assert.ErrorIs(t, s.Validate(), ErrInvalid, "case %d", i)
	}
}

func allDay() []Interval {
	return []Interval{{Start: at(1, 0, 0), End: at(31, 0, 0)}}
}

func TestSeriesValidator(t *testing.T) {
	spec := SeriesSpec{Anchor: at(3, 10, 0), Duration: time.Hour, IntervalWeeks: 1, Count: 4, ByDay: []int{1, 4}}
	candidates, err := ExpandSeries(spec, time.UTC)
	require.NoError(t, err)

	existing := []*model.Lesson{
		{ID: 7, TeacherID: teacherID, StudentID: 50, StartTime: at(6, 10, 30), EndTime: at(6, 11, 30), Status: model.LessonStatusScheduled},
	}

	v := &SeriesValidator{
		TeacherID:   teacherID,
		StudentID:   2,
		Resolver:    NewResolver(time.UTC),
		Holidays:    HolidaySet([]model.Holiday{holiday(13)}),
		Lessons:     existing,
		TeacherFree: allDay(),
		StudentFree: []Interval{{Start: at(1, 0, 0), End: at(10, 10, 30)}},
	}

	var created []Interval
	reasons := make(map[time.Time]SkipReason)
	for _, c := range candidates {
		if reason := v.Check(c); reason != "" {
			reasons[c.Start] = reason
			continue
		}
		v.Accept(c)
		created = append(created, c)
	}

	assert.Equal(t, []Interval{candidates[0]}, created)
	assert.Equal(t, map[time.Time]SkipReason{
		at(6, 10, 0):  SkipConflict,
		at(10, 10, 0): SkipStudentUnavailable,
		at(13, 10, 0): SkipHoliday,
	}, reasons)
	assert.Equal(t, spec.Count, len(created)+len(reasons))
}

func TestSeriesValidatorRejectsSelfOverlap(t *testing.T) {
	// 25 hour lessons on Monday and Tuesday overlap each other
	spec := SeriesSpec{Anchor: at(3, 10, 0), Duration: 25 * time.Hour, IntervalWeeks: 1, Count: 2, ByDay: []int{1, 2}}
	candidates, err := ExpandSeries(spec, time.UTC)
	require.NoError(t, err)

	v := &SeriesValidator{TeacherID: teacherID, StudentID: 2, TeacherFree: allDay(), StudentFree: allDay()}
	require.Equal(t, SkipReason(""), v.Check(candidates[0]))
	v.Accept(candidates[0])
	assert.Equal(t, SkipSeriesConflict, v.Check(candidates[1]))
}

func TestSeriesValidatorTeacherUnavailable(t *testing.T) {
	v := &SeriesValidator{TeacherID: teacherID, StudentID: 2, StudentFree: allDay()}
	assert.Equal(t, SkipTeacherUnavailable, v.Check(span(3, 10, 0, 11, 0)))
}

func TestSpan(t *testing.T) {
	got := Span([]Interval{span(6, 10, 0, 11, 0), span(3, 10, 0, 11, 0)})
	assert.Equal(t, Interval{Start: at(3, 10, 0), End: at(6, 11, 0)}, got)
	assert.Equal(t, Interval{}, Span(nil))
}
