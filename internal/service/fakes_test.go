package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/lesson_scheduler/internal/events"
	"github.com/Freeeeeet/lesson_scheduler/internal/lock"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository"
	"github.com/Freeeeeet/lesson_scheduler/internal/scheduling"
)

// memLessonStore mimics the exclusion constraints of the lessons table. Like
// them it only compares teacher with teacher and student with student
type memLessonStore struct {
	mu      sync.Mutex
	nextID  int64
	lessons map[int64]*model.Lesson
	failOn  int // Create returns errStore on this call number, 0 disables
	calls   int
	// readGate, when set, holds ListForParticipants until enough readers meet
	readGate *readGate
}

// readGate lets up to parties readers pass together. A reader that waits
// longer than timeout passes alone, so a serialized caller only pays a delay
type readGate struct {
	mu      sync.Mutex
	parties int
	arrived int
	open    chan struct{}
	timeout time.Duration
}

func newReadGate(parties int, timeout time.Duration) *readGate {
	return &readGate{parties: parties, open: make(chan struct{}), timeout: timeout}
}

func (g *readGate) wait() {
	g.mu.Lock()
	g.arrived++
	if g.arrived == g.parties {
		close(g.open)
	}
	g.mu.Unlock()

	select {
	case <-g.open:
	case <-time.After(g.timeout):
	}
}

// passthroughLocker grants every lock immediately
type passthroughLocker struct{}

func (passthroughLocker) Lock(context.Context, ...string) (func(), error) {
	return func() {}, nil
}

func newMemLessonStore() *memLessonStore {
	return &memLessonStore{lessons: make(map[int64]*model.Lesson)}
}

func (s *memLessonStore) overlapsLocked(l *model.Lesson) bool {
	if !l.Status.Occupies() {
		return false
	}
	for _, other := range s.lessons {
		if other.ID == l.ID || !other.Status.Occupies() {
			continue
		}
		sameTeacher := other.TeacherID == l.TeacherID
		sameStudent := other.StudentID == l.StudentID
		if (sameTeacher || sameStudent) &&
			scheduling.Overlaps(scheduling.LessonInterval(l), scheduling.LessonInterval(other)) {
			return true
		}
	}
	return false
}

func (s *memLessonStore) Create(_ context.Context, l *model.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.failOn != 0 && s.calls == s.failOn {
		return errStore
	}
	if s.overlapsLocked(l) {
		return repository.ErrOverlap
	}
	s.nextID++
	l.ID = s.nextID
	l.CreatedAt = time.Now()
	l.UpdatedAt = l.CreatedAt
	cp := *l
	s.lessons[l.ID] = &cp
	return nil
}

func (s *memLessonStore) GetByID(_ context.Context, id int64) (*model.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lessons[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (s *memLessonStore) ListForParticipants(_ context.Context, ids []int64, from, to time.Time) ([]*model.Lesson, error) {
	if s.readGate != nil {
		s.readGate.wait()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	window := scheduling.Interval{Start: from, End: to}
	var out []*model.Lesson
	for _, l := range s.lessons {
		involved := false
		for _, id := range ids {
			if l.Involves(id) {
				involved = true
			}
		}
		if involved && scheduling.Overlaps(window, scheduling.LessonInterval(l)) {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *memLessonStore) Update(_ context.Context, l *model.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lessons[l.ID]; !ok {
		return repository.ErrNotFound
	}
	if s.overlapsLocked(l) {
		return repository.ErrOverlap
	}
	l.UpdatedAt = time.Now()
	cp := *l
	s.lessons[l.ID] = &cp
	return nil
}

func (s *memLessonStore) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lessons[id]; !ok {
		return false, nil
	}
	delete(s.lessons, id)
	return true, nil
}

func (s *memLessonStore) CancelSeriesFrom(_ context.Context, seriesID uuid.UUID, from time.Time) ([]*model.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.Lesson
	for _, l := range s.lessons {
		if l.SeriesID == nil || *l.SeriesID != seriesID {
			continue
		}
		if l.Status != model.LessonStatusScheduled || l.StartTime.Before(from) {
			continue
		}
		l.Status = model.LessonStatusCancelled
		cp := *l
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memLessonStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lessons)
}

type memSeriesStore struct {
	mu     sync.Mutex
	series map[uuid.UUID]*model.LessonSeries
}

func newMemSeriesStore() *memSeriesStore {
	return &memSeriesStore{series: make(map[uuid.UUID]*model.LessonSeries)}
}

func (s *memSeriesStore) Create(_ context.Context, series *model.LessonSeries) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if series.ID == uuid.Nil {
		series.ID = uuid.New()
	}
	cp := *series
	s.series[series.ID] = &cp
	return nil
}

func (s *memSeriesStore) GetByID(_ context.Context, id uuid.UUID) (*model.LessonSeries, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	series, ok := s.series[id]
	if !ok {
		return nil, nil
	}
	cp := *series
	return &cp, nil
}

type memAvailabilityStore struct {
	mu   sync.Mutex
	data map[int64]*model.Availability
}

func newMemAvailabilityStore() *memAvailabilityStore {
	return &memAvailabilityStore{data: make(map[int64]*model.Availability)}
}

func (s *memAvailabilityStore) Replace(_ context.Context, av *model.Availability) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := &model.Availability{
		UserID:      av.UserID,
		WeeklyRules: append([]model.WeeklyRule{}, av.WeeklyRules...),
		Exceptions:  append([]model.AvailabilityException{}, av.Exceptions...),
	}
	for i := range cp.WeeklyRules {
		cp.WeeklyRules[i].UserID = av.UserID
	}
	for i := range cp.Exceptions {
		cp.Exceptions[i].UserID = av.UserID
	}
	s.data[av.UserID] = cp
	return nil
}

func (s *memAvailabilityStore) Get(_ context.Context, userID int64) (*model.Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	av, ok := s.data[userID]
	if !ok {
		return &model.Availability{
			UserID:      userID,
			WeeklyRules: []model.WeeklyRule{},
			Exceptions:  []model.AvailabilityException{},
		}, nil
	}
	return av, nil
}

type memHolidayStore struct {
	mu       sync.Mutex
	holidays map[string]model.Holiday
}

func newMemHolidayStore() *memHolidayStore {
	return &memHolidayStore{holidays: make(map[string]model.Holiday)}
}

func (s *memHolidayStore) Upsert(_ context.Context, h *model.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holidays[model.DateKey(h.Date)] = *h
	return nil
}

func (s *memHolidayStore) Delete(_ context.Context, date time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := model.DateKey(date)
	if _, ok := s.holidays[key]; !ok {
		return false, nil
	}
	delete(s.holidays, key)
	return true, nil
}

func (s *memHolidayStore) List(_ context.Context, from, to time.Time) ([]model.Holiday, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Holiday
	for _, h := range s.holidays {
		if !h.Date.Before(from) && !h.Date.After(to) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// memCourseStore serializes WithCourseLock with one mutex and rolls back
// the whole store when fn fails
type memCourseStore struct {
	mu          sync.Mutex
	nextCourse  int64
	nextEnroll  int64
	courses     map[int64]*model.Course
	enrollments map[int64]*model.Enrollment
	clock       time.Time
}

func newMemCourseStore() *memCourseStore {
	return &memCourseStore{
		courses:     make(map[int64]*model.Course),
		enrollments: make(map[int64]*model.Enrollment),
		clock:       time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *memCourseStore) CreateCourse(_ context.Context, c *model.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextCourse++
	c.ID = s.nextCourse
	c.CreatedAt = s.clock
	cp := *c
	s.courses[c.ID] = &cp
	return nil
}

func (s *memCourseStore) GetCourse(_ context.Context, id int64) (*model.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.courses[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *memCourseStore) GetEnrollment(_ context.Context, id int64) (*model.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.enrollments[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (s *memCourseStore) ListEnrollments(_ context.Context, courseID int64) ([]*model.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(courseID, func(*model.Enrollment) bool { return true }), nil
}

func (s *memCourseStore) listLocked(courseID int64, keep func(*model.Enrollment) bool) []*model.Enrollment {
	var out []*model.Enrollment
	for _, e := range s.enrollments {
		if e.CourseID == courseID && keep(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *memCourseStore) WithCourseLock(_ context.Context, courseID int64, fn func(tx repository.CourseTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.courses[courseID]
	if !ok {
		return fmt.Errorf("lock course %d: %w", courseID, repository.ErrCourseNotFound)
	}

	courses := make(map[int64]model.Course, len(s.courses))
	for id, c := range s.courses {
		courses[id] = *c
	}
	enrollments := make(map[int64]model.Enrollment, len(s.enrollments))
	for id, e := range s.enrollments {
		enrollments[id] = *e
	}
	nextEnroll := s.nextEnroll

	course := *c
	if err := fn(&memCourseTx{store: s, course: &course}); err != nil {
		s.courses = make(map[int64]*model.Course, len(courses))
		for id, c := range courses {
			c := c
			s.courses[id] = &c
		}
		s.enrollments = make(map[int64]*model.Enrollment, len(enrollments))
		for id, e := range enrollments {
			e := e
			s.enrollments[id] = &e
		}
		s.nextEnroll = nextEnroll
		return err
	}
	return nil
}

type memCourseTx struct {
	store  *memCourseStore
	course *model.Course
}

func (t *memCourseTx) Course() *model.Course { return t.course }

func (t *memCourseTx) Enrollment(_ context.Context, id int64) (*model.Enrollment, error) {
	e, ok := t.store.enrollments[id]
	if !ok || e.CourseID != t.course.ID {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (t *memCourseTx) ActiveEnrollment(_ context.Context, userID int64) (*model.Enrollment, error) {
	active := t.store.listLocked(t.course.ID, func(e *model.Enrollment) bool {
		return e.UserID == userID && e.IsActive()
	})
	if len(active) == 0 {
		return nil, nil
	}
	return active[0], nil
}

func (t *memCourseTx) CountApproved(context.Context) (int, error) {
	return len(t.store.listLocked(t.course.ID, (*model.Enrollment).IsApproved)), nil
}

func (t *memCourseTx) Waitlist(_ context.Context, limit int) ([]*model.Enrollment, error) {
	list := t.store.listLocked(t.course.ID, func(e *model.Enrollment) bool {
		return e.Status == model.EnrollmentStatusWaitlisted
	})
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (t *memCourseTx) InsertEnrollment(_ context.Context, e *model.Enrollment) error {
	s := t.store
	e.CourseID = t.course.ID
	if e.IsActive() {
		for _, other := range s.enrollments {
			if other.CourseID == e.CourseID && other.UserID == e.UserID && other.IsActive() {
				return repository.ErrDuplicate
			}
		}
	}
	s.nextEnroll++
	s.clock = s.clock.Add(time.Second)
	e.ID = s.nextEnroll
	e.CreatedAt = s.clock
	e.UpdatedAt = s.clock
	cp := *e
	s.enrollments[e.ID] = &cp
	return nil
}

func (t *memCourseTx) UpdateEnrollmentStatus(_ context.Context, e *model.Enrollment, status model.EnrollmentStatus) error {
	stored, ok := t.store.enrollments[e.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Status = status
	e.Status = status
	return nil
}

func (t *memCourseTx) UpdateCapacity(_ context.Context, capacity *int) error {
	t.store.courses[t.course.ID].Capacity = capacity
	t.course.Capacity = capacity
	return nil
}

func (s *memCourseStore) statusOf(id int64) model.EnrollmentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enrollments[id].Status
}

type testEnv struct {
	lessons      *memLessonStore
	series       *memSeriesStore
	availability *memAvailabilityStore
	holidays     *memHolidayStore
	recorder     *events.Recorder

	availabilitySvc *AvailabilityService
	lessonSvc       *LessonService
	seriesSvc       *SeriesService
	holidaySvc      *HolidayService
}

func newTestEnv() *testEnv {
	return newTestEnvWithLocker(lock.NewKeyedMutex())
}

func newTestEnvWithLocker(locker lock.Locker) *testEnv {
	logger := zap.NewNop()
	env := &testEnv{
		lessons:      newMemLessonStore(),
		series:       newMemSeriesStore(),
		availability: newMemAvailabilityStore(),
		holidays:     newMemHolidayStore(),
		recorder:     &events.Recorder{},
	}
	resolver := scheduling.NewResolver(time.UTC)

	env.availabilitySvc = NewAvailabilityService(env.availability, env.holidays, env.lessons, resolver, time.Second, logger)
	env.lessonSvc = NewLessonService(env.lessons, env.availabilitySvc, locker, env.recorder, time.Second, logger)
	env.seriesSvc = NewSeriesService(env.series, env.lessons, env.availabilitySvc, locker, env.recorder, time.Second, logger)
	env.holidaySvc = NewHolidayService(env.holidays, time.Second, logger)
	return env
}

// at returns a March 2025 UTC instant; 2025-03-03 is a Monday
func at(day, hour, minute int) time.Time {
	return time.Date(2025, 3, day, hour, minute, 0, 0, time.UTC)
}

func weekdayRule(weekday time.Weekday, h1, h2 int) model.WeeklyRule {
	return model.WeeklyRule{
		DayOfWeek: int(weekday),
		StartTime: model.NewTimeOfDay(h1, 0),
		EndTime:   model.NewTimeOfDay(h2, 0),
	}
}
