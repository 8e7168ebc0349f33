package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/lesson_scheduler/internal/events"
	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository"
)

func intPtr(v int) *int { return &v }

func newEnrollmentEnv(t *testing.T, capacity *int) (*EnrollmentService, *memCourseStore, *events.Recorder, int64) {
	t.Helper()

	store := newMemCourseStore()
	recorder := &events.Recorder{}
	svc := NewEnrollmentService(store, recorder, time.Second, zap.NewNop())

	course, err := svc.CreateCourse(context.Background(), 1, "Algebra", capacity)
	require.NoError(t, err)
	return svc, store, recorder, course.ID
}

func TestEnrollWaitlistAndPromotion(t *testing.T) {
	svc, store, recorder, courseID := newEnrollmentEnv(t, intPtr(1))
	ctx := context.Background()

	a, err := svc.Enroll(ctx, courseID, 10)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentStatusApproved, a.Status)

	b, err := svc.Enroll(ctx, courseID, 11)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentStatusWaitlisted, b.Status, "overflow is queued, not rejected")

	dropped, promoted, err := svc.Drop(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentStatusDropped, dropped.Status)
	require.Len(t, promoted, 1)
	assert.Equal(t, b.ID, promoted[0].ID)
	assert.Equal(t, model.EnrollmentStatusApproved, store.statusOf(b.ID))

	changes := recorder.OfType(events.EnrollmentStatusChanged)
	require.Len(t, changes, 4)
	assert.Equal(t, string(model.EnrollmentStatusDropped), changes[2].Status)
	assert.Equal(t, string(model.EnrollmentStatusApproved), changes[3].Status)
	assert.Equal(t, string(model.EnrollmentStatusWaitlisted), changes[3].PreviousStatus)
}

func TestEnrollRejectsSecondActiveEnrollment(t *testing.T) {
	svc, _, _, courseID := newEnrollmentEnv(t, intPtr(5))
	ctx := context.Background()

	first, err := svc.Enroll(ctx, courseID, 10)
	require.NoError(t, err)

	_, err = svc.Enroll(ctx, courseID, 10)
	assert.ErrorIs(t, err, ErrAlreadyEnrolled)

	_, _, err = svc.Drop(ctx, first.ID)
	require.NoError(t, err)

	again, err := svc.Enroll(ctx, courseID, 10)
	require.NoError(t, err, "dropped users may enroll again")
	assert.NotEqual(t, first.ID, again.ID)
}

func TestEnrollUnknownCourse(t *testing.T) {
	svc, _, _, _ := newEnrollmentEnv(t, nil)

	_, err := svc.Enroll(context.Background(), 404, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPromotionFollowsQueueOrder(t *testing.T) {
	svc, store, _, courseID := newEnrollmentEnv(t, intPtr(1))
	ctx := context.Background()

	seat, err := svc.Enroll(ctx, courseID, 10)
	require.NoError(t, err)

	var queued []*model.Enrollment
	for _, user := range []int64{11, 12, 13} {
		e, err := svc.Enroll(ctx, courseID, user)
		require.NoError(t, err)
		queued = append(queued, e)
	}

	_, promoted, err := svc.Drop(ctx, seat.ID)
	require.NoError(t, err)
	require.Len(t, promoted, 1)
	assert.Equal(t, queued[0].ID, promoted[0].ID)
	assert.Equal(t, model.EnrollmentStatusWaitlisted, store.statusOf(queued[1].ID))
	assert.Equal(t, model.EnrollmentStatusWaitlisted, store.statusOf(queued[2].ID))
}

func TestConcurrentEnrollNeverExceedsCapacity(t *testing.T) {
	svc, _, _, courseID := newEnrollmentEnv(t, intPtr(3))

	var wg sync.WaitGroup
	for user := int64(100); user < 120; user++ {
		wg.Add(1)
		go func(user int64) {
			defer wg.Done()
			_, err := svc.Enroll(context.Background(), courseID, user)
			assert.NoError(t, err)
		}(user)
	}
	wg.Wait()

	list, err := svc.ListEnrollments(context.Background(), courseID)
	require.NoError(t, err)
	require.Len(t, list, 20)

	approved := 0
	for _, e := range list {
		if e.IsApproved() {
			approved++
		}
	}
	assert.Equal(t, 3, approved)
}

func TestSetEnrollmentStatus(t *testing.T) {
	svc, store, _, courseID := newEnrollmentEnv(t, intPtr(1))
	ctx := context.Background()

	a, err := svc.Enroll(ctx, courseID, 10)
	require.NoError(t, err)
	b, err := svc.Enroll(ctx, courseID, 11)
	require.NoError(t, err)

	t.Run("approve over capacity", func(t *testing.T) {
		_, _, err := svc.SetStatus(ctx, b.ID, model.EnrollmentStatusApproved)
		assert.ErrorIs(t, err, ErrCapacityExceeded)
		assert.Equal(t, model.EnrollmentStatusWaitlisted, store.statusOf(b.ID))
	})

	t.Run("demotion frees the seat for the next in line", func(t *testing.T) {
		demoted, promoted, err := svc.SetStatus(ctx, a.ID, model.EnrollmentStatusWaitlisted)
		require.NoError(t, err)
		assert.Equal(t, model.EnrollmentStatusWaitlisted, demoted.Status)
		require.Len(t, promoted, 1)
		assert.Equal(t, b.ID, promoted[0].ID, "the demoted enrollment is not promoted back")
	})

	t.Run("reject is final", func(t *testing.T) {
		_, _, err := svc.SetStatus(ctx, a.ID, model.EnrollmentStatusRejected)
		require.NoError(t, err)

		_, _, err = svc.SetStatus(ctx, a.ID, model.EnrollmentStatusWaitlisted)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		e, promoted, err := svc.SetStatus(ctx, b.ID, model.EnrollmentStatusApproved)
		require.NoError(t, err)
		assert.Equal(t, model.EnrollmentStatusApproved, e.Status)
		assert.Empty(t, promoted)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, _, err := svc.SetStatus(ctx, b.ID, "pending")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown enrollment", func(t *testing.T) {
		_, _, err := svc.SetStatus(ctx, 999, model.EnrollmentStatusApproved)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSetCapacity(t *testing.T) {
	svc, store, _, courseID := newEnrollmentEnv(t, intPtr(1))
	ctx := context.Background()

	var all []*model.Enrollment
	for _, user := range []int64{10, 11, 12, 13} {
		e, err := svc.Enroll(ctx, courseID, user)
		require.NoError(t, err)
		all = append(all, e)
	}

	course, promoted, err := svc.SetCapacity(ctx, courseID, intPtr(3))
	require.NoError(t, err)
	assert.Equal(t, 3, *course.Capacity)
	require.Len(t, promoted, 2)
	assert.Equal(t, all[1].ID, promoted[0].ID)
	assert.Equal(t, all[2].ID, promoted[1].ID)
	assert.Equal(t, model.EnrollmentStatusWaitlisted, store.statusOf(all[3].ID))

	_, _, err = svc.SetCapacity(ctx, courseID, intPtr(2))
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	_, _, err = svc.SetCapacity(ctx, courseID, intPtr(-1))
	assert.ErrorIs(t, err, ErrValidation)

	stored, err := svc.GetCourse(ctx, courseID)
	require.NoError(t, err)
	assert.Equal(t, 3, *stored.Capacity, "rejected change leaves capacity alone")

	course, promoted, err = svc.SetCapacity(ctx, courseID, nil)
	require.NoError(t, err)
	assert.Nil(t, course.Capacity)
	require.Len(t, promoted, 1, "lifting the limit approves the whole queue")
	assert.Equal(t, all[3].ID, promoted[0].ID)
	assert.Equal(t, model.EnrollmentStatusApproved, store.statusOf(all[3].ID))
}

func TestUnlimitedCourseApprovesEveryone(t *testing.T) {
	svc, _, _, courseID := newEnrollmentEnv(t, nil)

	for user := int64(1); user <= 5; user++ {
		e, err := svc.Enroll(context.Background(), courseID, user+10)
		require.NoError(t, err)
		assert.Equal(t, model.EnrollmentStatusApproved, e.Status)
	}
}

func TestUnlimitedCourseRefusesWaitlist(t *testing.T) {
	svc, store, recorder, courseID := newEnrollmentEnv(t, nil)
	ctx := context.Background()

	e, err := svc.Enroll(ctx, courseID, 10)
	require.NoError(t, err)
	before := len(recorder.Events())

	_, _, err = svc.SetStatus(ctx, e.ID, model.EnrollmentStatusWaitlisted)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, model.EnrollmentStatusApproved, store.statusOf(e.ID))
	assert.Len(t, recorder.Events(), before)
}

func TestWithCourseNotFoundSource(t *testing.T) {
	svc, _, _, courseID := newEnrollmentEnv(t, intPtr(1))
	ctx := context.Background()

	tests := []struct {
		name     string
		courseID int64
		fn       func(repository.CourseTx) error
		contains string
		excludes string
	}{
		{
			name:     "missing course",
			courseID: 404,
			fn:       func(repository.CourseTx) error { return nil },
			contains: "course 404",
		},
		{
			name:     "missing enrollment inside the lock",
			courseID: courseID,
			fn: func(repository.CourseTx) error {
				return fmt.Errorf("update enrollment 77: %w", repository.ErrNotFound)
			},
			contains: "enrollment 77",
			excludes: fmt.Sprintf("course %d", courseID),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.withCourse(ctx, tt.courseID, tt.fn)
			require.ErrorIs(t, err, ErrNotFound)
			assert.Contains(t, err.Error(), tt.contains)
			if tt.excludes != "" {
				assert.NotContains(t, err.Error(), tt.excludes)
			}
		})
	}
}

func TestCreateCourseValidation(t *testing.T) {
	svc := NewEnrollmentService(newMemCourseStore(), &events.Recorder{}, time.Second, zap.NewNop())
	ctx := context.Background()

	_, err := svc.CreateCourse(ctx, 0, "Algebra", nil)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.CreateCourse(ctx, 1, "", nil)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.CreateCourse(ctx, 1, "Algebra", intPtr(-2))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.GetCourse(ctx, 7)
	assert.ErrorIs(t, err, ErrNotFound)
}
