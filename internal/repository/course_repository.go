package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository/base"
)

const enrollmentColumns = `id, course_id, user_id, status, created_at, updated_at`

// CourseTx операции над курсом и его записями внутри транзакции,
// удерживающей блокировку строки курса
type CourseTx interface {
	Course() *model.Course
	Enrollment(ctx context.Context, id int64) (*model.Enrollment, error)
	ActiveEnrollment(ctx context.Context, userID int64) (*model.Enrollment, error)
	CountApproved(ctx context.Context) (int, error)
	// Waitlist возвращает до limit ожидающих в порядке created_at, id
	Waitlist(ctx context.Context, limit int) ([]*model.Enrollment, error)
	InsertEnrollment(ctx context.Context, e *model.Enrollment) error
	UpdateEnrollmentStatus(ctx context.Context, e *model.Enrollment, status model.EnrollmentStatus) error
	UpdateCapacity(ctx context.Context, capacity *int) error
}

// CourseRepository управляет курсами и записями на них
type CourseRepository struct {
	*base.Repository
	logger *zap.Logger
}

// NewCourseRepository создаёт новый репозиторий курсов
func NewCourseRepository(pool *pgxpool.Pool, logger *zap.Logger) *CourseRepository {
	return &CourseRepository{
		Repository: base.NewRepository(pool),
		logger:     logger,
	}
}

func scanCourse(row pgx.Row) (*model.Course, error) {
	course := &model.Course{}
	if err := row.Scan(&course.ID, &course.TeacherID, &course.Title, &course.Capacity, &course.CreatedAt); err != nil {
		return nil, err
	}
	return course, nil
}

func scanEnrollment(row pgx.Row) (*model.Enrollment, error) {
	e := &model.Enrollment{}
	if err := row.Scan(&e.ID, &e.CourseID, &e.UserID, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return e, nil
}

// CreateCourse создаёт курс
func (r *CourseRepository) CreateCourse(ctx context.Context, course *model.Course) error {
	query := `
		INSERT INTO courses (teacher_id, title, capacity)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := r.QueryRow(ctx, query, course.TeacherID, course.Title, course.Capacity).
		Scan(&course.ID, &course.CreatedAt)
	if err != nil {
		return fmt.Errorf("create course: %w", err)
	}

	return nil
}

// GetCourse получает курс по ID
func (r *CourseRepository) GetCourse(ctx context.Context, id int64) (*model.Course, error) {
	course, err := scanCourse(r.QueryRow(ctx,
		`SELECT id, teacher_id, title, capacity, created_at FROM courses WHERE id = $1`, id))
	if base.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get course by id: %w", err)
	}
	return course, nil
}

// GetEnrollment получает запись по ID без блокировки
func (r *CourseRepository) GetEnrollment(ctx context.Context, id int64) (*model.Enrollment, error) {
	e, err := scanEnrollment(r.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id))
	if base.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get enrollment by id: %w", err)
	}
	return e, nil
}

// ListEnrollments возвращает все записи курса в порядке очереди
func (r *CourseRepository) ListEnrollments(ctx context.Context, courseID int64) ([]*model.Enrollment, error) {
	rows, err := r.Query(ctx, `
		SELECT `+enrollmentColumns+`
		FROM enrollments
		WHERE course_id = $1
		ORDER BY created_at, id
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return collectEnrollments(rows)
}

func collectEnrollments(rows pgx.Rows) ([]*model.Enrollment, error) {
	defer rows.Close()

	var out []*model.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enrollments: %w", err)
	}
	return out, nil
}

// WithCourseLock открывает транзакцию, блокирует строку курса (SELECT ... FOR UPDATE)
// и выполняет fn. Все изменения записей одного курса проходят строго по очереди.
// Если курса нет - base.ErrCourseNotFound
func (r *CourseRepository) WithCourseLock(ctx context.Context, courseID int64, fn func(tx CourseTx) error) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		course, err := scanCourse(tx.QueryRow(ctx, `
			SELECT id, teacher_id, title, capacity, created_at
			FROM courses
			WHERE id = $1
			FOR UPDATE
		`, courseID))
		if base.IsNotFound(err) {
			return fmt.Errorf("lock course %d: %w", courseID, base.ErrCourseNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock course: %w", err)
		}

		return fn(&courseTx{tx: tx, course: course})
	})
}

type courseTx struct {
	tx     pgx.Tx
	course *model.Course
}

func (c *courseTx) Course() *model.Course {
	return c.course
}

func (c *courseTx) Enrollment(ctx context.Context, id int64) (*model.Enrollment, error) {
	e, err := scanEnrollment(c.tx.QueryRow(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1 AND course_id = $2`, id, c.course.ID))
	if base.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	return e, nil
}

func (c *courseTx) ActiveEnrollment(ctx context.Context, userID int64) (*model.Enrollment, error) {
	e, err := scanEnrollment(c.tx.QueryRow(ctx, `
		SELECT `+enrollmentColumns+`
		FROM enrollments
		WHERE course_id = $1 AND user_id = $2 AND status IN ('approved', 'waitlisted')
	`, c.course.ID, userID))
	if base.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active enrollment: %w", err)
	}
	return e, nil
}

func (c *courseTx) CountApproved(ctx context.Context) (int, error) {
	var n int
	err := c.tx.QueryRow(ctx,
		`SELECT count(*) FROM enrollments WHERE course_id = $1 AND status = 'approved'`, c.course.ID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count approved: %w", err)
	}
	return n, nil
}

func (c *courseTx) Waitlist(ctx context.Context, limit int) ([]*model.Enrollment, error) {
	rows, err := c.tx.Query(ctx, `
		SELECT `+enrollmentColumns+`
		FROM enrollments
		WHERE course_id = $1 AND status = 'waitlisted'
		ORDER BY created_at, id
		LIMIT $2
	`, c.course.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("get waitlist: %w", err)
	}
	return collectEnrollments(rows)
}

func (c *courseTx) InsertEnrollment(ctx context.Context, e *model.Enrollment) error {
	e.CourseID = c.course.ID
	err := c.tx.QueryRow(ctx, `
		INSERT INTO enrollments (course_id, user_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, e.CourseID, e.UserID, e.Status).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert enrollment: %w", base.MapError(err))
	}
	return nil
}

func (c *courseTx) UpdateEnrollmentStatus(ctx context.Context, e *model.Enrollment, status model.EnrollmentStatus) error {
	err := c.tx.QueryRow(ctx, `
		UPDATE enrollments SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, e.ID, status).Scan(&e.UpdatedAt)
	if base.IsNotFound(err) {
		return fmt.Errorf("update enrollment %d: %w", e.ID, base.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", base.MapError(err))
	}
	e.Status = status
	return nil
}

func (c *courseTx) UpdateCapacity(ctx context.Context, capacity *int) error {
	if _, err := c.tx.Exec(ctx, `UPDATE courses SET capacity = $2 WHERE id = $1`, c.course.ID, capacity); err != nil {
		return fmt.Errorf("update capacity: %w", err)
	}
	c.course.Capacity = capacity
	return nil
}
