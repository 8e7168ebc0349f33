package model

import "time"

type EnrollmentStatus string

const (
	EnrollmentStatusApproved   EnrollmentStatus = "approved"   // Занимает место на курсе
	EnrollmentStatusWaitlisted EnrollmentStatus = "waitlisted" // В очереди, порядок по created_at
	EnrollmentStatusRejected   EnrollmentStatus = "rejected"   // Отклонено администратором, финальный
	EnrollmentStatusDropped    EnrollmentStatus = "dropped"    // Покинул курс, финальный
)

type Enrollment struct {
	ID        int64            `json:"id"`
	CourseID  int64            `json:"course_id"`
	UserID    int64            `json:"user_id"`
	Status    EnrollmentStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// IsActive checks if the enrollment still holds a seat or a place in the waitlist
func (e *Enrollment) IsActive() bool {
	return e.Status == EnrollmentStatusApproved || e.Status == EnrollmentStatusWaitlisted
}

// IsApproved checks if the enrollment is approved
func (e *Enrollment) IsApproved() bool {
	return e.Status == EnrollmentStatusApproved
}

// IsTerminal checks if no further transitions are allowed
func (e *Enrollment) IsTerminal() bool {
	return e.Status == EnrollmentStatusRejected || e.Status == EnrollmentStatusDropped
}
