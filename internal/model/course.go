package model

import "time"

type Course struct {
	ID        int64     `json:"id"`
	TeacherID int64     `json:"teacher_id"`
	Title     string    `json:"title"`
	Capacity  *int      `json:"capacity"` // nil = без ограничений
	CreatedAt time.Time `json:"created_at"`
}

// HasSeatFor checks if one more approved enrollment fits given the current approved count
func (c *Course) HasSeatFor(approved int) bool {
	if c.Capacity == nil {
		return true
	}
	return approved < *c.Capacity
}

// FreeSeats returns how many approvals still fit, or -1 for unlimited courses
func (c *Course) FreeSeats(approved int) int {
	if c.Capacity == nil {
		return -1
	}
	if free := *c.Capacity - approved; free > 0 {
		return free
	}
	return 0
}
