package handlers

import (
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/Freeeeeet/lesson_scheduler/internal/scheduling"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
)

// Моменты времени в API - RFC3339, календарные дни - YYYY-MM-DD,
// время суток - HH:MM

type lessonDTO struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	TeacherID int64     `json:"teacherId"`
	StudentID int64     `json:"studentId"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Duration  int       `json:"duration"`
	Status    string    `json:"status"`
	SeriesID  string    `json:"seriesId,omitempty"`
}

func toLessonDTO(l *model.Lesson) lessonDTO {
	dto := lessonDTO{
		ID:        l.ID,
		Title:     l.Title,
		TeacherID: l.TeacherID,
		StudentID: l.StudentID,
		Start:     l.StartTime,
		End:       l.EndTime,
		Duration:  l.DurationMinutes(),
		Status:    string(l.Status),
	}
	if l.SeriesID != nil {
		dto.SeriesID = l.SeriesID.String()
	}
	return dto
}

func toLessonDTOs(list []*model.Lesson) []lessonDTO {
	out := make([]lessonDTO, 0, len(list))
	for _, l := range list {
		out = append(out, toLessonDTO(l))
	}
	return out
}

type createLessonRequest struct {
	Title     string    `json:"title"`
	TeacherID int64     `json:"teacherId"`
	StudentID int64     `json:"studentId"`
	Date      time.Time `json:"date"`
	Duration  int       `json:"duration"` // минуты
	Status    string    `json:"status"`
}

// patchLessonRequest: status, date и duration в любом сочетании
type patchLessonRequest struct {
	Status   *string    `json:"status"`
	Date     *time.Time `json:"date"`
	Duration *int       `json:"duration"`
}

type suggestRequest struct {
	TeacherID      int64      `json:"teacherId"`
	StudentID      int64      `json:"studentId"`
	DurationMin    int        `json:"durationMin"`
	MaxSuggestions int        `json:"maxSuggestions"`
	StepMinutes    int        `json:"stepMinutes"`
	BufferMinutes  int        `json:"bufferMinutes"`
	Days           int        `json:"days"`
	Algorithm      string     `json:"algorithm"`
	From           *time.Time `json:"from"`
}

func (r suggestRequest) toService() service.SuggestRequest {
	req := service.SuggestRequest{
		TeacherID:      r.TeacherID,
		StudentID:      r.StudentID,
		DurationMin:    r.DurationMin,
		MaxSuggestions: r.MaxSuggestions,
		StepMinutes:    r.StepMinutes,
		BufferMinutes:  r.BufferMinutes,
		Days:           r.Days,
		Algorithm:      r.Algorithm,
	}
	if r.From != nil {
		req.From = *r.From
	}
	return req
}

type suggestResponse struct {
	Suggestions []scheduling.Candidate `json:"suggestions"`
}

type recurringRequest struct {
	Title     string    `json:"title"`
	TeacherID int64     `json:"teacherId"`
	StudentID int64     `json:"studentId"`
	Duration  int       `json:"duration"` // минуты
	StartDate time.Time `json:"startDate"`
	Interval  int       `json:"interval"` // недели, 0 = 1
	Count     int       `json:"count"`
	ByDay     []int     `json:"byDay"`
}

type intervalDTO struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type skippedDTO struct {
	Candidate intervalDTO `json:"candidate"`
	Reason    string      `json:"reason"`
}

type recurringResponse struct {
	SeriesID string       `json:"seriesId"`
	Created  []lessonDTO  `json:"created"`
	Skipped  []skippedDTO `json:"skipped"`
}

func toRecurringResponse(res *service.SeriesResult) recurringResponse {
	resp := recurringResponse{
		SeriesID: res.Series.ID.String(),
		Created:  toLessonDTOs(res.Created),
		Skipped:  make([]skippedDTO, 0, len(res.Skipped)),
	}
	for _, s := range res.Skipped {
		resp.Skipped = append(resp.Skipped, skippedDTO{
			Candidate: intervalDTO{Start: s.Start, End: s.End},
			Reason:    string(s.Reason),
		})
	}
	return resp
}

type weeklyRuleDTO struct {
	DayOfWeek int             `json:"dayOfWeek"`
	Start     model.TimeOfDay `json:"start"`
	End       model.TimeOfDay `json:"end"`
}

type exceptionDTO struct {
	Date  string        `json:"date"`
	Slots []intervalDTO `json:"slots"`
}

type availabilityDTO struct {
	WeeklyRules []weeklyRuleDTO `json:"weeklyRules"`
	Exceptions  []exceptionDTO  `json:"exceptions"`
}

func (a availabilityDTO) toModel() ([]model.WeeklyRule, []model.AvailabilityException, error) {
	rules := make([]model.WeeklyRule, 0, len(a.WeeklyRules))
	for _, r := range a.WeeklyRules {
		rules = append(rules, model.WeeklyRule{DayOfWeek: r.DayOfWeek, StartTime: r.Start, EndTime: r.End})
	}

	exceptions := make([]model.AvailabilityException, 0, len(a.Exceptions))
	for _, e := range a.Exceptions {
		date, err := model.ParseDate(e.Date)
		if err != nil {
			return nil, nil, badRequestf("invalid exception date %q, expected YYYY-MM-DD", e.Date)
		}
		slots := make([]model.TimeRange, 0, len(e.Slots))
		for _, s := range e.Slots {
			slots = append(slots, model.TimeRange{Start: s.Start, End: s.End})
		}
		exceptions = append(exceptions, model.AvailabilityException{Date: date, Slots: slots})
	}
	return rules, exceptions, nil
}

func toAvailabilityDTO(av *model.Availability) availabilityDTO {
	dto := availabilityDTO{
		WeeklyRules: make([]weeklyRuleDTO, 0, len(av.WeeklyRules)),
		Exceptions:  make([]exceptionDTO, 0, len(av.Exceptions)),
	}
	for _, r := range av.WeeklyRules {
		dto.WeeklyRules = append(dto.WeeklyRules, weeklyRuleDTO{DayOfWeek: r.DayOfWeek, Start: r.StartTime, End: r.EndTime})
	}
	for _, e := range av.Exceptions {
		ex := exceptionDTO{Date: model.DateKey(e.Date), Slots: make([]intervalDTO, 0, len(e.Slots))}
		for _, s := range e.Slots {
			ex.Slots = append(ex.Slots, intervalDTO{Start: s.Start, End: s.End})
		}
		dto.Exceptions = append(dto.Exceptions, ex)
	}
	return dto
}

type freeResponse struct {
	Intervals []intervalDTO `json:"intervals"`
}

type holidayDTO struct {
	Date  string `json:"date"`
	Label string `json:"label"`
}

func toHolidayDTO(h model.Holiday) holidayDTO {
	return holidayDTO{Date: model.DateKey(h.Date), Label: h.Label}
}

type courseDTO struct {
	ID        int64  `json:"id"`
	TeacherID int64  `json:"teacherId"`
	Title     string `json:"title"`
	Capacity  *int   `json:"capacity"`
}

func toCourseDTO(c *model.Course) courseDTO {
	return courseDTO{ID: c.ID, TeacherID: c.TeacherID, Title: c.Title, Capacity: c.Capacity}
}

type createCourseRequest struct {
	TeacherID int64  `json:"teacherId"`
	Title     string `json:"title"`
	Capacity  *int   `json:"capacity"`
}

type capacityRequest struct {
	Capacity *int `json:"capacity"`
}

type enrollmentDTO struct {
	ID        int64     `json:"id"`
	CourseID  int64     `json:"courseId"`
	UserID    int64     `json:"userId"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

func toEnrollmentDTO(e *model.Enrollment) enrollmentDTO {
	return enrollmentDTO{ID: e.ID, CourseID: e.CourseID, UserID: e.UserID, Status: string(e.Status), CreatedAt: e.CreatedAt}
}

func toEnrollmentDTOs(list []*model.Enrollment) []enrollmentDTO {
	out := make([]enrollmentDTO, 0, len(list))
	for _, e := range list {
		out = append(out, toEnrollmentDTO(e))
	}
	return out
}

// enrollmentChangeResponse - изменённая запись и те, кого это продвинуло из очереди
type enrollmentChangeResponse struct {
	enrollmentDTO
	Promoted []enrollmentDTO `json:"promoted"`
}

type capacityResponse struct {
	courseDTO
	Promoted []enrollmentDTO `json:"promoted"`
}

type enrollRequest struct {
	CourseID int64 `json:"courseId"`
	UserID   int64 `json:"userId"`
}

type enrollmentStatusRequest struct {
	Status string `json:"status"`
}
