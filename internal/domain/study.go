package domain

import (
	"fmt"
	"strings"
	"time"
)

// Layouts for calendar dates and wall-clock times stored as text.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// NormalizeClock parses an "H:MM" or "HH:MM" string and returns it as "HH:MM".
func NormalizeClock(s string) (string, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return t.Format(ClockLayout), nil
}

// NormalizeDate parses a "YYYY-MM-DD" string and returns it unchanged in canonical form.
func NormalizeDate(s string) (string, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t.Format(DateLayout), nil
}

// DefaultSubjectColor is used when a subject is created without a color.
const DefaultSubjectColor = "#3B82F6"

// Subject is a study subject owned by a user. Default subjects cannot be deleted.
type Subject struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskStatus is the completion state of a task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskCompleted, TaskFailed:
		return true
	}
	return false
}

// Next returns the status that follows s in the manual toggle cycle
// pending -> completed -> failed -> pending.
func (s TaskStatus) Next() TaskStatus {
	switch s {
	case TaskPending:
		return TaskCompleted
	case TaskCompleted:
		return TaskFailed
	default:
		return TaskPending
	}
}

// Task is a scheduled study block on a given day.
type Task struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	SubjectID    *int64     `json:"subject_id,omitempty"`
	SubjectName  string     `json:"subject_name,omitempty"`
	SubjectColor string     `json:"subject_color,omitempty"`
	TaskDate     string     `json:"task_date"`
	StartTime    string     `json:"start_time"`
	EndTime      string     `json:"end_time"`
	Content      string     `json:"content"`
	Status       TaskStatus `json:"status"`
	AlarmEnabled bool       `json:"alarm_enabled"`
	AlarmTime    string     `json:"alarm_time,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TaskPatch is a partial task update. Nil fields are left untouched.
type TaskPatch struct {
	SubjectID    *int64      `json:"subject_id,omitempty"`
	TaskDate     *string     `json:"task_date,omitempty"`
	StartTime    *string     `json:"start_time,omitempty"`
	EndTime      *string     `json:"end_time,omitempty"`
	Content      *string     `json:"content,omitempty"`
	Status       *TaskStatus `json:"status,omitempty"`
	AlarmEnabled *bool       `json:"alarm_enabled,omitempty"`
	AlarmTime    *string     `json:"alarm_time,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.SubjectID == nil && p.TaskDate == nil && p.StartTime == nil &&
		p.EndTime == nil && p.Content == nil && p.Status == nil &&
		p.AlarmEnabled == nil && p.AlarmTime == nil
}

// Normalize validates a new task and rewrites its date and times into
// canonical form. An empty status becomes pending.
func (t *Task) Normalize() error {
	var err error
	if t.TaskDate, err = NormalizeDate(t.TaskDate); err != nil {
		return NewValidationError("task_date", err.Error())
	}
	if t.StartTime, err = NormalizeClock(t.StartTime); err != nil {
		return NewValidationError("start_time", err.Error())
	}
	if t.EndTime, err = NormalizeClock(t.EndTime); err != nil {
		return NewValidationError("end_time", err.Error())
	}
	if t.StartTime >= t.EndTime {
		return NewValidationError("end_time", "must be after start_time")
	}
	t.Content = strings.TrimSpace(t.Content)
	if t.Content == "" {
		return NewValidationError("content", "must not be empty")
	}
	if t.Status == "" {
		t.Status = TaskPending
	}
	if !t.Status.Valid() {
		return NewValidationError("status", fmt.Sprintf("unknown status %q", t.Status))
	}
	if t.AlarmTime != "" {
		if t.AlarmTime, err = NormalizeClock(t.AlarmTime); err != nil {
			return NewValidationError("alarm_time", err.Error())
		}
	}
	return nil
}

// Normalize validates the supplied fields of p in place.
func (p *TaskPatch) Normalize() error {
	if p.TaskDate != nil {
		d, err := NormalizeDate(*p.TaskDate)
		if err != nil {
			return NewValidationError("task_date", err.Error())
		}
		p.TaskDate = &d
	}
	for _, f := range []struct {
		name string
		v    **string
	}{{"start_time", &p.StartTime}, {"end_time", &p.EndTime}, {"alarm_time", &p.AlarmTime}} {
		if *f.v == nil || (f.name == "alarm_time" && **f.v == "") {
			continue
		}
		c, err := NormalizeClock(**f.v)
		if err != nil {
			return NewValidationError(f.name, err.Error())
		}
		*f.v = &c
	}
	if p.StartTime != nil && p.EndTime != nil && *p.StartTime >= *p.EndTime {
		return NewValidationError("end_time", "must be after start_time")
	}
	if p.Content != nil {
		c := strings.TrimSpace(*p.Content)
		if c == "" {
			return NewValidationError("content", "must not be empty")
		}
		p.Content = &c
	}
	if p.Status != nil && !p.Status.Valid() {
		return NewValidationError("status", fmt.Sprintf("unknown status %q", *p.Status))
	}
	return nil
}

// Countdown tracks time left until a named event such as an exam.
type Countdown struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	Name          string    `json:"name"`
	TargetTime    time.Time `json:"target_time"`
	NotifyEnabled bool      `json:"notify_enabled"`
	CreatedAt     time.Time `json:"created_at"`
}

// Remaining is the time left on a countdown, split into whole units.
type Remaining struct {
	Days      int64 `json:"remaining_days"`
	Hours     int64 `json:"remaining_hours"`
	Minutes   int64 `json:"remaining_minutes"`
	IsExpired bool  `json:"is_expired"`
}

// Remaining computes what is left of the countdown at now.
func (c *Countdown) Remaining(now time.Time) Remaining {
	d := c.TargetTime.Sub(now)
	if d <= 0 {
		return Remaining{IsExpired: true}
	}
	mins := int64(d / time.Minute)
	return Remaining{
		Days:    mins / (24 * 60),
		Hours:   (mins / 60) % 24,
		Minutes: mins % 60,
	}
}

// FocusStatus is the lifecycle state of a focus (pomodoro) session.
type FocusStatus string

const (
	FocusRunning   FocusStatus = "running"
	FocusCompleted FocusStatus = "completed"
	FocusCancelled FocusStatus = "cancelled"
)

// FocusSession records one timed study interval.
type FocusSession struct {
	ID              int64       `json:"id"`
	UserID          int64       `json:"user_id"`
	SubjectID       *int64      `json:"subject_id,omitempty"`
	SubjectName     string      `json:"subject_name,omitempty"`
	TaskID          *int64      `json:"task_id,omitempty"`
	StartTime       time.Time   `json:"start_time"`
	EndTime         *time.Time  `json:"end_time,omitempty"`
	DurationMinutes int         `json:"duration_minutes"`
	Status          FocusStatus `json:"status"`
}

// Review is a user's end-of-day reflection. There is at most one per user per date.
type Review struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	ReviewDate    string    `json:"review_date"`
	Feelings      string    `json:"feelings"`
	Difficulties  string    `json:"difficulties"`
	AISuggestions string    `json:"ai_suggestions,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// StudyPhase is the preparation stage a user is in.
type StudyPhase string

const (
	PhaseFoundation StudyPhase = "foundation"
	PhaseStrengthen StudyPhase = "strengthen"
	PhaseSprint     StudyPhase = "sprint"
)

// Valid reports whether p is a known phase.
func (p StudyPhase) Valid() bool {
	switch p {
	case PhaseFoundation, PhaseStrengthen, PhaseSprint:
		return true
	}
	return false
}

// Label is the human description of the phase used in generated prompts.
func (p StudyPhase) Label() string {
	switch p {
	case PhaseStrengthen:
		return "强化阶段 - 重点做题和总结方法"
	case PhaseSprint:
		return "冲刺阶段 - 查漏补缺和模拟考试"
	default:
		return "基础阶段 - 重点打牢基础知识"
	}
}

// Preference holds a user's study habits. There is at most one per user.
type Preference struct {
	UserID        int64      `json:"user_id"`
	DailyHours    float64    `json:"daily_study_hours"`
	StartTime     string     `json:"preferred_start_time"`
	EndTime       string     `json:"preferred_end_time"`
	BreakStart    string     `json:"lunch_break_start"`
	BreakEnd      string     `json:"lunch_break_end"`
	Phase         StudyPhase `json:"current_phase"`
	FocusSubjects []string   `json:"focus_subjects"`
	WeakSubjects  []string   `json:"weak_subjects"`
	ExamDate      string     `json:"exam_date,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// DefaultPreference is used for users that never saved preferences.
func DefaultPreference(userID int64) *Preference {
	return &Preference{
		UserID:        userID,
		DailyHours:    8,
		StartTime:     "07:00",
		EndTime:       "22:00",
		BreakStart:    "12:00",
		BreakEnd:      "14:00",
		Phase:         PhaseFoundation,
		FocusSubjects: []string{},
		WeakSubjects:  []string{},
	}
}

// Validate checks the text-encoded fields of a preference.
func (p *Preference) Validate() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"preferred_start_time", &p.StartTime},
		{"preferred_end_time", &p.EndTime},
		{"lunch_break_start", &p.BreakStart},
		{"lunch_break_end", &p.BreakEnd},
	}
	for _, f := range fields {
		v, err := NormalizeClock(*f.value)
		if err != nil {
			return NewValidationError(f.name, err.Error())
		}
		*f.value = v
	}
	if p.StartTime >= p.EndTime {
		return NewValidationError("preferred_end_time", "must be after preferred_start_time")
	}
	if p.BreakStart > p.BreakEnd {
		return NewValidationError("lunch_break_end", "must not be before lunch_break_start")
	}
	if p.DailyHours <= 0 || p.DailyHours > 24 {
		return NewValidationError("daily_study_hours", "must be between 0 and 24")
	}
	if p.Phase == "" {
		p.Phase = PhaseFoundation
	}
	if !p.Phase.Valid() {
		return NewValidationError("current_phase", "unknown phase")
	}
	if p.ExamDate != "" {
		d, err := NormalizeDate(p.ExamDate)
		if err != nil {
			return NewValidationError("exam_date", err.Error())
		}
		p.ExamDate = d
	}
	if p.FocusSubjects == nil {
		p.FocusSubjects = []string{}
	}
	if p.WeakSubjects == nil {
		p.WeakSubjects = []string{}
	}
	return nil
}

// Stats aggregates study activity over a date range. Rates are percentages.
type Stats struct {
	TotalStudyMinutes   int64             `json:"total_study_minutes"`
	TotalTasks          int64             `json:"total_tasks"`
	CompletedTasks      int64             `json:"completed_tasks"`
	CompletionRate      float64           `json:"completion_rate"`
	SubjectDistribution []SubjectMinutes  `json:"subject_distribution"`
	DailyTrend          []DailyCompletion `json:"daily_trend"`
}

// SubjectMinutes is the completed focus time spent on one subject.
type SubjectMinutes struct {
	SubjectID    int64  `json:"subject_id"`
	SubjectName  string `json:"subject_name"`
	SubjectColor string `json:"subject_color"`
	TotalMinutes int64  `json:"total_minutes"`
}

// DailyCompletion is the task completion for one day.
type DailyCompletion struct {
	Date           string  `json:"date"`
	TotalTasks     int64   `json:"total_tasks"`
	CompletedTasks int64   `json:"completed_tasks"`
	CompletionRate float64 `json:"completion_rate"`
}
