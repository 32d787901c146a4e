package attendance

import (
	"encoding/json"
	"time"
)

// EventMarked is the queue message type published after an admission.
const EventMarked = "attendance.marked"

// MarkedEvent is the payload of an EventMarked message.
type MarkedEvent struct {
	RecordID    string    `json:"record_id"`
	SessionID   string    `json:"session_id"`
	StudentID   string    `json:"student_id"`
	CourseCode  string    `json:"course_code"`
	LectureDate string    `json:"lecture_date"`
	MarkedAt    time.Time `json:"marked_at"`
}

// NewMarkedEvent encodes rec as an EventMarked payload.
func NewMarkedEvent(rec Record) ([]byte, error) {
	return json.Marshal(MarkedEvent{
		RecordID:    rec.ID,
		SessionID:   rec.SessionID,
		StudentID:   rec.StudentID,
		CourseCode:  rec.CourseCode,
		LectureDate: rec.LectureDate.Format(time.DateOnly),
		MarkedAt:    rec.MarkedAt,
	})
}

// DecodeMarkedEvent parses an EventMarked payload.
func DecodeMarkedEvent(body []byte) (MarkedEvent, error) {
	var evt MarkedEvent
	err := json.Unmarshal(body, &evt)
	return evt, err
}
