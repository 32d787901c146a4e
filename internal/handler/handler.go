package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"geoattend/internal/attendance"
	"geoattend/internal/auth"
	"geoattend/internal/geo"
	"geoattend/internal/queue"
	"geoattend/internal/tally"
)

// Handler exposes the attendance service over HTTP.
type Handler struct {
	svc     *attendance.Service
	events  queue.Publisher
	counter tally.Counter
	now     func() time.Time
}

// New creates a Handler. events and counter may be nil, which disables
// event publishing and the tally endpoint respectively.
func New(svc *attendance.Service, events queue.Publisher, counter tally.Counter, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{svc: svc, events: events, counter: counter, now: now}
}

// Register mounts the attendance routes on g, which must already run
// auth.Bearer.
func (h *Handler) Register(g *gin.RouterGroup) {
	a := g.Group("/attendance")

	a.POST("/session",
		auth.RequireRole("Access denied. Only faculty can create attendance sessions.", auth.RoleFaculty),
		h.CreateSession)
	a.POST("/mark",
		auth.RequireRole("Access denied. Only students can mark attendance.", auth.RoleStudent),
		h.MarkAttendance)
	a.GET("/student",
		auth.RequireRole("Access denied. Only students can view their attendance.", auth.RoleStudent),
		h.StudentAttendance)

	faculty := a.Group("/faculty/:courseCode",
		auth.RequireRole("Access denied. Only faculty can view course attendance.", auth.RoleFaculty, auth.RoleAdmin))
	faculty.GET("", h.CourseAttendance)
	faculty.GET("/today", h.CourseTally)
}

type createSessionRequest struct {
	CourseCode    string   `json:"courseCode"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	AllowedRadius *float64 `json:"allowedRadius"`
}

type sessionResponse struct {
	SessionID     string    `json:"sessionId"`
	SessionCode   string    `json:"sessionCode"`
	CourseCode    string    `json:"courseCode"`
	ExpiryTime    time.Time `json:"expiryTime"`
	CreatedBy     string    `json:"createdBy"`
	Latitude      *float64  `json:"latitude,omitempty"`
	Longitude     *float64  `json:"longitude,omitempty"`
	AllowedRadius *float64  `json:"allowedRadius,omitempty"`
}

// CreateSession opens an attendance window for the calling faculty member.
func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.AllowedRadius != nil && *req.AllowedRadius <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Allowed radius must be positive"})
		return
	}

	id, _ := auth.IdentityFrom(c)
	sess, err := h.svc.OpenSession(c.Request.Context(), attendance.CreateSessionInput{
		CourseCode: req.CourseCode,
		CreatedBy:  id.Subject,
		Origin:     geo.PointFrom(req.Latitude, req.Longitude),
		Radius:     req.AllowedRadius,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	resp := sessionResponse{
		SessionID:   sess.ID,
		SessionCode: sess.Code,
		CourseCode:  sess.CourseCode,
		ExpiryTime:  sess.ExpiresAt,
		CreatedBy:   sess.CreatedBy,
	}
	if sess.Origin != nil {
		resp.Latitude = &sess.Origin.Lat
		resp.Longitude = &sess.Origin.Lon
		resp.AllowedRadius = &sess.AllowedRadius
	}
	c.JSON(http.StatusOK, resp)
}

type markRequest struct {
	SessionID   string   `json:"sessionId"`
	SessionCode string   `json:"sessionCode"`
	CourseCode  string   `json:"courseCode"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

type recordResponse struct {
	ID           string    `json:"id"`
	StudentEmail string    `json:"studentEmail"`
	CourseCode   string    `json:"courseCode"`
	LectureDate  string    `json:"lectureDate"`
	Status       string    `json:"status"`
	MarkedAt     time.Time `json:"markedAt"`
	SessionID    string    `json:"sessionId"`
}

func toRecordResponse(r attendance.Record) recordResponse {
	return recordResponse{
		ID:           r.ID,
		StudentEmail: r.StudentID,
		CourseCode:   r.CourseCode,
		LectureDate:  r.LectureDate.Format(time.DateOnly),
		Status:       string(r.Status),
		MarkedAt:     r.MarkedAt,
		SessionID:    r.SessionID,
	}
}

func toRecordResponses(recs []attendance.Record) []recordResponse {
	out := make([]recordResponse, 0, len(recs))
	for _, r := range recs {
		out = append(out, toRecordResponse(r))
	}
	return out
}

// MarkAttendance admits the calling student into an active session.
func (h *Handler) MarkAttendance(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.CourseCode) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Course code is required"})
		return
	}

	ctx := c.Request.Context()
	id, _ := auth.IdentityFrom(c)
	rec, err := h.svc.Mark(ctx, attendance.MarkInput{
		SessionID:   strings.TrimSpace(req.SessionID),
		SessionCode: req.SessionCode,
		StudentID:   id.Subject,
		CourseCode:  req.CourseCode,
		Location:    geo.PointFrom(req.Latitude, req.Longitude),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	h.publishMarked(ctx, rec)
	c.JSON(http.StatusOK, toRecordResponse(rec))
}

// publishMarked is best effort; the record is already durable.
func (h *Handler) publishMarked(ctx context.Context, rec attendance.Record) {
	if h.events == nil {
		return
	}
	body, err := attendance.NewMarkedEvent(rec)
	if err == nil {
		err = h.events.Publish(ctx, queue.Message{Type: attendance.EventMarked, Body: body})
	}
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("record_id", rec.ID).Msg("queue publish failed")
	}
}

// StudentAttendance lists the caller's own records.
func (h *Handler) StudentAttendance(c *gin.Context) {
	id, _ := auth.IdentityFrom(c)
	recs, err := h.svc.StudentHistory(c.Request.Context(), id.Subject)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRecordResponses(recs))
}

// CourseAttendance lists every record for the path course.
func (h *Handler) CourseAttendance(c *gin.Context) {
	recs, err := h.svc.CourseHistory(c.Request.Context(), c.Param("courseCode"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRecordResponses(recs))
}

// CourseTally reports how many students were admitted today for the path
// course, as counted by the worker.
func (h *Handler) CourseTally(c *gin.Context) {
	if h.counter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "tally not configured"})
		return
	}
	course := c.Param("courseCode")
	day := attendance.DateOf(h.now())
	n, err := h.counter.Count(c.Request.Context(), course, day)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"courseCode":  course,
		"lectureDate": day.Format(time.DateOnly),
		"present":     n,
	})
}

func writeError(c *gin.Context, err error) {
	var oor *attendance.OutOfRangeError
	switch {
	case errors.As(err, &oor):
		c.JSON(http.StatusForbidden, gin.H{
			"error":         oor.Error(),
			"distance":      oor.Distance,
			"allowedRadius": oor.Limit,
		})
	case errors.Is(err, attendance.ErrLookupRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Either Session ID or Session Code must be provided."})
	case errors.Is(err, attendance.ErrCourseRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Course code is required"})
	case errors.Is(err, attendance.ErrSessionNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired session."})
	case errors.Is(err, attendance.ErrCourseMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Course code does not match the session."})
	case errors.Is(err, attendance.ErrLocationRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Location permission is required to mark attendance."})
	case errors.Is(err, attendance.ErrAlreadyMarked):
		c.JSON(http.StatusConflict, gin.H{"error": "Attendance already marked for this course today."})
	case errors.Is(err, attendance.ErrCodeSpaceExhausted):
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("session code allocation failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Could not allocate a session code, try again."})
	default:
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("request failed")
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
