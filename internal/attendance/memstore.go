package attendance

import (
	"context"
	"sort"
	"sync"
	"time"
)

type recordKey struct {
	student string
	course  string
	date    time.Time
}

// MemoryStore is a process-local Store for development and tests.
// Data is lost on restart.
type MemoryStore struct {
	mu sync.RWMutex

	sessions map[string]Session // id -> session
	codes    map[string]string  // code -> id of the newest session holding it
	records  []Record
	keys     map[recordKey]struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		codes:    make(map[string]string),
		keys:     make(map[recordKey]struct{}),
	}
}

func (m *MemoryStore) SaveSession(ctx context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.codes[s.Code]; ok {
		if prev, ok := m.sessions[id]; ok && prev.ActiveAt(s.CreatedAt) {
			return ErrCodeInUse
		}
	}
	m.sessions[s.ID] = cloneSession(s)
	m.codes[s.Code] = s.ID
	return nil
}

func (m *MemoryStore) FindSessionByCode(ctx context.Context, code string, now time.Time) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.codes[code]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return m.activeSession(id, now)
}

func (m *MemoryStore) FindSessionByID(ctx context.Context, id string, now time.Time) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.activeSession(id, now)
}

func (m *MemoryStore) activeSession(id string, now time.Time) (Session, error) {
	s, ok := m.sessions[id]
	if !ok || !s.ActiveAt(now) {
		return Session{}, ErrSessionNotFound
	}
	return cloneSession(s), nil
}

func (m *MemoryStore) PurgeExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var purged int64
	for id, s := range m.sessions {
		if s.ExpiresAt.Before(before) {
			delete(m.sessions, id)
			if m.codes[s.Code] == id {
				delete(m.codes, s.Code)
			}
			purged++
		}
	}
	return purged, nil
}

func (m *MemoryStore) SaveAttendance(ctx context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := recordKey{student: rec.StudentID, course: rec.CourseCode, date: rec.LectureDate}
	if _, exists := m.keys[key]; exists {
		return Record{}, ErrConstraintViolation
	}
	m.keys[key] = struct{}{}
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *MemoryStore) FindAttendanceByStudent(ctx context.Context, studentID string) ([]Record, error) {
	return m.filter(func(r Record) bool { return r.StudentID == studentID }), nil
}

func (m *MemoryStore) FindAttendanceByCourse(ctx context.Context, courseCode string) ([]Record, error) {
	return m.filter(func(r Record) bool { return r.CourseCode == courseCode }), nil
}

func (m *MemoryStore) filter(keep func(Record) bool) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, r := range m.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].LectureDate.Equal(out[j].LectureDate) {
			return out[i].LectureDate.After(out[j].LectureDate)
		}
		return out[i].MarkedAt.After(out[j].MarkedAt)
	})
	return out
}

func cloneSession(s Session) Session {
	if s.Origin != nil {
		origin := *s.Origin
		s.Origin = &origin
	}
	return s
}
