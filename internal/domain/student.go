package domain

import (
	"time"
)

// Student represents an anonymous learner identity.
type Student struct {
	StudentID  string    `json:"student_id"`
	Username   string    `json:"username"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IdleFor reports whether the student has been inactive longer than d.
func (s *Student) IdleFor(d time.Duration) bool {
	return time.Since(s.LastSeenAt) > d
}
