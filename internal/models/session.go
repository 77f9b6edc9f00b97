package models

import (
	"time"

	"github.com/lib/pq"
)

// SessionStatus is the lifecycle state of a SkillSession.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
)

// Role is a participant's side of a session.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleLearner Role = "learner"
)

// SkillSession is an exchange created once a request is accepted. The
// teacher is the user who accepted; TeacherTeaches is what the requester
// originally asked to learn.
type SkillSession struct {
	ID             string         `db:"id" json:"id"`
	RequestID      string         `db:"request_id" json:"request_id"`
	Participants   pq.StringArray `db:"participants" json:"participants"`
	TeacherUserID  string         `db:"teacher_user_id" json:"teacher_user_id"`
	LearnerUserID  string         `db:"learner_user_id" json:"learner_user_id"`
	TeacherName    string         `db:"teacher_name" json:"teacher_name"`
	LearnerName    string         `db:"learner_name" json:"learner_name"`
	TeacherTeaches string         `db:"teacher_teaches" json:"teacher_teaches"`
	LearnerTeaches string         `db:"learner_teaches" json:"learner_teaches"`
	Status         SessionStatus  `db:"status" json:"status"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	CompletedAt    *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
}

// IsActive reports whether the session still accepts messages.
func (s SkillSession) IsActive() bool {
	return s.Status == SessionStatusActive
}

// HasParticipant reports whether userID is one of the two participants.
func (s SkillSession) HasParticipant(userID string) bool {
	return userID != "" && (s.TeacherUserID == userID || s.LearnerUserID == userID)
}

// RoleOf returns the role userID plays in s. Non-participants get "".
func RoleOf(s SkillSession, userID string) Role {
	switch {
	case userID == "":
		return ""
	case userID == s.TeacherUserID:
		return RoleTeacher
	case userID == s.LearnerUserID:
		return RoleLearner
	}
	return ""
}

// SessionView is a session labelled from one participant's point of view.
type SessionView struct {
	SkillSession
	Role          Role   `json:"role"`
	PartnerID     string `json:"partner_id"`
	PartnerName   string `json:"partner_name"`
	SkillTeaching string `json:"skill_teaching"`
	SkillLearning string `json:"skill_learning"`
}

// ViewFor labels s for userID. ok is false when userID is not a
// participant.
func (s SkillSession) ViewFor(userID string) (SessionView, bool) {
	view := SessionView{SkillSession: s, Role: RoleOf(s, userID)}
	switch view.Role {
	case RoleTeacher:
		view.PartnerID = s.LearnerUserID
		view.PartnerName = s.LearnerName
		view.SkillTeaching = s.TeacherTeaches
		view.SkillLearning = s.LearnerTeaches
	case RoleLearner:
		view.PartnerID = s.TeacherUserID
		view.PartnerName = s.TeacherName
		view.SkillTeaching = s.LearnerTeaches
		view.SkillLearning = s.TeacherTeaches
	default:
		return SessionView{}, false
	}
	return view, true
}

// NameOf returns the participant's display name recorded on the session.
func (s SkillSession) NameOf(userID string) string {
	switch RoleOf(s, userID) {
	case RoleTeacher:
		return s.TeacherName
	case RoleLearner:
		return s.LearnerName
	}
	return ""
}
