package models

import "time"

// RequestStatus is the lifecycle state of a SkillRequest.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusRejected RequestStatus = "rejected"
)

// Valid reports whether s is a known request status.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusAccepted, RequestStatusRejected:
		return true
	}
	return false
}

// Decision is the recipient's answer to a pending request.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// Status maps a decision to the request status it produces.
func (d Decision) Status() (RequestStatus, bool) {
	switch d {
	case DecisionAccept:
		return RequestStatusAccepted, true
	case DecisionReject:
		return RequestStatusRejected, true
	}
	return "", false
}

// SkillRequest is a proposal from one user to exchange a skill they want
// to learn for one they can teach.
type SkillRequest struct {
	ID             string        `db:"id" json:"id"`
	FromUser       string        `db:"from_user" json:"from_user"`
	FromUserName   string        `db:"from_user_name" json:"from_user_name"`
	ToUser         string        `db:"to_user" json:"to_user"`
	ToUserName     string        `db:"to_user_name" json:"to_user_name"`
	SkillRequested string        `db:"skill_requested" json:"skill_requested"`
	SkillOffered   string        `db:"skill_offered" json:"skill_offered"`
	Status         RequestStatus `db:"status" json:"status"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	RespondedAt    *time.Time    `db:"responded_at" json:"responded_at,omitempty"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// IsPending reports whether the request still awaits a response.
func (r SkillRequest) IsPending() bool {
	return r.Status == RequestStatusPending
}

// Involves reports whether userID is the requester or the recipient.
func (r SkillRequest) Involves(userID string) bool {
	return r.FromUser == userID || r.ToUser == userID
}

// MatchesStatus reports whether the request has one of statuses. An empty
// list matches everything.
func (r SkillRequest) MatchesStatus(statuses ...RequestStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if r.Status == s {
			return true
		}
	}
	return false
}
