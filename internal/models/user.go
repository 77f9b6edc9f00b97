package models

import "strings"

// User is a directory record as consumed by the exchange core.
type User struct {
	ID          string   `json:"id" firestore:"uid"`
	DisplayName string   `json:"display_name" firestore:"displayName"`
	Email       string   `json:"email,omitempty" firestore:"email"`
	PhotoURL    string   `json:"photo_url,omitempty" firestore:"photoURL"`
	TeachSkills []string `json:"teach_skills" firestore:"teachSkills"`
	LearnSkills []string `json:"learn_skills" firestore:"learnSkills"`
}

// Name returns the display name, falling back to the email.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}

// SkillKind selects which skill list a directory query matches.
type SkillKind string

const (
	SkillKindTeach SkillKind = "teach"
	SkillKindLearn SkillKind = "learn"
)

// UserQuery filters directory lookups.
type UserQuery struct {
	Skill     string
	Kind      SkillKind
	ExcludeID string
	Limit     int
}

// Matches applies q to u. Skill comparison is case-insensitive.
func (q UserQuery) Matches(u User) bool {
	if q.ExcludeID != "" && u.ID == q.ExcludeID {
		return false
	}
	if q.Skill == "" {
		return true
	}
	lists := [][]string{u.TeachSkills, u.LearnSkills}
	switch q.Kind {
	case SkillKindTeach:
		lists = lists[:1]
	case SkillKindLearn:
		lists = lists[1:]
	}
	for _, list := range lists {
		for _, skill := range list {
			if strings.EqualFold(strings.TrimSpace(skill), strings.TrimSpace(q.Skill)) {
				return true
			}
		}
	}
	return false
}
