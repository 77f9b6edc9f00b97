package models

import (
	"sort"
	"time"
)

// Message is a chat message inside a skill session. Seq is the store's
// insertion sequence and breaks ties between equal timestamps.
type Message struct {
	ID         string    `db:"id" json:"id"`
	SessionID  string    `db:"session_id" json:"session_id"`
	SenderID   string    `db:"sender_id" json:"sender_id"`
	SenderName string    `db:"sender_name" json:"sender_name"`
	Text       string    `db:"text" json:"text"`
	Seq        int64     `db:"seq" json:"seq"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// SortMessages orders msgs by server timestamp, then insertion sequence.
func SortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].Seq < msgs[j].Seq
	})
}
