// Package domain defines the persisted models for threads and messages.
// The types are mapped with GORM for the SQL backends, serialized as JSON for
// the flat-file backend and HTTP responses, and implement query.Record so the
// collection query engine can filter, sort, and paginate them.
package domain

import "time"

// Sender values accepted for Message.Sender.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// Thread groups related messages under a title.
//
// Fields:
//   - ID: stable UUID primary key (char(36)), immutable.
//   - Title: human-readable title; this is the text searched by the engine.
//   - CreatedAt: creation time (UTC), immutable.
//   - UpdatedAt: last modification time (UTC).
type Thread struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Title     string    `json:"title"      gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Thread.
func (Thread) TableName() string { return "threads" }

// RecordID implements query.Record.
func (t Thread) RecordID() string { return t.ID }

// RecordText implements query.Record.
func (t Thread) RecordText() string { return t.Title }

// RecordTime implements query.Record.
func (t Thread) RecordTime() time.Time { return t.CreatedAt }

// Message is a single entry within a thread.
//
// Fields:
//   - ID: UUID primary key (char(36)), immutable.
//   - ThreadID: owning thread; opaque to the query engine.
//   - Sender: "user" or "bot".
//   - Text: free-form payload.
//   - CreatedAt: creation time (UTC), immutable.
//   - UpdatedAt: last modification time (UTC).
type Message struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	ThreadID  string    `json:"thread_id"  gorm:"type:char(36);not null;index:idx_thread_msgs,priority:1"`
	Sender    string    `json:"sender"     gorm:"type:varchar(16);not null;check:sender IN ('user','bot')"`
	Text      string    `json:"text"       gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_thread_msgs,priority:2"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// RecordID implements query.Record.
func (m Message) RecordID() string { return m.ID }

// RecordText implements query.Record.
func (m Message) RecordText() string { return m.Text }

// RecordTime implements query.Record.
func (m Message) RecordTime() time.Time { return m.CreatedAt }

// ValidSender reports whether s is an accepted Message.Sender value.
func ValidSender(s string) bool {
	return s == SenderUser || s == SenderBot
}
