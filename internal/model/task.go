package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskRecord represents one in-flight fetch for a user
type TaskRecord struct {
	ID        uuid.UUID
	UserID    int64
	ChatID    int64
	Status    MessageRef // status message edited during progress reporting
	Lang      string     // language code used to render texts for this user
	URL       string
	Running   bool
	State     TaskState
	StartedAt time.Time
}

// NewTaskRecord creates a running record that owns the given status message
func NewTaskRecord(userID int64, status MessageRef, url, lang string, now time.Time) *TaskRecord {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &TaskRecord{
		ID:        id,
		UserID:    userID,
		ChatID:    status.ChatID,
		Status:    status,
		Lang:      lang,
		URL:       url,
		Running:   true,
		State:     TaskStateAdmitting,
		StartedAt: now,
	}
}

// Elapsed returns how long the task has been running at the given instant
func (r *TaskRecord) Elapsed(now time.Time) time.Duration {
	if r.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(r.StartedAt)
}

// CooldownEntry holds the earliest time a user may start a new task
type CooldownEntry struct {
	UserID      int64
	AvailableAt time.Time
}

// Active reports whether the cooldown still blocks new tasks at now
func (c CooldownEntry) Active(now time.Time) bool {
	return c.AvailableAt.After(now)
}

// Progress is a snapshot reported by the extraction engine
type Progress struct {
	Phase           Phase
	DownloadedBytes int64
	TotalBytes      int64
}

// Percent returns downloaded/total in the 0..100 range, or 0 if total is unknown
func (p Progress) Percent() int {
	if p.TotalBytes <= 0 {
		return 0
	}
	percent := int(float64(p.DownloadedBytes) / float64(p.TotalBytes) * 100)
	if percent > 100 {
		return 100
	}
	return percent
}

// MessageRef identifies a message within a chat
type MessageRef struct {
	ChatID    int64
	MessageID int64
}

// IsZero reports whether the reference points to no message
func (m MessageRef) IsZero() bool {
	return m.MessageID == 0
}

// Button is an inline keyboard button that opens a URL
type Button struct {
	Text string
	URL  string
}

// Inbound is a chat message delivered to the relay
type Inbound struct {
	UpdateID  int64
	MessageID int64
	ChatID    int64
	ChatType  string
	UserID    int64
	Lang      string
	Text      string
}

// IsPrivate reports whether the message came from a one-to-one chat
func (in Inbound) IsPrivate() bool {
	return in.ChatType == "private"
}

// Command returns the bot command name without slash and @botname suffix,
// or an empty string if the text is not a command
func (in Inbound) Command() string {
	text := strings.TrimSpace(in.Text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	name := strings.Fields(text)[0][1:]
	if idx := strings.Index(name, "@"); idx >= 0 {
		name = name[:idx]
	}
	return strings.ToLower(name)
}
