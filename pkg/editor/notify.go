package editor

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Level is the severity of a notification
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
)

// Action is a follow-up the operator can take from a notification
type Action struct {
	Label  string `json:"label"`
	Target string `json:"target"`
}

// Notification is a fire-and-forget message for the operator
type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Title     string    `json:"title"`
	Message   string    `json:"message,omitempty"`
	Actions   []Action  `json:"actions,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notifier receives notifications. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// LogNotifier writes notifications to a zap logger
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(n Notification) {
	fields := []zap.Field{
		zap.String("notification_id", n.ID),
		zap.String("title", n.Title),
		zap.String("message", n.Message),
	}
	switch n.Level {
	case LevelError:
		l.logger.Error("notification", fields...)
	case LevelWarning:
		l.logger.Warn("notification", fields...)
	default:
		l.logger.Info("notification", fields...)
	}
}

// Inbox keeps the most recent notifications for polling clients
type Inbox struct {
	mu    sync.Mutex
	size  int
	items []Notification
}

// NewInbox creates an Inbox holding at most size notifications
func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = 50
	}
	return &Inbox{size: size}
}

func (b *Inbox) Notify(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, n)
	if over := len(b.items) - b.size; over > 0 {
		b.items = append([]Notification(nil), b.items[over:]...)
	}
}

// List returns the retained notifications, newest last
func (b *Inbox) List() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Notification(nil), b.items...)
}

// Fanout delivers every notification to each of its notifiers in order
type Fanout []Notifier

func (f Fanout) Notify(n Notification) {
	for _, nt := range f {
		nt.Notify(n)
	}
}

func newNotification(level Level, title, message string, actions ...Action) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Title:     title,
		Message:   message,
		Actions:   actions,
		CreatedAt: time.Now().UTC(),
	}
}
