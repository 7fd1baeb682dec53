package model

import "time"

// EventType — вид перехода жизненного цикла
type EventType string

const (
	EventCreated   EventType = "created"
	EventClaimed   EventType = "claimed"
	EventReleased  EventType = "released"
	EventCompleted EventType = "completed"
)

func (e EventType) Valid() bool {
	switch e {
	case EventCreated, EventClaimed, EventReleased, EventCompleted:
		return true
	}
	return false
}

// TaskEvent — неизменяемая запись о принятом переходе.
// ID задается вызывающей стороной (uuid) и ключует идемпотентность правил.
type TaskEvent struct {
	ID        string    `json:"id"`
	TaskID    int64     `json:"task_id"`
	OrgID     int64     `json:"org_id"`
	ProjectID int64     `json:"project_id"`
	ActorID   int64     `json:"actor_id"`
	Type      EventType `json:"event_type"`
	CreatedAt time.Time `json:"created_at"`
}
