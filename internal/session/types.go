package session

import "time"

// OpenRequest defines payload for opening an interview session.
type OpenRequest struct {
	InterviewID string `json:"interview_id"`
	Owner       string `json:"owner"`
}

// OpenResponse returns opened session metadata.
type OpenResponse struct {
	SessionID       string    `json:"session_id"`
	InterviewID     string    `json:"interview_id"`
	Owner           string    `json:"owner"`
	TopicID         string    `json:"topic_id"`
	Status          Status    `json:"status"`
	Room            RoomState `json:"room"`
	StartedAt       time.Time `json:"started_at"`
	LastActivityAt  time.Time `json:"last_activity_at"`
	InactivityTTLMS int64     `json:"inactivity_ttl_ms"`
	MessageCount    int       `json:"message_count"`
}
