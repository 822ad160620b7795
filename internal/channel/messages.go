package channel

import "time"

// Wire event names. Lifecycle events (connected, error, disconnected) are
// emitted locally by the channel itself and never travel over the wire.
const (
	EventScoreUpdate       = "score_update"
	EventLeaderboardUpdate = "leaderboard_update"
	EventUserJoined        = "user_joined"
	EventUserLeft          = "user_left"

	EventConnected    = "connected"
	EventError        = "error"
	EventDisconnected = "disconnected"
)

// ScoreUpdate is the wire shape of a score delta.
type ScoreUpdate struct {
	Type       string `json:"type"`
	StudentID  string `json:"studentId"`
	Score      int    `json:"score"`
	QuestionID string `json:"questionId,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// LeaderboardEntry is the wire shape of one ranked row in a full
// leaderboard replacement.
type LeaderboardEntry struct {
	Rank      int    `json:"rank"`
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	Level     int    `json:"level"`
	IsOnline  bool   `json:"isOnline"`
}

// LeaderboardUpdate carries an authoritative full leaderboard; receivers
// discard local state and adopt it verbatim.
type LeaderboardUpdate struct {
	Type        string             `json:"type"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	Timestamp   int64              `json:"timestamp"`
}

// Presence announces a participant joining or leaving the session.
type Presence struct {
	Type      string `json:"type"`
	StudentID string `json:"studentId"`
	Timestamp int64  `json:"timestamp"`
}

// NewScoreUpdate stamps a score delta for the wire.
func NewScoreUpdate(studentID string, score int, questionID string) ScoreUpdate {
	return ScoreUpdate{
		Type:       EventScoreUpdate,
		StudentID:  studentID,
		Score:      score,
		QuestionID: questionID,
		Timestamp:  time.Now().UnixMilli(),
	}
}

// SendScoreUpdate serializes a score delta onto any Sender (a raw channel or
// an outbox-wrapped one).
func SendScoreUpdate(s Sender, studentID string, score int, questionID string) error {
	return s.Send(EventScoreUpdate, NewScoreUpdate(studentID, score, questionID))
}
