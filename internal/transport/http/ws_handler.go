package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"dental-mentor-service/internal/app"
	"dental-mentor-service/internal/channel"
	"dental-mentor-service/internal/domain"
	"dental-mentor-service/internal/metrics"
	"github.com/gorilla/websocket"
)

// QuizProvider supplies quiz content for evaluation flows started over the
// socket (cache in front of the generation gateway or Postgres).
type QuizProvider interface {
	GetQuiz(ctx context.Context, topic, difficulty string, numQuestions int) (domain.Quiz, error)
}

// WSHandler speaks the score/leaderboard wire protocol and drives evaluation
// flows for connected students.
type WSHandler struct {
	leaderboard *app.LeaderboardService
	quizzes     QuizProvider
	upgrader    websocket.Upgrader

	mu    sync.Mutex
	peers map[string]map[chan outbound]struct{} // sessionID -> per-connection send queues
}

type outbound struct {
	raw []byte
}

func NewWSHandler(leaderboard *app.LeaderboardService, quizzes QuizProvider) *WSHandler {
	return &WSHandler{
		leaderboard: leaderboard,
		quizzes:     quizzes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		peers: make(map[string]map[chan outbound]struct{}),
	}
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type startQuizMessage struct {
	Type         string `json:"type"`
	Topic        string `json:"topic"`
	Difficulty   string `json:"difficulty"`
	NumQuestions int    `json:"numQuestions"`
}

type answerMessage struct {
	Type        string `json:"type"`
	QuestionID  string `json:"questionId"`
	OptionIndex int    `json:"optionIndex"`
}

// wireQuestion is a question stripped of its answer key before it goes to
// the client.
type wireQuestion struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"question"`
	Options []string `json:"options,omitempty"`
	Points  int      `json:"points"`
}

type quizMessage struct {
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Questions   []wireQuestion `json:"questions"`
}

type answerResultMessage struct {
	Type       string `json:"type"`
	QuestionID string `json:"questionId"`
	Correct    bool   `json:"isCorrect"`
	Score      int    `json:"score"`
	Feedback   string `json:"feedback"`
	TotalScore int    `json:"totalScore"`
}

type summaryMessage struct {
	Type         string         `json:"type"`
	Score        int            `json:"score"`
	CorrectCount int            `json:"correctCount"`
	Accuracy     float64        `json:"accuracy"`
	TimeSpentMS  int64          `json:"timeSpentMs"`
	Badges       []domain.Badge `json:"badges"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// leaderboard and evaluation use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	studentID := r.URL.Query().Get("studentId")
	if studentID == "" {
		http.Error(w, "missing studentId", http.StatusBadRequest)
		return
	}
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		sessionID = "global"
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = studentID
	}
	level, _ := strconv.Atoi(r.URL.Query().Get("level"))
	if level <= 0 {
		level = 1
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	metrics.WSConnections.Inc()
	defer metrics.WSConnections.Dec()

	h.leaderboard.Join(r.Context(), sessionID, studentID, name, level)

	updates, cancelUpdates, err := h.leaderboard.Subscribe(r.Context(), sessionID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage{Type: "error", Message: err.Error()})
		return
	}
	defer cancelUpdates()
	defer h.leaderboard.Leave(r.Context(), sessionID, studentID)

	send := make(chan outbound, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	h.register(sessionID, send)

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteMessage(websocket.TextMessage, msg.raw); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case ranked, ok := <-updates:
				if !ok {
					return
				}
				raw := mustMarshal(toWireLeaderboard(ranked))
				select {
				case send <- outbound{raw: raw}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	h.broadcastPresence(sessionID, channel.EventUserJoined, studentID, send)
	defer h.broadcastPresence(sessionID, channel.EventUserLeft, studentID, send)

	// flow is touched only from this read loop.
	var flow *app.Flow

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			h.enqueue(send, errorMessage{Type: "error", Message: "invalid message"})
			continue
		}

		switch envelope.Type {
		case channel.EventScoreUpdate:
			h.handleScoreUpdate(r.Context(), sessionID, raw, send)
		case channel.EventLeaderboardUpdate:
			h.handleLeaderboardUpdate(r.Context(), sessionID, raw, send)
		case "start_quiz":
			flow = h.handleStartQuiz(r.Context(), studentID, raw, send)
		case "answer":
			h.handleAnswer(r.Context(), sessionID, studentID, flow, raw, send)
		case "finish_quiz":
			h.handleFinishQuiz(flow, send)
		default:
			h.enqueue(send, errorMessage{Type: "error", Message: "unsupported message type"})
		}
	}

	close(closeSignals)
	<-updatesDone
	// Unregister before closing: a peer broadcasting presence must never find
	// a closed queue in the registry.
	h.unregister(sessionID, send)
	close(send)
	<-writerDone
}

func (h *WSHandler) handleScoreUpdate(ctx context.Context, sessionID string, raw []byte, send chan outbound) {
	var msg channel.ScoreUpdate
	if err := json.Unmarshal(raw, &msg); err != nil || msg.StudentID == "" {
		h.enqueue(send, errorMessage{Type: "error", Message: "invalid score_update payload"})
		return
	}
	delta := domain.ScoreDelta{
		ParticipantID: msg.StudentID,
		Amount:        msg.Score,
		QuestionID:    msg.QuestionID,
		Timestamp:     time.UnixMilli(msg.Timestamp),
	}
	if _, _, err := h.leaderboard.ApplyDelta(ctx, sessionID, delta); err != nil {
		h.enqueue(send, errorMessage{Type: "error", Message: err.Error()})
		return
	}
	metrics.DeltasApplied.Inc()
}

func (h *WSHandler) handleLeaderboardUpdate(ctx context.Context, sessionID string, raw []byte, send chan outbound) {
	var msg channel.LeaderboardUpdate
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.enqueue(send, errorMessage{Type: "error", Message: "invalid leaderboard_update payload"})
		return
	}
	if err := h.leaderboard.Replace(ctx, sessionID, fromWireLeaderboard(msg)); err != nil {
		h.enqueue(send, errorMessage{Type: "error", Message: err.Error()})
		return
	}
	metrics.LeaderboardReplacements.Inc()
}

func (h *WSHandler) handleStartQuiz(ctx context.Context, studentID string, raw []byte, send chan outbound) *app.Flow {
	var msg startQuizMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Topic == "" {
		h.enqueue(send, errorMessage{Type: "error", Message: "invalid start_quiz payload"})
		return nil
	}
	if msg.NumQuestions <= 0 {
		msg.NumQuestions = 5
	}
	if msg.Difficulty == "" {
		msg.Difficulty = "medium"
	}

	quiz, err := h.quizzes.GetQuiz(ctx, msg.Topic, msg.Difficulty, msg.NumQuestions)
	if err != nil {
		h.enqueue(send, errorMessage{Type: "error", Message: "quiz generation failed"})
		return nil
	}

	flow := app.NewFlow(studentID, quiz.Questions, app.LocalEvaluator{}, nil)

	out := quizMessage{Type: "quiz", Title: quiz.Title, Description: quiz.Description}
	for _, q := range quiz.Questions {
		out.Questions = append(out.Questions, wireQuestion{
			ID:      q.ID,
			Prompt:  q.Prompt,
			Options: q.Options,
			Points:  q.Points,
		})
	}
	h.enqueue(send, out)
	return flow
}

func (h *WSHandler) handleAnswer(ctx context.Context, sessionID, studentID string, flow *app.Flow, raw []byte, send chan outbound) {
	if flow == nil {
		h.enqueue(send, errorMessage{Type: "error", Message: "no quiz in progress"})
		return
	}
	var msg answerMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.QuestionID == "" {
		h.enqueue(send, errorMessage{Type: "error", Message: "invalid answer payload"})
		return
	}

	result, err := flow.Submit(ctx, msg.QuestionID, domain.Answer{OptionIndex: msg.OptionIndex})
	if err != nil {
		h.enqueue(send, errorMessage{Type: "error", Message: err.Error()})
		return
	}

	if result.Score > 0 {
		delta := domain.ScoreDelta{
			ParticipantID: studentID,
			Amount:        result.Score,
			QuestionID:    msg.QuestionID,
			Timestamp:     time.Now(),
		}
		if _, _, err := h.leaderboard.ApplyDelta(ctx, sessionID, delta); err == nil {
			metrics.DeltasApplied.Inc()
		}
	}

	h.enqueue(send, answerResultMessage{
		Type:       "answer_result",
		QuestionID: msg.QuestionID,
		Correct:    result.Correct,
		Score:      result.Score,
		Feedback:   result.Feedback,
		TotalScore: flow.Score(),
	})
}

func (h *WSHandler) handleFinishQuiz(flow *app.Flow, send chan outbound) {
	if flow == nil {
		h.enqueue(send, errorMessage{Type: "error", Message: "no quiz in progress"})
		return
	}
	summary := flow.Summary()
	h.enqueue(send, summaryMessage{
		Type:         "quiz_summary",
		Score:        summary.Score,
		CorrectCount: summary.CorrectCount,
		Accuracy:     summary.Accuracy,
		TimeSpentMS:  summary.TimeSpent.Milliseconds(),
		Badges:       flow.Badges(),
	})
}

func (h *WSHandler) register(sessionID string, send chan outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.peers[sessionID] == nil {
		h.peers[sessionID] = make(map[chan outbound]struct{})
	}
	h.peers[sessionID][send] = struct{}{}
}

func (h *WSHandler) unregister(sessionID string, send chan outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers[sessionID], send)
	if len(h.peers[sessionID]) == 0 {
		delete(h.peers, sessionID)
	}
}

// broadcastPresence tells every other connection in the session that a
// participant came or went.
func (h *WSHandler) broadcastPresence(sessionID, event, studentID string, self chan outbound) {
	raw := mustMarshal(channel.Presence{
		Type:      event,
		StudentID: studentID,
		Timestamp: time.Now().UnixMilli(),
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	for peer := range h.peers[sessionID] {
		if peer == self {
			continue
		}
		select {
		case peer <- outbound{raw: raw}:
		default:
			// Slow peer: presence is best-effort, skip rather than block.
		}
	}
}

func (h *WSHandler) enqueue(send chan outbound, msg any) {
	select {
	case send <- outbound{raw: mustMarshal(msg)}:
	default:
		log.Printf("ws send queue full, dropping %T", msg)
	}
}

func mustMarshal(msg any) []byte {
	raw, err := json.Marshal(msg)
	if err != nil {
		log.Printf("ws marshal error: %v", err)
		return []byte(`{"type":"error","message":"internal encoding error"}`)
	}
	return raw
}

func toWireLeaderboard(ranked []domain.RankedEntry) channel.LeaderboardUpdate {
	update := channel.LeaderboardUpdate{
		Type:      channel.EventLeaderboardUpdate,
		Timestamp: time.Now().UnixMilli(),
	}
	for _, entry := range ranked {
		update.Leaderboard = append(update.Leaderboard, channel.LeaderboardEntry{
			Rank:      entry.Rank,
			StudentID: entry.Participant.ID,
			Name:      entry.Participant.DisplayName,
			Score:     entry.Participant.Score,
			Level:     entry.Participant.Level,
			IsOnline:  entry.Participant.Online,
		})
	}
	return update
}

func fromWireLeaderboard(update channel.LeaderboardUpdate) []domain.RankedEntry {
	entries := make([]domain.RankedEntry, 0, len(update.Leaderboard))
	for _, wire := range update.Leaderboard {
		entries = append(entries, domain.RankedEntry{
			Rank: wire.Rank,
			Participant: domain.Participant{
				ID:          wire.StudentID,
				DisplayName: wire.Name,
				Score:       wire.Score,
				Level:       wire.Level,
				Online:      wire.IsOnline,
			},
		})
	}
	return entries
}
