package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"dental-mentor-service/internal/domain"
)

// SessionRepository abstracts how leaderboard sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	GetOrCreate(sessionID string) *Session
	Get(sessionID string) (*Session, bool)
	DeleteIfEmpty(sessionID string)
}

// LeaderboardService contains the score aggregation use cases.
type LeaderboardService struct {
	sessions SessionRepository
}

func NewLeaderboardService(store SessionRepository) *LeaderboardService {
	return &LeaderboardService{sessions: store}
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(id string) *Session {
	return newSession(id)
}

// NewSessionWithClock is test-only for deterministic timestamps.
func NewSessionWithClock(id string, now func() time.Time) *Session {
	return newSessionWithClock(id, now)
}

// Join registers or refreshes a participant in a session and marks it online.
func (s *LeaderboardService) Join(_ context.Context, sessionID, studentID, displayName string, level int) []domain.RankedEntry {
	session := s.sessions.GetOrCreate(sessionID)
	return session.join(studentID, displayName, level)
}

// ApplyDelta folds a score delta into the session and returns the new ranking
// plus the participant's cumulative score.
func (s *LeaderboardService) ApplyDelta(_ context.Context, sessionID string, delta domain.ScoreDelta) ([]domain.RankedEntry, int, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, 0, domain.ErrSessionNotFound
	}
	ranked, total := session.applyDelta(delta)
	return ranked, total, nil
}

// Replace adopts an authoritative leaderboard verbatim, discarding local state.
func (s *LeaderboardService) Replace(_ context.Context, sessionID string, entries []domain.RankedEntry) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.replace(entries)
	return nil
}

// Snapshot returns the current ranking without mutating anything.
func (s *LeaderboardService) Snapshot(_ context.Context, sessionID string) ([]domain.RankedEntry, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.snapshot(), nil
}

// Subscribe returns a channel that receives ranking updates for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *LeaderboardService) Subscribe(_ context.Context, sessionID string) (<-chan []domain.RankedEntry, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Leave marks a participant offline and drops the session once nobody is left.
func (s *LeaderboardService) Leave(_ context.Context, sessionID, studentID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	session.leave(studentID)
	if session.isEmpty() {
		s.sessions.DeleteIfEmpty(sessionID)
	}
}

// Session is the in-memory score aggregator for one leaderboard. Cumulative
// scores are mutated only here, under the mutex, so the invariant "score ==
// sum of applied deltas" holds for any interleaving of connections.
type Session struct {
	id        string
	createdAt time.Time
	now       func() time.Time

	mu           sync.RWMutex
	participants map[string]*domain.Participant
	order        []string            // ids in first-appearance order, ties keep this order
	applied      map[string]struct{} // (participant, question) pairs already folded
	subscribers  map[chan []domain.RankedEntry]struct{}
}

func newSession(id string) *Session {
	return newSessionWithClock(id, time.Now)
}

// newSessionWithClock allows deterministic timestamps in tests.
func newSessionWithClock(id string, now func() time.Time) *Session {
	return &Session{
		id:           id,
		createdAt:    now(),
		now:          now,
		participants: make(map[string]*domain.Participant),
		applied:      make(map[string]struct{}),
		subscribers:  make(map[chan []domain.RankedEntry]struct{}),
	}
}

func (s *Session) join(studentID, displayName string, level int) []domain.RankedEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if participant, ok := s.participants[studentID]; ok {
		participant.DisplayName = displayName
		participant.Level = level
		participant.Online = true
	} else {
		s.participants[studentID] = &domain.Participant{
			ID:          studentID,
			DisplayName: displayName,
			Level:       level,
			Online:      true,
		}
		s.order = append(s.order, studentID)
	}
	return s.broadcastLocked()
}

// applyDelta upserts the participant and adds the delta amount. Deltas that
// name a question are deduplicated by (participant, question) so at-least-once
// redelivery from the outbox never double-counts.
func (s *Session) applyDelta(delta domain.ScoreDelta) ([]domain.RankedEntry, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if delta.QuestionID != "" {
		key := delta.ParticipantID + "|" + delta.QuestionID
		if _, dup := s.applied[key]; dup {
			total := 0
			if p, ok := s.participants[delta.ParticipantID]; ok {
				total = p.Score
			}
			return s.rerankLocked(), total
		}
		s.applied[key] = struct{}{}
	}

	participant, ok := s.participants[delta.ParticipantID]
	if !ok {
		participant = &domain.Participant{ID: delta.ParticipantID, DisplayName: delta.ParticipantID, Online: true}
		s.participants[delta.ParticipantID] = participant
		s.order = append(s.order, delta.ParticipantID)
	}
	participant.Score += delta.Amount

	return s.broadcastLocked(), participant.Score
}

// replace is the "server wins" override: the incoming list becomes the entire
// session state, including insertion order and dedup history.
func (s *Session) replace(entries []domain.RankedEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.participants = make(map[string]*domain.Participant, len(entries))
	s.order = s.order[:0]
	s.applied = make(map[string]struct{})
	for _, entry := range entries {
		p := entry.Participant
		s.participants[p.ID] = &p
		s.order = append(s.order, p.ID)
	}
	s.broadcastLocked()
}

func (s *Session) leave(studentID string) []domain.RankedEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if participant, ok := s.participants[studentID]; ok {
		participant.Online = false
	}
	return s.broadcastLocked()
}

func (s *Session) isEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, participant := range s.participants {
		if participant.Online {
			return false
		}
	}
	return true
}

// IsEmpty reports whether the session has no online participants.
func (s *Session) IsEmpty() bool {
	return s.isEmpty()
}

func (s *Session) snapshot() []domain.RankedEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rerankLocked()
}

func (s *Session) subscribe() (<-chan []domain.RankedEntry, func()) {
	ch := make(chan []domain.RankedEntry, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.rerankLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() []domain.RankedEntry {
	ranked := s.rerankLocked()
	for ch := range s.subscribers {
		select {
		case ch <- ranked:
		default:
			// Drop the stale update so a slow subscriber cannot block the broadcast.
			select {
			case <-ch:
			default:
			}
			ch <- ranked
		}
	}
	return ranked
}

// rerankLocked recomputes the ranking from scratch: cumulative score
// descending, ties resolved by first-appearance order. The stable sort over
// the insertion-ordered slice keeps equal scores from flickering.
func (s *Session) rerankLocked() []domain.RankedEntry {
	entries := make([]domain.RankedEntry, 0, len(s.order))
	for _, id := range s.order {
		entries = append(entries, domain.RankedEntry{Participant: *s.participants[id]})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Participant.Score > entries[j].Participant.Score
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
