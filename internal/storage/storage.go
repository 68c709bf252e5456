package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/artinstitute/galleryroom/internal/metrics"
	"github.com/artinstitute/galleryroom/internal/pipeline"
)

// SessionStore keeps every gallery room in memory, keyed by session id
type SessionStore struct {
	rooms map[string]*pipeline.Room
	mu    sync.RWMutex
}

func New() *SessionStore {
	return &SessionStore{
		rooms: make(map[string]*pipeline.Room),
	}
}

func (s *SessionStore) Get(sessionID string) (*pipeline.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, exists := s.rooms[sessionID]
	return room, exists
}

func (s *SessionStore) Set(sessionID string, room *pipeline.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[sessionID] = room
	metrics.SetSessions(len(s.rooms))
}

// GetAll returns the rooms ordered by creation time
func (s *SessionStore) GetAll() []*pipeline.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*pipeline.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		result = append(result, room)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, sessionID)
	metrics.SetSessions(len(s.rooms))
}

// Expire removes every room created before cutoff and returns the removed rooms
func (s *SessionStore) Expire(cutoff time.Time) []*pipeline.Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*pipeline.Room
	for id, room := range s.rooms {
		if room.CreatedAt.Before(cutoff) {
			expired = append(expired, room)
			delete(s.rooms, id)
		}
	}
	if len(expired) > 0 {
		metrics.SetSessions(len(s.rooms))
	}
	return expired
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
