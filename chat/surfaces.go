package chat

import (
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Surfaces owns the chat UI visibility state: at most one surface is
// visible at a time, either the room list or a single open room. This
// replaces ad hoc global flags with one explicit owner.
type Surfaces struct {
	mu         sync.Mutex
	listOpen   bool
	activeRoom primitive.ObjectID
}

func NewSurfaces() *Surfaces {
	return &Surfaces{}
}

// OpenList shows the room list and hides any open room.
func (s *Surfaces) OpenList() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listOpen = true
	s.activeRoom = primitive.NilObjectID
}

// OpenRoom shows one room and hides the list.
func (s *Surfaces) OpenRoom(roomID primitive.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeRoom = roomID
	s.listOpen = false
}

// CloseRoom navigates back from a room to the list.
func (s *Surfaces) CloseRoom() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeRoom = primitive.NilObjectID
	s.listOpen = true
}

// CloseAll hides every chat surface.
func (s *Surfaces) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listOpen = false
	s.activeRoom = primitive.NilObjectID
}

// Visible reports the current state: whether the list is shown and which
// room (if any) is open. Both are never set at once.
func (s *Surfaces) Visible() (listOpen bool, activeRoom primitive.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listOpen, s.activeRoom
}
