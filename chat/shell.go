package chat

import (
	"context"
	"fmt"
	"sync"

	"weatherfit/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Shell is the composition root the application layer talks to. One shell
// exists per signed-in user, created at app-shell mount with its
// collaborators injected, and torn down on logout. It owns the surfaces
// state, the unread aggregator, and the single active session.
type Shell struct {
	self      models.Participant
	directory RoomDirectory
	log       MessageLog
	resolver  PeerResolver
	transport TransportFactory

	surfaces   *Surfaces
	aggregator *Aggregator

	mu     sync.Mutex
	active *Session
}

func NewShell(self models.Participant, directory RoomDirectory, msgLog MessageLog, resolver PeerResolver, transport TransportFactory) *Shell {
	return &Shell{
		self:       self,
		directory:  directory,
		log:        msgLog,
		resolver:   resolver,
		transport:  transport,
		surfaces:   NewSurfaces(),
		aggregator: NewAggregator(self.ID, directory, resolver),
	}
}

// Start brings up the unread aggregator so the badge is live even while
// every chat surface is hidden.
func (sh *Shell) Start(ctx context.Context) error {
	return sh.aggregator.Start(ctx)
}

// OpenChatWith finds or creates the room shared with the other user and
// opens a session on it. Room creation is the one blocking failure in the
// chat flow: without a room there is nothing to open, so the error
// surfaces to the caller.
func (sh *Shell) OpenChatWith(ctx context.Context, other models.Participant) (*Session, error) {
	roomID, err := sh.directory.GetOrCreateRoom(ctx, sh.self, other)
	if err != nil {
		return nil, fmt.Errorf("opening chat room: %w", err)
	}
	return sh.OpenRoom(ctx, roomID)
}

// OpenRoom opens a session for roomID, closing any previously active one
// first so only a single room view is ever live.
func (sh *Shell) OpenRoom(ctx context.Context, roomID primitive.ObjectID) (*Session, error) {
	sh.mu.Lock()
	previous := sh.active
	sh.active = nil
	sh.mu.Unlock()

	if previous != nil {
		previous.Close()
	}

	session := NewSession(roomID, sh.self, sh.directory, sh.log, sh.resolver, sh.transport(roomID))
	if err := session.Open(ctx); err != nil {
		return nil, err
	}

	sh.mu.Lock()
	sh.active = session
	sh.mu.Unlock()
	sh.surfaces.OpenRoom(roomID)

	return session, nil
}

// OpenChatList shows the list surface, closing an open room view.
func (sh *Shell) OpenChatList() {
	sh.closeActive()
	sh.surfaces.OpenList()
}

// CloseChatSurfaces hides everything chat.
func (sh *Shell) CloseChatSurfaces() {
	sh.closeActive()
	sh.surfaces.CloseAll()
}

func (sh *Shell) closeActive() {
	sh.mu.Lock()
	active := sh.active
	sh.active = nil
	sh.mu.Unlock()

	if active != nil {
		active.Close()
	}
}

// ActiveSession returns the currently open room session, if any.
func (sh *Shell) ActiveSession() *Session {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.active
}

// UnreadBadgeCount is the live total across all rooms.
func (sh *Shell) UnreadBadgeCount() int64 {
	return sh.aggregator.BadgeCount()
}

// ChatList returns the resolved room list for the list surface.
func (sh *Shell) ChatList() []ListEntry {
	return sh.aggregator.Entries()
}

// OnBadgeChange registers the badge observer; call before Start.
func (sh *Shell) OnBadgeChange(fn func(badge int64, entries []ListEntry)) {
	sh.aggregator.OnChange(fn)
}

// Surfaces exposes the visibility state owner.
func (sh *Shell) Surfaces() *Surfaces {
	return sh.surfaces
}

// Shutdown tears the shell down on logout.
func (sh *Shell) Shutdown() {
	sh.closeActive()
	sh.aggregator.Stop()
	sh.surfaces.CloseAll()
}
