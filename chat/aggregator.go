package chat

import (
	"context"
	"sync"

	"weatherfit/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ListEntry is one row of the chat list, with the peer already resolved
// and masked if deleted.
type ListEntry struct {
	RoomID        primitive.ObjectID
	PeerName      string
	PeerPhoto     string
	PeerDeleted   bool
	LastMessage   string
	LastMessageAt int64
	Unread        int64
}

// Aggregator follows the user's room directory stream, resolves every
// peer's liveness in parallel (a room list must not pay a sequential
// lookup per room), and keeps the total unread badge count.
type Aggregator struct {
	self      primitive.ObjectID
	directory RoomDirectory
	resolver  PeerResolver

	mu      sync.Mutex
	started bool
	cancel  func()
	ctx     context.Context
	entries []ListEntry
	badge   int64

	onChange func(badge int64, entries []ListEntry)
}

func NewAggregator(self primitive.ObjectID, directory RoomDirectory, resolver PeerResolver) *Aggregator {
	return &Aggregator{self: self, directory: directory, resolver: resolver}
}

// OnChange registers the badge observer; call before Start.
func (a *Aggregator) OnChange(fn func(badge int64, entries []ListEntry)) {
	a.onChange = fn
}

// Start subscribes to the room directory. Safe to call again; subsequent
// calls are no-ops.
func (a *Aggregator) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return nil
	}
	a.started = true
	a.ctx = ctx
	a.mu.Unlock()

	cancel, err := a.directory.SubscribeRooms(ctx, a.self, a.handleRooms)
	if err != nil {
		a.mu.Lock()
		a.started = false
		a.mu.Unlock()
		return err
	}

	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()
	return nil
}

func (a *Aggregator) handleRooms(rooms []models.Room) {
	a.mu.Lock()
	ctx := a.ctx
	a.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	entries := make([]ListEntry, len(rooms))
	var wg sync.WaitGroup
	for i, room := range rooms {
		wg.Add(1)
		go func(i int, room models.Room) {
			defer wg.Done()
			entries[i] = a.resolveEntry(ctx, room)
		}(i, room)
	}
	wg.Wait()

	var badge int64
	for _, e := range entries {
		badge += e.Unread
	}

	a.mu.Lock()
	a.entries = entries
	a.badge = badge
	cb := a.onChange
	a.mu.Unlock()

	if cb != nil {
		cb(badge, entries)
	}
}

func (a *Aggregator) resolveEntry(ctx context.Context, room models.Room) ListEntry {
	entry := ListEntry{
		RoomID:        room.ID,
		LastMessage:   room.LastMessage,
		LastMessageAt: room.LastMessageAt,
		Unread:        room.UnreadFor(a.self),
	}

	peer, err := a.resolver.ResolveOtherParticipant(ctx, room, a.self)
	if err != nil {
		// Resolution failed outright; fall back to the room's snapshots
		// rather than dropping the row.
		if otherID, ok := room.Other(a.self); ok {
			entry.PeerName = room.NameOf(otherID)
			entry.PeerPhoto = room.PhotoOf(otherID)
		}
		return entry
	}

	entry.PeerName = peer.Name
	entry.PeerPhoto = peer.Photo
	entry.PeerDeleted = peer.IsDeleted
	return entry
}

// BadgeCount is the sum of the user's unread counters across all rooms.
func (a *Aggregator) BadgeCount() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.badge
}

// Entries returns the current resolved room list, newest activity first.
func (a *Aggregator) Entries() []ListEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ListEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Stop cancels the directory subscription.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.started = false
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
