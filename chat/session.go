package chat

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"weatherfit/identity"
	"weatherfit/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// State of a session: Connecting until the transport reports a link, Live
// while the room view is mounted, Closed after teardown.
type State int

const (
	Connecting State = iota
	Live
	Closed
)

// DefaultTypingWindow is how long a typing indicator survives without a
// fresh signal, on both the sending and the receiving side.
const DefaultTypingWindow = 2 * time.Second

// Session drives one open chat room. Three async operations start on Open
// (bus connect, durable subscription, peer resolution) and may complete in
// any order; the view tolerates partial readiness. The durable snapshot is
// the single source of truth for the message list; bus receipts and local
// sends form an optimistic overlay that is deduplicated by message id as
// soon as the next durable snapshot arrives.
type Session struct {
	RoomID primitive.ObjectID

	self      models.Participant
	directory RoomDirectory
	log       MessageLog
	resolver  PeerResolver
	transport Transport

	typingWindow time.Duration
	clock        func() int64

	mu        sync.Mutex
	state     State
	connected bool
	durable   []models.Message
	overlay   []models.Message

	peer      identity.Peer
	peerKnown bool

	peerTyping      string // display name, "" when nobody is typing
	peerTypingTimer *time.Timer

	selfTyping      bool
	selfTypingTimer *time.Timer

	cancelLog func()

	onMessages func([]models.Message)
	onTyping   func(string)
	onStatus   func(bool)
	onPeer     func(identity.Peer)
}

// NewSession wires a controller for roomID. Open must be called to start it.
func NewSession(roomID primitive.ObjectID, self models.Participant, directory RoomDirectory, msgLog MessageLog, resolver PeerResolver, transport Transport) *Session {
	return &Session{
		RoomID:       roomID,
		self:         self,
		directory:    directory,
		log:          msgLog,
		resolver:     resolver,
		transport:    transport,
		typingWindow: DefaultTypingWindow,
		clock:        func() int64 { return time.Now().UnixMilli() },
	}
}

// Observer setters; call before Open. A nil callback is simply skipped.
func (s *Session) OnMessages(fn func([]models.Message)) { s.onMessages = fn }
func (s *Session) OnTyping(fn func(string))             { s.onTyping = fn }
func (s *Session) OnStatus(fn func(bool))               { s.onStatus = fn }
func (s *Session) OnPeer(fn func(identity.Peer))        { s.onPeer = fn }

// Open starts the three independent async legs. Only a failure to open the
// durable subscription is fatal: without the authoritative stream there is
// nothing to render.
func (s *Session) Open(ctx context.Context) error {
	s.transport.OnMessage(s.handleEphemeral)
	s.transport.OnTyping(s.handleTyping)
	s.transport.OnStatus(s.handleStatus)
	s.transport.Start()

	cancel, err := s.log.SubscribeMessages(ctx, s.RoomID, s.handleSnapshot)
	if err != nil {
		s.transport.Close()
		return err
	}

	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		cancel()
		return ErrSessionClosed
	}
	s.cancelLog = cancel
	s.mu.Unlock()

	go s.resolvePeer(ctx)
	return nil
}

func (s *Session) resolvePeer(ctx context.Context) {
	room, err := s.directory.GetRoom(ctx, s.RoomID)
	if err != nil {
		log.Printf("[session] Loading room %s failed: %v", s.RoomID.Hex(), err)
		return
	}
	peer, err := s.resolver.ResolveOtherParticipant(ctx, room, s.self.ID)
	if err != nil {
		log.Printf("[session] Resolving peer for room %s failed: %v", s.RoomID.Hex(), err)
		return
	}

	s.mu.Lock()
	if s.state == Closed {
		// Resolution finished after the view unmounted; drop it.
		s.mu.Unlock()
		return
	}
	s.peer = peer
	s.peerKnown = true
	cb := s.onPeer
	s.mu.Unlock()

	if cb != nil {
		cb(peer)
	}
}

func (s *Session) handleStatus(connected bool) {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return
	}
	s.connected = connected
	if connected && s.state == Connecting {
		s.state = Live
	}
	cb := s.onStatus
	s.mu.Unlock()

	if cb != nil {
		cb(connected)
	}
}

// handleSnapshot replaces the rendered list wholesale with the durable
// snapshot and prunes overlay entries the snapshot now covers.
func (s *Session) handleSnapshot(msgs []models.Message) {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return
	}
	s.durable = msgs

	seen := make(map[primitive.ObjectID]bool, len(msgs))
	for _, m := range msgs {
		seen[m.ID] = true
	}
	kept := s.overlay[:0]
	for _, m := range s.overlay {
		if !seen[m.ID] {
			kept = append(kept, m)
		}
	}
	s.overlay = kept

	render := s.renderLocked()
	cb := s.onMessages
	s.mu.Unlock()

	if cb != nil {
		cb(render)
	}
	s.markReadIfNeeded(render)
}

// handleEphemeral is the bus fast path: append the peer's message
// immediately, dropping anything the durable list already holds.
func (s *Session) handleEphemeral(p models.MessagePayload) {
	msg, ok := payloadToMessage(p)
	if !ok || msg.RoomID != s.RoomID || msg.SenderID == s.self.ID {
		return
	}

	s.mu.Lock()
	if s.state == Closed || s.containsLocked(msg.ID) {
		s.mu.Unlock()
		return
	}
	s.overlay = append(s.overlay, msg)
	// A message from the peer supersedes their typing indicator.
	s.peerTyping = ""
	if s.peerTypingTimer != nil {
		s.peerTypingTimer.Stop()
	}
	render := s.renderLocked()
	cbMsgs, cbTyping := s.onMessages, s.onTyping
	s.mu.Unlock()

	if cbMsgs != nil {
		cbMsgs(render)
	}
	if cbTyping != nil {
		cbTyping("")
	}
	s.markReadIfNeeded(render)
}

func (s *Session) handleTyping(sig models.TypingSignal) {
	if sig.UserID == s.self.ID.Hex() || sig.RoomID != s.RoomID.Hex() {
		return
	}

	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return
	}
	if sig.IsTyping {
		s.peerTyping = sig.UserName
		if s.peerTypingTimer != nil {
			s.peerTypingTimer.Stop()
		}
		s.peerTypingTimer = time.AfterFunc(s.typingWindow, s.clearPeerTyping)
	} else {
		s.peerTyping = ""
		if s.peerTypingTimer != nil {
			s.peerTypingTimer.Stop()
		}
	}
	indicator := s.peerTyping
	cb := s.onTyping
	s.mu.Unlock()

	if cb != nil {
		cb(indicator)
	}
}

// clearPeerTyping fires when the sender went quiet without an explicit
// isTyping=false signal.
func (s *Session) clearPeerTyping() {
	s.mu.Lock()
	if s.state == Closed || s.peerTyping == "" {
		s.mu.Unlock()
		return
	}
	s.peerTyping = ""
	cb := s.onTyping
	s.mu.Unlock()

	if cb != nil {
		cb("")
	}
}

// SendMessage emits the message on the bus for instant delivery and appends
// it to the durable log. The durable write always proceeds, connected or
// not: the bus is a latency shortcut, never the system of record. The
// optimistic local copy is rolled back if the durable append fails.
func (s *Session) SendMessage(ctx context.Context, body string) (models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return models.Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return models.Message{}, ErrSessionClosed
	}
	if s.peerKnown && s.peer.IsDeleted {
		s.mu.Unlock()
		return models.Message{}, ErrRecipientUnavailable
	}

	msg := models.Message{
		ID:          primitive.NewObjectID(),
		RoomID:      s.RoomID,
		SenderID:    s.self.ID,
		SenderName:  s.self.Name,
		SenderPhoto: s.self.Photo,
		Body:        body,
		Timestamp:   s.clock(),
	}
	s.overlay = append(s.overlay, msg)

	wasTyping := s.selfTyping
	s.selfTyping = false
	if s.selfTypingTimer != nil {
		s.selfTypingTimer.Stop()
	}

	render := s.renderLocked()
	cb := s.onMessages
	s.mu.Unlock()

	if cb != nil {
		cb(render)
	}

	if err := s.transport.SendMessage(models.WireMessage(msg)); err != nil {
		log.Printf("[session] Bus emit failed (durable write proceeds): %v", err)
	}
	if wasTyping {
		s.sendTypingSignal(false)
	}

	saved, err := s.log.Append(ctx, msg)
	if err != nil {
		s.dropOverlay(msg.ID)
		return models.Message{}, err
	}

	// Swap in the authoritative timestamp; the next snapshot supersedes
	// the overlay entry entirely.
	s.mu.Lock()
	for i := range s.overlay {
		if s.overlay[i].ID == saved.ID {
			s.overlay[i] = saved
		}
	}
	s.mu.Unlock()

	return saved, nil
}

func (s *Session) dropOverlay(id primitive.ObjectID) {
	s.mu.Lock()
	kept := s.overlay[:0]
	for _, m := range s.overlay {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	s.overlay = kept
	render := s.renderLocked()
	cb := s.onMessages
	s.mu.Unlock()

	if cb != nil {
		cb(render)
	}
}

// InputChanged drives the outgoing typing debounce: the first keystroke
// raises the signal, the timer lowers it after the inactivity window.
func (s *Session) InputChanged(text string) {
	s.mu.Lock()
	if s.state == Closed || (s.peerKnown && s.peer.IsDeleted) {
		s.mu.Unlock()
		return
	}

	raise := false
	if !s.selfTyping && len(text) > 0 {
		s.selfTyping = true
		raise = true
	}
	if s.selfTyping {
		if s.selfTypingTimer != nil {
			s.selfTypingTimer.Stop()
		}
		s.selfTypingTimer = time.AfterFunc(s.typingWindow, s.stopSelfTyping)
	}
	s.mu.Unlock()

	if raise {
		s.sendTypingSignal(true)
	}
}

func (s *Session) stopSelfTyping() {
	s.mu.Lock()
	if s.state == Closed || !s.selfTyping {
		s.mu.Unlock()
		return
	}
	s.selfTyping = false
	s.mu.Unlock()

	s.sendTypingSignal(false)
}

func (s *Session) sendTypingSignal(typing bool) {
	sig := models.TypingSignal{
		RoomID:   s.RoomID.Hex(),
		UserID:   s.self.ID.Hex(),
		UserName: s.self.Name,
		IsTyping: typing,
	}
	if err := s.transport.SendTyping(sig); err != nil {
		log.Printf("[session] Typing signal dropped: %v", err)
	}
}

// markReadIfNeeded fires whenever the rendered list holds an unread peer
// message. MarkRead is idempotent, so redundant invocations are fine, and
// a failure simply leaves the triggering condition in place for the next
// pass.
func (s *Session) markReadIfNeeded(render []models.Message) {
	unread := false
	for _, m := range render {
		if m.SenderID != s.self.ID && !m.IsRead {
			unread = true
			break
		}
	}
	if !unread {
		return
	}

	go func() {
		if err := s.log.MarkRead(context.Background(), s.RoomID, s.self.ID); err != nil {
			log.Printf("[session] MarkRead failed (will retry on next snapshot): %v", err)
		}
	}()
}

// Close tears the session down: durable subscription, typing timers and
// the bus connection are cleaned up independently, none skipped because an
// earlier one failed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return
	}
	s.state = Closed
	cancelLog := s.cancelLog
	if s.peerTypingTimer != nil {
		s.peerTypingTimer.Stop()
	}
	if s.selfTypingTimer != nil {
		s.selfTypingTimer.Stop()
	}
	s.mu.Unlock()

	if cancelLog != nil {
		cancelLog()
	}
	if err := s.transport.Close(); err != nil {
		log.Printf("[session] Transport close failed: %v", err)
	}
}

// Messages returns the current render list: the durable snapshot plus the
// optimistic overlay.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderLocked()
}

// TypingIndicator returns the display name of the peer currently typing,
// or "" when the indicator is clear.
func (s *Session) TypingIndicator() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerTyping
}

// ConnectionStatus is "connected" or "disconnected".
func (s *Session) ConnectionStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return "connected"
	}
	return "disconnected"
}

// Peer returns the resolved other participant; ok is false while the
// resolution leg is still in flight.
func (s *Session) Peer() (identity.Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer, s.peerKnown
}

// PeerDeleted reports the recipient-unavailable policy state.
func (s *Session) PeerDeleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerKnown && s.peer.IsDeleted
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) renderLocked() []models.Message {
	render := make([]models.Message, 0, len(s.durable)+len(s.overlay))
	render = append(render, s.durable...)
	render = append(render, s.overlay...)
	return render
}

func (s *Session) containsLocked(id primitive.ObjectID) bool {
	for _, m := range s.durable {
		if m.ID == id {
			return true
		}
	}
	for _, m := range s.overlay {
		if m.ID == id {
			return true
		}
	}
	return false
}

func payloadToMessage(p models.MessagePayload) (models.Message, bool) {
	id, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		return models.Message{}, false
	}
	roomID, err := primitive.ObjectIDFromHex(p.RoomID)
	if err != nil {
		return models.Message{}, false
	}
	senderID, err := primitive.ObjectIDFromHex(p.SenderID)
	if err != nil {
		return models.Message{}, false
	}
	return models.Message{
		ID:          id,
		RoomID:      roomID,
		SenderID:    senderID,
		SenderName:  p.SenderName,
		SenderPhoto: p.SenderPhoto,
		Body:        p.Body,
		Timestamp:   p.Timestamp,
	}, true
}
