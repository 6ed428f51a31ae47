// Package chat implements the support messaging subsystem: room membership,
// message persistence, history replay, and live fan-out to room members.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"complaintrack/server/internal/chat/domain"
	"complaintrack/server/internal/chat/repository"
	"complaintrack/server/internal/presence"
	"complaintrack/server/internal/realtime"
)

// SharedRoom is the room every message without an explicit recipient lands
// in. All citizen support conversations collapse into this one room; staff
// watch it as a common inbox.
const SharedRoom = "support"

// ErrEmptyMessage is returned when a send carries no body.
var ErrEmptyMessage = errors.New("chat: empty message body")

// JoinRequest is the payload of an inbound joinRoom frame. The client
// addresses rooms by recipient; the service resolves the room key.
type JoinRequest struct {
	RecipientID string `json:"recipientId"`
}

// SendRequest is the payload of an inbound sendMessage frame.
type SendRequest struct {
	RecipientID string `json:"recipientId"`
	Message     string `json:"message"`
}

// ResolveRoom maps a recipient to the canonical room key. Every conversation
// collapses into the shared support room no matter which recipient was
// addressed; the recipient id is recorded on the message row but does not
// partition rooms.
func ResolveRoom(recipientID string) string {
	return SharedRoom
}

// Service is the messaging subsystem. Room membership is in-memory and per
// instance; message history is persisted and replayed on join.
type Service struct {
	repo   repository.Repository
	tracer trace.Tracer

	mu       sync.Mutex
	rooms    map[string]map[presence.Conn]struct{}
	memberOf map[presence.Conn]map[string]struct{}
}

// NewService returns a Service persisting messages through repo.
func NewService(repo repository.Repository) *Service {
	return &Service{
		repo:     repo,
		tracer:   otel.Tracer("complaintrack/chat"),
		rooms:    make(map[string]map[presence.Conn]struct{}),
		memberOf: make(map[presence.Conn]map[string]struct{}),
	}
}

// Join subscribes conn to the recipient's room and replays the room's
// history to it as a messageHistory frame. The subscription happens before
// the history query so a message sent concurrently is either in the replayed
// history or delivered live, never lost in the gap between the two.
func (s *Service) Join(ctx context.Context, conn presence.Conn, recipientID string) error {
	room := ResolveRoom(recipientID)
	ctx, span := s.tracer.Start(ctx, "chat.Join",
		trace.WithAttributes(attribute.String("room", room)))
	defer span.End()
	s.subscribe(conn, room)

	history, err := s.repo.HistoryByRoom(ctx, room)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if history == nil {
		history = []*domain.Message{}
	}
	conn.Send(realtime.EventMessageHistory, history)
	return nil
}

// Send persists the message addressed to recipientID and fans it out to every
// current member of the resolved room, the sender included. senderName is the
// display name captured at handshake time.
func (s *Service) Send(ctx context.Context, conn presence.Conn, senderName, recipientID, body string) (*domain.Message, error) {
	room := ResolveRoom(recipientID)
	ctx, span := s.tracer.Start(ctx, "chat.Send",
		trace.WithAttributes(attribute.String("room", room)))
	defer span.End()

	m, err := s.save(ctx, conn.IdentityID(), senderName, recipientID, body)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	for _, member := range s.members(room) {
		member.Send(realtime.EventNewMessage, m)
	}
	return m, nil
}

// Save persists a message without broadcasting. Serves the REST post path,
// where the author has no live connection.
func (s *Service) Save(ctx context.Context, senderID int, senderName, recipientID, body string) (*domain.Message, error) {
	return s.save(ctx, senderID, senderName, recipientID, body)
}

// History returns the room's persisted messages oldest first. The room id is
// queried verbatim; an empty id falls back to the shared room.
func (s *Service) History(ctx context.Context, roomID string) ([]*domain.Message, error) {
	if roomID == "" {
		roomID = SharedRoom
	}
	msgs, err := s.repo.HistoryByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	return msgs, nil
}

// DropConn removes conn from every room it joined. Wired to the hub's
// disconnect callbacks.
func (s *Service) DropConn(conn presence.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for room := range s.memberOf[conn] {
		delete(s.rooms[room], conn)
		if len(s.rooms[room]) == 0 {
			delete(s.rooms, room)
		}
	}
	delete(s.memberOf, conn)
}

func (s *Service) save(ctx context.Context, senderID int, senderName, recipientID, body string) (*domain.Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyMessage
	}
	m := &domain.Message{
		SenderID:    senderID,
		SenderName:  senderName,
		RecipientID: recipientID,
		RoomID:      ResolveRoom(recipientID),
		Body:        body,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) subscribe(conn presence.Conn, room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rooms[room] == nil {
		s.rooms[room] = make(map[presence.Conn]struct{})
	}
	s.rooms[room][conn] = struct{}{}
	if s.memberOf[conn] == nil {
		s.memberOf[conn] = make(map[string]struct{})
	}
	s.memberOf[conn][room] = struct{}{}
}

func (s *Service) members(room string) []presence.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.rooms[room]
	out := make([]presence.Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}
