package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// WSHandler is the event gateway: it upgrades connections, resolves the
// already-validated identity from query parameters, routes inbound commands
// to rooms, and fans room events back out to the connection.
type WSHandler struct {
	service  *app.Service
	log      *zap.Logger
	upgrader websocket.Upgrader

	// students are the connected student sessions, the audience for pushed
	// public-room updates.
	mu       sync.Mutex
	students map[*wsSession]struct{}
}

func NewWSHandler(service *app.Service, log *zap.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		students: make(map[*wsSession]struct{}),
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type createRoomPayload struct {
	LessonIDs     []int64 `json:"lessonIds"`
	QuestionCount int     `json:"questionCount"`
	Visibility    string  `json:"visibility"`
}

type roomCreatedPayload struct {
	Code       string `json:"code"`
	Questions  int    `json:"questions"`
	Visibility string `json:"visibility"`
}

type roomCodePayload struct {
	Code string `json:"code"`
}

type roomJoinedPayload struct {
	Code      string `json:"code"`
	OwnerName string `json:"ownerName"`
}

type publicRoomsPayload struct {
	Rooms []domain.RoomSummary `json:"rooms"`
}

type submitAnswerPayload struct {
	Code        string `json:"code"`
	OptionIndex int    `json:"optionIndex"`
}

type answerAcceptedPayload struct {
	Code        string    `json:"code"`
	OptionIndex int       `json:"optionIndex"`
	ReceivedAt  time.Time `json:"receivedAt"`
}

// wsSession is the per-connection state: identity, outbound queue, and the
// rooms this connection is subscribed to.
type wsSession struct {
	ctx      context.Context
	identity domain.Identity
	send     chan outboundMessage[any]
	done     chan struct{}
	pumps    sync.WaitGroup

	subs map[string]*roomSub // room code -> subscription
}

type roomSub struct {
	room   *app.Room
	cancel func()
}

// ServeWS upgrades the request and runs the connection's read loop until the
// client goes away. Identity arrives pre-validated as query parameters.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity := domain.Identity{
		UserID:      r.URL.Query().Get("userId"),
		DisplayName: r.URL.Query().Get("name"),
		Role:        domain.Role(r.URL.Query().Get("role")),
	}
	if identity.UserID == "" || identity.DisplayName == "" {
		http.Error(w, "missing userId or name", http.StatusBadRequest)
		return
	}
	if identity.Role != domain.RoleTeacher && identity.Role != domain.RoleStudent {
		http.Error(w, "role must be teacher or student", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	log := h.log.With(zap.String("conn", connID), zap.String("user", identity.UserID))
	log.Debug("client connected", zap.String("role", string(identity.Role)))

	sess := &wsSession{
		ctx:      context.Background(),
		identity: identity,
		send:     make(chan outboundMessage[any], 32),
		done:     make(chan struct{}),
		subs:     make(map[string]*roomSub),
	}
	if identity.Role == domain.RoleStudent {
		h.mu.Lock()
		h.students[sess] = struct{}{}
		h.mu.Unlock()
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range sess.send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(sess, inbound, log)
	}

	// Connection gone: notify every subscribed room. For an owner this tears
	// the room down; for a player it only flips their connected flag.
	for _, sub := range sess.subs {
		sub.cancel()
		sub.room.HandleDisconnect(identity.UserID)
	}
	// Unregister before closing send so a concurrent push cannot hit a
	// closed channel.
	h.mu.Lock()
	delete(h.students, sess)
	h.mu.Unlock()
	if len(sess.subs) > 0 {
		h.broadcastPublicRooms()
	}
	close(sess.done)
	sess.pumps.Wait()
	close(sess.send)
	<-writerDone
	log.Debug("client disconnected")
}

func (h *WSHandler) dispatch(sess *wsSession, inbound inboundMessage, log *zap.Logger) {
	switch inbound.Type {
	case "create_room":
		h.handleCreateRoom(sess, inbound.Payload)
	case "list_rooms":
		h.handleListRooms(sess)
	case "join_room":
		h.handleJoinRoom(sess, inbound.Payload)
	case "leave_room":
		h.handleLeaveRoom(sess, inbound.Payload)
	case "start_quiz":
		h.handleControl(sess, inbound.Payload, func(room *app.Room) error {
			if err := room.Start(sess.identity.UserID); err != nil {
				return err
			}
			// The room just left the waiting phase and drops off the listing.
			h.broadcastPublicRooms()
			return nil
		})
	case "next_question":
		h.handleControl(sess, inbound.Payload, func(room *app.Room) error {
			return room.Next(sess.identity.UserID)
		})
	case "skip_question":
		h.handleControl(sess, inbound.Payload, func(room *app.Room) error {
			return room.Skip(sess.identity.UserID)
		})
	case "room_status":
		h.handleRoomStatus(sess, inbound.Payload)
	case "submit_answer":
		h.handleSubmitAnswer(sess, inbound.Payload)
	default:
		sess.sendError("unsupported message type")
		log.Debug("unsupported inbound type", zap.String("type", inbound.Type))
	}
}

func (h *WSHandler) handleCreateRoom(sess *wsSession, payload json.RawMessage) {
	if sess.identity.Role != domain.RoleTeacher {
		sess.sendError("only teachers can create rooms")
		return
	}
	var req createRoomPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		sess.sendError("invalid create_room payload")
		return
	}
	visibility := domain.Visibility(req.Visibility)
	if visibility == "" {
		visibility = domain.VisibilityPublic
	}

	room, err := h.service.CreateRoom(sess.ctx, sess.identity, req.LessonIDs, req.QuestionCount, visibility)
	if err != nil {
		sess.sendError(err.Error())
		return
	}
	if err := sess.subscribe(room); err != nil {
		sess.sendError(err.Error())
		return
	}
	sess.enqueue(outboundMessage[any]{Type: "room_created", Payload: roomCreatedPayload{
		Code:       room.Code(),
		Questions:  req.QuestionCount,
		Visibility: string(visibility),
	}})
	if visibility == domain.VisibilityPublic {
		h.broadcastPublicRooms()
	}
}

func (h *WSHandler) handleListRooms(sess *wsSession) {
	if sess.identity.Role != domain.RoleStudent {
		sess.sendError("only students can list public rooms")
		return
	}
	rooms := h.service.Registry().ListPublic()
	sess.enqueue(outboundMessage[any]{Type: "public_rooms", Payload: publicRoomsPayload{Rooms: rooms}})
}

func (h *WSHandler) handleJoinRoom(sess *wsSession, payload json.RawMessage) {
	if sess.identity.Role != domain.RoleStudent {
		sess.sendError("only students can join rooms")
		return
	}
	var req roomCodePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		sess.sendError("invalid join_room payload")
		return
	}
	room, err := h.service.Registry().Lookup(req.Code)
	if err != nil {
		sess.sendError(err.Error())
		return
	}
	if err := room.Join(sess.identity); err != nil {
		sess.sendError(err.Error())
		return
	}
	if err := sess.subscribe(room); err != nil {
		sess.sendError(err.Error())
		return
	}
	sess.enqueue(outboundMessage[any]{Type: "room_joined", Payload: roomJoinedPayload{Code: room.Code()}})
	h.broadcastPublicRooms()
}

func (h *WSHandler) handleLeaveRoom(sess *wsSession, payload json.RawMessage) {
	var req roomCodePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		sess.sendError("invalid leave_room payload")
		return
	}
	sub, ok := sess.subs[req.Code]
	if !ok {
		sess.sendError(domain.ErrNotInRoom.Error())
		return
	}
	if err := sub.room.Leave(sess.identity.UserID); err != nil {
		sess.sendError(err.Error())
		return
	}
	sub.cancel()
	delete(sess.subs, req.Code)
	h.broadcastPublicRooms()
}

func (h *WSHandler) handleControl(sess *wsSession, payload json.RawMessage, command func(*app.Room) error) {
	var req roomCodePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		sess.sendError("invalid payload")
		return
	}
	room, err := h.service.Registry().Lookup(req.Code)
	if err != nil {
		sess.sendError(err.Error())
		return
	}
	if err := command(room); err != nil {
		sess.sendError(err.Error())
	}
}

func (h *WSHandler) handleRoomStatus(sess *wsSession, payload json.RawMessage) {
	var req roomCodePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		sess.sendError("invalid room_status payload")
		return
	}
	room, err := h.service.Registry().Lookup(req.Code)
	if err != nil {
		sess.sendError(err.Error())
		return
	}
	status, err := room.Status(sess.identity.UserID)
	if err != nil {
		sess.sendError(err.Error())
		return
	}
	sess.enqueue(outboundMessage[any]{Type: "room_status", Payload: status})
}

func (h *WSHandler) handleSubmitAnswer(sess *wsSession, payload json.RawMessage) {
	if sess.identity.Role != domain.RoleStudent {
		sess.sendError("only students can submit answers")
		return
	}
	var req submitAnswerPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		sess.sendError("invalid submit_answer payload")
		return
	}
	room, err := h.service.Registry().Lookup(req.Code)
	if err != nil {
		sess.sendError(err.Error())
		return
	}
	if err := room.Submit(sess.identity.UserID, req.OptionIndex); err != nil {
		sess.sendError(err.Error())
		return
	}
	sess.enqueue(outboundMessage[any]{Type: "answer_accepted", Payload: answerAcceptedPayload{
		Code:        req.Code,
		OptionIndex: req.OptionIndex,
		ReceivedAt:  time.Now(),
	}})
}

// broadcastPublicRooms pushes the current public listing to every connected
// student, so discovery does not depend on polling list_rooms.
func (h *WSHandler) broadcastPublicRooms() {
	rooms := h.service.Registry().ListPublic()
	msg := outboundMessage[any]{Type: "public_rooms_updated", Payload: publicRoomsPayload{Rooms: rooms}}
	h.mu.Lock()
	for sess := range h.students {
		sess.enqueue(msg)
	}
	h.mu.Unlock()
}

// subscribe wires the room's event stream into this connection's writer.
func (s *wsSession) subscribe(room *app.Room) error {
	if _, ok := s.subs[room.Code()]; ok {
		return nil
	}
	events, cancel, err := room.Subscribe(s.identity.UserID)
	if err != nil {
		return err
	}
	s.subs[room.Code()] = &roomSub{room: room, cancel: cancel}

	s.pumps.Add(1)
	go func() {
		defer s.pumps.Done()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				select {
				case s.send <- outboundMessage[any]{Type: ev.Kind(), Payload: ev}:
				case <-s.done:
					return
				}
			case <-s.done:
				return
			}
		}
	}()
	return nil
}

// enqueue drops the message if the writer's queue is full; per-room event
// ordering is preserved because each pump blocks on the same channel.
func (s *wsSession) enqueue(msg outboundMessage[any]) {
	select {
	case s.send <- msg:
	default:
	}
}

func (s *wsSession) sendError(message string) {
	s.enqueue(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}})
}
