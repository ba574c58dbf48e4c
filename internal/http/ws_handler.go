package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"chat-presence/internal/domain"
	"chat-presence/internal/realtime"
	"chat-presence/internal/repository"
	"chat-presence/internal/service"
)

const (
	defaultInflightTimeout = 5 * time.Second
	disconnectTimeout      = 5 * time.Second
)

// WSHandler acepta conexiones websocket autenticadas y enruta sus eventos.
type WSHandler struct {
	logger   *zap.Logger
	jwt      *service.JWTService
	users    repository.UserRepository
	registry *realtime.Registry
	presence *service.PresenceService
	chat     *service.ChatService
	frames   *frameDecoder
	upgrader websocket.Upgrader

	inflightTimeout time.Duration

	mu      sync.Mutex
	closing bool
	active  sync.WaitGroup
}

func NewWSHandler(
	logger *zap.Logger,
	jwt *service.JWTService,
	users repository.UserRepository,
	registry *realtime.Registry,
	presence *service.PresenceService,
	chat *service.ChatService,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		logger:   logger,
		jwt:      jwt,
		users:    users,
		registry: registry,
		presence: presence,
		chat:     chat,
		frames:   newFrameDecoder(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		inflightTimeout: defaultInflightTimeout,
	}
}

// Handle maneja GET /ws. El token llega en Authorization o en ?token=.
func (h *WSHandler) Handle(c *gin.Context) {
	if !h.track() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server is shutting down", "code": codeUnavailable})
		return
	}
	defer h.active.Done()

	token := bearerToken(c.GetHeader("Authorization"))
	if token == "" {
		token = strings.TrimSpace(c.Query("token"))
	}

	user, err := h.authenticate(c.Request.Context(), token)
	if err != nil {
		status, code := classify(err)
		if code == codeInternal {
			h.logger.Error("websocket handshake failed", zap.Error(err))
		}
		c.JSON(status, gin.H{"error": publicMessage(err, code), "code": code})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade ya escribio la respuesta.
		h.logger.Warn("websocket upgrade failed", zap.Error(err), zap.Int64("user_id", user.ID))
		return
	}

	conn := realtime.NewConnection(user, ws)
	conn.Start()
	h.presence.Connect(conn)
	if h.isClosing() {
		// Admitida despues de que Shutdown tomara su lista de sesiones.
		conn.Close(websocket.CloseGoingAway, "server shutting down")
	}
	_ = conn.Send(domain.Event{
		Type: domain.EventConnected,
		Data: domain.ConnectedPayload{SessionID: conn.ID(), UserID: conn.UserID()},
	})

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer cancel()
		h.chat.LeaveAll(conn)
		h.presence.Disconnect(ctx, conn)
		conn.Close(websocket.CloseNormalClosure, "session closed")
	}()

	err = conn.ReadLoop(func(payload []byte) {
		h.handleFrame(conn, payload)
	})
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		h.logger.Info("websocket closed unexpectedly", zap.Error(err), zap.String("session_id", conn.ID()))
	}
}

// Shutdown rechaza conexiones nuevas, cierra las vivas y espera a que sus
// manejadores terminen o a que venza ctx.
func (h *WSHandler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	h.mu.Unlock()

	for _, s := range h.registry.Sessions() {
		if conn, ok := s.(*realtime.Connection); ok {
			conn.Close(websocket.CloseGoingAway, "server shutting down")
		}
	}

	done := make(chan struct{})
	go func() {
		h.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *WSHandler) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.active.Add(1)
	return true
}

func (h *WSHandler) isClosing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closing
}

func (h *WSHandler) authenticate(ctx context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, fmt.Errorf("%w: missing token", service.ErrAuthentication)
	}
	claims, err := h.jwt.ParseAccessToken(token)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: invalid token", service.ErrAuthentication)
	}

	user, err := h.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, fmt.Errorf("%w: unknown user", service.ErrAuthentication)
		}
		return domain.User{}, fmt.Errorf("%w: %v", service.ErrTransientStore, err)
	}
	if user.DisplayName == "" {
		user.DisplayName = claims.DisplayName
	}
	return user, nil
}

// handleFrame procesa un frame; los errores solo vuelven a la sesion que lo envio.
func (h *WSHandler) handleFrame(session realtime.Session, raw []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), h.inflightTimeout)
	defer cancel()

	if err := h.route(ctx, session, raw); err != nil {
		status, code := classify(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("websocket event failed", zap.Error(err), zap.String("session_id", session.ID()))
		}
		_ = session.Send(domain.Event{
			Type: domain.EventError,
			Data: domain.ErrorPayload{Code: code, Error: publicMessage(err, code)},
		})
	}
}

func (h *WSHandler) route(ctx context.Context, session realtime.Session, raw []byte) error {
	frame, err := h.frames.envelope(raw)
	if err != nil {
		return err
	}

	switch frame.Type {
	case domain.EventJoinConversation:
		in, err := decodeData[conversationFrame](h.frames, frame.Data)
		if err != nil {
			return err
		}
		if err := h.chat.Join(ctx, session, in.ConversationID); err != nil {
			return err
		}
		return reply(session, domain.Event{Type: domain.EventJoined, Data: domain.ConversationPayload{ConversationID: in.ConversationID}})

	case domain.EventLeaveConversation:
		in, err := decodeData[conversationFrame](h.frames, frame.Data)
		if err != nil {
			return err
		}
		h.chat.Leave(session, in.ConversationID)
		return reply(session, domain.Event{Type: domain.EventLeft, Data: domain.ConversationPayload{ConversationID: in.ConversationID}})

	case domain.EventSendMessage:
		in, err := decodeData[sendMessageFrame](h.frames, frame.Data)
		if err != nil {
			return err
		}
		msg, err := h.chat.Send(ctx, service.SendInput{
			ConversationID:  in.ConversationID,
			SenderID:        session.UserID(),
			SenderName:      session.DisplayName(),
			Body:            in.Body,
			Type:            domain.MessageType(in.Type),
			AttachmentURL:   in.AttachmentURL,
			OriginSessionID: session.ID(),
		})
		if err != nil {
			return err
		}
		return reply(session, domain.Event{Type: domain.EventMessageSent, Data: domain.NewMessagePayload{
			ConversationID: msg.ConversationID,
			Message:        msg,
			Sender:         domain.UserSummary{ID: session.UserID(), DisplayName: session.DisplayName()},
		}})

	case domain.EventMarkAsDelivered:
		in, err := decodeData[conversationFrame](h.frames, frame.Data)
		if err != nil {
			return err
		}
		_, err = h.chat.MarkDelivered(ctx, in.ConversationID, session.UserID())
		return err

	case domain.EventMarkAsRead:
		in, err := decodeData[conversationFrame](h.frames, frame.Data)
		if err != nil {
			return err
		}
		_, err = h.chat.MarkRead(ctx, in.ConversationID, session.UserID())
		return err

	case domain.EventTyping, domain.EventStopTyping:
		in, err := decodeData[conversationFrame](h.frames, frame.Data)
		if err != nil {
			return err
		}
		return h.chat.Typing(session, in.ConversationID, frame.Type == domain.EventTyping)

	case domain.EventCheckUserStatus:
		in, err := decodeData[userStatusFrame](h.frames, frame.Data)
		if err != nil {
			return err
		}
		st, err := h.presence.Status(ctx, in.UserID)
		if err != nil {
			return err
		}
		return reply(session, domain.Event{Type: domain.EventUserStatusResponse, Data: st})

	case domain.EventCheckMultipleStatuses:
		in, err := decodeData[multipleStatusFrame](h.frames, frame.Data)
		if err != nil {
			return err
		}
		statuses, err := h.presence.StatusBatch(ctx, in.UserIDs)
		if err != nil {
			return err
		}
		return reply(session, domain.Event{Type: domain.EventMultipleStatusResponse, Data: gin.H{"statuses": statuses}})

	default:
		return fmt.Errorf("%w: unknown event type %q", service.ErrInvalidArgument, frame.Type)
	}
}

// reply ignora fallos de envio; la sesion caida se limpia en su propio lector.
func reply(session realtime.Session, evt domain.Event) error {
	_ = session.Send(evt)
	return nil
}

// originChecker permite todo si la lista esta vacia; sin cabecera Origin se acepta.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/"); o != "" {
			set[o] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		if len(set) == 0 {
			return true
		}
		origin := strings.TrimRight(strings.ToLower(r.Header.Get("Origin")), "/")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
