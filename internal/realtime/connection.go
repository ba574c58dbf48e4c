package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat-presence/internal/domain"
)

const (
	writeWait    = 10 * time.Second
	pingPeriod   = 30 * time.Second
	readWait     = 60 * time.Second
	maxFrameSize = 1 << 20
	sendBuffer   = 128
)

// Connection envuelve el websocket; las escrituras pasan por un canal con buffer.
type Connection struct {
	id          string
	userID      int64
	displayName string
	createdAt   time.Time

	ws     *websocket.Conn
	send   chan domain.Event
	once   sync.Once
	closed chan struct{}
}

var _ Session = (*Connection)(nil)

// NewConnection crea la conexion con un handle nuevo.
func NewConnection(user domain.User, ws *websocket.Conn) *Connection {
	return &Connection{
		id:          uuid.NewString(),
		userID:      user.ID,
		displayName: user.DisplayName,
		createdAt:   time.Now().UTC(),
		ws:          ws,
		send:        make(chan domain.Event, sendBuffer),
		closed:      make(chan struct{}),
	}
}

func (c *Connection) ID() string          { return c.id }
func (c *Connection) UserID() int64       { return c.userID }
func (c *Connection) DisplayName() string { return c.displayName }

func (c *Connection) Info() domain.Session {
	return domain.Session{
		ID:          c.id,
		UserID:      c.userID,
		DisplayName: c.displayName,
		CreatedAt:   c.createdAt,
	}
}

// Start arranca el bucle de escritura. Llamar una sola vez.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Send encola evt. Si el buffer esta lleno se cierra la conexion.
func (c *Connection) Send(evt domain.Event) error {
	select {
	case <-c.closed:
		return ErrSessionClosed
	default:
	}
	select {
	case c.send <- evt:
		return nil
	default:
		go c.Close(websocket.CloseGoingAway, "send buffer full")
		return ErrBufferFull
	}
}

// Done se cierra cuando la conexion termina.
func (c *Connection) Done() <-chan struct{} {
	return c.closed
}

// Close cierra la conexion y detiene la escritura.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.closed)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

// ReadLoop lee frames y los pasa a handle hasta que el cliente se va.
func (c *Connection) ReadLoop(handle func(payload []byte)) error {
	c.ws.SetReadLimit(maxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(readWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		handle(data)
	}
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case evt := <-c.send:
			if err := c.writeEvent(evt); err != nil {
				c.Close(websocket.CloseInternalServerErr, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.writePing(); err != nil {
				c.Close(websocket.CloseGoingAway, "ping failed")
				return
			}
		}
	}
}

func (c *Connection) writeEvent(evt domain.Event) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteJSON(evt)
}

func (c *Connection) writePing() error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}
