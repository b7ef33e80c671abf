package chathub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"strangerchat/backend/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBuffer     = 32
	intentTimeout  = 15 * time.Second
)

// WebSocketClient is a live participant connection over gorilla/websocket.
type WebSocketClient struct {
	UserID int64
	Conn   *websocket.Conn
	Hub    *ManagerService
	Send   chan Frame

	logger    *zap.Logger
	closeOnce sync.Once
}

func NewWebSocketClient(userID int64, conn *websocket.Conn, hub *ManagerService, logger *zap.Logger) *WebSocketClient {
	return &WebSocketClient{
		UserID: userID,
		Conn:   conn,
		Hub:    hub,
		Send:   make(chan Frame, sendBuffer),
		logger: logger.With(zap.Int64("participant_id", userID)),
	}
}

func (c *WebSocketClient) GetUserID() int64             { return c.UserID }
func (c *WebSocketClient) GetSendChannel() chan<- Frame { return c.Send }

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes Send, which stops writePump and with it the connection.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

func (c *WebSocketClient) readPump() {
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), intentTimeout)
		defer cancel()
		c.Hub.Leave(ctx, c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var in Intent
		if err := json.Unmarshal(data, &in); err != nil {
			c.logger.Debug("undecodable intent", zap.Error(err))
			c.reply(models.ErrInvalidCommand)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), intentTimeout)
		err = c.Hub.HandleIntent(ctx, c.UserID, in)
		cancel()
		if err != nil {
			c.reply(err)
		}
	}
}

// reply reports a failed intent back to this participant through the Router,
// which only writes to the channel while the client is registered.
func (c *WebSocketClient) reply(err error) {
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	if nerr := c.Hub.Router.Notify(ctx, c.UserID, c.Hub.Describe(err)); nerr != nil {
		c.logger.Debug("error reply not delivered", zap.Error(nerr))
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(frame); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
