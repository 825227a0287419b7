package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client 代表一个连接到 Hub 的 WebSocket 客户端。
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	roomID   uint
	userID   uint
	nickname string
	send     chan []byte

	// done 关闭时通知 WritePump 退出。send 通道永远不关闭：
	// 广播方持有的客户端快照可能在注销之后仍然尝试发送，
	// 关闭 send 会让这种发送 panic 掉整个进程。
	done      chan struct{}
	closeOnce sync.Once

	// detached 标记连接已因踢出/系统移除而脱离：
	// unregister 时不再触发一时退场。
	detached atomic.Bool
}

// NewClient 创建一个新的 Client 实例。
func NewClient(hub *Hub, conn *websocket.Conn, roomID, userID uint, nickname string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		roomID:   roomID,
		userID:   userID,
		nickname: nickname,
		send:     make(chan []byte, 256),
		done:     make(chan struct{}),
	}
}

// shutdown 通知 WritePump 投递完剩余消息后退出。幂等。
func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Run 启动客户端的读写 goroutine。
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// ReadPump 将消息从 WebSocket 连接泵送到 Hub 的处理通道。
// 它在自己的 goroutine 中运行。
func (c *Client) ReadPump() {
	defer func() {
		unregisterMsg := HubMessage{Type: "unregister", Client: c, RoomID: c.roomID, UserID: c.userID}
		select {
		case c.hub.messageChan <- unregisterMsg:
		case <-time.After(1 * time.Second):
			logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_id": c.roomID}).Warn("Timeout sending unregister message to Hub channel")
		}
		c.conn.Close()
		logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_id": c.roomID}).Info("readPump exited, unregistered client")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			logCtx := logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_id": c.roomID})
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed normally or read error")
			}
			break
		}

		if messageType != websocket.TextMessage {
			continue
		}

		frameMsg := HubMessage{
			Type:    "frame",
			RoomID:  c.roomID,
			UserID:  c.userID,
			Client:  c,
			RawData: message,
		}
		select {
		case c.hub.messageChan <- frameMsg:
		default:
			// 系统过载或 Hub 阻塞，丢弃该条消息
			logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_id": c.roomID}).Warn("Hub message channel full, dropping client message")
		}
	}
}

// WritePump 将消息从 send 通道泵送到 WebSocket 连接，并定期发送 Ping。
// 它在自己的 goroutine 中运行。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_id": c.roomID}).Info("writePump exited")
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_id": c.roomID}).WithError(err).Warn("Failed to write message to websocket")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})

		case <-c.done:
			// 注销：投递完排队中的消息再发送关闭帧
			for {
				select {
				case message := <-c.send:
					_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
						return
					}
				default:
					_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					c.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_id": c.roomID}).WithError(err).Warn("Failed to send ping message")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})
		}
	}
}

func (c *Client) RoomID() uint     { return c.roomID }
func (c *Client) UserID() uint     { return c.userID }
func (c *Client) Nickname() string { return c.nickname }
func (c *Client) CloseConn()       { c.conn.Close() }

func (c *Client) markDetached()  { c.detached.Store(true) }
func (c *Client) Detached() bool { return c.detached.Load() }
