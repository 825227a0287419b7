package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"chat-room-service/internal/domain"
	"chat-room-service/internal/dto"
	"chat-room-service/internal/service"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// HubMessage 定义了在 Hub 内部通道传递的消息类型。
type HubMessage struct {
	Type    string // "register", "unregister", "frame"
	RoomID  uint
	UserID  uint
	Client  *Client
	RawData []byte // 仅用于 frame (原始 WebSocket 消息)
}

// Hub 是 Broadcast Gateway：维护各房间的活跃客户端集合，
// 把 Coordinator 返回的领域事件扇出给订阅者。
// 变更 (Coordinator) 与投递 (Hub) 分离：广播只在变更完全提交后发生。
type Hub struct {
	messageChan chan HubMessage

	// map[roomID]map[*Client]bool
	rooms   map[uint]map[*Client]bool
	roomsMu sync.RWMutex

	membership *service.MembershipService
	chat       *service.ChatService
}

// NewHub 创建并返回一个新的 Hub 实例。
func NewHub(membership *service.MembershipService, chat *service.ChatService) *Hub {
	if membership == nil {
		panic("MembershipService cannot be nil for Hub")
	}
	if chat == nil {
		panic("ChatService cannot be nil for Hub")
	}
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		rooms:       make(map[uint]map[*Client]bool),
		membership:  membership,
		chat:        chat,
	}
}

// Run 启动 Hub 的主事件处理循环，应该在单独的 goroutine 中运行。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for msg := range h.messageChan {
		switch msg.Type {
		case "register":
			// Join 要访问 MySQL/Redis，不能在主循环里阻塞其他房间的
			// 注册/注销/帧处理；读写 pump 由 registerClient 在入场
			// 裁决之后启动，注销消息不会先于注册完成到达
			go h.registerClient(msg.Client)
		case "unregister":
			h.unregisterClient(msg.Client)
		case "frame":
			// 帧处理走独立 goroutine，避免阻塞 Hub 主循环；
			// (room,user) 串行化由 Coordinator 的 keyedMutex 保证
			go h.handleClientFrame(msg)
		default:
			log.Warnf("Hub: Received unknown message type: %s from user %d in room %d", msg.Type, msg.UserID, msg.RoomID)
		}
	}
	log.Info("Hub is shutting down...")
}

// registerClient 处理客户端注册：先通过 Coordinator 执行 Join，
// 成功后才加入广播集合并投递事件；Ineligible 时直接通知并断开。
func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id": client.RoomID(),
		"user_id": client.UserID(),
		"action":  "registerClient",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, events, err := h.membership.Join(ctx, client.RoomID(), client.UserID(), client.Nickname())
	if err != nil {
		if errors.Is(err, service.ErrIneligible) {
			logCtx.Warn("Hub: Join rejected, user ineligible to rejoin")
			h.sendErrorTo(client, "you are not allowed to rejoin this room")
		} else {
			logCtx.WithError(err).Error("Hub: Join failed")
			h.sendErrorTo(client, "failed to join room, please retry")
		}
		// 只启动写 pump 把错误消息送出去，随后由 done 触发关闭帧
		go client.WritePump()
		client.shutdown()
		return
	}

	h.roomsMu.Lock()
	if _, ok := h.rooms[client.RoomID()]; !ok {
		h.rooms[client.RoomID()] = make(map[*Client]bool)
	}
	h.rooms[client.RoomID()][client] = true
	h.roomsMu.Unlock()
	logCtx.Info("Client registered to Hub")

	client.Run()
	h.Dispatch(events)
}

// unregisterClient 处理客户端注销：从广播集合移除后，
// 通过 Coordinator 执行一时退场 (被踢的客户端除外)。
func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id": client.RoomID(),
		"user_id": client.UserID(),
		"action":  "unregisterClient",
	})

	removed := false
	h.roomsMu.Lock()
	if roomClients, ok := h.rooms[client.RoomID()]; ok {
		if _, exists := roomClients[client]; exists {
			delete(roomClients, client)
			// 绝不 close(client.send)：广播方的快照可能还会发送。
			// 通过 done 通知写 pump 退出
			client.shutdown()
			removed = true
			if len(roomClients) == 0 {
				delete(h.rooms, client.RoomID())
				logCtx.Info("Room empty, removed from Hub")
			}
		}
	}
	h.roomsMu.Unlock()

	if !removed {
		// 注册失败或被踢时已经清理过
		logCtx.Debug("Client not found in room during unregister")
		return
	}
	logCtx.Info("Client unregistered from Hub")

	if client.Detached() {
		// 被踢/被系统移除的连接：成员状态已是终结态，不再触发 Leave
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events, err := h.membership.Leave(ctx, client.RoomID(), client.UserID())
	if err != nil {
		// 退场失败留给周期性 reconciliation 修复
		logCtx.WithError(err).Error("Hub: Leave failed on disconnect")
		return
	}
	h.Dispatch(events)
}

// handleClientFrame 处理客户端发来的一条已标记消息。
// 校验失败或业务失败只通知发送者本人；房间广播仅在变更提交后发生。
func (h *Hub) handleClientFrame(msg HubMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":   msg.RoomID,
		"user_id":   msg.UserID,
		"operation": "handleClientFrame",
	})

	var frame dto.IncomingFrame
	if err := json.Unmarshal(msg.RawData, &frame); err != nil {
		logCtx.WithError(err).Warn("Hub: Malformed frame")
		h.sendErrorTo(msg.Client, "malformed message")
		return
	}
	if problem := frame.Validate(); problem != "" {
		logCtx.Warnf("Hub: Invalid frame: %s", problem)
		h.sendErrorTo(msg.Client, problem)
		return
	}

	switch frame.Type {
	case dto.FrameChat:
		saved, err := h.chat.RecordMessage(ctx, msg.RoomID, msg.UserID, msg.Client.Nickname(), frame.Body)
		if err != nil {
			logCtx.WithError(err).Warn("Hub: Failed to record chat message")
			h.sendErrorTo(msg.Client, "failed to send message")
			return
		}
		payload, err := json.Marshal(dto.OutgoingMessage{Type: domain.EventTypeChatMessage, Message: *saved})
		if err != nil {
			logCtx.WithError(err).Error("Hub: Failed to marshal chat message")
			return
		}
		// 发送者也收到回显：客户端以落库后的消息为准渲染自己的气泡
		h.broadcast(msg.RoomID, payload, nil)

	case dto.FrameExit:
		events, err := h.membership.Exit(ctx, msg.RoomID, msg.UserID, frame.Reason)
		if err != nil {
			logCtx.WithError(err).Warn("Hub: Exit failed")
			h.sendErrorTo(msg.Client, "failed to exit room")
			return
		}
		h.Dispatch(events)

	case dto.FrameKick:
		events, err := h.membership.Kick(ctx, msg.RoomID, frame.TargetUserID, msg.UserID, frame.Reason)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrForbidden):
				h.sendErrorTo(msg.Client, "only the room creator may kick participants")
			case errors.Is(err, service.ErrRoomNotFound):
				h.sendErrorTo(msg.Client, "room not found")
			default:
				logCtx.WithError(err).Error("Hub: Kick failed")
				h.sendErrorTo(msg.Client, "failed to kick participant")
			}
			return
		}
		h.Dispatch(events)
	}
}

// Dispatch 把 Coordinator 返回的领域事件投递给订阅者。
// PrivateEvent 只送达目标用户本人，其余事件广播给整个房间。
// 下游是至少一次语义，事件自带 uuid 供去重。
func (h *Hub) Dispatch(events []domain.Event) {
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			logrus.WithError(err).Error("Hub: Failed to marshal domain event")
			continue
		}
		if private, ok := ev.(domain.PrivateEvent); ok {
			h.sendToUser(private.EventRoomID(), private.TargetUserID(), payload)
			// 私有 Kicked 事件送达后把目标的连接标记脱离并断开
			if _, kicked := ev.(domain.KickedEvent); kicked {
				h.detachUser(private.EventRoomID(), private.TargetUserID())
			}
			continue
		}
		h.broadcast(ev.EventRoomID(), payload, nil)
	}
}

// broadcast 将消息发送给指定房间的所有客户端，排除发送者。
func (h *Hub) broadcast(roomID uint, message []byte, sender *Client) {
	h.roomsMu.RLock()
	roomClients, ok := h.rooms[roomID]
	clientsToSend := make([]*Client, 0, len(roomClients))
	if ok {
		for client := range roomClients {
			if client != sender {
				clientsToSend = append(clientsToSend, client)
			}
		}
	}
	h.roomsMu.RUnlock()

	for _, client := range clientsToSend {
		select {
		case client.send <- message:
		default:
			// 慢客户端不阻塞广播，由其 WritePump/清理逻辑善后
			logrus.WithFields(logrus.Fields{
				"room_id":          roomID,
				"receiver_user_id": client.UserID(),
			}).Warn("Client send channel full during broadcast, skipping this client")
		}
	}
}

// sendToUser 把消息只投递给某房间内指定用户的全部连接。
func (h *Hub) sendToUser(roomID, userID uint, message []byte) {
	h.roomsMu.RLock()
	var targets []*Client
	for client := range h.rooms[roomID] {
		if client.UserID() == userID {
			targets = append(targets, client)
		}
	}
	h.roomsMu.RUnlock()

	for _, client := range targets {
		select {
		case client.send <- message:
		default:
			logrus.WithFields(logrus.Fields{
				"room_id": roomID,
				"user_id": userID,
			}).Warn("Client send channel full during private send, message dropped")
		}
	}
}

// detachUser 把某用户在房间里的全部连接标记为脱离并关闭。
// 脱离的连接在 unregister 时不再触发 Leave (成员状态已是终结态)。
func (h *Hub) detachUser(roomID, userID uint) {
	h.roomsMu.RLock()
	var targets []*Client
	for client := range h.rooms[roomID] {
		if client.UserID() == userID {
			targets = append(targets, client)
		}
	}
	h.roomsMu.RUnlock()

	for _, client := range targets {
		client.markDetached()
		client.CloseConn()
	}
}

// sendErrorTo 把错误消息只发给单个客户端 (与房间广播相互独立)。
func (h *Hub) sendErrorTo(client *Client, message string) {
	if client == nil {
		return
	}
	payload, err := json.Marshal(dto.ErrorDTO{Type: "error", Message: message})
	if err != nil {
		return
	}
	select {
	case client.send <- payload:
	default:
	}
}

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)。
// 返回 true 表示成功入队，false 表示队列已满。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"message_type": msg.Type,
			"room_id":      msg.RoomID,
			"user_id":      msg.UserID,
		}).Warn("Hub message channel full, dropping message")
		return false
	}
}

// Close 关闭 Hub 的处理通道，使 Run 退出。
func (h *Hub) Close() {
	close(h.messageChan)
}
