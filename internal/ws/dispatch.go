package ws

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/ECeternalcat/simple-talk-client/internal/config"
	"github.com/ECeternalcat/simple-talk-client/internal/metrics"
	"github.com/ECeternalcat/simple-talk-client/internal/models"
	"github.com/ECeternalcat/simple-talk-client/internal/service"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Dispatcher 把入站信封解码为封闭的操作集合并执行。
// 未知类型、载荷校验失败、非管理员调用管理操作:一律静默丢弃。
type Dispatcher struct {
	users    *service.UserService
	friends  *service.FriendService
	messages *service.MessageService
	admin    *service.AdminService
	presence *Presence
	registry *Registry
	cfgFile  string
	shutdown func()
}

// NewDispatcher 组装全部依赖。shutdown 必须是幂等的一次性触发器。
func NewDispatcher(db *gorm.DB, presence *Presence, registry *Registry, cfgFile string, shutdown func()) *Dispatcher {
	return &Dispatcher{
		users:    service.NewUserService(db),
		friends:  service.NewFriendService(db),
		messages: service.NewMessageService(db),
		admin:    service.NewAdminService(db),
		presence: presence,
		registry: registry,
		cfgFile:  cfgFile,
		shutdown: shutdown,
	}
}

func (d *Dispatcher) handle(c *Client, env Envelope) {
	switch env.Type {
	case "join_room":
		var p joinRoomPayload
		if json.Unmarshal(env.Payload, &p) != nil || p.RoomID == 0 {
			return
		}
		d.joinRoom(c, p.RoomID)

	case "send_chat_message":
		var p chatMessagePayload
		if json.Unmarshal(env.Payload, &p) != nil {
			return
		}
		d.sendChatMessage(c, p)

	case "get_chat_list":
		d.pushRooms(c)

	case "get_friend_list":
		d.pushFriendList(c)

	case "quick_chat_with_friend":
		var p quickChatPayload
		if json.Unmarshal(env.Payload, &p) != nil || p.FriendID == 0 {
			return
		}
		d.quickChat(c, p.FriendID)

	case "send_friend_request":
		var p sendFriendRequestPayload
		if json.Unmarshal(env.Payload, &p) != nil {
			return
		}
		d.sendFriendRequest(c, p.Username)

	case "respond_to_friend_request":
		var p respondToFriendRequestPayload
		if json.Unmarshal(env.Payload, &p) != nil {
			return
		}
		d.respondToFriendRequest(c, p)

	case "delete_friend":
		var p deleteFriendPayload
		if json.Unmarshal(env.Payload, &p) != nil || p.FriendID == 0 {
			return
		}
		d.deleteFriend(c, p.FriendID)

	case "request_voice_chat":
		d.requestVoiceChat(c)

	case "admin_get_all_users":
		if c.user.Role != models.RoleAdmin {
			return
		}
		d.pushAllUsers(c)

	case "admin_get_all_rooms":
		if c.user.Role != models.RoleAdmin {
			return
		}
		d.pushAllRooms(c)

	case "admin_create_user":
		if c.user.Role != models.RoleAdmin {
			return
		}
		var p adminCreateUserPayload
		if json.Unmarshal(env.Payload, &p) != nil {
			return
		}
		if err := d.admin.CreateUser(p.Username, p.Password, p.Role); err != nil {
			c.sendEnvelope("admin_create_user_fail", errorPayload{Error: err.Error()})
			return
		}
		c.sendEnvelope("admin_create_user_ok", "User created successfully.")
		d.pushAllUsers(c)

	case "admin_delete_user":
		if c.user.Role != models.RoleAdmin {
			return
		}
		var p adminDeleteUserPayload
		if json.Unmarshal(env.Payload, &p) != nil || p.UserID == 0 {
			return
		}
		if err := d.admin.DeleteUser(p.UserID); err != nil {
			c.sendEnvelope("admin_error", errorPayload{Error: err.Error()})
			return
		}
		c.sendEnvelope("admin_generic_ok", "User deleted successfully.")
		d.pushAllUsers(c)

	case "admin_delete_room":
		if c.user.Role != models.RoleAdmin {
			return
		}
		var p adminDeleteRoomPayload
		if json.Unmarshal(env.Payload, &p) != nil || p.RoomID == 0 {
			return
		}
		if err := d.admin.DeleteRoom(p.RoomID); err != nil {
			c.sendEnvelope("admin_error", errorPayload{Error: err.Error()})
			return
		}
		c.sendEnvelope("admin_generic_ok", "Room deleted successfully.")
		d.pushAllRooms(c)

	case "admin_shutdown_server":
		if c.user.Role != models.RoleAdmin {
			return
		}
		log.Warn().Str("username", c.user.Username).Msg("shutdown requested by admin")
		d.shutdown()

	case "admin_change_port":
		if c.user.Role != models.RoleAdmin {
			return
		}
		var p adminChangePortPayload
		if json.Unmarshal(env.Payload, &p) != nil {
			return
		}
		if err := config.SavePort(d.cfgFile, p.Port); err != nil {
			c.sendEnvelope("admin_change_port_fail", errorPayload{Error: err.Error()})
			return
		}
		c.sendEnvelope("admin_change_port_ok", struct{}{})
		log.Warn().Int("port", p.Port).Str("username", c.user.Username).Msg("port changed, restarting")
		// 给写循环留出冲刷应答的时间,再触发停机。
		time.Sleep(100 * time.Millisecond)
		d.shutdown()

	default:
		// 未知类型按噪声处理,不回任何错误。
	}
}

// joinRoom 把会话切换到目标房间:先退出旧房间,保证同一时刻至多在一个房间。
// 成功后回 join_ok 并补发全部历史消息。
func (d *Dispatcher) joinRoom(c *Client, roomID uint) {
	if c.roomID != 0 && c.roomID != roomID {
		d.registry.Leave(c.roomID, c.user.ID, c)
	}
	d.registry.Join(roomID, c.user.ID, c)
	c.roomID = roomID

	c.sendEnvelope("join_ok", joinOKPayload{RoomID: roomID})
	log.Info().Str("username", c.user.Username).Uint("room_id", roomID).Msg("joined room")

	history, err := d.messages.History(roomID)
	if err != nil {
		log.Error().Err(err).Uint("room_id", roomID).Msg("load message history")
		return
	}
	c.sendEnvelope("message_history", history)
}

// sendChatMessage 落库并广播到房间全部在线成员(含发送者)。
// 只接受发往当前所在房间的消息。
func (d *Dispatcher) sendChatMessage(c *Client, p chatMessagePayload) {
	if c.roomID == 0 || p.RoomID != c.roomID || p.Content == "" {
		return
	}
	dto, err := d.messages.Create(c.roomID, c.user.Username, p.Content)
	if err != nil {
		log.Error().Err(err).Uint("room_id", c.roomID).Msg("persist chat message")
		return
	}
	data, err := marshalEnvelope("new_chat_message", dto)
	if err != nil {
		log.Error().Err(err).Msg("marshal chat message")
		return
	}
	metrics.WsMessagesTotal.Inc()
	d.registry.Broadcast(c.roomID, frame{messageType: websocket.TextMessage, data: data}, 0)
}

// quickChat 解析(或创建)与好友的私聊房间并把自己带进去;
// 好友在线时向其发送 invitation。
func (d *Dispatcher) quickChat(c *Client, friendID uint) {
	roomID, err := d.friends.GetOrCreatePrivateRoom(c.user.ID, friendID)
	if err != nil {
		log.Error().Err(err).Uint("friend_id", friendID).Msg("get or create private room")
		return
	}

	friendClient, friendOnline := d.presence.Lookup(friendID)

	d.joinRoom(c, roomID)

	if friendOnline {
		friendClient.sendEnvelope("invitation", invitationPayload{FromUsername: c.user.Username, RoomID: roomID})
	}
}

// sendFriendRequest 按权威行状态分支:pending 通知双方,
// accepted 提示已是好友,其余情况回失败信封。
func (d *Dispatcher) sendFriendRequest(c *Client, username string) {
	info, err := d.friends.SendRequest(c.user.ID, username)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) || errors.Is(err, service.ErrSelfRequest) {
			c.sendEnvelope("friend_request_fail", errorPayload{Error: "User not found, or you cannot send a request to yourself."})
			return
		}
		log.Error().Err(err).Str("to", username).Msg("send friend request")
		c.sendEnvelope("friend_request_fail", errorPayload{Error: "Cannot send friend request at this time."})
		return
	}

	switch info.Status {
	case models.RequestPending:
		c.sendEnvelope("friend_request_sent", map[string]string{"username": username})
		if target, ok := d.presence.Lookup(info.ToUserID); ok {
			target.sendEnvelope("new_friend_request", info)
		}
	case models.RequestAccepted:
		c.sendEnvelope("friend_request_fail", errorPayload{Error: "You are already friends with this user."})
	default:
		c.sendEnvelope("friend_request_fail", errorPayload{Error: "Cannot send friend request at this time."})
	}
}

// respondToFriendRequest 处理接受/拒绝。任何改变他人可见视图的成功操作,
// 都向受影响的在线用户推送刷新后的全量视图。
func (d *Dispatcher) respondToFriendRequest(c *Client, p respondToFriendRequestPayload) {
	if p.Accept {
		sender, err := d.friends.Accept(p.RequestID)
		if err != nil {
			c.sendEnvelope("friend_request_fail", errorPayload{Error: err.Error()})
			return
		}
		c.sendEnvelope("friend_request_accepted", fromUsernamePayload{FromUsername: sender.Username})
		d.pushRooms(c)
		d.pushPendingRequests(c)
		d.pushFriendList(c)

		if sc, ok := d.presence.Lookup(sender.ID); ok {
			log.Info().Str("username", sender.Username).Msg("notifying sender of accepted request")
			sc.sendEnvelope("friend_request_accepted", fromUsernamePayload{FromUsername: c.user.Username})
			d.pushRooms(sc)
			d.pushFriendList(sc)
		}
		return
	}

	sender, err := d.friends.Reject(p.RequestID)
	if err != nil {
		c.sendEnvelope("friend_request_fail", errorPayload{Error: err.Error()})
		return
	}
	if sender == nil {
		return
	}
	c.sendEnvelope("friend_request_rejected", fromUsernamePayload{FromUsername: sender.Username})
	d.pushPendingRequests(c)

	if sc, ok := d.presence.Lookup(sender.ID); ok {
		sc.sendEnvelope("friend_request_rejected", fromUsernamePayload{FromUsername: c.user.Username})
	}
}

// deleteFriend 删除好友关系后刷新双方的好友列表和聊天列表。
func (d *Dispatcher) deleteFriend(c *Client, friendID uint) {
	if err := d.friends.DeleteFriend(c.user.ID, friendID); err != nil {
		log.Error().Err(err).Uint("friend_id", friendID).Msg("delete friend")
		return
	}
	d.pushFriendList(c)
	d.pushRooms(c)

	if fc, ok := d.presence.Lookup(friendID); ok {
		d.pushFriendList(fc)
		d.pushRooms(fc)
	}
}

// requestVoiceChat 邀请当前房间里除自己之外、且仍在线的成员。
func (d *Dispatcher) requestVoiceChat(c *Client) {
	if c.roomID == 0 {
		return
	}
	payload := voiceChatInvitationPayload{FromUsername: c.user.Username}
	for _, uid := range d.registry.MembersOf(c.roomID) {
		if uid == c.user.ID {
			continue
		}
		if peer, ok := d.presence.Lookup(uid); ok {
			peer.sendEnvelope("voice_chat_invitation", payload)
		}
	}
}

// pushRooms 向目标连接推送其最新聊天列表(全量视图)。
func (d *Dispatcher) pushRooms(c *Client) {
	rooms, err := d.friends.Rooms(c.user.ID)
	if err != nil {
		log.Error().Err(err).Uint("user_id", c.user.ID).Msg("load room list")
		return
	}
	c.sendEnvelope("chat_list", rooms)
}

// pushPendingRequests 推送待处理的好友请求列表。
func (d *Dispatcher) pushPendingRequests(c *Client) {
	reqs, err := d.friends.Pending(c.user.ID)
	if err != nil {
		log.Error().Err(err).Uint("user_id", c.user.ID).Msg("load pending requests")
		return
	}
	c.sendEnvelope("friend_requests", reqs)
}

// pushFriendList 推送好友列表,在线状态来自在线目录。
func (d *Dispatcher) pushFriendList(c *Client) {
	friends, err := d.friends.Friends(c.user.ID)
	if err != nil {
		log.Error().Err(err).Uint("user_id", c.user.ID).Msg("load friend list")
		return
	}
	out := make([]friendInfo, 0, len(friends))
	for _, f := range friends {
		out = append(out, friendInfo{ID: f.ID, Username: f.Username, IsOnline: d.presence.IsOnline(f.ID)})
	}
	c.sendEnvelope("friend_list", out)
}

func (d *Dispatcher) pushAllUsers(c *Client) {
	users, err := d.admin.AllUsers()
	if err != nil {
		log.Error().Err(err).Msg("load all users")
		c.sendEnvelope("admin_error", errorPayload{Error: "Failed to retrieve users."})
		return
	}
	c.sendEnvelope("admin_all_users", users)
}

func (d *Dispatcher) pushAllRooms(c *Client) {
	rooms, err := d.admin.AllRooms()
	if err != nil {
		log.Error().Err(err).Msg("load all rooms")
		c.sendEnvelope("admin_error", errorPayload{Error: "Failed to retrieve rooms."})
		return
	}
	c.sendEnvelope("admin_all_rooms", rooms)
}
