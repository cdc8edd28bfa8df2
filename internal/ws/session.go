package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ECeternalcat/simple-talk-client/internal/metrics"
	"github.com/ECeternalcat/simple-talk-client/internal/models"
	"github.com/ECeternalcat/simple-talk-client/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Serve 返回 /ws 端点的 handler:升级连接、完成握手、
// 登记在线目录、推送初始全量视图,然后进入双循环泵。
func Serve(d *Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		user, ok := authenticate(conn, d)
		if !ok {
			_ = conn.Close()
			return
		}

		client := &Client{
			d:    d,
			conn: conn,
			send: make(chan frame, sendQueueSize),
			user: *user,
		}
		d.presence.Register(user.ID, client)
		metrics.WsConnections.Inc()
		log.Info().Str("username", user.Username).Uint("user_id", user.ID).Msg("user connected")

		go client.writePump()

		// 任何增量事件之前,客户端必须先拿到当前全量状态。
		d.pushRooms(client)
		d.pushPendingRequests(client)
		d.pushFriendList(client)

		client.readPump()
	}
}

// authenticate 执行一次性握手。每条连接只有一次机会:
// register 无论成败都断开;login/auth_with_token 失败即断开;
// 其他任何报文或非文本帧直接断开。
func authenticate(conn *websocket.Conn, d *Dispatcher) (*models.User, bool) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))

	mt, data, err := conn.ReadMessage()
	if err != nil || mt != websocket.TextMessage {
		return nil, false
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}

	switch env.Type {
	case "register":
		var p registerPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, false
		}
		if _, err := d.users.Register(p.Username, p.Password); err != nil {
			writeEnvelope(conn, "register_fail", err.Error())
		} else {
			writeEnvelope(conn, "register_ok", "Registration successful. Please log in.")
		}
		// 注册永远不产生已认证会话。
		return nil, false

	case "login":
		var p loginPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, false
		}
		user, err := d.users.Authenticate(p.Username, p.Password)
		if err != nil {
			if !errors.Is(err, service.ErrInvalidCredentials) {
				log.Error().Err(err).Str("username", p.Username).Msg("login")
			}
			writeEnvelope(conn, "auth_fail", "Invalid username or password.")
			return nil, false
		}
		token, err := d.users.IssueToken(user.ID)
		if err != nil {
			log.Error().Err(err).Uint("user_id", user.ID).Msg("issue token")
			writeEnvelope(conn, "auth_fail", "Failed to create auth token.")
			return nil, false
		}
		writeEnvelope(conn, "auth_ok", authOKPayload{Username: user.Username, Role: user.Role, Token: token})
		return user, true

	case "auth_with_token":
		var p authWithTokenPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, false
		}
		user, err := d.users.UserByToken(p.Token)
		if err != nil {
			// 令牌无效时不回信封,直接断开。
			return nil, false
		}
		writeEnvelope(conn, "auth_ok", authOKPayload{Username: user.Username, Role: user.Role, Token: p.Token})
		return user, true

	default:
		return nil, false
	}
}

// writeEnvelope 在握手阶段直接写连接,此时写循环尚未启动。
func writeEnvelope(conn *websocket.Conn, typ string, payload interface{}) {
	data, err := marshalEnvelope(typ, payload)
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Warn().Str("type", typ).Msg("handshake write failed")
	}
}
