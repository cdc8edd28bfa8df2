package ws

import (
	"encoding/json"
	"time"

	"github.com/ECeternalcat/simple-talk-client/internal/metrics"
	"github.com/ECeternalcat/simple-talk-client/internal/models"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 1 << 20 // 1MB
	sendQueueSize  = 256
)

// frame 是出站队列中的一项,文本信封和二进制透传共用。
type frame struct {
	messageType int
	data        []byte
}

// Client 代表一条已认证连接,由一对读写 goroutine 独占驱动。
// roomID 只在读循环内读写(加入、切换、清理都发生在那条 goroutine 上)。
type Client struct {
	d      *Dispatcher
	conn   *websocket.Conn
	send   chan frame
	user   models.User
	roomID uint // 0 表示不在任何房间
}

// trySend 非阻塞投递:队列满时丢弃该帧,绝不拖垮发送方。
func (c *Client) trySend(f frame) {
	select {
	case c.send <- f:
	default:
		log.Warn().Uint("user_id", c.user.ID).Msg("send queue full, frame dropped")
	}
}

// sendEnvelope 把类型化载荷包成信封后投入出站队列。
func (c *Client) sendEnvelope(typ string, payload interface{}) {
	data, err := marshalEnvelope(typ, payload)
	if err != nil {
		log.Error().Err(err).Str("type", typ).Msg("marshal envelope")
		return
	}
	c.trySend(frame{messageType: websocket.TextMessage, data: data})
}

// Close 强制断开底层连接,读写循环随之退出并触发清理。
func (c *Client) Close() {
	_ = c.conn.Close()
}

// readPump 消费入站帧:文本帧走分发器,二进制帧原样转发给同房间的其他成员。
// 循环退出时统一做会话清理并关闭连接,写循环随之结束。
func (c *Client) readPump() {
	defer func() {
		c.cleanup()
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		switch mt {
		case websocket.TextMessage:
			var env Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				log.Warn().Uint("user_id", c.user.ID).Msg("unparseable inbound message dropped")
				continue
			}
			c.d.handle(c, env)
		case websocket.BinaryMessage:
			if c.roomID != 0 {
				metrics.WsBinaryFramesTotal.Inc()
				c.d.registry.Broadcast(c.roomID, frame{messageType: websocket.BinaryMessage, data: data}, c.user.ID)
			}
		}
	}
}

// cleanup 在连接拆除时恰好执行一次:退出在线目录,若在房间则退出房间。
func (c *Client) cleanup() {
	c.d.presence.release(c.user.ID, c)
	if c.roomID != 0 {
		c.d.registry.Leave(c.roomID, c.user.ID, c)
		c.roomID = 0
	}
	metrics.WsConnections.Dec()
	log.Info().Str("username", c.user.Username).Uint("user_id", c.user.ID).Msg("user disconnected")
}

// writePump 串行消费出站队列,并周期性发 ping 探测对端存活。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case f, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(f.messageType, f.data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
