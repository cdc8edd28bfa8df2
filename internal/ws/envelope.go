package ws

import "encoding/json"

// Envelope 是两个方向统一的报文包装:{"type": ..., "payload": ...}。
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundEnvelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// marshalEnvelope 序列化一个出站信封。
func marshalEnvelope(typ string, payload interface{}) ([]byte, error) {
	return json.Marshal(outboundEnvelope{Type: typ, Payload: payload})
}

// 入站载荷的封闭集合。未在此列出的 type 一律按噪声丢弃。

type registerPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authWithTokenPayload struct {
	Token string `json:"token"`
}

type joinRoomPayload struct {
	RoomID uint `json:"roomId"`
}

type chatMessagePayload struct {
	RoomID  uint   `json:"roomId"`
	Content string `json:"content"`
}

type sendFriendRequestPayload struct {
	Username string `json:"username"`
}

type respondToFriendRequestPayload struct {
	RequestID uint `json:"requestId"`
	Accept    bool `json:"accept"`
}

type quickChatPayload struct {
	FriendID uint `json:"friendId"`
}

type deleteFriendPayload struct {
	FriendID uint `json:"friendId"`
}

type adminCreateUserPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type adminDeleteUserPayload struct {
	UserID uint `json:"userId"`
}

type adminDeleteRoomPayload struct {
	RoomID uint `json:"roomId"`
}

type adminChangePortPayload struct {
	Port int `json:"port"`
}

// 出站专用载荷。

type authOKPayload struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Token    string `json:"token"`
}

type joinOKPayload struct {
	RoomID uint `json:"roomId"`
}

type friendInfo struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	IsOnline bool   `json:"is_online"`
}

type invitationPayload struct {
	FromUsername string `json:"from_username"`
	RoomID       uint   `json:"room_id"`
}

type voiceChatInvitationPayload struct {
	FromUsername string `json:"from_username"`
}

type errorPayload struct {
	Error string `json:"error"`
}

type fromUsernamePayload struct {
	FromUsername string `json:"from_username"`
}
