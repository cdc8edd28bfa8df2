package ws

import (
	"encoding/json"
	"net"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ECeternalcat/simple-talk-client/internal/db"
	"github.com/ECeternalcat/simple-talk-client/internal/models"
	"github.com/ECeternalcat/simple-talk-client/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

const readTimeout = 5 * time.Second

func wsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost user=postgres password=postgres dbname=simpletalk port=5432 sslmode=disable TimeZone=UTC"
	}
	gdb, err := db.Connect(dsn)
	if err != nil {
		t.Skipf("skip: db not available: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Skipf("skip: migrate failed: %v", err)
	}
	return gdb
}

func wsUniqueName(prefix string) string {
	return prefix + "_" + uuid.NewString()[:8]
}

// newWsServer spins up a real websocket endpoint backed by the database
// and returns its ws:// URL.
func newWsServer(t *testing.T, gdb *gorm.DB, cfgFile string, shutdown func()) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	d := NewDispatcher(gdb, NewPresence(), NewRegistry(), cfgFile, shutdown)
	r := gin.New()
	r.GET("/ws", Serve(d))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dialWs(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func writeEnv(t *testing.T, conn *websocket.Conn, typ string, payload interface{}) {
	t.Helper()
	data, err := marshalEnvelope(typ, payload)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readEnv(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return env
}

func expectEnv(t *testing.T, conn *websocket.Conn, want string) Envelope {
	t.Helper()
	env := readEnv(t, conn)
	if env.Type != want {
		t.Fatalf("received %q, want %q", env.Type, want)
	}
	return env
}

// expectClosed fails if the server either keeps the connection open or
// delivers another message.
func expectClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	_, data, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("connection still open, received %q", data)
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		t.Fatal("connection was not closed by the server")
	}
}

// login authenticates a fresh connection and drains the initial full-view
// pushes so tests start from a quiet wire.
func login(t *testing.T, url, username, password string) *websocket.Conn {
	t.Helper()
	conn := dialWs(t, url)
	writeEnv(t, conn, "login", loginPayload{Username: username, Password: password})
	expectEnv(t, conn, "auth_ok")
	expectEnv(t, conn, "chat_list")
	expectEnv(t, conn, "friend_requests")
	expectEnv(t, conn, "friend_list")
	return conn
}

func TestHandshakeRegisterAlwaysDisconnects(t *testing.T) {
	gdb := wsTestDB(t)
	url := newWsServer(t, gdb, "config.json", func() {})
	name := wsUniqueName("reg")

	conn := dialWs(t, url)
	writeEnv(t, conn, "register", registerPayload{Username: name, Password: "password123"})
	expectEnv(t, conn, "register_ok")
	expectClosed(t, conn)

	// A duplicate registration fails and still disconnects.
	conn = dialWs(t, url)
	writeEnv(t, conn, "register", registerPayload{Username: name, Password: "password123"})
	expectEnv(t, conn, "register_fail")
	expectClosed(t, conn)
}

func TestHandshakeLoginFailureDisconnects(t *testing.T) {
	gdb := wsTestDB(t)
	url := newWsServer(t, gdb, "config.json", func() {})
	users := service.NewUserService(gdb)
	u, err := users.Register(wsUniqueName("badpw"), "password123")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	conn := dialWs(t, url)
	writeEnv(t, conn, "login", loginPayload{Username: u.Username, Password: "wrong"})
	expectEnv(t, conn, "auth_fail")
	expectClosed(t, conn)
}

func TestHandshakeWrongFirstKindDisconnects(t *testing.T) {
	gdb := wsTestDB(t)
	url := newWsServer(t, gdb, "config.json", func() {})

	conn := dialWs(t, url)
	writeEnv(t, conn, "join_room", joinRoomPayload{RoomID: 1})
	expectClosed(t, conn)
}

func TestHandshakeLoginAndTokenResume(t *testing.T) {
	gdb := wsTestDB(t)
	url := newWsServer(t, gdb, "config.json", func() {})
	users := service.NewUserService(gdb)
	u, err := users.Register(wsUniqueName("resume"), "password123")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	conn := dialWs(t, url)
	writeEnv(t, conn, "login", loginPayload{Username: u.Username, Password: "password123"})
	env := expectEnv(t, conn, "auth_ok")
	var ok authOKPayload
	if err := json.Unmarshal(env.Payload, &ok); err != nil {
		t.Fatalf("decode auth_ok: %v", err)
	}
	if ok.Username != u.Username || ok.Role != models.RoleNormal || ok.Token == "" {
		t.Fatalf("auth_ok = %+v, want username %q with a token", ok, u.Username)
	}
	expectEnv(t, conn, "chat_list")
	expectEnv(t, conn, "friend_requests")
	expectEnv(t, conn, "friend_list")
	_ = conn.Close()

	// The token from the login survives a reconnect.
	conn = dialWs(t, url)
	writeEnv(t, conn, "auth_with_token", authWithTokenPayload{Token: ok.Token})
	env = expectEnv(t, conn, "auth_ok")
	var resumed authOKPayload
	if err := json.Unmarshal(env.Payload, &resumed); err != nil {
		t.Fatalf("decode auth_ok: %v", err)
	}
	if resumed.Username != u.Username || resumed.Token != ok.Token {
		t.Fatalf("resumed auth_ok = %+v, want same identity and token", resumed)
	}
}

func TestHandshakeInvalidTokenDisconnectsSilently(t *testing.T) {
	gdb := wsTestDB(t)
	url := newWsServer(t, gdb, "config.json", func() {})

	conn := dialWs(t, url)
	writeEnv(t, conn, "auth_with_token", authWithTokenPayload{Token: "no-such-token"})
	expectClosed(t, conn)
}
