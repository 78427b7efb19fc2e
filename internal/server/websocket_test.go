package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"techrepair-server/internal/auth"
	"techrepair-server/internal/store"
)

type wsEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return ws
}

func sendWS(t *testing.T, ws *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"event": event, "data": data})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readWS(t *testing.T, ws *websocket.Conn) wsEvent {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev wsEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("unmarshal %q: %v", raw, err)
	}
	return ev
}

func TestWebSocket_EndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := store.New()
	tokenCfg := auth.TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	router := NewRouter(Deps{Store: st, TokenConfig: tokenCfg, Log: zerolog.Nop(), SessionTTL: 24 * time.Hour})
	srv := httptest.NewServer(router)
	defer srv.Close()

	conn, err := st.CreateUnique(24*time.Hour, time.Now().UnixMilli())
	if err != nil {
		t.Fatalf("CreateUnique: %v", err)
	}

	client := dialWS(t, srv)
	defer client.Close()
	sendWS(t, client, "join", map[string]string{"accessCode": conn.AccessCode, "type": "client"})
	if ev := readWS(t, client); ev.Event != "clientJoined" {
		t.Fatalf("expected clientJoined, got %+v", ev)
	}

	tech := dialWS(t, srv)
	defer tech.Close()
	sendWS(t, tech, "join", map[string]string{"accessCode": conn.AccessCode, "type": "technician"})
	if ev := readWS(t, tech); ev.Event != "technicianJoined" {
		t.Fatalf("expected technicianJoined, got %+v", ev)
	}
	if ev := readWS(t, client); ev.Event != "technicianJoined" {
		t.Fatalf("expected technicianJoined at client, got %+v", ev)
	}

	sendWS(t, tech, "message", map[string]any{
		"accessCode": conn.AccessCode,
		"content":    "hello",
		"senderType": "technician",
	})

	for _, ws := range []*websocket.Conn{client, tech} {
		ev := readWS(t, ws)
		if ev.Event != "message" {
			t.Fatalf("expected message, got %+v", ev)
		}
		var body struct {
			Content    string `json:"content"`
			SenderType string `json:"senderType"`
			CreatedAt  int64  `json:"createdAt"`
		}
		if err := json.Unmarshal(ev.Data, &body); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if body.Content != "hello" || body.SenderType != "technician" || body.CreatedAt == 0 {
			t.Fatalf("unexpected message body %+v", body)
		}
	}

	// client leaves; technician hears about it
	_ = client.Close()
	if ev := readWS(t, tech); ev.Event != "userDisconnected" {
		t.Fatalf("expected userDisconnected, got %+v", ev)
	}
}

func TestWebSocket_JoinInvalidCode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := store.New()
	tokenCfg := auth.TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	router := NewRouter(Deps{Store: st, TokenConfig: tokenCfg, Log: zerolog.Nop(), SessionTTL: 24 * time.Hour})
	srv := httptest.NewServer(router)
	defer srv.Close()

	ws := dialWS(t, srv)
	defer ws.Close()
	sendWS(t, ws, "join", map[string]string{"accessCode": "000 000 000", "type": "client"})
	if ev := readWS(t, ws); ev.Event != "error" {
		t.Fatalf("expected error, got %+v", ev)
	}
}

func TestWebSocket_HTTPSendReachesRoom(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := store.New()
	tokenCfg := auth.TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	router := NewRouter(Deps{Store: st, TokenConfig: tokenCfg, Log: zerolog.Nop(), SessionTTL: 24 * time.Hour})
	srv := httptest.NewServer(router)
	defer srv.Close()

	conn, err := st.CreateUnique(24*time.Hour, time.Now().UnixMilli())
	if err != nil {
		t.Fatalf("CreateUnique: %v", err)
	}

	ws := dialWS(t, srv)
	defer ws.Close()
	sendWS(t, ws, "join", map[string]string{"accessCode": conn.AccessCode, "type": "client"})
	if ev := readWS(t, ws); ev.Event != "clientJoined" {
		t.Fatalf("expected clientJoined, got %+v", ev)
	}

	w := doJSON(t, router, "POST", "/chat/"+pathEscapeCode(conn.AccessCode)+"/messages", "", map[string]any{
		"content": "from http", "senderType": "client",
	})
	if w.Code != 201 {
		t.Fatalf("send: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	ev := readWS(t, ws)
	if ev.Event != "message" {
		t.Fatalf("expected message, got %+v", ev)
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(ev.Data, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Content != "from http" {
		t.Fatalf("unexpected content %q", body.Content)
	}
}
