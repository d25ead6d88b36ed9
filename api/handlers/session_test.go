package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/pairpad/backend/internal/model"
	"github.com/pairpad/backend/internal/registry"
	"github.com/pairpad/backend/internal/runner"
	"github.com/pairpad/backend/internal/ws"
)

// echoRunner emits the code it was given as a single log event.
type echoRunner struct{}

func (echoRunner) Run(_ context.Context, code string, emit func(runner.OutputEvent)) error {
	emit(runner.OutputEvent{Kind: runner.OutputLog, Text: code})
	return nil
}

// newTestAPI wires the router the way cmd/server does and returns it with
// its backing store.
func newTestAPI(t *testing.T) (*httptest.Server, *registry.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := registry.New()
	relay := ws.NewHandler(store)

	runners := runner.NewRegistry()
	runners.Register("echoscript", echoRunner{})

	router := gin.New()
	api := router.Group("/api")
	NewSessionHandler(store, runners).RegisterRoutes(api)
	NewWebSocketHandler(relay).RegisterRoutes(api)

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		relay.Close()
	})

	return server, store
}

func postJSON(t *testing.T, url string, out any) int {
	t.Helper()

	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestCreateSession(t *testing.T) {
	server, _ := newTestAPI(t)

	var created CreateSessionResponse
	status := postJSON(t, server.URL+"/api/session", &created)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if created.ID == "" {
		t.Fatal("expected an id in the response")
	}

	var session model.Session
	status = getJSON(t, server.URL+"/api/session/"+created.ID, &session)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if session.ID != created.ID {
		t.Errorf("read id %q, want %q", session.ID, created.ID)
	}
	if session.Code != model.DefaultCode {
		t.Errorf("read code %q, want default", session.Code)
	}
	if session.Language != model.DefaultLanguage {
		t.Errorf("read language %q, want %q", session.Language, model.DefaultLanguage)
	}
	if session.CreatedAt == 0 {
		t.Error("read createdAt 0")
	}
}

func TestGetSessionVivifiesUnknownID(t *testing.T) {
	server, _ := newTestAPI(t)

	var first model.Session
	if status := getJSON(t, server.URL+"/api/session/never-created", &first); status != http.StatusOK {
		t.Fatalf("expected 200 for unknown id, got %d", status)
	}
	if first.Code != model.DefaultCode || first.Language != model.DefaultLanguage {
		t.Errorf("vivified session has wrong defaults: %+v", first)
	}

	var second model.Session
	getJSON(t, server.URL+"/api/session/never-created", &second)
	if second.CreatedAt != first.CreatedAt {
		t.Errorf("two reads of the same unknown id returned different createdAt: %d vs %d",
			first.CreatedAt, second.CreatedAt)
	}
}

func TestRunSession(t *testing.T) {
	server, store := newTestAPI(t)
	ctx := context.Background()

	t.Run("runs stored code with the registered runner", func(t *testing.T) {
		session, _ := store.Create(ctx)
		store.SetCode(ctx, session.ID, "say hello")
		store.SetLanguage(ctx, session.ID, "echoscript")

		var result RunResponse
		status := postJSON(t, server.URL+"/api/session/"+session.ID+"/run", &result)
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}
		if result.Language != "echoscript" {
			t.Errorf("result language = %q", result.Language)
		}
		if len(result.Events) != 1 || result.Events[0].Text != "say hello" {
			t.Errorf("result events = %+v", result.Events)
		}
	})

	t.Run("unsupported language is an explicit outcome", func(t *testing.T) {
		session, _ := store.Create(ctx)
		// default language is javascript; no runner registered for it here

		var errResp ErrorResponse
		status := postJSON(t, server.URL+"/api/session/"+session.ID+"/run", &errResp)
		if status != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", status)
		}
		if errResp.Error.Code != "UNSUPPORTED_LANGUAGE" {
			t.Errorf("error code = %q", errResp.Error.Code)
		}
	})
}

// TestRESTAndRelayScenario walks the whole flow: create over REST, read it
// back, join two editors over the relay, and fan out a change.
func TestRESTAndRelayScenario(t *testing.T) {
	server, _ := newTestAPI(t)

	var created CreateSessionResponse
	if status := postJSON(t, server.URL+"/api/session", &created); status != http.StatusCreated {
		t.Fatalf("create returned %d", status)
	}

	var session model.Session
	if status := getJSON(t, server.URL+"/api/session/"+created.ID, &session); status != http.StatusOK {
		t.Fatalf("read returned %d", status)
	}

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws"
	connA := dialAndJoin(t, wsURL, created.ID)
	connB := dialAndJoin(t, wsURL, created.ID)

	code := "console.log(1)"
	writeEvent(t, connA, ws.Message{Type: ws.EventCodeChange, SessionID: created.ID, Code: &code})

	event := readWithin(t, connB, time.Second)
	if event.Type != ws.EventCodeChange || event.Code == nil || *event.Code != code {
		t.Fatalf("B received %+v", event)
	}

	// A hears nothing for its own event
	connA.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, data, err := connA.ReadMessage(); err == nil {
		t.Fatalf("A received an echo: %q", data)
	}

	// REST read reflects the relayed mutation
	if status := getJSON(t, server.URL+"/api/session/"+created.ID, &session); status != http.StatusOK {
		t.Fatalf("re-read returned %d", status)
	}
	if session.Code != code {
		t.Errorf("REST read code %q after relay mutation", session.Code)
	}
}

func dialAndJoin(t *testing.T, wsURL, sessionID string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })

	writeEvent(t, conn, ws.Message{Type: ws.EventJoinSession, SessionID: sessionID})

	snapshot := readWithin(t, conn, time.Second)
	if snapshot.Type != ws.EventSessionData {
		t.Fatalf("expected session-data, got %s", snapshot.Type)
	}
	return conn
}

func writeEvent(t *testing.T, conn *websocket.Conn, msg ws.Message) {
	t.Helper()

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Failed to marshal event: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("Failed to write event: %v", err)
	}
}

func readWithin(t *testing.T, conn *websocket.Conn, timeout time.Duration) *ws.Message {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read event: %v", err)
	}

	var msg ws.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal %q: %v", data, err)
	}
	return &msg
}
