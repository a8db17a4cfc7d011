package wsbridge_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/goliatone/go-formembed/pkg/builder"
	"github.com/goliatone/go-formembed/pkg/builder/wsbridge"
	"github.com/goliatone/go-formembed/pkg/catalog"
	"github.com/goliatone/go-formembed/pkg/form"
)

func newServer(t *testing.T) (*wsbridge.Bridge, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	bridge, err := wsbridge.New()
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	router := gin.New()
	bridge.Register(router, "/builder")
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return bridge, srv
}

func dialPage(t *testing.T, srv *httptest.Server, mount string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/builder/" + mount + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) wsbridge.Message {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg wsbridge.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

func writeMessage(t *testing.T, ws *websocket.Conn, msg wsbridge.Message) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

type attachResult struct {
	inst builder.Instance
	err  error
}

func attachAsync(bridge *wsbridge.Bridge, ctx context.Context, seed form.Schema) <-chan attachResult {
	out := make(chan attachResult, 1)
	go func() {
		inst, err := bridge.Attach(ctx, "main", seed, builder.AttachOptions{Display: "form"})
		out <- attachResult{inst: inst, err: err}
	}()
	return out
}

func awaitAttach(t *testing.T, results <-chan attachResult) attachResult {
	t.Helper()
	select {
	case res := <-results:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("attach did not return")
		return attachResult{}
	}
}

func TestBridgeAttachSeedsPage(t *testing.T) {
	bridge, srv := newServer(t)
	seed := form.Schema(`{"title":"Survey","components":[]}`)

	results := attachAsync(bridge, context.Background(), seed)
	ws := dialPage(t, srv, "main")

	msg := readMessage(t, ws)
	if msg.Type != wsbridge.TypeSeed {
		t.Fatalf("expected seed, got %q", msg.Type)
	}
	if !msg.Schema.Equal(seed) {
		t.Fatalf("seed schema %s, want %s", msg.Schema, seed)
	}
	if msg.Options == nil || msg.Options.Display != "form" {
		t.Fatalf("attach options not forwarded: %+v", msg.Options)
	}

	ready := form.Schema(`{"title":"Survey","components":[{"type":"button"}]}`)
	writeMessage(t, ws, wsbridge.Message{Type: wsbridge.TypeReady, Schema: ready})

	res := awaitAttach(t, results)
	if res.err != nil {
		t.Fatalf("attach: %v", res.err)
	}
	if got := res.inst.CurrentSchema(); !got.Equal(ready) {
		t.Fatalf("current schema %s, want %s", got, ready)
	}
	if !bridge.Connected("main") {
		t.Fatal("expected page to be connected")
	}

	changes := make(chan form.Schema, 1)
	res.inst.OnChange(func(schema form.Schema) { changes <- schema })
	edited := form.Schema(`{"title":"Survey","components":[{"type":"email"}]}`)
	writeMessage(t, ws, wsbridge.Message{Type: wsbridge.TypeChange, Schema: edited})
	select {
	case got := <-changes:
		if !got.Equal(edited) {
			t.Fatalf("change %s, want %s", got, edited)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("change not delivered")
	}

	if err := res.inst.Reset(form.BlankSchema()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if msg := readMessage(t, ws); msg.Type != wsbridge.TypeReset || !msg.Schema.Equal(form.BlankSchema()) {
		t.Fatalf("unexpected reset frame: %+v", msg)
	}

	if err := res.inst.Destroy(); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if msg := readMessage(t, ws); msg.Type != wsbridge.TypeDestroy {
		t.Fatalf("expected destroy, got %q", msg.Type)
	}
	if err := res.inst.Destroy(); err != nil {
		t.Fatalf("second destroy: %v", err)
	}
}

func TestBridgeAttachReportsPageError(t *testing.T) {
	bridge, srv := newServer(t)
	ws := dialPage(t, srv, "main")
	results := attachAsync(bridge, context.Background(), form.BlankSchema())

	if msg := readMessage(t, ws); msg.Type != wsbridge.TypeSeed {
		t.Fatalf("expected seed, got %q", msg.Type)
	}
	writeMessage(t, ws, wsbridge.Message{Type: wsbridge.TypeError, Error: "Formio is not defined"})

	res := awaitAttach(t, results)
	if res.err == nil || !strings.Contains(res.err.Error(), "Formio is not defined") {
		t.Fatalf("expected page error, got %v", res.err)
	}
}

func TestBridgeAttachHonoursCancellation(t *testing.T) {
	bridge, _ := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	results := attachAsync(bridge, ctx, form.BlankSchema())
	cancel()

	res := awaitAttach(t, results)
	if !errors.Is(res.err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", res.err)
	}
}

func TestBridgeDisconnectFailsPendingAttach(t *testing.T) {
	bridge, srv := newServer(t)
	ws := dialPage(t, srv, "main")
	results := attachAsync(bridge, context.Background(), form.BlankSchema())

	if msg := readMessage(t, ws); msg.Type != wsbridge.TypeSeed {
		t.Fatalf("expected seed, got %q", msg.Type)
	}
	_ = ws.Close()

	res := awaitAttach(t, results)
	if !errors.Is(res.err, wsbridge.ErrConnectionClosed) {
		t.Fatalf("expected ErrConnectionClosed, got %v", res.err)
	}
}

func TestBridgeServesHostPage(t *testing.T) {
	_, srv := newServer(t)
	resp, err := http.Get(srv.URL + "/builder/main")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("unexpected content type %q", ct)
	}
	page := string(body)
	for _, want := range []string{
		`<div id="builder-main"></div>`,
		`var socketPath = "/builder/main/ws";`,
		`Formio.setBaseUrl("https://forms.example.com");`,
		`https://cdn.form.io/formiojs/formio.full.min.js`,
	} {
		if !strings.Contains(page, want) {
			t.Fatalf("page missing %q:\n%s", want, page)
		}
	}
}

func TestSessionOverBridge(t *testing.T) {
	bridge, srv := newServer(t)
	cat, err := catalog.NewMemory()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	session, err := builder.NewSession(bridge, cat, builder.WithMount("main"))
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	defer session.Detach()

	ctx := context.Background()
	if err := session.Mount(ctx, nil); err != nil {
		t.Fatalf("mount: %v", err)
	}
	ws := dialPage(t, srv, "main")
	if msg := readMessage(t, ws); msg.Type != wsbridge.TypeSeed {
		t.Fatalf("expected seed, got %q", msg.Type)
	}
	writeMessage(t, ws, wsbridge.Message{Type: wsbridge.TypeReady, Schema: form.BlankSchema()})

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := session.Wait(waitCtx); err != nil {
		t.Fatalf("wait: %v", err)
	}

	edited := form.Schema(`{"title":"Bridge Survey","components":[{"type":"textfield"}]}`)
	writeMessage(t, ws, wsbridge.Message{Type: wsbridge.TypeChange, Schema: edited})

	deadline := time.Now().Add(2 * time.Second)
	for {
		snapshot, err := session.Snapshot()
		if err == nil && snapshot.Equal(edited) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("snapshot never reflected change: %s (%v)", snapshot, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	saved, err := session.Save(ctx, builder.SaveWithName("Bridge Survey"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ID != "bridge-survey" || !saved.Schema.Equal(edited) {
		t.Fatalf("unexpected saved record: %+v", saved)
	}
}

func TestSessionReseedsReplacementPage(t *testing.T) {
	bridge, srv := newServer(t)
	cat, err := catalog.NewMemory()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	rec := make(chan builder.Event, 32)
	session, err := builder.NewSession(bridge, cat,
		builder.WithMount("main"),
		builder.WithListener(func(ev builder.Event) {
			if ev.Kind == builder.EventEditorLost {
				rec <- ev
			}
		}),
	)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	defer session.Detach()

	ctx := context.Background()
	if err := session.Mount(ctx, nil); err != nil {
		t.Fatalf("mount: %v", err)
	}
	first := dialPage(t, srv, "main")
	if msg := readMessage(t, first); msg.Type != wsbridge.TypeSeed {
		t.Fatalf("expected seed, got %q", msg.Type)
	}
	writeMessage(t, first, wsbridge.Message{Type: wsbridge.TypeReady, Schema: form.BlankSchema()})
	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := session.Wait(waitCtx); err != nil {
		t.Fatalf("wait: %v", err)
	}

	draft := form.Schema(`{"components":[{"type":"textfield"}]}`)
	writeMessage(t, first, wsbridge.Message{Type: wsbridge.TypeChange, Schema: draft})
	waitSnapshot(t, session, draft)

	second := dialPage(t, srv, "main")
	msg := readMessage(t, second)
	if msg.Type != wsbridge.TypeSeed || !msg.Schema.Equal(draft) {
		t.Fatalf("replacement page not seeded with the draft: %+v", msg)
	}
	select {
	case ev := <-rec:
		if !errors.Is(ev.Err, builder.ErrEditorAttachFailure) {
			t.Fatalf("lost event without attach failure: %v", ev.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("editor loss not reported")
	}

	writeMessage(t, second, wsbridge.Message{Type: wsbridge.TypeReady, Schema: draft})
	deadline := time.Now().Add(2 * time.Second)
	for session.Status().State != builder.StateReady {
		if time.Now().After(deadline) {
			t.Fatalf("session did not become ready again: %+v", session.Status())
		}
		time.Sleep(5 * time.Millisecond)
	}

	edited := form.Schema(`{"components":[{"type":"textfield"},{"type":"email"}]}`)
	writeMessage(t, second, wsbridge.Message{Type: wsbridge.TypeChange, Schema: edited})
	waitSnapshot(t, session, edited)

	if err := session.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if msg := readMessage(t, second); msg.Type != wsbridge.TypeReset {
		t.Fatalf("expected reset on the replacement page, got %q", msg.Type)
	}
}

func waitSnapshot(t *testing.T, session *builder.Session, want form.Schema) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		snapshot, err := session.Snapshot()
		if err == nil && snapshot.Equal(want) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("snapshot never reflected change: %s (%v)", snapshot, err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
