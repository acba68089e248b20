package session

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cyroid/cyroid/pkg/authz"
	"github.com/cyroid/cyroid/pkg/events"
	"github.com/cyroid/cyroid/pkg/types"
	"github.com/gorilla/websocket"
)

const testJWTSecret = "test-secret"

func testToken(t *testing.T, p *types.Principal) string {
	t.Helper()
	tok, err := authz.IssueToken(testJWTSecret, time.Hour, p)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	return tok
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestConsoleHandlerRejectsMissingToken(t *testing.T) {
	repo := newFakeRepo()
	rt := &fakeRuntime{}
	srv := New(repo, rt, events.NewJournal(repo, events.NewBroker()), testJWTSecret)
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(httpSrv, "/ws/console/vm-1"), nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()

	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected a close error, got %v", err)
	}
	if closeErr.Code != closeAuthFailed {
		t.Errorf("close code = %d, want %d", closeErr.Code, closeAuthFailed)
	}
}

func TestConsoleHandlerRejectsUnknownVM(t *testing.T) {
	repo := newFakeRepo()
	rt := &fakeRuntime{}
	srv := New(repo, rt, events.NewJournal(repo, events.NewBroker()), testJWTSecret)
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	tok := testToken(t, &types.Principal{ID: "u1", Roles: []string{"user"}, Approved: true, Active: true})
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(httpSrv, "/ws/console/missing?token="+tok), nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()

	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected a close error, got %v", err)
	}
	if closeErr.Code != closeNotFound {
		t.Errorf("close code = %d, want %d", closeErr.Code, closeNotFound)
	}
}

func TestConsoleHandlerBridgesOutputToClient(t *testing.T) {
	repo := newFakeRepo()
	repo.ranges["range-1"] = &types.Range{ID: "range-1"}
	repo.vms["vm-1"] = &types.VM{ID: "vm-1", RangeID: "range-1", RuntimeHandle: "ctr-1", Status: types.VMStatusRunning}

	pty := newFakePTY()
	rt := &fakeRuntime{pty: pty}
	srv := New(repo, rt, events.NewJournal(repo, events.NewBroker()), testJWTSecret)
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	tok := testToken(t, &types.Principal{ID: "u1", Roles: []string{"user"}, Approved: true, Active: true})
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(httpSrv, "/ws/console/vm-1?token="+tok), nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()

	go pty.outW.Write([]byte("welcome$ "))

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if string(data) != "welcome$ " {
		t.Errorf("got %q, want %q", data, "welcome$ ")
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("ls\n")); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	buf := make([]byte, 3)
	pty.in.Read(buf)
	if string(buf) != "ls\n" {
		t.Errorf("container received %q, want %q", buf, "ls\n")
	}
}

func TestConsoleHandlerRejectsStoppedVM(t *testing.T) {
	repo := newFakeRepo()
	repo.ranges["range-1"] = &types.Range{ID: "range-1"}
	repo.vms["vm-1"] = &types.VM{ID: "vm-1", RangeID: "range-1", Status: types.VMStatusStopped}
	rt := &fakeRuntime{}
	srv := New(repo, rt, events.NewJournal(repo, events.NewBroker()), testJWTSecret)
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	tok := testToken(t, &types.Principal{ID: "u1", Roles: []string{"user"}, Approved: true, Active: true})
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(httpSrv, "/ws/console/vm-1?token="+tok), nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()

	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected a close error, got %v", err)
	}
	if closeErr.Code != closeUnrecoverable {
		t.Errorf("close code = %d, want %d", closeErr.Code, closeUnrecoverable)
	}
}

func TestConsoleHandlerRejectsInvisibleRange(t *testing.T) {
	repo := newFakeRepo()
	repo.ranges["range-1"] = &types.Range{ID: "range-1", OwnerID: "someone-else"}
	repo.vms["vm-1"] = &types.VM{ID: "vm-1", RangeID: "range-1", RuntimeHandle: "ctr-1", Status: types.VMStatusRunning}
	repo.tags = map[types.ResourceKind]map[string][]*types.ResourceTag{
		types.ResourceKindRange: {"range-1": {{ResourceKind: types.ResourceKindRange, ResourceID: "range-1", Tag: "red-team"}}},
	}
	rt := &fakeRuntime{}
	srv := New(repo, rt, events.NewJournal(repo, events.NewBroker()), testJWTSecret)
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	tok := testToken(t, &types.Principal{ID: "u1", Roles: []string{"user"}, Tags: []string{"blue-team"}, Approved: true, Active: true})
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(httpSrv, "/ws/console/vm-1?token="+tok), nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()

	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected a close error, got %v", err)
	}
	if closeErr.Code != closeAuthFailed {
		t.Errorf("close code = %d, want %d", closeErr.Code, closeAuthFailed)
	}
}
