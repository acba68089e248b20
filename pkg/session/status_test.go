package session

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cyroid/cyroid/pkg/events"
	"github.com/cyroid/cyroid/pkg/types"
	"github.com/gorilla/websocket"
)

func TestStatusHandlerPushesOnChange(t *testing.T) {
	repo := newFakeRepo()
	repo.ranges["range-1"] = &types.Range{ID: "range-1", Status: types.RangeStatusRunning}
	repo.vms["vm-1"] = &types.VM{ID: "vm-1", RangeID: "range-1", Status: types.VMStatusRunning}

	rt := &fakeRuntime{}
	srv := New(repo, rt, events.NewJournal(repo, events.NewBroker()), testJWTSecret)
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	tok := testToken(t, &types.Principal{ID: "u1", Roles: []string{"user"}, Approved: true, Active: true})
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(httpSrv, "/ws/status/range-1?token="+tok), nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var first statusPatch
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if first.VMs["vm-1"] != "running" || first.RangeStatus != types.RangeStatusRunning {
		t.Errorf("unexpected first patch: %+v", first)
	}

	repo.mu.Lock()
	repo.vms["vm-1"].Status = types.VMStatusStopped
	repo.mu.Unlock()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var second statusPatch
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if second.VMs["vm-1"] != "stopped" {
		t.Errorf("second patch vm status = %q, want stopped", second.VMs["vm-1"])
	}
}

func TestStatusHandlerRejectsUnknownRange(t *testing.T) {
	repo := newFakeRepo()
	rt := &fakeRuntime{}
	srv := New(repo, rt, events.NewJournal(repo, events.NewBroker()), testJWTSecret)
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	tok := testToken(t, &types.Principal{ID: "u1", Roles: []string{"user"}, Approved: true, Active: true})
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(httpSrv, "/ws/status/missing?token="+tok), nil)
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
