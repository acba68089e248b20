package session

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/cyroid/cyroid/pkg/events"
	"github.com/cyroid/cyroid/pkg/types"
	"github.com/gorilla/websocket"
)

func TestVNCHandlerProxiesBinaryFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	defer upstream.Close()

	u, err := url.Parse(upstream.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}
	origPort := novncPort
	novncPort = port
	defer func() { novncPort = origPort }()

	repo := newFakeRepo()
	repo.ranges["range-1"] = &types.Range{ID: "range-1"}
	repo.vms["vm-1"] = &types.VM{ID: "vm-1", RangeID: "range-1", NetworkID: "net-1", RuntimeHandle: "ctr-1", Status: types.VMStatusRunning}
	repo.networks["net-1"] = &types.Network{ID: "net-1", RuntimeHandle: "net-handle-1"}

	rt := &fakeRuntime{ip: "127.0.0.1"}
	srv := New(repo, rt, events.NewJournal(repo, events.NewBroker()), testJWTSecret)
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	tok := testToken(t, &types.Principal{ID: "u1", Roles: []string{"user"}, Approved: true, Active: true})
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(httpSrv, "/ws/vnc/vm-1?token="+tok), nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02, 0x03}); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if mt != websocket.BinaryMessage || string(data) != "\x01\x02\x03" {
		t.Errorf("got (%d, %v), want binary echo of the sent frame", mt, data)
	}
}

func TestVNCHandlerRejectsUnprovisionedNetwork(t *testing.T) {
	repo := newFakeRepo()
	repo.ranges["range-1"] = &types.Range{ID: "range-1"}
	repo.vms["vm-1"] = &types.VM{ID: "vm-1", RangeID: "range-1", NetworkID: "net-1", RuntimeHandle: "ctr-1", Status: types.VMStatusRunning}
	repo.networks["net-1"] = &types.Network{ID: "net-1"}

	rt := &fakeRuntime{}
	srv := New(repo, rt, events.NewJournal(repo, events.NewBroker()), testJWTSecret)
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	tok := testToken(t, &types.Principal{ID: "u1", Roles: []string{"user"}, Approved: true, Active: true})
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(httpSrv, "/ws/vnc/vm-1?token="+tok), nil)
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
