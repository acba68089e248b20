package session

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/cyroid/cyroid/pkg/cyerr"
	"github.com/cyroid/cyroid/pkg/log"
	"github.com/cyroid/cyroid/pkg/types"
	"github.com/gorilla/websocket"
)

// novncPort is the noVNC websockify listener every desktop VM's guest
// agent starts on. Variable so tests can point it at a local fixture.
var novncPort = 8006

// vncDialer dials the upstream VNC websocket; overridden in tests that
// exercise the proxy end to end against a local fixture server.
var vncDialer = websocket.DefaultDialer

// VNCHandler serves /ws/vnc/{vm_id}: a raw binary proxy between the
// client and the VM's noVNC websockify endpoint. Frames pass through
// unmodified in both directions; whichever side closes first tears down
// the other.
func (s *Server) VNCHandler(w http.ResponseWriter, r *http.Request) {
	vmID := r.PathValue("vm_id")
	logger := log.WithComponent("session").With().Str("vm_id", vmID).Logger()

	principal, authErr := s.authenticate(r)
	if authErr != nil {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		closeWithCode(conn, closeAuthFailed, authErr.Error())
		return
	}

	vm, err := s.repo.GetVM(vmID)
	if err != nil {
		conn, uerr := s.upgrader.Upgrade(w, r, nil)
		if uerr != nil {
			return
		}
		if cyerr.Is(err, cyerr.KindNotFound) {
			closeWithCode(conn, closeNotFound, "vm not found")
		} else {
			closeWithCode(conn, closeUnrecoverable, err.Error())
		}
		return
	}

	if err := s.checkRangeVisibility(principal, vm.RangeID); err != nil {
		conn, uerr := s.upgrader.Upgrade(w, r, nil)
		if uerr != nil {
			return
		}
		closeWithCode(conn, closeAuthFailed, err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("vnc upgrade failed")
		return
	}
	defer conn.Close()

	if vm.RuntimeHandle == "" || vm.Status != types.VMStatusRunning {
		closeWithCode(conn, closeUnrecoverable, "vm has no running container")
		return
	}

	net, err := s.repo.GetNetwork(vm.NetworkID)
	if err != nil || net.RuntimeHandle == "" {
		closeWithCode(conn, closeUnrecoverable, "vm network is not provisioned")
		return
	}

	ip, err := s.rt.ContainerIP(r.Context(), vm.RuntimeHandle, net.RuntimeHandle)
	if err != nil || ip == "" {
		closeWithCode(conn, closeUnrecoverable, "could not determine container ip")
		return
	}

	vncURL := fmt.Sprintf("ws://%s:%d/websockify", ip, novncPort)
	upstream, _, err := vncDialer.Dial(vncURL, nil)
	if err != nil {
		closeWithCode(conn, closeUnrecoverable, fmt.Sprintf("vnc connection failed: %v", err))
		return
	}
	defer upstream.Close()

	if s.journal != nil {
		_ = s.journal.Record(vm.RangeID, vm.ID, types.EventConnectionOpened,
			fmt.Sprintf("vnc session opened by %s", principal.ID), nil)
	}

	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }

	go func() {
		defer stop()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if werr := upstream.WriteMessage(mt, data); werr != nil {
				return
			}
		}
	}()
	go func() {
		defer stop()
		for {
			mt, data, err := upstream.ReadMessage()
			if err != nil {
				return
			}
			if werr := conn.WriteMessage(mt, data); werr != nil {
				return
			}
		}
	}()
	<-done

	if s.journal != nil {
		_ = s.journal.Record(vm.RangeID, vm.ID, types.EventConnectionClosed,
			fmt.Sprintf("vnc session closed by %s", principal.ID), nil)
	}
}
