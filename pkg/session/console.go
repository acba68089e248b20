package session

import (
	"fmt"
	"net/http"

	"github.com/cyroid/cyroid/pkg/cyerr"
	"github.com/cyroid/cyroid/pkg/log"
	"github.com/cyroid/cyroid/pkg/types"
)

// loginShellProbe is run under a PTY: bash if present, otherwise sh.
var loginShellProbe = []string{"sh", "-c", "if [ -x /bin/bash ]; then exec /bin/bash; else exec /bin/sh; fi"}

// ConsoleHandler serves /ws/console/{vm_id}: an interactive shell attached
// to the VM's running container over a PTY, bridged to the WebSocket as
// two independent pump loops. The exec is never forcibly killed on
// disconnect — left to the container runtime to reap.
func (s *Server) ConsoleHandler(w http.ResponseWriter, r *http.Request) {
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
		logger.Warn().Err(err).Msg("console upgrade failed")
		return
	}
	defer conn.Close()

	if vm.RuntimeHandle == "" || vm.Status != types.VMStatusRunning {
		closeWithCode(conn, closeUnrecoverable, "vm has no running container")
		return
	}

	pty, err := s.rt.ExecInteractive(r.Context(), vm.RuntimeHandle, loginShellProbe)
	if err != nil {
		closeWithCode(conn, closeUnrecoverable, fmt.Sprintf("exec failed: %v", err))
		return
	}
	defer pty.Close()

	if s.journal != nil {
		_ = s.journal.Record(vm.RangeID, vm.ID, types.EventConnectionOpened,
			fmt.Sprintf("console session opened by %s", principal.ID), nil)
	}

	pair := newPumpPair()
	go pair.pumpStreamToWS(conn, pty)
	go pair.pumpWSToStream(conn, pty)
	<-pair.done

	if s.journal != nil {
		_ = s.journal.Record(vm.RangeID, vm.ID, types.EventConnectionClosed,
			fmt.Sprintf("console session closed by %s", principal.ID), nil)
	}
}
