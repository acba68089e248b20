package session

import (
	"net/http"
	"time"

	"github.com/cyroid/cyroid/pkg/cyerr"
	"github.com/cyroid/cyroid/pkg/log"
	"github.com/cyroid/cyroid/pkg/types"
)

// statusPollInterval is how often StatusHandler samples VM/range status.
const statusPollInterval = 2 * time.Second

// statusPatch is the JSON payload pushed to the client; it is sent only
// when the VM status set or range status has changed since the last push.
type statusPatch struct {
	Type        string            `json:"type"`
	RangeID     string            `json:"range_id"`
	RangeStatus types.RangeStatus `json:"range_status"`
	VMs         map[string]string `json:"vms"`
}

// StatusHandler serves /ws/status/{range_id}: a coalesced feed of VM and
// range status, sampled every statusPollInterval and pushed only on
// change.
func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	rangeID := r.PathValue("range_id")
	logger := log.WithComponent("session").With().Str("range_id", rangeID).Logger()

	principal, authErr := s.authenticate(r)
	if authErr != nil {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		closeWithCode(conn, closeAuthFailed, authErr.Error())
		return
	}

	if _, err := s.repo.GetRange(rangeID); err != nil {
		conn, uerr := s.upgrader.Upgrade(w, r, nil)
		if uerr != nil {
			return
		}
		if cyerr.Is(err, cyerr.KindNotFound) {
			closeWithCode(conn, closeNotFound, "range not found")
		} else {
			closeWithCode(conn, closeUnrecoverable, err.Error())
		}
		return
	}

	if err := s.checkRangeVisibility(principal, rangeID); err != nil {
		conn, uerr := s.upgrader.Upgrade(w, r, nil)
		if uerr != nil {
			return
		}
		closeWithCode(conn, closeAuthFailed, err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("status upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	var lastVMs map[string]string
	var lastRangeStatus types.RangeStatus

	push := func() bool {
		rng, err := s.repo.GetRange(rangeID)
		if err != nil {
			return false
		}
		vms, err := s.repo.ListVMsByRange(rangeID)
		if err != nil {
			return false
		}
		current := make(map[string]string, len(vms))
		for _, vm := range vms {
			current[vm.ID] = string(vm.Status)
		}

		if statusMapEqual(current, lastVMs) && rng.Status == lastRangeStatus {
			return true
		}
		lastVMs = current
		lastRangeStatus = rng.Status

		return conn.WriteJSON(statusPatch{
			Type:        "status_update",
			RangeID:     rangeID,
			RangeStatus: rng.Status,
			VMs:         current,
		}) == nil
	}

	if !push() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !push() {
				return
			}
		}
	}
}

func statusMapEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
