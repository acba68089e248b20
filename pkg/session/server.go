package session

import (
	"net/http"
	"time"

	"github.com/cyroid/cyroid/pkg/authz"
	"github.com/cyroid/cyroid/pkg/cyerr"
	"github.com/cyroid/cyroid/pkg/events"
	"github.com/cyroid/cyroid/pkg/repository"
	"github.com/cyroid/cyroid/pkg/runtime"
	"github.com/cyroid/cyroid/pkg/types"
	"github.com/gorilla/websocket"
)

// Close codes per the multiplexer's auth/lifecycle contract. 1000 is the
// normal-closure code the gorilla library already defines.
const (
	closeAuthFailed    = 4001
	closeNotFound      = 4004
	closeUnrecoverable = 4000
)

// Server holds the dependencies every session handler needs: a repository
// to resolve VMs/ranges, a runtime adapter to drive exec/IP lookups, and
// the journal to record connection lifecycle events.
type Server struct {
	repo      repository.Repository
	rt        runtime.Adapter
	journal   *events.Journal
	az        *authz.Authorizer
	jwtSecret string
	upgrader  websocket.Upgrader
}

// New creates a Server. jwtSecret must match the one pkg/config issues
// tokens with.
func New(repo repository.Repository, rt runtime.Adapter, journal *events.Journal, jwtSecret string) *Server {
	return &Server{
		repo:      repo,
		rt:        rt,
		journal:   journal,
		az:        authz.New(repo),
		jwtSecret: jwtSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// authenticate verifies the bearer token query parameter and returns the
// principal it asserts, or an error a handler should close the socket
// with code closeAuthFailed for.
func (s *Server) authenticate(r *http.Request) (*types.Principal, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		return nil, cyerr.Forbidden("missing token query parameter")
	}
	p, err := authz.VerifyToken(s.jwtSecret, token)
	if err != nil {
		return nil, err
	}
	if !p.CanAct() {
		return nil, cyerr.Forbidden("principal %s is not approved/active", p.ID)
	}
	return p, nil
}

// checkRangeVisibility reports whether p may reach any session endpoint
// for rangeID, per the range's owner and visibility tags.
func (s *Server) checkRangeVisibility(p *types.Principal, rangeID string) error {
	rng, err := s.repo.GetRange(rangeID)
	if err != nil {
		return err
	}
	return s.az.CheckAccess(types.ResourceKindRange, rangeID, p, rng.OwnerID)
}

// closeWithCode upgrades-then-immediately-closes, used when a precondition
// fails after the handshake has already happened (gorilla has no way to
// reject an upgrade with a custom WS close code before accepting it).
func closeWithCode(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	conn.Close()
}
