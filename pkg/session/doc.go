// Package session multiplexes interactive access to a running range over
// three WebSocket endpoints: a PTY-attached shell console, a VNC proxy for
// desktop VMs, and a coalesced range-status feed. Every endpoint requires a
// bearer token (?token=...) carrying a valid, active principal.
package session
