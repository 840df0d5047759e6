// Package frontend holds the client-facing chat routes. Every handler
// acts through the caller's session so the sync runtime (listeners,
// pager, overlay, typing debounce) is what actually serves the data.
package frontend

import (
	"github.com/samsmithyeah/flock-sub002/pkg/session"
	"github.com/samsmithyeah/flock-sub002/pkg/store/feed"
)

var (
	sessions *session.Manager
	hub      *feed.Hub
)

// Setup wires the handler dependencies; call before registering routes.
func Setup(m *session.Manager, h *feed.Hub) {
	sessions = m
	hub = h
}
