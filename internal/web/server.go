// Package web provides an HTTP status server for the droid-core daemon.
package web

import (
	"context"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/sweeney/droid-core/internal/status"
)

// PushInterval is how often /ws sends a fresh status document.
const PushInterval = time.Second

// Server serves the status page, its JSON form and a live websocket feed.
type Server struct {
	app     *fiber.App
	addr    string
	tracker *status.Tracker
	push    time.Duration
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{addr: addr, tracker: tracker, push: PushInterval}

	app := fiber.New(fiber.Config{
		AppName:               "droid-core",
		DisableStartupMessage: true,
	})
	app.Get("/", s.handleIndex)
	app.Get("/index.html", s.handleIndex)
	app.Get("/index.json", s.handleJSON)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(s.handleWS))

	s.app = app
	return s
}

// App exposes the fiber app. Useful for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.app.Listen(s.addr)
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	snap := s.tracker.Snapshot()
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return renderHTML(c, snap)
}

func (s *Server) handleJSON(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(status.FormatJSON(s.tracker.Snapshot()))
}
