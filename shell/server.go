// Package shell serves the operator UI: composed frames streamed as
// JPEG over websockets, a JSON event feed for status and command errors,
// and pointer input routed back to the per-camera gesture handlers.
package shell

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"roicam/camera"
	"roicam/overlay"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"
)

var debugMsgFunc func(component, message string)

// SetDebugFunction wires the package's debug output into the caller's
// logger.
func SetDebugFunction(fn func(component, message string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message)
	}
}

// Event is one entry on the UI event feed.
type Event struct {
	Type   string    `json:"type"`
	Camera string    `json:"camera,omitempty"`
	State  string    `json:"state,omitempty"`
	Reason string    `json:"reason,omitempty"`
	Op     string    `json:"op,omitempty"`
	Error  string    `json:"error,omitempty"`
	Time   time.Time `json:"time"`
}

// PointerHandler receives decoded pointer input for one camera view.
type PointerHandler interface {
	SetSurfaceSize(width, height int)
	PointerDown(x, y float64)
	PointerMove(x, y float64)
	PointerUp(x, y float64)
	Cancel()
}

// pointerMessage is the wire form of client input.
type pointerMessage struct {
	Type   string  `json:"type"`
	Camera string  `json:"camera"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

// clientQueueDepth bounds each subscriber's send queue; a client that
// cannot keep up loses frames, the producers never block.
const clientQueueDepth = 8

type client struct {
	send chan []byte
}

// broadcaster fans payloads out to its subscribers without blocking the
// publisher.
type broadcaster struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	drops   uint64
}

func newBroadcaster() *broadcaster {
	return &broadcaster{clients: make(map[*client]struct{})}
}

func (b *broadcaster) subscribe() *client {
	c := &client{send: make(chan []byte, clientQueueDepth)}
	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()
	return c
}

func (b *broadcaster) unsubscribe(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()
}

func (b *broadcaster) publish(payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		select {
		case c.send <- payload:
		default:
			b.drops++
		}
	}
}

func (b *broadcaster) subscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Server is the websocket UI endpoint.
type Server struct {
	addr     string
	upgrader websocket.Upgrader
	httpSrv  *http.Server

	mu         sync.Mutex
	frames     map[camera.ID]*broadcaster
	events     *broadcaster
	pointers   map[camera.ID]PointerHandler
	onSnapshot func(camera.ID)
}

// NewServer creates a server listening on addr once started.
func NewServer(addr string) *Server {
	s := &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			// The UI is served from the same host; skip origin checks.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		frames:   make(map[camera.ID]*broadcaster),
		events:   newBroadcaster(),
		pointers: make(map[camera.ID]PointerHandler),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/frames", s.handleFrames)
	mux.HandleFunc("/ws/events", s.handleEvents)
	s.httpSrv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// RegisterCamera announces a camera so clients can subscribe to its
// frames.
func (s *Server) RegisterCamera(id camera.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.frames[id]; !ok {
		s.frames[id] = newBroadcaster()
	}
}

// RegisterPointerHandler routes a camera view's pointer input.
func (s *Server) RegisterPointerHandler(id camera.ID, h PointerHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pointers[id] = h
}

// SetSnapshotHandler wires the client's snapshot request.
func (s *Server) SetSnapshotHandler(fn func(camera.ID)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSnapshot = fn
}

// FrameSink adapts the server into the compositor's output: each
// composed frame is JPEG-encoded and fanned out to that camera's
// subscribers.
func (s *Server) FrameSink() overlay.Sink {
	return func(id camera.ID, img gocv.Mat) {
		defer img.Close()

		s.mu.Lock()
		b := s.frames[id]
		s.mu.Unlock()
		if b == nil || b.subscriberCount() == 0 {
			return
		}

		buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
		if err != nil {
			debugMsg("SHELL_ERROR", fmt.Sprintf("jpeg encode failed for %s: %v", id, err))
			return
		}
		payload := make([]byte, len(buf.GetBytes()))
		copy(payload, buf.GetBytes())
		buf.Close()
		b.publish(payload)
	}
}

// PublishStatus pushes a connection-state event to the UI.
func (s *Server) PublishStatus(id camera.ID, status camera.Status) {
	s.publishEvent(Event{
		Type:   "status",
		Camera: string(id),
		State:  status.State.String(),
		Reason: status.Reason,
		Time:   time.Now(),
	})
}

// PublishCommandError pushes a failed device command to the UI.
func (s *Server) PublishCommandError(cerr *camera.CommandError) {
	s.publishEvent(Event{
		Type:   "commandError",
		Camera: string(cerr.Camera),
		Op:     cerr.Cmd.Op,
		Error:  cerr.Err.Error(),
		Time:   time.Now(),
	})
}

func (s *Server) publishEvent(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	s.events.publish(payload)
}

// Start begins serving. Returns once the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	debugMsg("SHELL", fmt.Sprintf("UI listening on %s", s.addr))
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the listener and closes all client connections.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	id := camera.ID(r.URL.Query().Get("camera"))
	s.mu.Lock()
	b := s.frames[id]
	s.mu.Unlock()
	if b == nil {
		http.Error(w, "unknown camera", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := b.subscribe()
	debugMsg("SHELL", fmt.Sprintf("frame subscriber joined for %s", id))

	// Reader: pointer input arrives on the same socket as the frames it
	// refers to.
	go func() {
		defer b.unsubscribe(c)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.dispatchPointer(id, data)
		}
	}()

	for payload := range c.send {
		if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
			break
		}
	}
	b.unsubscribe(c)
	conn.Close()
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := s.events.subscribe()
	defer func() {
		s.events.unsubscribe(c)
		conn.Close()
	}()

	for payload := range c.send {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// dispatchPointer decodes one client input message and routes it to the
// camera's handler. Unknown cameras and malformed input are dropped.
func (s *Server) dispatchPointer(id camera.ID, data []byte) {
	var msg pointerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		debugMsg("SHELL_WARN", fmt.Sprintf("bad client message: %v", err))
		return
	}
	if msg.Camera != "" {
		id = camera.ID(msg.Camera)
	}

	s.mu.Lock()
	h := s.pointers[id]
	snapshot := s.onSnapshot
	s.mu.Unlock()

	if msg.Type == "snapshot" {
		if snapshot != nil {
			snapshot(id)
		}
		return
	}
	if h == nil {
		return
	}

	switch msg.Type {
	case "surface":
		h.SetSurfaceSize(msg.Width, msg.Height)
	case "pointerdown":
		h.PointerDown(msg.X, msg.Y)
	case "pointermove":
		h.PointerMove(msg.X, msg.Y)
	case "pointerup":
		h.PointerUp(msg.X, msg.Y)
	case "pointercancel":
		h.Cancel()
	default:
		debugMsg("SHELL_WARN", fmt.Sprintf("unknown client message type %q", msg.Type))
	}
}
