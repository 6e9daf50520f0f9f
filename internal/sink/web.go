package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relabs-tech/imu_scalogram/internal/frame"
	"github.com/relabs-tech/imu_scalogram/internal/render"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const (
	clientQueue   = 16
	writeDeadline = 10 * time.Second
	pingPeriod    = 30 * time.Second
)

// WebOptions configures the HTTP side of the hub.
type WebOptions struct {
	Addr   string // listen address, e.g. ":8080"
	Root   string // static files; empty disables
	Render render.Options
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub serves the newest frames over HTTP and pushes them to websocket
// clients. Slow clients lose frames instead of slowing the session.
//
//	/ws                  signal and scalogram JSON messages
//	/api/signal          newest signal message
//	/api/window          newest full signal window
//	/api/scalogram       newest scalogram metadata
//	/api/scalogram.png   newest scalogram image
type Hub struct {
	opts   WebOptions
	logger *zap.Logger

	clientsMu sync.Mutex
	clients   map[*wsClient]struct{}

	mu            sync.RWMutex
	lastSignal    []byte
	lastWindow    *frame.Signal
	lastScalogram []byte
	lastMeta      []byte
	lastPNG       []byte

	srv *http.Server
	wg  sync.WaitGroup
}

func NewHub(opts WebOptions, logger *zap.Logger) *Hub {
	return &Hub{
		opts:    opts,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Handler returns the hub's routes.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)
	mux.HandleFunc("/api/signal", h.serveLatest(func() []byte { return h.lastSignal }, "application/json"))
	mux.HandleFunc("/api/window", h.serveWindow)
	mux.HandleFunc("/api/scalogram", h.serveLatest(func() []byte { return h.lastMeta }, "application/json"))
	mux.HandleFunc("/api/scalogram.png", h.serveLatest(func() []byte { return h.lastPNG }, "image/png"))
	if h.opts.Root != "" {
		mux.Handle("/", http.FileServer(http.Dir(h.opts.Root)))
	}
	return mux
}

// Start listens on opts.Addr and serves in the background.
func (h *Hub) Start() error {
	ln, err := net.Listen("tcp", h.opts.Addr)
	if err != nil {
		return fmt.Errorf("web sink: listen %s: %w", h.opts.Addr, err)
	}
	h.srv = &http.Server{Handler: h.Handler(), ReadHeaderTimeout: 5 * time.Second}
	h.logger.Info("web server listening", zap.String("addr", ln.Addr().String()))

	go func() {
		if err := h.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.logger.Error("web server stopped", zap.Error(err))
		}
	}()
	return nil
}

func (h *Hub) serveLatest(get func() []byte, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.mu.RLock()
		body := get()
		h.mu.RUnlock()

		if body == nil {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "no-store")
		w.Write(body)
	}
}

func (h *Hub) serveWindow(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	last := h.lastWindow
	h.mu.RUnlock()

	if last == nil {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(last.Window()); err != nil {
		h.logger.Warn("window encode error", zap.Error(err))
	}
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade error", zap.Error(err))
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, clientQueue)}

	h.mu.RLock()
	for _, msg := range [][]byte{h.lastSignal, h.lastScalogram} {
		if msg != nil {
			c.send <- msg
		}
	}
	h.mu.RUnlock()

	h.clientsMu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.clientsMu.Unlock()
	h.logger.Info("websocket client connected", zap.String("remote", r.RemoteAddr), zap.Int("clients", n))

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.writer(c)
	}()

	// Clients only listen; reading keeps control frames flowing.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket error", zap.Error(err))
			}
			break
		}
	}
	h.remove(c)
}

func (h *Hub) remove(c *wsClient) {
	h.clientsMu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.clientsMu.Unlock()
	c.conn.Close()
}

func (h *Hub) writer(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

func (h *Hub) broadcast(msg []byte) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("websocket client behind, frame dropped")
		}
	}
}

// Clients returns the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}

func (h *Hub) PublishSignal(_ context.Context, s frame.Signal) error {
	msg, err := json.Marshal(s.Message())
	if err != nil {
		return fmt.Errorf("web sink: signal marshal: %w", err)
	}
	h.mu.Lock()
	h.lastSignal = msg
	h.lastWindow = &s
	h.mu.Unlock()
	h.broadcast(msg)
	return nil
}

func (h *Hub) PublishScalogram(_ context.Context, s frame.Scalogram) error {
	img, err := pngOf(s, h.opts.Render)
	if err != nil {
		return fmt.Errorf("web sink: %w", err)
	}
	m := s.Message()
	meta, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("web sink: scalogram marshal: %w", err)
	}
	m.PNG = img
	msg, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("web sink: scalogram marshal: %w", err)
	}

	h.mu.Lock()
	h.lastMeta = meta
	h.lastPNG = img
	h.lastScalogram = msg
	h.mu.Unlock()
	h.broadcast(msg)
	return nil
}

// Close stops the server and disconnects every client.
func (h *Hub) Close() error {
	var err error
	if h.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err = h.srv.Shutdown(ctx)
	}
	h.clientsMu.Lock()
	for c := range h.clients {
		c.conn.Close()
	}
	h.clientsMu.Unlock()
	h.wg.Wait()
	return err
}
