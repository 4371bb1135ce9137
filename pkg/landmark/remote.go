package landmark

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// replyBuffer bounds how many unclaimed sidecar replies are kept.
const replyBuffer = 16

// remoteRequest is sent to the landmark sidecar for every frame.
type remoteRequest struct {
	Timestamp int64  `json:"ts"`
	NumHands  int    `json:"num_hands"`
	Image     string `json:"image"` // base64 JPEG
}

// remoteResponse is the sidecar's answer for one frame.
type remoteResponse struct {
	Timestamp int64  `json:"ts"`
	Hands     []Hand `json:"hands"`
	Error     string `json:"error,omitempty"`
}

// remoteConn is one sidecar connection with its reader goroutine.
type remoteConn struct {
	ws      *websocket.Conn
	replies chan remoteResponse
	done    chan struct{}
	err     error // valid once done is closed
}

func (c *remoteConn) readLoop(logger *slog.Logger) {
	defer close(c.done)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.err = err
			return
		}

		var resp remoteResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			logger.Debug("dropping malformed landmark reply", "error", err)
			continue
		}
		select {
		case c.replies <- resp:
		default:
			logger.Debug("landmark reply buffer full", "ts", resp.Timestamp)
		}
	}
}

func (c *remoteConn) failed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// RemoteRecognizer delegates recognition to a sidecar process (for example
// a MediaPipe worker) over a websocket. Calls are serialized. A broken
// connection is redialed on the next call.
type RemoteRecognizer struct {
	url     string
	timeout time.Duration
	logger  *slog.Logger
	dialer  websocket.Dialer

	mu     sync.Mutex
	conn   *remoteConn
	closed bool
}

// DialRemote connects to cfg.RemoteURL.
func DialRemote(cfg Config, logger *slog.Logger) (*RemoteRecognizer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.RemoteTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().RemoteTimeout
	}

	r := &RemoteRecognizer{
		url:     cfg.RemoteURL,
		timeout: timeout,
		logger:  logger,
		dialer: websocket.Dialer{
			HandshakeTimeout: 5 * time.Second,
		},
	}

	conn, err := r.dial()
	if err != nil {
		return nil, err
	}
	r.conn = conn

	logger.Info("connected to landmark sidecar", "url", cfg.RemoteURL)
	return r, nil
}

func (r *RemoteRecognizer) dial() (*remoteConn, error) {
	ws, _, err := r.dialer.Dial(r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial landmark sidecar %s: %w", r.url, err)
	}
	c := &remoteConn{
		ws:      ws,
		replies: make(chan remoteResponse, replyBuffer),
		done:    make(chan struct{}),
	}
	go c.readLoop(r.logger)
	return c, nil
}

// drop closes c if it is still the current connection. Caller holds r.mu.
func (r *RemoteRecognizer) drop(c *remoteConn) {
	c.ws.Close()
	if r.conn == c {
		r.conn = nil
	}
}

// RecognizeForVideo sends the frame and waits up to the configured timeout
// for the reply with the same timestamp. Replies to earlier frames that
// arrive late are discarded.
func (r *RemoteRecognizer) RecognizeForVideo(jpeg []byte, ts time.Time) ([]Hand, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	if r.conn != nil && r.conn.failed() {
		r.logger.Debug("landmark sidecar connection lost", "error", r.conn.err)
		r.drop(r.conn)
	}
	if r.conn == nil {
		c, err := r.dial()
		if err != nil {
			return nil, err
		}
		r.conn = c
		r.logger.Info("reconnected to landmark sidecar", "url", r.url)
	}
	c := r.conn

	req := remoteRequest{
		Timestamp: ts.UnixMilli(),
		NumHands:  NumHands,
		Image:     base64.StdEncoding.EncodeToString(jpeg),
	}

	c.ws.SetWriteDeadline(time.Now().Add(r.timeout))
	if err := c.ws.WriteJSON(req); err != nil {
		r.drop(c)
		return nil, fmt.Errorf("send frame: %w", err)
	}

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	for {
		select {
		case resp := <-c.replies:
			if resp.Timestamp != req.Timestamp {
				r.logger.Debug("dropping stale landmark reply", "ts", resp.Timestamp, "want", req.Timestamp)
				continue
			}
			if resp.Error != "" {
				return nil, fmt.Errorf("sidecar: %s", resp.Error)
			}
			return resp.Hands, nil
		case <-c.done:
			r.drop(c)
			return nil, fmt.Errorf("read landmarks: %w", c.err)
		case <-timer.C:
			return nil, fmt.Errorf("landmarks for ts %d: %w", req.Timestamp, ErrTimeout)
		}
	}
}

// Close closes the websocket.
func (r *RemoteRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.conn == nil {
		return nil
	}
	c := r.conn
	r.conn = nil
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.ws.Close()
}
