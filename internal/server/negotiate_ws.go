package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raaihank/lyricsmith/internal/editor"
	"github.com/raaihank/lyricsmith/internal/negotiate"
	"github.com/raaihank/lyricsmith/internal/persist"
	"github.com/raaihank/lyricsmith/internal/pipeline"
	"go.uber.org/zap"
)

// wsClientMessage is everything a client can send. Type selects which other
// fields are read.
type wsClientMessage struct {
	Type     string             `json:"type"` // start, decision, abort
	URL      string             `json:"url,omitempty"`
	Text     string             `json:"text,omitempty"`
	Settings *pipeline.Settings `json:"settings,omitempty"`
	Decision string             `json:"decision,omitempty"` // accept, decline, decline_all
}

// wsServerMessage is everything the server sends.
type wsServerMessage struct {
	Type    string            `json:"type"` // prompt, done, error
	Prompt  *negotiate.Prompt `json:"prompt,omitempty"`
	Text    string            `json:"text,omitempty"`
	Applied int               `json:"applied,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// wsConn serializes writes; the ping goroutine and the session loop share
// the connection.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(timeout time.Duration, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ping(timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// handleNegotiateWS runs one interactive conversion session per connection.
// The client opens with a start message carrying the page URL and the live
// text; the server answers each prompt until the candidate list is
// exhausted, then sends the final text.
func (s *Server) handleNegotiateWS(w http.ResponseWriter, r *http.Request) {
	wsCfg := s.config.WebSocket

	upgrader := websocket.Upgrader{
		ReadBufferSize:  wsCfg.ReadBufferSize,
		WriteBufferSize: wsCfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			for _, allowed := range wsCfg.AllowedOrigins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsCfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(wsCfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsCfg.PongTimeout))
		return nil
	})

	wc := &wsConn{conn: conn}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsCfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := wc.ping(wsCfg.WriteTimeout); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	s.runNegotiation(r, wc)
}

func (s *Server) runNegotiation(r *http.Request, wc *wsConn) {
	wsCfg := s.config.WebSocket
	ctx := r.Context()
	log := s.logger.WithComponent("negotiate")

	var msg wsClientMessage
	if err := wc.conn.ReadJSON(&msg); err != nil {
		return
	}
	if msg.Type != "start" || msg.URL == "" {
		wc.writeJSON(wsCfg.WriteTimeout, wsServerMessage{Type: "error", Error: "expected start message with url"})
		return
	}
	if len(msg.Text) > s.config.Editor.MaxDocumentLength {
		wc.writeJSON(wsCfg.WriteTimeout, wsServerMessage{Type: "error", Error: "document too large"})
		return
	}

	pageURL := persist.NormalizeURL(msg.URL)

	// Rule stages run first so candidates are discovered over corrected text.
	text, candidates, _ := s.corrector.Candidates(msg.Text, s.effectiveSettings(msg.Settings), s.userRules())

	declines := s.deps.Declines
	if declines == nil {
		declines = negotiate.NewMemoryDeclineStore()
	}
	candidates = negotiate.FilterDeclined(ctx, declines, pageURL, candidates)

	buf := editor.NewMemoryBuffer(text)
	session := negotiate.NewSession(pageURL, buf, candidates, declines, log.Logger)

	// Snapshot the in-progress session so an interrupted negotiation can be
	// recovered from the autosave store.
	var saver *editor.Autosaver
	if s.deps.Autosaves != nil {
		saver = editor.NewAutosaver(buf, pageURL, s.deps.Autosaves,
			s.config.Editor.AutosaveInterval, s.config.Editor.AutosaveDebounce, log.Logger)
		saveCtx, cancelSave := context.WithCancel(ctx)
		defer cancelSave()
		go saver.Run(saveCtx)
	}

	prompt, ok := session.Start()
	for ok {
		if err := wc.writeJSON(wsCfg.WriteTimeout, wsServerMessage{Type: "prompt", Prompt: prompt}); err != nil {
			return
		}

		wc.conn.SetReadDeadline(time.Now().Add(wsCfg.PongTimeout))
		if err := wc.conn.ReadJSON(&msg); err != nil {
			session.Abort()
			return
		}

		switch msg.Type {
		case "abort":
			session.Abort()
			ok = false
		case "decision":
			var d negotiate.Decision
			switch msg.Decision {
			case "accept":
				d = negotiate.DecisionAccept
			case "decline":
				d = negotiate.DecisionDecline
			case "decline_all":
				d = negotiate.DecisionDeclineAll
			default:
				wc.writeJSON(wsCfg.WriteTimeout, wsServerMessage{Type: "error", Error: "unknown decision"})
				continue
			}
			var err error
			prompt, ok, err = session.Decide(ctx, d)
			if err != nil {
				wc.writeJSON(wsCfg.WriteTimeout, wsServerMessage{Type: "error", Error: err.Error()})
				return
			}
			if d == negotiate.DecisionAccept && saver != nil {
				saver.NotifyEdit()
			}
		default:
			wc.writeJSON(wsCfg.WriteTimeout, wsServerMessage{Type: "error", Error: "unknown message type"})
		}
	}

	wc.writeJSON(wsCfg.WriteTimeout, wsServerMessage{
		Type:    "done",
		Text:    buf.Read(),
		Applied: session.Applied(),
	})
}
