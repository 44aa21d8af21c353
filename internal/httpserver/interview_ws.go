package httpserver

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub000/internal/config"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub000/internal/interview"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub000/internal/llm"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub000/internal/session"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub000/internal/stt"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub000/internal/tts"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  65536,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		// Candidates join from the hosted interview page; origin checks
		// belong to the gateway in front of this service.
		return true
	},
}

// InterviewHandler upgrades candidate connections and runs one session per
// interview.
type InterviewHandler struct {
	cfg      config.Config
	store    interview.Store
	notifier interview.Notifier
	registry *session.Registry
}

// Serve handles GET /ws/interviews/:id.
func (h *InterviewHandler) Serve(c echo.Context) error {
	interviewID := c.Param("id")
	if interviewID == "" {
		return c.String(http.StatusBadRequest, "missing interview id")
	}

	conn, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return nil
	}

	synth, err := tts.FromConfig(h.cfg)
	if err != nil {
		// Provider was validated at startup; this only fires after a reload
		// misconfiguration.
		log.Printf("synthesizer config error: %v", err)
		_ = conn.Close()
		return nil
	}

	sess := session.New(session.Options{
		InterviewID:    interviewID,
		Transport:      newWSTransport(conn),
		Recognizer:     stt.NewAssemblyAIClient(h.cfg.AssemblyAIKey),
		Generator:      llm.NewCerebrasClient(h.cfg.CerebrasKey, h.cfg.CerebrasModelID),
		Synthesizer:    synth,
		Store:          h.store,
		Notifier:       h.notifier,
		Registry:       h.registry,
		DebounceWindow: h.cfg.DebounceWindow,
	})
	h.registry.Put(sess)

	if err := sess.Start(c.Request().Context()); err != nil {
		log.Printf("session start for interview %s: %v", interviewID, err)
		return nil
	}

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			sess.HandleDisconnect()
			return nil
		}
		switch mt {
		case websocket.BinaryMessage:
			sess.HandleAudio(data)
		case websocket.TextMessage:
			sess.HandleControl(data)
		}
	}
}

// wsTransport adapts a gorilla connection to the session transport with a
// single-writer discipline.
type wsTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) SendControl(msg session.ServerMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteJSON(msg)
}

func (t *wsTransport) SendAudio(frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
