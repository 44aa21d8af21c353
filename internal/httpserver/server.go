package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub000/internal/config"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub000/internal/interview"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub000/internal/session"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub000/internal/tts"
)

// New constructs the Echo server with the interview voice endpoint wired up.
func New(cfg config.Config) (*echo.Echo, error) {
	// Validate the synthesizer strategy at startup; sessions get their own
	// handle of whichever strategy is configured.
	if _, err := tts.FromConfig(cfg); err != nil {
		return nil, err
	}

	store, err := interview.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey)
	if err != nil {
		return nil, fmt.Errorf("create interview store: %w", err)
	}

	h := &InterviewHandler{
		cfg:      cfg,
		store:    store,
		notifier: interview.NewWebhookNotifier(cfg.NotifyWebhookURL),
		registry: session.NewRegistry(),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/ws/interviews/:id", h.Serve)

	return e, nil
}
