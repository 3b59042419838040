package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"

	"gemdrop/internal/logging"
	"gemdrop/internal/session"
	"gemdrop/internal/store"
	"gemdrop/internal/ws"
)

func NewRouter(st *store.Store, mgr *session.Manager, gateway *ws.Server) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(apiLogMiddleware()).Get("/healthz", healthHandler(st, mgr))

	// The websocket upgrade stays outside the request logger: the request
	// never completes while the connection lives.
	r.Get("/ws", gateway.HandleWS)

	r.Route("/api/public", func(r chi.Router) {
		r.Use(apiLogMiddleware())
		r.Get("/levels", levelsHandler(st))
		r.Get("/leaderboard", leaderboardHandler(st))
		r.Get("/replays/{session_id}", replayHandler(st))
		r.Get("/players/{player_id}/difficulty", difficultyHandler(st))
	})

	return r
}

func apiLogMiddleware() func(http.Handler) http.Handler {
	return httplog.RequestLogger(
		slog.New(slog.NewJSONHandler(logging.Writer(), &slog.HandlerOptions{})),
		&httplog.Options{
			Level:  slog.LevelInfo,
			Schema: httplog.Schema{ResponseStatus: "status", ResponseDuration: "duration_ms"},
			LogExtraAttrs: func(req *http.Request, _ string, _ int) []slog.Attr {
				rc := chi.RouteContext(req.Context())
				route := req.URL.Path
				if rc != nil && rc.RoutePattern() != "" {
					route = rc.RoutePattern()
				}
				return []slog.Attr{
					slog.String("request_id", chimw.GetReqID(req.Context())),
					slog.String("method", req.Method),
					slog.String("route", route),
				}
			},
		},
	)
}
