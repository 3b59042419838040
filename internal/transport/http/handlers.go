package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"gemdrop/internal/game"
	"gemdrop/internal/session"
	"gemdrop/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind string) {
	writeJSON(w, status, map[string]string{"error": kind})
}

func healthHandler(st *store.Store, mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "db_unreachable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":        "ok",
			"live_sessions": mgr.LiveCount(),
		})
	}
}

func levelsHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		levels, err := st.ListLevels(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		if levels == nil {
			levels = []game.LevelConfig{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"levels": levels})
	}
}

func leaderboardHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		entries, err := st.Leaderboard(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		if entries == nil {
			entries = []store.LeaderboardEntry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"leaderboard": entries})
	}
}

func replayHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "session_id")
		rec, err := st.GetReplay(r.Context(), sessionID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "replay_not_found")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func difficultyHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID := chi.URLParam(r, "player_id")
		gt := game.GameType(r.URL.Query().Get("game_type"))
		if !gt.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_game_type")
			return
		}
		state, found, err := st.Difficulty(r.Context(), playerID, gt)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, "no_difficulty_state")
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}
