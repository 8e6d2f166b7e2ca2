package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"slant/internal/game"
)

// Server exposes the simulation core over HTTP. There is deliberately no
// authentication layer: actors are identified by the username they claim.
type Server struct {
	log    *slog.Logger
	svc    *game.Service
	router *game.Router
	gate   *game.Gate
	store  game.Store
	mux    *chi.Mux
}

func New(logger *slog.Logger, svc *game.Service, router *game.Router, gate *game.Gate, store game.Store) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		log:    logger,
		svc:    svc,
		router: router,
		gate:   gate,
		store:  store,
		mux:    chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/players", s.handleAddPlayer)
		r.Get("/players", s.handlePlayers)
		r.Get("/state", s.handleState)

		r.Post("/posts", s.handleSubmitPost)
		r.Get("/posts", s.handlePostsByRound)
		r.Get("/posts/{id}", s.handlePostByID)
		r.Post("/posts/{id}/like", s.handleLikePost)

		r.Post("/actions", s.handleAction)

		r.Get("/scores", s.handleAllScores)
		r.Get("/scores/{round}", s.handleRoundScores)

		r.Post("/rounds/advance", s.handleAdvanceRound)
	})
}

func (s *Server) handleAddPlayer(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Group    string `json:"group"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	username := strings.TrimSpace(in.Username)
	if err := game.ValidateUsername(username); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	group := strings.TrimSpace(in.Group)
	if group == "" {
		group = s.svc.LeastRepresentedGroup()
	}
	if err := s.svc.AddPlayer(username, group); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, game.Player{Username: username, Group: group})
}

func (s *Server) handlePlayers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"players": s.svc.Players()})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"current_round": s.svc.Round(),
		"players":       s.svc.Players(),
		"groups":        s.svc.Groups(),
		"scores":        s.svc.ScoresForRound(s.svc.Round()),
	})
}

func (s *Server) handleSubmitPost(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Message  string `json:"message"`
		ReplyTo  *int64 `json:"reply_to"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	group, err := s.svc.PlayerGroup(in.Username)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	post, outcome, err := s.gate.SubmitPost(r.Context(), game.SubmitInput{
		Message:  in.Message,
		Username: in.Username,
		Group:    group,
		Round:    s.svc.Round(),
		ReplyTo:  in.ReplyTo,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"outcome": outcome.String(), "post": post})
}

func (s *Server) handlePostsByRound(w http.ResponseWriter, r *http.Request) {
	round := s.svc.Round()
	if v := r.URL.Query().Get("round"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid round")
			return
		}
		round = parsed
	}
	posts, err := s.store.PostsByRound(r.Context(), round)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"round": round, "posts": posts})
}

func (s *Server) handlePostByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}
	post, err := s.store.PostByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) handleLikePost(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}
	var in struct {
		Username string `json:"username"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	group, err := s.svc.PlayerGroup(in.Username)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.gate.LikePost(r.Context(), id, in.Username, group, s.svc.Round()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Action   string `json:"action_type"`
		PostID   any    `json:"post_id"`
		Message  string `json:"message"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.router.Dispatch(r.Context(), in.Username, game.Action{
		Type:    game.ActionType(in.Action),
		PostID:  in.PostID,
		Message: in.Message,
	}, s.svc.Round())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAllScores(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"scores": s.svc.AllScores(),
		"totals": s.svc.Totals(),
	})
}

func (s *Server) handleRoundScores(w http.ResponseWriter, r *http.Request) {
	round, err := strconv.Atoi(chi.URLParam(r, "round"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid round")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"round":  round,
		"scores": s.svc.ScoresForRound(round),
	})
}

func (s *Server) handleAdvanceRound(w http.ResponseWriter, r *http.Request) {
	finished := s.svc.Round()
	dominant, err := s.svc.AdvanceRound(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"finished_round": finished,
		"current_round":  s.svc.Round(),
		"dominant_group": dominant,
		"scores":         s.svc.ScoresForRound(finished),
	})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrDuplicateUser):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrUnknownUser), errors.Is(err, game.ErrUnknownGroup),
		errors.Is(err, game.ErrInvalidAction):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrPostNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}
