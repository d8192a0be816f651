// internal/httpserver/routes_game.go
//
// Game routes.
//   - GET  /             → HTML page (creates a session on first visit)
//   - POST /api/session  → new session; sets the cookie and returns the token
//   - GET  /api/state    → current state
//   - POST /api/guess    → {"index":n,"seq":s} or {"color":"rgb(r,g,b)"}
//   - POST /api/reset    → back to a fresh game; a session that was reaped or
//                          whose token no longer resolves is replaced by a
//                          new one (new cookie) instead of failing
//
// Every game endpoint returns the same state view so the page can redraw from
// any response.

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/colorgame/internal/color"
	"github.com/robalobadob/colorgame/internal/game"
	"github.com/robalobadob/colorgame/internal/session"
	"github.com/robalobadob/colorgame/internal/store"
)

// stateView is the JSON/template shape of one game.
type stateView struct {
	ID        string      `json:"id"`
	State     game.State  `json:"state"`
	Score     int         `json:"score"`
	WinScore  int         `json:"winScore"`
	Remaining int         `json:"remaining"`
	Clock     string      `json:"clock"`
	Limit     string      `json:"limit"` // full countdown, M:SS
	Seq       int         `json:"seq"`
	Target    color.RGB   `json:"target"`
	Options   []color.RGB `json:"options"`
}

func viewOf(g game.Game) stateView {
	return stateView{
		ID:        g.ID,
		State:     g.State,
		Score:     g.Score,
		WinScore:  g.Rules.WinScore,
		Remaining: g.Remaining,
		Clock:     game.FormatClock(g.Remaining),
		Limit:     game.FormatClock(g.Rules.Duration),
		Seq:       g.Round.Seq,
		Target:    g.Round.Target,
		Options:   g.Round.Options,
	}
}

// ------------------------------- page --------------------------------------

// handlePage renders the game page, starting a session when the request has
// no usable one.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.resolve(r)
	if err != nil {
		if ctrl, err = s.sessions.Create(r.Context()); err != nil {
			log.Error().Err(err).Msg("create session")
			http.Error(w, "could not start a game", http.StatusInternalServerError)
			return
		}
		if _, err := s.issueToken(w, ctrl.ID()); err != nil {
			log.Error().Err(err).Msg("sign token")
			http.Error(w, "could not start a game", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, viewOf(ctrl.Snapshot())); err != nil {
		log.Error().Err(err).Msg("render page")
	}
}

// ------------------------------ session ------------------------------------

type sessionRes struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
	State   stateView `json:"state"`
}

// handleNewSession always starts a fresh session.
func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.sessions.Create(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("create session")
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	tok, err := s.issueToken(w, ctrl.ID())
	if err != nil {
		log.Error().Err(err).Msg("sign token")
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	writeJSON(w, http.StatusCreated, sessionRes{Token: tok.value, Expires: tok.expires, State: viewOf(ctrl.Snapshot())})
}

type signed struct {
	value   string
	expires time.Time
}

// issueToken signs a token for id and sets it as the session cookie.
func (s *Server) issueToken(w http.ResponseWriter, id string) (signed, error) {
	tok, exp, err := s.tokens.Sign(id)
	if err != nil {
		return signed{}, err
	}
	sameSite := http.SameSiteLaxMode
	if s.cfg.Production() {
		sameSite = http.SameSiteNoneMode // required for cross-site clients when Secure
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    tok,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Production(),
		SameSite: sameSite,
		Expires:  exp,
	})
	return signed{value: tok, expires: exp}, nil
}

// ------------------------------- game --------------------------------------

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewOf(controllerFrom(r).Snapshot()))
}

// guessReq is the payload for POST /api/guess. Index takes precedence over Color.
type guessReq struct {
	Index *int   `json:"index"`
	Seq   int    `json:"seq"`
	Color string `json:"color"`
}

type guessRes struct {
	Correct  bool      `json:"correct"`
	Picked   color.RGB `json:"picked"`
	Target   color.RGB `json:"target"`
	Distance float64   `json:"distance"`
	State    stateView `json:"state"`
}

// handleGuess applies one guess and returns the outcome with the new state.
func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	var req guessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}

	ctrl := controllerFrom(r)
	var (
		res  game.Result
		snap game.Game
		err  error
	)
	switch {
	case req.Index != nil:
		res, snap, err = ctrl.GuessIndex(*req.Index, req.Seq)
	case req.Color != "":
		res, snap, err = ctrl.Guess(color.Parse(req.Color))
	default:
		writeError(w, http.StatusBadRequest, "missing_guess")
		return
	}
	if err != nil {
		status, code := errorStatus(err)
		log.Debug().Err(err).Str("session", ctrl.ID()).Msg("guess rejected")
		writeJSON(w, status, map[string]any{"error": code, "state": viewOf(snap)})
		return
	}

	writeJSON(w, http.StatusOK, guessRes{
		Correct:  res.Correct,
		Picked:   res.Picked,
		Target:   res.Target,
		Distance: res.Distance,
		State:    viewOf(snap),
	})
}

// handleReset restarts the caller's game. It resolves the session itself
// rather than sitting behind requireSession: a lost session is replaced, so
// "play again" keeps working after the session was reaped.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	ctrl, err := s.resolve(r)
	switch {
	case err == nil:
		snap := ctrl.Reset()
		log.Info().Str("session", ctrl.ID()).Msg("game reset")
		writeJSON(w, http.StatusOK, viewOf(snap))
	case errors.Is(err, session.ErrInvalidToken), errors.Is(err, store.ErrNotFound):
		ctrl, err = s.sessions.Create(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("create session")
			writeError(w, http.StatusInternalServerError, "internal")
			return
		}
		if _, err := s.issueToken(w, ctrl.ID()); err != nil {
			log.Error().Err(err).Msg("sign token")
			writeError(w, http.StatusInternalServerError, "internal")
			return
		}
		log.Info().Str("session", ctrl.ID()).Msg("lost session replaced on reset")
		writeJSON(w, http.StatusOK, viewOf(ctrl.Snapshot()))
	default:
		status, code := errorStatus(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Msg("resolve session")
		}
		writeError(w, status, code)
	}
}
