package server

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	goGuard "github.com/MrEthical07/goGuard"
	guardmw "github.com/MrEthical07/goGuard/middleware"
)

const maxBodyBytes = 16 << 10

type checkRequest struct {
	Action    string `json:"action"`
	IP        string `json:"ip"`
	Account   string `json:"account"`
	Session   string `json:"session"`
	RiskScore int    `json:"risk_score"`
	Signal    string `json:"signal"`
	// Mode is "record" (default) or "evaluate".
	Mode string `json:"mode"`
}

type dimensionResult struct {
	Dimension string `json:"dimension"`
	Allowed   bool   `json:"allowed"`
	Remaining int    `json:"remaining"`
}

type checkResponse struct {
	Allowed           bool   `json:"allowed"`
	Remaining         int    `json:"remaining"`
	RetryAfterSeconds int64  `json:"retry_after_seconds,omitempty"`
	Message           string `json:"message,omitempty"`
	// Results is omitted on denial so a forwarded body cannot reveal
	// which dimension blocked the request.
	Results []dimensionResult `json:"results,omitempty"`
}

type successRequest struct {
	Action  string `json:"action"`
	IP      string `json:"ip"`
	Account string `json:"account"`
	Session string `json:"session"`
}

type resetRequest struct {
	Dimension  string `json:"dimension"`
	Action     string `json:"action"`
	Identifier string `json:"identifier"`
}

type resetResponse struct {
	Existed bool `json:"existed"`
}

type unblockRequest struct {
	Dimension  string `json:"dimension"`
	Identifier string `json:"identifier"`
}

type unblockResponse struct {
	Unblocked bool   `json:"unblocked"`
	Message   string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !decode(w, r, &req) {
		return
	}
	action, err := goGuard.ParseAction(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}
	mode := goGuard.ModeRecord
	switch req.Mode {
	case "", "record":
	case "evaluate":
		mode = goGuard.ModeEvaluate
	default:
		writeError(w, http.StatusBadRequest, "unknown mode")
		return
	}

	ip := req.IP
	if ip == "" {
		ip = guardmw.ClientIP(r, false)
	}
	id := goGuard.Identity{IP: ip, Account: req.Account, Session: req.Session}

	ctx := goGuard.WithClientIP(r.Context(), ip)
	if req.RiskScore != 0 || req.Signal != "" {
		ctx = goGuard.WithRisk(ctx, &goGuard.RiskContext{Score: req.RiskScore, Signal: req.Signal})
	}

	checks := make([]goGuard.Check, 0, 3)
	for _, c := range []struct {
		dim goGuard.Dimension
		id  string
	}{
		{goGuard.DimensionIP, id.IP},
		{goGuard.DimensionAccount, id.Account},
		{goGuard.DimensionSession, id.Session},
	} {
		if c.id != "" {
			checks = append(checks, goGuard.Check{Dimension: c.dim, Action: action, Identifier: c.id})
		}
	}

	res := s.engine.CheckAll(ctx, checks, mode)
	now := s.engine.Now()

	if res.Err != nil {
		s.logger.Warn("check returned error",
			zap.String("action", action.String()),
			zap.Error(res.Err))
		if errors.Is(res.Err, goGuard.ErrInvalidIdentifier) {
			writeError(w, http.StatusBadRequest, "invalid identifier")
			return
		}
	}

	resp := checkResponse{Allowed: res.Allowed}
	if res.Allowed {
		resp.Remaining = res.MostRestrictive.Remaining
		resp.Results = make([]dimensionResult, 0, len(res.Results))
		for _, cr := range res.Results {
			resp.Results = append(resp.Results, dimensionResult{
				Dimension: cr.Check.Dimension.String(),
				Allowed:   cr.Result.Allowed,
				Remaining: cr.Result.Remaining,
			})
		}
	}

	status := http.StatusOK
	if !res.Allowed {
		wait := res.RetryAfter(now)
		resp.RetryAfterSeconds = ceilSeconds(wait)
		msg := res.MostRestrictive
		msg.LockedUntil = now.Add(wait)
		resp.Message = goGuard.UserMessage(msg, now)
		if mode == goGuard.ModeRecord {
			status = http.StatusTooManyRequests
			if res.Err != nil {
				status = statusFor(res.Err)
			}
			if resp.RetryAfterSeconds > 0 {
				w.Header().Set("Retry-After", strconv.FormatInt(resp.RetryAfterSeconds, 10))
			}
		}
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleSuccess(w http.ResponseWriter, r *http.Request) {
	var req successRequest
	if !decode(w, r, &req) {
		return
	}
	action, err := goGuard.ParseAction(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}
	id := goGuard.Identity{IP: req.IP, Account: req.Account, Session: req.Session}
	if err := s.engine.RecordSuccessAll(r.Context(), action, id); err != nil {
		writeError(w, statusFor(err), "record success failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decode(w, r, &req) {
		return
	}
	dim, err := goGuard.ParseDimension(req.Dimension)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown dimension")
		return
	}
	action, err := goGuard.ParseAction(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}

	existed, err := s.engine.Reset(r.Context(), goGuard.Key{Dimension: dim, Action: action, Identifier: req.Identifier})
	if err != nil {
		writeError(w, statusFor(err), "reset failed")
		return
	}
	s.logAdmin(r, "reset", zap.String("dimension", dim.String()), zap.String("action", action.String()))
	writeJSON(w, http.StatusOK, resetResponse{Existed: existed})
}

func (s *Server) handleUnblock(w http.ResponseWriter, r *http.Request) {
	var req unblockRequest
	if !decode(w, r, &req) {
		return
	}
	dim, err := goGuard.ParseDimension(req.Dimension)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown dimension")
		return
	}

	unblocked, err := s.engine.Unblock(r.Context(), req.Identifier, dim)
	if err != nil {
		writeError(w, statusFor(err), "unblock failed")
		return
	}
	msg := "identifier unblocked"
	if !unblocked {
		msg = "nothing to unblock"
	}
	s.logAdmin(r, "unblock", zap.String("dimension", dim.String()), zap.Bool("unblocked", unblocked))
	writeJSON(w, http.StatusOK, unblockResponse{Unblocked: unblocked, Message: msg})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid window")
			return
		}
		window = d
	}

	stats, err := s.engine.Statistics(r.Context(), window)
	if err != nil {
		writeError(w, statusFor(err), "statistics unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) logAdmin(r *http.Request, op string, fields ...zap.Field) {
	if claims, ok := guardmw.OperatorFromContext(r.Context()); ok {
		fields = append(fields, zap.String("operator", claims.Subject))
	}
	s.logger.Info("admin "+op, fields...)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Seconds()))
}
