package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"community-subscription-bot/internal/domain/model"
)

type subscribeRequest struct {
	UserID   string `json:"userId" validate:"required,uuid"`
	Level    int    `json:"level" validate:"required,min=1,max=2"`
	Duration int    `json:"duration" validate:"required,min=1,max=36"`
}

type extendRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
	PlanID int    `json:"planId" validate:"required,min=1"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !decodeAndValidate(w, r, s.validate, &req) {
		return
	}
	sub, err := s.deps.Ents.Subscribe(r.Context(), req.UserID, model.Tier(req.Level), req.Duration, s.now())
	if err != nil {
		failErr(w, r, s.log, "subscription.subscribe", err)
		return
	}
	respond(w, r, http.StatusCreated, toSubscriptionDTO(sub))
}

func (s *Server) handleExtend(w http.ResponseWriter, r *http.Request) {
	var req extendRequest
	if !decodeAndValidate(w, r, s.validate, &req) {
		return
	}
	sub, err := s.deps.Ents.ExtendByPlan(r.Context(), req.UserID, req.PlanID, s.now())
	if err != nil {
		failErr(w, r, s.log, "subscription.extend", err)
		return
	}
	respond(w, r, http.StatusOK, toSubscriptionDTO(sub))
}

func (s *Server) handleSubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	var userID string
	err := runtime.BindStyledParameterWithOptions("simple", "userId", chi.URLParam(r, "userId"), &userID,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil || s.validate.Var(userID, "required,uuid") != nil {
		fail(w, r, http.StatusBadRequest, "invalid parameter userId")
		return
	}

	st, err := s.deps.Ents.Status(r.Context(), userID, s.now())
	if err != nil {
		failErr(w, r, s.log, "subscription.status", err)
		return
	}
	respond(w, r, http.StatusOK, statusDTO{
		Subscription:  toSubscriptionDTO(st.Subscription),
		Active:        st.Active,
		DaysRemaining: st.DaysRemaining,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.Stats.Totals(r.Context(), s.now())
	if err != nil {
		failErr(w, r, s.log, "admin.stats", err)
		return
	}
	byTier := make(map[string]int, len(t.ActiveByTier))
	for tier, n := range t.ActiveByTier {
		byTier[strconv.Itoa(int(tier))] = n
	}
	respond(w, r, http.StatusOK, statsDTO{Users: t.Users, ActiveByTier: byTier})
}
