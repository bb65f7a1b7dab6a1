package api

import (
	"net/http"

	"github.com/openrec/reggie/internal/reggie"
)

func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store.ListRules(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

type createRuleRequest struct {
	SiteID       *int64  `json:"site_id"`
	ProgramID    *int64  `json:"program_id"`
	ActivityType *string `json:"activity_type"`
	AgeGroup     *string `json:"age_group"`
	Active       *bool   `json:"active"`
	AutoRegister bool    `json:"auto_register"`
}

func (s *Server) createRule(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	// New rules watch immediately unless explicitly created inactive.
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	rule, err := s.store.CreateRule(r.Context(), reggie.WatchRule{
		SiteID:       req.SiteID,
		ProgramID:    req.ProgramID,
		ActivityType: req.ActivityType,
		AgeGroup:     req.AgeGroup,
		Active:       active,
		AutoRegister: req.AutoRegister,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) getRule(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "rule_id")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	rule, err := s.store.GetRule(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) updateRule(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "rule_id")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	var patch reggie.RulePatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	rule, err := s.store.UpdateRule(r.Context(), id, patch)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) deleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "rule_id")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := s.store.DeleteRule(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) checkRule(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "rule_id")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	// Distinguish not-found from the matcher's fail-closed zero.
	if _, err := s.store.GetRule(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	created, err := s.matcher.CheckRule(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"notified": created})
}
