package api

import "net/http"

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	notifs, err := s.store.ListNotifications(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notifs)
}

func (s *Server) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "notification_id")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	n, err := s.store.MarkNotificationRead(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}
