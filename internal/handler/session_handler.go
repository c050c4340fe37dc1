package handler

import (
	"encoding/json"
	"net/http"

	"fsanano/pharmacy-storefront/internal/model"
)

type sessionView struct {
	Authenticated bool        `json:"authenticated"`
	User          *model.User `json:"user"`
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionView{
		Authenticated: h.session.IsAuthenticated(),
		User:          h.session.User(),
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	user, err := h.session.Login(r.Context(), creds)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView{Authenticated: true, User: user})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var data model.Registration
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	user, err := h.session.Register(r.Context(), data)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionView{Authenticated: true, User: user})
}

// Logout succeeds locally even when the server call fails.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		h.log.WithError(err).Info("logged out locally despite server error")
	}
	writeJSON(w, http.StatusOK, sessionView{})
}

func (h *Handler) FetchUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.session.FetchUser(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
