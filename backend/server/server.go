////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package server serves a backend.Backend over HTTP.
package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/chatsync/backend"
	"gitlab.com/elixxir/chatsync/wallet"
)

// UpdateChannelRequest is the body of PATCH /channels/{id}.
type UpdateChannelRequest struct {
	GroupID string `json:"groupId"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	b backend.Backend
}

// NewRouter returns a router serving the backend.
func NewRouter(b backend.Backend) *mux.Router {
	r := mux.NewRouter()
	Register(r, b)
	return r
}

// Register adds the backend routes to the router.
func Register(r *mux.Router, b backend.Backend) {
	h := &handler{b: b}

	r.HandleFunc("/servers", h.listServers).Methods(http.MethodGet)
	r.HandleFunc("/servers/{id}/channels", h.listChannels).Methods(http.MethodGet)
	r.HandleFunc("/servers/{id}/members", h.listMembers).Methods(http.MethodGet)

	r.HandleFunc("/channels/{id}", h.getChannel).Methods(http.MethodGet)
	r.HandleFunc("/channels/{id}", h.updateChannel).Methods(http.MethodPatch)

	r.HandleFunc("/profiles/{address}", h.getProfile).Methods(http.MethodGet)
	r.HandleFunc("/healthz", health).Methods(http.MethodGet)
}

// listServers handles GET /servers?member={address}.
func (h *handler) listServers(w http.ResponseWriter, r *http.Request) {
	member, err := wallet.ParseAddress(r.URL.Query().Get("member"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	servers, err := h.b.ListServers(r.Context(), member)
	respond(w, r, servers, err)
}

// listChannels handles GET /servers/{id}/channels.
func (h *handler) listChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.b.ListChannels(r.Context(), mux.Vars(r)["id"])
	respond(w, r, channels, err)
}

// listMembers handles GET /servers/{id}/members.
func (h *handler) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.b.ListMembers(r.Context(), mux.Vars(r)["id"])
	respond(w, r, members, err)
}

// getChannel handles GET /channels/{id}.
func (h *handler) getChannel(w http.ResponseWriter, r *http.Request) {
	ch, err := h.b.GetChannel(r.Context(), mux.Vars(r)["id"])
	respond(w, r, ch, err)
}

// updateChannel handles PATCH /channels/{id}. The acting wallet is read from
// the wallet header.
func (h *handler) updateChannel(w http.ResponseWriter, r *http.Request) {
	actor, err := wallet.ParseAddress(r.Header.Get(backend.WalletHeader))
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	var req UpdateChannelRequest
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid json"))
		return
	}
	if strings.TrimSpace(req.GroupID) == "" {
		writeError(w, http.StatusBadRequest, errors.New("groupId is required"))
		return
	}

	id := mux.Vars(r)["id"]
	if err = h.b.UpdateChannelGroup(r.Context(), id, req.GroupID, actor); err != nil {
		respond(w, r, nil, err)
		return
	}

	ch, err := h.b.GetChannel(r.Context(), id)
	respond(w, r, ch, err)
}

// getProfile handles GET /profiles/{address}.
func (h *handler) getProfile(w http.ResponseWriter, r *http.Request) {
	address, err := wallet.ParseAddress(mux.Vars(r)["address"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	p, err := h.b.GetProfile(r.Context(), address)
	respond(w, r, p, err)
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// respond writes the value as JSON, or the error with its status.
func respond(w http.ResponseWriter, r *http.Request, v interface{}, err error) {
	if err != nil {
		status := StatusOf(err)
		if status == http.StatusInternalServerError {
			jww.ERROR.Printf("[REST] %s %s: %+v", r.Method, r.URL.Path, err)
		}
		writeError(w, status, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(v); err != nil {
		jww.WARN.Printf("[REST] Failed to encode response to %s: %+v",
			r.URL.Path, err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error()})
}

// StatusOf returns the HTTP status of a backend error.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, backend.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, backend.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, backend.ErrGroupAlreadySet):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
