package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// api is the read/administrative HTTP surface. It shares nothing with the
// live session registry: deleting a user does not disconnect their session.
type api struct {
	store ChatStore
}

// newAPIServer wires the admin routes and the metrics scrape endpoint.
func newAPIServer(addr string, store ChatStore) *http.Server {
	a := &api{store: store}

	r := mux.NewRouter()
	r.HandleFunc("/health", a.health).Methods(http.MethodGet)
	r.HandleFunc("/messages", a.getMessages).Methods(http.MethodGet)
	r.HandleFunc("/users", a.getUsers).Methods(http.MethodGet)
	r.HandleFunc("/user/{id}", a.deleteUser).Methods(http.MethodDelete)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// The middleware wraps the router rather than registering on it, so
	// preflight OPTIONS requests get CORS headers even though no route
	// matches the method.
	return &http.Server{
		Addr:        addr,
		Handler:     corsMiddleware(r),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (a *api) getMessages(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("username")

	messages, err := a.store.GetMessages(r.Context(), prefix)
	if err != nil {
		slog.Error("getting messages failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, messages)
}

func (a *api) getUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.store.GetUsers(r.Context())
	if err != nil {
		slog.Error("getting users failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, users)
}

func (a *api) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	affected, err := a.store.RemoveUser(r.Context(), id)
	if err != nil {
		slog.Error("removing user failed", "id", id, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if affected == 1 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response failed", "error", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
