package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/FahimFBA/crowdcredit/internal/middleware"
)

// pageState is the shell the client renders a routed page from.
type pageState struct {
	Route    string            `json:"route"`
	Theme    string            `json:"theme"`
	User     any               `json:"user"`
	Notices  any               `json:"notices"`
	SignedIn bool              `json:"signed_in"`
	Params   map[string]string `json:"params,omitempty"`
}

// registerPages wires the app routes with their guards. Login, signup,
// and password reset are anonymous-only; the dashboard, profile,
// settings, and crowdfunding pages require a signed-in identity.
func (s *Server) registerPages() {
	open := s.router.NewRoute().Subrouter()
	open.Use(middleware.PageViews(s.metrics))
	open.HandleFunc("/", s.handlePage).Methods(http.MethodGet)

	anon := s.router.NewRoute().Subrouter()
	anon.Use(middleware.RequireAnonymous(s.store, profilePath))
	anon.Use(middleware.PageViews(s.metrics))
	anon.HandleFunc("/login", s.handlePage).Methods(http.MethodGet)
	anon.HandleFunc("/signup", s.handlePage).Methods(http.MethodGet)
	anon.HandleFunc("/password-reset", s.handlePage).Methods(http.MethodGet)

	authed := s.router.NewRoute().Subrouter()
	authed.Use(middleware.RequireAuthenticated(s.store, loginPath))
	authed.Use(middleware.PageViews(s.metrics))
	authed.HandleFunc("/dashboard", s.handlePage).Methods(http.MethodGet)
	authed.HandleFunc("/dashboard/{id}", s.handlePage).Methods(http.MethodGet)
	authed.HandleFunc("/profile", s.handlePage).Methods(http.MethodGet)
	authed.HandleFunc("/profile/{id}", s.handlePage).Methods(http.MethodGet)
	authed.HandleFunc("/settings", s.handlePage).Methods(http.MethodGet)
	authed.HandleFunc("/crowdfunding", s.handlePage).Methods(http.MethodGet)
	authed.HandleFunc("/crowdfunding/{id}", s.handlePage).Methods(http.MethodGet)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	identity := s.store.Identity()
	state := pageState{
		Route:    r.URL.Path,
		Theme:    string(s.store.Theme()),
		User:     identity,
		Notices:  s.store.Notices(),
		SignedIn: !identity.IsEmpty(),
	}
	if vars := mux.Vars(r); len(vars) > 0 {
		state.Params = vars
	}
	writeJSON(w, http.StatusOK, state)
}
