package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/FahimFBA/crowdcredit/internal/api/tabledata"
	"github.com/FahimFBA/crowdcredit/internal/api/userauth"
	"github.com/FahimFBA/crowdcredit/internal/domain"
	"github.com/FahimFBA/crowdcredit/supabase/client"
)

const maxUploadBytes = 5 << 20

// registerAPI wires the JSON endpoints the pages consume.
func (s *Server) registerAPI() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/signup", s.handleSignup).Methods(http.MethodPost)
	auth.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	auth.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	auth.HandleFunc("/magic-link", s.handleMagicLink).Methods(http.MethodPost)
	auth.HandleFunc("/password-reset", s.handlePasswordReset).Methods(http.MethodPost)
	auth.HandleFunc("/password", s.handleSetPassword).Methods(http.MethodPost)
	auth.HandleFunc("/profile", s.handleGetProfile).Methods(http.MethodGet)
	auth.HandleFunc("/profile", s.handleUpdateProfile).Methods(http.MethodPut)
	auth.HandleFunc("/profile/picture", s.handleUploadPicture).Methods(http.MethodPost)
	auth.HandleFunc("/profile/picture", s.handleRemovePicture).Methods(http.MethodDelete)

	api.HandleFunc("/crowdfunding", s.handleListCrowdFunding).Methods(http.MethodGet)
	api.HandleFunc("/crowdfunding", s.handleCreateCrowdFunding).Methods(http.MethodPost)
	api.HandleFunc("/crowdfunding/{id}", s.handleGetCrowdFunding).Methods(http.MethodGet)
	api.HandleFunc("/crowdfunding/{id}", s.handleUpdateCrowdFunding).Methods(http.MethodPut)
	api.HandleFunc("/crowdfunding/{id}", s.handleDeleteCrowdFunding).Methods(http.MethodDelete)
	api.HandleFunc("/crowdfunding/{id}/contributions", s.handleContribute).Methods(http.MethodPost)

	api.HandleFunc("/loans", s.handleListLoans).Methods(http.MethodGet)
	api.HandleFunc("/loans", s.handleCreateLoan).Methods(http.MethodPost)
	api.HandleFunc("/loans/{id}", s.handleGetLoan).Methods(http.MethodGet)
	api.HandleFunc("/loans/{id}", s.handleUpdateLoan).Methods(http.MethodPut)
	api.HandleFunc("/loans/{id}", s.handleDeleteLoan).Methods(http.MethodDelete)
	api.HandleFunc("/loans/{id}/bids", s.handleBid).Methods(http.MethodPost)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := s.auth.EmailSignup(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := s.auth.EmailLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	msg, err := s.auth.Logout(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (s *Server) handleMagicLink(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	msg, err := s.auth.SendEmailLinkSignin(r.Context(), req.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (s *Server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	outcome, err := s.auth.SendResetPasswordEmail(r.Context(), req.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	msg, err := s.auth.SetNewPassword(r.Context(), req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.auth.GetUserProfileDetails(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var profile domain.ProfileData
	if !decodeJSON(w, r, &profile) {
		return
	}
	if err := s.auth.UpdateUserProfileDetails(r.Context(), profile); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "profile updated"})
}

func (s *Server) handleUploadPicture(w http.ResponseWriter, r *http.Request) {
	identity := s.store.Identity()
	if identity.IsEmpty() {
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "not signed in"})
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "could not read upload"})
		return
	}
	if len(data) == 0 || len(data) > maxUploadBytes {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "upload must be between 1 byte and 5 MiB"})
		return
	}
	url, err := s.auth.UploadProfilePicture(r.Context(), identity.UID, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.store.SetProfilePicture(url)
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handleRemovePicture(w http.ResponseWriter, r *http.Request) {
	identity := s.store.Identity()
	if identity.IsEmpty() {
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "not signed in"})
		return
	}
	if err := s.auth.RemoveProfilePicture(r.Context(), identity.UID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.store.SetProfilePicture("")
	writeJSON(w, http.StatusOK, messageResponse{Message: "profile picture removed"})
}

func (s *Server) handleListCrowdFunding(w http.ResponseWriter, r *http.Request) {
	posts, err := s.tables.GetAllCrowdFundingProjects(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleGetCrowdFunding(w http.ResponseWriter, r *http.Request) {
	post, err := s.tables.GetOneCrowdFundingProject(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) handleCreateCrowdFunding(w http.ResponseWriter, r *http.Request) {
	var post domain.CrowdFundingPost
	if !decodeJSON(w, r, &post) {
		return
	}
	if err := s.tables.CreateCrowdFundingProject(r.Context(), post); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "project created"})
}

func (s *Server) handleUpdateCrowdFunding(w http.ResponseWriter, r *http.Request) {
	var post domain.CrowdFundingPost
	if !decodeJSON(w, r, &post) {
		return
	}
	post.ID = mux.Vars(r)["id"]
	if err := s.tables.UpdateCrowdFundingProject(r.Context(), post); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "project updated"})
}

func (s *Server) handleDeleteCrowdFunding(w http.ResponseWriter, r *http.Request) {
	err := s.tables.DeleteCrowdFundingProject(r.Context(), mux.Vars(r)["id"], s.store.Identity().UID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "project deleted"})
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	var c domain.Contribution
	if !decodeJSON(w, r, &c) {
		return
	}
	c.CrowdFundingPostID = mux.Vars(r)["id"]
	if err := s.tables.ContributeToCrowdFundingProject(r.Context(), c); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "contribution recorded"})
}

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	posts, err := s.tables.GetAllLoanPosts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	post, err := s.tables.GetOneLoanPost(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	var post domain.LoanPost
	if !decodeJSON(w, r, &post) {
		return
	}
	if err := s.tables.CreateLoanPost(r.Context(), post); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "loan post created"})
}

func (s *Server) handleUpdateLoan(w http.ResponseWriter, r *http.Request) {
	var post domain.LoanPost
	if !decodeJSON(w, r, &post) {
		return
	}
	post.ID = mux.Vars(r)["id"]
	if err := s.tables.UpdateLoanPost(r.Context(), post); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "loan post updated"})
}

func (s *Server) handleDeleteLoan(w http.ResponseWriter, r *http.Request) {
	err := s.tables.DeleteLoanPost(r.Context(), mux.Vars(r)["id"], s.store.Identity().UID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "loan post deleted"})
}

func (s *Server) handleBid(w http.ResponseWriter, r *http.Request) {
	var bid domain.LoanBid
	if !decodeJSON(w, r, &bid) {
		return
	}
	bid.LoanPostID = mux.Vars(r)["id"]
	if err := s.tables.BidOneLoanPost(r.Context(), bid); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "bid placed"})
}

// writeError maps service failures onto HTTP statuses. Backend errors carry
// their upstream status through.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	var apiErr *client.Error
	switch {
	case errors.Is(err, client.ErrNoRows):
		status = http.StatusNotFound
	case errors.Is(err, tabledata.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, userauth.ErrUserNotInDatabase):
		status = http.StatusNotFound
	case errors.As(err, &apiErr):
		status = apiErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
	}

	if status >= 500 {
		s.log.WithContext(r.Context()).WithError(err).Error("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON parses the request body and answers 400 itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}
