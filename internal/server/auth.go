package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"cfs-go/internal/auth"
)

// maxAuthBody bounds sign-up and sign-in request bodies.
const maxAuthBody = 4 << 10

type userResponse struct {
	Username string `json:"username"`
}

func (s *Server) decodeCredentials(w http.ResponseWriter, r *http.Request) (auth.Credentials, error) {
	var creds auth.Credentials
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAuthBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&creds); err != nil {
		return creds, fmt.Errorf("%w: malformed request body", auth.ErrValidation)
	}
	return creds, nil
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	creds, err := s.decodeCredentials(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	user, session, err := s.auth.SignUp(r.Context(), creds)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.setSessionCookie(w, session.Token, session.ExpiresAt)
	writeJSON(w, http.StatusCreated, userResponse{Username: user.Username})
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	creds, err := s.decodeCredentials(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	user, session, err := s.auth.SignIn(r.Context(), creds)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.setSessionCookie(w, session.Token, session.ExpiresAt)
	writeJSON(w, http.StatusOK, userResponse{Username: user.Username})
}

func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(s.opts.CookieName)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "not signed in")
		return
	}
	if err := s.auth.SignOut(r.Context(), c.Value); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userResponse{Username: userFrom(r.Context()).Username})
}
