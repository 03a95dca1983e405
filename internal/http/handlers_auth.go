package http

import (
	"context"
	"errors"
	"net/http"

	"budgetly/internal/auth"
	"budgetly/internal/core"
	"budgetly/internal/log"
	"budgetly/internal/ports"
)

type authPage struct {
	Title  string
	Action string
	Email  string
	Error  string
	SignUp bool
}

var (
	signInPage = authPage{Title: "Sign in", Action: "/signin"}
	signUpPage = authPage{Title: "Create account", Action: "/signup", SignUp: true}
)

func (s *Server) handleSignInPage(w http.ResponseWriter, r *http.Request) {
	if s.hasSession(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "auth.html", signInPage)
}

func (s *Server) handleSignUpPage(w http.ResponseWriter, r *http.Request) {
	if s.hasSession(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "auth.html", signUpPage)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	s.handleCredentials(w, r, signInPage, s.auth.SignIn)
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	s.handleCredentials(w, r, signUpPage, s.auth.SignUp)
}

type credentialsFunc func(ctx context.Context, email, password string) (core.User, string, error)

// handleCredentials runs sign-in or sign-up and re-renders the form on failure.
func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request, page authPage, fn credentialsFunc) {
	if resp := ParseFormOrFail(r); resp != nil {
		page.Error = "Invalid request format"
		s.render(w, r, http.StatusBadRequest, "auth.html", page)
		return
	}
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	page.Email = email

	u, token, err := fn(r.Context(), email, password)
	if err != nil {
		status, msg := authFailure(err)
		if status == http.StatusInternalServerError {
			s.logger.ErrorContext(r.Context(), "Authentication failed", log.NewFields().
				WithError(err).
				WithClientIP(s.detector.ExtractClientIP(r)).
				ToSlice()...)
		}
		page.Error = msg
		s.render(w, r, status, "auth.html", page)
		return
	}

	s.logger.DebugContext(r.Context(), "Session cookie issued", log.FieldUserID, u.ID)
	auth.SetSessionCookie(w, token, s.sessionTTL, s.cookieSecure)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func authFailure(err error) (int, string) {
	if msg, ok := ValidationMessage(err); ok {
		return http.StatusUnprocessableEntity, msg
	}
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, ports.ErrEmailExists):
		return http.StatusConflict, "An account with this email already exists"
	}
	return http.StatusInternalServerError, "Something went wrong. Please try again."
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.SignOut(r.Context(), auth.TokenFromRequest(r)); err != nil {
		s.logError(r, "Failed to end session", err, log.OpSignOut)
	}
	auth.ClearSessionCookie(w, s.cookieSecure)

	if r.Header.Get("HX-Request") == "true" {
		NewPartial(http.StatusOK).Redirect("/signin").Write(w)
		return
	}
	http.Redirect(w, r, "/signin", http.StatusSeeOther)
}

func (s *Server) hasSession(r *http.Request) bool {
	token := auth.TokenFromRequest(r)
	if token == "" {
		return false
	}
	_, err := s.auth.Authenticate(r.Context(), token)
	return err == nil
}
