package http

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"gestao/internal/auth"
)

type credentialsRequest struct {
	Username string `json:"username" validate:"required,max=80"`
	Password string `json:"password" validate:"required"`
}

type passwordRequest struct {
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string   `json:"token"`
	User  userJSON `json:"user"`
}

// handleRegister creates the first (admin) account, or any account when
// called by an administrator.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !s.bind(w, r, &req) {
		return
	}

	actor, _ := auth.ClaimsFrom(r.Context())
	u, err := s.auth.Register(r.Context(), actor, req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserJSON(u))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !s.bind(w, r, &req) {
		return
	}

	token, u, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: toUserJSON(u)})
}

// handleLogout expires the auth cookie. Bearer tokens stay valid until they expire.
func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ClaimsFrom(r.Context())
	users, err := s.auth.ListUsers(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]userJSON, 0, len(users))
	for _, u := range users {
		out = append(out, toUserJSON(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req passwordRequest
	if !s.bind(w, r, &req) {
		return
	}

	actor, _ := auth.ClaimsFrom(r.Context())
	if err := s.auth.ResetPassword(r.Context(), actor, id, req.Password); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// bind parses the body into dst and validates it, writing the error
// response and returning false on failure.
func (s *Server) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := NewRequestBodyParser(w, r).Bind(dst); err != nil {
		writeError(w, r, err)
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, r, validationError(err))
		return false
	}
	return true
}

// pathID reads the numeric {id} route variable.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeStatus(w, http.StatusNotFound)
		return 0, false
	}
	return id, true
}
