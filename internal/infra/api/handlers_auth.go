package api

import (
	"net/http"

	"community-subscription-bot/internal/usecase"
)

type sessionResponse struct {
	User  userDTO `json:"user"`
	Token string  `json:"token"`
	Role  string  `json:"role"`
}

// handleTelegramAuth verifies the login widget payload, upserts the user and issues a session.
func (s *Server) handleTelegramAuth(w http.ResponseWriter, r *http.Request) {
	login, err := VerifyTelegramLogin(r.URL.Query(), s.opts.BotToken, s.now())
	if err != nil {
		failErr(w, r, s.log, "auth.telegram", err)
		return
	}

	user, err := s.deps.Users.RegisterOrFetch(r.Context(), usecase.TelegramProfile{
		TelegramID: login.ID,
		Username:   login.Username,
		FirstName:  login.FirstName,
		LastName:   login.LastName,
	})
	if err != nil {
		failErr(w, r, s.log, "auth.telegram", err)
		return
	}

	role := RoleMember
	if s.isAdmin(login.ID) {
		role = RoleAdmin
	}
	token, err := s.auth.Mint(user.ID, user.TelegramID, role)
	if err != nil {
		failErr(w, r, s.log, "auth.mint", err)
		return
	}
	respond(w, r, http.StatusOK, sessionResponse{User: toUserDTO(user), Token: token, Role: role})
}
