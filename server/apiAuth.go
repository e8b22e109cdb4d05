package server

import (
	"net/http"

	"github.com/cyclopcam/vidlabel/pkg/pwdhash"
	"github.com/cyclopcam/vidlabel/server/auth"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

func (s *Server) httpAuthLogin(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.auth.Login(w, r)
}

func (s *Server) httpAuthLogout(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	s.auth.Logout(w, r, cred)
}

func (s *Server) httpAuthWhoAmI(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	user, err := s.DB.GetUser(cred.UserID)
	www.Check(err)
	www.SendJSON(w, user)
}

// httpAuthSetPassword sets the calling user's password, and logs all of their
// other sessions out
func (s *Server) httpAuthSetPassword(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	password := www.RequiredQueryValue(r, "password")
	if len(password) < 8 {
		www.PanicBadRequestf("Password must be at least 8 characters")
	}
	www.Check(s.DB.SetUserPassword(cred.UserID, pwdhash.HashPasswordBase64(password)))
	www.Check(s.auth.EraseOtherSessions(cred))
	s.Log.Infof("User %v changed their password", cred.Email)
	www.SendOK(w)
}
