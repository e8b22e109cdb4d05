package server

import (
	"errors"
	"net/http"

	"github.com/cyclopcam/vidlabel/server/anndb"
	"github.com/cyclopcam/vidlabel/server/auth"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

func (s *Server) httpProjectList(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	projects, err := s.DB.UserProjects(cred.UserID)
	www.Check(err)
	www.SendJSON(w, projects)
}

func (s *Server) httpProjectCreate(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	name := www.RequiredQueryValue(r, "name")
	proj, err := s.DB.CreateProject(cred.UserID, name)
	if errors.Is(err, anndb.ErrDuplicateProjectName) {
		www.PanicBadRequestf("%v", err)
	}
	www.Check(err)
	s.Log.Infof("User %v created project %v (%v)", cred.Email, proj.ID, proj.Name)
	www.SendJSON(w, proj)
}

func (s *Server) httpProjectGet(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	proj := s.getProjectOrPanic(params, cred)
	www.SendJSON(w, proj)
}

func (s *Server) httpProjectAddClass(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	proj := s.getProjectOrPanic(params, cred)
	class := www.RequiredQueryValue(r, "class")
	classes, err := s.DB.AddClass(proj.ID, class)
	www.Check(err)
	www.SendJSON(w, classes)
}

func (s *Server) httpProjectRemoveClass(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	proj := s.getProjectOrPanic(params, cred)
	class := www.RequiredQueryValue(r, "class")
	classes, err := s.DB.RemoveClass(proj.ID, class)
	if errors.Is(err, anndb.ErrLastClass) {
		www.PanicBadRequestf("%v", err)
	}
	www.Check(err)
	www.SendJSON(w, classes)
}
