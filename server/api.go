package server

import (
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cyclopcam/staticfiles"
	"github.com/cyclopcam/vidlabel/server/anndb"
	"github.com/cyclopcam/vidlabel/server/auth"
	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"
	"gorm.io/gorm"
)

//go:embed www
var staticWWW embed.FS

type authenticatedHandler func(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials)

func (s *Server) setupHttpRoutes() error {
	router := httprouter.New()

	// protected creates an HTTP handler that is accessible only with authentication
	protected := func(method, route string, handle authenticatedHandler) {
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			cred := s.auth.AuthenticateRequest(w, r)
			if cred == nil {
				return
			}
			handle(w, r, params, cred)
		})
	}

	// unprotected creates an HTTP handler that is accessible without authentication
	unprotected := func(method, route string, handle httprouter.Handle) {
		www.Handle(s.Log, router, method, route, handle)
	}

	// ratelimited creates an unauthenticated handler with a per-IP rate limit.
	// Each endpoint gets its own limiter, so we don't need httprate.KeyByEndpoint.
	ratelimited := func(method, route string, handle httprouter.Handle, requestLimit int, windowLength time.Duration) {
		limited := httprate.Limit(requestLimit, windowLength, httprate.WithKeyFuncs(httprate.KeyByIP))
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handle(w, r, params)
			})).ServeHTTP(w, r)
		})
	}

	// protectedLimited is protected, plus a per-IP rate limit
	protectedLimited := func(method, route string, handle authenticatedHandler, requestLimit int, windowLength time.Duration) {
		limited := httprate.Limit(requestLimit, windowLength, httprate.WithKeyFuncs(httprate.KeyByIP))
		www.Handle(s.Log, router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				cred := s.auth.AuthenticateRequest(w, r)
				if cred == nil {
					return
				}
				handle(w, r, params, cred)
			})).ServeHTTP(w, r)
		})
	}

	unprotected("GET", "/api/ping", s.httpPing)
	protected("GET", "/api/constants", s.httpConstants)

	// Logins are rate limited to slow down password guessing
	ratelimited("POST", "/api/auth/login", s.httpAuthLogin, 5, time.Minute)
	protected("POST", "/api/auth/logout", s.httpAuthLogout)
	protected("GET", "/api/auth/whoami", s.httpAuthWhoAmI)
	protected("POST", "/api/auth/setPassword", s.httpAuthSetPassword)

	protected("GET", "/api/projects", s.httpProjectList)
	protected("POST", "/api/projects", s.httpProjectCreate)
	protected("GET", "/api/project/:projectID", s.httpProjectGet)
	protected("POST", "/api/project/:projectID/classes", s.httpProjectAddClass)
	protected("DELETE", "/api/project/:projectID/classes", s.httpProjectRemoveClass)

	protectedLimited("PUT", "/api/project/:projectID/video", s.httpVideoUpload, 10, time.Minute)
	protected("GET", "/api/project/:projectID/videos", s.httpVideoList)
	protected("GET", "/api/project/:projectID/video/:videoID", s.httpVideoGet)
	protected("DELETE", "/api/project/:projectID/video/:videoID", s.httpVideoDelete)
	protected("GET", "/api/project/:projectID/video/:videoID/info", s.httpVideoInfo)
	protected("GET", "/api/project/:projectID/video/:videoID/thumbnail", s.httpVideoThumbnail)
	protected("GET", "/api/project/:projectID/video/:videoID/frame/:frame", s.httpVideoFrame)

	protected("GET", "/api/project/:projectID/video/:videoID/annotations", s.httpAnnotationGetAll)
	protected("GET", "/api/project/:projectID/video/:videoID/annotations/:frame", s.httpAnnotationGetFrame)
	protected("PUT", "/api/project/:projectID/video/:videoID/annotations/:frame", s.httpAnnotationPutFrame)
	protected("GET", "/api/project/:projectID/video/:videoID/stats", s.httpAnnotationStats)
	protected("GET", "/api/project/:projectID/video/:videoID/export", s.httpAnnotationExport)

	protected("GET", "/api/project/:projectID/video/:videoID/detect", s.httpDetectVideo)

	protected("GET", "/api/project/:projectID/dataset", s.httpTrainDataset)
	protected("POST", "/api/project/:projectID/train", s.httpTrainStart)
	protected("GET", "/api/project/:projectID/trainingRuns", s.httpTrainList)
	protected("GET", "/api/trainingRun/:runID", s.httpTrainGet)
	protected("GET", "/api/trainingRun/:runID/model", s.httpTrainModel)

	isImmutable := true
	var fsys fs.FS
	fsysRoot := "www"
	fsys = staticWWW
	if s.hotReloadWWW {
		relRoot := "server/www"
		absRoot, err := filepath.Abs(relRoot)
		if err != nil {
			s.Log.Errorf("Failed to resolve static file directory %v: %v. Run 'npm run build' in 'www' to build static files.", relRoot, err)
			return errors.New("Failed to resolve static file directory for hot reload")
		}
		s.Log.Infof("Serving static files from %v, with hot reload", absRoot)
		fsys = os.DirFS(absRoot)
		fsysRoot = ""
		isImmutable = false
	}

	static, err := staticfiles.NewCachedStaticFileServer(fsys, fsysRoot, []string{"/api/"}, s.Log, isImmutable, nil)
	if err != nil {
		s.Log.Warnf("Error in static files: %v. Run 'npm run build' in 'www' to build static files. If you're using 'npm run dev', then you can ignore this warning.", err)
	}
	router.NotFound = static

	s.httpRouter = router
	return nil
}

func (s *Server) httpPing(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, map[string]any{
		"greeting": "I am vidlabel",
		"time":     time.Now().Unix(),
	})
}

// httpConstants tells the frontend which optional features this deployment has
func (s *Server) httpConstants(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	www.SendJSON(w, map[string]any{
		"defaultClasses":  anndb.DefaultClasses,
		"detectorEnabled": s.detect.Enabled(),
		"trainerEnabled":  s.train.Enabled(),
		"maxUploadSize":   s.cfg.Upload.RejectBytes,
	})
}

// getProjectOrPanic fetches the project in the URL, and verifies that it
// belongs to the caller
func (s *Server) getProjectOrPanic(params httprouter.Params, cred *auth.Credentials) *anndb.Project {
	proj, err := s.DB.GetProject(www.ParseID(params.ByName("projectID")))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		www.PanicNotFound()
	}
	www.Check(err)
	if proj.UserID != cred.UserID {
		www.PanicForbiddenf("You are not allowed to access this project")
	}
	return proj
}

// getProjectVideoOrPanic fetches the video in the URL, after checking access
// to its project. A video ID from some other project reads as 404.
func (s *Server) getProjectVideoOrPanic(params httprouter.Params, cred *auth.Credentials) (*anndb.Project, *anndb.Video) {
	proj := s.getProjectOrPanic(params, cred)
	vid, err := s.DB.GetVideo(www.ParseID(params.ByName("videoID")))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		www.PanicNotFound()
	}
	www.Check(err)
	if vid.ProjectID != proj.ID {
		www.PanicNotFound()
	}
	return proj, vid
}

func (s *Server) getTrainingRunOrPanic(params httprouter.Params, cred *auth.Credentials) *anndb.TrainingRun {
	run, err := s.DB.GetTrainingRun(www.ParseID(params.ByName("runID")))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		www.PanicNotFound()
	}
	www.Check(err)
	proj, err := s.DB.GetProject(run.ProjectID)
	www.Check(err)
	if proj.UserID != cred.UserID {
		www.PanicForbiddenf("You are not allowed to access this training run")
	}
	return run
}
