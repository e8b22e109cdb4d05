package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/cyclopcam/vidlabel/server/auth"
	"github.com/cyclopcam/vidlabel/server/train"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
	"gorm.io/gorm"
)

// httpTrainDataset downloads the whole project as one training dataset zip:
// a directory per annotated video, each with the video file and its VOC
// documents. Datasets can be much bigger than memory, so this one spools to
// a temp file instead of buffering.
func (s *Server) httpTrainDataset(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	proj := s.getProjectOrPanic(params, cred)
	tmp, err := os.CreateTemp("", "dataset*.zip")
	www.Check(err)
	defer os.Remove(tmp.Name())

	err = s.train.WriteProjectDataset(tmp, proj)
	tmp.Close()
	if err != nil {
		www.PanicServerError(err.Error())
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%v_dataset.zip", proj.Name))
	http.ServeFile(w, r, tmp.Name())
}

// httpTrainStart launches a training run on the project, or with ?video=ID,
// on a single video. Returns the queued run.
func (s *Server) httpTrainStart(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	proj := s.getProjectOrPanic(params, cred)
	videoID := www.QueryInt64(r, "video")
	if videoID != 0 {
		vid, err := s.DB.GetVideo(videoID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			www.PanicNotFound()
		}
		www.Check(err)
		if vid.ProjectID != proj.ID {
			www.PanicNotFound()
		}
	}
	run, err := s.train.StartTraining(proj, videoID)
	if errors.Is(err, train.ErrNoTrainerCommand) {
		www.PanicBadRequestf("%v", err)
	}
	if errors.Is(err, train.ErrTrainerBusy) {
		www.Panic(http.StatusConflict, err.Error())
	}
	www.Check(err)
	s.Log.Infof("User %v started training run %v on project %v", cred.Email, run.ID, proj.ID)
	www.SendJSON(w, run)
}

func (s *Server) httpTrainList(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	proj := s.getProjectOrPanic(params, cred)
	runs, err := s.DB.ProjectTrainingRuns(proj.ID)
	www.Check(err)
	www.SendJSON(w, runs)
}

func (s *Server) httpTrainGet(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	run := s.getTrainingRunOrPanic(params, cred)
	www.SendJSON(w, run)
}

// httpTrainModel downloads the trained weights of a finished run
func (s *Server) httpTrainModel(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	run := s.getTrainingRunOrPanic(params, cred)
	if run.ModelFile == "" {
		www.PanicNotFound()
	}
	file, err := s.storageCache.Open(run.ModelFile)
	www.Check(err)
	defer file.Close()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=model_%v%v", run.ID, s.cfg.Train.ModelExt))
	http.ServeFile(w, r, file.Filename())
}
