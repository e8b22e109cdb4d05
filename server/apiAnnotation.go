package server

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/cyclopcam/vidlabel/pkg/voc"
	"github.com/cyclopcam/vidlabel/server/anndb"
	"github.com/cyclopcam/vidlabel/server/auth"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

func parseFrameOrPanic(params httprouter.Params, vid *anndb.Video) int {
	frame, err := strconv.Atoi(params.ByName("frame"))
	if err != nil {
		www.PanicBadRequestf("Invalid frame number '%v'", params.ByName("frame"))
	}
	if frame < 0 || (vid.FrameCount != 0 && frame >= vid.FrameCount) {
		www.PanicBadRequestf("Frame %v is out of range (video has %v frames)", frame, vid.FrameCount)
	}
	return frame
}

// httpAnnotationGetAll returns every annotated frame of the video, as a map
// from frame index to boxes. This is what the labelling UI hydrates from.
func (s *Server) httpAnnotationGetAll(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	_, vid := s.getProjectVideoOrPanic(params, cred)
	frames, err := s.DB.VideoAnnotations(vid.ID)
	www.Check(err)
	www.SendJSON(w, frames)
}

// httpAnnotationGetFrame returns one frame's boxes. A frame that has never
// been annotated returns an empty array.
func (s *Server) httpAnnotationGetFrame(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	_, vid := s.getProjectVideoOrPanic(params, cred)
	frame := parseFrameOrPanic(params, vid)
	objects, err := s.DB.GetFrame(vid.ID, frame)
	www.Check(err)
	if objects == nil {
		objects = []voc.Annotation{}
	}
	www.SendJSON(w, objects)
}

// httpAnnotationPutFrame replaces the complete annotation set of one frame.
// The body is a JSON array of boxes. An empty array means "reviewed, nothing
// in this frame", which is different from never having been annotated.
func (s *Server) httpAnnotationPutFrame(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	proj, vid := s.getProjectVideoOrPanic(params, cred)
	frame := parseFrameOrPanic(params, vid)
	objects := []voc.Annotation{}
	www.ReadJSON(w, r, &objects, 1024*1024)
	if s.cfg.ValidateWrites {
		classes := proj.ClassList()
		for i := range objects {
			if err := objects[i].Validate(classes); err != nil {
				www.PanicBadRequestf("Annotation %v: %v", i, err)
			}
		}
	}
	www.Check(s.DB.SetFrame(vid.ID, frame, objects))
	www.SendOK(w)
}

func (s *Server) httpAnnotationStats(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	_, vid := s.getProjectVideoOrPanic(params, cred)
	stats, err := s.DB.GetVideoStats(vid.ID)
	www.Check(err)
	www.SendJSON(w, stats)
}

// httpAnnotationExport downloads the video plus one PASCAL VOC XML document
// per annotated frame, as a single zip. The archive is buffered in full
// before the first byte goes out, so a failure can't produce a truncated
// download that looks complete.
func (s *Server) httpAnnotationExport(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	_, vid := s.getProjectVideoOrPanic(params, cred)
	frames, err := s.DB.VideoAnnotations(vid.ID)
	www.Check(err)
	docs, err := voc.Encode(frames, vid.VideoName(), vid.FrameShape())
	www.Check(err)
	video, err := s.storageCache.Open(vid.OriginalBlob())
	www.Check(err)
	defer video.Close()
	buf := bytes.Buffer{}
	www.Check(voc.WriteArchive(&buf, video, vid.Filename, vid.VideoName(), docs))
	www.SendFileDownload(w, voc.ArchiveName(vid.VideoName()), "application/zip", buf.Bytes())
}
