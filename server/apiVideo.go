package server

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/vidlabel/pkg/iox"
	"github.com/cyclopcam/vidlabel/pkg/kibi"
	"github.com/cyclopcam/vidlabel/pkg/rando"
	"github.com/cyclopcam/vidlabel/pkg/videox"
	"github.com/cyclopcam/vidlabel/pkg/voc"
	"github.com/cyclopcam/vidlabel/server/anndb"
	"github.com/cyclopcam/vidlabel/server/auth"
	"github.com/cyclopcam/vidlabel/server/storage"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

// Keep at least this much space free on the storage volume
const freeSpaceMargin = 1 << 30

type uploadResponseJSON struct {
	ID      int64  `json:"id"`
	Warning string `json:"warning,omitempty"`
}

// httpVideoUpload ingests a video. The request body is the raw video file,
// and the 'filename' query parameter tells us what it's called.
// Alongside the original we store a seekable re-encode for the browser, and
// a thumbnail.
func (s *Server) httpVideoUpload(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	proj := s.getProjectOrPanic(params, cred)
	filename := filepath.Base(strings.TrimSpace(www.RequiredQueryValue(r, "filename")))
	if !anndb.IsVideoFilename(filename) {
		www.PanicBadRequestf("Unsupported video type '%v'. Supported types: %v", filepath.Ext(filename), strings.Join(anndb.VideoExtensions, " "))
	}
	if r.ContentLength > s.cfg.Upload.RejectBytes {
		www.Panic(http.StatusRequestEntityTooLarge, fmt.Sprintf("Video is too large: %v. Maximum size: %v", kibi.FormatBytes(r.ContentLength), kibi.FormatBytes(s.cfg.Upload.RejectBytes)))
	}
	if free, err := s.storage.FreeBytes(); err == nil && free-r.ContentLength < freeSpaceMargin {
		www.Panic(http.StatusInsufficientStorage, "Storage is full")
	}

	// Spool the upload to a local file, because ffmpeg wants a filename.
	// ContentLength can lie (or be absent), so the size gets checked again here.
	origTempFile := rando.TempFilename(strings.ToLower(filepath.Ext(filename)))
	defer os.Remove(origTempFile)
	www.Check(iox.WriteStreamToFile(origTempFile, io.LimitReader(r.Body, s.cfg.Upload.RejectBytes+1)))
	st, err := os.Stat(origTempFile)
	www.Check(err)
	if st.Size() > s.cfg.Upload.RejectBytes {
		www.Panic(http.StatusRequestEntityTooLarge, fmt.Sprintf("Video is too large. Maximum size: %v", kibi.FormatBytes(s.cfg.Upload.RejectBytes)))
	}

	info, err := videox.ProbeVideo(origTempFile)
	if err != nil {
		www.PanicBadRequestf("Unable to read video: %v", err)
	}

	seekTempFile := rando.TempFilename(".mp4")
	defer os.Remove(seekTempFile)
	www.Check(videox.TranscodeSeekable(origTempFile, seekTempFile, s.cfg.SeekableMaxWidth))

	thumbnail, err := videox.ExtractFrame(origTempFile, info.Duration.Seconds()/2, 640)
	www.Check(err)

	vid := anndb.Video{
		ProjectID:  proj.ID,
		Filename:   filename,
		Size:       st.Size(),
		Width:      info.Width,
		Height:     info.Height,
		FPS:        info.FPS,
		Duration:   info.Duration.Seconds(),
		FrameCount: info.FrameCount,
		CreatedAt:  dbh.MakeIntTime(time.Now().UTC()),
	}
	origReader, err := os.Open(origTempFile)
	www.Check(err)
	defer origReader.Close()
	seekReader, err := os.Open(seekTempFile)
	www.Check(err)
	defer seekReader.Close()

	tx := s.DB.DB.Begin()
	www.Check(tx.Error)
	defer tx.Rollback()
	www.Check(tx.Create(&vid).Error)
	www.Check(storage.WriteFile(s.storage, vid.OriginalBlob(), origReader))
	www.Check(storage.WriteFile(s.storage, vid.SeekableBlob(), seekReader))
	www.Check(storage.WriteFile(s.storage, vid.ThumbBlob(), bytes.NewReader(thumbnail)))
	www.Check(tx.Commit().Error)

	warning := ""
	if st.Size() > s.cfg.Upload.WarnBytes {
		warning = fmt.Sprintf("Large video (%v). Videos over %v slow down scrubbing and training.", kibi.FormatBytes(st.Size()), kibi.FormatBytes(s.cfg.Upload.WarnBytes))
	}
	s.Log.Infof("New video %v (%v, %vx%v, %v frames) in project %v from user %v", vid.ID, filename, vid.Width, vid.Height, vid.FrameCount, proj.ID, cred.Email)
	www.SendJSON(w, uploadResponseJSON{ID: vid.ID, Warning: warning})
}

type videoListItemJSON struct {
	anndb.Video
	Stats *anndb.VideoStats `json:"stats"`
}

func (s *Server) httpVideoList(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	proj := s.getProjectOrPanic(params, cred)
	videos, err := s.DB.ProjectVideos(proj.ID)
	www.Check(err)
	list := make([]videoListItemJSON, 0, len(videos))
	for i := range videos {
		stats, err := s.DB.GetVideoStats(videos[i].ID)
		www.Check(err)
		list = append(list, videoListItemJSON{Video: videos[i], Stats: stats})
	}
	www.SendJSON(w, list)
}

type videoInfoJSON struct {
	anndb.Video
	Stats   *anndb.VideoStats `json:"stats"`
	Classes []string          `json:"classes"`
}

func (s *Server) httpVideoInfo(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	proj, vid := s.getProjectVideoOrPanic(params, cred)
	stats, err := s.DB.GetVideoStats(vid.ID)
	www.Check(err)
	www.SendJSON(w, videoInfoJSON{
		Video:   *vid,
		Stats:   stats,
		Classes: proj.ClassList(),
	})
}

// httpVideoGet streams the seekable re-encode. With original=1, it streams
// the file exactly as uploaded.
func (s *Server) httpVideoGet(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	_, vid := s.getProjectVideoOrPanic(params, cred)
	blob := vid.SeekableBlob()
	serveName := "video.mp4"
	if www.QueryValue(r, "original") == "1" {
		blob = vid.OriginalBlob()
		serveName = vid.Filename
	}
	// The cache gives us a local file, so http.ServeContent can answer the
	// byte-range requests that the <video> element makes while scrubbing.
	file, err := s.storageCache.Open(blob)
	www.Check(err)
	defer file.Close()
	http.ServeContent(w, r, serveName, vid.CreatedAt.Get(), file)
}

// httpVideoDelete removes the video, its annotations, and its blobs
func (s *Server) httpVideoDelete(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	_, vid := s.getProjectVideoOrPanic(params, cred)
	www.Check(s.DB.DeleteVideo(vid.ID))
	// Blobs go last. A failure here leaves an orphan blob, which is better
	// than a video row whose bytes are gone.
	for _, blob := range []string{vid.OriginalBlob(), vid.SeekableBlob(), vid.ThumbBlob()} {
		if err := s.storage.DeleteFile(blob); err != nil {
			s.Log.Warnf("Failed to delete blob %v of video %v: %v", blob, vid.ID, err)
		}
	}
	s.Log.Infof("User %v deleted video %v (%v)", cred.Email, vid.ID, vid.Filename)
	www.SendOK(w)
}

func (s *Server) httpVideoThumbnail(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	_, vid := s.getProjectVideoOrPanic(params, cred)
	file, err := s.storage.ReadFile(vid.ThumbBlob())
	www.Check(err)
	defer file.Reader.Close()
	w.Header().Set("Content-Type", "image/jpeg")
	io.Copy(w, file.Reader)
}

// httpVideoFrame returns one frame as a JPEG, at the original resolution, or
// scaled down to 'width'. With annotated=1, the frame's boxes are burned
// into the image.
func (s *Server) httpVideoFrame(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	proj, vid := s.getProjectVideoOrPanic(params, cred)
	frame := parseFrameOrPanic(params, vid)
	width := www.QueryInt(r, "width")
	annotated := www.QueryValue(r, "annotated") == "1"

	file, err := s.storageCache.Open(vid.OriginalBlob())
	www.Check(err)
	defer file.Close()

	info := videox.VideoInfo{
		Width:      vid.Width,
		Height:     vid.Height,
		FPS:        vid.FPS,
		Duration:   time.Duration(vid.Duration * float64(time.Second)),
		FrameCount: vid.FrameCount,
	}
	jpg, err := videox.ExtractFrameIndex(file.Filename(), frame, &info, width)
	www.Check(err)

	if annotated {
		objects, err := s.DB.GetFrame(vid.ID, frame)
		www.Check(err)
		if len(objects) != 0 {
			img, err := jpeg.Decode(bytes.NewReader(jpg))
			www.Check(err)
			// Boxes are stored at native resolution, so scale them if we're
			// serving a smaller image
			sx := float64(img.Bounds().Dx()) / float64(vid.Width)
			sy := float64(img.Bounds().Dy()) / float64(vid.Height)
			if sx != 1 || sy != 1 {
				scaled := make([]voc.Annotation, len(objects))
				copy(scaled, objects)
				for i := range scaled {
					b := &scaled[i].Box
					b[0] = int(float64(b[0]) * sx)
					b[1] = int(float64(b[1]) * sy)
					b[2] = int(float64(b[2]) * sx)
					b[3] = int(float64(b[3]) * sy)
				}
				objects = scaled
			}
			rendered := voc.DrawAnnotations(img, objects, proj.ClassList())
			buf := bytes.Buffer{}
			www.Check(jpeg.Encode(&buf, rendered, &jpeg.Options{Quality: 85}))
			jpg = buf.Bytes()
		}
		// Annotations change all the time, so the rendered frame must not be cached
		www.CacheNever(w)
	} else {
		// A frame of an uploaded video never changes
		www.CacheImmutable(w)
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(jpg)
}
