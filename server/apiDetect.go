package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cyclopcam/vidlabel/server/auth"
	"github.com/cyclopcam/vidlabel/server/detect"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

// httpDetectVideo runs the object detector over a video, and writes what it
// finds into the annotation store. A pass over a long video runs for minutes,
// so this is a websocket: the client gets a progress message per processed
// frame, then a final summary (or an error).
//
// Query parameters:
//
//	classes    comma separated class names (default: every class the model knows)
//	start      first frame to process
//	end        stop before this frame (0 = end of video)
//	stride     process every n'th frame (default from config)
//	threshold  minimum confidence, 0..1
func (s *Server) httpDetectVideo(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	_, vid := s.getProjectVideoOrPanic(params, cred)
	if !s.detect.Enabled() {
		www.PanicBadRequestf("No detection model is configured")
	}
	opt := detect.PassOptions{
		FrameStride: www.QueryInt(r, "stride"),
		StartFrame:  www.QueryInt(r, "start"),
		EndFrame:    www.QueryInt(r, "end"),
	}
	if v := www.QueryValue(r, "threshold"); v != "" {
		threshold, err := strconv.ParseFloat(v, 32)
		if err != nil || threshold < 0 || threshold > 1 {
			www.PanicBadRequestf("Invalid threshold '%v'", v)
		}
		opt.Threshold = float32(threshold)
	}
	if v := www.QueryValue(r, "classes"); v != "" {
		for _, class := range strings.Split(v, ",") {
			if class = strings.TrimSpace(class); class != "" {
				opt.Classes = append(opt.Classes, class)
			}
		}
	}

	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("httpDetectVideo websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	type message struct {
		Error      string `json:"error,omitempty"`
		Frame      int    `json:"frame,omitempty"`
		FrameCount int    `json:"frameCount,omitempty"`
		Done       bool   `json:"done,omitempty"`
		Frames     int    `json:"frames,omitempty"`  // Final message: frames written
		Objects    int    `json:"objects,omitempty"` // Final message: objects written
	}

	// From here on, errors go over the websocket
	file, err := s.storageCache.Open(vid.OriginalBlob())
	if err != nil {
		conn.WriteJSON(message{Error: err.Error()})
		return
	}
	defer file.Close()

	opt.Progress = func(frame, frameCount int) {
		conn.WriteJSON(message{Frame: frame, FrameCount: frameCount})
	}
	counts, err := s.detect.RunVideoPass(file.Filename(), vid, opt)
	if err != nil {
		conn.WriteJSON(message{Error: err.Error()})
		return
	}
	totalObjects := 0
	for _, n := range counts {
		totalObjects += n
	}
	conn.WriteJSON(message{Done: true, Frames: len(counts), Objects: totalObjects})
}
