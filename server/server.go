// Package server is the vidlabel HTTP server: accounts, projects, videos,
// frame annotations, detection passes and training runs, behind one JSON API.
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caddyserver/certmagic"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/vidlabel/server/anndb"
	"github.com/cyclopcam/vidlabel/server/auth"
	"github.com/cyclopcam/vidlabel/server/detect"
	"github.com/cyclopcam/vidlabel/server/storage"
	"github.com/cyclopcam/vidlabel/server/storagecache"
	"github.com/cyclopcam/vidlabel/server/train"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// ServerFlagHotReloadWWW serves the web app from disk instead of the embedded copy
const ServerFlagHotReloadWWW = 1

type Server struct {
	Log logs.Log
	DB  *anndb.AnnDB

	// ShutdownComplete receives the shutdown error (usually nil) after
	// Shutdown has finished
	ShutdownComplete chan error

	cfg          *Config
	hotReloadWWW bool
	signalIn     chan os.Signal
	httpServer   *http.Server
	httpRouter   *httprouter.Router
	auth         *auth.AuthServer
	detect       *detect.DetectServer
	train        *train.Trainer
	storage      storage.Storage
	storageCache *storagecache.StorageCache
	wsUpgrader   websocket.Upgrader
}

func NewServer(logger logs.Log, configFile string, flags int) (*Server, error) {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	db, err := anndb.NewAnnDB(logger, cfg.DB)
	if err != nil {
		return nil, err
	}

	// Open blob store. LoadConfig guarantees exactly one option is set.
	var storageServer storage.Storage
	if cfg.Storage.GCS != nil {
		storageServer, err = storage.NewStorageGCS(logger, cfg.Storage.GCS.Bucket, cfg.Storage.GCS.Public)
	} else {
		storageServer, err = storage.NewStorageFS(logger, cfg.Storage.Filesystem.Root)
	}
	if err != nil {
		return nil, err
	}

	// The cache gives us local filenames for blobs, which ffmpeg needs, and
	// which is also the only way to read from a private GCS bucket without
	// doing a full download per request.
	storageCache, err := storagecache.NewStorageCache(logger, storageServer, cfg.CacheDir, cfg.CacheBytes)
	if err != nil {
		return nil, err
	}

	s := &Server{
		Log:              logger,
		DB:               db,
		ShutdownComplete: make(chan error, 1),
		cfg:              cfg,
		hotReloadWWW:     flags&ServerFlagHotReloadWWW != 0,
		auth:             auth.NewAuthServer(logger, db),
		storage:          storageServer,
		storageCache:     storageCache,
	}
	s.detect = detect.NewDetectServer(logger, db, detect.Config{
		ModelFile:      cfg.Detector.Model,
		OnnxLibrary:    cfg.Detector.OnnxLibrary,
		MaxVideoHeight: cfg.Detector.MaxVideoHeight,
		FrameStride:    cfg.Detector.FrameStride,
		MinSize:        cfg.Detector.MinSize,
	})
	s.train = train.NewTrainer(logger, db, storageServer, storageCache, train.Config{
		Command:  cfg.Train.Command,
		ModelExt: cfg.Train.ModelExt,
	})
	if err := s.setupHttpRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// HTTPSConfigured is true if the config file has an 'https' section
func (s *Server) HTTPSConfigured() bool {
	return s.cfg.HTTPS != nil
}

// port example: ":8080"
func (s *Server) ListenHTTP(port string) error {
	s.Log.Infof("Listening on %v", port)
	s.httpServer = &http.Server{
		Addr:    port,
		Handler: s.httpRouter,
	}
	return s.httpServer.ListenAndServe()
}

// ListenHTTPS serves on 443, with certificates from Let's Encrypt.
// Requires the 'https' config section.
func (s *Server) ListenHTTPS() error {
	hcfg := s.cfg.HTTPS
	certmagic.Default.Storage = &certmagic.FileStorage{Path: hcfg.CertDir}
	certmagic.DefaultACME.Email = hcfg.Email
	certmagic.DefaultACME.Agreed = true
	magic := certmagic.NewDefault()
	if err := magic.ManageSync(context.Background(), []string{hcfg.Domain}); err != nil {
		return err
	}
	tlsConfig := magic.TLSConfig()
	tlsConfig.NextProtos = append([]string{"h2", "http/1.1"}, tlsConfig.NextProtos...)

	// Plain HTTP just redirects to the TLS port
	go func() {
		redirect := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "https://"+hcfg.Domain+r.RequestURI, http.StatusMovedPermanently)
		})
		if err := http.ListenAndServe(":80", redirect); err != nil {
			s.Log.Warnf("HTTP redirect listener: %v", err)
		}
	}()

	s.Log.Infof("Listening on https://%v", hcfg.Domain)
	s.httpServer = &http.Server{
		Addr:      ":443",
		Handler:   s.httpRouter,
		TLSConfig: tlsConfig,
	}
	return s.httpServer.ListenAndServeTLS("", "")
}

func (s *Server) ListenForKillSignals() {
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig, ok := <-s.signalIn
		if ok {
			s.Log.Infof("Received OS signal '%v'. Shutting down", sig.String())
			s.Shutdown()
		} else {
			// Shutdown() was called by somebody else, and closed signalIn
			s.Log.Infof("signalIn closed. ListenForKillSignals will exit now")
		}
	}()
}

func (s *Server) Shutdown() {
	s.Log.Infof("Shutdown")
	signal.Stop(s.signalIn)
	close(s.signalIn)
	s.Log.Infof("Closing HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)
	s.detect.Close()
	if err != nil {
		s.Log.Warnf("Shutdown complete, with error: %v", err)
	} else {
		s.Log.Infof("Shutdown complete")
	}
	s.Log.Close()
	s.ShutdownComplete <- err
}
