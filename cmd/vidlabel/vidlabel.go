package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/vidlabel/server"
)

func main() {
	parser := argparse.NewParser("vidlabel", "Video annotation service")
	configFile := parser.String("c", "config", &argparse.Options{Help: "Config file path", Default: "vidlabel.json"})
	port := parser.String("p", "port", &argparse.Options{Help: "HTTP listen address", Default: ":8080"})
	hotReloadWWW := parser.Flag("", "hot", &argparse.Options{Help: "Hot reload www instead of embedding into binary", Default: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	flags := 0
	if *hotReloadWWW {
		flags |= server.ServerFlagHotReloadWWW
	}
	srv, err := server.NewServer(logger, *configFile, flags)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	srv.ListenForKillSignals()

	// Tell systemd that we're alive
	daemon.SdNotify(false, daemon.SdNotifyReady)

	if srv.HTTPSConfigured() {
		err = srv.ListenHTTPS()
	} else {
		err = srv.ListenHTTP(*port)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	<-srv.ShutdownComplete
}
