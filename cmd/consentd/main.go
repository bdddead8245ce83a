package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/vocdoni/consent-z-sandbox/api"
	"github.com/vocdoni/consent-z-sandbox/circuits/consenttransition"
	"github.com/vocdoni/consent-z-sandbox/config"
	"github.com/vocdoni/consent-z-sandbox/log"
	"github.com/vocdoni/consent-z-sandbox/service"
	"github.com/vocdoni/consent-z-sandbox/state"
)

func main() {
	cfg := config.New()
	log.Init(cfg.LogLevel, "stdout", nil)

	salt, err := cfg.Salt()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	database, err := metadb.New(db.TypePebble, filepath.Join(cfg.DataDir, "consentdb"))
	if err != nil {
		log.Fatalf("could not open database: %v", err)
	}
	st, err := state.New(database)
	if err != nil {
		log.Fatalf("could not open consent state: %v", err)
	}
	root, err := st.CurrentRoot()
	if err != nil {
		log.Fatalf("could not read accumulator root: %v", err)
	}
	log.Infow("consent state loaded", "size", st.Size(), "root", root.String())

	// dev flow: generate the artifacts in place when missing. A real
	// deployment would ship keys from a proper ceremony instead.
	artifacts, err := consenttransition.LoadOrSetup(cfg.ArtifactsDir)
	if err != nil {
		log.Fatalf("could not load circuit artifacts: %v", err)
	}
	verifier := service.NewGroth16Verifier(artifacts.VerifyingKey)
	svc := service.New(st, verifier, salt)

	a, err := api.New(&api.APIConfig{
		Host:                cfg.Host,
		Port:                cfg.Port,
		Service:             svc,
		State:               st,
		EnableTestEndpoints: cfg.EnableTestEndpoints,
	})
	if err != nil {
		log.Fatalf("could not create the API: %v", err)
	}
	a.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
	if err := st.Close(); err != nil {
		log.Errorw(err, "could not close consent state")
	}
}
