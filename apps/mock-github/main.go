package main

import (
	"net/http"
	"os"
	"time"

	"github.com/tilsley/dirpack/pkg/ghfake"
	"github.com/tilsley/dirpack/pkg/logging"
)

func main() {
	log := logging.New()
	s := ghfake.New()

	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		s.RequireToken(token)
		log.Info("requiring bearer token")
	}

	files := seedRepos(s)
	log.Info("seeded repos", "files", files)

	port := os.Getenv("PORT")
	if port == "" {
		port = "9090"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("mock-github starting", "port", port)
	if err := srv.ListenAndServe(); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}
