// Command pagemill-server serves the portal over HTTP: the JSON admin API,
// the public article pages and the SEO endpoints. The site configuration is
// hot-reloaded on file change.
package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pagemill/pagemill/internal/httpapi"
	"github.com/pagemill/pagemill/internal/images"
	"github.com/pagemill/pagemill/internal/llm"
	"github.com/pagemill/pagemill/pkg/pagemill"
	"github.com/pagemill/pagemill/pkg/pagemill/config"
	"github.com/pagemill/pagemill/pkg/pagemill/store/sqlite"
)

func main() {
	var (
		configPath = flag.String("config", "site.yaml", "Path to site configuration")
		dbPath     = flag.String("db", "pagemill.db", "Path to SQLite database")
		addr       = flag.String("addr", ":8080", "Listen address")
	)
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	watcher, err := config.NewWatcher(*configPath, logger)
	if err != nil {
		logger.Fatal("load config", zap.String("path", *configPath), zap.Error(err))
	}
	defer watcher.Close()

	ctx := context.Background()
	st, err := sqlite.Open(ctx, *dbPath)
	if err != nil {
		logger.Fatal("open store", zap.String("path", *dbPath), zap.Error(err))
	}
	defer st.Close()

	site := watcher.Site()
	portal := pagemill.New(pagemill.Options{
		Store: st,
		Gateway: &llm.Client{
			BaseURL: site.LLM.BaseURL,
			APIKey:  site.LLM.APIKey,
			Model:   site.LLM.Model,
		},
		Config: watcher,
		Images: &images.Client{AccessKey: site.Images.UnsplashAccessKey},
		Rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           httpapi.New(portal, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// Generation endpoints block on the model; the write timeout has to
		// outlast a full batch.
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("listening", zap.String("addr", *addr), zap.String("site", site.SiteName))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("stopped")
}
