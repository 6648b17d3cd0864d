package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"github.com/vasilisp/autopost/internal/auth"
	"github.com/vasilisp/autopost/internal/config"
	"github.com/vasilisp/autopost/internal/logger"
	"github.com/vasilisp/autopost/internal/openai"
	"github.com/vasilisp/autopost/internal/poster"
	"github.com/vasilisp/autopost/internal/store"
	"github.com/vasilisp/autopost/internal/updates"
	"github.com/vasilisp/autopost/internal/util"
	"gorm.io/gorm"
)

// App holds the long-lived collaborators shared by the HTTP server and the
// CLI commands.
type App struct {
	Config  *config.Config
	Poster  *poster.Service
	Updates *updates.Checker
	Store   *store.Store

	db  *gorm.DB
	log *logger.Logger
}

// NewApp opens the store, migrates it and wires the services behind gate.
func NewApp(ctx context.Context, cfg *config.Config, v *viper.Viper, gate auth.Gate, log *logger.Logger) (*App, error) {
	util.Assert(cfg != nil, "NewApp nil config")
	util.Assert(v != nil, "NewApp nil viper")
	util.Assert(gate != nil, "NewApp nil gate")
	log = logger.OrNop(log)

	db, err := store.Open(cfg.Store)
	if err != nil {
		return nil, err
	}

	st := store.New(db, cfg.Site.BaseURL, log)
	if err := st.Migrate(ctx); err != nil {
		return nil, err
	}

	ai := openai.NewClient(v, log)

	return &App{
		Config:  cfg,
		Poster:  poster.NewService(ai, st, gate, log),
		Updates: updates.NewChecker(v, &http.Client{}, log),
		Store:   st,
		db:      db,
		log:     log,
	}, nil
}

func (a *App) Close() {
	util.Assert(a != nil, "Close nil app")

	sqlDB, err := a.db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		a.log.Warn("closing database", "error", err)
	}
}

// Main serves the operator API until the process is interrupted.
func Main(cfg *config.Config, v *viper.Viper, log *logger.Logger) error {
	if cfg.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required to serve the API")
	}
	log = logger.OrNop(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gate := auth.NewJWTGate(cfg.Auth.Secret, log)
	app, err := NewApp(ctx, cfg, v, gate, log)
	if err != nil {
		return err
	}
	defer app.Close()

	if cfg.Logging.Mode == "production" || cfg.Logging.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	handler := NewHandler(app.Poster, app.Updates, gate, cfg.Updates.InstalledVersion, log)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           Router(handler, gate, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
