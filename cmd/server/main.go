package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go-share-portal/internal/api"
	"go-share-portal/internal/notify"
	"go-share-portal/internal/repository"
	"go-share-portal/internal/repository/memory"
	"go-share-portal/internal/service"
	"go-share-portal/pkg/config"
	"go-share-portal/pkg/db"
	"go-share-portal/pkg/logger"
	"go-share-portal/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type repositories struct {
	users  repository.UserRepository
	shares repository.ShareRepository
	links  repository.LinkRepository
	audits repository.AuditRepository
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file; SHARE_* env vars override it")
	flag.Parse()

	// 初始化配置
	if err := config.Init(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.GlobalConfig

	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.Production); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.L.Error("Server exited with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := openRepositories(cfg.Database)
	if err != nil {
		return err
	}

	tokens := utils.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Expiration)
	storage, err := service.NewStorageService(cfg.Storage.BasePath)
	if err != nil {
		return err
	}

	notifiers, err := notify.NewNotifiers(cfg, repos.audits)
	if err != nil {
		return err
	}
	defer notifiers.Close()
	notifiers.Start(ctx)

	deps := api.Deps{
		Tokens:   tokens,
		Users:    repos.users,
		Auth:     service.NewAuthService(repos.users, tokens),
		Shares:   service.NewShareManager(repos.shares, repos.users, cfg.Share.AllowedRoots),
		Resolver: service.NewPermissionResolver(repos.shares),
		Links: service.NewLinkManager(repos.links, service.RandomTokenGenerator{Length: cfg.Share.TokenLength}, service.LinkManagerConfig{
			AllowedRoots:  cfg.Share.AllowedRoots,
			PasswordCost:  cfg.Share.PasswordCost,
			PublicBaseURL: cfg.Share.PublicBaseURL,
		}),
		Validator: service.NewLinkAccessValidator(repos.links, service.WithFileStat(storage)),
		Effects:   service.NewEffectDispatcher(notifiers.Notifiers, notifiers.Auditors),
		Hub:       notifiers.Hub,
	}

	gin.SetMode(cfg.Server.Mode)
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.NewRouter(deps),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L.Info("Starting HTTP server", zap.String("addr", cfg.Server.Addr), zap.String("mode", cfg.Server.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.L.Info("Shutting down HTTP server", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

// openRepositories memory 驱动不落盘，只适合本地试用
func openRepositories(cfg config.DatabaseConfig) (*repositories, error) {
	if cfg.Driver == "memory" {
		logger.L.Warn("Using in-memory repositories, data is lost on restart")
		return &repositories{
			users:  memory.NewUserRepository(),
			shares: memory.NewShareRepository(),
			links:  memory.NewLinkRepository(),
			audits: memory.NewAuditRepository(),
		}, nil
	}

	conn, err := db.Open(cfg)
	if err != nil {
		return nil, err
	}
	return &repositories{
		users:  repository.NewUserRepository(conn),
		shares: repository.NewShareRepository(conn),
		links:  repository.NewLinkRepository(conn),
		audits: repository.NewAuditRepository(conn),
	}, nil
}
