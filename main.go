package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kariqs/amexan-storefront/controllers"
	"github.com/Kariqs/amexan-storefront/initializers"
	"github.com/Kariqs/amexan-storefront/middlewares"
	"github.com/Kariqs/amexan-storefront/routes"
	"github.com/Kariqs/amexan-storefront/services"
	"github.com/Kariqs/amexan-storefront/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := initializers.LoadEnv(); err != nil {
		panic(err)
	}
	cfg, err := initializers.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := initializers.NewLogger(cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *initializers.Config, logger *zap.Logger) error {
	ctx := context.Background()

	db, err := initializers.ConnectToDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	if err := initializers.SyncDatabase(db); err != nil {
		return err
	}

	assetOpts := []services.AssetOption{}
	if cfg.S3Bucket != "" {
		mirror, err := utils.NewS3Mirror(ctx, cfg.S3Bucket)
		if err != nil {
			logger.Warn("S3 mirror disabled", zap.Error(err))
		} else {
			assetOpts = append(assetOpts, services.WithMirror(mirror))
		}
	}
	assets, err := services.NewAssetService(afero.NewOsFs(), services.AssetConfig{
		Dir:         cfg.UploadsDir,
		Placeholder: cfg.PlaceholderImage,
		MaxBytes:    cfg.MaxUploadBytes,
	}, logger.Named("assets"), assetOpts...)
	if err != nil {
		return err
	}

	catalogOpts := []services.CatalogOption{services.WithImageRemover(assets)}
	redisClient, err := initializers.ConnectToRedis(ctx, cfg)
	if err != nil {
		logger.Warn("catalog cache disabled", zap.Error(err))
	} else if redisClient != nil {
		defer redisClient.Close()
		catalogOpts = append(catalogOpts, services.WithListCache(services.NewRedisListCache(redisClient, cfg.CatalogCacheTTL)))
	}
	catalog := services.NewCatalogService(db, logger.Named("catalog"), catalogOpts...)

	var notifiers []services.OrderNotifier
	if cfg.TelegramEnabled() {
		notifiers = append(notifiers, utils.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if cfg.MailEnabled() {
		notifiers = append(notifiers, utils.NewMailNotifier(utils.MailConfig{
			Address:  cfg.SMTPAddress,
			Host:     cfg.SMTPHost,
			From:     cfg.FromEmail,
			Password: cfg.FromEmailPassword,
			To:       cfg.OrderNotifyEmail,
		}))
	}
	orders := services.NewOrderService(db, catalog, logger.Named("orders"), notifiers...)

	auth, err := utils.NewAdminAuth(cfg.AdminPassword, cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return err
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	server := gin.New()
	server.Use(middlewares.RequestLogger(logger.Named("http")), gin.Recovery())
	server.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Admin-Password"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	requireAdmin := middlewares.RequireAdmin(auth, logger.Named("auth"))
	routes.DefaultRoutes(server)
	routes.AuthRoutes(server, &controllers.AuthController{Auth: auth, Logger: logger})
	routes.ProductRoutes(server, &controllers.ProductController{Catalog: catalog, Assets: assets, Logger: logger}, requireAdmin)
	routes.OrderRoutes(server, &controllers.OrderController{Orders: orders, Logger: logger}, requireAdmin)
	routes.UploadRoutes(server, &controllers.AssetController{Assets: assets})

	srv := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()
	logger.Info("storefront started", zap.String("addr", cfg.AppAddr), zap.String("db_driver", cfg.DBDriver))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case err := <-srvErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("storefront stopped")
	return nil
}
