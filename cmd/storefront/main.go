package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LsSens/backend-ecommerce/common/database"
	"github.com/LsSens/backend-ecommerce/common/logger"
	commonredis "github.com/LsSens/backend-ecommerce/common/redis"
	"github.com/LsSens/backend-ecommerce/internal/auth"
	"github.com/LsSens/backend-ecommerce/internal/config"
	httpapi "github.com/LsSens/backend-ecommerce/internal/http"
	"github.com/LsSens/backend-ecommerce/internal/ratelimit"
	"github.com/LsSens/backend-ecommerce/internal/repository"
	"github.com/LsSens/backend-ecommerce/internal/service"
	"github.com/LsSens/backend-ecommerce/internal/storage"
	"github.com/LsSens/backend-ecommerce/internal/store"
	"github.com/LsSens/backend-ecommerce/internal/tenancy"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Multi-tenant storefront API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "optional config file (env vars take precedence)")
	root.AddCommand(newServeCmd(), newMigrateCmd(), newBootstrapCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig 读取配置并创建 logger
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.ServiceName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, log, nil
}

// repositories 五个仓库；DB 不可用时全部由 MemoryStore 提供
type repositories struct {
	companies  repository.CompaniesRepository
	users      repository.UsersRepository
	categories repository.CategoriesRepository
	products   repository.ProductsRepository
	orders     repository.OrdersRepository
}

func postgresRepositories(db *sql.DB) repositories {
	return repositories{
		companies:  repository.NewPostgresCompaniesRepository(db),
		users:      repository.NewPostgresUsersRepository(db),
		categories: repository.NewPostgresCategoriesRepository(db),
		products:   repository.NewPostgresProductsRepository(db),
		orders:     repository.NewPostgresOrdersRepository(db),
	}
}

func memoryRepositories() repositories {
	m := repository.NewMemoryStore()
	return repositories{companies: m, users: m, categories: m, products: m, orders: m}
}

// openDB 连接 Postgres 并执行迁移
func openDB(ctx context.Context, cfg *config.Config, log *zap.Logger) (*sql.DB, error) {
	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	applied, err := repository.Migrate(ctx, db, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	if len(applied) > 0 {
		log.Info("Migrations applied", zap.Strings("versions", applied))
	}
	return db, nil
}

// openKV Redis 不可用时退回进程内 KV（仅适合单实例）
func openKV(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, *redis.Client) {
	if !cfg.RedisEnabled {
		log.Info("Redis disabled, using in-memory KV")
		return store.NewMemoryKV(), nil
	}
	client, err := commonredis.Connect(ctx, &cfg.Redis)
	if err != nil {
		log.Warn("Redis enabled but unreachable, falling back to in-memory KV", zap.Error(err))
		return store.NewMemoryKV(), nil
	}
	return store.NewRedisKV(client), client
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()
			if err := cfg.Validate(); err != nil {
				log.Error("Invalid configuration", zap.Error(err))
				return err
			}
			return serve(cmd.Context(), cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *sql.DB
	repos := memoryRepositories()
	if cfg.DBEnabled {
		d, err := openDB(ctx, cfg, log)
		if err != nil {
			log.Warn("DB enabled but connection failed, falling back to in-memory repositories", zap.Error(err))
		} else {
			db = d
			repos = postgresRepositories(db)
			log.Info("DB enabled", zap.String("url", cfg.Database.GetURL(true)))
		}
	}

	kv, redisClient := openKV(ctx, cfg, log)

	blob, err := storage.NewBlob(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage driver: %w", err)
	}
	uploader := storage.NewUploader(blob, cfg.Storage.MaxImageBytes, cfg.Storage.MaxImageWidth, log)

	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	hasher := auth.NewBcryptHasher(0)
	dir := tenancy.NewDirectory(repos.companies, kv, cfg.Tenancy.CacheTTL, log)

	users := service.NewUserService(repos.users, tokens, hasher, log)
	companies := service.NewCompanyService(repos.companies, dir, uploader, log)
	products := service.NewProductService(repos.products, log)
	categories := service.NewCategoryService(repos.categories, log)
	orders := service.NewOrderService(repos.orders, repos.products, repos.users, log)
	domains := service.NewDomainService(service.NewNameserverResolver(cfg.Domains, log), cfg.Domains.ExpectedNameservers, log)

	proxies, err := ratelimit.ParseTrustedProxies(cfg.HTTP.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}

	opts := httpapi.Options{
		Tenants:        dir,
		Authenticator:  users,
		Proxies:        proxies,
		Production:     cfg.IsProduction(),
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	}
	if cfg.RateLimit.Enabled {
		opts.Limiter = ratelimit.New(kv, cfg.RateLimit.Window, cfg.RateLimit.MaxRequests, log)
	}
	router := httpapi.NewRouter(opts, log)
	router.RegisterHealthRoutes(httpapi.NewHealthHandler(cfg.Env))
	router.RegisterDomainRoutes(httpapi.NewDomainHandler(router, domains))
	router.RegisterUserRoutes(httpapi.NewUserHandler(router, users))
	router.RegisterCompanyRoutes(httpapi.NewCompanyHandler(router, companies))
	router.RegisterProductRoutes(httpapi.NewProductHandler(router, products))
	router.RegisterCategoryRoutes(httpapi.NewCategoryHandler(router, categories))
	router.RegisterOrderRoutes(httpapi.NewOrderHandler(router, orders))
	if local, ok := blob.(*storage.LocalBlob); ok {
		router.RegisterUploadRoutes(local.Dir())
	}

	srv := service.NewServer(cfg.ServiceName, cfg.HTTP.Addr, router, service.ServerOptions{
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
			log.Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown", zap.Error(err))
	}
	if redisClient != nil {
		_ = commonredis.Close(redisClient)
	}
	if db != nil {
		_ = database.Close(db)
	}
	return serveErr
}
