package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/godilite/insighter/internal/config"
	"github.com/godilite/insighter/internal/export"
	handler "github.com/godilite/insighter/internal/grpc"
	"github.com/godilite/insighter/internal/ingest"
	"github.com/godilite/insighter/internal/migrations"
	"github.com/godilite/insighter/internal/repository"
	"github.com/godilite/insighter/internal/repository/models"
	"github.com/godilite/insighter/internal/service"
	"github.com/godilite/insighter/pkg/cache"
	dbbuilder "github.com/godilite/insighter/pkg/database"
	grpcsrv "github.com/godilite/insighter/pkg/grpc/server"
	"github.com/godilite/insighter/pkg/objectstore"
	"github.com/godilite/insighter/pkg/oracle"
	"github.com/godilite/insighter/pkg/retry"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const (
	RunReportFile   = "run_report.json"
	cacheTTL        = 10 * time.Minute
	shutdownTimeout = 10 * time.Second
)

// resultCache is the cache used by the results service. A new run or rebuild
// drops every cached answer.
type resultCache interface {
	handler.Cacher
	InvalidatePrefix(ctx context.Context, prefix string) (int, error)
}

type Option func(*options)

type options struct {
	oracle   service.Oracle
	listener net.Listener
}

// WithOracle replaces the HTTP oracle client.
func WithOracle(o service.Oracle) Option {
	return func(opts *options) { opts.oracle = o }
}

// WithListener makes Serve use lis instead of GRPC_PORT.
func WithListener(lis net.Listener) Option {
	return func(opts *options) { opts.listener = lis }
}

type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	dbPool   *sql.DB
	cache    resultCache
	repo     *repository.InsightRepository
	pipeline *service.Pipeline
	scoring  *service.ScoringService
	exporter *export.Exporter
	uploader *objectstore.Uploader
	listener net.Listener
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	rubric, err := config.LoadRubric(cfg.RubricPath)
	if err != nil {
		return nil, fmt.Errorf("rubric init failed: %w", err)
	}

	dbOpts := []dbbuilder.Option{
		dbbuilder.WithDriver(cfg.DBDriver),
		dbbuilder.WithDataSource(cfg.DBPath),
		dbbuilder.WithInit(migrations.Up),
	}
	if cfg.DBDriver == "sqlite3" {
		if cfg.DBPath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
		// sqlite allows a single writer; groups write concurrently.
		dbOpts = append(dbOpts, dbbuilder.WithMaxOpenConns(1))
	}
	dbPool, err := dbbuilder.New(dbOpts...)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}
	logger.Info("Database pool initialized", zap.String("path", cfg.DBPath))

	var resCache resultCache = cache.Nop{}
	if cfg.RedisEnabled {
		c, err := cache.New(ctx,
			cache.WithAddress(cfg.RedisAddr),
			cache.WithLogger(logger),
		)
		if err != nil {
			dbPool.Close()
			return nil, fmt.Errorf("cache init failed: %w", err)
		}
		resCache = c
		logger.Info("Cache client initialized", zap.String("addr", cfg.RedisAddr))
	}

	oc := o.oracle
	if oc == nil {
		oc = oracle.New(
			oracle.WithBaseURL(cfg.OracleBaseURL),
			oracle.WithAPIKey(cfg.OracleAPIKey),
			oracle.WithTimeout(cfg.OracleTimeout),
			oracle.WithMaxConcurrent(cfg.OracleMaxConcurrent),
			oracle.WithLogger(logger),
		)
	}

	var uploader *objectstore.Uploader
	if cfg.S3Bucket != "" {
		uploader, err = objectstore.New(ctx, cfg.S3Bucket,
			objectstore.WithEndpoint(cfg.S3Endpoint),
			objectstore.WithRegion(cfg.S3Region),
			objectstore.WithCredentials(cfg.S3AccessKey, cfg.S3SecretKey),
			objectstore.WithLogger(logger),
		)
		if err != nil {
			_ = resCache.Close()
			dbPool.Close()
			return nil, fmt.Errorf("object store init failed: %w", err)
		}
		logger.Info("Object store initialized", zap.String("bucket", cfg.S3Bucket))
	}

	repo := repository.NewInsightRepository(dbPool)

	pipeline := service.NewPipeline(repo, oc, service.PipelineConfig{
		Model:            cfg.OracleModel,
		AllowedModels:    cfg.AllowedModels,
		GroupConcurrency: cfg.GroupConcurrency,
		EntryConcurrency: cfg.EntryConcurrency,
		MaxTurnLength:    cfg.GateMaxTurnLength,
		Retry: retry.Policy{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			MaxDelay:    cfg.RetryMaxDelay,
		},
		Rubric: rubric,
	}, logger)

	return &App{
		cfg:      cfg,
		logger:   logger,
		dbPool:   dbPool,
		cache:    resCache,
		repo:     repo,
		pipeline: pipeline,
		scoring:  service.NewScoringService(repo, logger),
		exporter: export.NewExporter(repo, cfg.OutputDir, logger),
		uploader: uploader,
		listener: o.listener,
	}, nil
}

// RunPipeline ingests input, runs the full pipeline and publishes the results.
func (a *App) RunPipeline(ctx context.Context, input string) (models.RunReport, error) {
	conversations, err := ingest.LoadConversations(input, a.logger)
	if err != nil {
		return models.RunReport{}, err
	}

	report, err := a.pipeline.Run(ctx, conversations)
	if err != nil {
		return report, err
	}

	auditPath, err := a.exporter.ExportAudit(ctx)
	if err != nil {
		return report, fmt.Errorf("export audit: %w", err)
	}
	paths := []string{auditPath}

	groups := make([]string, 0, len(report.Groups))
	for _, g := range report.Groups {
		groups = append(groups, g.Group)
	}
	groupPaths, err := a.exportGroups(ctx, report.Groups)
	if err != nil {
		return report, err
	}
	paths = append(paths, groupPaths...)

	reportPath, err := a.writeRunReport(report)
	if err != nil {
		return report, err
	}
	paths = append(paths, reportPath)

	if err := a.publish(ctx, groups, paths); err != nil {
		return report, err
	}

	a.logger.Info("run finished",
		zap.Int("accepted", report.Accepted),
		zap.Int("rejected", report.Rejected),
		zap.Int("groups", len(report.Groups)))
	return report, nil
}

// Rebuild reconstructs group from stored tables, or every stored group when
// group is empty, and republishes the results.
func (a *App) Rebuild(ctx context.Context, group string) ([]models.GroupReport, error) {
	groups := []string{group}
	if group == "" {
		var err error
		groups, err = a.repo.ListGroups(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", service.ErrStorageFailure, err)
		}
		if len(groups) == 0 {
			return nil, service.ErrNoRecords
		}
	}

	reports := make([]models.GroupReport, 0, len(groups))
	for _, g := range groups {
		report, err := a.pipeline.Rebuild(ctx, g)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}

	paths, err := a.exportGroups(ctx, reports)
	if err != nil {
		return reports, err
	}
	if err := a.publish(ctx, groups, paths); err != nil {
		return reports, err
	}
	return reports, nil
}

func (a *App) exportGroups(ctx context.Context, reports []models.GroupReport) ([]string, error) {
	var paths []string
	for _, r := range reports {
		if r.Status != models.GroupCompleted {
			continue
		}
		p, err := a.exporter.ExportGroup(ctx, r.Group)
		if err != nil {
			return paths, fmt.Errorf("export %s: %w", r.Group, err)
		}
		paths = append(paths, p...)
	}
	return paths, nil
}

func (a *App) writeRunReport(report models.RunReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode run report: %w", err)
	}
	if err := os.MkdirAll(a.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	p := filepath.Join(a.cfg.OutputDir, RunReportFile)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("write run report: %w", err)
	}
	return p, nil
}

// publish writes the statistics table, uploads every artifact when an object
// store is configured and drops cached query results.
func (a *App) publish(ctx context.Context, groups []string, paths []string) error {
	stats, err := a.exporter.ExportStatistics(ctx, groups)
	if err != nil {
		return fmt.Errorf("export statistics: %w", err)
	}
	paths = append(paths, stats)

	if a.uploader != nil {
		if _, err := a.uploader.UploadFiles(ctx, paths); err != nil {
			return fmt.Errorf("upload artifacts: %w", err)
		}
	}

	n, err := a.cache.InvalidatePrefix(ctx, handler.CacheKeyPrefix)
	if err != nil {
		a.logger.Warn("cache invalidation failed", zap.Error(err))
	} else if n > 0 {
		a.logger.Info("cached results invalidated", zap.Int("keys", n))
	}
	return nil
}

// Serve runs the results service until ctx is done, then shuts it down
// gracefully.
func (a *App) Serve(ctx context.Context) error {
	grpcHandlers := handler.NewGRPCHandlers(a.scoring, a.cache, a.logger, cacheTTL)

	srvOpts := []grpcsrv.Option{
		grpcsrv.WithPort(a.cfg.GRPCPort),
		grpcsrv.WithLogger(a.logger),
		grpcsrv.WithReflection(a.cfg.GRPCReflectionEnabled),
		grpcsrv.WithLogging(true),
	}
	if a.listener != nil {
		srvOpts = append(srvOpts, grpcsrv.WithListener(a.listener))
	}
	grpcServer, err := grpcsrv.New(srvOpts...)
	if err != nil {
		return fmt.Errorf("failed to create gRPC server: %w", err)
	}

	grpcServer.RegisterServiceWithHealth(handler.ServiceName, func(s *grpc.Server) {
		handler.RegisterInsightsServer(s, grpcHandlers)
	})

	a.logger.Info("application starting")
	grpcServer.Start()

	<-ctx.Done()
	a.logger.Info("application shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return grpcServer.Shutdown(shutdownCtx)
}

// Close releases the cache and database connections.
func (a *App) Close() error {
	if err := a.cache.Close(); err != nil {
		a.logger.Error("cache shutdown error", zap.Error(err))
	}
	if err := a.dbPool.Close(); err != nil {
		a.logger.Error("database shutdown error", zap.Error(err))
		return err
	}
	return nil
}
