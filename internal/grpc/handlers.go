package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/godilite/insighter/internal/repository/models"
	"github.com/godilite/insighter/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	defaultCacheDuration = 10 * time.Minute
	defaultGRPCTimeout   = 10 * time.Second
)

// CacheKeyPrefix is shared by every key the handlers write, so a new run can
// drop them all at once.
const CacheKeyPrefix = "grpc:"

type GRPCHandlers struct {
	scoring  ScoringService
	cache    Cacher
	logger   *zap.Logger
	sfGroup  singleflight.Group
	cacheTTL time.Duration
}

var _ InsightsServer = (*GRPCHandlers)(nil)

// NewGRPCHandlers initializes the gRPC handlers.
func NewGRPCHandlers(scoring ScoringService, cache Cacher, logger *zap.Logger, ttl time.Duration) *GRPCHandlers {
	if scoring == nil {
		panic("nil ScoringService provided to NewGRPCHandlers")
	}
	if cache == nil {
		panic("nil Cacher provided to NewGRPCHandlers")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = defaultCacheDuration
	}
	return &GRPCHandlers{
		scoring:  scoring,
		cache:    cache,
		logger:   logger.Named("grpc-handler"),
		cacheTTL: ttl,
	}
}

func cacheKey(method, group string) string {
	return fmt.Sprintf("%s%s:%s", CacheKeyPrefix, method, group)
}

func parseGroup(req *wrapperspb.StringValue) (string, error) {
	group := strings.TrimSpace(req.GetValue())
	if group == "" {
		return "", status.Error(codes.InvalidArgument, "group is required")
	}
	return group, nil
}

func (s *GRPCHandlers) handleError(ctx context.Context, op string, err error) error {
	switch ctx.Err() {
	case context.Canceled:
		s.logger.Warn("request canceled", zap.String("op", op))
		return status.Error(codes.Canceled, "request canceled")
	case context.DeadlineExceeded:
		s.logger.Warn("request timeout", zap.String("op", op))
		return status.Error(codes.DeadlineExceeded, "request timed out")
	}

	switch {
	case errors.Is(err, service.ErrGroupNotFound):
		s.logger.Info("group not found", zap.String("op", op))
		return status.Error(codes.NotFound, "no results stored for the given group")
	case errors.Is(err, service.ErrNoRecords):
		s.logger.Info("no results stored", zap.String("op", op))
		return status.Error(codes.NotFound, "no results stored")
	case errors.Is(err, service.ErrStorageFailure):
		s.logger.Error("storage failure", zap.String("op", op), zap.Error(err))
		return status.Error(codes.Internal, "database error")
	default:
		s.logger.Error("unexpected error", zap.String("op", op), zap.Error(err))
		return status.Errorf(codes.Internal, "%s failed: %v", op, err)
	}
}

// toValue converts v to a protobuf value through its JSON form, so the wire
// shape matches the stored JSON reports.
func toValue(v any) (*structpb.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return structpb.NewValue(generic)
}

func (s *GRPCHandlers) toStruct(op string, fields map[string]any) (*structpb.Struct, error) {
	out := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(fields))}
	for k, v := range fields {
		pv, err := toValue(v)
		if err != nil {
			s.logger.Error("encode response", zap.String("op", op), zap.Error(err))
			return nil, status.Errorf(codes.Internal, "%s failed: encode response", op)
		}
		out.Fields[k] = pv
	}
	return out, nil
}

func (s *GRPCHandlers) ListGroups(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	groups, err := FindAndCache(ctx, s.cache, &s.sfGroup, cacheKey(methodListGroups, ""), s.cacheTTL, s.logger, func(fetchCtx context.Context) ([]string, error) {
		return s.scoring.ListGroups(fetchCtx)
	})
	if err != nil {
		return nil, s.handleError(ctx, methodListGroups, err)
	}

	values := make([]any, len(groups))
	for i, g := range groups {
		values[i] = g
	}
	list, err := structpb.NewList(values)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "%s failed: encode response", methodListGroups)
	}
	return list, nil
}

func (s *GRPCHandlers) GetRecordScores(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	group, err := parseGroup(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	scores, err := FindAndCache(ctx, s.cache, &s.sfGroup, cacheKey(methodGetRecordScores, group), s.cacheTTL, s.logger, func(fetchCtx context.Context) ([]models.RecordScore, error) {
		return s.scoring.GetRecordScores(fetchCtx, group)
	})
	if err != nil {
		return nil, s.handleError(ctx, methodGetRecordScores, err)
	}

	return s.toStruct(methodGetRecordScores, map[string]any{
		"group":   group,
		"columns": models.RatedDimensions,
		"records": scores,
	})
}

func (s *GRPCHandlers) GetGroupReport(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	group, err := parseGroup(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	report, err := FindAndCache(ctx, s.cache, &s.sfGroup, cacheKey(methodGetGroupReport, group), s.cacheTTL, s.logger, func(fetchCtx context.Context) (models.GroupReport, error) {
		return s.scoring.GetGroupReport(fetchCtx, group)
	})
	if err != nil {
		return nil, s.handleError(ctx, methodGetGroupReport, err)
	}

	v, err := toValue(report)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "%s failed: encode response", methodGetGroupReport)
	}
	return v.GetStructValue(), nil
}

func (s *GRPCHandlers) GetDimensionSummary(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	group, err := parseGroup(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultGRPCTimeout)
	defer cancel()

	summary, err := FindAndCache(ctx, s.cache, &s.sfGroup, cacheKey(methodGetDimensionSummary, group), s.cacheTTL, s.logger, func(fetchCtx context.Context) ([]service.DimensionSummary, error) {
		return s.scoring.GetDimensionSummary(fetchCtx, group)
	})
	if err != nil {
		return nil, s.handleError(ctx, methodGetDimensionSummary, err)
	}

	return s.toStruct(methodGetDimensionSummary, map[string]any{
		"group":      group,
		"dimensions": summary,
	})
}
