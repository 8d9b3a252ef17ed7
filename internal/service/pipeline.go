package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/godilite/insighter/internal/repository/models"
	"github.com/godilite/insighter/pkg/retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultGroupConcurrency = 2
	defaultEntryConcurrency = 4
	storeTimeout            = 30 * time.Second
)

type PipelineConfig struct {
	Model            string
	AllowedModels    []string
	GroupConcurrency int
	EntryConcurrency int
	MaxTurnLength    int
	Retry            retry.Policy
	Rubric           models.Rubric
}

// Pipeline runs gate, classification, rating and reconstruction and persists
// every intermediate table.
type Pipeline struct {
	storage       InsightRepository
	gate          *QualityGate
	classifier    *Classifier
	rater         *RatingEngine
	reconstructor *Reconstructor
	cfg           PipelineConfig
	logger        *zap.Logger
}

func NewPipeline(storage InsightRepository, o Oracle, cfg PipelineConfig, logger *zap.Logger) *Pipeline {
	if storage == nil {
		panic("storage must not be nil")
	}
	if o == nil {
		panic("oracle must not be nil")
	}
	if logger == nil {
		l, _ := zap.NewProduction()
		logger = l
	}
	if cfg.GroupConcurrency < 1 {
		cfg.GroupConcurrency = defaultGroupConcurrency
	}
	if cfg.EntryConcurrency < 1 {
		cfg.EntryConcurrency = defaultEntryConcurrency
	}
	if cfg.Rubric.Descriptions == nil {
		cfg.Rubric = models.DefaultRubric()
	}

	return &Pipeline{
		storage:       storage,
		gate:          NewQualityGate(o, cfg.Model, cfg.MaxTurnLength, cfg.Retry, logger.Named("gate")),
		classifier:    NewClassifier(o, cfg.Model, cfg.Rubric, logger.Named("classifier")),
		rater:         NewRatingEngine(o, cfg.Model, cfg.Rubric, cfg.Retry, cfg.EntryConcurrency, logger.Named("rater")),
		reconstructor: NewReconstructor(logger.Named("reconstructor")),
		cfg:           cfg,
		logger:        logger,
	}
}

// groupRun carries the state of one model group through the stages. It is
// never shared between groups.
type groupRun struct {
	group   string
	records []models.Record
	entries []models.ClassificationEntry
	ratings map[models.Dimension][]models.Aggregate
}

// Run screens conversations, then processes each allowed model group
// independently. A failing group is reported and does not stop the others.
func (p *Pipeline) Run(ctx context.Context, conversations []models.Conversation) (models.RunReport, error) {
	if len(conversations) == 0 {
		return models.RunReport{}, ErrNoRecords
	}

	decisions, err := p.screen(ctx, conversations)
	if err != nil {
		return models.RunReport{}, err
	}

	report := models.RunReport{Audit: make([]models.AuditRow, 0, len(decisions))}
	var accepted []models.Record
	for _, d := range decisions {
		report.Audit = append(report.Audit, d.Audit)
		if d.Accepted {
			accepted = append(accepted, d.Record)
			report.Accepted++
		} else {
			report.Rejected++
		}
	}

	if err := p.withStoreTimeout(ctx, func(ctx context.Context) error {
		return p.storage.SaveAudit(ctx, report.Audit)
	}); err != nil {
		return report, fmt.Errorf("%w: save audit: %v", ErrStorageFailure, err)
	}

	p.logger.Info("quality gate finished",
		zap.Int("accepted", report.Accepted),
		zap.Int("rejected", report.Rejected))

	runs := p.partition(accepted)
	report.Groups = make([]models.GroupReport, len(runs))

	var g errgroup.Group
	g.SetLimit(p.cfg.GroupConcurrency)
	for i, run := range runs {
		g.Go(func() error {
			report.Groups[i] = p.processGroup(ctx, run)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (p *Pipeline) screen(ctx context.Context, conversations []models.Conversation) ([]GateDecision, error) {
	decisions := make([]GateDecision, len(conversations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.EntryConcurrency)
	for i, conv := range conversations {
		g.Go(func() error {
			d, err := p.gate.Evaluate(gctx, conv)
			if err != nil {
				return err
			}
			decisions[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return decisions, nil
}

// partition groups records by model, keeping input order inside a group and
// sorting groups by name. Models outside the allow list are dropped.
func (p *Pipeline) partition(records []models.Record) []*groupRun {
	byGroup := make(map[string]*groupRun)
	var skipped int
	for _, rec := range records {
		if len(p.cfg.AllowedModels) > 0 && !slices.Contains(p.cfg.AllowedModels, rec.Group) {
			skipped++
			continue
		}
		run, ok := byGroup[rec.Group]
		if !ok {
			run = &groupRun{group: rec.Group}
			byGroup[rec.Group] = run
		}
		run.records = append(run.records, rec)
	}
	if skipped > 0 {
		p.logger.Info("skipped records of models outside the allow list", zap.Int("count", skipped))
	}

	runs := make([]*groupRun, 0, len(byGroup))
	for _, run := range byGroup {
		runs = append(runs, run)
	}
	slices.SortFunc(runs, func(a, b *groupRun) int {
		return cmp.Compare(a.group, b.group)
	})
	return runs
}

func (p *Pipeline) processGroup(ctx context.Context, run *groupRun) models.GroupReport {
	log := p.logger.With(zap.String("group", run.group))
	start := time.Now()

	fail := func(err error) models.GroupReport {
		log.Error("group failed", zap.Error(err))
		report := models.GroupReport{
			Group:   run.group,
			Status:  models.GroupFailed,
			Error:   err.Error(),
			Records: len(run.records),
			Entries: len(run.entries),
			Stats:   ComputeInterviewStats(run.records),
		}
		if saveErr := p.withStoreTimeout(ctx, func(ctx context.Context) error {
			return p.storage.SaveGroupReport(ctx, report)
		}); saveErr != nil {
			log.Warn("failed to persist failed group report", zap.Error(saveErr))
		}
		return report
	}

	if err := p.withStoreTimeout(ctx, func(ctx context.Context) error {
		return p.storage.SaveRecords(ctx, run.group, run.records)
	}); err != nil {
		return fail(fmt.Errorf("%w: save records: %v", ErrStorageFailure, err))
	}

	entries, err := p.classifier.Classify(ctx, run.records)
	if err != nil {
		return fail(err)
	}
	run.entries = entries

	if err := p.withStoreTimeout(ctx, func(ctx context.Context) error {
		return p.storage.SaveClassifications(ctx, run.group, entries)
	}); err != nil {
		return fail(fmt.Errorf("%w: save classifications: %v", ErrStorageFailure, err))
	}

	rows, err := p.rater.Rate(ctx, entries)
	if err != nil {
		return fail(err)
	}

	run.ratings = make(map[models.Dimension][]models.Aggregate, len(rows))
	for _, d := range models.RatedDimensions {
		list, ok := rows[d]
		if !ok {
			continue
		}
		if err := p.withStoreTimeout(ctx, func(ctx context.Context) error {
			return p.storage.SaveRatings(ctx, run.group, d, list)
		}); err != nil {
			return fail(fmt.Errorf("%w: save ratings %s: %v", ErrStorageFailure, d, err))
		}
		run.ratings[d] = aggregates(list)
	}

	report, err := p.reconstruct(ctx, run)
	if err != nil {
		return fail(err)
	}

	log.Info("group completed",
		zap.Int("records", report.Records),
		zap.Int("entries", report.Entries),
		zap.Int("discrepancies", report.Discrepancies),
		zap.Duration("elapsed", time.Since(start)))
	return report
}

// reconstruct aligns a group's frozen lists and persists record scores and
// the group report.
func (p *Pipeline) reconstruct(ctx context.Context, run *groupRun) (models.GroupReport, error) {
	res := p.reconstructor.Reconstruct(run.group, run.records, run.entries, run.ratings)

	report := models.GroupReport{
		Group:             run.group,
		Status:            models.GroupCompleted,
		Records:           len(run.records),
		Entries:           len(run.entries),
		Cursor:            res.Cursor,
		Discrepancies:     len(res.Discrepancies),
		MissingFraction:   res.MissingFraction,
		UnconsumedRatings: res.Unconsumed,
		Stats:             ComputeInterviewStats(run.records),
	}
	if len(res.Discrepancies) > 0 {
		report.DiscrepancyKinds = make(map[models.DiscrepancyKind]int)
		for _, d := range res.Discrepancies {
			report.DiscrepancyKinds[d.Kind]++
		}
	}

	if err := p.withStoreTimeout(ctx, func(ctx context.Context) error {
		if err := p.storage.SaveRecordScores(ctx, run.group, res.Scores); err != nil {
			return err
		}
		return p.storage.SaveGroupReport(ctx, report)
	}); err != nil {
		return models.GroupReport{}, fmt.Errorf("%w: save scores: %v", ErrStorageFailure, err)
	}
	return report, nil
}

// Rebuild reruns reconstruction for group from stored records, classification
// and rating tables. A missing rating table counts as zero ratings.
func (p *Pipeline) Rebuild(ctx context.Context, group string) (models.GroupReport, error) {
	dbCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	records, err := p.storage.LoadRecords(dbCtx, group)
	if err != nil {
		return models.GroupReport{}, fmt.Errorf("%w: load records: %v", ErrStorageFailure, err)
	}
	if len(records) == 0 {
		return models.GroupReport{}, fmt.Errorf("%w: %s", ErrGroupNotFound, group)
	}

	entries, err := p.storage.LoadClassifications(dbCtx, group)
	if err != nil {
		return models.GroupReport{}, fmt.Errorf("%w: load classifications: %v", ErrStorageFailure, err)
	}

	run := &groupRun{
		group:   group,
		records: records,
		entries: entries,
		ratings: make(map[models.Dimension][]models.Aggregate),
	}
	for _, d := range models.RatedDimensions {
		rows, found, err := p.storage.LoadRatings(dbCtx, group, d)
		if err != nil {
			return models.GroupReport{}, fmt.Errorf("%w: load ratings %s: %v", ErrStorageFailure, d, err)
		}
		if !found {
			p.logger.Debug("no rating table, assuming zero ratings",
				zap.String("group", group),
				zap.String("dimension", d.String()))
			continue
		}
		run.ratings[d] = aggregates(rows)
	}

	return p.reconstruct(ctx, run)
}

func (p *Pipeline) withStoreTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	dbCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	return fn(dbCtx)
}

func aggregates(rows []models.RatingRow) []models.Aggregate {
	out := make([]models.Aggregate, len(rows))
	for i, r := range rows {
		out[i] = r.Rating
	}
	return out
}
