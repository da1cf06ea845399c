// Package pipeline sequences the dataset stages for one category:
// crop, calibrate, filter, compose.
//
// Every stage is a full pass over its inputs with no resumability. The
// calibration cache is the only checkpoint that survives a failed run.
package pipeline

import (
	"context"
	"image"
	"io"
	"math/rand/v2"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ironsheep/threat-augment/internal/annotation"
	"github.com/ironsheep/threat-augment/internal/calibrate"
	"github.com/ironsheep/threat-augment/internal/chips"
	"github.com/ironsheep/threat-augment/internal/composite"
	"github.com/ironsheep/threat-augment/internal/config"
	"github.com/ironsheep/threat-augment/internal/dataset"
	"github.com/ironsheep/threat-augment/internal/imaging"
	"github.com/ironsheep/threat-augment/internal/segment"
)

// PreviewDirName holds the boxed previews inside a synthetic category
// directory.
const PreviewDirName = "preview"

// Paths locates the inputs and outputs of a run.
type Paths struct {
	ImageRoot      string
	NegativesDir   string
	AnnotationPath string
	OutputRoot     string
}

// Options tunes the filter and compose stages.
type Options struct {
	MinSize dataset.MinSize
	// Format is the composite file extension, with or without the dot.
	Format  string
	Quality int
	Preview bool
}

// Stages are the components an Orchestrator drives.
type Stages struct {
	Cropper    *chips.Cropper
	Filter     *chips.Filter
	Calibrator *calibrate.Calibrator
	Compositor *composite.Compositor
}

// Orchestrator runs the stages over one dataset tree. It is not safe for
// concurrent use.
type Orchestrator struct {
	logger *zap.SugaredLogger
	paths  Paths
	opts   Options
	stages Stages
	rng    *rand.Rand
	cache  *imaging.ImageCache
}

// Report collects the outcome of every stage of a run.
type Report struct {
	Category string
	Crop     *chips.CropReport
	Ratio    dataset.Ratio
	Filter   *chips.FilterReport
	Compose  *ComposeReport
}

// ComposeReport summarises a compose pass.
type ComposeReport struct {
	// Composites are the written composite paths, in chip order.
	Composites  []string
	Annotations []annotation.Record
	// Failures combines every per-chip failure; nil when none occurred.
	Failures error
}

// FailureCount returns the number of per-chip failures.
func (r *ComposeReport) FailureCount() int {
	return len(multierr.Errors(r.Failures))
}

// New returns an Orchestrator. rng picks the negative for each composite and
// should be the same source the stages draw from, so one seed reproduces a
// whole run.
func New(logger *zap.SugaredLogger, paths Paths, opts Options, stages Stages, rng *rand.Rand) *Orchestrator {
	if opts.Format == "" {
		opts.Format = chips.DefaultFormat
	}
	return &Orchestrator{
		logger: logger,
		paths:  paths,
		opts:   opts,
		stages: stages,
		rng:    rng,
		cache:  imaging.NewImageCache(),
	}
}

// FromConfig builds an Orchestrator and its stages from cfg.
func FromConfig(logger *zap.SugaredLogger, cfg *config.Config, rng *rand.Rand) (*Orchestrator, error) {
	seg, err := segment.New(cfg.Segmentation.Backend)
	if err != nil {
		return nil, err
	}
	placement, err := composite.NewPlacement(cfg.Composite.Placement, cfg.Composite.Offset())
	if err != nil {
		return nil, err
	}

	calibrator := calibrate.New(logger.Named("calibrate"), rng)
	calibrator.Force = cfg.Calibration.Force

	stages := Stages{
		Cropper:    chips.NewCropper(logger.Named("crop"), cfg.Composite.Quality),
		Filter:     chips.NewFilter(logger.Named("filter")),
		Calibrator: calibrator,
		Compositor: composite.New(logger.Named("compose"), seg, rng, composite.Options{
			Range:     cfg.Segmentation.Range,
			Negate:    cfg.Segmentation.Negate,
			Placement: placement,
		}),
	}
	paths := Paths{
		ImageRoot:      cfg.Paths.ImageRoot,
		NegativesDir:   cfg.Paths.NegativesDir,
		AnnotationPath: cfg.Paths.AnnotationPath,
		OutputRoot:     cfg.Paths.OutputRoot,
	}
	opts := Options{
		MinSize: cfg.Filter.MinSize(),
		Format:  cfg.Composite.Format,
		Quality: cfg.Composite.Quality,
		Preview: cfg.Composite.Preview,
	}
	return New(logger, paths, opts, stages, rng), nil
}

// Run executes crop, calibrate, filter and compose for category. Per-item
// failures are collected in the stage reports; the first stage-level failure
// aborts the run and is returned alongside the partial report.
func (o *Orchestrator) Run(ctx context.Context, category string) (*Report, error) {
	report := &Report{Category: category}
	o.logger.Infow("starting run", "category", category)

	var err error
	if report.Crop, err = o.Crop(ctx); err != nil {
		return report, err
	}
	return report, o.runCategory(ctx, report)
}

// RunAll crops once, then calibrates, filters and composes every category
// named in the annotation file, in sorted order. It stops at the first
// category-level failure and returns the reports gathered so far, the
// failing category's partial report last.
func (o *Orchestrator) RunAll(ctx context.Context) ([]*Report, error) {
	categories, err := o.Categories()
	if err != nil {
		return nil, err
	}
	o.logger.Infow("starting run", "categories", categories)

	crop, err := o.Crop(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]*Report, 0, len(categories))
	for _, category := range categories {
		report := &Report{Category: category, Crop: crop}
		reports = append(reports, report)
		if err := o.runCategory(ctx, report); err != nil {
			return reports, errors.WithMessagef(err, "category %s", category)
		}
	}
	return reports, nil
}

// Categories returns the distinct categories of the annotation file.
func (o *Orchestrator) Categories() ([]string, error) {
	idx, err := annotation.Load(o.paths.AnnotationPath)
	if err != nil {
		return nil, err
	}
	return idx.Categories(), nil
}

// runCategory fills report with the calibrate, filter and compose stages.
// The ratio calibrated before filtering is the one composites are built
// with, so a forced recalibration happens once per run.
func (o *Orchestrator) runCategory(ctx context.Context, report *Report) error {
	category := report.Category

	var err error
	if report.Ratio, err = o.Calibrate(ctx, category); err != nil {
		return err
	}
	if report.Filter, err = o.Filter(ctx, category); err != nil {
		return err
	}
	if report.Compose, err = o.compose(ctx, category, report.Ratio); err != nil {
		return err
	}

	o.logger.Infow("run complete", "category", category,
		"chips", len(report.Crop.Chips), "kept", len(report.Filter.Kept),
		"composites", len(report.Compose.Composites))
	return nil
}

// Crop cuts a chip for every annotation row, across all categories.
func (o *Orchestrator) Crop(ctx context.Context) (*chips.CropReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return o.stages.Cropper.CropDataset(o.paths.ImageRoot, o.paths.AnnotationPath, o.paths.OutputRoot)
}

// Calibrate returns the category's size ratio, from cache when present.
func (o *Orchestrator) Calibrate(ctx context.Context, category string) (dataset.Ratio, error) {
	if err := ctx.Err(); err != nil {
		return dataset.Ratio{}, err
	}
	return o.stages.Calibrator.Ratio(o.paths.OutputRoot, category, o.paths.NegativesDir)
}

// Filter removes the category's undersized chips.
func (o *Orchestrator) Filter(ctx context.Context, category string) (*chips.FilterReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return o.stages.Filter.RemoveUndersized(o.paths.OutputRoot, category, o.opts.MinSize)
}

// Compose writes one composite per remaining chip of category onto a
// randomly drawn negative, plus annotations.csv listing the object box of
// each composite. An existing calibration cache is used as-is even when the
// Calibrator is set to force recomputation; without one the ratio is
// calibrated first.
//
// A chip that cannot be loaded, composed or written is logged and skipped.
// A missing or empty negatives directory, an uncalibratable category, a
// failed annotations write and context cancellation abort the pass.
func (o *Orchestrator) Compose(ctx context.Context, category string) (*ComposeReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ratio, err := calibrate.ReadCache(dataset.CachePath(o.paths.OutputRoot, category))
	if errors.Is(err, dataset.ErrResourceNotFound) {
		ratio, err = o.Calibrate(ctx, category)
	}
	if err != nil {
		return nil, err
	}
	return o.compose(ctx, category, ratio)
}

func (o *Orchestrator) compose(ctx context.Context, category string, ratio dataset.Ratio) (*ComposeReport, error) {
	defer o.cache.Clear()

	chipDir := dataset.CategoryDir(o.paths.OutputRoot, category)
	chipNames, err := dataset.ListImages(chipDir)
	if err != nil {
		return nil, errors.WithMessagef(err, "category %s", category)
	}
	negatives, err := dataset.ListImages(o.paths.NegativesDir)
	if err != nil {
		return nil, err
	}
	if len(negatives) == 0 {
		return nil, errors.Wrapf(dataset.ErrResourceNotFound, "no negative images in %s", o.paths.NegativesDir)
	}

	outDir := dataset.SyntheticDir(o.paths.OutputRoot, category)
	report := &ComposeReport{}
	for _, name := range chipNames {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		negative := negatives[o.rng.IntN(len(negatives))]
		path, rec, err := o.composeOne(filepath.Join(chipDir, name), negative, category, ratio, outDir)
		if err != nil {
			o.logger.Warnw("skipping chip", "chip", name, "negative", negative, "error", err)
			report.Failures = multierr.Append(report.Failures, errors.WithMessagef(err, "chip %s", name))
			continue
		}
		report.Composites = append(report.Composites, path)
		report.Annotations = append(report.Annotations, rec)
	}

	annotationsPath := filepath.Join(outDir, dataset.AnnotationsFileName)
	if err := dataset.WriteFileAtomic(annotationsPath, func(w io.Writer) error {
		return annotation.Write(w, report.Annotations)
	}); err != nil {
		return report, err
	}

	o.logger.Infow("composed category", "category", category,
		"composites", len(report.Composites), "failures", report.FailureCount(),
		"negatives_decoded", o.cache.Len())
	return report, nil
}

func (o *Orchestrator) composeOne(chipPath, negative, category string, ratio dataset.Ratio, outDir string) (string, annotation.Record, error) {
	chip, err := imaging.Load(chipPath)
	if err != nil {
		return "", annotation.Record{}, errors.Wrapf(dataset.ErrIO, "load chip: %v", err)
	}
	background, err := o.cache.Load(filepath.Join(o.paths.NegativesDir, negative))
	if err != nil {
		return "", annotation.Record{}, errors.Wrapf(dataset.ErrIO, "negative %s: %v", negative, err)
	}

	res, err := o.stages.Compositor.Compose(chip, ratio, background)
	if err != nil {
		return "", annotation.Record{}, err
	}

	name := dataset.Stem(chipPath) + imaging.NormalizeExt(o.opts.Format)
	path := filepath.Join(outDir, name)
	if err := o.write(path, res.Image); err != nil {
		return "", annotation.Record{}, err
	}
	if o.opts.Preview {
		boxed := imaging.DrawBox(res.Image, res.Box, imaging.DefaultBoxColor, 2)
		if err := o.write(filepath.Join(outDir, PreviewDirName, name), boxed); err != nil {
			return "", annotation.Record{}, err
		}
	}

	o.logger.Debugw("wrote composite", "path", path, "negative", negative, "box", res.Box)
	return path, annotation.Record{ImageName: name, Category: category, Box: res.Box}, nil
}

func (o *Orchestrator) write(path string, img image.Image) error {
	return dataset.WriteFileAtomic(path, func(w io.Writer) error {
		return imaging.Encode(w, img, filepath.Ext(path), o.opts.Quality)
	})
}
