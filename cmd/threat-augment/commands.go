package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ironsheep/threat-augment/internal/config"
	"github.com/ironsheep/threat-augment/internal/imaging"
	"github.com/ironsheep/threat-augment/internal/logging"
	"github.com/ironsheep/threat-augment/internal/pipeline"
)

// session is what every stage command needs: the merged configuration, a
// logger and an orchestrator sharing one seeded random source.
type session struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
	orch   *pipeline.Orchestrator
}

// loadConfig merges defaults, the config file, the environment and the
// command line flags, in that order.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String(flagConfig))
	if err != nil {
		return nil, err
	}

	strs := map[string]*string{
		flagLogLevel:    &cfg.LogLevel,
		flagImageRoot:   &cfg.Paths.ImageRoot,
		flagNegatives:   &cfg.Paths.NegativesDir,
		flagAnnotations: &cfg.Paths.AnnotationPath,
		flagOutput:      &cfg.Paths.OutputRoot,
		flagCategory:    &cfg.Category,
		flagBackend:     &cfg.Segmentation.Backend,
		flagPlacement:   &cfg.Composite.Placement,
		flagFormat:      &cfg.Composite.Format,
	}
	for name, dst := range strs {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	if c.IsSet(flagSeed) {
		cfg.Seed = c.Uint64(flagSeed)
	}
	if c.IsSet(flagMinHeight) {
		cfg.Filter.MinHeight = c.Int(flagMinHeight)
	}
	if c.IsSet(flagMinWidth) {
		cfg.Filter.MinWidth = c.Int(flagMinWidth)
	}
	if c.IsSet(flagForce) {
		cfg.Calibration.Force = c.Bool(flagForce)
	}
	if c.IsSet(flagNegate) {
		cfg.Segmentation.Negate = c.Bool(flagNegate)
	}
	if c.IsSet(flagPreview) {
		cfg.Composite.Preview = c.Bool(flagPreview)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

func newSession(c *cli.Context, imageRoot, negatives, annotations bool) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidatePaths(imageRoot, negatives, annotations); err != nil {
		return nil, err
	}

	logger, err := logging.New("threat-augment", cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	logger.Debugw("starting", "version", Version, "commit", GitCommit, "seed", seed)

	orch, err := pipeline.FromConfig(logger, cfg, rand.New(rand.NewPCG(seed, seed)))
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, orch: orch}, nil
}

func (s *session) close() {
	_ = s.logger.Sync()
}

func runAction(c *cli.Context) error {
	s, err := newSession(c, true, true, true)
	if err != nil {
		return err
	}
	defer s.close()

	var reports []*pipeline.Report
	if s.cfg.Category == "" {
		reports, err = s.orch.RunAll(c.Context)
	} else {
		var report *pipeline.Report
		report, err = s.orch.Run(c.Context, s.cfg.Category)
		reports = []*pipeline.Report{report}
	}

	for i, report := range reports {
		// Every report of a multi-category run shares the crop report.
		if report.Crop != nil && i == 0 {
			printFailures(c, "crop", report.Crop.Failures)
		}
		if report.Filter != nil {
			printFailures(c, report.Category+": filter", report.Filter.Failures)
		}
		if report.Compose != nil {
			printFailures(c, report.Category+": compose", report.Compose.Failures)
		}
	}
	if err != nil {
		return err
	}

	for _, report := range reports {
		fmt.Fprintf(c.App.Writer, "%s: %d chips cropped, ratio %s, %d kept, %d removed, %d composites\n",
			report.Category, len(report.Crop.Chips), report.Ratio,
			len(report.Filter.Kept), len(report.Filter.Removed), len(report.Compose.Composites))
	}
	return nil
}

func cropAction(c *cli.Context) error {
	s, err := newSession(c, true, false, true)
	if err != nil {
		return err
	}
	defer s.close()

	report, err := s.orch.Crop(c.Context)
	if err != nil {
		return err
	}
	printFailures(c, "crop", report.Failures)
	fmt.Fprintf(c.App.Writer, "%d chips cropped, %d failures\n", len(report.Chips), report.FailureCount())
	return nil
}

func calibrateAction(c *cli.Context) error {
	s, err := newSession(c, false, true, false)
	if err != nil {
		return err
	}
	defer s.close()
	if err := s.cfg.RequireCategory(); err != nil {
		return err
	}

	ratio, err := s.orch.Calibrate(c.Context, s.cfg.Category)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s: ratio %s\n", s.cfg.Category, ratio)
	return nil
}

func filterAction(c *cli.Context) error {
	s, err := newSession(c, false, false, false)
	if err != nil {
		return err
	}
	defer s.close()
	if err := s.cfg.RequireCategory(); err != nil {
		return err
	}

	report, err := s.orch.Filter(c.Context, s.cfg.Category)
	if err != nil {
		return err
	}
	printFailures(c, "filter", report.Failures)
	fmt.Fprintf(c.App.Writer, "%s: %d kept, %d removed\n", s.cfg.Category, len(report.Kept), len(report.Removed))
	return nil
}

func composeAction(c *cli.Context) error {
	s, err := newSession(c, false, true, false)
	if err != nil {
		return err
	}
	defer s.close()
	if err := s.cfg.RequireCategory(); err != nil {
		return err
	}

	report, err := s.orch.Compose(c.Context, s.cfg.Category)
	if report != nil {
		printFailures(c, "compose", report.Failures)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s: %d composites, %d failures\n", s.cfg.Category, len(report.Composites), report.FailureCount())
	return nil
}

func inspectAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("inspect takes exactly one chip path")
	}
	path := c.Args().First()

	img, err := imaging.Load(path)
	if err != nil {
		return err
	}

	b := img.Bounds()
	fmt.Fprintf(c.App.Writer, "%s: %dx%d\n", path, b.Dx(), b.Dy())
	for _, cf := range imaging.DominantHSV(img, c.Int(flagCount)) {
		fmt.Fprintf(c.App.Writer, "  %s %6.2f%%  hsv %s\n", cf.Hex, cf.Percentage, cf.HSV)
	}
	return nil
}

func configInitAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		path = defaultConfigFile
	}
	if _, err := os.Stat(path); err == nil && !c.Bool(flagForce) {
		return errors.Errorf("%s already exists; pass --%s to overwrite", path, flagForce)
	}

	if err := config.Default().SaveToFile(path); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote default configuration to %s\n", path)
	return nil
}

func printFailures(c *cli.Context, stage string, failures error) {
	for _, err := range multierr.Errors(failures) {
		fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", stage, err)
	}
}
