// Package main is the threat-augment command, which turns annotated X-ray
// scans into composited training images.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// defaultConfigFile is where config init writes when no path is given.
const defaultConfigFile = "threat-augment.json"

const (
	// Global flags.
	flagConfig      = "config"
	flagLogLevel    = "log-level"
	flagSeed        = "seed"
	flagImageRoot   = "image-root"
	flagNegatives   = "negatives"
	flagAnnotations = "annotations"
	flagOutput      = "output"
	flagCategory    = "category"

	// Stage flags.
	flagForce     = "force"
	flagMinHeight = "min-height"
	flagMinWidth  = "min-width"
	flagBackend   = "backend"
	flagNegate    = "negate"
	flagPlacement = "placement"
	flagFormat    = "format"
	flagPreview   = "preview"
	flagCount     = "count"
)

func main() {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintf(c.App.Writer, "threat-augment %s\n", Version)
		fmt.Fprintf(c.App.Writer, "  Build time: %s\n", BuildTime)
		fmt.Fprintf(c.App.Writer, "  Git commit: %s\n", GitCommit)
	}

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "threat-augment: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	forceFlag := &cli.BoolFlag{
		Name:  flagForce,
		Usage: "recompute the calibration ratio even when a cache exists",
	}
	composeFlags := []cli.Flag{
		forceFlag,
		&cli.StringFlag{
			Name:  flagBackend,
			Usage: "segmentation backend: native or gocv",
		},
		&cli.BoolFlag{
			Name:  flagNegate,
			Usage: "select pixels outside the color range instead of inside",
		},
		&cli.StringFlag{
			Name:  flagPlacement,
			Usage: "where chips land on the background: fixed, random or center",
		},
		&cli.StringFlag{
			Name:  flagFormat,
			Usage: "composite file format, e.g. jpg, png or webp",
		},
		&cli.BoolFlag{
			Name:  flagPreview,
			Usage: "also write each composite with its box outlined",
		},
	}
	filterFlags := []cli.Flag{
		&cli.IntFlag{
			Name:  flagMinHeight,
			Usage: "delete chips shorter than this many pixels",
		},
		&cli.IntFlag{
			Name:  flagMinWidth,
			Usage: "delete chips narrower than this many pixels",
		},
	}

	return &cli.App{
		Name:    "threat-augment",
		Usage:   "build synthetic threat-object datasets from annotated X-ray scans",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "debug, info, warn or error",
			},
			&cli.Uint64Flag{
				Name:  flagSeed,
				Usage: "seed for every random draw; 0 seeds from the clock",
			},
			&cli.StringFlag{
				Name:  flagImageRoot,
				Usage: "directory of annotated source images",
			},
			&cli.StringFlag{
				Name:  flagNegatives,
				Usage: "directory of background images",
			},
			&cli.StringFlag{
				Name:  flagAnnotations,
				Usage: "annotation CSV `FILE`",
			},
			&cli.StringFlag{
				Name:    flagOutput,
				Aliases: []string{"o"},
				Usage:   "output root for chips, caches and composites",
			},
			&cli.StringFlag{
				Name:  flagCategory,
				Usage: "object category to calibrate, filter and compose; run covers every category when unset",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "crop, calibrate, filter and compose one category",
				Flags:  append(append([]cli.Flag{}, filterFlags...), composeFlags...),
				Action: runAction,
			},
			{
				Name:   "crop",
				Usage:  "cut a chip for every annotation row",
				Action: cropAction,
			},
			{
				Name:   "calibrate",
				Usage:  "compute or read the size ratio of a category",
				Flags:  []cli.Flag{forceFlag},
				Action: calibrateAction,
			},
			{
				Name:   "filter",
				Usage:  "delete undersized chips of a category",
				Flags:  filterFlags,
				Action: filterAction,
			},
			{
				Name:   "compose",
				Usage:  "composite the chips of a category onto negatives",
				Flags:  composeFlags,
				Action: composeAction,
			},
			{
				Name:  "config",
				Usage: "manage configuration files",
				Subcommands: []*cli.Command{
					{
						Name:      "init",
						Usage:     "write the default configuration as JSON",
						ArgsUsage: "[file]",
						Flags: []cli.Flag{
							&cli.BoolFlag{
								Name:  flagForce,
								Usage: "overwrite an existing file",
							},
						},
						Action: configInitAction,
					},
				},
			},
			{
				Name:      "inspect",
				Usage:     "print the dominant colors of a chip with their HSV values",
				ArgsUsage: "<chip>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  flagCount,
						Value: 8,
						Usage: "number of colors to print",
					},
				},
				Action: inspectAction,
			},
		},
	}
}
