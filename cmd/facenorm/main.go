package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/esimov/facenorm"
	"github.com/esimov/facenorm/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

const HelpBanner = `
┌─┐┌─┐┌─┐┌─┐┌┐┌┌─┐┬─┐┌┬┐
├┤ ├─┤│  ├┤ ││││ │├┬┘│││
└  ┴ ┴└─┘└─┘┘└┘└─┘┴└─┴ ┴

Face detection and geometric face normalization.
    Version: %s

`

// pipeName is the file name that indicates stdin/stdout is being used.
const pipeName = "-"

// Version indicates the current build version.
var Version string

var (
	// Flags
	source       = flag.String("in", pipeName, "Source image, directory or URL")
	destination  = flag.String("out", pipeName, "Destination image or directory")
	configFile   = flag.String("config", facenorm.DefaultConfigFile, "Detector configuration file")
	mode         = flag.String("mode", string(facenorm.ModeDetect), "Operation: detect, landmarks, norm or square")
	faceWidth    = flag.Int("width", facenorm.DefaultNormSize, "Normalized face width (norm mode)")
	faceHeight   = flag.Int("height", facenorm.DefaultNormSize, "Normalized face height (norm mode)")
	squareSize   = flag.Int("size", facenorm.DefaultNormSize, "Normalized face size (square mode)")
	patchSize    = flag.Int("patch", facenorm.DefaultPatchSize, "Context border kept around the landmarks")
	numLandmarks = flag.Int("landmarks", 0, "Number of returned landmarks, 5 reduces them to the canonical points")
	showMarkers  = flag.Bool("show", false, "Mark the landmarks on the normalized face")
	report       = flag.Bool("report", false, "Write a JSON report next to every output image")
	logLevel     = flag.String("log", "", "Log level, overrides the configuration")
	workers      = flag.Int("conc", runtime.NumCPU(), "Number of files to process concurrently")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, HelpBanner, Version)
		flag.PrintDefaults()
	}
	flag.Parse()

	path := *configFile
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && path == facenorm.DefaultConfigFile {
		// Without the default file the configuration comes from the environment.
		path = ""
	}

	cfg, err := facenorm.LoadConfig(path)
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}

	logOpts := cfg.LogOptions()
	if *logLevel != "" {
		logOpts.Level = *logLevel
	}
	logger, err := utils.NewLogger(logOpts)
	if err != nil {
		logrus.Fatal(err)
	}

	models, err := facenorm.NewModels(cfg)
	if err != nil {
		logger.WithField("detector", cfg.Detector).Fatalf("couldn't load the models: %v", err)
	}
	defer models.Close()

	proc := facenorm.NewProcessor(models, logger)
	proc.Mode = facenorm.Mode(*mode)
	proc.Norm = facenorm.NormOptions{
		FaceWidth:     *faceWidth,
		FaceHeight:    *faceHeight,
		PatchSize:     *patchSize,
		NumLandmarks:  *numLandmarks,
		ShowLandmarks: *showMarkers,
	}
	proc.Square = facenorm.SquareOptions{
		Size:          *squareSize,
		PatchSize:     *patchSize,
		ShowLandmarks: *showMarkers,
	}

	op := &facenorm.Ops{
		Src:      *source,
		Dst:      *destination,
		PipeName: pipeName,
		Workers:  *workers,
		Report:   *report,
	}

	// The spinner would garble the log lines below info level.
	if term.IsTerminal(int(os.Stderr.Fd())) && logger.GetLevel() <= logrus.InfoLevel && *destination != pipeName {
		spinnerText := fmt.Sprintf("%s %s",
			utils.DecorateText("⚡ FACENORM", utils.StatusMessage),
			utils.DecorateText("is processing the images...", utils.DefaultMessage))
		op.Spinner = utils.NewSpinner(os.Stderr, spinnerText, time.Millisecond*100, true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := proc.Execute(ctx, op); err != nil {
		if op.Spinner != nil {
			op.Spinner.RestoreCursor()
		}
		models.Close()
		logger.Fatalf("%s", err)
	}
}
