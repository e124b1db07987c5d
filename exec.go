package facenorm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/esimov/facenorm/utils"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// maxWorkers sets the maximum number of concurrently running workers.
const maxWorkers = 20

// validExtensions lists the image files picked up from a source directory.
var validExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tif", ".tiff"}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Ops describes the source and the destination of a batch run.
type Ops struct {
	Src, Dst, PipeName string
	Workers            int
	// Report writes a JSON report next to every output image.
	Report  bool
	Spinner *utils.Spinner
}

// result holds the relevant information about a processed image.
type result struct {
	path string
	err  error
}

// Execute processes a single file, an URL, a pipe or every image of a directory.
// The directory images are processed concurrently by op.Workers workers sharing
// the processor. The errors of the individual images are joined together.
func (p *Processor) Execute(ctx context.Context, op *Ops) error {
	log := p.logger()
	now := time.Now()

	if op.Spinner != nil {
		op.Spinner.Start()
		defer op.Spinner.Stop()
	}

	src := op.Src
	// Check if source path is a local image or URL.
	if utils.IsValidUrl(src) {
		f, err := utils.DownloadImage(ctx, src)
		if err != nil {
			return fmt.Errorf("failed to load the source image: %w", err)
		}
		defer os.Remove(f.Name())
		f.Close()
		src = f.Name()
	}

	var (
		fs  os.FileInfo
		err error
	)
	// Check if the source is a pipe name or a regular file.
	if src == op.PipeName {
		fs, err = os.Stdin.Stat()
	} else {
		fs, err = os.Stat(src)
	}
	if err != nil {
		return fmt.Errorf("failed to load the source image: %w", err)
	}

	switch mode := fs.Mode(); {
	case mode.IsDir():
		if err := os.MkdirAll(op.Dst, 0755); err != nil {
			return fmt.Errorf("unable to create the destination directory: %w", err)
		}
		err = p.executeDir(ctx, op, src)
	case mode.IsRegular() || mode&os.ModeNamedPipe != 0 || src == op.PipeName: // check for regular files or pipe names
		ext := strings.ToLower(filepath.Ext(op.Dst))
		if op.Dst != op.PipeName && !slices.Contains(validExtensions, ext) {
			return fmt.Errorf("%v file type not supported", ext)
		}
		err = op.process(p, src, op.Dst)
		logStatus(log, op.Src, op.Dst, err)
	default:
		return fmt.Errorf("unsupported source %q", op.Src)
	}

	log.WithField("elapsed", utils.FormatTime(time.Since(now))).Info("execution finished")
	return err
}

func (p *Processor) executeDir(ctx context.Context, op *Ops, src string) error {
	var wg sync.WaitGroup

	workers := op.Workers
	// Limit the concurrently running workers to maxWorkers.
	if workers <= 0 || workers > maxWorkers {
		workers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Process recursively the image files from the specified directory concurrently.
	ch := make(chan result)
	paths, errc := walkDir(ctx, src, validExtensions)

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			op.consumer(ctx, p, src, ch, paths)
		}()
	}

	// Close the channel after the values are consumed.
	go func() {
		defer close(ch)
		wg.Wait()
	}()

	var (
		errs   []error
		total  int
		failed int
	)
	for res := range ch {
		total++
		logStatus(p.logger(), res.path, "", res.err)
		if res.err != nil {
			failed++
			errs = append(errs, fmt.Errorf("%s: %w", res.path, res.err))
		}
	}
	if err := <-errc; err != nil {
		errs = append(errs, err)
	}

	p.logger().WithFields(logrus.Fields{
		"total":  total,
		"failed": failed,
	}).Info("directory processed")

	return errors.Join(errs...)
}

// consumer reads the path names from the paths channel and calls the processor against the source image.
// The outputs keep the layout of the images under the root directory.
func (op *Ops) consumer(
	ctx context.Context,
	p *Processor,
	root string,
	res chan<- result,
	paths <-chan string,
) {
	for src := range paths {
		dst, err := outputPath(root, op.Dst, src)
		if err == nil {
			err = op.process(p, src, dst)
		}

		select {
		case <-ctx.Done():
			return
		case res <- result{
			path: src,
			err:  err,
		}:
		}
	}
}

// outputPath mirrors the path of src relative to root under dstDir
// and creates the missing destination directories.
func outputPath(root, dstDir, src string) (string, error) {
	rel, err := filepath.Rel(root, src)
	if err != nil {
		return "", fmt.Errorf("unable to resolve the output path: %w", err)
	}
	dst := filepath.Join(dstDir, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("unable to create the destination directory: %w", err)
	}
	return dst, nil
}

// process runs the processor over a single image and writes the optional report.
func (op *Ops) process(p *Processor, in, out string) error {
	src, dst, err := op.pathToFile(in, out)
	if err != nil {
		return err
	}
	defer src.Close()

	rep, err := p.ProcessReport(in, src, dst)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// remove the generated image file in case of an error
		if out != op.PipeName {
			os.Remove(out)
		}
		return err
	}

	if op.Report && out != op.PipeName {
		return writeReport(out+".json", rep)
	}
	return nil
}

// writeReport stores the JSON report of a processed image.
func writeReport(path string, rep *Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to encode the report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("unable to write the report: %w", err)
	}
	return nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// pathToFile converts the source and destination paths to readable and writable files.
func (op *Ops) pathToFile(in, out string) (io.ReadCloser, io.WriteCloser, error) {
	var (
		src io.ReadCloser
		dst io.WriteCloser
		err error
	)
	// Check if the source is a pipe name or a regular file.
	if in == op.PipeName {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, nil, errors.New("`-` should be used with a pipe for stdin")
		}
		src = io.NopCloser(os.Stdin)
	} else {
		src, err = os.Open(in)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to open the source file: %w", err)
		}
	}

	// Check if the destination is a pipe name or a regular file.
	if out == op.PipeName {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			src.Close()
			return nil, nil, errors.New("`-` should be used with a pipe for stdout")
		}
		dst = nopWriteCloser{os.Stdout}
	} else {
		dst, err = os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			src.Close()
			return nil, nil, fmt.Errorf("unable to create the destination file: %w", err)
		}
	}
	return src, dst, nil
}

// logStatus logs the outcome of a processed image.
func logStatus(log logrus.FieldLogger, src, dst string, err error) {
	entry := log.WithField("source", src)
	if err != nil {
		var serr *StageError
		if errors.As(err, &serr) {
			entry = entry.WithField("stage", serr.Stage.String())
		}
		entry.WithField("reason", err.Error()).Error("processing the image failed")
		return
	}
	if dst != "" {
		entry = entry.WithField("output", filepath.Base(dst))
	}
	entry.Info("the image has been processed")
}

// walkDir starts a new goroutine to walk the specified directory tree
// in recursive manner and sends the path of each regular file to a new channel.
// It finishes in case the context is cancelled.
func walkDir(
	ctx context.Context,
	src string,
	srcExts []string,
) (<-chan string, <-chan error) {
	pathChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		// Close the paths channel after Walk returns.
		defer close(pathChan)

		errChan <- filepath.Walk(src, func(path string, f os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !f.Mode().IsRegular() {
				return nil
			}

			if slices.Contains(srcExts, strings.ToLower(filepath.Ext(f.Name()))) {
				select {
				case <-ctx.Done():
					return errors.New("directory walk cancelled")
				case pathChan <- path:
				}
			}
			return nil
		})
	}()
	return pathChan, errChan
}
