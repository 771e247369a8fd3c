package facecam

import (
	"context"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/esimov/facecam/utils"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// PipeName marks the standard input as source or the standard output as destination.
const PipeName = "-"

// AnnotateResult holds the outcome of annotating a single image.
type AnnotateResult struct {
	Src string
	Dst string
	Err error
}

// Annotate runs the processor over the image at src, or over every image of
// the src directory tree, and writes the results to dst. For directories the
// tree structure is reproduced under dst. The output format follows the
// destination extension; images in formats which cannot be written are
// saved as png.
func Annotate(ctx context.Context, proc ImageProcessor, src, dst string) ([]AnnotateResult, error) {
	if src == PipeName {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, errors.New("`-` should be used with a pipe for stdin")
		}
		return []AnnotateResult{annotateStream(proc, os.Stdin, dst)}, nil
	}

	fi, err := os.Stat(src)
	if err != nil {
		return nil, errors.Wrap(err, "could not read the source")
	}
	if !fi.IsDir() {
		if dst != PipeName {
			dst = outputName(dst)
		}
		return []AnnotateResult{annotateFile(proc, src, dst)}, nil
	}
	if dst == PipeName {
		return nil, errors.New("a directory source needs a destination directory")
	}

	if err := os.MkdirAll(dst, 0755); err != nil {
		return nil, errors.Wrap(err, "could not create the destination directory")
	}

	done := make(chan struct{})
	defer close(done)

	var results []AnnotateResult
	paths, errc := walkDir(done, src, ImageExtensions)
	for path := range paths {
		if ctx.Err() != nil {
			break
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return results, err
		}
		out := outputName(filepath.Join(dst, rel))
		if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return results, errors.Wrap(err, "could not create the destination directory")
		}
		res := annotateFile(proc, path, out)
		if res.Err != nil {
			log.WithError(res.Err).WithField("file", path).Warn("could not annotate the image")
		}
		results = append(results, res)
	}
	if ctx.Err() != nil {
		return results, nil
	}
	return results, <-errc
}

func annotateFile(proc ImageProcessor, src, dst string) AnnotateResult {
	res := AnnotateResult{Src: src, Dst: dst}
	img, err := DecodeImage(src)
	if err != nil {
		res.Err = err
		return res
	}
	res.Err = writeAnnotated(proc, img, dst)
	return res
}

func annotateStream(proc ImageProcessor, r io.Reader, dst string) AnnotateResult {
	res := AnnotateResult{Src: PipeName, Dst: dst}
	img, _, err := image.Decode(r)
	if err != nil {
		res.Err = errors.Wrap(err, "could not decode the image from stdin")
		return res
	}
	res.Err = writeAnnotated(proc, imgToNRGBA(img), dst)
	return res
}

func writeAnnotated(proc ImageProcessor, img *image.NRGBA, dst string) error {
	out, err := proc.ProcessImage(img)
	if err != nil {
		return err
	}
	if dst == PipeName {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return errors.New("`-` should be used with a pipe for stdout")
		}
		return EncodeImage(os.Stdout, "", out)
	}
	return SaveImage(dst, out)
}

// outputName replaces the extensions the encoder cannot write.
func outputName(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if utils.IsValidExtension(ext, []string{".jpg", ".jpeg", ".png", ".bmp"}) {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
}

// walkDir starts a new goroutine to walk the directory tree in lexical order
// and sends the path of every supported regular file to the returned channel.
// It finishes when the done channel is closed.
func walkDir(done <-chan struct{}, src string, exts []string) (<-chan string, <-chan error) {
	pathChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		defer close(pathChan)

		errChan <- filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if !utils.IsValidExtension(strings.ToLower(filepath.Ext(d.Name())), exts) {
				return nil
			}
			select {
			case <-done:
				return errors.New("directory walk cancelled")
			case pathChan <- path:
			}
			return nil
		})
	}()
	return pathChan, errChan
}
