package facecam

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Run reads the frames of the source, processes them and hands them over to
// the sink until the source is exhausted, the quit channel is closed or
// receives a value, the context is canceled or an error occurs. The source
// and the sink are closed on every exit path.
func Run(ctx context.Context, src FrameSource, sink FrameSink, proc ImageProcessor, quit <-chan struct{}) (err error) {
	defer func() {
		if cerr := src.Close(); cerr != nil {
			log.WithError(cerr).Warn("could not close the frame source")
		}
		if cerr := sink.Close(); cerr != nil {
			log.WithError(cerr).Warn("could not close the frame sink")
		}
	}()

	var (
		frames int
		start  = time.Now()
	)
	defer func() {
		log.WithFields(log.Fields{
			"frames":  frames,
			"elapsed": time.Since(start).Round(time.Millisecond),
		}).Info("video loop finished")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-quit:
			return nil
		default:
		}

		frame, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		out, err := proc.ProcessImage(imgToNRGBA(frame))
		if err != nil {
			return errors.Wrap(err, "could not process the frame")
		}
		if err := sink.Show(out); err != nil {
			return err
		}
		frames++
	}
}
