package facecam

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/esimov/facecam/utils"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// VideoExtensions lists the video files converted to frames by Preprocess.
var VideoExtensions = []string{".mp4", ".mov"}

// VideoOpener opens a video file as a frame source.
type VideoOpener func(ctx context.Context, path string) (FrameSource, error)

// FFmpegOpener returns a VideoOpener decoding the videos with the ffmpeg binary.
func FFmpegOpener(ffmpeg string) VideoOpener {
	return func(ctx context.Context, path string) (FrameSource, error) {
		return OpenVideoFile(ctx, ffmpeg, path)
	}
}

// Preprocess walks the directory tree and writes every frame of the video
// files it finds as <n>.jpg next to the video. The numbering starts at zero
// and continues over the videos of the same directory. A frame which cannot
// be read ends the video. It returns the number of frames written.
func Preprocess(ctx context.Context, root string, open VideoOpener) (int, error) {
	var videos []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && utils.IsValidExtension(strings.ToLower(filepath.Ext(path)), VideoExtensions) {
			videos = append(videos, path)
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "could not walk the training directory")
	}

	var (
		counters = make(map[string]int)
		total    int
	)
	for _, video := range videos {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		dir := filepath.Dir(video)
		n, err := extractFrames(ctx, video, dir, counters[dir], open)
		counters[dir] += n
		total += n
		if err != nil {
			return total, err
		}
		log.WithFields(log.Fields{"video": video, "frames": n}).Info("video converted to frames")
	}
	return total, nil
}

func extractFrames(ctx context.Context, video, dir string, start int, open VideoOpener) (int, error) {
	src, err := open(ctx, video)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	n := 0
	for ctx.Err() == nil {
		frame, err := src.Next()
		if err != nil {
			log.WithError(err).WithField("video", video).Debug("end of video")
			break
		}
		name := filepath.Join(dir, fmt.Sprintf("%d.jpg", start+n))
		if err := SaveImage(name, frame); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
