package facecam

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/esimov/facecam/utils"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// FrameSource produces the frames of a video stream. Next returns io.EOF
// once the stream is exhausted.
type FrameSource interface {
	Next() (image.Image, error)
	Close() error
}

// FrameSink consumes the processed frames.
type FrameSink interface {
	Show(img image.Image) error
	Close() error
}

const maxFrameSize = 64 << 20

// StreamSource decodes the JPEG frames of a MJPEG byte stream.
type StreamSource struct {
	r       io.ReadCloser
	scanner *bufio.Scanner
}

// NewStreamSource reads MJPEG frames from r. Closing the source closes r.
func NewStreamSource(r io.ReadCloser) *StreamSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1<<20), maxFrameSize)
	scanner.Split(utils.SplitJpeg)

	return &StreamSource{r: r, scanner: scanner}
}

// Next decodes the next frame of the stream.
func (s *StreamSource) Next() (image.Image, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return nil, errors.Wrap(err, "could not read the frame stream")
		}
		return nil, io.EOF
	}
	img, err := jpeg.Decode(bytes.NewReader(s.scanner.Bytes()))
	if err != nil {
		return nil, errors.Wrap(err, "could not decode the frame")
	}
	return img, nil
}

// Close implements FrameSource.
func (s *StreamSource) Close() error {
	return s.r.Close()
}

// FFmpegSource reads the frames of a capture device or a video file through
// an ffmpeg subprocess emitting MJPEG on its standard output.
type FFmpegSource struct {
	*StreamSource
	cmd    *exec.Cmd
	stderr bytes.Buffer
}

// NewFFmpegSource starts ffmpeg with the provided input arguments.
func NewFFmpegSource(ctx context.Context, ffmpeg string, input []string) (*FFmpegSource, error) {
	args := append([]string{"-hide_banner", "-loglevel", "error"}, input...)
	args = append(args, "-f", "image2pipe", "-vcodec", "mjpeg", "-")

	src := &FFmpegSource{cmd: exec.CommandContext(ctx, ffmpeg, args...)}
	src.cmd.Stderr = &src.stderr

	out, err := src.cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "could not create the ffmpeg output pipe")
	}
	if err := src.cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "could not start %s", ffmpeg)
	}
	log.WithField("args", strings.Join(args, " ")).Debug("ffmpeg started")

	src.StreamSource = NewStreamSource(out)
	return src, nil
}

// OpenVideo opens the configured input video file, or the capture device
// when no input file is set.
func OpenVideo(ctx context.Context, vc VideoConfig) (*FFmpegSource, error) {
	if vc.Input != "" {
		return OpenVideoFile(ctx, vc.FFmpeg, vc.Input)
	}
	args, err := CaptureArgs(runtime.GOOS, vc)
	if err != nil {
		return nil, err
	}
	return NewFFmpegSource(ctx, vc.FFmpeg, args)
}

// OpenVideoFile decodes the frames of a video file.
func OpenVideoFile(ctx context.Context, ffmpeg, path string) (*FFmpegSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err, "could not open the video file")
	}
	return NewFFmpegSource(ctx, ffmpeg, []string{"-i", path})
}

// CaptureArgs returns the ffmpeg input arguments of the capture device on
// the given operating system.
func CaptureArgs(goos string, vc VideoConfig) ([]string, error) {
	var args []string
	switch goos {
	case "linux":
		device := vc.Device
		if device == "" {
			device = "/dev/video0"
		}
		args = []string{"-f", "v4l2"}
		args = append(args, captureSize(vc)...)
		args = append(args, "-i", device)
	case "darwin":
		device := vc.Device
		if device == "" {
			device = "0"
		}
		args = []string{"-f", "avfoundation"}
		args = append(args, captureSize(vc)...)
		args = append(args, "-i", device)
	case "windows":
		if vc.Device == "" {
			return nil, errors.New("a capture device name is required on windows")
		}
		args = []string{"-f", "dshow"}
		args = append(args, captureSize(vc)...)
		args = append(args, "-i", "video="+vc.Device)
	default:
		return nil, errors.Errorf("video capture is not supported on %s", goos)
	}
	return args, nil
}

func captureSize(vc VideoConfig) []string {
	var args []string
	if vc.FrameRate > 0 {
		args = append(args, "-framerate", fmt.Sprint(vc.FrameRate))
	}
	if vc.Width > 0 && vc.Height > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", vc.Width, vc.Height))
	}
	return args
}

// Close stops ffmpeg and releases the pipe.
func (s *FFmpegSource) Close() error {
	s.StreamSource.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	if err := s.cmd.Wait(); err != nil {
		if s.stderr.Len() > 0 {
			log.WithField("stderr", strings.TrimSpace(s.stderr.String())).Debug("ffmpeg exited")
		}
	}
	return nil
}

// MJPEGSink encodes every frame as JPEG into the underlying writer.
type MJPEGSink struct {
	w       io.WriteCloser
	Quality int
}

// NewMJPEGSink writes the frames to w. Closing the sink closes w.
func NewMJPEGSink(w io.WriteCloser) *MJPEGSink {
	return &MJPEGSink{w: w, Quality: 90}
}

// Show implements FrameSink.
func (s *MJPEGSink) Show(img image.Image) error {
	if err := jpeg.Encode(s.w, img, &jpeg.Options{Quality: s.Quality}); err != nil {
		return errors.Wrap(err, "could not write the frame")
	}
	return nil
}

// Close implements FrameSink.
func (s *MJPEGSink) Close() error {
	return s.w.Close()
}

// PlayerSink shows the frames in a player process (ffplay) reading MJPEG
// from its standard input.
type PlayerSink struct {
	*MJPEGSink
	cmd *exec.Cmd
}

// NewPlayerSink starts the player.
func NewPlayerSink(ctx context.Context, player, title string) (*PlayerSink, error) {
	args := []string{"-hide_banner", "-loglevel", "error", "-window_title", title, "-f", "mjpeg", "-i", "-"}
	cmd := exec.CommandContext(ctx, player, args...)
	in, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "could not create the player input pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "could not start %s", player)
	}
	return &PlayerSink{MJPEGSink: NewMJPEGSink(in), cmd: cmd}, nil
}

// Close closes the player input and waits for the player to exit.
func (s *PlayerSink) Close() error {
	s.MJPEGSink.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	s.cmd.Wait()
	return nil
}

// DirSink writes every frame as a numbered image into a directory.
type DirSink struct {
	Dir string
	// Ext selects the image format, jpg when empty.
	Ext string
	n   int
}

// NewDirSink creates the directory if it does not exist yet.
func NewDirSink(dir, ext string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "could not create the output directory")
	}
	if ext == "" {
		ext = ".jpg"
	}
	return &DirSink{Dir: dir, Ext: ext}, nil
}

// Show implements FrameSink.
func (s *DirSink) Show(img image.Image) error {
	path := filepath.Join(s.Dir, fmt.Sprintf("%d%s", s.n, s.Ext))
	if err := SaveImage(path, img); err != nil {
		return err
	}
	s.n++
	return nil
}

// Frames returns the number of frames written so far.
func (s *DirSink) Frames() int {
	return s.n
}

// Close implements FrameSink.
func (s *DirSink) Close() error {
	return nil
}
