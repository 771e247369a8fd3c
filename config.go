package facecam

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/esimov/facecam/utils"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// The processing strategies supported by NewProcessor.
const (
	StrategyRecognize = "recognize"
	StrategyDetect    = "detect"
)

// Config holds every setting of the detection, recognition and training
// pipeline. Relative paths are resolved against Root.
type Config struct {
	Root     string `yaml:"root"`
	Strategy string `yaml:"strategy"`

	// Detectors are run one after the other, every entry is a separate
	// detector group with its own color.
	Detectors     []DetectorConfig `yaml:"detectors"`
	PupilCascade  string           `yaml:"pupil_cascade"`
	LandmarkDir   string           `yaml:"landmark_dir"`
	Landmarks     bool             `yaml:"landmarks"`
	Perturbations int              `yaml:"perturbations"`

	LBPH LBPHParams `yaml:"lbph"`

	// Threshold rejects matches with a confidence above it. Zero disables it.
	Threshold float64 `yaml:"threshold"`

	ModelFile   string `yaml:"model_file"`
	LabelsFile  string `yaml:"labels_file"`
	TrainingDir string `yaml:"training_dir"`
	TestDir     string `yaml:"test_dir"`

	Video VideoConfig `yaml:"video"`
}

// DetectorConfig describes a detector group: the cascade file, the color its
// faces are drawn with and the cascade settings. Settings missing from the
// configuration file keep their defaults.
type DetectorConfig struct {
	Name          string `yaml:"name"`
	Cascade       string `yaml:"cascade"`
	Color         string `yaml:"color"`
	CascadeParams `yaml:",inline"`
}

// DefaultDetectorConfig returns the frontal face detector.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Name:          "face",
		Cascade:       "resources/cascade/facefinder",
		Color:         "#00ff00",
		CascadeParams: DefaultCascadeParams(),
	}
}

// UnmarshalYAML fills the entry on top of DefaultDetectorConfig.
func (dc *DetectorConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain DetectorConfig
	d := plain(DefaultDetectorConfig())
	if err := value.Decode(&d); err != nil {
		return err
	}
	*dc = DetectorConfig(d)
	return nil
}

func (dc DetectorConfig) validate() error {
	if dc.Name == "" {
		return errors.New("detector name must not be empty")
	}
	if dc.Cascade == "" {
		return errors.Errorf("detector %q: missing cascade file", dc.Name)
	}
	if _, err := utils.HexToRGBA(dc.Color); err != nil {
		return errors.Wrapf(err, "detector %q", dc.Name)
	}
	switch {
	case dc.MinSize <= 0:
		return errors.Errorf("detector %q: min_size must be positive", dc.Name)
	case dc.MaxSize != 0 && dc.MaxSize < dc.MinSize:
		return errors.Errorf("detector %q: max_size is below min_size", dc.Name)
	case dc.ShiftFactor <= 0 || dc.ShiftFactor > 1:
		return errors.Errorf("detector %q: shift_factor must be in (0, 1]", dc.Name)
	case dc.ScaleFactor <= 1:
		return errors.Errorf("detector %q: scale_factor must be above 1", dc.Name)
	case dc.Angle < 0 || dc.Angle > 1:
		return errors.Errorf("detector %q: angle must be in [0, 1]", dc.Name)
	}
	return nil
}

// VideoConfig holds the frame capture and display settings.
type VideoConfig struct {
	FFmpeg string `yaml:"ffmpeg"`
	Player string `yaml:"player"`
	// Device is the capture device, empty for the platform's default webcam.
	Device string `yaml:"device"`
	// Input is a video file read instead of the capture device.
	Input     string `yaml:"input"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	FrameRate int    `yaml:"frame_rate"`
}

// Default returns the configuration matching the project's resource layout.
func Default() *Config {
	return &Config{
		Root:          ".",
		Strategy:      StrategyRecognize,
		Detectors:     []DetectorConfig{DefaultDetectorConfig()},
		PupilCascade:  "resources/cascade/puploc",
		LandmarkDir:   "resources/cascade/lps",
		Landmarks:     true,
		Perturbations: 63,
		LBPH:          DefaultLBPHParams(),
		ModelFile:     "resources/generated/recognitions.yml",
		LabelsFile:    "resources/generated/labels.yml",
		TrainingDir:   "resources/data/training",
		TestDir:       "resources/data/test",
		Video: VideoConfig{
			FFmpeg:    "ffmpeg",
			Player:    "ffplay",
			Width:     640,
			Height:    480,
			FrameRate: 30,
		},
	}
}

// LoadConfig returns the default configuration overlaid with the YAML file
// at path (if path is not empty) and the FACECAM_* environment variables.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "could not read the configuration file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "could not parse the configuration file %s", path)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"FACECAM_ROOT":     &c.Root,
		"FACECAM_STRATEGY": &c.Strategy,
		"FACECAM_MODEL":    &c.ModelFile,
		"FACECAM_LABELS":   &c.LabelsFile,
		"FACECAM_DEVICE":   &c.Video.Device,
		"FACECAM_INPUT":    &c.Video.Input,
		"FACECAM_FFMPEG":   &c.Video.FFmpeg,
		"FACECAM_PLAYER":   &c.Video.Player,
		"FACECAM_INDEX":    &c.LBPH.Index,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("FACECAM_THRESHOLD"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrap(err, "invalid FACECAM_THRESHOLD")
		}
		c.Threshold = t
	}
	if v := os.Getenv("FACECAM_LANDMARKS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "invalid FACECAM_LANDMARKS")
		}
		c.Landmarks = b
	}
	return nil
}

// Validate checks the configuration for values the pipeline cannot work with.
func (c *Config) Validate() error {
	switch c.Strategy {
	case StrategyRecognize, StrategyDetect:
	default:
		return errors.Errorf("unknown strategy %q, expected %q or %q", c.Strategy, StrategyRecognize, StrategyDetect)
	}
	if c.Threshold < 0 {
		return errors.New("threshold must not be negative")
	}
	if len(c.Detectors) == 0 {
		return errors.New("at least one detector is required")
	}
	names := make(map[string]bool, len(c.Detectors))
	for _, dc := range c.Detectors {
		if err := dc.validate(); err != nil {
			return err
		}
		if names[dc.Name] {
			return errors.Errorf("duplicate detector name %q", dc.Name)
		}
		names[dc.Name] = true
	}
	if err := c.LBPH.validate(); err != nil {
		return err
	}
	if _, err := NewIndex(c.LBPH.Index); err != nil {
		return err
	}
	return nil
}

// Path resolves a path against the configured root. Absolute paths are
// returned unchanged.
func (c *Config) Path(rel string) string {
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(c.Root, rel)
}

// Store returns the model store described by the configuration.
func (c *Config) Store() ModelStore {
	return ModelStore{
		ModelPath:  c.Path(c.ModelFile),
		LabelsPath: c.Path(c.LabelsFile),
	}
}
