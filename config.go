package facenorm

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/esimov/facenorm/utils"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// DefaultConfigFile is the configuration file read by the CLI when none is given.
const DefaultConfigFile = "detector.cfg"

// Config describes the models and the diagnostics of the face pipeline.
type Config struct {
	Detector  DetectorType `validate:"required,oneof=pigo opencv"`
	Cascade   string       `validate:"required"`
	Puploc    string       `validate:"required"`
	FlplocDir string       `validate:"required"`

	MinFace     int     `validate:"gte=1"`
	MaxFace     int     `validate:"gtefield=MinFace"`
	ShiftFactor float64 `validate:"gt=0,lte=1"`
	ScaleFactor float64 `validate:"gt=1"`
	IoU         float64 `validate:"gte=0,lte=1"`
	MinScore    float64
	Perturbs    int `validate:"gte=1"`

	LogLevel string `validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	LogFile  string
}

// configKey binds a configuration key and its legacy aliases to a Config field.
type configKey struct {
	names []string
	set   func(c *Config, v string) error
}

var configKeys = []configKey{
	{[]string{"FACENORM_DETECTOR", "TYPE"}, func(c *Config, v string) error {
		c.Detector = DetectorType(v)
		return nil
	}},
	{[]string{"FACENORM_CASCADE", "CASCADE"}, func(c *Config, v string) error {
		c.Cascade = v
		return nil
	}},
	{[]string{"FACENORM_PUPLOC", "INTRADETECT"}, func(c *Config, v string) error {
		c.Puploc = v
		return nil
	}},
	{[]string{"FACENORM_FLPLOC_DIR", "INTRATRACK"}, func(c *Config, v string) error {
		c.FlplocDir = v
		return nil
	}},
	{[]string{"FACENORM_MIN_FACE"}, intValue(func(c *Config) *int { return &c.MinFace })},
	{[]string{"FACENORM_MAX_FACE"}, intValue(func(c *Config) *int { return &c.MaxFace })},
	{[]string{"FACENORM_PERTURBS"}, intValue(func(c *Config) *int { return &c.Perturbs })},
	{[]string{"FACENORM_SHIFT"}, floatValue(func(c *Config) *float64 { return &c.ShiftFactor })},
	{[]string{"FACENORM_SCALE"}, floatValue(func(c *Config) *float64 { return &c.ScaleFactor })},
	{[]string{"FACENORM_IOU"}, floatValue(func(c *Config) *float64 { return &c.IoU })},
	{[]string{"FACENORM_SCORE"}, floatValue(func(c *Config) *float64 { return &c.MinScore })},
	{[]string{"FACENORM_LOG_LEVEL"}, func(c *Config, v string) error {
		c.LogLevel = v
		return nil
	}},
	{[]string{"FACENORM_LOG_FILE"}, func(c *Config, v string) error {
		c.LogFile = v
		return nil
	}},
}

func intValue(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func floatValue(field func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(c) = f
		return nil
	}
}

// DefaultConfig returns the configuration defaults. The model paths are empty.
func DefaultConfig() *Config {
	p := DefaultPigoParams()

	return &Config{
		Detector:    DetectorPigo,
		MinFace:     p.MinSize,
		MaxFace:     p.MaxSize,
		ShiftFactor: p.ShiftFactor,
		ScaleFactor: p.ScaleFactor,
		IoU:         p.IoU,
		MinScore:    p.MinScore,
		Perturbs:    63,
		LogLevel:    "info",
	}
}

// LoadConfig reads the key=value configuration file. The process environment
// overrides the file and an empty path reads the environment only. The
// FACENORM_ keys take precedence over their legacy aliases.
func LoadConfig(path string) (*Config, error) {
	values := map[string]string{}
	if path != "" {
		file, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("couldn't read the configuration file %q: %w", path, err)
		}
		values = file
	}

	lookup := func(name string) (string, bool) {
		if v, ok := os.LookupEnv(name); ok {
			return v, true
		}
		v, ok := values[name]
		return v, ok
	}

	cfg := DefaultConfig()
	for _, key := range configKeys {
		for _, name := range key.names {
			v, ok := lookup(name)
			if !ok || v == "" {
				continue
			}
			if err := key.set(cfg, v); err != nil {
				return nil, fmt.Errorf("invalid value %q for %s: %w", v, name, err)
			}
			break
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration values.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		errs := make([]error, 0, len(verrs))
		for _, fe := range verrs {
			if fe.Field() == "Detector" && fe.Tag() == "oneof" {
				errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownDetector, fe.Value()))
				continue
			}
			errs = append(errs, fmt.Errorf("invalid configuration: %s fails the %q rule", fe.Field(), fe.Tag()))
		}
		return errors.Join(errs...)
	}
	return err
}

// LogOptions returns the logger options of the configuration.
func (c *Config) LogOptions() utils.LogOptions {
	return utils.LogOptions{
		Level: c.LogLevel,
		File:  c.LogFile,
	}
}

func (c *Config) pigoParams() PigoParams {
	return PigoParams{
		MinSize:     c.MinFace,
		MaxSize:     c.MaxFace,
		ShiftFactor: c.ShiftFactor,
		ScaleFactor: c.ScaleFactor,
		IoU:         c.IoU,
		MinScore:    c.MinScore,
	}
}

func (c *Config) openCVParams() OpenCVParams {
	return OpenCVParams{
		ScaleFactor:  c.ScaleFactor,
		MinNeighbors: 2,
		MinSize:      c.MinFace,
	}
}
