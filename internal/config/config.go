// Package config resolves run settings from environment variables, an
// optional .env file and built-in defaults. Command-line flags override
// whatever is returned here.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultFFmpeg   = "ffmpeg"
	DefaultSpeed    = 0.5
	MinSpeed        = 0.01
	MaxSpeed        = 100.0
	DefaultFontSize = 64
	MinFontSize     = 8
	MaxFontSize     = 200

	stateDirName = ".vidspeed"
)

// Config holds run settings.
type Config struct {
	FFmpegPath string
	OutputDir  string
	Speed      float64
	FontPath   string
	FontSize   int
	StateDir   string
}

// Load reads envFile (or ./.env when empty) if it exists, then resolves the
// configuration from the environment. Variables already set win over the file.
func Load(envFile string) Config {
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)
	return FromEnv()
}

// FromEnv resolves the configuration from VIDSPEED_* variables and defaults.
func FromEnv() Config {
	return Config{
		FFmpegPath: getEnv("VIDSPEED_FFMPEG", DefaultFFmpeg),
		OutputDir:  getEnv("VIDSPEED_OUTPUT_DIR", workingDir()),
		Speed:      getEnvAsFloat("VIDSPEED_SPEED", DefaultSpeed),
		FontPath:   getEnv("VIDSPEED_FONT", DefaultFontPath()),
		FontSize:   getEnvAsInt("VIDSPEED_FONT_SIZE", DefaultFontSize),
		StateDir:   getEnv("VIDSPEED_STATE_DIR", DefaultStateDir()),
	}
}

// Validate checks the ranges the tool accepts.
func (c Config) Validate() error {
	var errs []error
	if c.Speed < MinSpeed || c.Speed > MaxSpeed {
		errs = append(errs, fmt.Errorf("speed must be within %.2f..%.0f, got %v", MinSpeed, MaxSpeed, c.Speed))
	}
	if c.FontSize < MinFontSize || c.FontSize > MaxFontSize {
		errs = append(errs, fmt.Errorf("font size must be within %d..%d, got %d", MinFontSize, MaxFontSize, c.FontSize))
	}
	if strings.TrimSpace(c.FFmpegPath) == "" {
		errs = append(errs, errors.New("ffmpeg path is required"))
	}
	return errors.Join(errs...)
}

// DefaultStateDir is ~/.vidspeed, or ./.vidspeed when no home is known.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return stateDirName
	}
	return filepath.Join(home, stateDirName)
}

// DefaultFontPath returns the first well-known font present on this
// platform, or "" when none is.
func DefaultFontPath() string {
	return defaultFontFor(runtime.GOOS, fileExists)
}

func defaultFontFor(goos string, exists func(string) bool) string {
	for _, p := range fontCandidates(goos) {
		if exists(p) {
			return p
		}
	}
	return ""
}

func fontCandidates(goos string) []string {
	switch goos {
	case "windows":
		return []string{"C:/Windows/Fonts/arial.ttf"}
	case "darwin":
		return []string{"/System/Library/Fonts/Helvetica.ttc", "/Library/Fonts/Arial.ttf"}
	default:
		return []string{
			"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
			"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
		}
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func workingDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func getEnv(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
