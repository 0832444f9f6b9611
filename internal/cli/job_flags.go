package cli

import (
	"flag"
	"strings"

	"vidspeed/internal/config"
	"vidspeed/internal/model"
)

// jobFlags are shared by run and plan. Defaults are the resolved
// environment configuration, so flags always win.
type jobFlags struct {
	speed     *float64
	outputDir *string
	ffmpeg    *string
	overlay   *bool
	font      *string
	fontSize  *int
}

func bindJobFlags(fs *flag.FlagSet, cfg config.Config) *jobFlags {
	return &jobFlags{
		speed:     fs.Float64("speed", cfg.Speed, "speed factor (0.01..100); 2 = twice as fast"),
		outputDir: fs.String("output-dir", cfg.OutputDir, "directory for processed videos (created if missing)"),
		ffmpeg:    fs.String("ffmpeg", cfg.FFmpegPath, "ffmpeg executable (name on PATH or path)"),
		overlay:   fs.Bool("overlay", false, "burn an \"x <speed>\" label into the bottom-right corner"),
		font:      fs.String("font", cfg.FontPath, "font file for the overlay"),
		fontSize:  fs.Int("font-size", cfg.FontSize, "overlay font size (8..200)"),
	}
}

func (f *jobFlags) resolve(cfg config.Config) (config.Config, error) {
	cfg.Speed = *f.speed
	cfg.OutputDir = firstNonEmpty(*f.outputDir, cfg.OutputDir)
	cfg.FFmpegPath = strings.TrimSpace(*f.ffmpeg)
	cfg.FontPath = strings.TrimSpace(*f.font)
	cfg.FontSize = *f.fontSize
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (f *jobFlags) overlaySpec(cfg config.Config) *model.OverlaySpec {
	if !*f.overlay {
		return nil
	}
	return &model.OverlaySpec{FontPath: cfg.FontPath, FontSize: cfg.FontSize}
}
