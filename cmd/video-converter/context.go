package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"video-converter/internal/deps"
	"video-converter/internal/logging"
	"video-converter/internal/settings"
	"video-converter/internal/startup"
)

type globalFlags struct {
	config   string
	logLevel string
	ffmpeg   string
	ffprobe  string
}

type commandContext struct {
	flags *globalFlags

	settingsOnce   sync.Once
	settings       *settings.Settings
	settingsPath   string
	settingsExists bool
	settingsErr    error

	// settingsMalformed is set when the file could not be parsed; it is
	// never overwritten in that case.
	settingsMalformed bool
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

// configPath resolves --config, then VIDEO_CONVERTER_CONFIG, then the
// default location.
func (c *commandContext) configPath() (string, error) {
	if c.flags != nil {
		if p := strings.TrimSpace(c.flags.config); p != "" {
			return settings.ExpandPath(p), nil
		}
	}
	if p := strings.TrimSpace(startup.LoadEnv().ConfigPath); p != "" {
		return settings.ExpandPath(p), nil
	}
	return settings.DefaultPath()
}

// ensureSettings loads the settings file once. A malformed file is
// reported and the defaults are used; any other read error is returned.
func (c *commandContext) ensureSettings() (*settings.Settings, error) {
	c.settingsOnce.Do(func() {
		path, err := c.configPath()
		if err != nil {
			c.settingsErr = err
			return
		}
		c.settingsPath = path

		cfg, exists, err := settings.Load(path)
		switch {
		case errors.Is(err, settings.ErrMalformed):
			logging.Warn("%v; using defaults", err)
			c.settingsMalformed = true
		case err != nil:
			c.settingsErr = fmt.Errorf("load settings: %w", err)
			return
		}
		if err := cfg.Validate(); err != nil {
			logging.Warn("Settings file %s has invalid values: %v", path, err)
		}
		c.settings = cfg
		c.settingsExists = exists
	})
	return c.settings, c.settingsErr
}

// applyLogLevel applies --log-level, falling back to the settings file.
// Without either the LOG_LEVEL/DEBUG environment level stays in effect.
func (c *commandContext) applyLogLevel(cfg *settings.Settings) error {
	name := ""
	if c.flags != nil {
		name = strings.TrimSpace(c.flags.logLevel)
	}
	if name == "" && cfg != nil && cfg.Logging.Level != "" && !envLevelSet() {
		name = cfg.Logging.Level
	}
	if name == "" {
		return nil
	}
	level, err := logging.ParseLevel(name)
	if err != nil {
		return err
	}
	logging.SetLevel(level)
	return nil
}

func envLevelSet() bool {
	return os.Getenv("LOG_LEVEL") != "" || os.Getenv("DEBUG") != ""
}

func (c *commandContext) tools() (ffmpeg, ffprobe string) {
	ffmpeg, ffprobe = "ffmpeg", "ffprobe"
	if c.flags != nil {
		if v := strings.TrimSpace(c.flags.ffmpeg); v != "" {
			ffmpeg = v
		}
		if v := strings.TrimSpace(c.flags.ffprobe); v != "" {
			ffprobe = v
		}
	}
	return ffmpeg, ffprobe
}

// requireTools fails with deps.ErrToolMissing unless both ffmpeg and
// ffprobe run, printing the install hint of each missing tool to out.
func (c *commandContext) requireTools(ctx context.Context, out io.Writer) error {
	ffmpeg, ffprobe := c.tools()
	statuses, err := deps.Require(ctx, deps.Default(ffmpeg, ffprobe))
	if err != nil {
		printHints(out, statuses)
	}
	return err
}

func printHints(out io.Writer, statuses []deps.Status) {
	for _, s := range statuses {
		if !s.OK() && s.Tool.Hint != "" {
			fmt.Fprintf(out, "%s: %s\n", s.Tool.Name, s.Tool.Hint)
		}
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
