package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidVoices lists the voice identifiers the stock synthesis service ships
// with. Used by [Validate] to warn about likely typos; unknown voices are
// passed through unchanged.
var ValidVoices = []string{
	"male1", "male2", "male3", "female1", "female2", "japanese1",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Game.LogLevel != "" && !cfg.Game.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("game.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Game.LogLevel))
	}

	// Service URLs
	validateBaseURL(&errs, "services.asr", cfg.Services.ASR.BaseURL)
	validateBaseURL(&errs, "services.dialogue", cfg.Services.Dialogue.BaseURL)
	validateBaseURL(&errs, "services.synthesis", cfg.Services.Synthesis.BaseURL)

	// Recording bounds
	if cfg.Recording.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("recording.sample_rate %d must be positive", cfg.Recording.SampleRate))
	}
	if cfg.Recording.Channels != 1 {
		errs = append(errs, fmt.Errorf("recording.channels %d is unsupported; capture is mono only", cfg.Recording.Channels))
	}
	if cfg.Recording.FrameSize <= 0 {
		errs = append(errs, fmt.Errorf("recording.frame_size %d must be positive", cfg.Recording.FrameSize))
	}
	if cfg.Recording.AmplitudeThreshold < 0 {
		errs = append(errs, fmt.Errorf("recording.amplitude_threshold %d must not be negative", cfg.Recording.AmplitudeThreshold))
	}
	if cfg.Recording.SilenceFrames <= 0 {
		errs = append(errs, fmt.Errorf("recording.silence_frames %d must be positive", cfg.Recording.SilenceFrames))
	}

	// Voice warnings (non-fatal)
	validateVoice(cfg.Services.Synthesis.DefaultVoice, "services.synthesis.default_voice")
	validateVoice(cfg.Services.Synthesis.JapaneseVoice, "services.synthesis.japanese_voice")

	// NPC duplicate name detection
	npcNamesSeen := make(map[string]int, len(cfg.NPCs))

	for i, npc := range cfg.NPCs {
		prefix := fmt.Sprintf("npcs[%d]", i)
		if npc.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := npcNamesSeen[npc.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of npcs[%d]", prefix, npc.Name, prev))
			}
			npcNamesSeen[npc.Name] = i
		}

		validateVoice(npc.Voice, prefix+".voice")

		for keyword, lines := range npc.Script.Keywords {
			if strings.TrimSpace(keyword) == "" {
				errs = append(errs, fmt.Errorf("%s.script.keywords contains a blank keyword", prefix))
			}
			if len(lines) == 0 {
				errs = append(errs, fmt.Errorf("%s.script.keywords[%q] has no reply lines", prefix, keyword))
			}
		}
		if len(npc.Script.Defaults) == 0 && len(npc.Script.Keywords) > 0 {
			slog.Warn("NPC has keyword replies but no default lines; unmatched input will get an empty scripted reply",
				"npc", npc.Name)
		}
	}

	return errors.Join(errs...)
}

// validateBaseURL appends an error when base is not an absolute http(s) URL.
func validateBaseURL(errs *[]error, field, base string) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		*errs = append(*errs, fmt.Errorf("%s.base_url %q is not an absolute URL", field, base))
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		*errs = append(*errs, fmt.Errorf("%s.base_url %q must use http or https", field, base))
	}
}

// validateVoice logs a warning if voice is non-empty and not in [ValidVoices].
func validateVoice(voice, field string) {
	if voice == "" {
		return
	}
	if slices.Contains(ValidVoices, voice) {
		return
	}
	slog.Warn("unknown voice name — may be a typo or a custom service voice",
		"field", field,
		"voice", voice,
		"known", ValidVoices,
	)
}
