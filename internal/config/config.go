// Package config provides the configuration schema, loader, and file watcher
// for the Ekivoice conversation engine.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Duration wraps [time.Duration] so YAML configs can express timeouts as
// human-readable strings ("5s", "250ms").
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in Go's canonical string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped [time.Duration].
func (d Duration) Std() time.Duration { return time.Duration(d) }

// StringList accepts either a single YAML scalar or a sequence of scalars.
// Keyword responses use it so simple one-line mappings stay one line.
type StringList []string

// UnmarshalYAML decodes a scalar into a one-element list, or a sequence
// directly.
func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var one string
		if err := value.Decode(&one); err != nil {
			return err
		}
		*s = StringList{one}
		return nil
	}
	var many []string
	if err := value.Decode(&many); err != nil {
		return err
	}
	*s = StringList(many)
	return nil
}

// Config is the root configuration structure for Ekivoice.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Game      GameConfig      `yaml:"game"`
	Services  ServicesConfig  `yaml:"services"`
	Recording RecordingConfig `yaml:"recording"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Dialogue  DialogueConfig  `yaml:"dialogue"`
	NPCs      []NPCConfig     `yaml:"npcs"`
}

// GameConfig holds process-level settings.
type GameConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// DebugListenAddr is the TCP address of the optional debug listener
	// serving /metrics and /healthz (e.g., ":9090"). Empty disables it.
	DebugListenAddr string `yaml:"debug_listen_addr"`

	// PlayerID is the stable player identifier sent to the dialogue service.
	PlayerID string `yaml:"player_id"`
}

// ServicesConfig declares the three remote services and their timeouts.
type ServicesConfig struct {
	ASR       ServiceConfig   `yaml:"asr"`
	Dialogue  ServiceConfig   `yaml:"dialogue"`
	Synthesis SynthesisConfig `yaml:"synthesis"`

	// ProbeTimeout bounds one availability health check.
	ProbeTimeout Duration `yaml:"probe_timeout"`
}

// ServiceConfig is the common block shared by all remote services.
type ServiceConfig struct {
	// BaseURL is the service root (e.g., "http://localhost:8000").
	BaseURL string `yaml:"base_url"`

	// Timeout bounds one request to the service.
	Timeout Duration `yaml:"timeout"`
}

// SynthesisConfig extends [ServiceConfig] with TTS-specific settings.
type SynthesisConfig struct {
	ServiceConfig `yaml:",inline"`

	// FetchTimeout bounds the follow-up download when the service answers
	// with an audio URL instead of inline audio.
	FetchTimeout Duration `yaml:"fetch_timeout"`

	// DefaultVoice is used for speakers without a voice mapping.
	DefaultVoice string `yaml:"default_voice"`

	// JapaneseVoice is used when the reply carries Japanese original text.
	JapaneseVoice string `yaml:"japanese_voice"`
}

// RecordingConfig tunes the microphone capture state machine.
type RecordingConfig struct {
	// SampleRate is the capture rate in Hz.
	SampleRate int `yaml:"sample_rate"`

	// Channels is the capture channel count.
	Channels int `yaml:"channels"`

	// FrameSize is the number of samples read per capture frame.
	FrameSize int `yaml:"frame_size"`

	// AmplitudeThreshold is the peak amplitude below which a frame counts as
	// silence.
	AmplitudeThreshold int `yaml:"amplitude_threshold"`

	// SilenceFrames is the run of consecutive silent frames that stops a
	// recording.
	SilenceFrames int `yaml:"silence_frames"`

	// MaxDuration is the hard wall-clock ceiling for one recording.
	MaxDuration Duration `yaml:"max_duration"`
}

// PlaybackConfig tunes the audio playback subsystem.
type PlaybackConfig struct {
	// SafetyMargin is added to the clip duration when waiting for playback
	// to finish.
	SafetyMargin Duration `yaml:"safety_margin"`

	// ScratchDir overrides the directory for scratch audio files.
	// Empty means the OS temp directory.
	ScratchDir string `yaml:"scratch_dir"`
}

// DialogueConfig tunes reply handling outside the remote service itself.
type DialogueConfig struct {
	// FuzzyKeywords enables phonetic matching of scripted keywords, which
	// tolerates ASR misspellings. Off by default: exact normalized matching.
	FuzzyKeywords bool `yaml:"fuzzy_keywords"`
}

// NPCConfig describes one conversational NPC.
type NPCConfig struct {
	// Name is the NPC's in-world display name (e.g., "Hachiko").
	Name string `yaml:"name"`

	// ServiceID is the identifier the dialogue service knows this NPC by.
	// Empty means the display name is sent as-is.
	ServiceID string `yaml:"service_id"`

	// Voice is the TTS voice for this NPC. Empty falls back to the
	// synthesis default voice.
	Voice string `yaml:"voice"`

	// Script is the offline dialogue content used when the dialogue service
	// is unavailable.
	Script ScriptConfig `yaml:"script"`
}

// ScriptConfig is the static scripted-dialogue content for one NPC.
type ScriptConfig struct {
	// Defaults is the ordered line sequence cycled through when no keyword
	// matches.
	Defaults []string `yaml:"defaults"`

	// Keywords maps normalized player phrases to one or more reply lines.
	Keywords map[string]StringList `yaml:"keywords"`
}

// Default endpoint and tuning values, applied by [applyDefaults] to zero
// fields. They mirror the stock deployment: ASR on :8000, dialogue on :8002,
// synthesis on :8001.
const (
	DefaultASRBaseURL       = "http://localhost:8000"
	DefaultDialogueBaseURL  = "http://localhost:8002"
	DefaultSynthesisBaseURL = "http://localhost:8001"

	DefaultPlayerID = "player1"

	defaultASRTimeout       = 5 * time.Second
	defaultDialogueTimeout  = 10 * time.Second
	defaultSynthesisTimeout = 30 * time.Second
	defaultFetchTimeout     = 10 * time.Second
	defaultProbeTimeout     = time.Second

	defaultSampleRate         = 16000
	defaultChannels           = 1
	defaultFrameSize          = 1024
	defaultAmplitudeThreshold = 500
	defaultSilenceFrames      = 30
	defaultMaxDuration        = 5 * time.Second

	defaultSafetyMargin = 2 * time.Second

	defaultVoice         = "female1"
	defaultJapaneseVoice = "japanese1"
)

// applyDefaults fills zero-valued fields with the stock deployment values.
func applyDefaults(cfg *Config) {
	if cfg.Game.PlayerID == "" {
		cfg.Game.PlayerID = DefaultPlayerID
	}

	if cfg.Services.ASR.BaseURL == "" {
		cfg.Services.ASR.BaseURL = DefaultASRBaseURL
	}
	if cfg.Services.ASR.Timeout == 0 {
		cfg.Services.ASR.Timeout = Duration(defaultASRTimeout)
	}
	if cfg.Services.Dialogue.BaseURL == "" {
		cfg.Services.Dialogue.BaseURL = DefaultDialogueBaseURL
	}
	if cfg.Services.Dialogue.Timeout == 0 {
		cfg.Services.Dialogue.Timeout = Duration(defaultDialogueTimeout)
	}
	if cfg.Services.Synthesis.BaseURL == "" {
		cfg.Services.Synthesis.BaseURL = DefaultSynthesisBaseURL
	}
	if cfg.Services.Synthesis.Timeout == 0 {
		cfg.Services.Synthesis.Timeout = Duration(defaultSynthesisTimeout)
	}
	if cfg.Services.Synthesis.FetchTimeout == 0 {
		cfg.Services.Synthesis.FetchTimeout = Duration(defaultFetchTimeout)
	}
	if cfg.Services.Synthesis.DefaultVoice == "" {
		cfg.Services.Synthesis.DefaultVoice = defaultVoice
	}
	if cfg.Services.Synthesis.JapaneseVoice == "" {
		cfg.Services.Synthesis.JapaneseVoice = defaultJapaneseVoice
	}
	if cfg.Services.ProbeTimeout == 0 {
		cfg.Services.ProbeTimeout = Duration(defaultProbeTimeout)
	}

	if cfg.Recording.SampleRate == 0 {
		cfg.Recording.SampleRate = defaultSampleRate
	}
	if cfg.Recording.Channels == 0 {
		cfg.Recording.Channels = defaultChannels
	}
	if cfg.Recording.FrameSize == 0 {
		cfg.Recording.FrameSize = defaultFrameSize
	}
	if cfg.Recording.AmplitudeThreshold == 0 {
		cfg.Recording.AmplitudeThreshold = defaultAmplitudeThreshold
	}
	if cfg.Recording.SilenceFrames == 0 {
		cfg.Recording.SilenceFrames = defaultSilenceFrames
	}
	if cfg.Recording.MaxDuration == 0 {
		cfg.Recording.MaxDuration = Duration(defaultMaxDuration)
	}

	if cfg.Playback.SafetyMargin == 0 {
		cfg.Playback.SafetyMargin = Duration(defaultSafetyMargin)
	}
}
