package config

import (
	"strings"
	"testing"
	"time"
)

const validYAML = `
game:
  log_level: debug
  player_id: player1
services:
  asr:
    base_url: http://localhost:8000
    timeout: 5s
  dialogue:
    base_url: http://localhost:8002
  synthesis:
    base_url: http://localhost:8001
    timeout: 30s
    fetch_timeout: 10s
recording:
  amplitude_threshold: 500
  silence_frames: 30
  max_duration: 5s
npcs:
  - name: Hachiko
    service_id: companion_dog
    voice: male1
    script:
      defaults:
        - "Woof! I'm not an ordinary dog. I can talk!"
      keywords:
        hello: "Hey there! Nice to meet you!"
        help:
          - "You need to speak with the information booth attendant first."
          - "Then get a ticket."
`

func TestLoadFromReaderValid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}

	if cfg.Game.LogLevel != LogDebug {
		t.Errorf("LogLevel = %q, want debug", cfg.Game.LogLevel)
	}
	if got := cfg.Services.ASR.Timeout.Std(); got != 5*time.Second {
		t.Errorf("ASR timeout = %v, want 5s", got)
	}
	if len(cfg.NPCs) != 1 {
		t.Fatalf("NPCs = %d, want 1", len(cfg.NPCs))
	}

	npc := cfg.NPCs[0]
	if npc.ServiceID != "companion_dog" {
		t.Errorf("ServiceID = %q, want companion_dog", npc.ServiceID)
	}
	// Scalar keyword becomes a one-element list, sequences stay sequences.
	if got := npc.Script.Keywords["hello"]; len(got) != 1 || got[0] != "Hey there! Nice to meet you!" {
		t.Errorf("keywords[hello] = %v, want single line", got)
	}
	if got := npc.Script.Keywords["help"]; len(got) != 2 {
		t.Errorf("keywords[help] = %v, want two lines", got)
	}
}

func TestLoadFromReaderAppliesDefaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader(empty) error = %v", err)
	}

	if cfg.Services.ASR.BaseURL != DefaultASRBaseURL {
		t.Errorf("ASR base = %q, want %q", cfg.Services.ASR.BaseURL, DefaultASRBaseURL)
	}
	if cfg.Services.Dialogue.BaseURL != DefaultDialogueBaseURL {
		t.Errorf("dialogue base = %q, want %q", cfg.Services.Dialogue.BaseURL, DefaultDialogueBaseURL)
	}
	if cfg.Services.Synthesis.BaseURL != DefaultSynthesisBaseURL {
		t.Errorf("synthesis base = %q, want %q", cfg.Services.Synthesis.BaseURL, DefaultSynthesisBaseURL)
	}
	if cfg.Game.PlayerID != DefaultPlayerID {
		t.Errorf("PlayerID = %q, want %q", cfg.Game.PlayerID, DefaultPlayerID)
	}
	if cfg.Services.Synthesis.JapaneseVoice != "japanese1" {
		t.Errorf("JapaneseVoice = %q, want japanese1", cfg.Services.Synthesis.JapaneseVoice)
	}
	if cfg.Recording.SampleRate != 16000 || cfg.Recording.FrameSize != 1024 {
		t.Errorf("recording defaults = %d/%d, want 16000/1024",
			cfg.Recording.SampleRate, cfg.Recording.FrameSize)
	}
	if cfg.Recording.AmplitudeThreshold != 500 || cfg.Recording.SilenceFrames != 30 {
		t.Errorf("silence defaults = %d/%d, want 500/30",
			cfg.Recording.AmplitudeThreshold, cfg.Recording.SilenceFrames)
	}
	if got := cfg.Recording.MaxDuration.Std(); got != 5*time.Second {
		t.Errorf("MaxDuration = %v, want 5s", got)
	}
	if got := cfg.Playback.SafetyMargin.Std(); got != 2*time.Second {
		t.Errorf("SafetyMargin = %v, want 2s", got)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("game:\n  log_levle: debug\n"))
	if err == nil {
		t.Error("expected error for misspelled field, got nil")
	}
}

func TestLoadFromReaderRejectsBadDuration(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("services:\n  asr:\n    timeout: fast\n"))
	if err == nil {
		t.Error("expected error for unparseable duration, got nil")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}
	cfg.Game.LogLevel = "loud"
	cfg.Services.ASR.BaseURL = "not-a-url"
	cfg.Recording.SilenceFrames = 0
	cfg.NPCs = []NPCConfig{{Name: ""}, {Name: "Twin"}, {Name: "Twin"}}

	err = Validate(cfg)
	if err == nil {
		t.Fatal("Validate() = nil, want joined errors")
	}
	for _, want := range []string{
		"game.log_level",
		"services.asr.base_url",
		"recording.silence_frames",
		"npcs[0].name is required",
		"duplicate",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error missing %q in %q", want, err.Error())
		}
	}
}

func TestValidateRejectsStereoCapture(t *testing.T) {
	cfg, _ := LoadFromReader(strings.NewReader(""))
	cfg.Recording.Channels = 2
	if err := Validate(cfg); err == nil {
		t.Error("Validate() accepted stereo capture")
	}
}
