// Package script implements the offline scripted dialogue fallback: static
// per-NPC content (a cycling default line sequence plus a keyword→line map)
// that answers the player whenever the dialogue service is unavailable or
// fails.
//
// Content is immutable and shareable; the per-NPC reading position lives in a
// separate [Progress] value owned by the conversation layer, so two sessions
// against the same content never interfere and a hot-reloaded [Store] swap
// does not reset anyone's cursor.
package script

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/MrWong99/ekivoice/internal/config"
)

// Script is the immutable scripted content for one NPC.
type Script struct {
	defaults []string
	keywords map[string][]string // normalized keyword → reply lines
	fuzzy    *keywordMatcher     // nil when fuzzy matching is disabled
}

// New builds a [Script] from a default line sequence and a keyword map.
// Keywords are normalized (trimmed, lower-cased); blank keywords and empty
// reply lists are dropped. fuzzy enables phonetic keyword tolerance for noisy
// ASR transcripts.
func New(defaults []string, keywords map[string][]string, fuzzy bool) *Script {
	s := &Script{
		defaults: append([]string(nil), defaults...),
		keywords: make(map[string][]string, len(keywords)),
	}
	for keyword, lines := range keywords {
		keyword = normalize(keyword)
		if keyword == "" || len(lines) == 0 {
			continue
		}
		s.keywords[keyword] = append([]string(nil), lines...)
	}
	if fuzzy && len(s.keywords) > 0 {
		s.fuzzy = newKeywordMatcher(s.keywords)
	}
	return s
}

// Progress is the mutable reading position for one NPC's script. The zero
// value starts at the first default line. Progress is owned by the
// conversation layer and is not safe for concurrent use.
type Progress struct {
	defaultIdx int
	keywordIdx map[string]int
}

// Talk returns the scripted reply for input and advances p.
//
// A normalized input that matches a keyword returns that keyword's line,
// cycling through the list when several are mapped. Otherwise the next
// default line is returned and the cursor advances, wrapping to the first
// line after the last. An empty script returns "".
func (s *Script) Talk(p *Progress, input string) string {
	normalized := normalize(input)

	if lines, key, ok := s.match(normalized); ok {
		if p.keywordIdx == nil {
			p.keywordIdx = make(map[string]int)
		}
		idx := p.keywordIdx[key]
		p.keywordIdx[key] = (idx + 1) % len(lines)
		return lines[idx]
	}

	if len(s.defaults) == 0 {
		return ""
	}
	line := s.defaults[p.defaultIdx%len(s.defaults)]
	p.defaultIdx = (p.defaultIdx + 1) % len(s.defaults)
	return line
}

// match resolves input against the keyword map: exact normalized match first,
// then the phonetic matcher when enabled.
func (s *Script) match(input string) (lines []string, key string, ok bool) {
	if input == "" {
		return nil, "", false
	}
	if lines, ok := s.keywords[input]; ok {
		return lines, input, true
	}
	if s.fuzzy != nil {
		if key, ok := s.fuzzy.match(input); ok {
			return s.keywords[key], key, true
		}
	}
	return nil, "", false
}

// normalize trims surrounding whitespace and case-folds input for keyword
// comparison.
func normalize(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

// Store holds the scripted content for all NPCs, keyed by display name.
// It supports atomic replacement on config hot-reload. All methods are safe
// for concurrent use.
type Store struct {
	mu      sync.RWMutex
	scripts map[string]*Script
	fuzzy   bool
}

// NewStore builds a [Store] from the NPC config blocks.
func NewStore(npcs []config.NPCConfig, fuzzy bool) *Store {
	st := &Store{fuzzy: fuzzy}
	st.Replace(npcs)
	return st
}

// Lookup returns the script for the named NPC.
func (st *Store) Lookup(name string) (*Script, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.scripts[name]
	return s, ok
}

// Replace swaps in new content built from npcs. Existing [Progress] values
// remain valid: cursors index modulo the new lengths.
func (st *Store) Replace(npcs []config.NPCConfig) {
	scripts := make(map[string]*Script, len(npcs))
	for _, npc := range npcs {
		keywords := make(map[string][]string, len(npc.Script.Keywords))
		for keyword, lines := range npc.Script.Keywords {
			keywords[keyword] = lines
		}
		scripts[npc.Name] = New(npc.Script.Defaults, keywords, st.fuzzy)
	}

	st.mu.Lock()
	st.scripts = scripts
	st.mu.Unlock()

	slog.Debug("scripted dialogue content loaded", "npcs", len(scripts))
}
