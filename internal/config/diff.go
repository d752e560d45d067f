package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked: log level and the
// per-NPC content (scripted dialogue, voice, service ID). Service endpoints
// and recording parameters require a restart.
type ConfigDiff struct {
	NPCsChanged     bool      // true if any NPC script, voice, or service ID changed
	NPCChanges      []NPCDiff // per-NPC diffs
	LogLevelChanged bool
	NewLogLevel     LogLevel
}

// NPCDiff describes what changed for a single NPC between two configs.
type NPCDiff struct {
	Name             string
	ScriptChanged    bool
	VoiceChanged     bool
	ServiceIDChanged bool
	Added            bool
	Removed          bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Game.LogLevel != new.Game.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Game.LogLevel
	}

	oldNPCs := make(map[string]*NPCConfig, len(old.NPCs))
	for i := range old.NPCs {
		oldNPCs[old.NPCs[i].Name] = &old.NPCs[i]
	}
	newNPCs := make(map[string]*NPCConfig, len(new.NPCs))
	for i := range new.NPCs {
		newNPCs[new.NPCs[i].Name] = &new.NPCs[i]
	}

	// Detect modified and removed NPCs.
	for name, oldNPC := range oldNPCs {
		newNPC, exists := newNPCs[name]
		if !exists {
			d.NPCChanges = append(d.NPCChanges, NPCDiff{Name: name, Removed: true})
			d.NPCsChanged = true
			continue
		}
		nd := diffNPC(name, oldNPC, newNPC)
		if nd.ScriptChanged || nd.VoiceChanged || nd.ServiceIDChanged {
			d.NPCChanges = append(d.NPCChanges, nd)
			d.NPCsChanged = true
		}
	}

	// Detect added NPCs.
	for name := range newNPCs {
		if _, exists := oldNPCs[name]; !exists {
			d.NPCChanges = append(d.NPCChanges, NPCDiff{Name: name, Added: true})
			d.NPCsChanged = true
		}
	}

	return d
}

// diffNPC compares two NPC configs with the same name.
func diffNPC(name string, old, new *NPCConfig) NPCDiff {
	nd := NPCDiff{Name: name}

	nd.VoiceChanged = old.Voice != new.Voice
	nd.ServiceIDChanged = old.ServiceID != new.ServiceID
	nd.ScriptChanged = !scriptEqual(&old.Script, &new.Script)

	return nd
}

// scriptEqual reports whether two script blocks carry identical content.
func scriptEqual(a, b *ScriptConfig) bool {
	if len(a.Defaults) != len(b.Defaults) || len(a.Keywords) != len(b.Keywords) {
		return false
	}
	for i := range a.Defaults {
		if a.Defaults[i] != b.Defaults[i] {
			return false
		}
	}
	for keyword, lines := range a.Keywords {
		other, ok := b.Keywords[keyword]
		if !ok || len(other) != len(lines) {
			return false
		}
		for i := range lines {
			if lines[i] != other[i] {
				return false
			}
		}
	}
	return true
}
