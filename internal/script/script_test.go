package script

import (
	"testing"

	"github.com/MrWong99/ekivoice/internal/config"
)

func hachikoScript(fuzzy bool) *Script {
	return New(
		[]string{
			"Woof! I'm not an ordinary dog. I can talk!",
			"I think you should talk to the information booth first.",
			"Trains are so exciting!",
		},
		map[string][]string{
			"hello":       {"Hey there! Nice to meet you!"},
			"who are you": {"I'm your loyal talking companion. Pretty special, right?"},
			"help": {
				"You need to speak with the information booth attendant first.",
				"Then get a ticket from the ticket booth.",
			},
		},
		fuzzy,
	)
}

func TestTalkKeywordMatch(t *testing.T) {
	s := hachikoScript(false)
	var p Progress

	if got := s.Talk(&p, "hello"); got != "Hey there! Nice to meet you!" {
		t.Errorf("Talk(hello) = %q", got)
	}
	// Keyword matching is normalized: case and surrounding space ignored.
	if got := s.Talk(&p, "  HELLO  "); got != "Hey there! Nice to meet you!" {
		t.Errorf("Talk(  HELLO  ) = %q", got)
	}
	if got := s.Talk(&p, "Who Are You"); got != "I'm your loyal talking companion. Pretty special, right?" {
		t.Errorf("Talk(Who Are You) = %q", got)
	}
}

func TestTalkKeywordListCycles(t *testing.T) {
	s := hachikoScript(false)
	var p Progress

	first := s.Talk(&p, "help")
	second := s.Talk(&p, "help")
	third := s.Talk(&p, "help")

	if first == second {
		t.Error("mapped list did not cycle between calls")
	}
	if third != first {
		t.Errorf("cycle did not wrap: third = %q, want %q", third, first)
	}
}

func TestTalkDefaultsAdvanceAndWrap(t *testing.T) {
	s := hachikoScript(false)
	var p Progress

	var got []string
	for range 4 {
		got = append(got, s.Talk(&p, "something unscripted"))
	}

	if got[0] != "Woof! I'm not an ordinary dog. I can talk!" {
		t.Errorf("first default = %q", got[0])
	}
	if got[1] == got[0] || got[2] == got[1] {
		t.Error("defaults did not advance")
	}
	if got[3] != got[0] {
		t.Errorf("defaults did not wrap: got[3] = %q, want %q", got[3], got[0])
	}
}

func TestTalkKeywordDoesNotAdvanceDefaults(t *testing.T) {
	s := hachikoScript(false)
	var p Progress

	first := s.Talk(&p, "unmatched")
	s.Talk(&p, "hello")
	second := s.Talk(&p, "unmatched")

	if second == first {
		t.Error("default cursor was reset by a keyword turn")
	}
}

func TestTalkIndependentProgress(t *testing.T) {
	s := hachikoScript(false)
	var a, b Progress

	s.Talk(&a, "x")
	s.Talk(&a, "x")

	// A fresh Progress against the same shared content starts at line one.
	if got := s.Talk(&b, "x"); got != "Woof! I'm not an ordinary dog. I can talk!" {
		t.Errorf("second Progress first line = %q", got)
	}
}

func TestTalkEmptyScript(t *testing.T) {
	s := New(nil, nil, false)
	var p Progress
	if got := s.Talk(&p, "anything"); got != "" {
		t.Errorf("Talk on empty script = %q, want empty", got)
	}
}

func TestTalkFuzzyKeyword(t *testing.T) {
	s := hachikoScript(true)
	var p Progress

	// ASR-style misspelling should still hit the keyword phonetically.
	if got := s.Talk(&p, "helo"); got != "Hey there! Nice to meet you!" {
		t.Errorf("Talk(helo) with fuzzy = %q, want keyword reply", got)
	}

	// Unrelated input must not be claimed by a keyword.
	if got := s.Talk(&p, "train schedule"); got == "Hey there! Nice to meet you!" {
		t.Error("fuzzy matching claimed an unrelated phrase")
	}
}

func TestTalkExactSemanticsWhenFuzzyDisabled(t *testing.T) {
	s := hachikoScript(false)
	var p Progress

	// Misspelling falls through to the default sequence.
	if got := s.Talk(&p, "helo"); got != "Woof! I'm not an ordinary dog. I can talk!" {
		t.Errorf("Talk(helo) without fuzzy = %q, want first default", got)
	}
}

func TestStoreLookupAndReplace(t *testing.T) {
	npcs := []config.NPCConfig{
		{
			Name: "Hachiko",
			Script: config.ScriptConfig{
				Defaults: []string{"Woof!"},
				Keywords: map[string]config.StringList{"hello": {"Hey there!"}},
			},
		},
	}
	st := NewStore(npcs, false)

	s, ok := st.Lookup("Hachiko")
	if !ok {
		t.Fatal("Lookup(Hachiko) not found")
	}
	var p Progress
	if got := s.Talk(&p, "hello"); got != "Hey there!" {
		t.Errorf("Talk(hello) = %q", got)
	}

	npcs[0].Script.Keywords["hello"] = config.StringList{"Changed!"}
	st.Replace(npcs)

	s, _ = st.Lookup("Hachiko")
	if got := s.Talk(&p, "hello"); got != "Changed!" {
		t.Errorf("after Replace, Talk(hello) = %q", got)
	}

	if _, ok := st.Lookup("Nobody"); ok {
		t.Error("Lookup(Nobody) found a script")
	}
}
