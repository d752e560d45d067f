// Package bilingual implements the internal tagging convention used to flag
// NPC replies that contain Japanese text. A tagged reply has the form
//
//	[JP_ORIGINAL:<original>:JP_ORIGINAL]<optional trailing text>
//
// The marker is a pass-through flag for downstream rendering and voice
// selection, not a translation: the enclosed text is the untouched service
// reply and the trailing text, when present, is whatever followed it.
package bilingual

import (
	"strings"
	"unicode"
)

const (
	markerOpen  = "[JP_ORIGINAL:"
	markerClose = ":JP_ORIGINAL]"
)

// japaneseRanges covers the code point ranges whose presence marks a string
// as Japanese: CJK punctuation, hiragana, katakana, half/full-width forms,
// and the unified ideographs.
var japaneseRanges = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x3000, Hi: 0x303f, Stride: 1}, // CJK symbols and punctuation
		{Lo: 0x3040, Hi: 0x309f, Stride: 1}, // hiragana
		{Lo: 0x30a0, Hi: 0x30ff, Stride: 1}, // katakana
		{Lo: 0x4e00, Hi: 0x9faf, Stride: 1}, // CJK unified ideographs
		{Lo: 0xff00, Hi: 0xff9f, Stride: 1}, // half/full-width forms
	},
}

// ContainsJapanese reports whether text contains at least one Japanese code
// point.
func ContainsJapanese(text string) bool {
	for _, r := range text {
		if unicode.Is(japaneseRanges, r) {
			return true
		}
	}
	return false
}

// Wrap tags text as Japanese original-language content. The input is
// embedded verbatim so that [Extract] recovers it exactly.
func Wrap(text string) string {
	return markerOpen + text + markerClose
}

// Tagged reports whether text carries both marker literals.
func Tagged(text string) bool {
	return strings.Contains(text, markerOpen) && strings.Contains(text, markerClose)
}

// Extract splits a tagged string into the enclosed original-language text and
// the trailing remainder (whitespace-trimmed). ok is false when either marker
// literal is absent or they are out of order, in which case the input is not
// a tagged string and should be treated as plain text.
func Extract(text string) (original, remainder string, ok bool) {
	start := strings.Index(text, markerOpen)
	if start < 0 {
		return "", "", false
	}
	inner := start + len(markerOpen)
	end := strings.Index(text, markerClose)
	if end < inner {
		return "", "", false
	}
	original = text[inner:end]
	remainder = strings.TrimSpace(text[end+len(markerClose):])
	return original, remainder, true
}
