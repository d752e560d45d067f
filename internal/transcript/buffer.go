// Package transcript maintains the scrollable, selectable text box that
// shows NPC replies. Raw reply text is broken into display segments
// (wrapped lines plus structural separators and spacers), tagged
// bilingual replies get a two-part layout, and a pointer position can be
// mapped back to a segment for click-and-drag selection.
//
// A [Buffer] is owned by the UI loop and is not safe for concurrent use.
package transcript

import (
	"strings"

	"github.com/MrWong99/ekivoice/internal/bilingual"
)

// MeasureFunc reports the rendered pixel width of a string in the font
// the buffer is displayed with.
type MeasureFunc func(s string) int

// Kind classifies a display segment.
type Kind int

const (
	// KindLine is a wrapped line of reply text.
	KindLine Kind = iota
	// KindHeader labels a section ("Japanese Response:", "Translation:").
	KindHeader
	// KindSeparator is a horizontal rule between sections.
	KindSeparator
	// KindSpacer is empty vertical padding.
	KindSpacer
)

// Segment is one display row of the transcript box.
type Segment struct {
	Text   string
	Kind   Kind
	Height int
}

// selectable reports whether the segment contributes to copied text.
// Headers, separators, and spacers are layout only; copying a bilingual
// reply yields the reply text without the section labels.
func (s Segment) selectable() bool {
	return s.Kind == KindLine && strings.TrimSpace(s.Text) != ""
}

const (
	headerJapanese    = "Japanese Response:"
	headerTranslation = "Translation:"

	separatorHeight = 2
	spacerHeight    = 5
	defaultPadding  = 15
)

// Buffer holds the segmented transcript text together with its scroll
// and selection state.
type Buffer struct {
	width      int
	height     int
	lineHeight int
	padding    int
	measure    MeasureFunc

	segments  []Segment
	scroll    int
	maxScroll int

	selecting bool
	selStart  int
	selEnd    int
}

// NewBuffer returns an empty buffer for a box of the given pixel size.
// lineHeight is the row height of regular text and measure reports
// string widths in the display font.
func NewBuffer(width, height, lineHeight int, measure MeasureFunc) *Buffer {
	return &Buffer{
		width:      width,
		height:     height,
		lineHeight: lineHeight,
		padding:    defaultPadding,
		measure:    measure,
		selStart:   -1,
		selEnd:     -1,
	}
}

// visibleCapacity is the number of regular rows that fit in the box.
func (b *Buffer) visibleCapacity() int {
	n := (b.height - b.padding*2) / b.lineHeight
	if n < 1 {
		return 1
	}
	return n
}

// SetText replaces the buffer content. Existing segments, scroll state
// and any selection are discarded. Tagged bilingual text is laid out as
// an original-language section followed by the translation; plain text
// is word-wrapped as-is. The view scrolls to the newest line.
func (b *Buffer) SetText(raw string) {
	b.segments = b.segments[:0]
	b.scroll = 0
	b.ClearSelection()

	if original, remainder, ok := bilingual.Extract(raw); ok {
		b.appendStructural(KindSeparator)
		b.appendLine(headerJapanese, KindHeader)
		b.appendStructural(KindSpacer)
		b.wrapRunes(strings.TrimSpace(original))
		b.appendStructural(KindSpacer)
		b.appendStructural(KindSeparator)
		b.appendStructural(KindSpacer)
		if remainder != "" {
			b.appendLine(headerTranslation, KindHeader)
			b.appendStructural(KindSpacer)
			b.wrapWords(remainder)
		}
	} else {
		b.wrapWords(raw)
	}

	b.maxScroll = max(0, len(b.segments)-b.visibleCapacity())
	b.scroll = b.maxScroll
}

func (b *Buffer) appendLine(text string, kind Kind) {
	b.segments = append(b.segments, Segment{Text: text, Kind: kind, Height: b.lineHeight})
}

func (b *Buffer) appendStructural(kind Kind) {
	h := spacerHeight
	if kind == KindSeparator {
		h = separatorHeight
	}
	b.segments = append(b.segments, Segment{Kind: kind, Height: h})
}

// contentWidth is the horizontal room left for text after padding.
func (b *Buffer) contentWidth() int {
	return b.width - b.padding*2
}

// wrapWords breaks text into lines at word boundaries. A single word
// wider than the content width is emitted on a line of its own rather
// than dropped.
func (b *Buffer) wrapWords(text string) {
	limit := b.contentWidth()
	var current string
	for _, word := range strings.Fields(text) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if b.measure(candidate) > limit && current != "" {
			b.appendLine(current, KindLine)
			current = word
			continue
		}
		current = candidate
	}
	if current != "" {
		b.appendLine(current, KindLine)
	}
}

// wrapRunes breaks text rune by rune, for scripts written without
// spaces.
func (b *Buffer) wrapRunes(text string) {
	limit := b.contentWidth()
	var current string
	for _, r := range text {
		candidate := current + string(r)
		if b.measure(candidate) > limit && current != "" {
			b.appendLine(current, KindLine)
			current = string(r)
			continue
		}
		current = candidate
	}
	if current != "" {
		b.appendLine(current, KindLine)
	}
}

// ---- scrolling ----

// Scroll returns the index of the topmost visible segment.
func (b *Buffer) Scroll() int { return b.scroll }

// MaxScroll returns the largest valid scroll position.
func (b *Buffer) MaxScroll() int { return b.maxScroll }

// ScrollUp moves the view up one segment.
func (b *Buffer) ScrollUp() { b.scrollBy(-1) }

// ScrollDown moves the view down one segment.
func (b *Buffer) ScrollDown() { b.scrollBy(1) }

// PageUp moves the view up one full page.
func (b *Buffer) PageUp() { b.scrollBy(-b.visibleCapacity()) }

// PageDown moves the view down one full page.
func (b *Buffer) PageDown() { b.scrollBy(b.visibleCapacity()) }

// ScrollHome jumps to the top of the transcript.
func (b *Buffer) ScrollHome() { b.scroll = 0 }

// ScrollEnd jumps to the newest line.
func (b *Buffer) ScrollEnd() { b.scroll = b.maxScroll }

func (b *Buffer) scrollBy(delta int) {
	b.scroll = min(b.maxScroll, max(0, b.scroll+delta))
}

// Visible returns the segments currently in view, topmost first.
func (b *Buffer) Visible() []Segment {
	end := min(len(b.segments), b.scroll+b.visibleCapacity())
	return b.segments[b.scroll:end]
}

// Segments returns all segments of the current content.
func (b *Buffer) Segments() []Segment { return b.segments }

// ---- selection ----

// segmentAt maps a pointer y offset (relative to the box top) to the
// index of the segment under it by walking the visible rows and
// accumulating their heights. Positions above the first visible row
// clamp to it, positions below the last clamp to the last.
func (b *Buffer) segmentAt(y int) int {
	if len(b.segments) == 0 {
		return -1
	}
	rel := y - b.padding
	if rel < 0 {
		return b.scroll
	}
	acc := 0
	for i := b.scroll; i < len(b.segments); i++ {
		acc += b.segments[i].Height
		if rel < acc {
			return i
		}
	}
	return len(b.segments) - 1
}

// StartSelection begins a click-and-drag selection at the given pointer
// position relative to the box origin.
func (b *Buffer) StartSelection(x, y int) {
	idx := b.segmentAt(y)
	if idx < 0 {
		return
	}
	b.selecting = true
	b.selStart = idx
	b.selEnd = idx
}

// UpdateSelection extends an active selection to the given pointer
// position. It is a no-op when no selection is active.
func (b *Buffer) UpdateSelection(x, y int) {
	if !b.selecting {
		return
	}
	if idx := b.segmentAt(y); idx >= 0 {
		b.selEnd = idx
	}
}

// EndSelection finishes the drag, keeping the selected range for
// copying and highlighting.
func (b *Buffer) EndSelection(x, y int) {
	if !b.selecting {
		return
	}
	if idx := b.segmentAt(y); idx >= 0 {
		b.selEnd = idx
	}
	b.selecting = false
}

// ClearSelection drops any selection.
func (b *Buffer) ClearSelection() {
	b.selecting = false
	b.selStart = -1
	b.selEnd = -1
}

// Selected reports whether the segment at index i is inside the
// current selection range. Used by the renderer for highlighting.
func (b *Buffer) Selected(i int) bool {
	if b.selStart < 0 || b.selEnd < 0 {
		return false
	}
	lo, hi := min(b.selStart, b.selEnd), max(b.selStart, b.selEnd)
	return lo <= i && i <= hi
}

// SelectedText returns the text of the selected range with one line per
// segment. Headers, separators, and spacers are skipped; a drag that
// covers only structural rows yields an empty string.
func (b *Buffer) SelectedText() string {
	if b.selStart < 0 || b.selEnd < 0 {
		return ""
	}
	lo, hi := min(b.selStart, b.selEnd), max(b.selStart, b.selEnd)
	var lines []string
	for i := lo; i <= hi && i < len(b.segments); i++ {
		if seg := b.segments[i]; seg.selectable() {
			lines = append(lines, seg.Text)
		}
	}
	return strings.Join(lines, "\n")
}
