package transcript

import (
	"fmt"

	"github.com/atotto/clipboard"
)

// writeClipboard is swapped out in tests.
var writeClipboard = clipboard.WriteAll

// CopySelection writes the selected text to the system clipboard. With
// nothing selected it does nothing. A clipboard failure is returned to
// the caller; the buffer and its selection are left untouched either
// way.
func (b *Buffer) CopySelection() error {
	text := b.SelectedText()
	if text == "" {
		return nil
	}
	if err := writeClipboard(text); err != nil {
		return fmt.Errorf("transcript: copy selection: %w", err)
	}
	return nil
}
