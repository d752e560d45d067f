package playback

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"
)

// playWithOSPlayer hands the scratch WAV to the platform's command-line
// audio player and waits for it to finish, bounded by wait.
func playWithOSPlayer(ctx context.Context, path string, wait time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "afplay", path)
	case "linux":
		cmd = exec.CommandContext(ctx, "aplay", "-q", path)
	case "windows":
		cmd = exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command",
			fmt.Sprintf("(New-Object Media.SoundPlayer '%s').PlaySync()", path))
	default:
		return fmt.Errorf("playback: no OS player for %s", runtime.GOOS)
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("playback: os player: %w", err)
	}
	return nil
}
