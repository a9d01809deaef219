package highlight

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// runFFmpegStderr runs an ffmpeg command and returns its stderr, which is
// where every filter (astats, scdet, showinfo) streams its reports. A
// non-zero exit is not an error by itself: ffmpeg exits non-zero on `-f null`
// pipelines that still produced the wanted reports.
func runFFmpegStderr(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stdout = nil
	cmd.Stderr = &stderr
	err := cmd.Run()
	if stderr.Len() == 0 && err != nil {
		return "", fmt.Errorf("ffmpeg %s: %w", strings.Join(args[:min(len(args), 3)], " "), err)
	}
	return stderr.String(), nil
}

// runFFmpeg runs an ffmpeg command where success matters (extraction,
// frame dumps); stderr is returned for diagnostics on failure.
func runFFmpeg(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		tail := stderr.String()
		if len(tail) > 500 {
			tail = tail[len(tail)-500:]
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, tail)
	}
	return nil
}

// ProbeDuration reads a video's duration in seconds via ffprobe.
func ProbeDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", videoPath, err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		d, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return 0, fmt.Errorf("parse duration %q: %w", line, err)
		}
		return d, nil
	}
	return 0, fmt.Errorf("ffprobe returned no duration for %s", videoPath)
}
