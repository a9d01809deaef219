package highlight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// ExtractClip cuts [start,end) out of the source video. Stream copy by
// default: seek before input, no re-encode, timestamps normalized. The
// software re-encode path exists only for sources whose keyframe spacing
// makes copied cuts unusable.
func ExtractClip(ctx context.Context, sourcePath string, start, end int, outputPath string, streamCopy bool) error {
	duration := end - start
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("mkdir for clip: %w", err)
	}

	args := []string{"-y", "-ss", fmt.Sprint(start), "-i", sourcePath, "-t", fmt.Sprint(duration)}
	if streamCopy {
		args = append(args, "-c", "copy")
	} else {
		args = append(args,
			"-c:v", "libx264", "-preset", "ultrafast", "-profile:v", "baseline",
			"-tune", "zerolatency", "-threads", "1")
	}
	args = append(args, "-avoid_negative_ts", "make_zero", outputPath)

	if err := runFFmpeg(ctx, args...); err != nil {
		return fmt.Errorf("extract clip %d-%d: %w", start, end, err)
	}
	log.Info().Int("start", start).Int("end", end).Str("out", outputPath).Msg("extracted clip")
	return nil
}

// ExtractThumbnail grabs one frame at the timestamp, scaled down preserving
// aspect ratio.
func ExtractThumbnail(ctx context.Context, sourcePath string, timestamp float64, outputPath string, width, height int) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("mkdir for thumbnail: %w", err)
	}
	scale := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", width/2, height/2)
	if err := runFFmpeg(ctx, "-y",
		"-ss", fmt.Sprintf("%.2f", timestamp),
		"-i", sourcePath,
		"-vframes", "1",
		"-vf", scale,
		outputPath,
	); err != nil {
		return fmt.Errorf("extract thumbnail at %.1fs: %w", timestamp, err)
	}
	return nil
}

// ExtractAll cuts every clip and its midpoint thumbnail into outputDir.
// A single failed clip is skipped, not fatal; the job degrades instead.
func ExtractAll(ctx context.Context, sourcePath string, clips []Clip, outputDir string, cfg ExtractionConfig) []Clip {
	var extracted []Clip
	for i, clip := range clips {
		clipPath := filepath.Join(outputDir, fmt.Sprintf("clip_%03d.mp4", i))
		thumbPath := filepath.Join(outputDir, fmt.Sprintf("thumb_%03d.jpg", i))

		if err := ExtractClip(ctx, sourcePath, clip.Start, clip.End, clipPath, cfg.StreamCopy); err != nil {
			log.Warn().Err(err).Int("clip", i).Msg("skipping clip, extraction failed")
			continue
		}

		mid := float64(clip.Start+clip.End) / 2
		if err := ExtractThumbnail(ctx, sourcePath, mid, thumbPath, cfg.ThumbnailWidth, cfg.ThumbnailHeight); err != nil {
			log.Warn().Err(err).Int("clip", i).Msg("thumbnail extraction failed")
		}

		clip.Index = i
		clip.ClipPath = clipPath
		clip.ThumbnailPath = thumbPath
		extracted = append(extracted, clip)
	}
	log.Info().Int("extracted", len(extracted)).Int("total", len(clips)).Msg("clip extraction done")
	return extracted
}
