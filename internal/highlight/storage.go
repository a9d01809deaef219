package highlight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"contentcore/internal/objectstore"
	"contentcore/internal/observability"
)

// Storage uploads artifacts and resolves job inputs. The primary path is
// the blob API; a mounted volume acts as the emergency fallback both ways.
type Storage struct {
	primary  objectstore.Store
	fallback objectstore.Store // nil when no volume is mounted
	bucket   string
	volPath  string
	metrics  *observability.Metrics
}

// NewStorage wires the blob store plus the optional volume fallback.
func NewStorage(primary objectstore.Store, fallback objectstore.Store, bucket, volPath string, metrics *observability.Metrics) *Storage {
	return &Storage{primary: primary, fallback: fallback, bucket: bucket, volPath: volPath, metrics: metrics}
}

func clipKey(videoID, filename string) string {
	return fmt.Sprintf("highlights/%s/%s", videoID, filename)
}

// uploadFile pushes one local file, falling back to the volume copy when
// the blob API fails. Returns the object key.
func (s *Storage) uploadFile(ctx context.Context, videoID, localPath, contentType string) (string, error) {
	key := clipKey(videoID, filepath.Base(localPath))
	if err := s.primary.PutFile(ctx, key, localPath, contentType); err != nil {
		s.metrics.UpstreamFailures.WithLabelValues("blob").Inc()
		log.Error().Err(err).Str("key", key).Msg("blob upload failed")
		if s.fallback == nil {
			return "", err
		}
		if ferr := s.fallback.PutFile(ctx, key, localPath, contentType); ferr != nil {
			return "", fmt.Errorf("all storage paths failed for %s: %w", key, ferr)
		}
		log.Info().Str("key", key).Msg("volume fallback upload")
	}
	return key, nil
}

// UploadClips uploads every extracted clip and thumbnail, rewriting the
// clip's URLs to object keys.
func (s *Storage) UploadClips(ctx context.Context, videoID string, clips []Clip) ([]Clip, error) {
	for i := range clips {
		if clips[i].ClipPath != "" {
			key, err := s.uploadFile(ctx, videoID, clips[i].ClipPath, "video/mp4")
			if err != nil {
				return nil, err
			}
			clips[i].ClipURL = key
		}
		if clips[i].ThumbnailPath != "" {
			if _, err := os.Stat(clips[i].ThumbnailPath); err == nil {
				key, err := s.uploadFile(ctx, videoID, clips[i].ThumbnailPath, "image/jpeg")
				if err != nil {
					return nil, err
				}
				clips[i].ThumbnailURL = key
			}
		}
	}
	return clips, nil
}

// UploadManifest writes highlights.json and returns its object key.
func (s *Storage) UploadManifest(ctx context.Context, videoID string, clips []Clip) (string, error) {
	key := clipKey(videoID, "highlights.json")
	content, err := json.MarshalIndent(clips, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	if err := s.primary.Put(ctx, key, bytes.NewReader(content), int64(len(content)), "application/json"); err != nil {
		s.metrics.UpstreamFailures.WithLabelValues("blob").Inc()
		log.Error().Err(err).Str("key", key).Msg("manifest upload failed")
		if s.fallback == nil {
			return "", err
		}
		if ferr := s.fallback.Put(ctx, key, bytes.NewReader(content), int64(len(content)), "application/json"); ferr != nil {
			return "", fmt.Errorf("all storage paths failed for manifest: %w", ferr)
		}
		log.Info().Str("key", key).Msg("volume fallback manifest write")
	}
	return key, nil
}

// ResolvePath maps a storage-relative path onto the mounted volume.
// Absolute paths and URLs pass through untouched.
func (s *Storage) ResolvePath(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "/") {
		return path
	}
	return filepath.Join(s.volPath, path)
}

// FetchVideo makes a video available locally: direct volume path when it
// exists, blob download otherwise.
func (s *Storage) FetchVideo(ctx context.Context, storagePath, localPath string) (string, error) {
	if storagePath == "" {
		return "", fmt.Errorf("no video path provided")
	}
	key := strings.TrimPrefix(storagePath, s.bucket+"/")

	direct := filepath.Join(s.volPath, s.bucket, key)
	if info, err := os.Stat(direct); err == nil && !info.IsDir() {
		log.Info().Str("path", direct).Msg("using direct volume mount")
		return direct, nil
	}

	log.Info().Str("key", key).Str("local", localPath).Msg("downloading video via blob API")
	if err := s.primary.Download(ctx, key, localPath); err != nil {
		s.metrics.UpstreamFailures.WithLabelValues("blob").Inc()
		return "", fmt.Errorf("fetch %s: %w", key, err)
	}
	return localPath, nil
}

// FindVTT locates the caption file for a video opportunistically: volume
// paths first, then a blob download. Returns "" when captions are absent.
func (s *Storage) FindVTT(ctx context.Context, videoID string) string {
	key := fmt.Sprintf("subtitles/%s/en.vtt", videoID)

	candidates := []string{
		filepath.Join(s.volPath, s.bucket, key),
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			log.Info().Str("path", p).Msg("found caption file on volume")
			return p
		}
	}

	local := filepath.Join(os.TempDir(), "highlight_jobs", videoID, "en.vtt")
	if err := s.primary.Download(ctx, key, local); err != nil {
		if !errors.Is(err, objectstore.ErrNotFound) {
			log.Warn().Err(err).Str("key", key).Msg("caption lookup failed")
		}
		return ""
	}
	log.Info().Str("key", key).Msg("downloaded caption file via blob API")
	return local
}
