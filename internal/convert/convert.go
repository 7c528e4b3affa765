package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"lumen/internal/config"
	"lumen/internal/logging"
	"lumen/internal/services"
	"lumen/internal/workspace"
)

// derivedPrefix namespaces derived item ids so they can never collide with
// discovered source ids.
const derivedPrefix = "derived/"

// Converter turns container media (HEIC stills, videos) into the JPEG inputs
// vision models accept, shelling out to the configured external tools.
// Conversions are idempotent: existing non-empty outputs are reused.
type Converter struct {
	cfg        config.Conversion
	derivedDir string
	logger     *slog.Logger
}

// NewConverter creates a converter writing outputs under derivedDir.
func NewConverter(cfg config.Conversion, derivedDir string, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Converter{
		cfg:        cfg,
		derivedDir: derivedDir,
		logger:     logging.NewComponentLogger(logger, "convert"),
	}
}

// ConvertHEIC produces one derived JPEG item for a HEIC source. An existing
// non-empty output is reused without invoking the converter.
func (c *Converter) ConvertHEIC(ctx context.Context, item *workspace.Item) (*workspace.Item, error) {
	if item.Kind != workspace.KindHEIC {
		return nil, services.Wrap(services.ErrValidation, "convert", "heic",
			fmt.Sprintf("item %q is %s, not heic", item.ID, item.Kind), nil)
	}

	outputPath := filepath.Join(c.derivedDir, filepath.FromSlash(item.ID)+".jpg")
	derived := &workspace.Item{
		ID:          derivedPrefix + item.ID + ".jpg",
		SourcePath:  outputPath,
		Kind:        workspace.KindImage,
		DerivedFrom: item.ID,
		Status:      workspace.StatusPending,
	}

	if reusable(outputPath) {
		c.logger.Debug("reusing existing jpeg",
			logging.String("item_id", item.ID),
			logging.String("output", outputPath))
		return derived, nil
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "convert", "heic", "create derived directory", err)
	}

	runCtx, cancel := c.commandContext(ctx)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.cfg.HEICConverter, item.SourcePath, outputPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "convert", "heic",
			fmt.Sprintf("%s failed: %s", c.cfg.HEICConverter, summarizeOutput(output)), err)
	}
	if !reusable(outputPath) {
		return nil, services.Wrap(services.ErrExternalTool, "convert", "heic",
			fmt.Sprintf("%s produced no output at %s", c.cfg.HEICConverter, outputPath), nil)
	}

	c.logger.Info("converted heic to jpeg",
		logging.String("item_id", item.ID),
		logging.String("output", outputPath))
	return derived, nil
}

// ExtractFrames produces derived frame items for a video source, one frame
// per configured interval, capped at the configured maximum. Frames already
// on disk are reused; ffmpeg runs only against an empty frame directory.
func (c *Converter) ExtractFrames(ctx context.Context, item *workspace.Item) ([]*workspace.Item, error) {
	if item.Kind != workspace.KindVideo {
		return nil, services.Wrap(services.ErrValidation, "convert", "frames",
			fmt.Sprintf("item %q is %s, not video", item.ID, item.Kind), nil)
	}

	frameDir := filepath.Join(c.derivedDir, filepath.FromSlash(item.ID)+".frames")
	frames, err := listFrames(frameDir)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "convert", "frames", "read frame directory", err)
	}

	if len(frames) == 0 {
		if err := os.MkdirAll(frameDir, 0o755); err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "convert", "frames", "create frame directory", err)
		}

		interval := c.cfg.FrameIntervalSeconds
		if interval <= 0 {
			interval = 5
		}

		runCtx, cancel := c.commandContext(ctx)
		defer cancel()

		cmd := exec.CommandContext(runCtx, c.cfg.FFmpeg,
			"-i", item.SourcePath,
			"-vf", fmt.Sprintf("fps=1/%d", interval),
			filepath.Join(frameDir, "frame_%04d.jpg"),
		)
		output, err := cmd.CombinedOutput()
		if err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "convert", "frames",
				fmt.Sprintf("%s failed: %s", c.cfg.FFmpeg, summarizeOutput(output)), err)
		}

		frames, err = listFrames(frameDir)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "convert", "frames", "read frame directory", err)
		}
		if len(frames) == 0 {
			return nil, services.Wrap(services.ErrExternalTool, "convert", "frames",
				fmt.Sprintf("%s produced no frames in %s", c.cfg.FFmpeg, frameDir), nil)
		}
		c.logger.Info("extracted video frames",
			logging.String("item_id", item.ID),
			logging.Int("frame_count", len(frames)))
	} else {
		c.logger.Debug("reusing existing frames",
			logging.String("item_id", item.ID),
			logging.Int("frame_count", len(frames)))
	}

	if c.cfg.MaxFrames > 0 && len(frames) > c.cfg.MaxFrames {
		frames = frames[:c.cfg.MaxFrames]
	}

	items := make([]*workspace.Item, 0, len(frames))
	for _, frame := range frames {
		items = append(items, &workspace.Item{
			ID:          derivedPrefix + item.ID + ".frames/" + frame,
			SourcePath:  filepath.Join(frameDir, frame),
			Kind:        workspace.KindVideoFrame,
			DerivedFrom: item.ID,
			Status:      workspace.StatusPending,
		})
	}
	return items, nil
}

func (c *Converter) commandContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.TimeoutSeconds > 0 {
		return context.WithTimeout(ctx, time.Duration(c.cfg.TimeoutSeconds)*time.Second)
	}
	return context.WithCancel(ctx)
}

// listFrames returns the frame file names in a directory, sorted. The
// zero-padded frame numbering makes lexical order temporal order.
func listFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var frames []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, "frame_") && strings.HasSuffix(strings.ToLower(name), ".jpg") {
			if info, err := entry.Info(); err == nil && info.Size() > 0 {
				frames = append(frames, name)
			}
		}
	}
	sort.Strings(frames)
	return frames, nil
}

func reusable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

func summarizeOutput(output []byte) string {
	const maxLen = 400
	text := strings.TrimSpace(string(output))
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > maxLen {
		return text[:maxLen] + "..."
	}
	if text == "" {
		return "(no output)"
	}
	return text
}
