package discovery

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lumen/internal/logging"
	"lumen/internal/services"
	"lumen/internal/workspace"
)

// kindByExtension classifies the media files the pipeline understands.
// Extensions are matched case-insensitively.
var kindByExtension = map[string]workspace.Kind{
	".jpg":  workspace.KindImage,
	".jpeg": workspace.KindImage,
	".png":  workspace.KindImage,
	".gif":  workspace.KindImage,
	".webp": workspace.KindImage,
	".heic": workspace.KindHEIC,
	".heif": workspace.KindHEIC,
	".mp4":  workspace.KindVideo,
	".mov":  workspace.KindVideo,
	".avi":  workspace.KindVideo,
	".mkv":  workspace.KindVideo,
	".webm": workspace.KindVideo,
}

// KnownTypes returns the media categories the scanner understands, for
// config validation and help text.
func KnownTypes() []string {
	return []string{"heic", "image", "video"}
}

// Options controls a scan.
type Options struct {
	Recursive bool
	// Types filters by media category (image, heic, video). Empty means all.
	Types []string
}

// Scanner finds describable media under a root directory. Scans are
// deterministic: the same tree yields the same items in the same order.
type Scanner struct {
	root   string
	opts   Options
	logger *slog.Logger
}

// NewScanner creates a scanner rooted at root.
func NewScanner(root string, opts Options, logger *slog.Logger) (*Scanner, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "discovery", "new", "resolve root path", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "discovery", "new",
			fmt.Sprintf("root %s is not accessible", abs), err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "discovery", "new",
			fmt.Sprintf("root %s is not a directory", abs), nil)
	}
	return &Scanner{
		root:   abs,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "discovery"),
	}, nil
}

// Root returns the absolute scan root.
func (s *Scanner) Root() string { return s.root }

// Scan walks the tree and returns items in path order. Zero-byte and
// unreadable files still become items, pre-failed with a descriptive error,
// so the document records that they were seen.
func (s *Scanner) Scan() ([]*workspace.Item, error) {
	allowed := s.allowedKinds()

	var items []*workspace.Item
	seen := make(map[string]bool)

	walkErr := filepath.WalkDir(s.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == s.root {
				return err
			}
			// Record a failed placeholder so the document shows the path
			// was seen but could not be read. Directories get one too:
			// their contents are unknowable here.
			id, idErr := NormalizeID(s.root, path)
			if idErr != nil || seen[id] {
				s.logger.Warn("skipping unreadable path",
					logging.String("path", path),
					logging.Error(err))
				return nil
			}
			seen[id] = true
			items = append(items, &workspace.Item{
				ID:         id,
				SourcePath: path,
				Kind:       kindByExtension[strings.ToLower(filepath.Ext(path))],
				Status:     workspace.StatusFailed,
				Error:      fmt.Sprintf("unreadable: %v", err),
			})
			return nil
		}
		if entry.IsDir() {
			if path != s.root && !s.opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		kind, known := kindByExtension[ext]
		if !known || !allowed[kind] {
			return nil
		}

		id, err := NormalizeID(s.root, path)
		if err != nil {
			s.logger.Warn("skipping path outside root",
				logging.String("path", path),
				logging.Error(err))
			return nil
		}
		if seen[id] {
			return nil
		}
		seen[id] = true

		item := &workspace.Item{
			ID:         id,
			SourcePath: path,
			Kind:       kind,
			Status:     workspace.StatusPending,
		}
		if info, statErr := entry.Info(); statErr != nil {
			item.Status = workspace.StatusFailed
			item.Error = fmt.Sprintf("stat failed: %v", statErr)
		} else if info.Size() == 0 {
			item.Status = workspace.StatusFailed
			item.Error = "file is empty"
		}
		items = append(items, item)
		return nil
	})
	if walkErr != nil {
		return nil, services.Wrap(services.ErrConfiguration, "discovery", "scan", "walk media root", walkErr)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	s.logger.Info("scan complete",
		logging.String("root", s.root),
		logging.Int("item_count", len(items)))
	return items, nil
}

// NormalizeID converts an absolute file path into the document item id: the
// path relative to the root with forward slashes regardless of platform.
func NormalizeID(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("path %s escapes root %s", path, root)
	}
	return rel, nil
}

func (s *Scanner) allowedKinds() map[workspace.Kind]bool {
	if len(s.opts.Types) == 0 {
		return map[workspace.Kind]bool{
			workspace.KindImage: true,
			workspace.KindHEIC:  true,
			workspace.KindVideo: true,
		}
	}
	allowed := make(map[workspace.Kind]bool, len(s.opts.Types))
	for _, t := range s.opts.Types {
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "image":
			allowed[workspace.KindImage] = true
		case "heic":
			allowed[workspace.KindHEIC] = true
		case "video":
			allowed[workspace.KindVideo] = true
		}
	}
	return allowed
}
