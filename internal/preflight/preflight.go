package preflight

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"

	"lumen/internal/config"
	"lumen/internal/provider"
)

// minFreeBytes is how much free space the derived-media directory needs
// before a run is considered safe to start.
const minFreeBytes = 500 * 1024 * 1024

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable checks for the given config and provider
// registry. Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config, registry *provider.Registry) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Workspace directory", cfg.Paths.WorkspaceDir))
	results = append(results, CheckDirectoryAccess("Derived media directory", cfg.Paths.DerivedDir))
	results = append(results, CheckDiskSpace("Derived media disk space", cfg.Paths.DerivedDir))

	results = append(results, CheckBinary("FFmpeg", cfg.Conversion.FFmpeg, "video frame extraction"))
	results = append(results, CheckBinary("HEIC converter", cfg.Conversion.HEICConverter, "HEIC to JPEG conversion"))

	if registry != nil {
		for _, prov := range registry.Providers() {
			results = append(results, CheckProvider(ctx, prov))
		}
	}

	return results
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// CheckDirectoryAccess verifies that the directory exists and is
// readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDiskSpace verifies the filesystem holding path has headroom for
// derived JPEGs and frames.
func CheckDiskSpace(name, path string) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < minFreeBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (only %d MiB free, need %d MiB)",
			path, free/(1024*1024), minFreeBytes/(1024*1024))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d MiB free)", path, free/(1024*1024))}
}

// CheckBinary verifies an external tool is on PATH.
func CheckBinary(name, command, purpose string) Result {
	if command == "" {
		return Result{Name: name, Detail: fmt.Sprintf("not configured (required for %s)", purpose)}
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s not found on PATH (required for %s)", command, purpose)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckProvider runs a provider's own availability check with a short
// timeout.
func CheckProvider(ctx context.Context, prov provider.Provider) Result {
	name := fmt.Sprintf("Provider %s", prov.Name())
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := prov.Available(checkCtx); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "available"}
}
