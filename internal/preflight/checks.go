package preflight

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"sieve/internal/config"
	"sieve/internal/registry"
)

// CheckDirectoryAccess verifies path is a directory the process can read,
// write, and traverse.
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

// CheckFreeSpace verifies the filesystem holding path has at least minFree
// bytes available to unprivileged users.
func CheckFreeSpace(name, path string, minFree uint64) Result {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := st.Bavail * uint64(st.Bsize)
	detail := fmt.Sprintf("%s free", humanize.IBytes(free))
	if free < minFree {
		return Result{Name: name, Detail: fmt.Sprintf("%s (need at least %s)", detail, humanize.IBytes(minFree))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckRegistry opens the registry and runs its health check.
func CheckRegistry(ctx context.Context, cfg *config.Config) Result {
	const name = "Registry"

	store, err := registry.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("open: %v", err)}
	}
	defer store.Close()

	health, err := store.CheckHealth(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", health.DBPath, err)}
	}
	if !health.Healthy() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (integrity %q, schema %d)", health.DBPath, health.Integrity, health.SchemaVersion)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d entries, %d open orphans)", health.DBPath, health.Entries, health.OpenOrphans)}
}
