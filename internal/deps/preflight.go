package deps

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// CheckDirectoryAccess verifies that the directory exists and is
// readable/writable.
func CheckDirectoryAccess(name, path string) Status {
	status := Status{Name: name, Description: "workspace directory"}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			status.Detail = fmt.Sprintf("%s does not exist", path)
			return status
		}
		status.Detail = fmt.Sprintf("stat %s: %v", path, err)
		return status
	}
	if !info.IsDir() {
		status.Detail = fmt.Sprintf("%s is not a directory", path)
		return status
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		status.Detail = fmt.Sprintf("%s: insufficient permissions: %v", path, err)
		return status
	}
	status.Available = true
	status.Detail = fmt.Sprintf("%s (read/write ok)", path)
	return status
}

// FreeSpace returns the bytes available to unprivileged users on the
// filesystem holding path.
func FreeSpace(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return st.Bavail * uint64(st.Bsize), nil
}

// CheckFreeSpace reports whether the filesystem holding path has at least
// minBytes available. Dubbing jobs stage several uncompressed WAV tracks
// per job, so a nearly full work disk fails jobs mid-pipeline.
func CheckFreeSpace(name, path string, minBytes uint64) Status {
	status := Status{Name: name, Description: "free disk space"}
	free, err := FreeSpace(path)
	if err != nil {
		status.Detail = err.Error()
		return status
	}
	status.Detail = fmt.Sprintf("%s: %.1f GiB free", path, float64(free)/(1<<30))
	status.Available = free >= minBytes
	if !status.Available {
		status.Detail = fmt.Sprintf("%s: only %.1f GiB free, need %.1f GiB", path,
			float64(free)/(1<<30), float64(minBytes)/(1<<30))
	}
	return status
}
