package env

import "os"

// IsCI reports whether we appear to be running inside a CI system. Most
// providers (GitHub Actions, GitLab, Circle) export CI=true.
func IsCI() bool {
	return os.Getenv("CI") == "true"
}

// Diff3Bin returns the DOWNSTREAM_DIFF3_BIN override for the external merge
// tool, or "" if unset.
func Diff3Bin() string {
	return os.Getenv("DOWNSTREAM_DIFF3_BIN")
}

// ScratchDir returns the DOWNSTREAM_SCRATCH override for scratch checkouts,
// or "" if unset.
func ScratchDir() string {
	return os.Getenv("DOWNSTREAM_SCRATCH")
}

// GitToken returns the access token used for HTTPS clones of private origin
// repositories, or "" if unset.
func GitToken() string {
	return os.Getenv("DOWNSTREAM_GIT_TOKEN")
}

func IsConcurrencyLockDisabled() bool {
	return os.Getenv("DOWNSTREAM_CONCURRENCY_LOCK_DISABLED") == "true"
}
