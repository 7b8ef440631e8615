package git

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// RunGitCommand executes a native git command in the given directory and
// returns its stdout. It captures stdout and stderr separately, returning
// stderr in the error message on failure.
func RunGitCommand(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var outb, errb bytes.Buffer
	cmd.Stdout = &outb
	cmd.Stderr = &errb
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to run git %s: %w - %s", args[0], err, errb.String())
	}

	return outb.String(), nil
}

// RunGitCommandInRepo executes a native git command in the repository's root
// directory.
func (r *Repository) RunGitCommandInRepo(args ...string) (string, error) {
	root := r.Root()
	if root == "" {
		return "", fmt.Errorf("repository root not found")
	}
	return RunGitCommand(root, args...)
}

// HasUnmergedPaths reports whether the repository containing dir still has
// conflict stages in its index, e.g. from an earlier sync whose conflicts
// were never resolved. It parses `git status --porcelain`, where a U in
// either status letter (plus AA and DD) marks an unmerged path.
func HasUnmergedPaths(dir string) ([]string, error) {
	output, err := RunGitCommand(dir, "status", "--porcelain")
	if err != nil {
		return nil, err
	}

	var unmerged []string
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if len(line) < 3 {
			continue
		}

		statusCode := line[:2]
		if strings.ContainsAny(statusCode, "U") || statusCode == "AA" || statusCode == "DD" {
			unmerged = append(unmerged, line[3:])
		}
	}

	return unmerged, nil
}
