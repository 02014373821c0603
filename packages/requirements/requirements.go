package requirements

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/Masterminds/semver/v3"

	"github.com/cmdspec/cmdspec/packages/core/config"
)

// FileError reports a missing required file or a digest mismatch.
type FileError struct {
	Path    string
	Message string
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Path)
}

// CommandError reports a required command missing from PATH.
type CommandError struct {
	Path    string
	Command string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("required command %q was not found in PATH (%s)", e.Command, e.Path)
}

// VersionError reports an engine version outside the required range.
type VersionError struct {
	Path       string
	Constraint string
	Version    string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("engine version %s does not satisfy required version %q (%s)", e.Version, e.Constraint, e.Path)
}

// Check verifies every precondition a document declares. The version
// argument is the running engine's own version. Relative file paths resolve
// against the document's directory.
func Check(path string, spec config.RequiresSpec, version string) error {
	for _, file := range spec.Files {
		if err := checkFile(path, file); err != nil {
			return err
		}
	}

	for _, cmd := range spec.Commands {
		if _, err := exec.LookPath(cmd); err != nil {
			return &CommandError{Path: path, Command: cmd}
		}
	}

	if spec.Version != "" {
		if err := checkVersion(path, spec.Version, version); err != nil {
			return err
		}
	}
	return nil
}

func checkFile(docPath string, req config.FileRequirement) error {
	target := req.Path
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(docPath), target)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return &FileError{Path: docPath, Message: fmt.Sprintf("required file %q does not exist", target)}
	}

	digests := []struct {
		name     string
		expected string
		hasher   func() hash.Hash
	}{
		{"md5", req.MD5, md5.New},
		{"sha1", req.SHA1, sha1.New},
		{"sha256", req.SHA256, sha256.New},
		{"sha512", req.SHA512, sha512.New},
	}

	for _, d := range digests {
		if d.expected == "" {
			continue
		}
		h := d.hasher()
		h.Write(data)
		computed := hex.EncodeToString(h.Sum(nil))
		if computed != d.expected {
			return &FileError{
				Path:    docPath,
				Message: fmt.Sprintf("required file %q has %s digest %s, expected %s", target, d.name, computed, d.expected),
			}
		}
	}
	return nil
}

func checkVersion(docPath, constraint, version string) error {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return &VersionError{Path: docPath, Constraint: constraint, Version: version}
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return &VersionError{Path: docPath, Constraint: constraint, Version: version}
	}
	if !c.Check(v) {
		return &VersionError{Path: docPath, Constraint: constraint, Version: version}
	}
	return nil
}
