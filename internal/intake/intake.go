// Package intake validates and stores uploaded audio files before a job is
// created for them.
package intake

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"voxsplit/internal/apperrors"
	"voxsplit/internal/platform/logger"
)

// allowedExtensions is the upload allowlist. Anything else is rejected
// before a job record exists.
var allowedExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".m4a":  true,
	".ogg":  true,
}

// AllowedExtensions returns the accepted upload extensions in no particular
// order, for error messages and API documentation.
func AllowedExtensions() []string {
	exts := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		exts = append(exts, ext)
	}
	return exts
}

// Intake stores validated uploads under a single directory with generated
// names, so user-supplied filenames never reach the filesystem.
type Intake struct {
	uploadDir string
	maxBytes  int64
}

// New creates an Intake writing to uploadDir with a maxMB size cap.
func New(uploadDir string, maxMB int64) *Intake {
	return &Intake{
		uploadDir: uploadDir,
		maxBytes:  maxMB * 1024 * 1024,
	}
}

// Validate checks the declared filename and size against the allowlist and
// size cap. It does not touch the filesystem.
func (in *Intake) Validate(filename string, size int64) error {
	base := filepath.Base(filename)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return apperrors.Validation("file", "filename is required")
	}

	ext := strings.ToLower(filepath.Ext(base))
	if !allowedExtensions[ext] {
		return apperrors.Validation("file",
			fmt.Sprintf("unsupported file type %q", ext))
	}

	if size <= 0 {
		return apperrors.Validation("file", "file is empty")
	}
	if size > in.maxBytes {
		return apperrors.Validation("file",
			fmt.Sprintf("file exceeds maximum size of %d MB", in.maxBytes/(1024*1024)))
	}
	return nil
}

// Save streams the upload to disk under a generated name that keeps the
// original extension. It returns the stored path. The reader is capped at
// the configured maximum plus one byte so an understated Content-Length
// cannot smuggle an oversized body.
func (in *Intake) Save(ctx context.Context, r io.Reader, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	storedName := uuid.New().String() + ext
	storedPath := filepath.Join(in.uploadDir, storedName)

	// The generated name cannot escape uploadDir, but keep the invariant
	// checked in case the join rules ever change.
	if !strings.HasPrefix(filepath.Clean(storedPath), filepath.Clean(in.uploadDir)+string(filepath.Separator)) {
		return "", apperrors.Internal("intake.save",
			fmt.Errorf("stored path %q escapes upload directory", storedPath))
	}

	if err := os.MkdirAll(in.uploadDir, 0o755); err != nil {
		return "", apperrors.Internal("intake.save", err)
	}

	f, err := os.Create(storedPath)
	if err != nil {
		return "", apperrors.Internal("intake.save", err)
	}

	written, err := io.Copy(f, io.LimitReader(r, in.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(storedPath)
		return "", apperrors.Internal("intake.save", err)
	}
	if written > in.maxBytes {
		_ = os.Remove(storedPath)
		return "", apperrors.Validation("file",
			fmt.Sprintf("file exceeds maximum size of %d MB", in.maxBytes/(1024*1024)))
	}
	if written == 0 {
		_ = os.Remove(storedPath)
		return "", apperrors.Validation("file", "file is empty")
	}

	logger.FromContext(ctx).Debug("upload stored",
		"original_filename", filename,
		"stored_path", storedPath,
		"bytes", written)
	return storedPath, nil
}

// Remove deletes a stored upload. Missing files are not an error; cleanup
// may race with the reaper.
func (in *Intake) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return apperrors.Internal("intake.remove", err)
	}
	return nil
}
