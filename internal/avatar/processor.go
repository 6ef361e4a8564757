// Package avatar resizes uploaded images and moves them into the public
// avatar directory.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	// Width and Height of every stored avatar
	Width  = 250
	Height = 250

	// URLPrefix is the public path segment avatars are served under
	URLPrefix = "avatars"
)

var (
	ErrInvalidImage    = errors.New("file is not a supported image")
	ErrInvalidFilename = errors.New("invalid file name")
)

// Processor resizes an uploaded file in place and moves it into Dir
type Processor struct {
	Dir string
}

func NewProcessor(dir string) *Processor {
	return &Processor{Dir: dir}
}

// Filename derives the stored file name for a user's upload
func Filename(userID uuid.UUID, originalName string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	if base == "." || base == "/" || base == "" || base == ".." {
		return "", ErrInvalidFilename
	}
	return fmt.Sprintf("%s_%s", userID, base), nil
}

// Process decodes tempPath, resizes it to Width x Height, overwrites tempPath
// with the result and renames it to Dir/filename. The returned value is the
// relative avatar URL. Nothing is moved when any step before the rename fails.
func (p *Processor) Process(ctx context.Context, tempPath, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	format, err := imaging.FormatFromFilename(filename)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	img, err := imaging.Open(tempPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	if err := writeImage(tempPath, imaging.Resize(img, Width, Height, imaging.Lanczos), format); err != nil {
		return "", err
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(p.Dir, filename)
	if err := os.Rename(tempPath, target); err != nil {
		return "", fmt.Errorf("failed to move avatar: %w", err)
	}

	return path.Join(URLPrefix, filename), nil
}

func writeImage(dst string, img image.Image, format imaging.Format) error {
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to open avatar for writing: %w", err)
	}

	if err := imaging.Encode(f, img, format); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode avatar: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write avatar: %w", err)
	}
	return nil
}
