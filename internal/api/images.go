package api

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/h2non/filetype"

	apierrors "github.com/diogo/querychat/internal/errors"
	"github.com/diogo/querychat/internal/models"
)

// ImageInfo describes a decoded visualization image
type ImageInfo struct {
	MIME      string
	Extension string
	Size      int
	Width     int // 0 when the format is not decodable
	Height    int
}

// InspectImage decodes a base64 payload and sniffs its format
func InspectImage(payload string) (ImageInfo, []byte, error) {
	data, err := models.DecodeImage(payload)
	if err != nil {
		return ImageInfo{}, nil, apierrors.NewParseError("image is not valid base64: "+err.Error(), PathVisualization+"."+PathVizImage)
	}

	kind, _ := filetype.Match(data)
	if kind == filetype.Unknown || !filetype.IsImage(data) {
		return ImageInfo{}, nil, apierrors.NewParseError("payload is not a recognised image", PathVisualization+"."+PathVizImage)
	}

	info := ImageInfo{
		MIME:      kind.MIME.Value,
		Extension: kind.Extension,
		Size:      len(data),
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		info.Width = cfg.Width
		info.Height = cfg.Height
	}

	return info, data, nil
}

// ImageSaveOptions configures where an image is written
type ImageSaveOptions struct {
	// Directory is the destination directory (required)
	Directory string
	// Filename is the output filename; generated from Prefix and the time if empty
	Filename string
	// Prefix is used for generated names, e.g. a request id
	Prefix string
}

// SaveImage writes an image message to disk and returns its absolute path
func SaveImage(msg models.Message, opts ImageSaveOptions) (string, error) {
	if !msg.IsImage() {
		return "", apierrors.NewDownloadError("message does not carry an image", "")
	}
	if opts.Directory == "" {
		return "", apierrors.NewDownloadError("no directory given", "")
	}

	info, data, err := InspectImage(msg.Content)
	if err != nil {
		return "", apierrors.NewDownloadError(err.Error(), "")
	}

	if err := os.MkdirAll(opts.Directory, 0o700); err != nil {
		return "", apierrors.NewDownloadError("failed to create directory: "+err.Error(), opts.Directory)
	}

	filename := opts.Filename
	if filename == "" {
		filename = generateFilename(opts.Prefix, info.Extension)
	}
	destPath := filepath.Join(opts.Directory, sanitizeFilename(filename))

	if err := os.WriteFile(destPath, data, 0o600); err != nil {
		return "", apierrors.NewDownloadError("failed to save file: "+err.Error(), destPath)
	}

	absPath, err := filepath.Abs(destPath)
	if err != nil {
		return destPath, nil
	}
	return absPath, nil
}

// generateFilename creates a filename from a prefix and the current time
func generateFilename(prefix, ext string) string {
	if ext == "" {
		ext = "png"
	}
	stamp := time.Now().Format("20060102_150405.000")
	if prefix == "" {
		return fmt.Sprintf("visualization_%s.%s", stamp, ext)
	}
	if len(prefix) > 36 {
		prefix = prefix[:36]
	}
	return fmt.Sprintf("visualization_%s_%s.%s", prefix, stamp, ext)
}

var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// sanitizeFilename removes invalid characters from filenames
func sanitizeFilename(name string) string {
	return strings.TrimSpace(invalidFilenameChars.ReplaceAllString(name, "_"))
}
