// Package util - Image file discovery and loading.
package util

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ImageExtensions are the file extensions treated as images.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".gif":  true,
	".tif":  true,
	".tiff": true,
}

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Name is the base name of the file.
	Name string
	// Frame is the number parsed from a "frame-N" style name, or -1.
	Frame int
}

// IsImageFile reports whether the path has a known image extension.
func IsImageFile(path string) bool {
	return ImageExtensions[strings.ToLower(filepath.Ext(path))]
}

// ListImageFiles returns the image files in dir, or dir itself if it is a file.
//
// Files named with a frame number ("frame-12.jpg" or "12.jpg") are ordered numerically
// and come first; the rest are ordered by name.
//
// Arguments:
// - path: A directory or a single image file.
//
// Returns:
// - []ImageFile: The files found.
// - error: Error if the path cannot be read.
func ListImageFiles(path string) ([]ImageFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "stat input")
	}
	if !info.IsDir() {
		return []ImageFile{newImageFile(path)}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, errors.Wrap(err, "read input directory")
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() || !IsImageFile(entry.Name()) {
			continue
		}
		files = append(files, newImageFile(filepath.Join(path, entry.Name())))
	}

	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if (a.Frame >= 0) != (b.Frame >= 0) {
			return a.Frame >= 0
		}
		if a.Frame != b.Frame {
			return a.Frame < b.Frame
		}
		return a.Name < b.Name
	})

	return files, nil
}

func newImageFile(path string) ImageFile {
	name := filepath.Base(path)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	frame, err := strconv.Atoi(strings.TrimPrefix(stem, "frame-"))
	if err != nil || frame < 0 {
		frame = -1
	}
	return ImageFile{Path: path, Name: name, Frame: frame}
}

// LoadImage decodes an image file, applying its EXIF orientation.
func LoadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return img, nil
}

// DecodeImage decodes in-memory image bytes, applying their EXIF orientation.
func DecodeImage(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}
	return img, nil
}
