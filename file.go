package stegano

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/absfs/absfs"
)

// FormatFromPath picks the output format from a file extension
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return 0, fmt.Errorf("%w: %q has no extension", ErrUnsupportedFormat, path)
	}
	return ParseFormat(ext)
}

// ReadImageFile reads a whole image file from fs
func ReadImageFile(fs absfs.FileSystem, path string) ([]byte, error) {
	if err := ValidateFilePath(path); err != nil {
		return nil, err
	}

	f, err := fs.Open(path)
	if err != nil {
		return nil, NewIOError("open", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, NewIOError("read", path, err)
	}
	return data, nil
}

// WriteImageFile creates or truncates path on fs and writes data
func WriteImageFile(fs absfs.FileSystem, path string, data []byte) error {
	if err := ValidateFilePath(path); err != nil {
		return err
	}

	f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return NewIOError("create", path, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return NewIOError("write", path, err)
	}
	if err := f.Close(); err != nil {
		return NewIOError("close", path, err)
	}
	return nil
}

// HideFile hides message in the image at src and writes the result to dst.
// The output format follows the extension of dst.
func (s *Stegano) HideFile(fs absfs.FileSystem, src, dst, message string) error {
	format, err := FormatFromPath(dst)
	if err != nil {
		return err
	}

	data, err := ReadImageFile(fs, src)
	if err != nil {
		return err
	}

	out, err := s.Hide(data, message, format)
	if err != nil {
		return err
	}
	return WriteImageFile(fs, dst, out)
}

// RevealFile extracts the message hidden in the image at path
func (s *Stegano) RevealFile(fs absfs.FileSystem, path string) (string, error) {
	data, err := ReadImageFile(fs, path)
	if err != nil {
		return "", err
	}
	return s.Reveal(data)
}

// CapacityFile returns the message bits the image at path can carry
func (s *Stegano) CapacityFile(fs absfs.FileSystem, path string) (int, error) {
	data, err := ReadImageFile(fs, path)
	if err != nil {
		return 0, err
	}
	return s.Capacity(data)
}
