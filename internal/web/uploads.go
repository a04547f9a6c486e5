package web

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/JonMunkholm/tablematch/internal/core"
	"github.com/google/uuid"
)

// formMemory is the part of a multipart form kept in memory; larger files
// spill to disk.
const formMemory = 32 << 20

// formOverhead allows for the multipart framing and text fields.
const formOverhead = 1 << 20

var safeExt = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// upload is one file stored for the duration of a comparison.
type upload struct {
	Name string // client-supplied file name, for display only
	Path string // server-side location
}

// parseUploadForm parses a multipart form holding up to files uploads,
// bounding the body by the configured file size.
func (s *Server) parseUploadForm(w http.ResponseWriter, r *http.Request, files int) error {
	limit := int64(files)*s.cfg.Upload.MaxFileSize + formOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(formMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return fmt.Errorf("%w: %w", core.ErrFileTooLarge, err)
		}
		return fmt.Errorf("%w: %w", core.ErrNoFileProvided, err)
	}
	return nil
}

// saveUploads copies the named form files into the upload directory under
// random names. The returned cleanup removes every file saved so far and is
// never nil, so callers defer it before checking the error.
func (s *Server) saveUploads(r *http.Request, fields ...string) ([]upload, func(), error) {
	var saved []upload
	cleanup := func() {
		for _, u := range saved {
			if err := os.Remove(u.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
				slog.Warn("remove upload", "path", u.Path, "error", err)
			}
		}
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	dir := s.uploadDir()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, cleanup, fmt.Errorf("create upload dir: %w", err)
	}

	for _, field := range fields {
		fh, err := formFile(r, field)
		if err != nil {
			return nil, cleanup, err
		}
		if fh.Size > s.cfg.Upload.MaxFileSize {
			return nil, cleanup, fmt.Errorf("%w: %s is %d bytes (limit %d)",
				core.ErrFileTooLarge, field, fh.Size, s.cfg.Upload.MaxFileSize)
		}

		u := upload{
			Name: filepath.Base(fh.Filename),
			Path: filepath.Join(dir, uuid.NewString()+uploadExt(fh.Filename)),
		}
		saved = append(saved, u)
		if err := storeFile(fh, u.Path); err != nil {
			return nil, cleanup, err
		}
	}
	return saved, cleanup, nil
}

func (s *Server) uploadDir() string {
	if s.cfg.Upload.Dir != "" {
		return s.cfg.Upload.Dir
	}
	return os.TempDir()
}

func formFile(r *http.Request, field string) (*multipart.FileHeader, error) {
	if r.MultipartForm == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrNoFileProvided, field)
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 || files[0].Filename == "" {
		return nil, fmt.Errorf("%w: %s", core.ErrNoFileProvided, field)
	}
	return files[0], nil
}

func storeFile(fh *multipart.FileHeader, path string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("store upload: %w", err)
	}
	return dst.Close()
}

// uploadExt keeps the client's extension so the loader can tell workbooks
// from text. Anything unusual is dropped.
func uploadExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if !safeExt.MatchString(ext) {
		return ""
	}
	return ext
}
