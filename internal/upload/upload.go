package upload

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/amanice/storefront/config"
	"github.com/amanice/storefront/pkg/common"
)

var (
	AllowedTypes      = []string{"image/jpeg", "image/jpg", "image/png", "image/webp"}
	AllowedExtensions = []string{"jpg", "jpeg", "png", "webp"}
	// DeletableExtensions also covers gif images shipped with the site
	DeletableExtensions = []string{"jpg", "jpeg", "png", "gif", "webp"}
	DeletablePrefixes   = []string{"Assets/uploads/", "Assets/images/"}
)

var unsafeNameChars = regexp.MustCompile(`(?i)[^a-z0-9_-]`)

// Error is an upload failure with the HTTP status to answer with
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

func badRequest(msg string) error { return &Error{Status: http.StatusBadRequest, Message: msg} }

// Result is the JSON body returned for a stored image
type Result struct {
	Status   string `json:"status"`
	Path     string `json:"path"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
}

// Store writes product images below root/dir and deletes site images
type Store struct {
	root    string
	dir     string
	prefix  string
	maxSize int64
}

func NewStore(cfg config.UploadConfig) *Store {
	prefix := cfg.PublicPrefix
	if prefix == "" {
		prefix = filepath.ToSlash(cfg.Dir)
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = 10 * 1024 * 1024
	}
	return &Store{
		root:    common.IfEmptyStr(cfg.Root, "."),
		dir:     cfg.Dir,
		prefix:  prefix,
		maxSize: maxSize,
	}
}

func (s *Store) MaxSize() int64 { return s.maxSize }

// Save validates and stores an uploaded image. declaredType is the client
// supplied content type and is only checked when present.
func (s *Store) Save(fileName, declaredType string, r io.Reader) (Result, error) {
	if declaredType != "" && !common.InSlice(strings.ToLower(declaredType), AllowedTypes) {
		return Result{}, badRequest("Invalid file type. Only JPG, JPEG, PNG, and WEBP images are allowed.")
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if !common.InSlice(ext, AllowedExtensions) {
		return Result{}, badRequest("Invalid file extension. Only .jpg, .jpeg, .png, and .webp files are allowed.")
	}
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return Result{}, errors.Wrap(err, "read upload")
	}
	if int64(len(data)) > s.maxSize {
		return Result{}, badRequest(fmt.Sprintf("File is too large. Maximum file size is %dMB.", s.maxSize/1024/1024))
	}
	if len(data) == 0 {
		return Result{}, badRequest("No file was uploaded.")
	}
	if !isImage(mimetype.Detect(data)) {
		return Result{}, badRequest("Invalid image file. The uploaded file is not a valid image.")
	}

	name := storedName(fileName, ext, time.Now())
	dir := filepath.Join(s.root, s.dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, errors.Wrap(err, "create upload directory")
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return Result{}, errors.Wrap(err, "save uploaded file")
	}
	zap.L().Info("image uploaded", zap.String("namespace", "upload"),
		zap.String("file", name), zap.Int("size", len(data)))
	return Result{
		Status:   "success",
		Path:     s.prefix + name,
		FileName: name,
		FileSize: int64(len(data)),
	}, nil
}

// SaveBase64 stores an image sent as base64 text, with or without a data: URL prefix
func (s *Store) SaveBase64(image, fileName, fileType string) (Result, error) {
	if strings.TrimSpace(image) == "" || strings.TrimSpace(fileName) == "" {
		return Result{}, badRequest("No file uploaded or upload error occurred.")
	}
	if i := strings.Index(image, ";base64,"); strings.HasPrefix(image, "data:") && i > 0 {
		if fileType == "" {
			fileType = image[len("data:"):i]
		}
		image = image[i+len(";base64,"):]
	}
	if int64(base64.StdEncoding.DecodedLen(len(image))) > s.maxSize+2 {
		return Result{}, badRequest(fmt.Sprintf("File is too large. Maximum file size is %dMB.", s.maxSize/1024/1024))
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(image))
	if err != nil {
		return Result{}, badRequest("Invalid image file. The uploaded file is not a valid image.")
	}
	return s.Save(fileName, fileType, bytes.NewReader(data))
}

// DataURL decodes base64 image text and rebuilds it as a data URL carrying
// the sniffed media type. A client supplied data: prefix is discarded.
func DataURL(image string) (string, error) {
	if i := strings.Index(image, ";base64,"); strings.HasPrefix(image, "data:") && i > 0 {
		image = image[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(image))
	if err != nil || len(data) == 0 {
		return "", badRequest("Invalid image file. The uploaded file is not a valid image.")
	}
	detected := mimetype.Detect(data)
	if !isImage(detected) {
		return "", badRequest("Invalid image file. The uploaded file is not a valid image.")
	}
	return "data:" + detected.String() + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func isImage(m *mimetype.MIME) bool {
	return m.Is("image/jpeg") || m.Is("image/png") || m.Is("image/webp")
}

// storedName is <sanitized base, at most 50 chars>_<unix seconds>_<random>.<ext>
func storedName(fileName, ext string, now time.Time) string {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	base = unsafeNameChars.ReplaceAllString(base, "_")
	if len(base) > 50 {
		base = base[:50]
	}
	return fmt.Sprintf("%s_%d_%s.%s", base, now.Unix(), common.UUIDBase36(), ext)
}

// Delete removes a site image given by its public path, e.g. Assets/uploads/a.jpg
func (s *Store) Delete(imagePath string) error {
	if strings.TrimSpace(imagePath) == "" {
		return badRequest("Image path is required.")
	}
	allowed := false
	for _, prefix := range DeletablePrefixes {
		if strings.HasPrefix(imagePath, prefix) {
			allowed = true
			break
		}
	}
	if !allowed {
		return &Error{Status: http.StatusForbidden, Message: "Invalid path. Only images in Assets/uploads/ or Assets/images/ can be deleted."}
	}
	forbidden := &Error{Status: http.StatusForbidden, Message: "Invalid file path. Security check failed."}

	target, err := filepath.Abs(filepath.Join(s.root, filepath.FromSlash(imagePath)))
	if err != nil {
		return forbidden
	}
	dirs := s.deletableDirs()
	if !within(target, dirs) {
		return forbidden
	}
	info, err := os.Stat(target)
	if os.IsNotExist(err) {
		return &Error{Status: http.StatusNotFound, Message: "File not found."}
	}
	if err != nil {
		return errors.Wrap(err, "stat image")
	}
	resolved, err := filepath.EvalSymlinks(target)
	if err != nil || !within(resolved, resolveDirs(dirs)) {
		return forbidden
	}
	if !info.Mode().IsRegular() {
		return badRequest("Path is not a file.")
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(resolved), "."))
	if !common.InSlice(ext, DeletableExtensions) {
		return badRequest("File is not an image.")
	}
	if err := os.Remove(resolved); err != nil {
		return &Error{Status: http.StatusInternalServerError, Message: "Failed to delete file. Please check file permissions."}
	}
	zap.L().Info("image deleted", zap.String("namespace", "upload"), zap.String("path", imagePath))
	return nil
}

func (s *Store) deletableDirs() []string {
	dirs := make([]string, 0, len(DeletablePrefixes))
	for _, prefix := range DeletablePrefixes {
		if d, err := filepath.Abs(filepath.Join(s.root, filepath.FromSlash(prefix))); err == nil {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

func resolveDirs(dirs []string) []string {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if r, err := filepath.EvalSymlinks(d); err == nil {
			out = append(out, r)
		}
	}
	return out
}

func within(path string, dirs []string) bool {
	for _, dir := range dirs {
		rel, err := filepath.Rel(dir, path)
		if err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
