package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// ErrBlobExists is returned by a BlobStore when the target name is taken.
var ErrBlobExists = errors.New("application: blob already exists")

// BlobObject is a stored file as reported by a BlobStore.
type BlobObject struct {
	Name       string
	Size       int64
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// BlobStore is a flat directory of named files. Names passed in have already
// been checked by CheckFileName. Implementations return ErrNotFound for
// absent names and ErrForbidden when a name resolves outside their root.
type BlobStore interface {
	List(ctx context.Context) ([]BlobObject, error)
	Create(ctx context.Context, name string, data []byte) (BlobObject, error)
	Remove(ctx context.Context, name string) error
}

// PayloadTooLargeError reports an upload above the ceiling. Size is -1 when
// the payload was cut off before its full size was known.
type PayloadTooLargeError struct {
	Size  int64
	Limit int64
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("file exceeds the upload limit of %s", formatBytes(e.Limit))
}

// Is makes errors.Is(err, ErrPayloadTooLarge) hold.
func (e *PayloadTooLargeError) Is(target error) bool {
	return target == ErrPayloadTooLarge
}

const (
	msgInvalidFileName  = "invalid file name"
	msgFileNameRequired = "filename is required"
)

var fileKinds = map[string]FileKind{
	"txt": FileKindText, "md": FileKindText, "json": FileKindText, "js": FileKindText,
	"py": FileKindText, "html": FileKindText, "css": FileKindText, "xml": FileKindText,
	"jpg": FileKindImage, "jpeg": FileKindImage, "png": FileKindImage, "gif": FileKindImage,
	"webp": FileKindImage, "svg": FileKindImage,
	"pdf": FileKindDocument, "doc": FileKindDocument, "docx": FileKindDocument, "xls": FileKindDocument,
	"xlsx": FileKindDocument, "ppt": FileKindDocument, "pptx": FileKindDocument,
}

// KindOf infers the file category from the extension.
func KindOf(name string) FileKind {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 {
		return FileKindOther
	}
	if kind, ok := fileKinds[strings.ToLower(name[idx+1:])]; ok {
		return kind
	}
	return FileKindOther
}

// CheckFileName rejects names that are not a single canonical path element.
func CheckFileName(name string) error {
	switch {
	case name == "", name == ".",
		strings.HasPrefix(name, "/"),
		strings.Contains(name, ".."),
		strings.ContainsAny(name, "/\\\x00"),
		path.Clean(name) != name:
		return NewValidationError("filename", msgInvalidFileName)
	}
	return nil
}

// SanitizeFileName reduces a client supplied name to a safe base name.
// It returns "" when nothing usable remains.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	for strings.Contains(name, "..") {
		name = strings.ReplaceAll(name, "..", ".")
	}
	name = strings.TrimSpace(name)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// FileService manages the upload directory.
type FileService struct {
	store     BlobStore
	maxBytes  int64
	urlPrefix string
	now       func() time.Time
	uniqueTag func() string
	logger    *slog.Logger
}

// FileServiceOptions configures a FileService.
type FileServiceOptions struct {
	MaxBytes  int64
	URLPrefix string
	Now       func() time.Time
	// UniqueTag disambiguates names created within the same second.
	UniqueTag func() string
	Logger    *slog.Logger
}

// NewFileService constructs a FileService over store.
func NewFileService(store BlobStore, opts FileServiceOptions) *FileService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.URLPrefix == "" {
		opts.URLPrefix = "/uploads/"
	}
	if opts.UniqueTag == nil {
		opts.UniqueTag = func() string { return uuid.NewString()[:8] }
	}
	return &FileService{
		store:     store,
		maxBytes:  opts.MaxBytes,
		urlPrefix: opts.URLPrefix,
		now:       opts.Now,
		uniqueTag: opts.UniqueTag,
		logger:    defaultLogger(opts.Logger),
	}
}

func (s *FileService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "FileService", operation, attrs...)
}

// MaxBytes is the upload ceiling; zero or less means unlimited.
func (s *FileService) MaxBytes() int64 {
	return s.maxBytes
}

// URLFor returns the public URL of a stored file.
func (s *FileService) URLFor(name string) string {
	return s.urlPrefix + url.PathEscape(name)
}

// List returns stored files, most recently modified first.
func (s *FileService) List(ctx context.Context) ([]FileInfo, error) {
	objects, err := s.store.List(ctx)
	if err != nil {
		s.loggerWith(ctx, "List").ErrorContext(ctx, "failed to list files", "error", err)
		return nil, err
	}
	sort.Slice(objects, func(i, j int) bool {
		if !objects[i].ModifiedAt.Equal(objects[j].ModifiedAt) {
			return objects[i].ModifiedAt.After(objects[j].ModifiedAt)
		}
		return objects[i].Name < objects[j].Name
	})

	files := make([]FileInfo, 0, len(objects))
	for _, obj := range objects {
		files = append(files, FileInfo{
			Name:       obj.Name,
			Size:       obj.Size,
			CreatedAt:  obj.CreatedAt,
			ModifiedAt: obj.ModifiedAt,
			Kind:       KindOf(obj.Name),
			URL:        s.URLFor(obj.Name),
		})
	}
	return files, nil
}

// Delete removes name. The name is checked before the store is touched.
func (s *FileService) Delete(ctx context.Context, name string) (err error) {
	logger := s.loggerWith(ctx, "Delete", "filename", name)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "file deletion failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "file deleted")
	}()

	if err = CheckFileName(name); err != nil {
		return err
	}
	return s.store.Remove(ctx, name)
}

// CheckSize fails with a PayloadTooLargeError when size exceeds the ceiling.
func (s *FileService) CheckSize(size int64) error {
	if s.maxBytes > 0 && size > s.maxBytes {
		return &PayloadTooLargeError{Size: size, Limit: s.maxBytes}
	}
	return nil
}

// Store writes data under a timestamp-prefixed version of originalName.
func (s *FileService) Store(ctx context.Context, originalName string, data []byte) (stored StoredFile, err error) {
	logger := s.loggerWith(ctx, "Store", "original_filename", originalName, "size", len(data))
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "file upload rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "file stored", "filename", stored.Name)
	}()

	if err = s.CheckSize(int64(len(data))); err != nil {
		return StoredFile{}, err
	}
	base := SanitizeFileName(originalName)
	if base == "" {
		return StoredFile{}, NewValidationError("filename", msgFileNameRequired)
	}

	now := s.now()
	stamp := now.Format("20060102_150405")
	name := stamp + "_" + base
	if err = CheckFileName(name); err != nil {
		return StoredFile{}, err
	}

	obj, err := s.store.Create(ctx, name, data)
	if errors.Is(err, ErrBlobExists) {
		name = stamp + "_" + s.uniqueTag() + "_" + base
		if err = CheckFileName(name); err != nil {
			return StoredFile{}, err
		}
		obj, err = s.store.Create(ctx, name, data)
	}
	if err != nil {
		return StoredFile{}, err
	}

	return StoredFile{
		Name:         obj.Name,
		OriginalName: originalName,
		Size:         obj.Size,
		URL:          s.URLFor(obj.Name),
		UploadedAt:   now,
	}, nil
}

func formatBytes(n int64) string {
	const unit = 1024
	switch {
	case n >= unit*unit && n%(unit*unit) == 0:
		return fmt.Sprintf("%dMB", n/(unit*unit))
	case n >= unit && n%unit == 0:
		return fmt.Sprintf("%dKB", n/unit)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
