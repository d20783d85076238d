package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
	"github.com/campusmart/campusmart-backend/pkg/logger"
)

const sniffLength = 512

var folderPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,39}$`)

type objectStore interface {
	UploadObject(ctx context.Context, bucket, object, contentType string, body io.Reader) error
	DeleteObject(ctx context.Context, bucket, object string) error
	PublicURL(object string) string
}

// Service relays image uploads to object storage.
type Service interface {
	Upload(ctx context.Context, userID uuid.UUID, input UploadInput) (*UploadOutput, error)
	Delete(ctx context.Context, userID uuid.UUID, id string) error
}

// UploadInput carries the multipart file being relayed.
type UploadInput struct {
	File   io.Reader
	Size   int64
	Folder string
}

// UploadOutput is returned to the client after a successful upload.
type UploadOutput struct {
	URL string `json:"url"`
	ID  string `json:"id"`
}

type service struct {
	store         objectStore
	maxBytes      int64
	defaultFolder string
	logg          *logger.Logger
}

// NewService constructs the media relay. maxBytes caps every upload.
func NewService(store objectStore, maxBytes int64, defaultFolder string, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("object store required")
	}
	if maxBytes <= 0 {
		return nil, fmt.Errorf("max upload bytes must be positive")
	}
	if defaultFolder == "" {
		defaultFolder = "items"
	}
	return &service{store: store, maxBytes: maxBytes, defaultFolder: defaultFolder, logg: logg}, nil
}

func (s *service) Upload(ctx context.Context, userID uuid.UUID, input UploadInput) (*UploadOutput, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.File == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "image is required")
	}
	if input.Size > s.maxBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("image must be at most %d bytes", s.maxBytes))
	}
	folder, err := s.resolveFolder(input.Folder)
	if err != nil {
		return nil, err
	}

	// one extra byte detects oversize bodies when the declared size lies
	data, err := io.ReadAll(io.LimitReader(input.File, s.maxBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("image must be at most %d bytes", s.maxBytes))
	}
	head := data
	if len(head) > sniffLength {
		head = head[:sniffLength]
	}
	contentType, ext, err := sniffImageType(head)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported upload")
	}

	object := fmt.Sprintf("%s/%s%s", userPrefix(folder, userID), uuid.NewString(), ext)
	if err := s.store.UploadObject(ctx, "", object, contentType, bytes.NewReader(data)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload image")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"object":       object,
			"content_type": contentType,
			"size_bytes":   len(data),
		})
		s.logg.Info(logCtx, "image uploaded")
	}

	return &UploadOutput{URL: s.store.PublicURL(object), ID: object}, nil
}

func (s *service) Delete(ctx context.Context, userID uuid.UUID, id string) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	id = strings.Trim(strings.TrimSpace(id), "/")
	if id == "" || strings.Contains(id, "..") {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid image id")
	}
	parts := strings.SplitN(id, "/", 3)
	if len(parts) != 3 || !folderPattern.MatchString(parts[0]) || parts[2] == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid image id")
	}
	if parts[1] != userID.String() {
		return pkgerrors.New(pkgerrors.CodeNotFound, "image not found")
	}
	if err := s.store.DeleteObject(ctx, "", id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete image")
	}
	return nil
}

func (s *service) resolveFolder(folder string) (string, error) {
	folder = strings.ToLower(strings.TrimSpace(folder))
	if folder == "" {
		return s.defaultFolder, nil
	}
	if !folderPattern.MatchString(folder) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "folder must be lowercase letters, digits, dash or underscore")
	}
	return folder, nil
}

func userPrefix(folder string, userID uuid.UUID) string {
	return folder + "/" + userID.String()
}

// Remover deletes stored images without an ownership check. The catalog
// uses it after it has already authorized the seller.
type Remover struct {
	store objectStore
}

// NewRemover wraps an object store for catalog image cleanup.
func NewRemover(store objectStore) *Remover {
	return &Remover{store: store}
}

// Delete removes the object identified by publicID.
func (r *Remover) Delete(ctx context.Context, publicID string) error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.DeleteObject(ctx, "", publicID)
}
