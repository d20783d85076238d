package controllers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campusmart/campusmart-backend/internal/media"
	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
	"github.com/campusmart/campusmart-backend/pkg/logger"
)

const (
	multipartOverhead = 1 << 20
	imageFormField    = "image"
	folderFormField   = "folder"
	mediaService      = "media service"
)

// MediaUpload stores the multipart "image" field and returns its public url.
func MediaUpload(svc media.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return handleCaller(logg, svc != nil, mediaService, func(w http.ResponseWriter, r *http.Request, owner uuid.UUID) error {
		limit := maxBytes + multipartOverhead
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		if err := r.ParseMultipartForm(limit); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return pkgerrors.New(pkgerrors.CodeValidation, "image too large")
			}
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body")
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile(imageFormField)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "image is required")
		}
		defer file.Close()

		stored, err := svc.Upload(r.Context(), owner, media.UploadInput{
			File:   file,
			Size:   header.Size,
			Folder: r.FormValue(folderFormField),
		})
		if err != nil {
			return err
		}
		return created(w, stored)
	})
}

// MediaDelete removes one of the caller's images. The object id is the
// wildcard path suffix.
func MediaDelete(svc media.Service, logg *logger.Logger) http.HandlerFunc {
	return handleCaller(logg, svc != nil, mediaService, func(w http.ResponseWriter, r *http.Request, owner uuid.UUID) error {
		return ack(w, svc.Delete(r.Context(), owner, chi.URLParam(r, "*")), "deleted")
	})
}
