package handlers

import (
	"errors"
	"net/http"
)

const defaultMaxUpload = 8 << 20

var errUploadTooLarge = errors.New("upload too large")

func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	limit := h.cfg.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUpload
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errUploadTooLarge
		}
		return err
	}
	return nil
}

// saveUpload stores the file sent under field and returns its reference.
// A missing file is reported as ok=false without error.
func (h *Handler) saveUpload(r *http.Request, field, folder string) (string, bool, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	defer file.Close()
	ref, err := h.svc.Proofs.Save(r.Context(), folder, header.Filename, file)
	if err != nil {
		return "", false, err
	}
	return ref, true, nil
}

func (h *Handler) respondMultipartError(w http.ResponseWriter, err error) {
	if errors.Is(err, errUploadTooLarge) {
		respondError(w, http.StatusRequestEntityTooLarge, "upload_too_large")
		return
	}
	respondError(w, http.StatusBadRequest, "invalid multipart payload")
}
