package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// maxUploadBytes bounds multipart request bodies (form fields plus one image).
const maxUploadBytes = 16 << 20

// imageError reports a client-side problem with an uploaded image, attached
// to a named form field.
type imageError struct {
	Field   string
	Message string
}

func (e *imageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// applyImageRules resolves the stored image location for an update carrying
// an optional upload and a delete_image flag. When the flag is set, any
// stored image is removed regardless of attachment; otherwise an attached
// image replaces the current one. Returns the new location.
func applyImageRules(r *http.Request, images ImageStore, ownerID, current string, deleteImage bool) (string, error) {
	ctx := r.Context()

	if deleteImage {
		if current != "" {
			if err := images.Delete(ctx, current); err != nil {
				return "", fmt.Errorf("delete stored image: %w", err)
			}
		}
		return "", nil
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		if err == http.ErrMissingFile {
			return current, nil
		}
		return "", &imageError{Field: "image", Message: "Invalid image upload."}
	}
	defer file.Close()

	if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		return "", &imageError{Field: "image", Message: "Unsupported file type."}
	}

	location, err := images.Store(ctx, ownerID, header.Filename, file)
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}

	if current != "" && current != location {
		if err := images.Delete(ctx, current); err != nil {
			return "", fmt.Errorf("delete replaced image: %w", err)
		}
	}

	return location, nil
}
