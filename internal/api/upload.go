package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

const imageField = "image"

type imagePayload struct {
	ImageData string `json:"imageData"`
}

// readImage accepts a multipart form field "image", a JSON body
// {"imageData": "<base64 or data URL>"}, or raw image bytes.
func readImage(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "multipart/form-data":
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			return nil, fmt.Errorf("invalid upload: %w", err)
		}
		f, _, err := r.FormFile(imageField)
		if err != nil {
			return nil, errors.New("image field is required")
		}
		defer f.Close()
		return readAllNonEmpty(f)

	case mediaType == "application/json":
		var body imagePayload
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, errors.New("invalid request body")
		}
		data := body.ImageData
		if i := strings.Index(data, ","); strings.HasPrefix(data, "data:") && i >= 0 {
			data = data[i+1:]
		}
		img, err := base64.StdEncoding.DecodeString(data)
		if err != nil || len(img) == 0 {
			return nil, errors.New("imageData must be base64 encoded")
		}
		return img, nil

	default:
		return readAllNonEmpty(r.Body)
	}
}

func readAllNonEmpty(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("image is required")
	}
	return data, nil
}
