package host

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/florianilch/lodestone/internal/docstore"
)

// maxDocumentSize caps accepted request bodies.
const maxDocumentSize = 4 << 20

// shape is the top-level JSON type a document must have.
type shape byte

const (
	shapeObject shape = '{'
	shapeArray  shape = '['
)

func (s shape) empty() []byte {
	if s == shapeArray {
		return []byte("[]")
	}
	return []byte("{}")
}

// saveHandler stores the request body in store after validating it.
func saveHandler(store docstore.Store, want shape) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentSize))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSONError(ctx, w, "document too large", http.StatusRequestEntityTooLarge)
				return
			}
			writeJSONError(ctx, w, "failed to read body", http.StatusBadRequest)
			return
		}

		body = bytes.TrimSpace(body)
		if !json.Valid(body) {
			writeJSONError(ctx, w, "body is not valid JSON", http.StatusBadRequest)
			return
		}
		if len(body) == 0 || shape(body[0]) != want {
			writeJSONError(ctx, w, "unexpected document type", http.StatusBadRequest)
			return
		}

		if err := store.Write(ctx, body); err != nil {
			slog.ErrorContext(ctx, "failed to store document", "path", r.URL.Path, "error", err)
			writeJSONError(ctx, w, "failed to store document", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

// loadHandler returns the stored document, or an empty one if none was saved.
func loadHandler(store docstore.Store, want shape) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		data, err := store.Read(ctx)
		if errors.Is(err, docstore.ErrNotFound) {
			writeRawJSON(ctx, w, want.empty())
			return
		}
		if err != nil {
			slog.ErrorContext(ctx, "failed to read document", "path", r.URL.Path, "error", err)
			writeJSONError(ctx, w, "failed to read document", http.StatusInternalServerError)
			return
		}

		writeRawJSON(ctx, w, data)
	})
}

// filePickerHandler answers with the configured jar path, or 204 when unset.
func filePickerHandler(jarFile string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if jarFile == "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, jarFile)
	})
}
