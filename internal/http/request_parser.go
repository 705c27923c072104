package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"txlens/internal/ingest"
)

// maxSearchQueryLen bounds merchant search queries.
const maxSearchQueryLen = 200

// ParseSearchQuery returns the sanitized "q" parameter, truncated to a sane
// length. An empty result means no search was requested.
func ParseSearchQuery(query url.Values) string {
	q := sanitizeInput(query.Get("q"))
	if r := []rune(q); len(r) > maxSearchQueryLen {
		q = string(r[:maxSearchQueryLen])
	}
	return q
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// RequireGET is a convenience function for read-only handlers.
func RequireGET(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodGet, http.MethodHead)
}

// maxMerchantBodyBytes bounds exclude requests; a merchant is one short line.
const maxMerchantBodyBytes = 4 << 10

// ParseMerchant reads the "merchant" field from a form or JSON body. The
// value is sanitized but otherwise kept as typed, since exclusion matches
// descriptions exactly.
func ParseMerchant(w http.ResponseWriter, r *http.Request) (string, *HTMXResponseBuilder) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMerchantBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", PayloadTooLargeError("Request too large")
		}
		return "", BadRequestError("Invalid request format")
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var req struct {
			Merchant string `json:"merchant"`
		}
		if err := json.Unmarshal(trimmed, &req); err != nil {
			return "", BadRequestError("Invalid request format")
		}
		return strings.TrimSpace(sanitizeInput(req.Merchant)), nil
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return "", BadRequestError("Invalid request format")
	}
	return strings.TrimSpace(sanitizeInput(form.Get("merchant"))), nil
}

// ParseUploads reads the multipart "files" field. The returned sources must
// be released with the close function, even on error.
func ParseUploads(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]ingest.Source, func(), *HTMXResponseBuilder) {
	noop := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, noop, PayloadTooLargeError(fmt.Sprintf("Upload exceeds %d MB", maxBytes>>20))
		}
		return nil, noop, BadRequestError("Expected a multipart upload")
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return nil, noop, BadRequestError("Choose at least one CSV file")
	}

	var files []multipart.File
	release := func() {
		for _, f := range files {
			_ = f.Close()
		}
		_ = r.MultipartForm.RemoveAll()
	}

	sources := make([]ingest.Source, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			release()
			return nil, noop, BadRequestError("Could not read " + fh.Filename)
		}
		files = append(files, f)
		sources = append(sources, ingest.Source{Name: fh.Filename, Reader: f})
	}
	return sources, release, nil
}
