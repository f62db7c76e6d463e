package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang/snappy"
)

// snappyWriter buffers the response so it can be snappy-encoded as one
// block, matching what the client decodes.
type snappyWriter struct {
	http.ResponseWriter
	body       bytes.Buffer
	statusCode int
}

func (sw *snappyWriter) WriteHeader(code int) {
	sw.statusCode = code
}

func (sw *snappyWriter) Write(b []byte) (int, error) {
	return sw.body.Write(b)
}

// SnappyMiddleware transparently decodes request bodies sent with
// Content-Encoding: snappy and encodes responses when the client asks
// for it via Accept-Encoding. Sync payloads over rural links are mostly
// repetitive JSON, so even snappy's modest ratio pays off.
func SnappyMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Content-Encoding") == "snappy" {
				encoded, err := io.ReadAll(r.Body)
				if err != nil {
					http.Error(w, "failed to read request body", http.StatusBadRequest)
					return
				}
				decoded, err := snappy.Decode(nil, encoded)
				if err != nil {
					logger.Warn("failed to decode snappy request body", "error", err)
					http.Error(w, "malformed snappy body", http.StatusBadRequest)
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(decoded))
				r.ContentLength = int64(len(decoded))
				r.Header.Del("Content-Encoding")
			}

			if !strings.Contains(r.Header.Get("Accept-Encoding"), "snappy") {
				next.ServeHTTP(w, r)
				return
			}

			sw := &snappyWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(sw, r)

			encoded := snappy.Encode(nil, sw.body.Bytes())
			w.Header().Set("Content-Encoding", "snappy")
			w.Header().Set("Content-Length", strconv.Itoa(len(encoded)))
			w.WriteHeader(sw.statusCode)
			if _, err := w.Write(encoded); err != nil {
				logger.Error("failed to write snappy response", "error", err)
			}
		})
	}
}
