package middleware

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// echoSale отвечает телом запроса с заданным Content-Type, как это делает обработчик продаж.
func echoSale(contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		defer r.Body.Close()

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	}
}

func gzipBytes(t *testing.T, s string) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(s)); err != nil {
		t.Fatalf("write gzip: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return &buf
}

func TestGzipMiddleware(t *testing.T) {
	const sale = `{"dni":"12345678","productCode":"COFFEE-1"}`

	tests := []struct {
		name            string
		compressRequest bool
		acceptEncoding  string
		contentType     string
		wantEncoding    string
	}{
		{
			name:           "json response compressed",
			acceptEncoding: "gzip, deflate",
			contentType:    "application/json",
			wantEncoding:   "gzip",
		},
		{
			name:           "plain text compressed",
			acceptEncoding: "gzip",
			contentType:    "text/plain; charset=utf-8",
			wantEncoding:   "gzip",
		},
		{
			name:           "client does not accept gzip",
			acceptEncoding: "",
			contentType:    "application/json",
			wantEncoding:   "",
		},
		{
			name:           "binary response left as is",
			acceptEncoding: "gzip",
			contentType:    "image/png",
			wantEncoding:   "",
		},
		{
			name:            "compressed request body",
			compressRequest: true,
			acceptEncoding:  "gzip",
			contentType:     "application/json",
			wantEncoding:    "gzip",
		},
		{
			name:            "compressed request, plain response",
			compressRequest: true,
			contentType:     "application/json",
			wantEncoding:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader = strings.NewReader(sale)
			if tt.compressRequest {
				body = gzipBytes(t, sale)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/sales", body)
			req.Header.Set("Content-Type", "application/json")
			if tt.compressRequest {
				req.Header.Set("Content-Encoding", "gzip")
			}
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}

			w := httptest.NewRecorder()
			GzipMiddleware(echoSale(tt.contentType)).ServeHTTP(w, req)

			res := w.Result()
			defer res.Body.Close()

			if res.StatusCode != http.StatusCreated {
				t.Fatalf("status: got %d want %d", res.StatusCode, http.StatusCreated)
			}
			if ce := res.Header.Get("Content-Encoding"); ce != tt.wantEncoding {
				t.Fatalf("content-encoding: got %q want %q", ce, tt.wantEncoding)
			}

			var reader io.Reader = res.Body
			if tt.wantEncoding == "gzip" {
				gr, err := gzip.NewReader(res.Body)
				if err != nil {
					t.Fatalf("new gzip reader: %v", err)
				}
				defer gr.Close()
				reader = gr
			}

			got, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			if string(got) != sale {
				t.Fatalf("body: got %q want %q", got, sale)
			}
		})
	}
}

func TestGzipMiddleware_BrokenRequestBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/winners/claim", strings.NewReader("not gzip"))
	req.Header.Set("Content-Encoding", "gzip")

	w := httptest.NewRecorder()
	GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d want %d", w.Code, http.StatusBadRequest)
	}

	var resp errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Success || resp.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("unexpected error body: %+v", resp)
	}
}
