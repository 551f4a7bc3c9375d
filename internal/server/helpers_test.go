package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrengine/internal/encoder"
	"github.com/MeKo-Tech/qrengine/internal/pipeline"
	"github.com/MeKo-Tech/qrengine/internal/qr"
	"github.com/MeKo-Tech/qrengine/internal/testutil"
)

// newTestServer builds a server over a real pipeline with two workers.
func newTestServer(t *testing.T, configure ...func(*Config)) *Server {
	t.Helper()
	cfg := Config{
		CORSOrigin:  "*",
		MaxUploadMB: 10,
		TimeoutSec:  30,
		Pipeline:    pipeline.DefaultConfig(),
	}
	cfg.Pipeline.Parallel.MaxWorkers = 2
	for _, fn := range configure {
		fn(&cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s
}

func newTestMux(s *Server) *http.ServeMux {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

// symbolPNG encodes text at level M and returns a PNG with a four module
// quiet zone.
func symbolPNG(t *testing.T, text string, scale int) []byte {
	t.Helper()
	sym, err := encoder.Encode([]byte(text), qr.LevelM, encoder.Options{})
	require.NoError(t, err)
	return testutil.EncodePNG(t, testutil.RasterizeMatrix(sym.Modules, scale, 4))
}

func blankPNG(t *testing.T, side int) []byte {
	t.Helper()
	return testutil.EncodePNG(t, testutil.Flat(side, side, color.White))
}

func b64(data []byte) string { return base64.StdEncoding.EncodeToString(data) }

// doJSON sends body as JSON and returns the recorded response.
func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch v := body.(type) {
	case nil:
	case string:
		buf.WriteString(v)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(v))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// errorDetail decodes an error response.
func errorDetail(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Detail
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, "png", format)
	return img
}

func ptr[T any](v T) *T { return &v }
