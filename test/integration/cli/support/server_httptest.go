package support

import (
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/MeKo-Tech/qrengine/internal/config"
	"github.com/MeKo-Tech/qrengine/internal/server"
)

// HTTPTestServerWrapper wraps an in-process server for integration tests.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
}

// createTestHTTPServer starts the real API on an httptest listener. mutate
// adjusts the default configuration first.
func (testCtx *TestContext) createTestHTTPServer(mutate func(*config.Config)) error {
	cfg := config.DefaultConfig()
	cfg.Limits.MaxWorkers = 2
	if mutate != nil {
		mutate(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid test configuration: %w", err)
	}

	srv, err := server.NewServer(server.ConfigFrom(&cfg))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	testCtx.HTTPTestServer = &HTTPTestServerWrapper{
		Server:     httptest.NewServer(mux),
		TestServer: srv,
	}
	return nil
}

func (testCtx *TestContext) stopTestHTTPServer() {
	if testCtx.HTTPTestServer != nil && testCtx.HTTPTestServer.Server != nil {
		testCtx.HTTPTestServer.Server.Close()
	}
	testCtx.HTTPTestServer = nil
}
