package support

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"
)

// freePort asks the kernel for an unused TCP port.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// StartServer starts `qrengine serve` on a free port with extra flags and
// waits until /health answers.
func (testCtx *TestContext) StartServer(extraArgs ...string) error {
	port, err := freePort()
	if err != nil {
		return fmt.Errorf("failed to find a free port: %w", err)
	}
	testCtx.ServerPort = port

	args := append([]string{"serve", "--host", testCtx.ServerHost, "--port", strconv.Itoa(port)}, extraArgs...)
	cmd := exec.Command(testCtx.BinaryPath, args...) //nolint:gosec // G204: binary under test
	cmd.Dir = testCtx.TempDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	testCtx.ServerProcess = cmd.Process

	if err := testCtx.waitForServerReady(); err != nil {
		if stopErr := testCtx.StopServerProcess(); stopErr != nil {
			return fmt.Errorf("server failed to start and also failed to stop: %w; stop error: %w", err, stopErr)
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// StopServerProcess sends SIGTERM and waits for the graceful shutdown.
func (testCtx *TestContext) StopServerProcess() error {
	if testCtx.ServerProcess == nil {
		return nil
	}
	if err := testCtx.ServerProcess.Signal(syscall.SIGTERM); err != nil {
		if killErr := testCtx.ServerProcess.Kill(); killErr != nil {
			return fmt.Errorf("failed to kill server process: %w", killErr)
		}
	}
	state, err := testCtx.ServerProcess.Wait()
	testCtx.ServerProcess = nil
	if err != nil {
		return err
	}
	if !state.Success() {
		return fmt.Errorf("server exited with %s", state)
	}
	return nil
}

// waitForServerReady waits for the server to respond to health checks.
func (testCtx *TestContext) waitForServerReady() error {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if testCtx.isServerHealthy() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return errors.New("server did not become ready within timeout")
}

func (testCtx *TestContext) isServerHealthy() bool {
	client := &http.Client{Timeout: time.Second}
	resp, err := client.Get(testCtx.GetServerURL() + "/health")
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// GetServerURL returns the base URL of the running server.
func (testCtx *TestContext) GetServerURL() string {
	if testCtx.HTTPTestServer != nil && testCtx.HTTPTestServer.Server != nil {
		return testCtx.HTTPTestServer.Server.URL
	}
	return fmt.Sprintf("http://%s:%d", testCtx.ServerHost, testCtx.ServerPort)
}
