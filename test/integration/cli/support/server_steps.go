package support

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/qrengine/internal/config"
)

// theServerIsRunning starts the built binary.
func (testCtx *TestContext) theServerIsRunning() error {
	return testCtx.StartServer()
}

// theServerIsRunningWithFlags starts the built binary with extra flags.
func (testCtx *TestContext) theServerIsRunningWithFlags(flags string) error {
	args, err := splitCommand(flags)
	if err != nil {
		return err
	}
	return testCtx.StartServer(args...)
}

// anInProcessServerIsRunning serves the API from this process.
func (testCtx *TestContext) anInProcessServerIsRunning() error {
	return testCtx.createTestHTTPServer(nil)
}

func (testCtx *TestContext) anInProcessServerWithRateLimit(perMinute int) error {
	return testCtx.createTestHTTPServer(func(cfg *config.Config) {
		cfg.Server.RateLimit.Enabled = true
		cfg.Server.RateLimit.RequestsPerMinute = perMinute
		cfg.Server.RateLimit.RequestsPerHour = perMinute * 60
	})
}

func (testCtx *TestContext) do(req *http.Request) error {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(body)
	testCtx.LastHTTPHeaders = make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

// iGET sends a GET request to path.
func (testCtx *TestContext) iGET(path string) error {
	req, err := http.NewRequest(http.MethodGet, testCtx.GetServerURL()+path, nil)
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

// iPOSTJSON sends a JSON body to path.
func (testCtx *TestContext) iPOSTJSON(path string, body *godog.DocString) error {
	req, err := http.NewRequest(http.MethodPost, testCtx.GetServerURL()+path, strings.NewReader(body.Content))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return testCtx.do(req)
}

// iScanTheImageViaTheAPI posts a scratch image as base64 JSON to /qr/scan.
func (testCtx *TestContext) iScanTheImageViaTheAPI(name string) error {
	raw, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	payload, err := json.Marshal(map[string]any{"image": base64.StdEncoding.EncodeToString(raw)})
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, testCtx.GetServerURL()+"/qr/scan", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return testCtx.do(req)
}

func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("status %d, want %d\nBody: %s", testCtx.LastHTTPStatusCode, code, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) responseJSON() (map[string]any, error) {
	var body map[string]any
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &body); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w\n%s", err, testCtx.LastHTTPResponse)
	}
	return body, nil
}

// lookup walks a dotted path such as "detail.code" or "size.width".
func lookup(body map[string]any, path string) (any, bool) {
	var cur any = body
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// theResponseFieldShouldBe compares a field's JSON rendering with want.
func (testCtx *TestContext) theResponseFieldShouldBe(path, want string) error {
	body, err := testCtx.responseJSON()
	if err != nil {
		return err
	}
	v, ok := lookup(body, path)
	if !ok {
		return fmt.Errorf("response has no field %s\n%s", path, testCtx.LastHTTPResponse)
	}
	var got string
	switch x := v.(type) {
	case string:
		got = x
	case float64:
		got = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		raw, _ := json.Marshal(x)
		got = string(raw)
	}
	if got != want {
		return fmt.Errorf("field %s is %q, want %q", path, got, want)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldHaveField(path string) error {
	body, err := testCtx.responseJSON()
	if err != nil {
		return err
	}
	if _, ok := lookup(body, path); !ok {
		return fmt.Errorf("response has no field %s\n%s", path, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseCodesShouldBe compares the "codes" array in order.
func (testCtx *TestContext) theResponseCodesShouldBe(list string) error {
	var body struct {
		Codes []string `json:"codes"`
	}
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &body); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	want := []string{}
	for _, s := range strings.Split(list, ",") {
		if s = strings.TrimSpace(s); s != "" {
			want = append(want, s)
		}
	}
	if body.Codes == nil {
		body.Codes = []string{}
	}
	if !slices.Equal(body.Codes, want) {
		return fmt.Errorf("codes %q, want %q", body.Codes, want)
	}
	return nil
}

// theGeneratedImageShouldScanTo decodes the base64 PNG of a generate
// response and scans it back through the API.
func (testCtx *TestContext) theGeneratedImageShouldScanTo(want string) error {
	var gen struct {
		Image string `json:"image"`
	}
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &gen); err != nil {
		return fmt.Errorf("generate response is not JSON: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(gen.Image)
	if err != nil {
		return fmt.Errorf("generated image is not base64: %w", err)
	}
	if err := os.WriteFile(testCtx.Path("generated.png"), raw, 0o600); err != nil {
		return err
	}
	if err := testCtx.iScanTheImageViaTheAPI("generated.png"); err != nil {
		return err
	}
	if err := testCtx.theResponseStatusShouldBe(http.StatusOK); err != nil {
		return err
	}
	return testCtx.theResponseCodesShouldBe(want)
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, want string) error {
	got, ok := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]
	if !ok {
		return fmt.Errorf("response has no %s header", name)
	}
	if got != want {
		return fmt.Errorf("header %s is %q, want %q", name, got, want)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain %q\n%s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

// iSendRequestsTo repeats a small generate request and keeps the last response.
func (testCtx *TestContext) iSendRequestsTo(n int, path string) error {
	for range n {
		if err := testCtx.iPOSTJSON(path, &godog.DocString{Content: `{"data":"x","output_format":"ascii"}`}); err != nil {
			return err
		}
	}
	return nil
}

// RegisterServerSteps registers the HTTP API steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the server is running$`, testCtx.theServerIsRunning)
	sc.Step(`^the server is running with "([^"]*)"$`, testCtx.theServerIsRunningWithFlags)
	sc.Step(`^an in-process server is running$`, testCtx.anInProcessServerIsRunning)
	sc.Step(`^an in-process server limited to (\d+) requests per minute is running$`, testCtx.anInProcessServerWithRateLimit)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I POST to "([^"]*)" with JSON:$`, testCtx.iPOSTJSON)
	sc.Step(`^I scan the image "([^"]*)" via the API$`, testCtx.iScanTheImageViaTheAPI)
	sc.Step(`^I send (\d+) generate requests to "([^"]*)"$`, testCtx.iSendRequestsTo)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseFieldShouldBe)
	sc.Step(`^the response should have the field "([^"]*)"$`, testCtx.theResponseShouldHaveField)
	sc.Step(`^the response codes should be "([^"]*)"$`, testCtx.theResponseCodesShouldBe)
	sc.Step(`^the generated image should scan to "([^"]*)"$`, testCtx.theGeneratedImageShouldScanTo)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
}
