package support

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/qrengine/internal/barcode"
	"github.com/MeKo-Tech/qrengine/internal/encoder"
	"github.com/MeKo-Tech/qrengine/internal/qr"
	"github.com/MeKo-Tech/qrengine/internal/utils"
)

// fixtureScale and fixtureQuiet size the symbols drawn for scenarios.
const (
	fixtureScale = 6
	fixtureQuiet = 4
)

// symbolImage rasterizes text as a level M symbol.
func symbolImage(text string) (*image.Gray, error) {
	sym, err := encoder.Encode([]byte(text), qr.LevelM, encoder.Options{})
	if err != nil {
		return nil, err
	}
	n := sym.Size()
	side := (n + 2*fixtureQuiet) * fixtureScale
	img := image.NewGray(image.Rect(0, 0, side, side))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	for y := range n {
		for x := range n {
			if !sym.Dark(x, y) {
				continue
			}
			for dy := range fixtureScale {
				for dx := range fixtureScale {
					img.SetGray((x+fixtureQuiet)*fixtureScale+dx, (y+fixtureQuiet)*fixtureScale+dy, color.Gray{})
				}
			}
		}
	}
	return img, nil
}

func (testCtx *TestContext) savePNG(name string, img image.Image) error {
	path := testCtx.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	f, err := os.Create(path) //nolint:gosec // G304: scratch directory
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return png.Encode(f, img)
}

// aQRImageEncoding writes a single-symbol PNG.
func (testCtx *TestContext) aQRImageEncoding(name, text string) error {
	img, err := symbolImage(text)
	if err != nil {
		return err
	}
	return testCtx.savePNG(name, img)
}

// aQRImageWithSymbols writes a white canvas with one symbol per
// comma-separated text, laid out left to right.
func (testCtx *TestContext) aQRImageWithSymbols(name, texts string) error {
	var symbols []*image.Gray
	width, height := 0, 0
	for _, text := range strings.Split(texts, ",") {
		img, err := symbolImage(strings.TrimSpace(text))
		if err != nil {
			return err
		}
		symbols = append(symbols, img)
		width += img.Rect.Dx()
		height = max(height, img.Rect.Dy())
	}
	canvas := imaging.New(width, height, color.White)
	x := 0
	for _, s := range symbols {
		canvas = imaging.Paste(canvas, s, image.Pt(x, 0))
		x += s.Rect.Dx()
	}
	return testCtx.savePNG(name, canvas)
}

// aResizedQRImageEncoding writes a symbol scaled to side pixels.
func (testCtx *TestContext) aResizedQRImageEncoding(name, text string, side int) error {
	img, err := symbolImage(text)
	if err != nil {
		return err
	}
	return testCtx.savePNG(name, imaging.Resize(img, side, side, imaging.NearestNeighbor))
}

func (testCtx *TestContext) aBlankImage(name string, side int) error {
	return testCtx.savePNG(name, imaging.New(side, side, color.White))
}

// theImageShouldBePixels checks the dimensions of an image file.
func (testCtx *TestContext) theImageShouldBePixels(name string, w, h int) error {
	img, err := imaging.Open(testCtx.Path(name))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
		return fmt.Errorf("image %s is %dx%d, want %dx%d", name, b.Dx(), b.Dy(), w, h)
	}
	return nil
}

// theImageShouldDecodeWith decodes the image with an independent backend
// so generation is not only checked by its own scanner.
func (testCtx *TestContext) theImageShouldDecodeWith(name, backendName, want string) error {
	img, err := imaging.Open(testCtx.Path(name))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	backend, err := barcode.New(backendName)
	if err != nil {
		return err
	}
	results, err := backend.Decode(context.Background(), img, barcode.Options{TryHarder: true})
	if err != nil {
		return fmt.Errorf("%s backend could not decode %s: %w", backendName, name, err)
	}
	for _, r := range results {
		if r.Text == want {
			return nil
		}
	}
	return fmt.Errorf("%s backend did not read %q from %s (got %d results)", backendName, want, name, len(results))
}

// scanOutput is the JSON shape printed by `qrengine scan --format json`.
type scanOutput []struct {
	File   string `json:"file"`
	Error  string `json:"error"`
	Result *struct {
		Symbols []struct {
			Text string `json:"text"`
		} `json:"symbols"`
		PartialFailures int `json:"partial_failures"`
	} `json:"result"`
}

func (testCtx *TestContext) decodedCodes() ([]string, error) {
	var out scanOutput
	if err := json.Unmarshal([]byte(testCtx.LastStdout), &out); err != nil {
		return nil, fmt.Errorf("scan output is not JSON: %w\n%s", err, testCtx.LastStdout)
	}
	codes := []string{}
	for _, r := range out {
		if r.Result == nil {
			continue
		}
		for _, s := range r.Result.Symbols {
			codes = append(codes, s.Text)
		}
	}
	return codes, nil
}

// theDecodedCodesShouldBe compares the comma-separated codes in order.
func (testCtx *TestContext) theDecodedCodesShouldBe(list string) error {
	codes, err := testCtx.decodedCodes()
	if err != nil {
		return err
	}
	want := []string{}
	for _, s := range strings.Split(list, ",") {
		if s = strings.TrimSpace(s); s != "" {
			want = append(want, s)
		}
	}
	if !slices.Equal(codes, want) {
		return fmt.Errorf("decoded %q, want %q", codes, want)
	}
	return nil
}

func (testCtx *TestContext) noCodesShouldBeDecoded() error {
	return testCtx.theDecodedCodesShouldBe("")
}

func (testCtx *TestContext) theOverlayDirectoryShouldHoldImages(dir string, n int) error {
	entries, err := os.ReadDir(testCtx.Path(dir))
	if err != nil {
		return err
	}
	count := 0
	for _, e := range entries {
		if utils.IsSupportedImage(e.Name()) {
			count++
		}
	}
	if count != n {
		return fmt.Errorf("overlay directory %s holds %d images, want %d", dir, count, n)
	}
	return nil
}

// RegisterImageSteps registers the image fixture and scan result steps.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a QR image "([^"]*)" encoding "([^"]*)"$`, testCtx.aQRImageEncoding)
	sc.Step(`^an image "([^"]*)" with the symbols "([^"]*)"$`, testCtx.aQRImageWithSymbols)
	sc.Step(`^a QR image "([^"]*)" encoding "([^"]*)" resized to (\d+) pixels$`, testCtx.aResizedQRImageEncoding)
	sc.Step(`^a blank image "([^"]*)" of (\d+) pixels$`, testCtx.aBlankImage)
	sc.Step(`^the image "([^"]*)" should be (\d+)x(\d+) pixels$`, testCtx.theImageShouldBePixels)
	sc.Step(`^the image "([^"]*)" should decode with the (\w+) backend to "([^"]*)"$`, testCtx.theImageShouldDecodeWith)
	sc.Step(`^the decoded codes should be "([^"]*)"$`, testCtx.theDecodedCodesShouldBe)
	sc.Step(`^no codes should be decoded$`, testCtx.noCodesShouldBeDecoded)
	sc.Step(`^the directory "([^"]*)" should hold (\d+) images?$`, testCtx.theOverlayDirectoryShouldHoldImages)
}
