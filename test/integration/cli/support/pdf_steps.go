package support

import (
	"fmt"
	"strings"

	"github.com/cucumber/godog"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// aPDFContainingTheImages builds a PDF with one page per comma-separated
// image of the scratch directory.
func (testCtx *TestContext) aPDFContainingTheImages(name, images string) error {
	var paths []string
	for _, img := range strings.Split(images, ",") {
		paths = append(paths, testCtx.Path(strings.TrimSpace(img)))
	}
	if err := api.ImportImagesFile(paths, testCtx.Path(name), nil, nil); err != nil {
		return fmt.Errorf("failed to build PDF %s: %w", name, err)
	}
	return nil
}

// aPDFWithTheSymbols draws one symbol image per text and imports them as
// consecutive pages.
func (testCtx *TestContext) aPDFWithTheSymbols(name, texts string) error {
	var images []string
	for i, text := range strings.Split(texts, ",") {
		img := fmt.Sprintf("%s-page%d.png", strings.TrimSuffix(name, ".pdf"), i+1)
		if err := testCtx.aQRImageEncoding(img, strings.TrimSpace(text)); err != nil {
			return err
		}
		images = append(images, img)
	}
	return testCtx.aPDFContainingTheImages(name, strings.Join(images, ","))
}

func (testCtx *TestContext) aFileThatIsNotAPDF(name string) error {
	return testCtx.aFileContaining(name, "this is plain text, not a document")
}

// RegisterPDFSteps registers the PDF fixture steps.
func (testCtx *TestContext) RegisterPDFSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a PDF "([^"]*)" containing the images "([^"]*)"$`, testCtx.aPDFContainingTheImages)
	sc.Step(`^a PDF "([^"]*)" with the symbols "([^"]*)"$`, testCtx.aPDFWithTheSymbols)
	sc.Step(`^a file "([^"]*)" that is not a PDF$`, testCtx.aFileThatIsNotAPDF)
}
