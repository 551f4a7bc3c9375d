// Package pdf pulls the embedded raster images out of PDF documents so they
// can be scanned like any other image.
package pdf

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // extracted image formats
	_ "image/png"  // extracted image formats
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	_ "golang.org/x/image/tiff" // extracted image formats
)

// ErrPassword is returned when a document is encrypted and the password is
// missing or wrong.
var ErrPassword = errors.New("pdf: document is encrypted")

// Options selects what to extract.
type Options struct {
	// Pages is a page selection like "1-3,5"; empty means every page.
	Pages string
	// Password opens encrypted documents.
	Password string
	// MaxImages bounds the number of images returned; 0 means no limit.
	MaxImages int
}

// Page groups the images found on one page.
type Page struct {
	Number int
	Images []image.Image
}

// ExtractImages returns the images of the selected pages in page order.
func ExtractImages(filename string, opts Options) ([]Page, error) {
	pages, err := ParsePageRange(opts.Pages)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", opts.Pages, err)
	}

	tempDir, err := os.MkdirTemp("", "qrengine-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var selected []string
	for _, p := range pages {
		selected = append(selected, strconv.Itoa(p))
	}

	conf := model.NewDefaultConfiguration()
	if opts.Password != "" {
		conf.UserPW = opts.Password
		conf.OwnerPW = opts.Password
	}
	if err := api.ExtractImagesFile(filename, tempDir, selected, conf); err != nil {
		if isPasswordError(err) {
			return nil, fmt.Errorf("%w: %w", ErrPassword, err)
		}
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return collectExtractedImages(tempDir, base, opts.MaxImages)
}

func loadImageFile(path string) (image.Image, error) {
	file, err := os.Open(path) //nolint:gosec // G304: files come from our own temp directory
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	return img, err
}

// collectExtractedImages groups the files pdfcpu wrote into pages. Files it
// cannot attribute to a page or decode are skipped.
func collectExtractedImages(dir, base string, maxImages int) ([]Page, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	byPage := make(map[int][]image.Image)
	count := 0
	for _, name := range names {
		if maxImages > 0 && count >= maxImages {
			slog.Warn("PDF image limit reached", "limit", maxImages)
			break
		}
		pageNum, err := parsePageFromFilename(name, base)
		if err != nil {
			continue
		}
		img, err := loadImageFile(filepath.Join(dir, name))
		if err != nil {
			slog.Debug("Skipping undecodable PDF image", "file", name, "error", err)
			continue
		}
		byPage[pageNum] = append(byPage[pageNum], img)
		count++
	}

	out := make([]Page, 0, len(byPage))
	for n, imgs := range byPage {
		out = append(out, Page{Number: n, Images: imgs})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// parsePageFromFilename reads the page number from an extracted file name.
// pdfcpu writes <base>_<page>_<id>.<ext>; the older page_<page>_... form is
// accepted too.
func parsePageFromFilename(filename, base string) (int, error) {
	rest := ""
	switch {
	case base != "" && strings.HasPrefix(filename, base+"_"):
		rest = strings.TrimPrefix(filename, base+"_")
	case strings.HasPrefix(filename, "page_"):
		rest = strings.TrimPrefix(filename, "page_")
	default:
		return 0, errors.New("not a page file")
	}
	field, _, _ := strings.Cut(rest, "_")
	field = strings.TrimSuffix(field, filepath.Ext(field))
	n, err := strconv.Atoi(field)
	if err != nil || n < 1 {
		return 0, errors.New("invalid page number")
	}
	return n, nil
}

// ParsePageRange parses a page selection like "1-5" or "1,3,5".
func ParsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil
	}

	var pages []int
	seen := make(map[int]bool)
	for _, part := range strings.Split(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		for _, p := range tokenPages {
			if !seen[p] {
				seen[p] = true
				pages = append(pages, p)
			}
		}
	}
	return pages, nil
}

func parseRangeToken(part string) ([]int, error) {
	if strings.Contains(part, "-") {
		rangeParts := strings.Split(part, "-")
		if len(rangeParts) != 2 {
			return nil, fmt.Errorf("invalid range format: %s", part)
		}
		start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid start page: %s", rangeParts[0])
		}
		end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid end page: %s", rangeParts[1])
		}
		if start < 1 {
			return nil, fmt.Errorf("page numbers start at 1, got %d", start)
		}
		if start > end {
			return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
		}
		out := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	page, err := strconv.Atoi(part)
	if err != nil {
		return nil, fmt.Errorf("invalid page number: %s", part)
	}
	if page < 1 {
		return nil, fmt.Errorf("page numbers start at 1, got %d", page)
	}
	return []int{page}, nil
}

func isPasswordError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, kw := range []string{"password", "encrypted", "decrypt"} {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
