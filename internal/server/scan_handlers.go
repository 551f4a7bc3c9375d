package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/MeKo-Tech/qrengine/internal/pipeline"
	"github.com/MeKo-Tech/qrengine/internal/preprocess"
)

// scanHandler decodes every symbol in an image. The image is sent either
// as JSON {"image": base64} or as a multipart "image" file.
func (s *Server) scanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	raw, opts, err := s.parseScanRequest(w, r)
	if err != nil {
		scanRequestsTotal.WithLabelValues("image", "invalid").Inc()
		writeError(w, r, err, "scan")
		return
	}
	uploadSizeBytes.WithLabelValues("image").Observe(float64(len(raw)))

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	start := time.Now()
	res, err := s.engine.Scan(ctx, raw, opts)
	scanRequestsTotal.WithLabelValues("image", statusLabel(err)).Inc()
	if err != nil {
		writeError(w, r, err, "scan")
		return
	}
	scanDuration.WithLabelValues("image").Observe(time.Since(start).Seconds())
	symbolsDecoded.WithLabelValues("image").Observe(float64(len(res.Symbols)))

	writeJSON(w, http.StatusOK, scanResponse(res))
}

func (s *Server) parseScanRequest(w http.ResponseWriter, r *http.Request) ([]byte, pipeline.ScanOptions, error) {
	opts := s.engine.ScanOptions()

	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
		if err := r.ParseMultipartForm(s.maxUploadBytes()); err != nil {
			return nil, opts, s.uploadError(err)
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			return nil, opts, invalid(CodeValidation, "image", "no image file provided")
		}
		defer func() { _ = file.Close() }()
		raw, err := io.ReadAll(file)
		if err != nil {
			return nil, opts, fmt.Errorf("read image upload: %w", err)
		}
		if opts.AutoResize, err = formBool(r, "auto_resize", opts.AutoResize); err != nil {
			return nil, opts, err
		}
		if opts.Exhaustive, err = formBool(r, "exhaustive", opts.Exhaustive); err != nil {
			return nil, opts, err
		}
		return raw, opts, nil
	}

	var body ScanRequest
	if err := s.readJSON(w, r, &body); err != nil {
		return nil, opts, err
	}
	if body.Image == "" {
		return nil, opts, invalid(CodeValidation, "image", "image must not be empty")
	}
	if body.AutoResize != nil {
		opts.AutoResize = *body.AutoResize
	}
	if body.Exhaustive != nil {
		opts.Exhaustive = *body.Exhaustive
	}
	raw, err := preprocess.DecodeBase64(body.Image)
	if err != nil {
		return nil, opts, err
	}
	return raw, opts, nil
}

// scanPDFHandler scans the images embedded in an uploaded PDF. The document
// is sent as a multipart "pdf" file with optional "pages" and "password".
func (s *Server) scanPDFHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	path, opts, err := s.parsePDFRequest(w, r)
	if err != nil {
		scanRequestsTotal.WithLabelValues("pdf", "invalid").Inc()
		writeError(w, r, err, "scan")
		return
	}
	defer func() { _ = os.Remove(path) }()

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	start := time.Now()
	res, err := s.engine.ScanPDF(ctx, path, opts)
	scanRequestsTotal.WithLabelValues("pdf", statusLabel(err)).Inc()
	if err != nil {
		writeError(w, r, err, "scan")
		return
	}
	scanDuration.WithLabelValues("pdf").Observe(time.Since(start).Seconds())
	symbolsDecoded.WithLabelValues("pdf").Observe(float64(res.TotalSymbols))

	codes := res.Codes()
	if codes == nil {
		codes = []string{}
	}
	res.Filename = ""
	writeJSON(w, http.StatusOK, PDFScanResponse{Codes: codes, Count: len(codes), Success: true, Result: res})
}

// parsePDFRequest stores the uploaded document in a temporary file, which
// the caller removes.
func (s *Server) parsePDFRequest(w http.ResponseWriter, r *http.Request) (string, pipeline.PDFOptions, error) {
	opts := pipeline.PDFOptions{Scan: s.engine.ScanOptions()}
	if !isMultipart(r) {
		return "", opts, invalid(CodeValidation, "", "expected multipart/form-data with a pdf file")
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	if err := r.ParseMultipartForm(s.maxUploadBytes()); err != nil {
		return "", opts, s.uploadError(err)
	}

	file, _, err := r.FormFile("pdf")
	if err != nil {
		return "", opts, invalid(CodeValidation, "pdf", "no pdf file provided")
	}
	defer func() { _ = file.Close() }()
	data, err := io.ReadAll(file)
	if err != nil {
		return "", opts, fmt.Errorf("read pdf upload: %w", err)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
		return "", opts, invalid(CodeInvalidImage, "pdf", "file is not a PDF document")
	}
	uploadSizeBytes.WithLabelValues("pdf").Observe(float64(len(data)))

	opts.Pages = r.FormValue("pages")
	opts.Password = r.FormValue("password")
	if v := r.FormValue("max_images"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return "", opts, invalid(CodeValidation, "max_images", "max_images must be a non-negative integer")
		}
		opts.MaxImages = n
	}
	if opts.Scan.AutoResize, err = formBool(r, "auto_resize", opts.Scan.AutoResize); err != nil {
		return "", opts, err
	}
	if opts.Scan.Exhaustive, err = formBool(r, "exhaustive", opts.Scan.Exhaustive); err != nil {
		return "", opts, err
	}

	tmp, err := os.CreateTemp("", "qrengine-upload-*.pdf")
	if err != nil {
		return "", opts, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", opts, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", opts, fmt.Errorf("close temp file: %w", err)
	}
	return tmp.Name(), opts, nil
}

func (s *Server) uploadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fmt.Errorf("%w: upload exceeds %d MB", preprocess.ErrInputTooLarge, s.maxUploadMB)
	}
	return invalid(CodeValidation, "", "failed to parse form data: %v", err)
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

func formBool(r *http.Request, field string, fallback bool) (bool, error) {
	v := r.FormValue(field)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, invalid(CodeValidation, field, "%q is not a boolean", v)
	}
	return b, nil
}
