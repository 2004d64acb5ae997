package certificate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// MaxFileSize is the largest accepted file, inclusive.
const MaxFileSize = 10 << 20

var pdfMagic = []byte("%PDF-")

// File is a candidate certificate document.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// ValidateFile accepts non-empty PDFs up to MaxFileSize. A declared content
// type wins; without one the bytes are sniffed.
func ValidateFile(f File) error {
	if strings.TrimSpace(f.Name) == "" {
		return newError(ErrValidation, StepValidate, msgNoFileName, nil)
	}
	if len(f.Data) == 0 {
		return newError(ErrValidation, StepValidate, msgEmptyFile, nil)
	}
	if len(f.Data) > MaxFileSize {
		return newError(ErrValidation, StepValidate, msgTooLarge,
			fmt.Errorf("%d bytes exceeds %d", len(f.Data), MaxFileSize))
	}
	if !isPDF(f) {
		return newError(ErrValidation, StepValidate, msgNotPDF,
			fmt.Errorf("content type %q", contentType(f)))
	}
	return nil
}

func contentType(f File) string {
	if f.ContentType != "" {
		if mt, _, err := mime.ParseMediaType(f.ContentType); err == nil {
			return mt
		}
		return f.ContentType
	}
	return http.DetectContentType(f.Data)
}

func isPDF(f File) bool {
	switch contentType(f) {
	case "application/pdf", "application/x-pdf":
		return true
	case "application/octet-stream", "":
		return bytes.HasPrefix(f.Data, pdfMagic)
	}
	return false
}

// LoadFile reads path into a File, refusing oversize files before reading them.
func LoadFile(path string) (File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return File{}, err
	}
	defer func() { _ = fh.Close() }()

	info, err := fh.Stat()
	if err != nil {
		return File{}, err
	}
	if info.IsDir() {
		return File{}, errors.New("not a regular file: " + path)
	}
	if info.Size() > MaxFileSize {
		return File{}, newError(ErrValidation, StepValidate, msgTooLarge,
			fmt.Errorf("%d bytes exceeds %d", info.Size(), MaxFileSize))
	}
	data, err := io.ReadAll(io.LimitReader(fh, MaxFileSize+1))
	if err != nil {
		return File{}, err
	}
	f := File{Name: filepath.Base(path), Data: data}
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		f.ContentType = "application/pdf"
	}
	return f, nil
}
