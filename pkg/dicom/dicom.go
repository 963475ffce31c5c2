// Package dicom implements a native Go DICOM PS3.5 encoder/decoder: Tag/VR/dataset model,
// Part-10 file envelope, and a functional-options dataset builder. It is grounded on the teacher
// repository's package layout and read/write convenience API, generalized from a single
// application's fixed element set to the full standard element model.
//
// Basic usage:
//
//	f, err := dicom.ReadFile("/path/to/file.dcm", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	rows := f.Dataset.Rows()
package dicom

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/jpfielding/dicomgo/pkg/dicom/transfer"
)

// TransferSyntax re-exports transfer.Syntax for callers that otherwise need not import the
// subpackage.
type TransferSyntax = transfer.Syntax

// ReadFile reads and parses a Part-10 DICOM file from disk. A nil cfg uses NewReaderConfig's
// defaults.
func ReadFile(path string, cfg *ReaderConfig) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dicom: opening %s: %w", path, err)
	}
	defer f.Close()
	return readPart10WithDefaults(f, cfg)
}

// ReadBuffer parses a Part-10 DICOM file already held in memory.
func ReadBuffer(data []byte, cfg *ReaderConfig) (*File, error) {
	return readPart10WithDefaults(bytes.NewReader(data), cfg)
}

// Parse parses a Part-10 DICOM stream from an arbitrary io.Reader. ReadPart10 reads through a
// buffered reader that does not seek, so Lazy pixel-data handling is not available here, even
// when r implements io.ReadSeeker: native pixel data is read into memory as under Eager.
func Parse(r io.Reader, cfg *ReaderConfig) (*File, error) {
	return readPart10WithDefaults(r, cfg)
}

func readPart10WithDefaults(r io.Reader, cfg *ReaderConfig) (*File, error) {
	if cfg == nil {
		var err error
		cfg, err = NewReaderConfig()
		if err != nil {
			return nil, err
		}
	}
	return ReadPart10(r, cfg)
}

// WriteFile encodes ds as a Part-10 DICOM file and writes it to path.
func WriteFile(path string, ds *Dataset, cfg *WriterConfig) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dicom: creating %s: %w", path, err)
	}
	defer f.Close()
	if err := WritePart10(f, ds, cfg); err != nil {
		return err
	}
	return f.Close()
}

// WriteBuffer encodes ds as a Part-10 DICOM file into an in-memory buffer.
func WriteBuffer(ds *Dataset, cfg *WriterConfig) ([]byte, error) {
	var buf bytes.Buffer
	if err := WritePart10(&buf, ds, cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GetExtension returns the conventional DICOM file extension.
func GetExtension() string { return ".dcm" }
