package dicom

import (
	"bufio"
	"bytes"
	"compress/flate"
	"io"
	"strings"

	"github.com/jpfielding/dicomgo/pkg/dicom/tag"
	"github.com/jpfielding/dicomgo/pkg/dicom/transfer"
	"github.com/jpfielding/dicomgo/pkg/dicom/uid"
	"github.com/jpfielding/dicomgo/pkg/dicom/vr"
)

// implementationClassUID and implementationVersionName identify this library in emitted File
// Meta Information, the way any DICOM implementation names itself (pydicom, dcm4che, and so on
// each mint their own). Deterministic so repeated runs of the same binary agree.
var implementationClassUID = uid.GenerateDeterministic("1.2.826.0.1.3680043.9", "dicomgo")

const implementationVersionName = "DICOMGO_1_0"

// File is a parsed Part-10 file: its File Meta Information group and its main dataset.
type File struct {
	Meta           *Dataset
	Dataset        *Dataset
	TransferSyntax transfer.Syntax
}

// ReadPart10 parses a Part-10 stream per §4.4: preamble detection, FMI group (always parsed as
// Explicit VR Little Endian), transfer-syntax switch-over, and — for the deflated transfer
// syntax — piping the post-FMI bytes through a raw-deflate inflater before element parsing.
func ReadPart10(r io.Reader, cfg *ReaderConfig) (*File, error) {
	br := bufio.NewReaderSize(r, 4096)

	ts := transfer.Lookup(transfer.ImplicitVRLittleEndian)
	hasPreamble, err := scanPreamble(br, cfg.PreambleHandling)
	if err != nil {
		return nil, err
	}
	if hasPreamble {
		ts = transfer.Lookup(transfer.ExplicitVRLittleEndian) // provisional, until FMI says otherwise
	}

	meta := NewDataset()
	meta.SetRegistry(cfg.Charset)

	metaReader := NewReader(br, cfg)
	metaReader.SetTransferSyntax(transfer.Lookup(transfer.ExplicitVRLittleEndian))

	sawFMI, err := readFMI(metaReader, meta, cfg)
	if err != nil {
		return nil, err
	}
	if !sawFMI {
		if cfg.FmiHandling == FmiRequire {
			return nil, &FmiMissingError{Reason: "no group 0002 elements present"}
		}
	} else if e, ok := meta.Get(tag.TransferSyntaxUID); ok {
		s, _ := e.GetString(cfg.Charset, nil)
		s = strings.TrimRight(s, "\x00 ")
		resolved := transfer.Lookup(transfer.UID(s))
		if !resolved.Known && cfg.ValidationProfile == ValidationStrict {
			return nil, &UnknownTransferSyntaxError{UID: s}
		}
		ts = resolved
	}

	dsCfg := cfg
	var body io.Reader = br
	if len(metaReader.pending) > 0 {
		// readFMI peeked the first dataset tag; hand those bytes back to the dataset reader.
		body = io.MultiReader(bytes.NewReader(metaReader.pending), br)
	}
	if ts.Compression == "deflate" {
		body = flate.NewReader(body)
		if dsCfg.PixelDataHandling == Lazy {
			relaxed := *cfg
			relaxed.PixelDataHandling = Eager
			dsCfg = &relaxed
		}
	}

	ds := NewDataset()
	ds.SetRegistry(cfg.Charset)
	dsReader := NewReader(body, dsCfg)
	dsReader.SetTransferSyntax(ts)
	if err := dsReader.ReadDataset(ds, 0); err != nil {
		return nil, err
	}

	return &File{Meta: meta, Dataset: ds, TransferSyntax: ts}, nil
}

// scanPreamble detects the 128-byte preamble + "DICM" marker, consuming it from br if present.
// Returns whether a preamble was found.
func scanPreamble(br *bufio.Reader, handling PreambleHandling) (bool, error) {
	peek, _ := br.Peek(132)
	if len(peek) >= 132 && string(peek[128:132]) == "DICM" {
		if _, err := br.Discard(132); err != nil {
			return false, err
		}
		return true, nil
	}
	if len(peek) >= 4 && string(peek[0:4]) == "DICM" {
		if _, err := br.Discard(4); err != nil {
			return false, err
		}
		return false, nil
	}
	switch handling {
	case Require:
		return false, &PreambleMissingError{}
	case Ignore:
		return false, nil
	default: // Optional
		// Like Ignore, proceeds at offset 0 without inspecting the leading bytes: no check of the
		// first tag's group or of an Explicit VR code at bytes 4-5 is made.
		return false, nil
	}
}

// readFMI parses the group-0002 File Meta Information elements into meta, bounded by
// FileMetaInformationGroupLength when present, else by reading until a non-0002 group tag is
// seen. Returns whether any FMI elements were found.
func readFMI(r *Reader, meta *Dataset, cfg *ReaderConfig) (bool, error) {
	t, err := r.PeekTag()
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if t.Group != 0x0002 {
		return false, nil
	}
	if t == tag.FileMetaInformationGroupLength {
		elem, err := r.ReadElement(meta, 0)
		if err != nil {
			return false, err
		}
		meta.Insert(elem)
		groupLen, _ := elem.GetInt(cfg.Charset, nil)
		sub := r.subReader(int64(groupLen))
		if err := sub.ReadDataset(meta, 0); err != nil {
			return false, err
		}
		return true, nil
	}
	for {
		t, err := r.PeekTag()
		if err == io.EOF || t.Group != 0x0002 {
			break
		}
		if err != nil {
			return false, err
		}
		elem, err := r.ReadElement(meta, 0)
		if err != nil {
			return false, err
		}
		meta.Insert(elem)
	}
	return true, nil
}

// WritePart10 emits a Part-10 file: the preamble, "DICM", a freshly generated File Meta
// Information block (unless cfg.AutoGenerateFMI is false, in which case the caller is expected
// to have already merged a group-0002 block into ds, which is NOT supported by this writer and
// is a caller error), and the dataset encoded per cfg.TransferSyntax.
func WritePart10(out io.Writer, ds *Dataset, cfg *WriterConfig) error {
	if _, err := out.Write(cfg.Preamble[:]); err != nil {
		return err
	}
	if _, err := out.Write([]byte("DICM")); err != nil {
		return err
	}
	if cfg.AutoGenerateFMI {
		if err := writeFMI(out, ds, cfg); err != nil {
			return err
		}
	}

	w := NewWriter(cfg)
	if cfg.TransferSyntax.Compression == "deflate" {
		fw, err := flate.NewWriter(out, flate.DefaultCompression)
		if err != nil {
			return err
		}
		if err := w.WriteDataset(fw, ds); err != nil {
			return err
		}
		return fw.Close()
	}
	return w.WriteDataset(out, ds)
}

// writeFMI autogenerates and emits the File Meta Information group, per §4.4: Version,
// MediaStorageSOPClassUID/InstanceUID (copied from the dataset), TransferSyntaxUID,
// ImplementationClassUID, ImplementationVersionName, prefixed by a freshly computed
// FileMetaInformationGroupLength.
func writeFMI(out io.Writer, ds *Dataset, cfg *WriterConfig) error {
	sopClass, hasClass := ds.Get(tag.SOPClassUID)
	sopInstance, hasInstance := ds.Get(tag.SOPInstanceUID)
	if cfg.ValidateFmiUIDs && (!hasClass || !hasInstance) {
		return &FmiMissingError{Reason: "dataset lacks SOPClassUID/SOPInstanceUID required for FMI autogeneration"}
	}

	meta := NewDataset()
	meta.Insert(NewBinaryElement(tag.FileMetaInformationVersion, vr.OB, []byte{0x00, 0x01}))
	if hasClass {
		classUID, _ := sopClass.GetString(ds.Registry(), ds.Encoding())
		meta.Insert(NewStringElementFromString(tag.MediaStorageSOPClassUID, vr.UI, classUID))
	}
	if hasInstance {
		instUID, _ := sopInstance.GetString(ds.Registry(), ds.Encoding())
		meta.Insert(NewStringElementFromString(tag.MediaStorageSOPInstanceUID, vr.UI, instUID))
	}
	meta.Insert(NewStringElementFromString(tag.TransferSyntaxUID, vr.UI, string(cfg.TransferSyntax.UID)))
	meta.Insert(NewStringElementFromString(tag.ImplementationClassUID, vr.UI, string(implementationClassUID)))
	meta.Insert(NewStringElementFromString(tag.ImplementationVersionName, vr.SH, padTo16(implementationVersionName)))

	metaCfg, err := NewWriterConfig(WithTransferSyntax(transfer.Lookup(transfer.ExplicitVRLittleEndian)))
	if err != nil {
		return err
	}
	metaWriter := NewWriter(metaCfg)

	var buf bytes.Buffer
	if err := metaWriter.WriteDataset(&buf, meta); err != nil {
		return err
	}

	groupLength := NewNumericElement(tag.FileMetaInformationGroupLength, vr.UL, uint32Bytes(uint32(buf.Len())), nil)
	if err := metaWriter.WriteElement(out, groupLength); err != nil {
		return err
	}
	_, err = out.Write(buf.Bytes())
	return err
}

func uint32Bytes(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func padTo16(s string) string {
	if len(s) >= 16 {
		return s[:16]
	}
	return s + strings.Repeat(" ", 16-len(s))
}
