package dicom

import (
	"fmt"

	"github.com/jpfielding/dicomgo/pkg/dicom/charset"
	"github.com/jpfielding/dicomgo/pkg/dicom/tag"
	"github.com/jpfielding/dicomgo/pkg/dicom/transfer"
)

// PreambleHandling controls how the Part-10 reader treats the 128-byte preamble.
type PreambleHandling int

// FmiHandling controls how the Part-10 reader treats the File Meta Information group.
type FmiHandling int

const (
	Require PreambleHandling = iota
	Optional
	Ignore
)

const (
	FmiRequire FmiHandling = iota
	FmiOptional
	FmiIgnore
)

// InvalidVRPolicy controls how the element codec treats an unrecognized two-letter VR under
// Implicit VR dictionary miss, or a malformed Explicit VR code.
type InvalidVRPolicy int

const (
	// InvalidVRThrow surfaces a MalformedHeaderError.
	InvalidVRThrow InvalidVRPolicy = iota
	// InvalidVRMapToUN treats the element as UN and continues.
	InvalidVRMapToUN
	// InvalidVRPreserve keeps the raw two bytes, skipping VR-specific rules on write/validate.
	InvalidVRPreserve
)

// ValidationProfile selects the built-in rule bundle, or None/Custom.
type ValidationProfile int

const (
	ValidationNone ValidationProfile = iota
	ValidationStrict
	ValidationLenient
	ValidationPermissive
	ValidationCustom
)

// SequenceLengthMode controls whether the writer emits defined or undefined sequence/item
// lengths.
type SequenceLengthMode int

const (
	// SequenceLengthUndefined always emits Item/Sequence delimiters.
	SequenceLengthUndefined SequenceLengthMode = iota
	// SequenceLengthDefined pre-computes lengths, falling back to Undefined on 32-bit overflow.
	SequenceLengthDefined
)

// ReaderConfig is the element/Part-10 reader's configuration record. Every field is set through
// a ReaderOption; construction fails closed if any option reports an error, matching the spec's
// "unknown fields are refused at construction, not silently ignored" requirement (an option
// nobody recognizes simply does not compile).
type ReaderConfig struct {
	PreambleHandling PreambleHandling
	FmiHandling      FmiHandling
	InvalidVR        InvalidVRPolicy

	MaxElementLength uint32
	MaxSequenceDepth int
	MaxTotalItems    int

	PixelDataHandling Handling
	PixelDataArbiter  Arbiter

	RetainUnknownPrivateTags bool
	// FailOnOrphanPrivateElements aborts the read when a private-data element's creator slot was
	// never registered. See WithFailOnOrphanPrivateElements.
	FailOnOrphanPrivateElements bool
	// FailOnDuplicatePrivateSlots aborts the read when one private-creator string is registered
	// under more than one slot in a group. See WithFailOnDuplicatePrivateSlots.
	FailOnDuplicatePrivateSlots bool

	ValidationProfile ValidationProfile
	Profile           *Profile

	Dictionary       tag.Dictionary
	VendorDictionary tag.VendorDictionary
	Charset          charset.Registry
}

// ReaderOption configures a ReaderConfig.
type ReaderOption func(*ReaderConfig) error

// defaultMaxElementLength is 256 MiB, per spec.
const defaultMaxElementLength = 256 << 20

// NewReaderConfig builds a ReaderConfig from its defaults plus opts, applied in order.
func NewReaderConfig(opts ...ReaderOption) (*ReaderConfig, error) {
	cfg := &ReaderConfig{
		PreambleHandling:         Optional,
		FmiHandling:              FmiOptional,
		InvalidVR:                InvalidVRMapToUN,
		MaxElementLength:         defaultMaxElementLength,
		MaxSequenceDepth:         128,
		MaxTotalItems:            100000,
		PixelDataHandling:        Eager,
		RetainUnknownPrivateTags: true,
		ValidationProfile:        ValidationNone,
		Dictionary:               tag.DefaultDictionary(),
		VendorDictionary:         tag.NoVendorDictionary(),
		Charset:                  charset.New(),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("dicom: reader config: %w", err)
		}
	}
	if cfg.PixelDataHandling == Callback && cfg.PixelDataArbiter == nil {
		return nil, fmt.Errorf("dicom: reader config: Callback pixel data handling requires WithPixelDataArbiter")
	}
	return cfg, nil
}

func WithPreambleHandling(h PreambleHandling) ReaderOption {
	return func(c *ReaderConfig) error { c.PreambleHandling = h; return nil }
}

func WithFmiHandling(h FmiHandling) ReaderOption {
	return func(c *ReaderConfig) error { c.FmiHandling = h; return nil }
}

func WithInvalidVRPolicy(p InvalidVRPolicy) ReaderOption {
	return func(c *ReaderConfig) error { c.InvalidVR = p; return nil }
}

func WithMaxElementLength(n uint32) ReaderOption {
	return func(c *ReaderConfig) error {
		if n == 0 {
			return fmt.Errorf("MaxElementLength must be positive")
		}
		c.MaxElementLength = n
		return nil
	}
}

func WithMaxSequenceDepth(n int) ReaderOption {
	return func(c *ReaderConfig) error {
		if n <= 0 {
			return fmt.Errorf("MaxSequenceDepth must be positive")
		}
		c.MaxSequenceDepth = n
		return nil
	}
}

func WithMaxTotalItems(n int) ReaderOption {
	return func(c *ReaderConfig) error {
		if n <= 0 {
			return fmt.Errorf("MaxTotalItems must be positive")
		}
		c.MaxTotalItems = n
		return nil
	}
}

func WithPixelDataHandling(h Handling) ReaderOption {
	return func(c *ReaderConfig) error { c.PixelDataHandling = h; return nil }
}

func WithPixelDataArbiter(a Arbiter) ReaderOption {
	return func(c *ReaderConfig) error { c.PixelDataArbiter = a; return nil }
}

func WithRetainUnknownPrivateTags(b bool) ReaderOption {
	return func(c *ReaderConfig) error { c.RetainUnknownPrivateTags = b; return nil }
}

// WithFailOnOrphanPrivateElements, when true, fails the read with an *OrphanPrivateElementError
// as soon as a private-data element is inserted whose owning creator slot has no registered
// private-creator string in the enclosing dataset.
func WithFailOnOrphanPrivateElements(b bool) ReaderOption {
	return func(c *ReaderConfig) error { c.FailOnOrphanPrivateElements = b; return nil }
}

// WithFailOnDuplicatePrivateSlots, when true, fails the read with a *DuplicatePrivateSlotError as
// soon as the same private-creator string is registered under more than one slot of the same
// group in the enclosing dataset.
func WithFailOnDuplicatePrivateSlots(b bool) ReaderOption {
	return func(c *ReaderConfig) error { c.FailOnDuplicatePrivateSlots = b; return nil }
}

func WithValidationProfile(p ValidationProfile, profile *Profile) ReaderOption {
	return func(c *ReaderConfig) error {
		c.ValidationProfile = p
		c.Profile = profile
		return nil
	}
}

func WithDictionary(d tag.Dictionary) ReaderOption {
	return func(c *ReaderConfig) error { c.Dictionary = d; return nil }
}

func WithVendorDictionary(d tag.VendorDictionary) ReaderOption {
	return func(c *ReaderConfig) error { c.VendorDictionary = d; return nil }
}

func WithCharsetRegistry(r charset.Registry) ReaderOption {
	return func(c *ReaderConfig) error { c.Charset = r; return nil }
}

// WriterConfig is the element/Part-10 writer's configuration record.
type WriterConfig struct {
	TransferSyntax     transfer.Syntax
	SequenceLengthMode SequenceLengthMode
	AutoGenerateFMI    bool
	Preamble           [128]byte
	ValidateFmiUIDs    bool
}

// WriterOption configures a WriterConfig.
type WriterOption func(*WriterConfig) error

// NewWriterConfig builds a WriterConfig from its defaults plus opts.
func NewWriterConfig(opts ...WriterOption) (*WriterConfig, error) {
	cfg := &WriterConfig{
		TransferSyntax:     transfer.Lookup(transfer.ExplicitVRLittleEndian),
		SequenceLengthMode: SequenceLengthUndefined,
		AutoGenerateFMI:    true,
		ValidateFmiUIDs:    true,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("dicom: writer config: %w", err)
		}
	}
	return cfg, nil
}

func WithTransferSyntax(ts transfer.Syntax) WriterOption {
	return func(c *WriterConfig) error { c.TransferSyntax = ts; return nil }
}

func WithSequenceLengthMode(m SequenceLengthMode) WriterOption {
	return func(c *WriterConfig) error { c.SequenceLengthMode = m; return nil }
}

func WithAutoGenerateFMI(b bool) WriterOption {
	return func(c *WriterConfig) error { c.AutoGenerateFMI = b; return nil }
}

func WithPreamble(p []byte) WriterOption {
	return func(c *WriterConfig) error {
		if len(p) > 128 {
			return fmt.Errorf("preamble exceeds 128 bytes")
		}
		copy(c.Preamble[:], p)
		return nil
	}
}

func WithValidateFmiUIDs(b bool) WriterOption {
	return func(c *WriterConfig) error { c.ValidateFmiUIDs = b; return nil }
}
