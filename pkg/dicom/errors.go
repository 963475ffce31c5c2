package dicom

import "fmt"

// MalformedHeaderError reports an invalid VR under InvalidVRThrow, or a length field that
// overflows the available buffer.
type MalformedHeaderError struct {
	Tag    string
	Reason string
}

func (e *MalformedHeaderError) Error() string {
	return fmt.Sprintf("dicom: malformed header at %s: %s", e.Tag, e.Reason)
}

// LengthExceedsMaxError reports a value length greater than the configured max_element_length.
type LengthExceedsMaxError struct {
	Tag    string
	Length uint32
	Max    uint32
}

func (e *LengthExceedsMaxError) Error() string {
	return fmt.Sprintf("dicom: value length %d at %s exceeds max %d", e.Length, e.Tag, e.Max)
}

// DepthExceededError reports a sequence nesting depth beyond max_sequence_depth.
type DepthExceededError struct {
	Max int
}

func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("dicom: sequence nesting exceeds max depth %d", e.Max)
}

// ItemCountExceededError reports a parse that crossed max_total_items.
type ItemCountExceededError struct {
	Max int
}

func (e *ItemCountExceededError) Error() string {
	return fmt.Sprintf("dicom: total sequence item count exceeds max %d", e.Max)
}

// PreambleMissingError is raised under preamble_handling=Require when no 128-byte preamble is
// present.
type PreambleMissingError struct{}

func (e *PreambleMissingError) Error() string { return "dicom: preamble missing" }

// FmiMissingError is raised under fmi_handling=Require when the File Meta Information group is
// absent, or during FMI autogeneration when a required UID is absent from the dataset.
type FmiMissingError struct {
	Reason string
}

func (e *FmiMissingError) Error() string {
	return fmt.Sprintf("dicom: file meta information missing: %s", e.Reason)
}

// UnknownTransferSyntaxError is raised under a Strict validation profile when a transfer syntax
// UID does not resolve to a known entry.
type UnknownTransferSyntaxError struct {
	UID string
}

func (e *UnknownTransferSyntaxError) Error() string {
	return fmt.Sprintf("dicom: unknown transfer syntax %q", e.UID)
}

// PixelDataSkippedError is returned by any access to a pixel-data source that was read under
// Skip handling.
type PixelDataSkippedError struct{}

func (e *PixelDataSkippedError) Error() string { return "dicom: pixel data was skipped on read" }

// OrphanPrivateElementError is raised under FailOnOrphanPrivateElements when a private-data
// element's owning creator slot has no registered private-creator string.
type OrphanPrivateElementError struct {
	Tag  string
	Slot string
}

func (e *OrphanPrivateElementError) Error() string {
	return fmt.Sprintf("dicom: private element %s has no creator registered for slot %s", e.Tag, e.Slot)
}

// DuplicatePrivateSlotError is raised under FailOnDuplicatePrivateSlots when the same
// private-creator string is registered under more than one slot in a group.
type DuplicatePrivateSlotError struct {
	Group   uint16
	Creator string
	Slots   []uint16
}

func (e *DuplicatePrivateSlotError) Error() string {
	return fmt.Sprintf("dicom: private creator %q registered under multiple slots %v in group %04X", e.Creator, e.Slots, e.Group)
}

// ValidationFailedError wraps an Issue raised by a rule configured with the Validate behavior.
type ValidationFailedError struct {
	Issue *Issue
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("dicom: validation failed: %s", e.Issue.Message)
}

// InvariantViolationError reports an internal bug: a state the implementation guarantees
// cannot occur. It is never recovered from.
type InvariantViolationError struct {
	Detail string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("dicom: invariant violation: %s", e.Detail)
}

// errNeedMore is an internal sentinel for a parse step that lacks bytes. No reader in this
// package returns it: Reader reads its io.Reader synchronously and reports a stream that ends
// mid-element as io.ErrUnexpectedEOF.
var errNeedMore = fmt.Errorf("dicom: need more bytes")
