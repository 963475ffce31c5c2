package dicom

import (
	"testing"

	"github.com/jpfielding/dicomgo/pkg/dicom/tag"
	"github.com/jpfielding/dicomgo/pkg/dicom/vr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func modalityMustBeCT(ctx ElementContext) *Issue {
	if ctx.Element.Tag != tag.Modality {
		return nil
	}
	s, err := ctx.Element.GetString(ctx.Dataset.Registry(), nil)
	if err != nil || s == "CT" {
		return nil
	}
	return &Issue{Tag: ctx.Element.Tag, Severity: SeverityError, Message: "Modality must be CT"}
}

func TestValidateDatasetRecordsIssueWithoutAborting(t *testing.T) {
	ds, err := BuildDataset(WithString(tag.Modality, vr.CS, "MR"))
	require.NoError(t, err)

	profile := &Profile{
		DefaultBehavior: Record,
		Threshold:       SeverityError,
		Rules:           []Rule{RuleFunc{RuleName: "modality-ct", Fn: modalityMustBeCT}},
	}

	result, err := ValidateDataset(ds, profile)
	require.NoError(t, err)
	assert.True(t, result.HasErrors())
	assert.Len(t, result.Issues, 1)
	assert.Equal(t, "modality-ct", result.Issues[0].RuleName)
}

func TestValidateDatasetAbortsAtThresholdUnderValidateBehavior(t *testing.T) {
	ds, err := BuildDataset(WithString(tag.Modality, vr.CS, "MR"))
	require.NoError(t, err)

	profile := &Profile{
		DefaultBehavior: Validate,
		Threshold:       SeverityError,
		Rules:           []Rule{RuleFunc{RuleName: "modality-ct", Fn: modalityMustBeCT}},
	}

	_, err = ValidateDataset(ds, profile)
	require.Error(t, err)
	var valErr *ValidationFailedError
	assert.ErrorAs(t, err, &valErr)
}

func TestValidateDatasetRecursesIntoSequenceItems(t *testing.T) {
	item := NewDataset()
	item.Insert(NewStringElementFromString(tag.Modality, vr.CS, "MR"))
	ds, err := BuildDataset(WithSequence(tag.New(0x0008, 0x1140), item))
	require.NoError(t, err)

	profile := &Profile{
		DefaultBehavior: Record,
		Threshold:       SeverityError,
		Rules:           []Rule{RuleFunc{RuleName: "modality-ct", Fn: modalityMustBeCT}},
	}

	result, err := ValidateDataset(ds, profile)
	require.NoError(t, err)
	assert.Len(t, result.Issues, 1)
}

func TestProfileBehaviorForPerTagOverride(t *testing.T) {
	p := &Profile{
		DefaultBehavior: Skip,
		PerTag:          map[Tag]Behavior{tag.Modality: Validate},
	}
	assert.Equal(t, Validate, p.BehaviorFor(tag.Modality))
	assert.Equal(t, Skip, p.BehaviorFor(tag.New(0x0010, 0x0010)))
	assert.Equal(t, Skip, (*Profile)(nil).BehaviorFor(tag.Modality))
}

func TestResultSummaryCountsBySeverity(t *testing.T) {
	r := &Result{}
	r.Record(&Issue{Severity: SeverityInfo})
	r.Record(&Issue{Severity: SeverityWarning})
	r.Record(&Issue{Severity: SeverityError})
	assert.Equal(t, "1 error(s), 1 warning(s), 1 info", r.Summary())
	assert.True(t, r.HasWarnings())
	assert.True(t, r.HasErrors())
}
