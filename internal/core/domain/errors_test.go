package domain

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassification(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		terminal  bool
		transient bool
	}{
		{"unsupported type", ErrUnsupportedType, true, false},
		{"file too large", ErrFileTooLarge, true, false},
		{"encoding", fmt.Errorf("decoding bytes: %w", ErrEncoding), true, false},
		{"extraction parse failure", fmt.Errorf("%w: zip: not a valid zip file", ErrExtraction), true, false},
		{"invalid input", ErrInvalidInput, true, false},
		{"range out of bounds", ErrRangeOutOfBounds, true, false},
		{"store unavailable", fmt.Errorf("inserting work: %w", ErrStoreUnavailable), false, true},
		{"plain io failure", fmt.Errorf("reading file: %w", os.ErrPermission), false, true},
		{"cancelled attempt", context.Canceled, false, true},
		{"deadline exceeded", fmt.Errorf("calling store: %w", context.DeadlineExceeded), false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.terminal, IsTerminal(tc.err))
			assert.Equal(t, tc.transient, IsTransient(tc.err))
		})
	}
}

func TestIsTransient_NilIsNotTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
}

func TestIsCancellation(t *testing.T) {
	assert.True(t, IsCancellation(context.Canceled))
	assert.True(t, IsCancellation(fmt.Errorf("attempt cut short: %w", context.DeadlineExceeded)))
	assert.False(t, IsCancellation(ErrStoreUnavailable))
}

func TestStageOf(t *testing.T) {
	assert.Equal(t, StageExtract, StageOf(AtStage(StageExtract, ErrExtraction)))
	assert.Equal(t, StagePersist, StageOf(ErrStoreUnavailable))
}
