package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_PopulatesFields(t *testing.T) {
	err := New(ErrCodeExtractionFailure, "zero requirements")

	assert.Equal(t, ErrCodeExtractionFailure, err.Code)
	assert.Equal(t, "zero requirements", err.Message)
	assert.NotEmpty(t, err.Stack)
	assert.Nil(t, err.Cause)
}

func TestError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without detail",
			err:  &AppError{Code: ErrCodeParsingFailure, Message: "no usable text"},
			want: "[DOC_001] no usable text",
		},
		{
			name: "with detail",
			err:  &AppError{Code: ErrCodeEncodeFailed, Message: "encode failed", Detail: "batch=3"},
			want: "[EMB_002] encode failed: batch=3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "ignored"))
}

func TestWrap_PreservesCodeForUnknown(t *testing.T) {
	inner := New(ErrCodeEmbeddingUnavailable, "backend down")
	wrapped := Wrap(inner, ErrCodeUnknown, "run aborted")

	assert.Equal(t, ErrCodeEmbeddingUnavailable, wrapped.Code)
	assert.True(t, IsCode(wrapped, ErrCodeEmbeddingUnavailable))
}

func TestWrap_ChainTraversal(t *testing.T) {
	root := fmt.Errorf("connection refused")
	mid := Wrap(root, ErrCodeEmbeddingUnavailable, "backend unreachable")
	outer := Wrap(mid, ErrCodeReportProcessingFailure, "report failed")

	require.NotNil(t, outer)
	assert.True(t, IsCode(outer, ErrCodeEmbeddingUnavailable))
	assert.True(t, IsCode(outer, ErrCodeReportProcessingFailure))
	assert.False(t, IsCode(outer, ErrCodeExtractionFailure))
	assert.True(t, Is(outer, root))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeUnknown, CodeOf(fmt.Errorf("plain")))
	assert.Equal(t, ErrCodeParsingFailure, CodeOf(New(ErrCodeParsingFailure, "x")))
}

func TestWithDetail_CopiesAndNilSafe(t *testing.T) {
	base := New(ErrCodeValidation, "bad threshold")
	detailed := base.WithDetail("min_score=2.0")

	assert.Empty(t, base.Detail)
	assert.Equal(t, "min_score=2.0", detailed.Detail)

	var nilErr *AppError
	assert.Nil(t, nilErr.WithDetail("x"))
}

func TestWithCause(t *testing.T) {
	cause := fmt.Errorf("io error")
	err := New(ErrCodeCacheError, "persist failed").WithCause(cause)

	assert.Equal(t, cause, Unwrap(err))
}
