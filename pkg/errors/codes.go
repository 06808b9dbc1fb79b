package errors

// ErrorCode is a string representation of a specific failure category.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes shared by every module.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_005"
	ErrCodeTimeout            ErrorCode = "COMMON_006"
	ErrCodeValidation         ErrorCode = "COMMON_007"
	ErrCodeSerialization      ErrorCode = "COMMON_008"
	ErrCodeCacheError         ErrorCode = "COMMON_009"
	ErrCodeUnknown            ErrorCode = "COMMON_000"
)

// Document processing error codes.
const (
	// ErrCodeParsingFailure marks a document that yielded no usable cleaned
	// text. Recorded per document; the run continues for unaffected documents.
	ErrCodeParsingFailure ErrorCode = "DOC_001"

	ErrCodeDocumentEmpty   ErrorCode = "DOC_002"
	ErrCodeDocumentInvalid ErrorCode = "DOC_003"
)

// Requirement extraction error codes.
const (
	// ErrCodeExtractionFailure marks a standard document that yielded zero
	// requirements. Fatal for that standard, surfaced to the caller.
	ErrCodeExtractionFailure ErrorCode = "REQ_001"

	ErrCodeRequirementInvalid ErrorCode = "REQ_002"
	ErrCodeDuplicateCode      ErrorCode = "REQ_003"
)

// Embedding error codes.
const (
	// ErrCodeEmbeddingUnavailable marks an unreachable or unloadable model
	// backend. Fatal for the entire run; nothing can be matched without vectors.
	ErrCodeEmbeddingUnavailable ErrorCode = "EMB_001"

	ErrCodeEncodeFailed      ErrorCode = "EMB_002"
	ErrCodeDimensionMismatch ErrorCode = "EMB_003"
	ErrCodeModelNotLoaded    ErrorCode = "EMB_004"
	ErrCodeEmbedderClosed    ErrorCode = "EMB_005"
)

// Matching error codes.
const (
	// ErrCodeReportProcessingFailure marks one report whose segmentation or
	// embedding failed. Recorded in the comparison result; other reports proceed.
	ErrCodeReportProcessingFailure ErrorCode = "MATCH_001"

	ErrCodeThresholdInvalid ErrorCode = "MATCH_002"
	ErrCodeIndexUnavailable ErrorCode = "MATCH_003"
)

// Run orchestration error codes.
const (
	ErrCodeRunCancelled ErrorCode = "RUN_001"
	ErrCodeRunConfig    ErrorCode = "RUN_002"
)

// Analysis (external LLM commentary) error codes.
const (
	ErrCodeAnalysisUnavailable ErrorCode = "ANL_001"
)
