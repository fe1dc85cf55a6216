package errors

// RecordError is a specialized error type for decode-time invariant violations:
// a command read back from a segment file does not match what the index or
// compactor expected at that locator (wrong record kind, or a Set whose key
// does not match the index key that pointed at it).
type RecordError struct {
	*baseError

	// found describes the record that was actually decoded.
	found string

	// expected describes the record the caller required at that locator.
	expected string

	// key identifies which index key was being resolved when the mismatch
	// was discovered.
	key string
}

// NewRecordError creates a new record-mismatch error with the provided context.
func NewRecordError(err error, code ErrorCode, msg string) *RecordError {
	return &RecordError{baseError: NewBaseError(err, code, msg)}
}

// WithMessage updates the error message while maintaining the RecordError type.
func (re *RecordError) WithMessage(msg string) *RecordError {
	re.baseError.WithMessage(msg)
	return re
}

// WithCode sets the error code while preserving the RecordError type.
func (re *RecordError) WithCode(code ErrorCode) *RecordError {
	re.baseError.WithCode(code)
	return re
}

// WithDetail adds contextual information while maintaining the RecordError type.
func (re *RecordError) WithDetail(key string, value any) *RecordError {
	re.baseError.WithDetail(key, value)
	return re
}

// WithFound records what was actually decoded.
func (re *RecordError) WithFound(found string) *RecordError {
	re.found = found
	return re
}

// WithExpected records what the caller required.
func (re *RecordError) WithExpected(expected string) *RecordError {
	re.expected = expected
	return re
}

// WithKey records which index key was being resolved.
func (re *RecordError) WithKey(key string) *RecordError {
	re.key = key
	return re
}

// Found returns what was actually decoded.
func (re *RecordError) Found() string {
	return re.found
}

// Expected returns what the caller required.
func (re *RecordError) Expected() string {
	return re.expected
}

// Key returns the index key being resolved when the mismatch was discovered.
func (re *RecordError) Key() string {
	return re.key
}

// NewUnexpectedRecordError reports that a decoded record at a locator does
// not match what the index promised would be there.
func NewUnexpectedRecordError(key, found, expected string) *RecordError {
	return NewRecordError(nil, ErrorCodeUnexpectedRecord, "decoded record does not match index").
		WithKey(key).
		WithFound(found).
		WithExpected(expected)
}
