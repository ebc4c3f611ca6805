package domain

// Result is the uniform outcome of every mutating debugger operation.
type Result struct {
	Success bool      `json:"success"`
	Code    ErrorCode `json:"error_code,omitempty"`
	Message string    `json:"message,omitempty"`
}

// DebugResult is returned by Setup and StartSync and carries the effective breakpoints.
type DebugResult struct {
	Result
	Breakpoints []bool `json:"breakpoints"`
}

// Ok returns a successful Result.
func Ok() Result {
	return Result{Success: true}
}

// Fail shapes an error into a failed Result.
func Fail(err error) Result {
	if err == nil {
		return Ok()
	}
	return Result{
		Success: false,
		Code:    Code(err),
		Message: err.Error(),
	}
}

// Err converts a failed Result back into an error carrying its message.
// Returns nil for successful results.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return &ResultError{Code: r.Code, Message: r.Message}
}

// ResultError is the error form of a failed Result.
type ResultError struct {
	Code    ErrorCode
	Message string
}

func (e *ResultError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}
