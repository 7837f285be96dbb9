package gate

import (
	"fmt"

	"shapegen/internal/diag"
	"shapegen/internal/source"
)

// ConfigError is a configuration problem found before derivation starts.
// It aborts the whole run.
type ConfigError struct {
	Code diag.Code
	Path string
	Msg  string
	Err  error
}

func (e *ConfigError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Path != "" {
		return e.Path + ": " + msg
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Diagnostic converts the error for reporting.
func (e *ConfigError) Diagnostic() diag.Diagnostic {
	code := e.Code
	if code == 0 {
		code = diag.GateBadConfig
	}
	return diag.NewError(code, source.NoSpan, e.Error())
}
