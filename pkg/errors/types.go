// Package errors defines the error taxonomy shared by the lazyns packages.
//
// Every failure surfaced by lazy resolution is an *Error carrying a Type.
// Callers match on the type with the standard library:
//
//	if errors.Is(err, lnerrors.ErrImport) { ... }
//
// or with the IsImportError / IsAttributeError helpers.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	// ErrorTypeAttribute is a name that was never declared, or an attribute
	// chain that could not be traversed on a loaded unit.
	ErrorTypeAttribute ErrorType = "attribute"
	// ErrorTypeImport is a unit that could not be loaded at all.
	ErrorTypeImport ErrorType = "import"
	// ErrorTypeSpec is a malformed export spec, raised at construction.
	ErrorTypeSpec ErrorType = "spec"
	// ErrorTypeRegistry is a conflicting or invalid registry operation.
	ErrorTypeRegistry ErrorType = "registry"
	// ErrorTypeHook is an on-first-access hook that is not callable.
	ErrorTypeHook ErrorType = "hook"
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeInternal ErrorType = "internal"
)

// Sentinels for errors.Is. They match any *Error of the same type.
var (
	ErrAttribute = &Error{Type: ErrorTypeAttribute}
	ErrImport    = &Error{Type: ErrorTypeImport}
	ErrSpec      = &Error{Type: ErrorTypeSpec}
	ErrRegistry  = &Error{Type: ErrorTypeRegistry}
	ErrHook      = &Error{Type: ErrorTypeHook}
)

// Error is a structured error type with context.
type Error struct {
	Type    ErrorType
	Code    string
	Message string
	// Module is the fully-qualified name of the namespace involved, if any.
	Module string
	// Name is the attribute, path or chain that failed.
	Name    string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Module != "" {
		parts = append(parts, "module:"+e.Module)
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else {
		parts = append(parts, string(e.Type)+" error")
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements error comparison. A target without a code matches any
// error of the same type, which is what the package sentinels rely on.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if e.Type != t.Type {
		return false
	}
	return t.Code == "" || e.Code == t.Code
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithModule sets the namespace the error belongs to.
func (e *Error) WithModule(module string) *Error {
	e.Module = module

	return e
}

// Error creation functions

// NewAttributeError reports that name is not available on module.
func NewAttributeError(module, name string) *Error {
	return &Error{
		Type:    ErrorTypeAttribute,
		Code:    "ATTR_MISSING",
		Module:  module,
		Name:    name,
		Message: fmt.Sprintf("has no attribute %q", name),
	}
}

// NewTraverseError reports that chain failed at segment.
func NewTraverseError(path, chain, segment string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeAttribute,
		Code:    "ATTR_TRAVERSE",
		Name:    chain,
		Cause:   cause,
		Message: fmt.Sprintf("resolving %q on %q failed at %q", chain, path, segment),
	}
}

// NewImportError reports that the unit at path could not be loaded.
func NewImportError(path string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeImport,
		Code:    "IMPORT_FAILED",
		Name:    path,
		Cause:   cause,
		Message: fmt.Sprintf("cannot import %q", path),
	}
}

// NewNoModuleError reports that nothing knows how to load path.
func NewNoModuleError(path string) *Error {
	return &Error{
		Type:    ErrorTypeImport,
		Code:    "NO_MODULE",
		Name:    path,
		Message: fmt.Sprintf("no module named %q", path),
	}
}

// NewCircularImportError reports that path is already being loaded by the
// calling chain.
func NewCircularImportError(path string) *Error {
	return &Error{
		Type:    ErrorTypeImport,
		Code:    "IMPORT_CYCLE",
		Name:    path,
		Message: fmt.Sprintf("circular import of %q", path),
	}
}

// NewSpecError creates a construction-time spec error.
func NewSpecError(code, name, message string) *Error {
	return &Error{
		Type:    ErrorTypeSpec,
		Code:    code,
		Name:    name,
		Message: message,
	}
}

// NewRegistryError creates a registry error.
func NewRegistryError(code, name, message string) *Error {
	return &Error{
		Type:    ErrorTypeRegistry,
		Code:    code,
		Name:    name,
		Message: message,
	}
}

// NewHookError reports a hook value that cannot be called.
func NewHookError(module string, value interface{}) *Error {
	return &Error{
		Type:    ErrorTypeHook,
		Code:    "HOOK_NOT_CALLABLE",
		Module:  module,
		Message: fmt.Sprintf("on-first-access hook of type %T is not callable", value),
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsAttributeError reports whether err is an attribute error.
func IsAttributeError(err error) bool {
	return errors.Is(err, ErrAttribute)
}

// IsImportError reports whether err is an import error.
func IsImportError(err error) bool {
	return errors.Is(err, ErrImport)
}

// IsSpecError reports whether err is a spec error.
func IsSpecError(err error) bool {
	return errors.Is(err, ErrSpec)
}

// GetType extracts the error type, or ErrorTypeInternal for foreign errors.
func GetType(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}
