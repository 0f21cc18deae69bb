package errors

import (
	"fmt"
	"strings"
	"sync"
)

// Failure records one name that failed during bulk resolution.
type Failure struct {
	Module string
	Name   string
	Err    error
}

// Error implements the error interface
func (f Failure) Error() string {
	return fmt.Sprintf("%s.%s: %v", f.Module, f.Name, f.Err)
}

// Unwrap returns the underlying error
func (f Failure) Unwrap() error {
	return f.Err
}

// Collector collects failures that bulk operations choose not to propagate.
type Collector struct {
	failures []Failure
	mutex    sync.RWMutex
}

// NewCollector creates a new error collector
func NewCollector() *Collector {
	return &Collector{
		failures: make([]Failure, 0),
	}
}

// Add records a failure for module.name. Nil errors are ignored.
func (c *Collector) Add(module, name string, err error) {
	if err == nil {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.failures = append(c.failures, Failure{Module: module, Name: name, Err: err})
}

// Failures returns a copy of the collected failures in insertion order
func (c *Collector) Failures() []Failure {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	result := make([]Failure, len(c.failures))
	copy(result, c.failures)
	return result
}

// HasErrors returns true if there are any failures
func (c *Collector) HasErrors() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.failures) > 0
}

// Len returns the number of failures
func (c *Collector) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.failures)
}

// Clear clears all failures
func (c *Collector) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.failures = c.failures[:0]
}

// Err folds the collected failures into one error, or nil.
func (c *Collector) Err() error {
	failures := c.Failures()
	if len(failures) == 0 {
		return nil
	}
	msgs := make([]string, len(failures))
	for i, f := range failures {
		msgs[i] = f.Error()
	}
	return &Error{
		Type:    ErrorTypeAttribute,
		Code:    "BULK_RESOLVE",
		Message: fmt.Sprintf("%d names failed to resolve: %s", len(failures), strings.Join(msgs, "; ")),
		Cause:   failures[0].Err,
	}
}
