package errors

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	err := NewAttributeError("pkg.sub", "missing")

	msg := err.Error()
	assert.Contains(t, msg, "[ATTR_MISSING]")
	assert.Contains(t, msg, "module:pkg.sub")
	assert.Contains(t, msg, `"missing"`)
}

func TestErrorStringWithCause(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	err := NewImportError("pkg.impl", cause)

	assert.Contains(t, err.Error(), "disk on fire")
	assert.ErrorIs(t, err, cause)
}

func TestSentinelMatching(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		sentinel error
		want     bool
	}{
		{"attribute", NewAttributeError("m", "x"), ErrAttribute, true},
		{"traverse is attribute", NewTraverseError("p", "a.b", "b", nil), ErrAttribute, true},
		{"import", NewImportError("p", nil), ErrImport, true},
		{"no module is import", NewNoModuleError("p"), ErrImport, true},
		{"cycle is import", NewCircularImportError("p"), ErrImport, true},
		{"attribute is not import", NewAttributeError("m", "x"), ErrImport, false},
		{"spec", NewSpecError("BAD", "x", "bad"), ErrSpec, true},
		{"registry", NewRegistryError("DUP", "x", "dup"), ErrRegistry, true},
		{"hook", NewHookError("m", 3), ErrHook, true},
		{"foreign", fmt.Errorf("plain"), ErrImport, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, errors.Is(tc.err, tc.sentinel))
		})
	}
}

func TestIsMatchesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewNoModuleError("pkg.missing"))

	assert.True(t, IsImportError(err))
	assert.False(t, IsAttributeError(err))
	assert.Equal(t, ErrorTypeImport, GetType(err))
}

func TestIsComparesCodeWhenPresent(t *testing.T) {
	err := NewNoModuleError("x")

	assert.True(t, errors.Is(err, &Error{Type: ErrorTypeImport, Code: "NO_MODULE"}))
	assert.False(t, errors.Is(err, &Error{Type: ErrorTypeImport, Code: "IMPORT_CYCLE"}))
}

func TestGetTypeForeign(t *testing.T) {
	assert.Equal(t, ErrorTypeInternal, GetType(fmt.Errorf("x")))
}

func TestWithContext(t *testing.T) {
	err := NewSpecError("BAD_LOCATION", "x", "bad").WithContext("spec", "a:b:c").WithModule("pkg")

	assert.Equal(t, "a:b:c", err.Context["spec"])
	assert.Equal(t, "pkg", err.Module)
}

func TestCollector(t *testing.T) {
	c := NewCollector()
	assert.False(t, c.HasErrors())
	assert.NoError(t, c.Err())

	c.Add("pkg", "a", NewNoModuleError("pkg.a"))
	c.Add("pkg", "b", nil)
	c.Add("pkg", "c", NewAttributeError("pkg", "c"))

	require.Equal(t, 2, c.Len())
	failures := c.Failures()
	assert.Equal(t, "a", failures[0].Name)
	assert.Equal(t, "c", failures[1].Name)
	assert.Contains(t, failures[0].Error(), "pkg.a")

	err := c.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 names failed")
	assert.True(t, IsImportError(err))

	c.Clear()
	assert.False(t, c.HasErrors())
}

func TestCollectorConcurrentAdd(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Add("pkg", fmt.Sprintf("n%d", i), fmt.Errorf("e%d", i))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, c.Len())
}
