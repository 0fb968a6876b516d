package core

import (
	"runtime"
	"sync"
)

/** @brief Diagnostic information passed to the allocator with every request. */
type AllocTag struct {
	TypeName string
	File     string
	Line     int
}

/**
 * @brief Allocates size bytes on behalf of the library. Returning nil
 * signals an allocation failure.
 */
type AllocatorHandler func(size uintptr, tag AllocTag) []byte

/**
 * @brief Receives a failed internal invariant. Returning true asks the
 * library to ignore further failures of the same expression.
 */
type AssertHandler func(expr, file string, line int) (ignore bool)

func DefaultAllocator(size uintptr, tag AllocTag) []byte {
	return make([]byte, size)
}

func DefaultAssertHandler(expr, file string, line int) bool {
	LogError("assertion failed: %s (%s:%d)", expr, file, line)
	return false
}

var handlers = struct {
	sync.RWMutex
	alloc   AllocatorHandler
	assert  AssertHandler
	ignored map[string]bool
}{
	alloc:   DefaultAllocator,
	assert:  DefaultAssertHandler,
	ignored: map[string]bool{},
}

// SetHandlers installs the process-wide callbacks. nil selects the default.
func SetHandlers(alloc AllocatorHandler, assert AssertHandler) {
	handlers.Lock()
	defer handlers.Unlock()

	if alloc == nil {
		alloc = DefaultAllocator
	}
	if assert == nil {
		assert = DefaultAssertHandler
	}
	handlers.alloc = alloc
	handlers.assert = assert
	handlers.ignored = map[string]bool{}
}

func ResetHandlers() {
	SetHandlers(nil, nil)
}

// Allocate requests size bytes tagged with the caller's location.
func Allocate(size uintptr, typeName string) []byte {
	_, file, line, _ := runtime.Caller(1)

	handlers.RLock()
	alloc := handlers.alloc
	handlers.RUnlock()

	return alloc(size, AllocTag{TypeName: typeName, File: file, Line: line})
}

/**
 * @brief Reports expr to the assert handler when cond is false.
 * @returns cond, so callers can branch on it.
 */
func Assert(cond bool, expr string) bool {
	if cond {
		return true
	}
	_, file, line, _ := runtime.Caller(1)

	handlers.RLock()
	assert := handlers.assert
	ignored := handlers.ignored[expr]
	handlers.RUnlock()

	if ignored {
		return false
	}
	if assert(expr, file, line) {
		handlers.Lock()
		handlers.ignored[expr] = true
		handlers.Unlock()
	}
	return false
}
