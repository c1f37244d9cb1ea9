package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodedErrors(t *testing.T) {
	require := require.New(t)

	errTest := New("test/errors", 1, "errors: test error")

	module, code := Code(errTest)
	require.Equal("test/errors", module)
	require.EqualValues(1, code)

	withCtx := WithContext(errTest, "some context")
	require.EqualError(withCtx, "errors: test error: some context")
	require.Same(errTest, WithContext(errTest, ""), "empty context")

	wrapped := fmt.Errorf("outer: %w", withCtx)
	require.ErrorIs(wrapped, errTest, "wrapped error must match")
	module, code = Code(wrapped)
	require.Equal("test/errors", module)
	require.EqualValues(1, code)

	plain := errors.New("plain")
	require.Same(plain, WithContext(plain, "ignored"), "uncoded errors pass through")
	module, code = Code(plain)
	require.Empty(module)
	require.Zero(code)

	module, code = Code(nil)
	require.Empty(module)
	require.Zero(code)

	require.Panics(func() { _ = New("test/errors", 1, "duplicate") }, "duplicate registration")
	require.Panics(func() { _ = New("test/errors", 0, "reserved") }, "reserved code")
}
