// Package errors implements module scoped error codes.
//
// Every error created by New is identified by its module name and a
// numeric code. The identity survives context added with WithContext and
// wrapping with fmt.Errorf, so callers can tell which module rejected an
// operation without matching messages.
package errors

import (
	"errors"
	"fmt"
	"sync"
)

type errorKey struct {
	module string
	code   uint32
}

func (k errorKey) String() string {
	return fmt.Sprintf("%s/%d", k.module, k.code)
}

var (
	registeredLock sync.Mutex
	registered     = make(map[errorKey]*codedError)
)

type codedError struct {
	key errorKey
	msg string
}

func (e *codedError) Error() string {
	return e.msg
}

type contextError struct {
	err     *codedError
	context string
}

func (e *contextError) Error() string {
	return e.err.msg + ": " + e.context
}

func (e *contextError) Unwrap() error {
	return e.err
}

// New creates and registers a coded error. Code 0 is reserved and every
// module and code pair may be registered once, otherwise this panics.
func New(module string, code uint32, msg string) error {
	k := errorKey{module, code}
	if code == 0 {
		panic(fmt.Sprintf("errors: %s: code 0 is reserved", k))
	}

	registeredLock.Lock()
	defer registeredLock.Unlock()

	if prev, ok := registered[k]; ok {
		panic(fmt.Sprintf("errors: %s already registered as %q", k, prev.msg))
	}
	e := &codedError{key: k, msg: msg}
	registered[k] = e

	return e
}

// WithContext annotates a coded error with human readable context. The
// result still matches err under errors.Is and keeps its code. Errors not
// created by New are returned unchanged.
func WithContext(err error, context string) error {
	ce, ok := err.(*codedError)
	if !ok || context == "" {
		return err
	}
	return &contextError{err: ce, context: context}
}

// Code returns the module and code of the first coded error in err's
// chain, or an empty module and 0 if there is none.
func Code(err error) (string, uint32) {
	var ce *codedError
	if !errors.As(err, &ce) {
		return "", 0
	}
	return ce.key.module, ce.key.code
}
