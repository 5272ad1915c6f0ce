package config

import (
	"errors"
	"fmt"
)

var (
	// ErrLoad is matched by every error returned while building a Store.
	ErrLoad = errors.New("config: load failed")
	// ErrParse is matched by every error returned from a typed accessor.
	ErrParse = errors.New("config: parse failed")

	errEmptyDocument   = errors.New("document is empty")
	errRootNotMapping  = errors.New("document root must be a mapping")
	errDuplicateKey    = errors.New("duplicate mapping key")
	errUnsupportedKey  = errors.New("mapping keys must be scalars")
	errMergeKey        = errors.New("merge keys are not supported")
	errPathCollision   = errors.New("flattened path collision")
	errUnsupportedNode = errors.New("unsupported document node")
	errAliasBudget     = errors.New("alias expansion exceeds limit")
)

// LoadError reports why a document could not be turned into a Store.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("load config: %v", e.Err)
	}
	return fmt.Sprintf("load config %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is makes every LoadError match ErrLoad.
func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// ParseError is returned when a key is present but its value cannot be
// converted to the requested type. It never invalidates the Store.
type ParseError struct {
	Key   string
	Value string
	Type  string
	Err   error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("cannot convert %q to %s (key=%s)", e.Value, e.Type, e.Key)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is makes every ParseError match ErrParse.
func (e *ParseError) Is(target error) bool { return target == ErrParse }
