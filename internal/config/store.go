package config

import (
	"bytes"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Store is the flattened, read-only view of a configuration document.
// It is never modified after Load returns and may be shared between
// goroutines without locking.
type Store struct {
	properties map[string]string
}

// LoadOption configures how a document is flattened.
type LoadOption func(*flattener)

// WithNumericText stores integer and float scalars as their source text
// instead of the empty string, so that unquoted numbers can be read back
// with GetI64, GetU16 or GetString.
func WithNumericText() LoadOption {
	return func(f *flattener) {
		f.numericText = true
	}
}

// Load reads a YAML document whose root is a mapping and flattens it.
// Aliases are expanded; merge keys ("<<") are rejected with a *LoadError.
func Load(r io.Reader, opts ...LoadOption) (*Store, error) {
	return load("", r, opts)
}

// LoadFile is Load for a file on disk.
func LoadFile(path string, opts ...LoadOption) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	return load(path, bytes.NewReader(data), opts)
}

func load(source string, r io.Reader, opts []LoadOption) (*Store, error) {
	root, err := decodeDocument(r)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}

	var f flattener
	for _, opt := range opts {
		opt(&f)
	}
	properties, err := f.flatten(root)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	return &Store{properties: properties}, nil
}

// NewStore builds a Store from an already flattened mapping. The map is
// copied.
func NewStore(properties map[string]string) *Store {
	copied := make(map[string]string, len(properties))
	for k, v := range properties {
		copied[k] = v
	}
	return &Store{properties: copied}
}

// Len returns the number of flattened entries.
func (s *Store) Len() int {
	return len(s.properties)
}

// Keys returns every flattened path in lexical order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.properties))
	for k := range s.properties {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Has reports whether key is present, even with an empty value.
func (s *Store) Has(key string) bool {
	_, ok := s.properties[key]
	return ok
}

// GetString returns the raw stored value.
func (s *Store) GetString(key string) (string, bool) {
	v, ok := s.properties[key]
	return v, ok
}

// GetBool accepts "true" and "false" in any letter case. Every other value,
// the empty string included, is a *ParseError.
func (s *Store) GetBool(key string) (bool, bool, error) {
	raw, ok := s.properties[key]
	if !ok {
		return false, false, nil
	}
	switch strings.ToLower(raw) {
	case "true":
		return true, true, nil
	case "false":
		return false, true, nil
	default:
		return false, true, &ParseError{Key: key, Value: raw, Type: "bool"}
	}
}

// GetI64 parses a base-10 signed 64-bit integer. Missing and empty values are
// both reported as absent.
func (s *Store) GetI64(key string) (int64, bool, error) {
	raw, ok := s.nonEmpty(key)
	if !ok {
		return 0, false, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, true, &ParseError{Key: key, Value: raw, Type: "i64", Err: err}
	}
	return v, true, nil
}

// GetU16 parses a base-10 unsigned 16-bit integer with an optional leading
// "+", like GetI64. Missing and empty values are both reported as absent.
func (s *Store) GetU16(key string) (uint16, bool, error) {
	raw, ok := s.nonEmpty(key)
	if !ok {
		return 0, false, nil
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(raw, "+"), 10, 16)
	if err != nil {
		return 0, true, &ParseError{Key: key, Value: raw, Type: "u16", Err: err}
	}
	return uint16(v), true, nil
}

// GetDuration parses a value such as "1m30s" with time.ParseDuration.
// Missing and empty values are both reported as absent.
func (s *Store) GetDuration(key string) (time.Duration, bool, error) {
	raw, ok := s.nonEmpty(key)
	if !ok {
		return 0, false, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, true, &ParseError{Key: key, Value: raw, Type: "duration", Err: err}
	}
	return v, true, nil
}

// GetArray collects key.[0], key.[1], ... until the first missing index.
// The result is never nil.
func (s *Store) GetArray(key string) []string {
	result := []string{}
	for i := 0; ; i++ {
		v, ok := s.GetString(indexPath(key, i))
		if !ok {
			return result
		}
		result = append(result, v)
	}
}

func (s *Store) nonEmpty(key string) (string, bool) {
	raw, ok := s.properties[key]
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}
