package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Flatten walks root depth-first and returns one entry per leaf, keyed by its
// dotted path. Sequence elements are addressed as "[i]" segments, e.g.
// "hosts.[0]" or "grid.[1][0]". A mapping key starting with "[" is appended
// to its parent path without a separator.
//
// Strings are stored verbatim, booleans as "true"/"false". Empty sequences
// and every other scalar kind are stored as the empty string.
func Flatten(root Mapping) (map[string]string, error) {
	return flattener{}.flatten(root)
}

type flattener struct {
	numericText bool
}

func (f flattener) flatten(root Mapping) (map[string]string, error) {
	out := make(map[string]string)
	if err := f.walkMapping(out, root, ""); err != nil {
		return nil, err
	}
	return out, nil
}

func (f flattener) walkMapping(out map[string]string, m Mapping, prefix string) error {
	for _, entry := range m {
		if err := f.walk(out, childPath(prefix, entry.Key), entry.Value); err != nil {
			return err
		}
	}
	return nil
}

func (f flattener) walk(out map[string]string, path string, node Node) error {
	switch v := node.(type) {
	case String:
		return insert(out, path, string(v))
	case Bool:
		return insert(out, path, strconv.FormatBool(bool(v)))
	case Mapping:
		return f.walkMapping(out, v, path)
	case Sequence:
		if len(v) == 0 {
			return insert(out, path, "")
		}
		for i, item := range v {
			if err := f.walk(out, indexPath(path, i), item); err != nil {
				return err
			}
		}
		return nil
	case Other:
		if f.numericText && (v.Tag == tagInt || v.Tag == tagFloat) {
			return insert(out, path, v.Text)
		}
		return insert(out, path, "")
	case nil:
		return fmt.Errorf("%w: missing value at %q", errUnsupportedNode, path)
	default:
		return fmt.Errorf("%w: %T at %q", errUnsupportedNode, node, path)
	}
}

func childPath(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case strings.HasPrefix(key, "["):
		return prefix + key
	default:
		return prefix + "." + key
	}
}

// indexPath addresses element i of the sequence at path. The first index
// follows a dot, directly nested indexes are chained: "a.[0]", "a.[0][1]".
func indexPath(path string, i int) string {
	segment := "[" + strconv.Itoa(i) + "]"
	if strings.HasSuffix(path, "]") {
		return path + segment
	}
	return path + "." + segment
}

// insert refuses to overwrite: two leaves sharing a path means the document
// used keys that collide once joined (for example "a.b" next to a: {b: ..}).
func insert(out map[string]string, path, value string) error {
	if _, exists := out[path]; exists {
		return fmt.Errorf("%w: %q", errPathCollision, path)
	}
	out[path] = value
	return nil
}
