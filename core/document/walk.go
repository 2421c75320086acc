package document

import (
	"errors"
	"strconv"
	"strings"
)

// SkipChildren may be returned by a Visitor to stop descent below the current node.
var SkipChildren = errors.New("skip children")

// Path addresses a node by the mapping keys and sequence indexes leading to it.
type Path []string

// Pointer renders the path as an RFC 6901 JSON pointer. The root is "".
func (path Path) Pointer() string {
	if len(path) == 0 {
		return ""
	}
	builder := strings.Builder{}
	for _, segment := range path {
		builder.WriteByte('/')
		builder.WriteString(EscapePointerToken(segment))
	}
	return builder.String()
}

// Last returns the final segment, or "" for the root.
func (path Path) Last() string {
	if len(path) == 0 {
		return ""
	}
	return path[len(path)-1]
}

func (path Path) child(segment string) Path {
	next := make(Path, len(path), len(path)+1)
	copy(next, path)
	return append(next, segment)
}

func EscapePointerToken(token string) string {
	token = strings.ReplaceAll(token, "~", "~0")
	return strings.ReplaceAll(token, "/", "~1")
}

// Visitor is called for every node in pre-order. Children are read after the
// visitor returns, so a visitor may rewrite the node it was handed.
type Visitor func(path Path, value Value) error

// Walk visits value and all of its descendants. Mapping children are visited
// in sorted key order and sequence children in index order.
func Walk(value Value, visit Visitor) error {
	return walk(nil, value, visit)
}

func walk(path Path, value Value, visit Visitor) error {
	if err := visit(path, value); err != nil {
		if errors.Is(err, SkipChildren) {
			return nil
		}
		return err
	}
	switch typed := value.(type) {
	case *Mapping:
		for _, key := range typed.Keys() {
			child, ok := typed.Get(key)
			if !ok {
				continue
			}
			if err := walk(path.child(key), child, visit); err != nil {
				return err
			}
		}
	case *Sequence:
		for index := 0; index < typed.Len(); index++ {
			if err := walk(path.child(strconv.Itoa(index)), typed.At(index), visit); err != nil {
				return err
			}
		}
	}
	return nil
}
