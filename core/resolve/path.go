// Package resolve locates evidence files inside a repository and reads the
// repository's current revision. Neither operation returns an error: an
// unresolved path or unknown revision is a normal, inspectable result.
package resolve

import (
	"os"
	"path/filepath"
	"strings"
)

type Method string

const (
	MethodUnresolved Method = ""
	MethodAbsolute   Method = "absolute"
	MethodRootJoined Method = "root_joined"
	MethodFileList   Method = "file_list"
)

type Resolution struct {
	// Path is the on-disk location used to read the file.
	Path string
	// Canonical is the form written back into evidence: slash separated and
	// relative to the repository root when the file is inside it.
	Canonical string
	Resolved  bool
	Method    Method
}

type Resolver struct {
	root  string
	files []string
}

// NewResolver builds a resolver for root. files is the run's canonical file
// list; its order decides which entry wins a suffix match.
func NewResolver(root string, files []string) Resolver {
	cleanRoot := strings.TrimSpace(root)
	if cleanRoot == "" {
		cleanRoot = "."
	}
	if absoluteRoot, err := filepath.Abs(cleanRoot); err == nil {
		cleanRoot = absoluteRoot
	}
	normalized := make([]string, 0, len(files))
	for _, file := range files {
		trimmed := strings.TrimSpace(file)
		if trimmed == "" {
			continue
		}
		normalized = append(normalized, filepath.ToSlash(filepath.Clean(trimmed)))
	}
	return Resolver{root: filepath.Clean(cleanRoot), files: normalized}
}

func (resolver Resolver) Root() string {
	return resolver.root
}

func (resolver Resolver) Files() []string {
	return append([]string(nil), resolver.files...)
}

func (resolver Resolver) Resolve(candidate string) Resolution {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return Resolution{}
	}
	native := filepath.FromSlash(trimmed)

	if filepath.IsAbs(native) && isRegularFile(native) {
		return resolver.resolution(filepath.Clean(native), MethodAbsolute)
	}
	joined := filepath.Join(resolver.root, native)
	if !filepath.IsAbs(native) && isRegularFile(joined) {
		return resolver.resolution(joined, MethodRootJoined)
	}

	suffix := strings.TrimPrefix(filepath.ToSlash(filepath.Clean(native)), "./")
	if suffix == "" || suffix == "." {
		return Resolution{}
	}
	for _, entry := range resolver.files {
		if entry != suffix && !strings.HasSuffix(entry, "/"+suffix) {
			continue
		}
		entryPath := filepath.FromSlash(entry)
		if !filepath.IsAbs(entryPath) {
			entryPath = filepath.Join(resolver.root, entryPath)
		}
		return resolver.resolution(entryPath, MethodFileList)
	}
	return Resolution{}
}

func (resolver Resolver) resolution(path string, method Method) Resolution {
	return Resolution{
		Path:      path,
		Canonical: resolver.canonical(path),
		Resolved:  true,
		Method:    method,
	}
}

func (resolver Resolver) canonical(path string) string {
	relative, err := filepath.Rel(resolver.root, path)
	if err != nil || relative == ".." || strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(relative)
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
