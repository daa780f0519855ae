// Package tree converts flat path→content file sets into the hierarchical
// filesystem layout the sandbox runtime mounts.
package tree

import (
	"archive/tar"
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"previewd/internal/types"
)

// Node is either a directory (Children non-nil) or a file (Content set).
// A tree has no identity beyond its structure; it is discarded after being
// handed to the runtime.
type Node struct {
	Name     string
	Dir      bool
	Content  string
	Children map[string]*Node
}

// Build constructs a tree from a flat file set. Intermediate directories
// are created idempotently, so sibling paths reuse them. Paths are assumed
// to be clean relative paths; no "."/".." normalization is performed.
// Deterministic: the same file set always yields a structurally identical
// tree.
func Build(files types.FileSet) *Node {
	root := &Node{Name: "", Dir: true, Children: make(map[string]*Node)}

	for path, content := range files {
		if path == "" {
			continue
		}

		segments := strings.Split(path, "/")
		current := root
		for _, segment := range segments[:len(segments)-1] {
			child, exists := current.Children[segment]
			if !exists {
				child = &Node{Name: segment, Dir: true, Children: make(map[string]*Node)}
				current.Children[segment] = child
			}
			current = child
		}

		leaf := segments[len(segments)-1]
		current.Children[leaf] = &Node{Name: leaf, Content: content}
	}

	return root
}

// Flatten is the inverse of Build: it walks the tree and returns the flat
// file set. Directories without files contribute nothing.
func Flatten(root *Node) types.FileSet {
	files := make(types.FileSet)
	if root == nil {
		return files
	}
	flattenInto(root, "", files)
	return files
}

func flattenInto(node *Node, prefix string, files types.FileSet) {
	for name, child := range node.Children {
		path := name
		if prefix != "" {
			path = prefix + "/" + name
		}
		if child.Dir {
			flattenInto(child, path, files)
			continue
		}
		files[path] = child.Content
	}
}

// CountFiles counts file nodes in a tree.
func CountFiles(root *Node) int {
	if root == nil {
		return 0
	}
	count := 0
	for _, child := range root.Children {
		if child.Dir {
			count += CountFiles(child)
			continue
		}
		count++
	}
	return count
}

// Tar renders the tree as a tar archive rooted at base, the format the
// docker copy API accepts for a full mount. Entries are emitted in sorted
// path order so the archive bytes are deterministic.
func Tar(root *Node, base string) ([]byte, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	now := time.Now()

	files := Flatten(root)
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	seenDirs := make(map[string]bool)
	for _, path := range paths {
		// Parent directory entries first, outermost inward.
		dir := ""
		segments := strings.Split(path, "/")
		for _, segment := range segments[:len(segments)-1] {
			if dir == "" {
				dir = segment
			} else {
				dir = dir + "/" + segment
			}
			if seenDirs[dir] {
				continue
			}
			seenDirs[dir] = true
			hdr := &tar.Header{
				Name:     base + "/" + dir + "/",
				Typeflag: tar.TypeDir,
				Mode:     0o755,
				ModTime:  now,
			}
			if err := tw.WriteHeader(hdr); err != nil {
				return nil, fmt.Errorf("failed to write directory header: %w", err)
			}
		}

		content := files[path]
		hdr := &tar.Header{
			Name:     base + "/" + path,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(content)),
			ModTime:  now,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("failed to write file header: %w", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			return nil, fmt.Errorf("failed to write file content: %w", err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}
