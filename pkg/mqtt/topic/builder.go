package topic

import (
	"fmt"
	"strings"
)

// Builder constructs topic strings of the form {root}/{segment}/{deviceID}.
type Builder struct {
	root string
}

// NewBuilder creates a Builder for the given root namespace (e.g. "iov/v1").
func NewBuilder(root string) *Builder {
	return &Builder{root: strings.TrimSuffix(root, "/")}
}

// Build returns {root}/{segment}/{id}.
func (b *Builder) Build(segment, id string) string {
	return fmt.Sprintf("%s/%s/%s", b.root, segment, id)
}

// Wildcard returns {root}/{segment}/+, matching every device.
func (b *Builder) Wildcard(segment string) string {
	return b.Build(segment, Wildcard)
}
