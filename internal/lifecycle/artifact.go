package lifecycle

import (
	"net/url"
	"path"
	"strings"
)

// ArtifactFilename extracts the canonical filename from an artifact URL or
// path: the last path segment with any query or fragment removed.
func ArtifactFilename(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if parsed, err := url.Parse(ref); err == nil && parsed.Path != "" {
		ref = parsed.Path
	} else if idx := strings.IndexAny(ref, "?#"); idx >= 0 {
		ref = ref[:idx]
	}
	ref = strings.ReplaceAll(ref, "\\", "/")
	name := path.Base(ref)
	if name == "." || name == "/" {
		return ""
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		return unescaped
	}
	return name
}
