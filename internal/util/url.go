package util

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// trackingParams are query parameters that vary between page loads of the
// same topic. phpBB appends a session id to links for cookieless visitors.
var trackingParams = []string{"sid", "utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content"}

// NormalizePostPath turns a listing href into the stable relative path used
// as a post's identity. Absolute links on the forum host are not rewritten.
func NormalizePostPath(rawPath string) string {
	p := strings.TrimSpace(rawPath)
	p = strings.TrimPrefix(p, "./")

	parsed, err := url.Parse(p)
	if err != nil || parsed.RawQuery == "" {
		return p
	}

	queryParams := parsed.Query()
	for _, param := range trackingParams {
		queryParams.Del(param)
	}
	parsed.RawQuery = queryParams.Encode()
	return parsed.String()
}

// ResolveForumURL joins a site-relative reference onto the forum base URL.
// One leading "." or "/" is stripped from the reference first; absolute
// http(s) references are returned unchanged.
func ResolveForumURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if ref != "" && (ref[0] == '.' || ref[0] == '/') {
		ref = ref[1:]
	}
	ref = strings.TrimPrefix(ref, "/")
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + ref
}

// ImageDir is the directory holding a post's downloaded attachments. The post
// path is cleaned as if rooted so it can never escape root.
func ImageDir(root, postPath string) string {
	return filepath.Join(root, filepath.FromSlash(path.Clean("/"+postPath)))
}

// ImagePath is the location of the n-th (1-based) attachment of a post.
func ImagePath(root, postPath string, n int) string {
	return filepath.Join(ImageDir(root, postPath), fmt.Sprintf("file%d.jpg", n))
}
