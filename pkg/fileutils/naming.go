package fileutils

import (
	"path/filepath"
	"regexp"
	"strings"
)

// unsafeChars matches everything outside the ASCII allowlist used for output
// folder and file names.
var unsafeChars = regexp.MustCompile("[^a-zA-Z0-9\\-_)(`~.><\\[\\]{}]")

const unknownName = "Unknown"

// SanitizeName maps spaces to underscores and drops every character outside
// the allowlist. Names that end up empty or made only of dots become
// "Unknown" so that they can never resolve to "." or "..".
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	name = unsafeChars.ReplaceAllString(name, "")

	if strings.Trim(name, ".") == "" {
		return unknownName
	}

	return name
}

// ResolvePath returns root/<owner>/<title>.<ext>, sanitizing the owner and
// title segments independently. Two titles that sanitize to the same name
// resolve to the same path.
func ResolvePath(root, owner, title, ext string) string {
	return filepath.Join(root, SanitizeName(owner), SanitizeName(title)+"."+ext)
}
