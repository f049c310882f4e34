package upload

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// allowedExtensions is the image allow-list, compared lower-cased.
var allowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
	"webp": true,
}

// Extension returns the lower-cased text after the last dot, or "" when the
// name has no dot.
func Extension(filename string) string {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

// Allowed reports whether filename carries an allow-listed extension.
// Only the name is inspected, never the content.
func Allowed(filename string) bool {
	return allowedExtensions[Extension(filename)]
}

var (
	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

	// NFKD splits "é" into "e" plus a combining accent; dropping everything
	// outside ASCII afterwards leaves the plain letter.
	asciiFold = transform.Chain(
		norm.NFKD,
		runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
	)

	// Device names Windows refuses to create as files.
	windowsDeviceNames = map[string]bool{
		"CON": true, "PRN": true, "AUX": true, "NUL": true,
		"COM1": true, "COM2": true, "COM3": true, "COM4": true,
		"LPT1": true, "LPT2": true, "LPT3": true,
	}
)

// SanitizeFilename turns a client-supplied name into something safe to use as
// a storage key: ASCII only, no path separators, whitespace collapsed to
// underscores, leading/trailing dots and underscores stripped.
//
//	SanitizeFilename("My Photo.JPG")        == "My_Photo.JPG"
//	SanitizeFilename("../../etc/passwd")    == "etc_passwd"
//	SanitizeFilename("crème brûlée.png")    == "creme_brulee.png"
//
// The result may be empty.
func SanitizeFilename(name string) string {
	folded, _, err := transform.String(asciiFold, name)
	if err != nil {
		folded = name
	}

	folded = strings.NewReplacer("/", " ", "\\", " ").Replace(folded)
	folded = strings.Join(strings.Fields(folded), "_")
	folded = unsafeChars.ReplaceAllString(folded, "")
	folded = strings.Trim(folded, "._")

	base := folded
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if windowsDeviceNames[strings.ToUpper(base)] {
		folded = "_" + folded
	}
	return folded
}

// storedName builds the final object name: "<id>_<sanitised>", cut to fit
// maxLen while keeping the extension. If sanitising ate the extension (a name
// made only of non-ASCII letters, say) it falls back to "image.<ext>".
func storedName(id, original string, maxLen int) string {
	ext := Extension(original)
	clean := SanitizeFilename(original)
	if Extension(clean) != ext {
		clean = "image." + ext
	}

	name := id + "_" + clean
	if len(name) <= maxLen {
		return name
	}
	keep := maxLen - len(id) - 1 - len(ext) - 1
	stem := strings.TrimSuffix(clean, "."+ext)
	if keep < 1 {
		return id + "." + ext
	}
	return id + "_" + stem[:keep] + "." + ext
}
