// Package blob stores attachment objects in MinIO/S3 or a local directory.
package blob

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/util"
)

var ErrNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key         string
	ContentType string
	Size        int64
}

// Store is implemented by Minio and Dir.
type Store interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// Key builds <orgId>/<ownerType>/<uuid>-<latin name>.
func Key(orgID, ownerType, originalName string) string {
	return path.Join(orgID, ownerType, util.NewID()+"-"+LatinName(originalName))
}

// ValidKey rejects keys that could escape the storage root.
func ValidKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}

var cyrillic = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "yo", 'ж': "zh",
	'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m", 'н': "n", 'о': "o",
	'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u", 'ф': "f", 'х': "kh", 'ц': "ts",
	'ч': "ch", 'ш': "sh", 'щ': "shch", 'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "yu",
	'я': "ya",
}

// LatinName transliterates Cyrillic, drops diacritics and replaces anything
// outside [A-Za-z0-9._-] with an underscore. Mail clients and object stores
// both accept the result.
func LatinName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" {
		name = ""
	}

	var b strings.Builder
	for _, r := range name {
		lower := unicode.ToLower(r)
		if latin, ok := cyrillic[lower]; ok {
			if r != lower && latin != "" {
				latin = strings.ToUpper(latin[:1]) + latin[1:]
			}
			b.WriteString(latin)
			continue
		}
		b.WriteRune(r)
	}

	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), b.String())
	if err != nil {
		stripped = b.String()
	}

	out := []rune(stripped)
	for i, r := range out {
		if !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_' || r == '-')) {
			out[i] = '_'
		}
	}
	result := strings.Trim(string(out), ".")
	if result == "" {
		return "file"
	}
	return result
}
