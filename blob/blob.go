// Package blob stores uploaded listing photos and names them.
package blob

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/segmentio/ksuid"
)

// Store persists an uploaded file and returns the reference kept on the
// listing. Delete of an unknown ref is not an error.
type Store interface {
	Save(ctx context.Context, originalName string, r io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
}

// Presigner is implemented by stores whose objects are served through
// short-lived URLs instead of the local filesystem.
type Presigner interface {
	PresignGet(ctx context.Context, ref string) (string, error)
}

// NewRef returns "<ksuid>-<sanitised base name>". Refs sort by creation time.
func NewRef(originalName string) string {
	return ksuid.New().String() + "-" + sanitize(originalName)
}

func sanitize(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "file"
	}
	return name
}

// ValidRef reports whether ref looks like a reference produced by NewRef,
// so it is safe to use as a file or object name.
func ValidRef(ref string) bool {
	if ref == "" || ref != sanitize(ref) {
		return false
	}
	i := strings.IndexByte(ref, '-')
	if i <= 0 {
		return false
	}
	_, err := ksuid.Parse(ref[:i])
	return err == nil
}
