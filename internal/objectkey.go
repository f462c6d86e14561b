package internal

import (
	"errors"
	"fmt"
	"strings"
)

var ErrMalformedObjectKey = errors.New("malformed object key")

// ObjectKey is the decomposed form of a notification object key, which has the
// shape /<appid>/<bucket>/<dir>/.../<name><ext>.
type ObjectKey struct {
	AppID  string
	Bucket string
	// Path is the containing directory, "/" for objects at the bucket root.
	Path string
	Name string
	// Extension includes the leading dot and is empty when the name has none.
	// It keeps the key's case so Path, Name and Extension rebuild Rel exactly;
	// the allow-list match in IsVideoExtension is case-sensitive.
	Extension string

	segments []string
}

func ParseObjectKey(key string) (*ObjectKey, error) {
	segs := strings.Split(key, "/")
	if len(segs) < 4 {
		return nil, fmt.Errorf("%w: %q", ErrMalformedObjectKey, key)
	}

	ok := &ObjectKey{
		AppID:    segs[1],
		Bucket:   segs[2],
		Path:     "/" + strings.Join(segs[3:len(segs)-1], "/"),
		segments: segs,
	}

	longName := segs[len(segs)-1]
	if i := strings.LastIndex(longName, "."); i >= 0 {
		ok.Name = longName[:i]
		ok.Extension = longName[i:]
	} else {
		ok.Name = longName
	}
	return ok, nil
}

// Rel returns the key with the appid and bucket segments removed.
func (k *ObjectKey) Rel() string {
	return "/" + strings.Join(k.segments[3:], "/")
}

// Dir returns Path with exactly one trailing slash.
func (k *ObjectKey) Dir() string {
	return strings.TrimRight(k.Path, "/") + "/"
}
