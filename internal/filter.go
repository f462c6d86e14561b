package internal

import "strings"

// videoExtensions is matched case-sensitively against the object key.
var videoExtensions = map[string]bool{
	".rmvb": true,
	".mp4":  true,
	".3pg":  true,
	".mov":  true,
	".m4v":  true,
	".avi":  true,
	".mkv":  true,
	".flv":  true,
	".vob":  true,
	".wmv":  true,
	".asf":  true,
	".asx":  true,
	".dat":  true,
}

// IsVideoExtension reports whether ext (with leading dot) is a known video
// container extension.
func IsVideoExtension(ext string) bool {
	return videoExtensions[ext]
}

// IsEligible reports whether the record names a video object. A known
// extension is enough; otherwise the declared content type must start with
// "video". Records without a content type are not eligible.
func IsEligible(record *Record) bool {
	if record == nil || record.COS == nil {
		return false
	}
	if key, err := ParseObjectKey(record.COS.Object.Key); err == nil && IsVideoExtension(key.Extension) {
		return true
	}
	contentType, ok := record.ContentType()
	if !ok {
		return false
	}
	return strings.HasPrefix(contentType, "video")
}
