// Package classify maps filenames to content categories and builds the
// object keys uploads are stored under.
package classify

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/bencyrus/safeupload/internal/types"
)

var extensions = map[string]types.Category{
	".jpg":  types.CategoryImage,
	".jpeg": types.CategoryImage,
	".png":  types.CategoryImage,
	".gif":  types.CategoryImage,
	".bmp":  types.CategoryImage,
	".tiff": types.CategoryImage,
	".webp": types.CategoryImage,

	".mp4":  types.CategoryVideo,
	".mov":  types.CategoryVideo,
	".avi":  types.CategoryVideo,
	".mkv":  types.CategoryVideo,
	".wmv":  types.CategoryVideo,
	".flv":  types.CategoryVideo,
	".webm": types.CategoryVideo,

	".mp3":  types.CategoryVoice,
	".wav":  types.CategoryVoice,
	".aac":  types.CategoryVoice,
	".flac": types.CategoryVoice,
	".m4a":  types.CategoryVoice,
	".ogg":  types.CategoryVoice,

	".txt":  types.CategoryDocument,
	".md":   types.CategoryDocument,
	".json": types.CategoryDocument,
	".csv":  types.CategoryDocument,
	".log":  types.CategoryDocument,
	".pdf":  types.CategoryDocument,
	".docx": types.CategoryDocument,
}

// Documents live under txt/ in the bucket.
var prefixes = map[types.Category]string{
	types.CategoryDocument: "txt",
}

// Categorize returns the category for filename. Unknown or missing
// extensions map to CategoryOther.
func Categorize(filename string) types.Category {
	if c, ok := extensions[strings.ToLower(Ext(filename))]; ok {
		return c
	}
	return types.CategoryOther
}

// Prefix is the key directory used for objects of category c.
func Prefix(c types.Category) string {
	if p, ok := prefixes[c]; ok {
		return p
	}
	return string(c)
}

// NewKey builds a unique key {prefix}/{uuid}{ext} for filename. The
// extension keeps the caller's casing.
func NewKey(filename string) string {
	return Prefix(Categorize(filename)) + "/" + uuid.NewString() + Ext(filename)
}

// Ext returns the extension of filename's base name, including the dot.
// Leading dots do not start an extension, so ".png" has none.
func Ext(filename string) string {
	base := strings.TrimLeft(filepath.Base(filename), ".")
	i := strings.LastIndexByte(base, '.')
	if i < 0 {
		return ""
	}
	return base[i:]
}

// TextKey builds the key for an approved text submission.
func TextKey() string {
	return Prefix(types.CategoryDocument) + "/" + uuid.NewString() + ".txt"
}

// ContentType guesses a MIME type for the stored object; the store falls back
// to application/octet-stream when this is empty.
func ContentType(filename string) string {
	switch strings.ToLower(Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".ogg":
		return "audio/ogg"
	case ".txt", ".log", ".md":
		return "text/plain; charset=utf-8"
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".pdf":
		return "application/pdf"
	}
	return ""
}
