package mediatypes

import (
	"path/filepath"
	"strings"
)

// Kind represents the declared kind of an uploaded media asset.
type Kind string

const (
	// KindImage represents a photo or banner upload.
	KindImage Kind = "image"
	// KindVideo represents a flick (short product video) upload.
	KindVideo Kind = "video"
)

// Valid reports whether k is a known media kind.
func (k Kind) Valid() bool {
	return k == KindImage || k == KindVideo
}

// ImageExtensions maps accepted image file extensions to true.
// Uploads with any other extension are rejected before processing.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// VideoExtensions maps accepted video file extensions to true.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
}

// NormalizeExt lowercases a filename's extension and ensures a leading dot.
// An empty result means the name carries no extension.
func NormalizeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "." {
		return ""
	}
	return ext
}

// Allowed reports whether ext (normalized, leading dot) is acceptable for kind.
func Allowed(kind Kind, ext string) bool {
	switch kind {
	case KindImage:
		return ImageExtensions[ext]
	case KindVideo:
		return VideoExtensions[ext]
	default:
		return false
	}
}

// EncodeFormat returns the canonical output image format for a source
// extension: the input format is kept when it is one of JPEG, PNG, GIF or
// WEBP ("jpg" counts as JPEG), anything else falls back to JPEG.
func EncodeFormat(ext string) string {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "jpg", "jpeg":
		return "jpeg"
	case "png":
		return "png"
	case "gif":
		return "gif"
	case "webp":
		return "webp"
	default:
		return "jpeg"
	}
}

// KindForExt guesses a media kind from a file extension. Used for listings
// only; upload validation goes through Allowed with the declared kind.
func KindForExt(ext string) (Kind, bool) {
	if ImageExtensions[ext] {
		return KindImage, true
	}
	if VideoExtensions[ext] {
		return KindVideo, true
	}
	return "", false
}
