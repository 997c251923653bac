package utils

import "strings"

// FileExtensionForContentType maps the MIME types vets actually send to a file
// extension, used when an attachment arrives without a usable filename.
func FileExtensionForContentType(contentType string) string {
	contentType = strings.ToLower(contentType)

	switch {
	case strings.Contains(contentType, "pdf"):
		return "pdf"
	case strings.Contains(contentType, "jpeg") || strings.Contains(contentType, "jpg"):
		return "jpg"
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "heif") || strings.Contains(contentType, "heic"):
		return "heic"
	case strings.Contains(contentType, "webp"):
		return "webp"
	case strings.Contains(contentType, "tiff") || strings.Contains(contentType, "tif"):
		return "tiff"
	case strings.Contains(contentType, "gif"):
		return "gif"
	case strings.Contains(contentType, "bmp"):
		return "bmp"
	case strings.Contains(contentType, "word") || strings.Contains(contentType, "doc"):
		return "docx"
	case strings.Contains(contentType, "text/plain"):
		return "txt"
	case strings.Contains(contentType, "json"):
		return "json"
	default:
		return "bin"
	}
}

// IsSupportedDocumentType reports whether the oracle can read the content type.
func IsSupportedDocumentType(contentType string) bool {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	switch contentType {
	case "application/pdf", "image/jpeg", "image/jpg", "image/png", "image/webp", "image/heic", "image/heif", "text/plain":
		return true
	}
	return false
}
