package utils

import (
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultContentType is served when an extension is not in a table.
const DefaultContentType = "application/octet-stream"

// ContentTypeTable maps lower-cased extensions (with the leading dot) to MIME types.
type ContentTypeTable map[string]string

// Lookup returns the content type for the last extension of filename.
func (t ContentTypeTable) Lookup(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ct, ok := t[ext]; ok {
		return ct
	}
	return DefaultContentType
}

// ImageContentTypes covers product images and previews.
var ImageContentTypes = ContentTypeTable{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// InstallerContentTypes covers software installers and archives.
var InstallerContentTypes = ContentTypeTable{
	".exe": "application/x-msdownload",
	".msi": "application/x-msi",
	".zip": "application/zip",
	".rar": "application/x-rar-compressed",
	".7z":  "application/x-7z-compressed",
	".tar": "application/x-tar",
	".gz":  "application/gzip",
	".deb": "application/vnd.debian.binary-package",
	".rpm": "application/x-rpm",
	".dmg": "application/x-apple-diskimage",
	".pkg": "application/x-newton-compatible-pkg",
}

// AllowedSoftwareMimeTypes is the upload allow-list for declared MIME types.
var AllowedSoftwareMimeTypes = []string{
	"application/x-msdownload",
	"application/x-msi",
	"application/zip",
	"application/x-rar-compressed",
	"application/x-7z-compressed",
	"application/x-tar",
	"application/gzip",
	"application/vnd.debian.binary-package",
	"application/x-rpm",
	"application/x-apple-diskimage",
	"application/x-newton-compatible-pkg",
}

var allowedSoftwareExtension = regexp.MustCompile(`(?i)\.(exe|msi|zip|rar|7z|tar\.gz|deb|rpm|dmg|pkg)$`)

// IsAllowedSoftware reports whether an upload is acceptable. Either signal is
// sufficient: a declared type from the allow-list or a known extension.
func IsAllowedSoftware(declaredType, filename string) bool {
	for _, allowed := range AllowedSoftwareMimeTypes {
		if declaredType == allowed {
			return true
		}
	}
	return allowedSoftwareExtension.MatchString(filename)
}
