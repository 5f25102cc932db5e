package utils

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ArtifactNamePrefix is the literal prefix of every stored software artifact.
const ArtifactNamePrefix = "product_"

// DefaultArtifactExtension is used when the uploaded name has no extension.
const DefaultArtifactExtension = "bin"

// ErrInvalidFileFormat is returned when a filename does not follow the
// product_{id}_{timestamp}.{ext} scheme.
var ErrInvalidFileFormat = errors.New("invalid file format")

var artifactOwnerPattern = regexp.MustCompile(`^product_([^_]+)_`)

// ArtifactToken is the decoded form of a stored artifact name.
type ArtifactToken struct {
	OwnerID   string
	Timestamp int64
	Extension string
}

// ArtifactExtension returns the lower-cased text after the last dot of name,
// or DefaultArtifactExtension when there is none.
func ArtifactExtension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return DefaultArtifactExtension
	}
	return strings.ToLower(name[idx+1:])
}

// EncodeArtifactName builds product_{ownerID}_{unix millis}.{ext} from the
// original upload name.
func EncodeArtifactName(ownerID, originalName string, now time.Time) string {
	return fmt.Sprintf("%s%s_%d.%s", ArtifactNamePrefix, ownerID, now.UnixMilli(), ArtifactExtension(originalName))
}

// DecodeArtifactOwner extracts the owner id from a stored artifact name.
func DecodeArtifactOwner(filename string) (string, error) {
	m := artifactOwnerPattern.FindStringSubmatch(filename)
	if m == nil {
		return "", ErrInvalidFileFormat
	}
	return m[1], nil
}

// ParseArtifactName decodes all parts of a canonical artifact name. The
// timestamp is zero when the second segment is not numeric.
func ParseArtifactName(filename string) (ArtifactToken, error) {
	owner, err := DecodeArtifactOwner(filename)
	if err != nil {
		return ArtifactToken{}, err
	}

	token := ArtifactToken{
		OwnerID:   owner,
		Extension: ArtifactExtension(filename),
	}

	rest := strings.TrimPrefix(filename, ArtifactNamePrefix+owner+"_")
	if dot := strings.Index(rest, "."); dot >= 0 {
		rest = rest[:dot]
	}
	if ts, err := strconv.ParseInt(rest, 10, 64); err == nil {
		token.Timestamp = ts
	}

	return token, nil
}

// ArtifactDisplayName rebuilds the name offered to the browser: the text
// after the second underscore up to its first dot, followed by the extension
// of the whole filename.
//
//	product_abc_1700000000000.zip -> 1700000000000.zip
func ArtifactDisplayName(filename string) string {
	parts := strings.Split(filename, "_")
	tail := ""
	if len(parts) > 2 {
		tail = strings.Join(parts[2:], "_")
	}
	if dot := strings.Index(tail, "."); dot >= 0 {
		tail = tail[:dot]
	}

	ext := filepath.Ext(filename)
	if ext == "" {
		return tail
	}
	return tail + ext
}
