package utils

import (
	"io"

	"github.com/gabriel-vasile/mimetype"
)

// SniffLimit is how many leading bytes are inspected by DetectContentType.
const SniffLimit = 3072

// DetectContentType sniffs the MIME type of content from its leading bytes.
// The result is diagnostic only; upload acceptance uses the declared type
// and the filename.
func DetectContentType(data []byte) string {
	return mimetype.Detect(data).String()
}

// DetectReaderContentType sniffs from a reader without consuming more than
// SniffLimit bytes. Callers must seek back or re-open before reading.
func DetectReaderContentType(r io.Reader) (string, error) {
	mtype, err := mimetype.DetectReader(io.LimitReader(r, SniffLimit))
	if err != nil {
		return "", err
	}
	return mtype.String(), nil
}
