package models

// ErrorResponse is the JSON error body used by the upload and raw artifact endpoints
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is the JSON error body used by the software download endpoint
type MessageResponse struct {
	Message string `json:"message"`
}

// UploadResponse is returned after a software artifact is stored and linked
type UploadResponse struct {
	Message          string `json:"message"`
	Filename         string `json:"filename"`
	Size             int64  `json:"size"`
	DownloadURL      string `json:"downloadUrl"`
	ProcessingTimeMs int64  `json:"processingTimeMs"`
}

// UploadTooLargeResponse is returned when the payload exceeds the size limit
type UploadTooLargeResponse struct {
	Error    string `json:"error"`
	Received int64  `json:"received"`
}

// UploadFailureResponse is returned on unexpected upload failures.
// Details carries a generic failure kind, never paths or internal messages.
type UploadFailureResponse struct {
	Error            string `json:"error"`
	Details          string `json:"details"`
	ProcessingTimeMs int64  `json:"processingTimeMs"`
}

// ComponentStatus is the health of a single dependency
type ComponentStatus struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs,omitempty"`
	Message   string `json:"message,omitempty"`
}

// HealthResponse is returned by the health endpoint
type HealthResponse struct {
	Status        string            `json:"status"`
	Components    []ComponentStatus `json:"components"`
	UptimeSeconds int64             `json:"uptime"`
	ActiveUploads int               `json:"activeUploads"`
	Database      map[string]any    `json:"database,omitempty"`
}
