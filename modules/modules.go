package modules

// Shared DTOs exchanged between the recorder service and the control API.

// Error kinds surfaced to the UI. Acquisition-time kinds are returned
// synchronously; in-flight kinds arrive on the error event channel.
const (
	ErrKindPermissionDenied  = `PermissionDenied`
	ErrKindSourceUnavailable = `SourceUnavailable`
	ErrKindEncoderInit       = `EncoderInitError`
	ErrKindEncoding          = `EncodingError`
	ErrKindResourceCleanup   = `ResourceCleanupError`
)

// Status is pushed to the UI continuously while a session exists.
type Status struct {
	State          string   `json:"state"`
	ElapsedSeconds float64  `json:"elapsedSeconds"`
	MicLevel       float64  `json:"micLevel"`
	HasError       bool     `json:"hasError,omitempty"`
	Metrics        *Metrics `json:"metrics,omitempty"`
}

// Metrics is a snapshot of pipeline counters since the session started.
type Metrics struct {
	FramesComposited uint64 `json:"framesComposited"`
	FramesDropped    uint64 `json:"framesDropped"`
	EncoderChunks    uint64 `json:"encoderChunks"`
	EncodedBytes     uint64 `json:"encodedBytes"`
	QueueHighWater   int    `json:"queueHighWater"`
	LastError        string `json:"lastError,omitempty"`
}

// ErrorEvent reports an in-flight fault that has no synchronous caller.
type ErrorEvent struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// ArtifactInfo describes the finished media object without its payload.
type ArtifactInfo struct {
	ID              string  `json:"id"`
	MimeType        string  `json:"mimeType"`
	DurationSeconds float64 `json:"durationSeconds"`
	SizeBytes       int     `json:"sizeBytes"`
}
