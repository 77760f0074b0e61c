package types

// Category is the content class derived from an uploaded file's extension.
type Category string

const (
	CategoryImage    Category = "image"
	CategoryVideo    Category = "video"
	CategoryVoice    Category = "voice"
	CategoryDocument Category = "document"
	CategoryOther    Category = "other"
)

// Moderated reports whether uploads of this category go through a safety check.
// Documents and other files are stored as-is.
func (c Category) Moderated() bool {
	return c == CategoryImage || c == CategoryVideo || c == CategoryVoice
}

// Status is the final disposition of an upload.
type Status string

const (
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusNoContent Status = "no_content"
	StatusUploaded  Status = "uploaded"
)

// MediaResponse is the JSON body returned by the media moderation endpoint.
type MediaResponse struct {
	Status     Status   `json:"status"`
	Category   Category `json:"category"`
	Message    string   `json:"message,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	FileURL    string   `json:"file_url,omitempty"`
	Transcript string   `json:"transcript,omitempty"`
	Action     string   `json:"action,omitempty"`
}

// TextRequest is the body accepted by the text moderation endpoint.
type TextRequest struct {
	Text     string `json:"text"`
	AllowPII *bool  `json:"allow_pii,omitempty"`
}

// TextResponse is the JSON body returned by the text moderation endpoint.
type TextResponse struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Action   string `json:"action,omitempty"`
	FileURL  string `json:"file_url,omitempty"`
	Uploaded bool   `json:"uploaded"`
}

// BucketRequest is the body accepted by the bucket creation endpoint.
type BucketRequest struct {
	Name   string `json:"name"`
	Region string `json:"region"`
}

// BucketResponse reports whether the bucket was created.
type BucketResponse struct {
	IsCreated bool `json:"is_created"`
}

// BucketListResponse lists bucket names visible to the gateway's credentials.
type BucketListResponse struct {
	Buckets []string `json:"buckets"`
}

// UploadResponse is returned by the unmoderated upload endpoint.
type UploadResponse struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
