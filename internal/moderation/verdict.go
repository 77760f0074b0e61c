package moderation

import (
	"io"

	"github.com/bencyrus/safeupload/internal/types"
)

// Client-facing verdict texts.
const (
	msgUploaded       = "File uploaded (no moderation applied)."
	msgNoSpeech       = "Voice file is silent or contains no speech."
	msgTextApproved   = "Content passed moderation and uploaded, thank you!"
	reasonTextBad     = "Content failed moderation sorry!"
	actionDeleted     = "File deleted"
	actionNotUploaded = "Not uploaded"
	msgTextEmpty      = "Text cannot be empty"
)

// Upload is an incoming file. Body is read once.
type Upload struct {
	Filename string
	Body     io.Reader
}

// Verdict is the outcome of moderating one media upload.
type Verdict struct {
	Status     types.Status
	Category   types.Category
	Message    string
	Reason     string
	FileURL    string
	Transcript string
	Action     string
}

func (v Verdict) Response() types.MediaResponse {
	return types.MediaResponse{
		Status:     v.Status,
		Category:   v.Category,
		Message:    v.Message,
		Reason:     v.Reason,
		FileURL:    v.FileURL,
		Transcript: v.Transcript,
		Action:     v.Action,
	}
}

// TextVerdict is the outcome of moderating a text submission.
type TextVerdict struct {
	Status   types.Status
	Message  string
	Reason   string
	Action   string
	FileURL  string
	Uploaded bool
}

func (v TextVerdict) Response() types.TextResponse {
	return types.TextResponse{
		Status:   v.Status,
		Message:  v.Message,
		Reason:   v.Reason,
		Action:   v.Action,
		FileURL:  v.FileURL,
		Uploaded: v.Uploaded,
	}
}

func approved(c types.Category, msg string) Verdict {
	return Verdict{Status: types.StatusApproved, Category: c, Message: msg}
}

func rejected(c types.Category, reason string) Verdict {
	return Verdict{Status: types.StatusRejected, Category: c, Reason: reason}
}
