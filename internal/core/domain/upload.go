package domain

import "io"

type FileStatus string

const (
	FileUploading  FileStatus = "uploading"
	FileProcessing FileStatus = "processing"
	FileCompleted  FileStatus = "completed"
	FileError      FileStatus = "error"
)

func (s FileStatus) Valid() bool {
	switch s {
	case FileUploading, FileProcessing, FileCompleted, FileError:
		return true
	default:
		return false
	}
}

type UploadedFile struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Size       int64      `json:"size"`
	MimeType   string     `json:"type"`
	Status     FileStatus `json:"status"`
	Progress   int        `json:"progress"`
	StorageKey string     `json:"storage_key,omitempty"`
}

// RawFile is a file handed over by a picker or drop zone. Body is never inspected by the
// orchestration layer; it is only forwarded to object storage.
type RawFile struct {
	Name     string
	Size     int64
	MimeType string
	Body     io.Reader
}
