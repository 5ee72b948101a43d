package models

import "time"

// RemoteObject is one entry of a remote listing.
type RemoteObject struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified,omitempty"`
}

type ListingInfo struct {
	BucketName     string    `json:"bucket_name"`
	Prefix         string    `json:"prefix"`
	ObjectCount    int       `json:"object_count"`
	TotalSizeBytes int64     `json:"total_size_bytes"`
	TotalSizeHuman string    `json:"total_size_human"`
	LastModified   time.Time `json:"last_modified"`
	APIEndpoint    string    `json:"api_endpoint,omitempty"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
	Command   string `json:"command"`
}

type ConflictRecord struct {
	Path       string `json:"path"`
	BackupPath string `json:"backup_path"`
}

type SyncResult struct {
	BucketName            string           `json:"bucket_name"`
	Prefix                string           `json:"prefix"`
	LocalPath             string           `json:"local_path"`
	TotalObjects          int              `json:"total_objects"`
	TotalSizeBytes        int64            `json:"total_size_bytes"`
	TotalSizeHuman        string           `json:"total_size_human"`
	BytesTransferred      int64            `json:"bytes_transferred"`
	ObjectsTransferred    int              `json:"objects_transferred"`
	ObjectsFailed         []string         `json:"objects_failed"`
	Conflicts             []ConflictRecord `json:"conflicts,omitempty"`
	NothingToSync         bool             `json:"nothing_to_sync"`
	OperationTime         string           `json:"operation_time"`
	SyncDuration          string           `json:"sync_duration"`
	SyncDurationInSeconds float64          `json:"sync_duration_seconds"`
}
