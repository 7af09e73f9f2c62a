package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Link & resolution failures. All terminal for the task, user-facing.
	ErrInvalidLink = fmt.Errorf("invalid or unsupported link")
	ErrNotFound    = fmt.Errorf("remote item not found or link expired")
	ErrDecryption  = fmt.Errorf("decryption failed, check the #key part of the link")

	// Folder-level failures.
	ErrEnumeration        = fmt.Errorf("folder enumeration failed")
	ErrEmptyFolder        = fmt.Errorf("folder is empty")
	ErrAllDownloadsFailed = fmt.Errorf("all downloads failed")

	// Per-operation failures. Folder jobs isolate these per leaf,
	// file jobs treat them as terminal.
	ErrDownload = fmt.Errorf("download failed")
	ErrUpload   = fmt.Errorf("upload failed")

	ErrTimeout      = fmt.Errorf("operation timed out")
	ErrFileTooLarge = fmt.Errorf("file exceeds the per-file size limit")

	ErrQueueClosed = fmt.Errorf("queue no longer accepts jobs")
)
