package service

import "errors"

var (
	// ErrNotStarted is returned when the service is used before Start.
	ErrNotStarted = errors.New("service not started")
	// ErrEmptyLog is returned for an empty upload.
	ErrEmptyLog = errors.New("empty combat log")
	// ErrNotReady is returned for reports that have not finished ingestion.
	ErrNotReady = errors.New("report not ready")
	// ErrBackpressure is returned when the ingestion queue cannot take a job.
	ErrBackpressure = errors.New("ingestion queue full")
)
