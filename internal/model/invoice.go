// Package model contains the invoice record shared across packages.
package model

import (
	"time"
)

// Status describes the processing lifecycle of an invoice. Values are the
// exact strings exposed over HTTP and accepted by the status filter.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusProcessed  Status = "Processed"
	StatusFailed     Status = "Failed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusProcessing, StatusProcessed, StatusFailed}

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// CanTransition reports whether the lifecycle allows moving from s to next.
// Only Pending -> Processing and Processing -> {Processed, Failed} exist.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next.Terminal()
	default:
		return false
	}
}

// Invoice is one uploaded file plus its mock metadata and simulated
// processing outcome. Optional timestamps are pointers so they serialise as
// absent until the matching transition happens.
type Invoice struct {
	ID                  string     `json:"id"`
	FileName            string     `json:"fileName"`
	FileSize            int64      `json:"fileSize"`
	ClientName          string     `json:"clientName"`
	Amount              int64      `json:"amount"`
	UploadDate          time.Time  `json:"uploadDate"`
	Status              Status     `json:"status"`
	FilePath            string     `json:"filePath"`
	ProcessingStartTime *time.Time `json:"processingStartTime,omitempty"`
	ProcessingEndTime   *time.Time `json:"processingEndTime,omitempty"`
}

// Clone returns a deep copy so the optional timestamps are not shared.
func (inv Invoice) Clone() Invoice {
	out := inv
	if inv.ProcessingStartTime != nil {
		t := *inv.ProcessingStartTime
		out.ProcessingStartTime = &t
	}
	if inv.ProcessingEndTime != nil {
		t := *inv.ProcessingEndTime
		out.ProcessingEndTime = &t
	}
	return out
}
