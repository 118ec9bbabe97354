// Package export assembles the interaction log into a self-describing
// envelope and delivers it to a file or a stream.
package export

import (
	"github.com/taptalk/commlog/internal/storage"
)

// Envelope identity fields.
const (
	Source  = "TapTalk_AAC"
	Version = "1.0"
)

// Envelope is the export document handed to downstream analysis tools.
type Envelope struct {
	Source     string                `json:"source"`
	Version    string                `json:"version"`
	ExportDate string                `json:"exportDate"`
	Metrics    Metrics               `json:"metrics"`
	Logs       []storage.Interaction `json:"logs"`
}

// Metrics holds summary counts over Logs.
type Metrics struct {
	TotalEvents       int `json:"totalEvents"`
	StudentEvents     int `json:"studentEvents"`
	PartnerModeEvents int `json:"partnerModeEvents"`
}
