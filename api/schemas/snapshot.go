package schemas

import "time"

// SnapshotVersion is the format version written by this tool.
const SnapshotVersion = 1

// -- Page Snapshot Schemas --

// WidgetRecord is one registry entry as captured from a live page.
type WidgetRecord struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	// Ancestry lists base types nearest first, excluding Type.
	Ancestry   []string       `json:"ancestry,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// RuntimeInfo describes the framework runtime found on the page.
type RuntimeInfo struct {
	Available bool `json:"available"`
	// Loading is set when the framework is present but its registry was not
	// yet defined at capture time.
	Loading bool           `json:"loading,omitempty"`
	Version string         `json:"version,omitempty"`
	Widgets []WidgetRecord `json:"widgets"`
}

// PageSnapshot is a page frozen for offline queries: the serialized DOM plus
// the widget registry contents at the same moment.
type PageSnapshot struct {
	FormatVersion int         `json:"format_version"`
	URL           string      `json:"url"`
	CapturedAt    time.Time   `json:"captured_at"`
	Runtime       RuntimeInfo `json:"runtime"`
	HTML          string      `json:"html"`
}
