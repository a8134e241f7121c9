package types

import "time"

// PageID identifies one page instance (the equivalent of a browser tab).
type PageID string

// Page describes a connected page-context runtime
type Page struct {
	ID          PageID    `json:"id"`
	URL         string    `json:"url"`
	ConnectedAt time.Time `json:"connected_at"`
}

// PageState is a page's cached snapshot as served to status clients.
type PageState struct {
	PageID PageID   `json:"pageId"`
	URL    string   `json:"url"`
	State  Snapshot `json:"state"`
}

// Stats summarizes the connected pages.
type Stats struct {
	TotalPages   int     `json:"total_pages"`
	ActivePageID *PageID `json:"active_page_id,omitempty"`
}
