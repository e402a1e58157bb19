package models

import "time"

// Content event actions as delivered by the CMS webhook
const (
	ActionSave       = "save"
	ActionDelete     = "delete"
	ActionTrash      = "trash"
	ActionTransition = "transition"
)

// StatusPublish is the post status that makes an article public
const StatusPublish = "publish"

// ContentEvent describes a single content mutation on the CMS side
type ContentEvent struct {
	Action    string `json:"action"`
	PostType  string `json:"post_type"`
	OldStatus string `json:"old_status,omitempty"`
	NewStatus string `json:"new_status,omitempty"`
}

// Publishes reports whether the event is a transition
// of a post into the published state.
func (ev ContentEvent) Publishes() bool {
	return ev.NewStatus == StatusPublish && ev.OldStatus != StatusPublish
}

// BuildMeta is the metadata of the last successful sitemap build
type BuildMeta struct {
	GeneratedAt time.Time `json:"generated_at"`
	Count       int       `json:"count"`
	TookMS      int64     `json:"took_ms"`
	ETag        string    `json:"etag"`
}

// IsZero reports whether no build has been recorded yet
func (m BuildMeta) IsZero() bool {
	return m.GeneratedAt.IsZero()
}

// PingRecord is the outcome of the last search-engine notification,
// with one result string per endpoint. Used for observability and
// throttling only.
type PingRecord struct {
	PingedAt time.Time         `json:"pinged_at"`
	Results  map[string]string `json:"results,omitempty"`
}
