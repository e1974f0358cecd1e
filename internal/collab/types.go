// Package collab stores collaborative lyric drafts and fans out updates to
// subscribed WebSocket clients in real time.
package collab

import "time"

// LyricDraft is one collaboratively edited lyric sheet, keyed by the
// external editor's track id.
type LyricDraft struct {
	ExternalTrackID string    `json:"externalTrackId"`
	ProjectID       string    `json:"projectId,omitempty"`
	Title           string    `json:"title"`
	Artist          string    `json:"artist,omitempty"`
	BPM             float64   `json:"bpm,omitempty"`
	Lyrics          string    `json:"lyrics"`
	Collaborators   []string  `json:"collaborators"`
	Source          string    `json:"source,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
	ReceivedAt      time.Time `json:"receivedAt"`
}

// UpsertRequest is the payload accepted by POST /collab/lyrics. Zero-value
// fields (empty Source/Artist, nil Collaborators, zero BPM) leave the
// existing stored value untouched on update.
type UpsertRequest struct {
	ExternalTrackID string
	ProjectID       string
	Title           string
	Artist          string
	BPM             float64
	Lyrics          string
	Collaborators   []string
	Source          string
	UpdatedAt       time.Time
}

// merge applies req onto an existing draft (or creates one), preserving
// collaborators, source, bpm, and artist when the request left them unset.
func merge(existing LyricDraft, req UpsertRequest, now time.Time) LyricDraft {
	out := existing
	out.ExternalTrackID = req.ExternalTrackID
	out.Title = req.Title
	out.Lyrics = req.Lyrics
	if req.ProjectID != "" {
		out.ProjectID = req.ProjectID
	}
	if req.Artist != "" {
		out.Artist = req.Artist
	}
	if req.BPM != 0 {
		out.BPM = req.BPM
	}
	if len(req.Collaborators) > 0 {
		out.Collaborators = req.Collaborators
	}
	if req.Source != "" {
		out.Source = req.Source
	}
	if out.Collaborators == nil {
		out.Collaborators = []string{}
	}
	if !req.UpdatedAt.IsZero() {
		out.UpdatedAt = req.UpdatedAt
	} else {
		out.UpdatedAt = now
	}
	out.ReceivedAt = now
	return out
}
