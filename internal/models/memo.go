// Package models defines the domain types for echolog.
package models

import "time"

// Memo is a recorded voice memo together with its derived metadata.
type Memo struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"-"`
	AudioURL      string     `json:"audio_url,omitempty"`
	Transcription string     `json:"transcription"`
	Summary       string     `json:"summary"`
	Tags          []string   `json:"tags"`
	Embedding     []float32  `json:"embedding,omitempty"`
	RelatedIDs    []string   `json:"related_memo_ids"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"-"`
}

// HasEmbedding reports whether the memo can take part in linking.
func (m *Memo) HasEmbedding() bool {
	return len(m.Embedding) > 0
}

// Deleted reports whether the memo carries a soft-delete marker.
func (m *Memo) Deleted() bool {
	return m.DeletedAt != nil
}

// HasTag reports whether tag is one of the memo's tags.
func (m *Memo) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
