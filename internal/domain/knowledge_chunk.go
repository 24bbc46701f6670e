package domain

import "time"

// KnowledgeChunk is a bounded piece of a source document with its embedding.
// Chunks belong to exactly one tenant and are never updated after insert.
type KnowledgeChunk struct {
	ID        string
	TenantID  string
	Source    string
	Section   string
	DocType   string
	Version   string
	Content   string
	Embedding []float32
	Tokens    int
	CreatedAt time.Time
}

// Document is a caller-supplied source document awaiting ingestion.
type Document struct {
	TenantID string
	Content  string
	Source   string
	Section  string
	DocType  string
	Version  string
}

// Validate checks the fields ingestion cannot work without.
func (d Document) Validate() error {
	if d.TenantID == "" {
		return ErrMissingTenantID
	}
	if d.Content == "" {
		return ErrEmptyContent
	}
	return nil
}
