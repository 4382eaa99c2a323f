// Package ingestion feeds JSON records into the index writer and commits
// them on a schedule. Records arrive over HTTP or Kafka; every commit is
// made visible immediately and announced on the index-complete topic.
package ingestion

import "time"

// AddResponse is returned once a record is buffered.
type AddResponse struct {
	DocID   uint32 `json:"doc_id"`
	Pending int    `json:"pending"`
}

// CommitResult describes one commit that has been made visible.
type CommitResult struct {
	Generation  uint64    `json:"generation"`
	Docs        int       `json:"docs"`
	TotalDocs   uint32    `json:"total_docs"`
	CommittedAt time.Time `json:"committed_at"`
}

// IndexCompleteEvent is the Kafka payload published after each commit.
type IndexCompleteEvent struct {
	Generation  uint64    `json:"generation"`
	Docs        int       `json:"docs"`
	TotalDocs   uint32    `json:"total_docs"`
	CommittedAt time.Time `json:"committed_at"`
}
