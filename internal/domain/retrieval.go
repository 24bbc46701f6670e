package domain

// Channel identifies which retrieval path produced a candidate.
type Channel string

const (
	ChannelSemantic Channel = "semantic"
	ChannelLexical  Channel = "lexical"
)

// RetrievalCandidate is a chunk surfaced by one of the retrieval channels.
// ID is unique within a single retrieval; on collision the higher Similarity wins.
type RetrievalCandidate struct {
	ID         string
	Content    string
	Source     string
	Section    string
	Similarity float64
	Channel    Channel
	// Rank is the zero-based position within the producing channel's result list.
	Rank int
}
