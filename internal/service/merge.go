package service

import (
	"sort"

	"github.com/cloo-solutions/kbchat/internal/domain"
)

// mergeCandidates combines channel results keyed by chunk ID, keeping the
// higher-similarity entry on collision. The result does not depend on the
// order in which lists are passed.
func mergeCandidates(lists ...[]*domain.RetrievalCandidate) []*domain.RetrievalCandidate {
	byID := make(map[string]*domain.RetrievalCandidate)
	for _, list := range lists {
		for _, c := range list {
			if c == nil {
				continue
			}
			existing, ok := byID[c.ID]
			if !ok || outranks(c, existing) {
				byID[c.ID] = c
			}
		}
	}

	out := make([]*domain.RetrievalCandidate, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	sortCandidates(out)
	return out
}

func channelOrder(ch domain.Channel) int {
	if ch == domain.ChannelSemantic {
		return 0
	}
	return 1
}

// outranks is a strict total order: similarity desc, semantic before lexical,
// channel rank asc, then ID.
func outranks(a, b *domain.RetrievalCandidate) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	if ca, cb := channelOrder(a.Channel), channelOrder(b.Channel); ca != cb {
		return ca < cb
	}
	if a.Rank != b.Rank {
		return a.Rank < b.Rank
	}
	return a.ID < b.ID
}

func sortCandidates(candidates []*domain.RetrievalCandidate) {
	sort.Slice(candidates, func(i, j int) bool {
		return outranks(candidates[i], candidates[j])
	})
}

// topK truncates ranked candidates to at most k entries.
func topK(candidates []*domain.RetrievalCandidate, k int) []*domain.RetrievalCandidate {
	if k >= 0 && len(candidates) > k {
		return candidates[:k]
	}
	return candidates
}
