// file: internal/resolver/resolver.go
// version: 1.0.0
// guid: 851fc37a-84c2-4b8c-a374-a4ba5531aba0

// Package resolver ranks the members of a duplicate group and recommends the
// copy to keep.
package resolver

import (
	"fmt"
	"sort"

	"github.com/jdfalk/beat-organizer/internal/mediainfo"
	"github.com/jdfalk/beat-organizer/internal/models"
	"github.com/jdfalk/beat-organizer/internal/quality"
)

// Score gaps below the best member that still earn a good or acceptable
// verdict.
const (
	GoodWithin       = 5
	AcceptableWithin = 20
)

// Evidence is what the resolver knows about one member. A nil Metrics means
// scoring failed for that file.
type Evidence struct {
	Metrics *quality.Metrics
	Media   *mediainfo.MediaInfo
}

type candidate struct {
	id     models.FileIdentity
	scored bool
	score  int
	label  quality.Label
	tier   int
}

// Resolve ranks the group's members and sets RecommendedKeep to rank 1.
// Members are ordered by quality score, then file size, then format tier,
// then path. Unscored members always rank below every scored member.
// The input group is not modified.
func Resolve(group models.DuplicateGroup, evidence map[string]Evidence) models.DuplicateGroup {
	cands := make([]candidate, len(group.Members))
	for i, id := range group.Members {
		c := candidate{id: id}
		ev := evidence[id.Path]
		if ev.Metrics != nil {
			c.scored = true
			c.score, c.label = quality.Score(*ev.Metrics)
		}
		c.tier = mediainfo.GetQualityTier(ev.Media)
		cands[i] = c
	}
	sort.SliceStable(cands, func(i, j int) bool { return less(cands[i], cands[j]) })

	out := group
	out.Members = append([]models.FileIdentity(nil), group.Members...)
	out.Ranking = make([]models.RankedMember, len(cands))
	for i, c := range cands {
		out.Ranking[i] = models.RankedMember{
			Identity: c.id,
			Rank:     i + 1,
			Scored:   c.scored,
			Score:    c.score,
			Label:    string(c.label),
			Format:   mediainfo.TierClass(c.tier),
			Verdict:  verdict(cands[0], c, i),
			Reason:   reason(cands, i),
		}
	}
	if len(cands) > 0 {
		keep := cands[0].id
		out.RecommendedKeep = &keep
	}
	return out
}

// less orders a before b when a is the better copy.
func less(a, b candidate) bool {
	if a.scored != b.scored {
		return a.scored
	}
	if a.score != b.score {
		return a.score > b.score
	}
	if a.id.Size != b.id.Size {
		return a.id.Size > b.id.Size
	}
	if a.tier != b.tier {
		return a.tier > b.tier
	}
	return a.id.Path < b.id.Path
}

func verdict(best, c candidate, rank int) models.Verdict {
	switch {
	case rank == 0:
		return models.VerdictBest
	case !c.scored:
		return models.VerdictPoor
	case best.score-c.score <= GoodWithin:
		return models.VerdictGood
	case best.score-c.score <= AcceptableWithin:
		return models.VerdictAcceptable
	default:
		return models.VerdictPoor
	}
}

// reason explains why member i sits where it does relative to the member
// directly above it.
func reason(cands []candidate, i int) string {
	c := cands[i]
	if i == 0 {
		switch {
		case !c.scored:
			return "no member could be scored; kept by file size and format"
		case len(cands) == 1:
			return fmt.Sprintf("only member, quality score %d", c.score)
		default:
			return fmt.Sprintf("highest ranked copy, quality score %d (%s)", c.score, c.label)
		}
	}
	above := cands[i-1]
	switch {
	case !c.scored && above.scored:
		return "quality could not be measured; unscored files never outrank scored ones"
	case !c.scored:
		return tieReason(above, c, "also unscored")
	case c.score < above.score:
		return fmt.Sprintf("quality score %d is below %d", c.score, above.score)
	default:
		return tieReason(above, c, fmt.Sprintf("same quality score %d", c.score))
	}
}

func tieReason(above, c candidate, prefix string) string {
	switch {
	case c.id.Size < above.id.Size:
		return fmt.Sprintf("%s, smaller file (%d < %d bytes)", prefix, c.id.Size, above.id.Size)
	case c.tier < above.tier:
		return fmt.Sprintf("%s and size, lower format tier (%s, %d < %d)", prefix, mediainfo.TierClass(c.tier), c.tier, above.tier)
	default:
		return fmt.Sprintf("%s, size and format; ordered by path", prefix)
	}
}
