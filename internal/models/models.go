// file: internal/models/models.go
// version: 2.0.0
// guid: a6eb2df5-821d-4c02-b5e9-3ce0cbbff858

package models

import "time"

// FileIdentity identifies one version of a file's content. A change in size
// or modification time means a new identity, which is how cached analysis
// goes stale.
type FileIdentity struct {
	Path    string    `json:"path" yaml:"path"`
	Size    int64     `json:"size" yaml:"size"`
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`
}

// Same reports whether two identities describe the same file version.
func (id FileIdentity) Same(other FileIdentity) bool {
	return id.Path == other.Path && id.Size == other.Size && id.ModTime.Equal(other.ModTime)
}

// Verdict is the resolver's label for a duplicate group member.
type Verdict string

const (
	VerdictBest       Verdict = "best"
	VerdictGood       Verdict = "good"
	VerdictAcceptable Verdict = "acceptable"
	VerdictPoor       Verdict = "poor"
)

// RankedMember is one row of a duplicate group's ranking.
type RankedMember struct {
	Identity FileIdentity `json:"identity" yaml:"identity"`
	Rank     int          `json:"rank" yaml:"rank"`
	Scored   bool         `json:"scored" yaml:"scored"`
	Score    int          `json:"score" yaml:"score"`
	Label    string       `json:"label,omitempty" yaml:"label,omitempty"`
	Format   string       `json:"format,omitempty" yaml:"format,omitempty"`
	Verdict  Verdict      `json:"verdict" yaml:"verdict"`
	Reason   string       `json:"reason" yaml:"reason"`
}

// DuplicateGroup is a set of files whose fingerprints are linked above the
// similarity threshold. Members are ordered by path until the group is
// resolved; Ranking is then ordered best first.
type DuplicateGroup struct {
	ID              string         `json:"id" yaml:"id"`
	Members         []FileIdentity `json:"members" yaml:"members"`
	TotalBytes      int64          `json:"total_bytes" yaml:"total_bytes"`
	WastedBytes     int64          `json:"wasted_bytes" yaml:"wasted_bytes"`
	RecommendedKeep *FileIdentity  `json:"recommended_keep,omitempty" yaml:"recommended_keep,omitempty"`
	Ranking         []RankedMember `json:"ranking,omitempty" yaml:"ranking,omitempty"`
}

// NewDuplicateGroup builds a group and computes its byte accounting.
func NewDuplicateGroup(id string, members []FileIdentity) DuplicateGroup {
	g := DuplicateGroup{ID: id, Members: members}
	var largest int64
	for _, m := range members {
		g.TotalBytes += m.Size
		if m.Size > largest {
			largest = m.Size
		}
	}
	g.WastedBytes = g.TotalBytes - largest
	return g
}
