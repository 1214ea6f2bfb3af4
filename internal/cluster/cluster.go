// file: internal/cluster/cluster.go
// version: 1.1.0
// guid: 644b421c-c855-41c3-b22c-1ec86ed4c9ca

// Package cluster groups fingerprints into duplicate sets.
//
// Fingerprints are bucketed by disjoint bit bands before any full
// comparison. With maxDist the largest Hamming distance that still meets the
// threshold, the bitstring is cut into maxDist+1 bands; two fingerprints
// within maxDist differ in at most maxDist bands, so they agree exactly on at
// least one band and always share a bucket. Only bucket mates are compared,
// so recall is identical to comparing every pair.
package cluster

import (
	"fmt"
	"math"
	"sort"

	"github.com/OneOfOne/xxhash"
	"github.com/jdfalk/beat-organizer/internal/failure"
	"github.com/jdfalk/beat-organizer/internal/fingerprint"
	"github.com/jdfalk/beat-organizer/internal/models"
)

// DefaultThreshold is the similarity at or above which two files are linked.
const DefaultThreshold = 98.0

// Options configure a clustering run.
type Options struct {
	Threshold float64
}

// Validate rejects thresholds outside (0, 100].
func (o Options) Validate() error {
	if math.IsNaN(o.Threshold) || o.Threshold <= 0 || o.Threshold > 100 {
		return fmt.Errorf("%w: similarity threshold must be in (0, 100], got %v", failure.ErrInvalidConfig, o.Threshold)
	}
	return nil
}

// Result holds the duplicate groups (two or more members) and the files that
// matched nothing.
type Result struct {
	Groups      []models.DuplicateGroup
	Singletons  []models.FileIdentity
	Comparisons int
}

// Cluster links fingerprints whose similarity is at or above the threshold
// and returns the connected components. Membership is transitive: A~B and
// B~C put A, B and C in one group even when A and C alone fall short.
// Fingerprints are only compared within the same parameter set and window.
// The output depends only on the input set, never on its order.
func Cluster(fps []fingerprint.Fingerprint, opts Options) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	items, err := prepare(fps)
	if err != nil {
		return Result{}, err
	}

	uf := newUnionFind(len(items))
	partitions := make(map[fingerprint.Compat][]int)
	for i, fp := range items {
		k := fp.Compat()
		partitions[k] = append(partitions[k], i)
	}

	var res Result
	for _, idx := range partitions {
		n, err := linkPartition(items, idx, opts.Threshold, uf)
		res.Comparisons += n
		if err != nil {
			return Result{}, err
		}
	}

	sets := make(map[int][]int)
	var roots []int
	for i := range items {
		r := uf.find(i)
		if _, ok := sets[r]; !ok {
			roots = append(roots, r)
		}
		sets[r] = append(sets[r], i)
	}
	// roots are first-seen in path order, so groups come out sorted by
	// their first member
	for _, r := range roots {
		members := sets[r]
		if len(members) == 1 {
			res.Singletons = append(res.Singletons, items[members[0]].Identity)
			continue
		}
		ids := make([]models.FileIdentity, len(members))
		for j, i := range members {
			ids[j] = items[i].Identity
		}
		res.Groups = append(res.Groups, models.NewDuplicateGroup(GroupID(ids[0].Path), ids))
	}
	return res, nil
}

// GroupID derives a stable group id from the group's canonical member.
func GroupID(path string) string {
	return fmt.Sprintf("%016x", xxhash.ChecksumString64(path))
}

// prepare validates, de-duplicates by path and sorts the input.
func prepare(fps []fingerprint.Fingerprint) ([]fingerprint.Fingerprint, error) {
	seen := make(map[string]bool, len(fps))
	items := make([]fingerprint.Fingerprint, 0, len(fps))
	for _, fp := range fps {
		if seen[fp.Identity.Path] {
			continue
		}
		if err := fp.Validate(); err != nil {
			return nil, err
		}
		seen[fp.Identity.Path] = true
		items = append(items, fp)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Identity.Path < items[j].Identity.Path
	})
	return items, nil
}

// linkPartition unions every pair of compatible fingerprints at or above the
// threshold and returns the number of full comparisons made.
func linkPartition(items []fingerprint.Fingerprint, idx []int, threshold float64, uf *unionFind) (int, error) {
	if len(idx) < 2 {
		return 0, nil
	}
	bitLen := items[idx[0]].BitLen
	maxDist := fingerprint.MaxDistance(threshold, bitLen)
	if maxDist < 0 {
		return 0, nil
	}
	bands := min(maxDist+1, bitLen)

	// keys[p*bands+band] is the band key of idx[p]
	keys := make([]uint64, len(idx)*bands)
	buf := make([]byte, 0, 2+bitLen/8+1)
	for p, i := range idx {
		for band := 0; band < bands; band++ {
			start, end := band*bitLen/bands, (band+1)*bitLen/bands
			keys[p*bands+band] = bandKey(items[i], band, start, end, buf)
		}
	}

	comparisons := 0
	buckets := make(map[uint64][]int)
	for band := 0; band < bands; band++ {
		clear(buckets)
		for p := range idx {
			k := keys[p*bands+band]
			buckets[k] = append(buckets[k], p)
		}
		for _, members := range buckets {
			for a := 0; a < len(members); a++ {
				for b := a + 1; b < len(members); b++ {
					pa, pb := members[a], members[b]
					if sharedEarlier(keys, pa, pb, band, bands) {
						continue
					}
					x, y := idx[pa], idx[pb]
					if uf.find(x) == uf.find(y) {
						continue
					}
					sim, err := fingerprint.Compare(items[x], items[y])
					if err != nil {
						return comparisons, err
					}
					comparisons++
					if sim >= threshold {
						uf.union(x, y)
					}
				}
			}
		}
	}
	return comparisons, nil
}

// sharedEarlier reports whether positions pa and pb already met in a bucket
// of a band before band. Each candidate pair is compared at most once.
func sharedEarlier(keys []uint64, pa, pb, band, bands int) bool {
	ka, kb := keys[pa*bands:pa*bands+band], keys[pb*bands:pb*bands+band]
	for i := range ka {
		if ka[i] == kb[i] {
			return true
		}
	}
	return false
}

// bandKey hashes the band index together with the bits [start, end).
func bandKey(fp fingerprint.Fingerprint, band, start, end int, buf []byte) uint64 {
	buf = append(buf[:0], byte(band>>8), byte(band))
	var cur byte
	for i := start; i < end; i++ {
		if fp.Bit(i) {
			cur |= 1 << ((i - start) % 8)
		}
		if (i-start)%8 == 7 {
			buf = append(buf, cur)
			cur = 0
		}
	}
	if (end-start)%8 != 0 {
		buf = append(buf, cur)
	}
	return xxhash.Checksum64(buf)
}
