package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Display colors per severity.
const (
	ColorPropertyDamage = "green"
	ColorInjury         = "orange"
	ColorFatality       = "red"
	ColorUnknown        = "gray"
)

var (
	defaultNorth = []string{"N", "NE", "NW", "NB"}
	defaultSouth = []string{"S", "SE", "SW", "SB"}
)

// DirectionSets holds the north and south membership sets. The sets are
// disjoint; NewDirectionSets enforces it.
type DirectionSets struct {
	north map[string]struct{}
	south map[string]struct{}
}

// DefaultDirectionSets returns the compass and bound-suffix tokens used by
// both known layouts.
func DefaultDirectionSets() DirectionSets {
	ds, err := NewDirectionSets(defaultNorth, defaultSouth)
	if err != nil {
		panic(err) // the built-in sets are disjoint
	}
	return ds
}

// NewDirectionSets builds membership sets from token lists. Tokens are
// normalized like record directions. It fails if a token appears in both
// sets or if either set is empty.
func NewDirectionSets(north, south []string) (DirectionSets, error) {
	ds := DirectionSets{
		north: tokenSet(north),
		south: tokenSet(south),
	}
	if len(ds.north) == 0 || len(ds.south) == 0 {
		return DirectionSets{}, fmt.Errorf("direction sets: north and south must both be non-empty")
	}

	var overlap []string
	for tok := range ds.north {
		if _, ok := ds.south[tok]; ok {
			overlap = append(overlap, tok)
		}
	}
	if len(overlap) > 0 {
		slices.Sort(overlap)
		return DirectionSets{}, fmt.Errorf("direction sets: token(s) %s in both north and south",
			strings.Join(overlap, ", "))
	}
	return ds, nil
}

// North returns the sorted north tokens.
func (d DirectionSets) North() []string { return sortedKeys(d.north) }

// South returns the sorted south tokens.
func (d DirectionSets) South() []string { return sortedKeys(d.south) }

// Bucket classifies a direction token. North membership is checked first.
func (d DirectionSets) Bucket(direction string) DirectionBucket {
	tok := normalizeDirection(direction)
	if _, ok := d.north[tok]; ok {
		return BucketNorth
	}
	if _, ok := d.south[tok]; ok {
		return BucketSouth
	}
	return BucketUnknown
}

// Classifier derives weight, color and direction bucket for records.
type Classifier struct {
	sets DirectionSets
}

// NewClassifier returns a Classifier using the given direction sets.
func NewClassifier(sets DirectionSets) *Classifier {
	return &Classifier{sets: sets}
}

// Classify is total: every record gets a weight in 1..3, a non-empty color
// and a bucket.
func (c *Classifier) Classify(rec CrashRecord) ClassifiedRecord {
	return ClassifiedRecord{
		CrashRecord: rec,
		Weight:      SeverityWeight(rec.Severity),
		Color:       SeverityColor(rec.Severity),
		Bucket:      c.sets.Bucket(rec.Direction),
	}
}

// ClassifyAll classifies records in order.
func (c *Classifier) ClassifyAll(recs []CrashRecord) []ClassifiedRecord {
	out := make([]ClassifiedRecord, len(recs))
	for i, r := range recs {
		out[i] = c.Classify(r)
	}
	return out
}

// SeverityWeight maps a severity to its heat weight. Unknown severities
// weigh the same as property damage.
func SeverityWeight(s Severity) int {
	switch s {
	case SeverityFatality:
		return 3
	case SeverityInjury:
		return 2
	default:
		return 1
	}
}

// SeverityColor maps a severity to its marker color.
func SeverityColor(s Severity) string {
	switch s {
	case SeverityPropertyDamage:
		return ColorPropertyDamage
	case SeverityInjury:
		return ColorInjury
	case SeverityFatality:
		return ColorFatality
	default:
		return ColorUnknown
	}
}

// Filter returns the records in bucket, preserving order. BucketAll returns
// every record.
func Filter(recs []ClassifiedRecord, bucket DirectionBucket) []ClassifiedRecord {
	if bucket == BucketAll {
		return slices.Clone(recs)
	}
	out := make([]ClassifiedRecord, 0, len(recs))
	for _, r := range recs {
		if r.Bucket == bucket {
			out = append(out, r)
		}
	}
	return out
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		t = normalizeDirection(t)
		if t == "" {
			continue
		}
		set[t] = struct{}{}
	}
	return set
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
