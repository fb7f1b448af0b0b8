package pricing

import "strings"

// LineKind tells bucket lines from contributor lines.
type LineKind int

const (
	KindContributor LineKind = iota
	KindBucket
)

// Category is one of the three cost buckets.
type Category int

const (
	Labor Category = iota
	Materials
	Misc
)

var categoryNames = [...]string{Labor: "labor", Materials: "materials", Misc: "misc"}

func (c Category) String() string { return categoryNames[c] }

// LineKey is the structured form of a pricing line id. Bucket lines are
// named "bucket-<category>__<contributor id>"; every other id is a contributor.
type LineKey struct {
	Kind     LineKind
	Category Category
	// ContributorID is the contributor a bucket is namespaced to, or the
	// contributor line's own id.
	ContributorID string
}

// ParseLineID decodes a line id.
func ParseLineID(id string) LineKey {
	for c, name := range categoryNames {
		prefix := "bucket-" + name + "__"
		if strings.HasPrefix(id, prefix) && len(id) > len(prefix) {
			return LineKey{Kind: KindBucket, Category: Category(c), ContributorID: id[len(prefix):]}
		}
	}
	return LineKey{Kind: KindContributor, ContributorID: id}
}

// BucketID returns the id of contributorID's bucket for category c.
func BucketID(c Category, contributorID string) string {
	return "bucket-" + c.String() + "__" + contributorID
}

// String re-encodes the key as a line id.
func (k LineKey) String() string {
	if k.Kind == KindBucket {
		return BucketID(k.Category, k.ContributorID)
	}
	return k.ContributorID
}
