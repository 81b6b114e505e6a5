package feed

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// PostID is the composite, self-describing global identifier of a post:
// the storage shard holding the durable copy, the author, and the
// per-author sequence index. Any actor can resolve "which shard holds
// this" by parsing the id, without consulting a directory.
type PostID struct {
	Shard  Identity
	Author Identity
	Seq    uint64
}

// ErrMalformedPostID is returned when a post id does not parse.
var ErrMalformedPostID = errors.New("malformed post id")

// String formats the id as "shard#author#seq".
func (p PostID) String() string {
	return string(p.Shard) + "#" + string(p.Author) + "#" + strconv.FormatUint(p.Seq, 10)
}

// ParsePostID parses "shard#author#seq". It fails if the id does not split
// into exactly three segments, the sequence segment is not a valid
// unsigned integer, or either identity segment is malformed.
func ParsePostID(raw string) (PostID, error) {
	parts := strings.Split(raw, "#")
	if len(parts) != 3 {
		return PostID{}, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedPostID, len(parts))
	}

	shard, err := ParseIdentity(parts[0])
	if err != nil {
		return PostID{}, fmt.Errorf("%w: shard segment: %v", ErrMalformedPostID, err)
	}
	author, err := ParseIdentity(parts[1])
	if err != nil {
		return PostID{}, fmt.Errorf("%w: author segment: %v", ErrMalformedPostID, err)
	}
	seq, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return PostID{}, fmt.Errorf("%w: sequence segment %q", ErrMalformedPostID, parts[2])
	}

	return PostID{Shard: shard, Author: author, Seq: seq}, nil
}
