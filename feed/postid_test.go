package feed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPostIDRoundTrip(t *testing.T) {
	cases := []PostID{
		{Shard: "shard-a", Author: "alice", Seq: 0},
		{Shard: "shard-a", Author: "alice", Seq: 1},
		{Shard: "s", Author: "u", Seq: 18446744073709551615},
		{Shard: "shard-0-b", Author: "bob-2", Seq: 42},
	}

	for _, id := range cases {
		parsed, err := ParsePostID(id.String())
		require.NoError(t, err, id.String())
		require.Equal(t, id, parsed)
	}
}

func TestPostIDFormat(t *testing.T) {
	id := PostID{Shard: "shard-a", Author: "alice", Seq: 7}
	require.Equal(t, "shard-a#alice#7", id.String())
}

func TestParsePostIDFailures(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"one segment", "shard-a"},
		{"two segments", "shard-a#alice"},
		{"four segments", "shard-a#alice#1#extra"},
		{"non-numeric seq", "shard-a#alice#one"},
		{"negative seq", "shard-a#alice#-1"},
		{"empty shard", "#alice#1"},
		{"empty author", "shard-a##1"},
		{"uppercase shard", "Shard-a#alice#1"},
		{"author with space", "shard-a#ali ce#1"},
		{"leading dash", "shard-a#-alice#1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePostID(tc.raw)
			require.ErrorIs(t, err, ErrMalformedPostID)
		})
	}
}

func TestParseIdentity(t *testing.T) {
	valid := []string{"alice", "a", "shard-0-b", "x2", "0a"}
	for _, raw := range valid {
		id, err := ParseIdentity(raw)
		require.NoError(t, err, raw)
		require.Equal(t, raw, id.String())
	}

	invalid := []string{"", "Alice", "-alice", "alice-", "al_ice", "al ice", strings.Repeat("a", 64)}
	for _, raw := range invalid {
		_, err := ParseIdentity(raw)
		require.ErrorIs(t, err, ErrInvalidIdentity, raw)
	}
}
