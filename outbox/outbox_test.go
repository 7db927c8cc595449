package outbox

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nostrkit.dev/encoders/kind"
	"nostrkit.dev/encoders/tag"
	"nostrkit.dev/encoders/tags"
	"nostrkit.dev/encoders/timestamp"
	"nostrkit.dev/event"
	"nostrkit.dev/xctx"
)

func relayListEvent(pubkey string, rs ...[2]string) *event.E {
	ev := event.New()
	ev.Kind = kind.New(10002)
	ev.Pubkey = []byte(pubkey)
	ev.CreatedAt = timestamp.Now()
	tl := make([]*tag.T, 0, len(rs))
	for _, r := range rs {
		if r[1] == "" {
			tl = append(tl, tag.New("r", r[0]))
		} else {
			tl = append(tl, tag.New("r", r[0], r[1]))
		}
	}
	ev.Tags = tags.New(tl...)
	return ev
}

func TestParseRelayListMarkers(t *testing.T) {
	ev := relayListEvent("A",
		[2]string{"wss://unmarked.example", ""},
		[2]string{"wss://read-only.example", "read"},
		[2]string{"wss://write-only.example", "write"},
	)
	read, write := ParseRelayList(ev)
	require.ElementsMatch(t, []string{"wss://unmarked.example", "wss://read-only.example"}, read)
	require.ElementsMatch(t, []string{"wss://unmarked.example", "wss://write-only.example"}, write)
}

type fakeFetcher struct{ ev *event.E }

func (f *fakeFetcher) FetchRelayList(ctx xctx.T, pubkey string) (*event.E, bool) {
	if f.ev == nil {
		return nil, false
	}
	return f.ev, true
}

func TestTrackerCachesFreshEntry(t *testing.T) {
	fetcher := &fakeFetcher{ev: relayListEvent("A", [2]string{"wss://r1.example", ""})}
	tr := NewTracker(fetcher)
	read, write := tr.GetRelaysFor(xctx.Bg(), "A")
	require.Equal(t, []string{"wss://r1.example"}, read)
	require.Equal(t, []string{"wss://r1.example"}, write)

	// A second fetch with the fetcher cleared must still return the cached
	// entry, since it is within the freshness TTL.
	fetcher.ev = nil
	read2, _ := tr.GetRelaysFor(xctx.Bg(), "A")
	require.Equal(t, read, read2)
}

func TestTrackerBlacklist(t *testing.T) {
	tr := NewTracker(nil)
	require.False(t, tr.IsBlacklisted("wss://bad.example"))
	tr.Blacklist("wss://bad.example")
	require.True(t, tr.IsBlacklisted("wss://bad.example"))
}

func TestRankerTopKDropsBlacklisted(t *testing.T) {
	tr := NewTracker(nil)
	tr.Blacklist("wss://bad.example")
	ranker := NewRanker(DefaultRankerConfig(), nil, tr)
	got := ranker.TopK([]string{"wss://bad.example", "wss://good1.example", "wss://good2.example"}, 5)
	require.ElementsMatch(t, []string{"wss://good1.example", "wss://good2.example"}, got)
}

func TestRankerTopKRespectsCap(t *testing.T) {
	ranker := NewRanker(DefaultRankerConfig(), nil, nil)
	got := ranker.TopK([]string{"a", "b", "c", "d"}, 2)
	require.Len(t, got, 2)
}

func TestSelectorWriteRelaysUnionsAuthorAndRecipients(t *testing.T) {
	tr := NewTracker(nil)
	tr.SetManual("author", nil, []string{"wss://author-write.example"}, SourceManual)
	tr.SetManual("recipient", []string{"wss://recipient-read.example"}, nil, SourceManual)
	ranker := NewRanker(DefaultRankerConfig(), nil, tr)
	sel := NewSelector(tr, ranker)

	out := sel.WriteRelaysFor(xctx.Bg(), "author", []string{"recipient"})
	require.ElementsMatch(t, []string{"wss://author-write.example", "wss://recipient-read.example"}, out)
}
