package envelopes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"nostrkit.dev/encoders/filter"
	"nostrkit.dev/encoders/filters"
	"nostrkit.dev/event"
)

func TestCloseRoundTrip(t *testing.T) {
	m := &CloseMsg{SubID: "sub-1"}
	b := m.Marshal(nil)
	require.Equal(t, `["CLOSE","sub-1"]`, string(b))

	label, rem, err := Identify(b)
	require.NoError(t, err)
	require.Equal(t, LClose, label)

	got, _, err := ParseClose(rem)
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestEoseParse(t *testing.T) {
	label, rem, err := Identify([]byte(`["EOSE","sub-9"]`))
	require.NoError(t, err)
	require.Equal(t, LEose, label)
	got, _, err := ParseEose(rem)
	require.NoError(t, err)
	require.Equal(t, "sub-9", got.SubID)
}

func TestOkRoundTrip(t *testing.T) {
	m := &OkMsg{EventID: "abcd", Accepted: true, Message: "duplicate: already have this event"}
	b := m.Marshal(nil)

	label, rem, err := Identify(b)
	require.NoError(t, err)
	require.Equal(t, LOk, label)

	got, _, err := ParseOk(rem)
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestOkRejected(t *testing.T) {
	m := &OkMsg{EventID: "deadbeef", Accepted: false, Message: "blocked: pubkey is banned"}
	b := m.Marshal(nil)
	_, rem, err := Identify(b)
	require.NoError(t, err)
	got, _, err := ParseOk(rem)
	require.NoError(t, err)
	require.False(t, got.Accepted)
	require.Equal(t, "blocked: pubkey is banned", got.Message)
}

func TestNoticeParse(t *testing.T) {
	_, rem, err := Identify([]byte(`["NOTICE","rate limited"]`))
	require.NoError(t, err)
	got, _, err := ParseNotice(rem)
	require.NoError(t, err)
	require.Equal(t, "rate limited", got.Message)
}

func TestAuthChallenge(t *testing.T) {
	_, rem, err := Identify([]byte(`["AUTH","2b0c..challenge"]`))
	require.NoError(t, err)
	got, _, err := ParseAuth(rem)
	require.NoError(t, err)
	require.Equal(t, "2b0c..challenge", got.Challenge)
	require.Nil(t, got.Event)
}

func TestCountParse(t *testing.T) {
	_, rem, err := Identify([]byte(`["COUNT","sub-3",{"count":42}]`))
	require.NoError(t, err)
	got, _, err := ParseCount(rem)
	require.NoError(t, err)
	require.Equal(t, "sub-3", got.SubID)
	require.Equal(t, 42, got.Count)
}

func TestReqMarshal(t *testing.T) {
	f := filter.New()
	f.Kinds = []uint16{1}
	limit := 10
	f.Limit = &limit
	m := &ReqMsg{SubID: "s1", Filters: filters.New(f)}
	b := m.Marshal(nil)
	require.Contains(t, string(b), `["REQ","s1",`)
	require.Contains(t, string(b), `"kinds":[1]`)
}

func TestEventMsgRoundTrip(t *testing.T) {
	ev := event.New()
	ev.Id = make([]byte, 32)
	ev.Pubkey = make([]byte, 32)
	ev.Sig = make([]byte, 64)
	ev.Content = []byte("hello")

	m := &EventMsg{SubID: "s2", Event: ev}
	b := m.Marshal(nil)

	label, rem, err := Identify(b)
	require.NoError(t, err)
	require.Equal(t, LEvent, label)

	got, _, err := ParseEvent(rem, true)
	require.NoError(t, err)
	require.Equal(t, "s2", got.SubID)
	require.Equal(t, "hello", got.Event.ContentString())
}

func TestIdentifyRejectsGarbage(t *testing.T) {
	_, _, err := Identify([]byte(`not json`))
	require.Error(t, err)
}
