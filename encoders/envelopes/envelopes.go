// Package envelopes implements the relay wire protocol's message variants,
// each a JSON array whose first element discriminates the type. Identify
// reads just that label; the per-type Parse functions decode the rest.
package envelopes

import (
	"strconv"

	"nostrkit.dev/encoders/filters"
	"nostrkit.dev/encoders/text"
	"nostrkit.dev/event"
	"nostrkit.dev/nosterr"
)

// Label constants, the first element of every wire message.
const (
	LEvent  = "EVENT"
	LReq    = "REQ"
	LClose  = "CLOSE"
	LEose   = "EOSE"
	LOk     = "OK"
	LNotice = "NOTICE"
	LAuth   = "AUTH"
	LCount  = "COUNT"
)

// Parse identifies and fully decodes a relay->client wire message, returning
// the label-specific struct as an any (one of *EventMsg, *EoseMsg, *OkMsg,
// *NoticeMsg, *AuthMsg, *CountMsg, or *CloseMsg for a CLOSE message). REQ is
// not dispatched here and yields the unknown-label error.
func Parse(b []byte) (label string, msg any, err error) {
	label, rem, err := Identify(b)
	if err != nil {
		return "", nil, err
	}
	switch label {
	case LEvent:
		m, _, e := ParseEvent(rem, true)
		return label, m, e
	case LClose:
		m, _, e := ParseClose(rem)
		return label, m, e
	case LEose:
		m, _, e := ParseEose(rem)
		return label, m, e
	case LOk:
		m, _, e := ParseOk(rem)
		return label, m, e
	case LNotice:
		m, _, e := ParseNotice(rem)
		return label, m, e
	case LAuth:
		m, _, e := ParseAuth(rem)
		return label, m, e
	case LCount:
		m, _, e := ParseCount(rem)
		return label, m, e
	default:
		return label, nil, nosterr.New(nosterr.ParseError, "envelope: unknown label "+label)
	}
}

// Identify reads the first element of a wire-message JSON array and returns
// its label, without decoding the rest.
func Identify(b []byte) (label string, rem []byte, err error) {
	r := skipWS(b)
	if len(r) == 0 || r[0] != '[' {
		return "", nil, nosterr.New(nosterr.ParseError, "envelope: expected '['")
	}
	r = skipWS(r[1:])
	var l []byte
	if l, r, err = text.UnmarshalQuoted(r); err != nil {
		return "", nil, nosterr.Wrap(nosterr.ParseError, "envelope: label", err)
	}
	r = skipWS(r)
	if len(r) > 0 && r[0] == ',' {
		r = r[1:]
	}
	return string(l), r, nil
}

func skipWS(b []byte) []byte {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t' || b[i] == '\n' || b[i] == '\r') {
		i++
	}
	return b[i:]
}

func skipComma(b []byte) []byte {
	r := skipWS(b)
	if len(r) > 0 && r[0] == ',' {
		return skipWS(r[1:])
	}
	return r
}

func expectCloseBracket(b []byte) ([]byte, error) {
	r := skipWS(b)
	if len(r) == 0 || r[0] != ']' {
		return nil, nosterr.New(nosterr.ParseError, "envelope: expected ']'")
	}
	return r[1:], nil
}

// EventMsg is EVENT: relay->client stored/live event delivery (SubID set) or
// client->relay publish (SubID empty).
type EventMsg struct {
	SubID string
	Event *event.E
}

// Marshal renders an EVENT message.
func (e *EventMsg) Marshal(dst []byte) []byte {
	b := append(dst, '[')
	b = text.AppendQuote(b, []byte(LEvent), text.NostrEscape)
	b = append(b, ',')
	if e.SubID != "" {
		b = text.AppendQuote(b, []byte(e.SubID), text.NostrEscape)
		b = append(b, ',')
	}
	b = e.Event.Marshal(b)
	b = append(b, ']')
	return b
}

// ParseEvent parses the remainder of an EVENT message after the label.
func ParseEvent(r []byte, hasSubID bool) (*EventMsg, []byte, error) {
	m := &EventMsg{}
	var err error
	if hasSubID {
		var sid []byte
		if sid, r, err = text.UnmarshalQuoted(r); err != nil {
			return nil, nil, err
		}
		m.SubID = string(sid)
		r = skipComma(r)
	}
	m.Event = event.New()
	if r, err = m.Event.Unmarshal(r); err != nil {
		return nil, nil, err
	}
	if r, err = expectCloseBracket(r); err != nil {
		return nil, nil, err
	}
	return m, r, nil
}

// ReqMsg is REQ: client->relay subscription request.
type ReqMsg struct {
	SubID   string
	Filters *filters.S
}

// Marshal renders a REQ message.
func (m *ReqMsg) Marshal(dst []byte) []byte {
	b := append(dst, '[')
	b = text.AppendQuote(b, []byte(LReq), text.NostrEscape)
	b = append(b, ',')
	b = text.AppendQuote(b, []byte(m.SubID), text.NostrEscape)
	for _, f := range m.Filters.F {
		b = append(b, ',')
		b = f.Marshal(b)
	}
	b = append(b, ']')
	return b
}

// CloseMsg is CLOSE: client->relay cancel.
type CloseMsg struct{ SubID string }

// Marshal renders a CLOSE message.
func (m *CloseMsg) Marshal(dst []byte) []byte {
	b := append(dst, '[')
	b = text.AppendQuote(b, []byte(LClose), text.NostrEscape)
	b = append(b, ',')
	b = text.AppendQuote(b, []byte(m.SubID), text.NostrEscape)
	b = append(b, ']')
	return b
}

// ParseClose parses the remainder of a CLOSE message after the label.
func ParseClose(r []byte) (*CloseMsg, []byte, error) {
	sid, rem, err := text.UnmarshalQuoted(r)
	if err != nil {
		return nil, nil, err
	}
	rem, err = expectCloseBracket(rem)
	if err != nil {
		return nil, nil, err
	}
	return &CloseMsg{SubID: string(sid)}, rem, nil
}

// EoseMsg is EOSE: relay->client "end of stored events".
type EoseMsg struct{ SubID string }

// ParseEose parses the remainder of an EOSE message after the label.
func ParseEose(r []byte) (*EoseMsg, []byte, error) {
	sid, rem, err := text.UnmarshalQuoted(r)
	if err != nil {
		return nil, nil, err
	}
	rem, err = expectCloseBracket(rem)
	if err != nil {
		return nil, nil, err
	}
	return &EoseMsg{SubID: string(sid)}, rem, nil
}

// OkMsg is OK: relay->client publish acknowledgement.
type OkMsg struct {
	EventID  string
	Accepted bool
	Message  string
}

// ParseOk parses the remainder of an OK message after the label.
func ParseOk(r []byte) (*OkMsg, []byte, error) {
	m := &OkMsg{}
	id, rem, err := text.UnmarshalQuoted(r)
	if err != nil {
		return nil, nil, err
	}
	m.EventID = string(id)
	rem = skipComma(rem)
	rem = skipWS(rem)
	if len(rem) >= 4 && string(rem[:4]) == "true" {
		m.Accepted = true
		rem = rem[4:]
	} else if len(rem) >= 5 && string(rem[:5]) == "false" {
		m.Accepted = false
		rem = rem[5:]
	} else {
		return nil, nil, nosterr.New(nosterr.ParseError, "OK: expected bool")
	}
	rem = skipComma(rem)
	msg, rem2, err := text.UnmarshalQuoted(rem)
	if err != nil {
		return nil, nil, err
	}
	m.Message = string(msg)
	rem2, err = expectCloseBracket(rem2)
	if err != nil {
		return nil, nil, err
	}
	return m, rem2, nil
}

// Marshal renders an OK message.
func (m *OkMsg) Marshal(dst []byte) []byte {
	b := append(dst, '[')
	b = text.AppendQuote(b, []byte(LOk), text.NostrEscape)
	b = append(b, ',')
	b = text.AppendQuote(b, []byte(m.EventID), text.NostrEscape)
	b = append(b, ',')
	if m.Accepted {
		b = append(b, "true"...)
	} else {
		b = append(b, "false"...)
	}
	b = append(b, ',')
	b = text.AppendQuote(b, []byte(m.Message), text.NostrEscape)
	b = append(b, ']')
	return b
}

// NoticeMsg is NOTICE: relay->client diagnostic.
type NoticeMsg struct{ Message string }

// ParseNotice parses the remainder of a NOTICE message after the label.
func ParseNotice(r []byte) (*NoticeMsg, []byte, error) {
	msg, rem, err := text.UnmarshalQuoted(r)
	if err != nil {
		return nil, nil, err
	}
	rem, err = expectCloseBracket(rem)
	if err != nil {
		return nil, nil, err
	}
	return &NoticeMsg{Message: string(msg)}, rem, nil
}

// AuthMsg is AUTH: a relay-sent NIP-42 challenge string, or a client-sent
// signed response event, disambiguated by which field is populated.
type AuthMsg struct {
	Challenge string
	Event     *event.E
}

// ParseAuth parses the remainder of an AUTH message after the label,
// choosing the challenge-string or event-object form based on the next
// token.
func ParseAuth(r []byte) (*AuthMsg, []byte, error) {
	rr := skipWS(r)
	if len(rr) > 0 && rr[0] == '"' {
		ch, rem, err := text.UnmarshalQuoted(rr)
		if err != nil {
			return nil, nil, err
		}
		rem, err = expectCloseBracket(rem)
		if err != nil {
			return nil, nil, err
		}
		return &AuthMsg{Challenge: string(ch)}, rem, nil
	}
	ev := event.New()
	rem, err := ev.Unmarshal(rr)
	if err != nil {
		return nil, nil, err
	}
	rem, err = expectCloseBracket(rem)
	if err != nil {
		return nil, nil, err
	}
	return &AuthMsg{Event: ev}, rem, nil
}

// Marshal renders an AUTH response (Event must be set).
func (m *AuthMsg) Marshal(dst []byte) []byte {
	b := append(dst, '[')
	b = text.AppendQuote(b, []byte(LAuth), text.NostrEscape)
	b = append(b, ',')
	if m.Event != nil {
		b = m.Event.Marshal(b)
	} else {
		b = text.AppendQuote(b, []byte(m.Challenge), text.NostrEscape)
	}
	b = append(b, ']')
	return b
}

// CountMsg is COUNT: relay->client NIP-45 count result.
type CountMsg struct {
	SubID string
	Count int
}

// ParseCount parses the remainder of a COUNT message after the label.
func ParseCount(r []byte) (*CountMsg, []byte, error) {
	sid, rem, err := text.UnmarshalQuoted(r)
	if err != nil {
		return nil, nil, err
	}
	rem = skipComma(rem)
	rem = skipWS(rem)
	if len(rem) == 0 || rem[0] != '{' {
		return nil, nil, nosterr.New(nosterr.ParseError, "COUNT: expected object")
	}
	rem = rem[1:]
	rem = skipWS(rem)
	key, rem2, err := text.UnmarshalQuoted(rem)
	if err != nil {
		return nil, nil, err
	}
	if string(key) != "count" {
		return nil, nil, nosterr.New(nosterr.ParseError, "COUNT: expected count key")
	}
	rem2 = skipWS(rem2)
	if len(rem2) == 0 || rem2[0] != ':' {
		return nil, nil, nosterr.New(nosterr.ParseError, "COUNT: expected ':'")
	}
	rem2 = skipWS(rem2[1:])
	i := 0
	for i < len(rem2) && rem2[i] >= '0' && rem2[i] <= '9' {
		i++
	}
	n, err := strconv.Atoi(string(rem2[:i]))
	if err != nil {
		return nil, nil, err
	}
	rem2 = skipWS(rem2[i:])
	if len(rem2) > 0 && rem2[0] == '}' {
		rem2 = rem2[1:]
	}
	rem2, err = expectCloseBracket(rem2)
	if err != nil {
		return nil, nil, err
	}
	return &CountMsg{SubID: string(sid), Count: n}, rem2, nil
}
