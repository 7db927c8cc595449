package event

import (
	"strings"

	"nostrkit.dev/encoders/tag"
	"nostrkit.dev/hex"
	"nostrkit.dev/nip19"
)

// GenerateContentTags scans Content for `#hashtag`, `@<bech32>` and bare
// `nostr:<bech32>` tokens, mutating Tags in place: each npub token adds a
// deduplicated `p` tag with the decoded hex pubkey; each note/nevent token
// adds a `q` tag; each hashtag adds a `t` tag with the lowercased body;
// textual `@<bech32>` mentions are rewritten in Content to canonical
// `nostr:<bech32>` form.
func (ev *E) GenerateContentTags() {
	content := ev.ContentString()
	var rewritten strings.Builder
	i := 0
	for i < len(content) {
		c := content[i]
		switch {
		case c == '#' && i+1 < len(content) && isTagStart(content[i+1]):
			j := i + 1
			for j < len(content) && isTagBody(content[j]) {
				j++
			}
			word := content[i+1 : j]
			ev.addTagTag(strings.ToLower(word))
			rewritten.WriteString(content[i:j])
			i = j
		case c == '@' && i+1 < len(content):
			j := i + 1
			for j < len(content) && isBech32Body(content[j]) {
				j++
			}
			token := content[i+1 : j]
			if ev.handleMentionToken(token) {
				rewritten.WriteString("nostr:")
				rewritten.WriteString(token)
				i = j
				continue
			}
			rewritten.WriteByte(c)
			i++
		case strings.HasPrefix(content[i:], "nostr:"):
			j := i + 6
			k := j
			for k < len(content) && isBech32Body(content[k]) {
				k++
			}
			token := content[j:k]
			ev.handleMentionToken(token)
			rewritten.WriteString(content[i:k])
			i = k
		default:
			rewritten.WriteByte(c)
			i++
		}
	}
	ev.Content = []byte(rewritten.String())
}

func (ev *E) handleMentionToken(token string) bool {
	switch nip19.Prefix(token) {
	case "npub":
		if pub, err := nip19.DecodePubkey(token); err == nil {
			ev.addPTag(hex.Enc(pub))
			return true
		}
	case "nprofile":
		if p, err := nip19.DecodeNprofile(token); err == nil && p.Special != nil {
			ev.addPTag(hex.Enc(p.Special))
			return true
		}
	case "note":
		if id, err := nip19.DecodeNote(token); err == nil {
			ev.addQTag(hex.Enc(id))
			return true
		}
	case "nevent":
		if p, err := nip19.DecodeNevent(token); err == nil && p.Special != nil {
			ev.addQTag(hex.Enc(p.Special))
			return true
		}
	}
	return false
}

func (ev *E) addPTag(pub string) {
	if !ev.Tags.ContainsValue("p", pub) {
		ev.Tags.AppendTags(tag.New("p", pub))
	}
}

func (ev *E) addQTag(id string) {
	if !ev.Tags.ContainsValue("q", id) {
		ev.Tags.AppendTags(tag.New("q", id))
	}
}

func (ev *E) addTagTag(word string) {
	if !ev.Tags.ContainsValue("t", word) {
		ev.Tags.AppendTags(tag.New("t", word))
	}
}

func isTagStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func isTagBody(b byte) bool { return isTagStart(b) }

func isBech32Body(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9') || b == '1'
}
