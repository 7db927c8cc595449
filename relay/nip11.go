package relay

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"nostrkit.dev/internal/chk"
)

// Info is a relay's NIP-11 metadata document.
type Info struct {
	Name          string   `json:"name,omitempty"`
	Description   string   `json:"description,omitempty"`
	Pubkey        string   `json:"pubkey,omitempty"`
	Contact       string   `json:"contact,omitempty"`
	SupportedNips []int    `json:"supported_nips,omitempty"`
	Software      string   `json:"software,omitempty"`
	Version       string   `json:"version,omitempty"`
	Limitation    *Limits  `json:"limitation,omitempty"`
	RelayCountries []string `json:"relay_countries,omitempty"`
}

// Limits is the NIP-11 "limitation" object.
type Limits struct {
	MaxMessageLength int  `json:"max_message_length,omitempty"`
	MaxSubscriptions int  `json:"max_subscriptions,omitempty"`
	MaxFilters       int  `json:"max_filters,omitempty"`
	MaxLimit         int  `json:"max_limit,omitempty"`
	MinPowDifficulty int  `json:"min_pow_difficulty,omitempty"`
	AuthRequired     bool `json:"auth_required,omitempty"`
	RestrictedWrites bool `json:"restricted_writes,omitempty"`
}

// FetchInfo fetches a relay's NIP-11 document over plain HTTP(S), converting
// the wss/ws scheme to https/http first.
func FetchInfo(client *http.Client, relayURL string) (*Info, error) {
	httpURL := toHTTP(relayURL)
	req, err := http.NewRequest(http.MethodGet, httpURL, nil)
	if chk.E(err) {
		return nil, err
	}
	req.Header.Set("Accept", "application/nostr+json")
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if chk.E(err) {
		return nil, err
	}
	defer resp.Body.Close()
	var info Info
	if err = json.NewDecoder(resp.Body).Decode(&info); chk.E(err) {
		return nil, err
	}
	return &info, nil
}

func toHTTP(u string) string {
	switch {
	case strings.HasPrefix(u, "wss://"):
		return "https://" + strings.TrimPrefix(u, "wss://")
	case strings.HasPrefix(u, "ws://"):
		return "http://" + strings.TrimPrefix(u, "ws://")
	default:
		return u
	}
}
