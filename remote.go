package psadiag

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"time"
)

const (
	manifestTimeout = 6 * time.Second
	updateTimeout   = 5 * time.Second
)

// Client fetches the remote version manifests and the banner message feed.
type Client struct {
	cfg  *Config
	http *http.Client
}

func NewClient(cfg *Config) *Client {
	return &Client{cfg: cfg, http: &http.Client{}}
}

func (c *Client) getJSON(ctx context.Context, url string, timeout time.Duration, v interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// VersionOption is one installable Diagbox release offered by the update
// server.
type VersionOption struct {
	Display string
	Version string
	URL     string
}

// UnmarshalJSON accepts both the object form ({"display_name": ..,
// "version": .., "url": ..}) and the legacy 3-element array form.
func (o *VersionOption) UnmarshalJSON(data []byte) error {
	var obj struct {
		DisplayName string `json:"display_name"`
		Display     string `json:"display"`
		Name        string `json:"name"`
		Version     string `json:"version"`
		URL         string `json:"url"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		display := obj.DisplayName
		if display == "" {
			display = obj.Display
		}
		if display == "" {
			display = obj.Name
		}
		*o = VersionOption{Display: display, Version: obj.Version, URL: obj.URL}
		return nil
	}
	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) < 3 {
		return fmt.Errorf("version option array too short")
	}
	*o = VersionOption{Display: arr[0], Version: arr[1], URL: arr[2]}
	return nil
}

func (o VersionOption) valid() bool {
	return o.Display != "" && o.Version != "" && o.URL != ""
}

// VersionOptions loads the list of installable versions. Malformed entries
// are skipped; an empty result means the update server offers nothing
// (maintenance).
func (c *Client) VersionOptions(ctx context.Context) ([]VersionOption, error) {
	var raw []json.RawMessage
	if err := c.getJSON(ctx, c.cfg.URLVersionOptions, manifestTimeout, &raw); err != nil {
		return nil, err
	}
	var options []VersionOption
	for _, item := range raw {
		var option VersionOption
		if err := json.Unmarshal(item, &option); err != nil {
			continue
		}
		if option.valid() {
			options = append(options, option)
		}
	}
	if len(options) == 0 {
		log.Println("Version options JSON did not contain valid entries")
	} else {
		log.Printf("Loaded %d version options", len(options))
	}
	return options, nil
}

// LatestAppVersion returns the newest published version of psadiag itself.
func (c *Client) LatestAppVersion(ctx context.Context) (string, error) {
	var manifest struct {
		Version string `json:"version"`
	}
	if err := c.getJSON(ctx, c.cfg.URLLastVersionApp, updateTimeout, &manifest); err != nil {
		return "", err
	}
	return manifest.Version, nil
}

// LatestDiagboxVersion returns the newest published Diagbox version.
func (c *Client) LatestDiagboxVersion(ctx context.Context) (string, error) {
	var manifest struct {
		Version string `json:"version"`
	}
	if err := c.getJSON(ctx, c.cfg.URLLastVersionDiagbox, manifestTimeout, &manifest); err != nil {
		return "", err
	}
	return manifest.Version, nil
}

// MessageText is one localized banner text with an optional link.
type MessageText struct {
	Text string `json:"text"`
	Link string `json:"link"`
}

// UnmarshalJSON accepts either a bare string or a {"text": .., "link": ..}
// object.
func (mt *MessageText) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*mt = MessageText{Text: str}
		return nil
	}
	type plain MessageText
	return json.Unmarshal(data, (*plain)(mt))
}

// Message is one entry of the remote banner feed. Messages outside their
// start/end window are not shown; absent bounds leave the window open on
// that side.
type Message struct {
	ID       string
	Lang     map[string]MessageText
	Start    *time.Time
	End      *time.Time
	Priority int
	Pages    []string
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID        string                 `json:"id"`
		Name      string                 `json:"name"`
		Lang      map[string]MessageText `json:"lang"`
		Texts     map[string]MessageText `json:"texts"`
		Start     string                 `json:"start"`
		End       string                 `json:"end"`
		Priority  int                    `json:"priority"`
		DisplayOn json.RawMessage        `json:"display_on"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.ID = aux.ID
	if m.ID == "" {
		m.ID = aux.Name
	}
	m.Lang = aux.Lang
	if m.Lang == nil {
		m.Lang = aux.Texts
	}
	m.Priority = aux.Priority
	m.Start = parseMessageTime(aux.Start)
	m.End = parseMessageTime(aux.End)
	m.Pages = nil
	if len(aux.DisplayOn) > 0 {
		var single string
		if err := json.Unmarshal(aux.DisplayOn, &single); err == nil {
			m.Pages = []string{single}
		} else {
			var list []string
			if err := json.Unmarshal(aux.DisplayOn, &list); err == nil {
				m.Pages = list
			}
		}
	}
	return nil
}

func parseMessageTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &t
}

// ActiveAt reports whether the message should be shown at the given time.
func (m Message) ActiveAt(now time.Time) bool {
	if m.Start != nil && now.Before(*m.Start) {
		return false
	}
	if m.End != nil && now.After(*m.End) {
		return false
	}
	return true
}

// ShownOn reports whether the message targets the given page. Messages
// without a page list target every page.
func (m Message) ShownOn(page string) bool {
	if len(m.Pages) == 0 {
		return true
	}
	for _, p := range m.Pages {
		if p == page {
			return true
		}
	}
	return false
}

// TextFor returns the message text for a language, falling back to the
// default language.
func (m Message) TextFor(lang string) MessageText {
	if text, ok := m.Lang[lang]; ok {
		return text
	}
	return m.Lang[DefaultLanguage]
}

// Messages loads the remote banner feed. A single-object root is allowed.
func (c *Client) Messages(ctx context.Context) ([]Message, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, c.cfg.URLRemoteMessages, manifestTimeout, &raw); err != nil {
		return nil, err
	}
	var messages []Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		var single Message
		if err = json.Unmarshal(raw, &single); err != nil {
			return nil, err
		}
		messages = []Message{single}
	}
	return messages, nil
}

// ActiveMessages filters the feed down to messages active at the given time
// and orders them by descending priority.
func ActiveMessages(messages []Message, now time.Time) []Message {
	var active []Message
	for _, m := range messages {
		if m.ActiveAt(now) {
			active = append(active, m)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority > active[j].Priority
	})
	return active
}
