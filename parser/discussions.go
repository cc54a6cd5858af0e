package parser

import (
	"encoding/json"

	"gitlab.com/kockalogger/kockalogger/message"
)

// discussionsPayload is the JSON shape the Discussions feed emits
// once LineDecoder has reassembled a balanced-brace blob (spec.md
// §4.4). Field names mirror spec.md §3's Message discussions fields.
type discussionsPayload struct {
	Wiki     string `json:"wiki"`
	Domain   string `json:"domain"`
	Language string `json:"language"`
	User     string `json:"user"`

	Platform string `json:"platform"`
	DType    string `json:"dtype"`
	Action   string `json:"action"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
	Size     int    `json:"size"`
	Category string `json:"category"`
	URL      string `json:"url"`
	Thread   string `json:"thread"`
	Reply    string `json:"reply"`
	Page     string `json:"page"`
}

var validPlatforms = map[string]bool{
	"discussion":      true,
	"article-comment": true,
	"message-wall":    true,
}

var validDTypes = map[string]bool{
	"thread": true,
	"post":   true,
	"reply":  true,
	"report": true,
}

func (p *Parser) parseDiscussions(raw string) *message.Message {
	var payload discussionsPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return errorMessage(raw, ErrCodeDiscussionsJSON, "invalid discussions JSON: "+err.Error())
	}

	if !validPlatforms[payload.Platform] || !validDTypes[payload.DType] {
		return errorMessage(raw, ErrCodeDiscussionsType, "unrecognized platform/dtype combination")
	}

	if payload.URL == "" {
		return errorMessage(raw, ErrCodeDiscussionsURL, "missing url field")
	}
	if payload.Platform != "discussion" && payload.Page == "" {
		return errorMessage(raw, ErrCodeDiscussionsURL2, "non-discussion platform missing page field")
	}

	domain := payload.Domain
	if domain == "" {
		domain = message.DefaultDomain
	}

	return &message.Message{
		Type:     message.TypeDiscussions,
		Wiki:     payload.Wiki,
		Domain:   domain,
		Language: message.NormalizeLanguage(payload.Language),
		User:     payload.User,
		Raw:      raw,
		Platform: payload.Platform,
		DType:    payload.DType,
		Action:   payload.Action,
		Title:    payload.Title,
		Snippet:  payload.Snippet,
		Size:     payload.Size,
		Category: payload.Category,
		URL:      payload.URL,
		Thread:   payload.Thread,
		Reply:    payload.Reply,
		Page:     payload.Page,
	}
}
