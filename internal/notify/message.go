// Package notify renders run results as chat messages and delivers them.
package notify

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

type BlockType string

const (
	BlockHeader  BlockType = "header"
	BlockSection BlockType = "section"
	BlockDivider BlockType = "divider"
)

// Block is one Slack block kit element. Section text is mrkdwn unless Plain is set.
type Block struct {
	Type  BlockType
	Text  string
	Plain bool
}

type Message struct {
	Blocks []Block
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

// MarshalJSON renders the Slack incoming webhook payload.
func (m Message) MarshalJSON() ([]byte, error) {
	blocks := make([]slackBlock, 0, len(m.Blocks))
	for _, b := range m.Blocks {
		sb := slackBlock{Type: string(b.Type)}
		switch {
		case b.Type == BlockDivider:
		case b.Type == BlockHeader || b.Plain:
			sb.Text = &slackText{Type: "plain_text", Text: b.Text}
		default:
			sb.Text = &slackText{Type: "mrkdwn", Text: b.Text}
		}
		blocks = append(blocks, sb)
	}
	return json.Marshal(struct {
		Blocks []slackBlock `json:"blocks"`
	}{blocks})
}

// Text renders the message for services without block support.
func (m Message) Text() string {
	parts := make([]string, 0, len(m.Blocks))
	for _, b := range m.Blocks {
		switch b.Type {
		case BlockHeader:
			parts = append(parts, "*"+b.Text+"*")
		case BlockDivider:
			parts = append(parts, "----")
		default:
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (m Message) Empty() bool { return len(m.Blocks) == 0 }

// Chunk splits s into pieces of at most max bytes, preferring blank-line
// boundaries. A rune is never split, even when it alone is longer than max.
func Chunk(s string, max int) []string {
	if s == "" {
		return nil
	}
	if max <= 0 || len(s) <= max {
		return []string{s}
	}

	var out []string
	for len(s) > max {
		cut := strings.LastIndex(s[:max], "\n\n")
		if cut <= 0 {
			cut = max
			for cut > 0 && !utf8.RuneStart(s[cut]) {
				cut--
			}
			if cut == 0 {
				_, cut = utf8.DecodeRuneInString(s)
			}
		}
		out = append(out, s[:cut])
		s = strings.TrimLeft(s[cut:], "\n")
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

// sections builds one or more section blocks for title and content. Long
// content is spread over several sections that each repeat the title.
func sections(title, content string, code bool, maxLen int) []Block {
	if content == "" {
		return []Block{{Type: BlockSection, Text: title}}
	}
	room := maxLen - len(title)
	if code {
		room -= 6
	}
	if room < 1 {
		room = 1
	}
	var out []Block
	for _, part := range Chunk(content, room) {
		if code {
			part = "```" + part + "```"
		}
		out = append(out, Block{Type: BlockSection, Text: title + part})
	}
	return out
}
