package notify

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_ShortStaysWhole(t *testing.T) {
	assert.Nil(t, Chunk("", 10))
	assert.Equal(t, []string{"abc"}, Chunk("abc", 10))
}

func TestChunk_SplitsOnBlankLines(t *testing.T) {
	items := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		items = append(items, strings.Repeat("x", 100))
	}
	s := strings.Join(items, "\n\n")

	chunks := Chunk(s, 1000)
	require.Greater(t, len(chunks), 1)
	total := 0
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 1000)
		assert.False(t, strings.HasPrefix(c, "\n"))
		for _, item := range strings.Split(c, "\n\n") {
			assert.Len(t, item, 100)
			total++
		}
	}
	assert.Equal(t, 40, total)
}

func TestChunk_HardCutWithoutSeparator(t *testing.T) {
	chunks := Chunk(strings.Repeat("é", 10), 5)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 5)
		assert.True(t, strings.HasPrefix(c, "é"))
	}
	assert.Equal(t, strings.Repeat("é", 10), strings.Join(chunks, ""))
}

func TestChunk_KeepsRuneLongerThanMax(t *testing.T) {
	chunks := Chunk("é€a", 1)
	assert.Equal(t, []string{"é", "€", "a"}, chunks)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
	}
}

func TestSections(t *testing.T) {
	assert.Equal(t, []Block{{Type: BlockSection, Text: "*Title*"}}, sections("*Title*", "", false, 3000))

	got := sections("*Code*\n", "a", true, 3000)
	assert.Equal(t, "*Code*\n```a```", got[0].Text)

	long := strings.Repeat(strings.Repeat("y", 50)+"\n\n", 100)
	for _, b := range sections("*T*\n", long, true, 500) {
		assert.LessOrEqual(t, len(b.Text), 500)
		assert.True(t, strings.HasPrefix(b.Text, "*T*\n```"))
	}
}

func TestMessage_SlackPayload(t *testing.T) {
	msg := Message{Blocks: []Block{
		{Type: BlockHeader, Text: "Header"},
		{Type: BlockDivider},
		{Type: BlockSection, Text: "*bold*"},
		{Type: BlockSection, Text: "plain", Plain: true},
	}}
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"blocks":[
		{"type":"header","text":{"type":"plain_text","text":"Header"}},
		{"type":"divider"},
		{"type":"section","text":{"type":"mrkdwn","text":"*bold*"}},
		{"type":"section","text":{"type":"plain_text","text":"plain"}}
	]}`, string(data))

	assert.Equal(t, "*Header*\n\n----\n\n*bold*\n\nplain", msg.Text())
}
