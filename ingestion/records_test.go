package ingestion

import (
	"strings"
	"testing"

	"github.com/poiesic/recall/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRecords(t *testing.T) {
	input := `
- text: remember the milk
- url: https://example.com/cats
  title: Why cats purr
  description: A short read
  webText: Cats purr when they are content.
---
- text: second document
  title: ignored without url
`
	nodes, err := ReadRecords(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	assert.Equal(t, &core.Node{Text: "remember the milk"}, nodes[0])
	assert.Equal(t, &core.Bookmark{
		URL:         "https://example.com/cats",
		Title:       "Why cats purr",
		Description: "A short read",
		WebText:     "Cats purr when they are content.",
	}, nodes[1].Bookmark)
	assert.Nil(t, nodes[2].Bookmark)
}

func TestReadRecords_Empty(t *testing.T) {
	nodes, err := ReadRecords(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestReadRecords_Invalid(t *testing.T) {
	_, err := ReadRecords(strings.NewReader("- title: no text or url\n"))
	assert.ErrorIs(t, err, ErrInvalidRecord)
	assert.Contains(t, err.Error(), "record 0")

	_, err = ReadRecords(strings.NewReader("text: not a sequence\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document 0")
}
