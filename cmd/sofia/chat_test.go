package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/sofia/internal/assistant"
)

type echoResponder struct {
	turns []assistant.Turn
}

func (e *echoResponder) Respond(_ context.Context, turn assistant.Turn) assistant.Reply {
	e.turns = append(e.turns, turn)
	return assistant.Reply{Text: "eco: " + turn.Message}
}

func TestRunChatStopsOnExitWord(t *testing.T) {
	r := &echoResponder{}
	var out bytes.Buffer
	in := strings.NewReader("olá\n\n  busque a ata  \nsair\nnunca lida\n")

	require.NoError(t, runChat(context.Background(), in, &out, r, "u1", "Ana"))

	require.Len(t, r.turns, 2)
	assert.Equal(t, assistant.Turn{UserID: "u1", UserName: "Ana", Message: "olá"}, r.turns[0])
	assert.Equal(t, "busque a ata", r.turns[1].Message)
	assert.Contains(t, out.String(), "Sofia: eco: olá\n")
	assert.Contains(t, out.String(), "Até logo!")
	assert.NotContains(t, out.String(), "nunca lida")
}

func TestRunChatAcceptsExitCaseInsensitively(t *testing.T) {
	r := &echoResponder{}
	var out bytes.Buffer
	require.NoError(t, runChat(context.Background(), strings.NewReader("EXIT\n"), &out, r, "u1", ""))
	assert.Empty(t, r.turns)
}

func TestRunChatEndsAtEOF(t *testing.T) {
	r := &echoResponder{}
	var out bytes.Buffer
	require.NoError(t, runChat(context.Background(), strings.NewReader("oi"), &out, r, "u1", ""))
	require.Len(t, r.turns, 1)
	assert.Equal(t, "oi", r.turns[0].Message)
}

func TestRunChatStopsWhenContextEnds(t *testing.T) {
	r := &echoResponder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	require.NoError(t, runChat(ctx, strings.NewReader("oi\n"), &out, r, "u1", ""))
	assert.Empty(t, r.turns)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"chat", "serve", "explain"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
