package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-messenger/messenger"
	"rental-messenger/model"
	"rental-messenger/utils"
)

type sent struct {
	to      model.Identity
	content string
}

type fakeShell struct {
	reconnects int
	closed     int
	opened     []model.Identity
	sent       []sent
	published  []sent
	thread     []model.Message
}

func (f *fakeShell) Reconnect(context.Context) error { f.reconnects++; return nil }
func (f *fakeShell) Close()                          { f.closed++ }
func (f *fakeShell) State() messenger.State {
	return messenger.State{Identity: model.NewIdentity(model.KindUser, 1), Status: messenger.StatusConnected}
}
func (f *fakeShell) Open(_ context.Context, counterpart model.Identity) error {
	f.opened = append(f.opened, counterpart)
	return nil
}
func (f *fakeShell) Thread(model.Identity) []model.Message { return f.thread }
func (f *fakeShell) Send(_ context.Context, to model.Identity, content string) (model.Message, error) {
	f.sent = append(f.sent, sent{to, content})
	return model.Message{}, nil
}
func (f *fakeShell) Publish(_ context.Context, to model.Identity, content string) error {
	f.published = append(f.published, sent{to, content})
	return nil
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	require.NotNil(t, cmd)
	assert.Equal(t, "chat", cmd.Use)
	assert.True(t, cmd.HasSubCommands())

	token, _, err := cmd.Find([]string{"token"})
	require.NoError(t, err)
	assert.NotNil(t, token.Flags().Lookup("kind"))
	assert.NotNil(t, token.Flags().Lookup("id"))

	client, _, err := cmd.Find([]string{"client"})
	require.NoError(t, err)
	assert.Equal(t, "client", client.Name())
}

func TestTokenCommand_Signs_A_Verifiable_Token(t *testing.T) {
	req := require.New(t)
	t.Setenv("JWT_ACCESS_KEY", "token-command-key")
	t.Setenv("JWT_ACCESS_EXPIRE", "5")

	// Given the token command for merchant 7
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "--kind", "merchant", "--id", "7"})

	// When it runs
	req.NoError(cmd.Execute())

	// Then the printed token carries the identity
	metadata, err := utils.CheckAndExtractTokenMetadata(strings.TrimSpace(out.String()), "token-command-key")
	req.NoError(err)
	req.Equal(model.NewIdentity(model.KindMerchant, 7), metadata.Identity())
}

func TestTokenCommand_Rejects_Invalid_Identity(t *testing.T) {
	t.Setenv("JWT_ACCESS_KEY", "token-command-key")

	for _, args := range [][]string{
		{"token", "--kind", "admin", "--id", "1"},
		{"token", "--kind", "user", "--id", "0"},
		{"token", "--kind", "user"},
	} {
		cmd := NewRootCommand()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		assert.Error(t, cmd.Execute(), args)
	}
}

func TestExecute_Dispatches_Shell_Commands(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	shop := model.NewIdentity(model.KindMerchant, 7)
	shell := &fakeShell{}
	var out bytes.Buffer

	// When lines are typed at the prompt
	req.NoError(Execute(ctx, shell, &out, "m merchant:7 is the flat   still free?"))
	req.NoError(Execute(ctx, shell, &out, "p merchant:7 -1 night"))
	req.NoError(Execute(ctx, shell, &out, "o merchant:7"))
	req.NoError(Execute(ctx, shell, &out, "c"))
	req.NoError(Execute(ctx, shell, &out, "r"))
	req.NoError(Execute(ctx, shell, &out, "s"))
	req.NoError(Execute(ctx, shell, &out, "   "))

	// Then each reaches the session with its arguments
	req.Equal([]sent{{shop, "is the flat still free?"}}, shell.sent)
	req.Equal([]sent{{shop, "-1 night"}}, shell.published)
	req.Equal([]model.Identity{shop}, shell.opened)
	req.Equal(1, shell.closed)
	req.Equal(1, shell.reconnects)
	req.Contains(out.String(), "user:1 connected")
}

func TestExecute_Reports_Bad_Input(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	shell := &fakeShell{}
	var out bytes.Buffer

	req.ErrorIs(Execute(ctx, shell, &out, "q"), ErrQuit)
	req.Error(Execute(ctx, shell, &out, "x"))
	req.Error(Execute(ctx, shell, &out, "o merchant"))
	req.Error(Execute(ctx, shell, &out, "m merchant:7"))
	req.Error(Execute(ctx, shell, &out, "m guest:7 hi"))
	req.Empty(shell.sent)
}
