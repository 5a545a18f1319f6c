package bot

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domino14/morris/ai/alphabeta"
	"github.com/domino14/morris/automatic"
	"github.com/domino14/morris/board"
	"github.com/domino14/morris/config"
	"github.com/domino14/morris/move"
	"github.com/domino14/morris/zobrist"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	os.Exit(m.Run())
}

// loopback hands requests straight to a bot, standing in for a NATS server.
type loopback struct {
	bot *Bot
}

func (l *loopback) RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error) {
	return &nats.Msg{Subject: subj, Data: l.bot.handle(ctx, data)}, nil
}

func testConfig(t *testing.T, args ...string) *config.Config {
	cfg := &config.Config{}
	require.NoError(t, cfg.Load(append([]string{"--tt-capacity=65536", "--search-depth=3"}, args...)))
	return cfg
}

func testClient(t *testing.T, cfg *config.Config) *Client {
	return &Client{
		nc:      &loopback{bot: NewBot(cfg)},
		channel: DefaultChannel,
		budget:  alphabeta.Budget{MaxDepth: 3, TimeLimit: time.Minute},
	}
}

func layout(white, black []string) string {
	pts := []byte(strings.Repeat(".", board.NumSquares))
	for _, s := range white {
		sq, _ := move.ParseSquare(s)
		pts[sq] = 'W'
	}
	for _, s := range black {
		sq, _ := move.ParseSquare(s)
		pts[sq] = 'B'
	}
	return string(pts)
}

func TestRemoteMove(t *testing.T) {
	cfg := testConfig(t)
	// A different zobrist table than the bot's: only the notation crosses
	// the wire.
	pos, err := board.FromNotation(cfg.Rules(), zobrist.New(),
		layout([]string{"a7", "d7", "g4"}, []string{"b2", "d3", "f2"})+" w s 0 0 0 0")
	require.NoError(t, err)

	c, err := testClient(t, cfg).ChooseMove(context.Background(), pos)
	require.NoError(t, err)
	assert.Equal(t, "g4-g7", c.Move.String())
	assert.Equal(t, SourceRemote, c.Source)
	assert.Greater(t, c.Value, board.ValueWin)
	assert.False(t, c.Cancelled)
	require.NotEmpty(t, c.PV)
	assert.Equal(t, c.Move, c.PV[0])
}

func TestRemoteGameOver(t *testing.T) {
	cfg := testConfig(t)
	pos, err := board.FromNotation(cfg.Rules(), zobrist.New(),
		layout([]string{"a7", "d7"}, []string{"b6", "d6", "f6"})+" w - 0 0 0 0")
	require.NoError(t, err)

	c, err := testClient(t, cfg).ChooseMove(context.Background(), pos)
	require.NoError(t, err)
	assert.True(t, c.Move.IsNone())
	assert.Empty(t, c.PV)
}

func TestBadRequests(t *testing.T) {
	b := NewBot(testConfig(t))
	ctx := context.Background()

	_, err := decodeMove(b.handle(ctx, []byte("not a protobuf")))
	assert.ErrorContains(t, err, "could not parse request")

	req, err := MakeRequest(func() *board.Position {
		pos, err := board.NewPosition(board.DefaultRules(), zobrist.New())
		require.NoError(t, err)
		return pos
	}(), alphabeta.Budget{MaxDepth: 0, TimeLimit: time.Second})
	require.NoError(t, err)
	_, err = decodeMove(b.handle(ctx, req))
	assert.ErrorContains(t, err, "could not choose a move")
}

func TestRemotePlayerInSelfPlay(t *testing.T) {
	cfg := testConfig(t, "--search-depth=2", "--pieces-per-side=5", "--max-moves-without-capture=20")
	r := automatic.NewGameRunner(cfg, nil, zobrist.New())
	client := testClient(t, cfg)
	client.budget.MaxDepth = 2
	r.SetPlayer(board.Black, client)

	rec, err := r.PlayGame(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.Len(t, rec.Moves, rec.Plies)
	assert.NotEmpty(t, rec.Final)
}
