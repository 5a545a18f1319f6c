package bot

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/domino14/morris/ai/alphabeta"
	"github.com/domino14/morris/ai/player"
	"github.com/domino14/morris/board"
)

// SourceRemote marks moves chosen by a bot over NATS.
const SourceRemote player.Source = "remote"

// requester is the part of *nats.Conn the client needs.
type requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

// Client asks a bot for moves. It is a player.MoveChooser, so a remote
// engine can take a side in self-play.
type Client struct {
	nc      requester
	channel string
	budget  alphabeta.Budget
}

func NewClient(nc *nats.Conn, channel string, budget alphabeta.Budget) *Client {
	return &Client{nc: nc, channel: channel, budget: budget}
}

func MakeRequest(pos *board.Position, budget alphabeta.Budget) ([]byte, error) {
	req, err := structpb.NewStruct(map[string]any{
		fieldPosition: pos.Notation(),
		fieldDepth:    budget.MaxDepth,
		fieldTimeMs:   budget.TimeLimit.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(req)
}

// ChooseMove sends pos to the bot and waits for its move, allowing the
// bot's time limit plus a margin for the round trip.
func (c *Client) ChooseMove(ctx context.Context, pos *board.Position) (player.Choice, error) {
	data, err := MakeRequest(pos, c.budget)
	if err != nil {
		return player.Choice{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.budget.TimeLimit+5*time.Second)
	defer cancel()
	res, err := c.nc.RequestWithContext(ctx, c.channel, data)
	if err != nil {
		log.Err(err).Str("channel", c.channel).Msg("bot-request-failed")
		return player.Choice{}, err
	}
	return decodeMove(res.Data)
}
