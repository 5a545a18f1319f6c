// Package bot serves moves over NATS request/reply, so engines on other
// machines can play positions sent to them.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/domino14/morris/ai/alphabeta"
	"github.com/domino14/morris/ai/player"
	"github.com/domino14/morris/board"
	"github.com/domino14/morris/config"
	"github.com/domino14/morris/move"
	"github.com/domino14/morris/zobrist"
)

const DefaultChannel = "morris.bot"

// Request and response field names.
const (
	fieldPosition = "position"
	fieldDepth    = "depth"
	fieldTimeMs   = "time_ms"
	fieldMove     = "move"
	fieldValue    = "value"
	fieldPV       = "pv"
	fieldCanceled = "cancelled"
	fieldError    = "error"
)

var ErrBadRequest = errors.New("bad bot request")

type Bot struct {
	config  *config.Config
	zobrist *zobrist.Zobrist
	chooser player.MoveChooser
	budget  alphabeta.Budget
}

// NewBot creates a bot that searches with the configured budget, table
// and rules. Requests may ask for a smaller or larger budget.
func NewBot(cfg *config.Config) *Bot {
	solver := alphabeta.NewSolver(cfg.TranspositionTable(), cfg.SolverOptions())
	return &Bot{
		config:  cfg,
		zobrist: zobrist.New(),
		budget:  cfg.Budget(),
		chooser: player.NewSearchPlayer(solver, cfg.Budget()),
	}
}

func errorResponse(message string, err error) []byte {
	msg := message
	if err != nil {
		msg = fmt.Sprintf("%s: %s", msg, err.Error())
	}
	resp, _ := structpb.NewStruct(map[string]any{fieldError: msg})
	data, _ := proto.Marshal(resp)
	return data
}

func (bot *Bot) deserialize(data []byte) (*board.Position, alphabeta.Budget, error) {
	budget := bot.budget
	req := &structpb.Struct{}
	if err := proto.Unmarshal(data, req); err != nil {
		return nil, budget, err
	}
	fields := req.GetFields()
	notation := fields[fieldPosition].GetStringValue()
	if notation == "" {
		return nil, budget, fmt.Errorf("%w: no position", ErrBadRequest)
	}
	if v, ok := fields[fieldDepth]; ok {
		budget.MaxDepth = int(v.GetNumberValue())
	}
	if v, ok := fields[fieldTimeMs]; ok {
		budget.TimeLimit = time.Duration(v.GetNumberValue()) * time.Millisecond
	}
	pos, err := board.FromNotation(bot.config.Rules(), bot.zobrist, notation)
	if err != nil {
		return nil, budget, err
	}
	return pos, budget, nil
}

func (bot *Bot) handle(ctx context.Context, data []byte) []byte {
	pos, budget, err := bot.deserialize(data)
	if err != nil {
		return errorResponse("could not parse request", err)
	}
	if sp, ok := bot.chooser.(*player.SearchPlayer); ok {
		sp.SetBudget(budget)
	}
	c, err := bot.chooser.ChooseMove(ctx, pos)
	if err != nil {
		return errorResponse("could not choose a move", err)
	}
	pv := make([]any, len(c.PV))
	for i, m := range c.PV {
		pv[i] = m.String()
	}
	resp, err := structpb.NewStruct(map[string]any{
		fieldMove:     c.Move.String(),
		fieldValue:    c.Value,
		fieldDepth:    c.Depth,
		fieldPV:       pv,
		fieldCanceled: c.Cancelled,
	})
	if err != nil {
		return errorResponse("could not build response", err)
	}
	out, err := proto.Marshal(resp)
	if err != nil {
		return errorResponse("could not marshal response", err)
	}
	log.Info().Str("position", pos.Notation()).Str("move", c.Move.String()).
		Int("value", c.Value).Int("depth", c.Depth).Msg("generated-move")
	return out
}

// Main answers requests on channel until ctx is done, then drains the
// connection.
func Main(ctx context.Context, natsURL, channel string, bot *Bot) error {
	nc, err := nats.Connect(natsURL, nats.Name("morris-bot"))
	if err != nil {
		return err
	}
	_, err = nc.Subscribe(channel, func(m *nats.Msg) {
		log.Debug().Msgf("RECV: %d bytes", len(m.Data))
		if err := m.Respond(bot.handle(ctx, m.Data)); err != nil {
			log.Err(err).Msg("respond-failed")
		}
	})
	if err != nil {
		nc.Close()
		return err
	}
	if err := nc.Flush(); err != nil {
		nc.Close()
		return err
	}
	if err := nc.LastError(); err != nil {
		nc.Close()
		return err
	}
	log.Info().Msgf("Listening on [%s]", channel)

	<-ctx.Done()
	return nc.Drain()
}

// decodeMove reads a bot response.
func decodeMove(data []byte) (player.Choice, error) {
	resp := &structpb.Struct{}
	if err := proto.Unmarshal(data, resp); err != nil {
		return player.Choice{}, err
	}
	fields := resp.GetFields()
	if e, ok := fields[fieldError]; ok {
		return player.Choice{}, errors.New("bot returned: " + e.GetStringValue())
	}
	c := player.Choice{
		Value:     int(fields[fieldValue].GetNumberValue()),
		Depth:     int(fields[fieldDepth].GetNumberValue()),
		Cancelled: fields[fieldCanceled].GetBoolValue(),
		Source:    SourceRemote,
	}
	ms := fields[fieldMove].GetStringValue()
	if ms != move.None.String() {
		m, err := move.Parse(ms)
		if err != nil {
			return c, err
		}
		c.Move = m
	}
	for _, v := range fields[fieldPV].GetListValue().GetValues() {
		m, err := move.Parse(v.GetStringValue())
		if err != nil {
			return c, err
		}
		c.PV = append(c.PV, m)
	}
	return c, nil
}
