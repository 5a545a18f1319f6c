// Package automatic plays the engine against itself, for testing changes
// to the search and for filling the book.
package automatic

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"lukechampine.com/frand"

	"github.com/domino14/morris/ai/alphabeta"
	"github.com/domino14/morris/ai/player"
	"github.com/domino14/morris/board"
	"github.com/domino14/morris/config"
	"github.com/domino14/morris/move"
	"github.com/domino14/morris/ttable"
	"github.com/domino14/morris/zobrist"
)

const (
	// DefaultMaxPlies stops games that the no-removal draw rule does not
	// end, for example when it is turned off.
	DefaultMaxPlies = 600
	// DefaultOpeningPlies are played at random, from the game seed, so
	// that games with a shared table do not all repeat each other.
	DefaultOpeningPlies = 2
)

var ErrNoMove = errors.New("player returned no move")

// GameRecord is the outcome of one game.
type GameRecord struct {
	ID int
	// UID tells games of different runs apart.
	UID  string
	Seed uint64
	// Winner is NoColor for a draw or a game stopped at the ply cap.
	Winner   board.Color
	Plies    int
	Finished bool
	Moves    []move.Move
	Final    string
	Duration time.Duration
}

// GameRunner plays whole games between two move choosers.
type GameRunner struct {
	rules   board.Rules
	zobrist *zobrist.Zobrist
	players [2]player.MoveChooser
	solvers [2]*alphabeta.Solver
	opts    alphabeta.Options

	MaxPlies     int
	OpeningPlies int
}

// NewGameRunner creates a runner with a searching player on each side.
// Both players use tt, which may be shared with other runners.
func NewGameRunner(cfg *config.Config, tt *ttable.TranspositionTable, z *zobrist.Zobrist) *GameRunner {
	r := &GameRunner{
		rules:        cfg.Rules(),
		zobrist:      z,
		opts:         cfg.SolverOptions(),
		MaxPlies:     DefaultMaxPlies,
		OpeningPlies: DefaultOpeningPlies,
	}
	// The trace tree is of no use here and costs memory.
	r.opts.Trace = false
	for i := range r.players {
		r.solvers[i] = alphabeta.NewSolver(tt, r.opts)
		r.players[i] = player.NewSearchPlayer(r.solvers[i], cfg.Budget())
	}
	return r
}

// SetPlayer replaces the player for side c. Its solver, if any, is no
// longer reseeded per game.
func (r *GameRunner) SetPlayer(c board.Color, p player.MoveChooser) {
	r.players[c.Index()] = p
	r.solvers[c.Index()] = nil
}

func (r *GameRunner) reseed(seed uint64) {
	for i, s := range r.solvers {
		if s == nil {
			continue
		}
		opts := r.opts
		opts.Seed = seed + uint64(i)
		s.SetOptions(opts)
	}
}

// PlayGame plays one game from the start position. The seed picks the
// opening moves and the players' tie breaks, so the same seed replays the
// same game given the same table contents.
func (r *GameRunner) PlayGame(ctx context.Context, id int, seed uint64) (GameRecord, error) {
	tstart := time.Now()
	rec := GameRecord{ID: id, UID: uuid.NewString(), Seed: seed}
	pos, err := board.NewPosition(r.rules, r.zobrist)
	if err != nil {
		return rec, err
	}
	r.reseed(seed)
	var seedBytes [32]byte
	binary.LittleEndian.PutUint64(seedBytes[:], seed)
	rng := frand.NewCustom(seedBytes[:], 64, 12)

	var buf []move.Move
	for !pos.IsTerminal() && pos.Ply() < r.MaxPlies {
		if err := ctx.Err(); err != nil {
			return rec, err
		}
		var m move.Move
		if pos.Ply() < r.OpeningPlies {
			buf = pos.LegalMoves(buf[:0])
			if len(buf) == 0 {
				break
			}
			m = buf[rng.Intn(len(buf))]
		} else {
			choice, err := r.players[pos.SideToMove().Index()].ChooseMove(ctx, pos)
			if err != nil {
				return rec, err
			}
			if choice.Cancelled && ctx.Err() != nil {
				return rec, ctx.Err()
			}
			m = choice.Move
		}
		if m.IsNone() {
			return rec, fmt.Errorf("%w at ply %d (%s)", ErrNoMove, pos.Ply(), pos.Notation())
		}
		if err := pos.MakeMove(m); err != nil {
			return rec, err
		}
		rec.Moves = append(rec.Moves, m)
	}
	rec.Plies = pos.Ply()
	rec.Finished = pos.IsTerminal()
	rec.Winner = pos.Winner()
	rec.Final = pos.Notation()
	rec.Duration = time.Since(tstart)
	log.Debug().Int("game", id).Str("uid", rec.UID).Stringer("winner", rec.Winner).
		Int("plies", rec.Plies).Bool("finished", rec.Finished).
		Dur("duration", rec.Duration).Msg("game-over")
	return rec, nil
}
