// Package player picks moves for one side of a game, by searching, from a
// book of known positions, or at random.
package player

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"lukechampine.com/frand"

	"github.com/domino14/morris/ai/alphabeta"
	"github.com/domino14/morris/board"
	"github.com/domino14/morris/book"
	"github.com/domino14/morris/move"
)

type Source string

const (
	SourceSearch Source = "search"
	SourceBook   Source = "book"
	SourceRandom Source = "random"
)

// Choice is a chosen move and what backs it.
type Choice struct {
	Move      move.Move
	Value     int
	Depth     int
	Cancelled bool
	PV        []move.Move
	Stats     alphabeta.Stats
	Source    Source
}

// MoveChooser picks a move for the side to move. pos is left unchanged.
// A position without legal moves gives move.None.
type MoveChooser interface {
	ChooseMove(ctx context.Context, pos *board.Position) (Choice, error)
}

// SearchPlayer searches every position with a fixed budget.
type SearchPlayer struct {
	solver *alphabeta.Solver
	budget alphabeta.Budget
}

func NewSearchPlayer(solver *alphabeta.Solver, budget alphabeta.Budget) *SearchPlayer {
	return &SearchPlayer{solver: solver, budget: budget}
}

func (p *SearchPlayer) Solver() *alphabeta.Solver {
	return p.solver
}

func (p *SearchPlayer) Budget() alphabeta.Budget {
	return p.budget
}

func (p *SearchPlayer) SetBudget(b alphabeta.Budget) {
	p.budget = b
}

func (p *SearchPlayer) ChooseMove(ctx context.Context, pos *board.Position) (Choice, error) {
	res, err := p.solver.FindBestMove(ctx, pos, p.budget)
	if err != nil {
		return Choice{}, err
	}
	return Choice{
		Move:      res.Move,
		Value:     res.Value,
		Depth:     res.Depth,
		Cancelled: res.Cancelled,
		PV:        res.PV,
		Stats:     res.Stats,
		Source:    SourceSearch,
	}, nil
}

// BookPlayer plays book moves and asks its fallback otherwise. With
// learning on, fallback results searched to at least MinLearnDepth are
// added to the book.
type BookPlayer struct {
	book          *book.Book
	fallback      MoveChooser
	learn         bool
	MinLearnDepth int
}

func NewBookPlayer(b *book.Book, fallback MoveChooser) *BookPlayer {
	return &BookPlayer{book: b, fallback: fallback, MinLearnDepth: 1}
}

func (p *BookPlayer) SetLearning(l bool) {
	p.learn = l
}

func (p *BookPlayer) ChooseMove(ctx context.Context, pos *board.Position) (Choice, error) {
	e, err := p.book.Lookup(ctx, pos)
	switch {
	case err == nil && lo.Contains(pos.LegalMoves(nil), e.Move):
		return Choice{Move: e.Move, Value: e.Value, Depth: e.Depth, PV: []move.Move{e.Move}, Source: SourceBook}, nil
	case err == nil:
		log.Warn().Str("position", pos.Notation()).Str("move", e.Move.String()).
			Msg("illegal-book-move")
	case !errors.Is(err, book.ErrNotFound):
		log.Err(err).Msg("book-lookup-failed")
	}

	c, err := p.fallback.ChooseMove(ctx, pos)
	if err != nil {
		return c, err
	}
	if p.learn && !c.Cancelled && !c.Move.IsNone() && c.Source == SourceSearch && c.Depth >= p.MinLearnDepth {
		if err := p.book.Put(ctx, pos, book.Entry{Move: c.Move, Value: c.Value, Depth: c.Depth}); err != nil {
			log.Err(err).Msg("book-put-failed")
		}
	}
	return c, nil
}

// RandomPlayer plays a uniformly random legal move. It is the baseline
// opponent for self-play.
type RandomPlayer struct {
	buf []move.Move
}

func (p *RandomPlayer) ChooseMove(ctx context.Context, pos *board.Position) (Choice, error) {
	p.buf = pos.LegalMoves(p.buf)
	if len(p.buf) == 0 {
		return Choice{Move: move.None, Source: SourceRandom}, nil
	}
	return Choice{Move: p.buf[frand.Intn(len(p.buf))], Source: SourceRandom}, nil
}
