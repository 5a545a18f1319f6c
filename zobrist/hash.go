package zobrist

import (
	"lukechampine.com/frand"

	"github.com/domino14/morris/move"
)

const bignum = 1<<63 - 2

const (
	// MaxPiecesInHand bounds the pieces-in-hand tables; twelve covers the
	// largest supported variant.
	MaxPiecesInHand = 12
	// MaxPendingRemovals is the most removals a single move can owe (closing
	// two mills at once).
	MaxPendingRemovals = 2
	// MaxQuietMoves bounds the moves-without-removal draw limit, so the
	// quiet-move count always has a key.
	MaxQuietMoves = 1024

	numColors  = 2
	numActions = 4
	numPhases  = 4
)

// generate a zobrist hash for a mill position.
// https://en.wikipedia.org/wiki/Zobrist_hashing
type Zobrist struct {
	blackToMove uint64

	posTable     [move.NumSquares][numColors]uint64
	inHandTable  [numColors][MaxPiecesInHand + 1]uint64
	actionTable  [numActions]uint64
	removalTable [MaxPendingRemovals + 1]uint64
	phaseTable   [numPhases]uint64
	winnerTable  [numColors + 1]uint64
	quietTable   [MaxQuietMoves + 1]uint64
}

// New returns an initialized Zobrist. Keys are random per process, so
// fingerprints must never be persisted.
func New() *Zobrist {
	z := &Zobrist{}
	z.Initialize()
	return z
}

func (z *Zobrist) Initialize() {
	for i := range z.posTable {
		for c := range z.posTable[i] {
			z.posTable[i][c] = frand.Uint64n(bignum) + 1
		}
	}
	for c := range z.inHandTable {
		for n := range z.inHandTable[c] {
			z.inHandTable[c][n] = frand.Uint64n(bignum) + 1
		}
	}
	for i := range z.actionTable {
		z.actionTable[i] = frand.Uint64n(bignum) + 1
	}
	for i := range z.removalTable {
		z.removalTable[i] = frand.Uint64n(bignum) + 1
	}
	for i := range z.phaseTable {
		z.phaseTable[i] = frand.Uint64n(bignum) + 1
	}
	for i := range z.winnerTable {
		z.winnerTable[i] = frand.Uint64n(bignum) + 1
	}
	for i := range z.quietTable {
		z.quietTable[i] = frand.Uint64n(bignum) + 1
	}
	z.blackToMove = frand.Uint64n(bignum) + 1
}

// Piece is the key for a piece of colorIdx (0 or 1) on sq.
func (z *Zobrist) Piece(sq move.Square, colorIdx int) uint64 {
	return z.posTable[sq][colorIdx]
}

// InHand is the key for colorIdx holding n unplaced pieces.
func (z *Zobrist) InHand(colorIdx, n int) uint64 {
	return z.inHandTable[colorIdx][n]
}

func (z *Zobrist) Action(a move.Action) uint64 {
	return z.actionTable[a]
}

// Removals is the key for n pending removals owed by the side to move.
func (z *Zobrist) Removals(n int) uint64 {
	return z.removalTable[n]
}

func (z *Zobrist) Phase(p int) uint64 {
	return z.phaseTable[p]
}

// Winner distinguishes finished games by outcome; 0 is a draw.
func (z *Zobrist) Winner(outcome int) uint64 {
	return z.winnerTable[outcome]
}

// Quiet is the key for n moves played since the last removal.
func (z *Zobrist) Quiet(n int) uint64 {
	return z.quietTable[n]
}

func (z *Zobrist) BlackToMove() uint64 {
	return z.blackToMove
}
