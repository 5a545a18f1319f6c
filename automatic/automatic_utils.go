package automatic

// Data collection for automatic games: many engine vs engine games at once,
// one CSV line per game.

import (
	"context"
	"encoding/csv"
	"errors"
	"expvar"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/domino14/morris/board"
	"github.com/domino14/morris/config"
	"github.com/domino14/morris/move"
	"github.com/domino14/morris/stats"
	"github.com/domino14/morris/zobrist"
)

var (
	CVCCounter *expvar.Int
	IsPlaying  *expvar.Int

	ErrAlreadyPlaying = errors.New("games are already being played, please wait till complete")

	playing atomic.Bool
)

func init() {
	CVCCounter = expvar.NewInt("cvcCounter")
	IsPlaying = expvar.NewInt("isPlaying")
}

var csvHeader = []string{"gameID", "uid", "seed", "winner", "plies", "finished", "final", "moves"}

func csvRecord(rec GameRecord) []string {
	return []string{
		strconv.Itoa(rec.ID),
		rec.UID,
		strconv.FormatUint(rec.Seed, 10),
		rec.Winner.String(),
		strconv.Itoa(rec.Plies),
		strconv.FormatBool(rec.Finished),
		rec.Final,
		strings.Join(lo.Map(rec.Moves, func(m move.Move, _ int) string {
			return m.String()
		}), " "),
	}
}

// Summary aggregates finished games.
type Summary struct {
	Games     int
	WhiteWins int
	BlackWins int
	Draws     int
	// Unfinished games hit the ply cap; they count as draws too.
	Unfinished int
	Plies      stats.Running
}

func (s *Summary) Add(rec GameRecord) {
	s.Games++
	switch rec.Winner {
	case board.White:
		s.WhiteWins++
	case board.Black:
		s.BlackWins++
	default:
		s.Draws++
	}
	if !rec.Finished {
		s.Unfinished++
	}
	s.Plies.Push(float64(rec.Plies))
}

// WhiteScore is White's match score, a draw counting half, with its 95%
// confidence interval.
func (s *Summary) WhiteScore() (score, low, high float64) {
	if s.Games == 0 {
		return 0, 0, 1
	}
	score = (float64(s.WhiteWins) + 0.5*float64(s.Draws)) / float64(s.Games)
	low, high = stats.ScoreInterval(s.WhiteWins, s.Draws, s.Games, 95)
	return score, low, high
}

func (s *Summary) String() string {
	var sb strings.Builder
	pct := func(n int) float64 {
		if s.Games == 0 {
			return 0
		}
		return 100 * float64(n) / float64(s.Games)
	}
	fmt.Fprintf(&sb, "Games played: %d\n", s.Games)
	fmt.Fprintf(&sb, "White wins: %d (%.3f%%)\n", s.WhiteWins, pct(s.WhiteWins))
	fmt.Fprintf(&sb, "Black wins: %d (%.3f%%)\n", s.BlackWins, pct(s.BlackWins))
	fmt.Fprintf(&sb, "Draws: %d (%.3f%%), %d stopped at the ply cap\n", s.Draws, pct(s.Draws), s.Unfinished)
	score, low, high := s.WhiteScore()
	fmt.Fprintf(&sb, "White score: %.3f (95%% CI %.3f - %.3f)\n", score, low, high)
	plo, phi := s.Plies.Interval(95)
	fmt.Fprintf(&sb, "Plies: mean %.2f stdev %.2f (95%% CI %.2f - %.2f), min %.0f max %.0f\n",
		s.Plies.Mean(), s.Plies.Stdev(), plo, phi, s.Plies.Min(), s.Plies.Max())
	return sb.String()
}

// PlayGames plays numGames games on threads goroutines, all sharing one
// transposition table sized from cfg. Game seeds come from the configured
// seed. Each finished game is written to w as a CSV line, after a header.
func PlayGames(ctx context.Context, cfg *config.Config, numGames, threads int, w io.Writer) (*Summary, error) {
	return PlaySeededGames(ctx, cfg, GameSeeds(cfg.GetUint64(config.ConfigSeed), numGames), threads, w)
}

// PlaySeededGames plays one game per seed. When ctx is done the games in
// progress are abandoned; the summary covers the games finished so far
// and the context error is returned with it.
func PlaySeededGames(ctx context.Context, cfg *config.Config, seeds []uint64, threads int, w io.Writer) (*Summary, error) {
	if !playing.CompareAndSwap(false, true) {
		return nil, ErrAlreadyPlaying
	}
	defer playing.Store(false)
	if threads < 1 {
		threads = 1
	}
	threads = min(threads, max(len(seeds), 1))

	log.Info().Int("games", len(seeds)).Int("threads", threads).Msg("starting-autoplay")
	CVCCounter.Set(0)

	tt := cfg.TranspositionTable()
	z := zobrist.New()

	type job struct {
		id   int
		seed uint64
	}
	jobs := make(chan job)
	results := make(chan GameRecord, threads)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i, seed := range seeds {
			select {
			case jobs <- job{id: i + 1, seed: seed}:
			case <-gctx.Done():
				log.Info().Msg("got stop signal, exiting soon...")
				return nil
			}
		}
		log.Debug().Msg("finished queueing all jobs")
		return nil
	})
	for range threads {
		g.Go(func() error {
			r := NewGameRunner(cfg, tt, z)
			IsPlaying.Add(1)
			defer IsPlaying.Add(-1)
			for j := range jobs {
				rec, err := r.PlayGame(gctx, j.id, j.seed)
				if err != nil {
					return err
				}
				CVCCounter.Add(1)
				results <- rec
			}
			return nil
		})
	}

	var waitErr error
	go func() {
		waitErr = g.Wait()
		close(results)
	}()

	cw := csv.NewWriter(w)
	writeErr := cw.Write(csvHeader)
	summary := &Summary{}
	for rec := range results {
		summary.Add(rec)
		if writeErr == nil {
			writeErr = cw.Write(csvRecord(rec))
		}
	}
	cw.Flush()
	if writeErr == nil {
		writeErr = cw.Error()
	}
	log.Info().Int("games", summary.Games).Msg("all-games-finished")

	if waitErr != nil {
		return summary, waitErr
	}
	if writeErr != nil {
		return summary, writeErr
	}
	return summary, ctx.Err()
}
