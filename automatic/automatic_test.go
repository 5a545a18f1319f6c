package automatic

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/domino14/morris/ai/player"
	"github.com/domino14/morris/board"
	"github.com/domino14/morris/config"
	"github.com/domino14/morris/stats"
	"github.com/domino14/morris/zobrist"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	os.Exit(m.Run())
}

// quickConfig plays small, shallow games.
func quickConfig(t *testing.T) *config.Config {
	cfg := &config.Config{}
	err := cfg.Load([]string{
		"--search-depth=2",
		"--tt-capacity=65536",
		"--pieces-per-side=5",
		"--max-moves-without-capture=20",
		"--seed=99",
	})
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

// replay checks that a record's moves are legal and lead to its final
// position.
func replay(t *testing.T, cfg *config.Config, rec GameRecord) {
	is := is.New(t)
	pos, err := board.NewPosition(cfg.Rules(), zobrist.New())
	is.NoErr(err)
	for _, m := range rec.Moves {
		is.NoErr(pos.MakeMove(m))
	}
	is.Equal(pos.Notation(), rec.Final)
	is.Equal(pos.Winner(), rec.Winner)
	is.Equal(pos.IsTerminal(), rec.Finished)
}

func TestPlayGame(t *testing.T) {
	is := is.New(t)
	cfg := quickConfig(t)
	r := NewGameRunner(cfg, cfg.TranspositionTable(), zobrist.New())

	rec, err := r.PlayGame(context.Background(), 1, 12345)
	is.NoErr(err)
	is.Equal(rec.ID, 1)
	is.Equal(rec.Seed, uint64(12345))
	is.Equal(rec.Plies, len(rec.Moves))
	is.True(rec.Plies > 0)
	is.True(rec.Plies <= DefaultMaxPlies)
	replay(t, cfg, rec)
}

func TestPlyCap(t *testing.T) {
	is := is.New(t)
	cfg := quickConfig(t)
	r := NewGameRunner(cfg, cfg.TranspositionTable(), zobrist.New())
	r.MaxPlies = 4

	rec, err := r.PlayGame(context.Background(), 1, 7)
	is.NoErr(err)
	is.Equal(rec.Plies, 4)
	is.True(!rec.Finished)
	is.Equal(rec.Winner, board.NoColor)
	replay(t, cfg, rec)
}

func TestRandomPlayers(t *testing.T) {
	is := is.New(t)
	cfg := quickConfig(t)
	r := NewGameRunner(cfg, nil, zobrist.New())
	r.SetPlayer(board.White, &player.RandomPlayer{})
	r.SetPlayer(board.Black, &player.RandomPlayer{})

	for i := range 10 {
		rec, err := r.PlayGame(context.Background(), i, uint64(i))
		is.NoErr(err)
		replay(t, cfg, rec)
	}
}

func TestCancelledGame(t *testing.T) {
	is := is.New(t)
	cfg := quickConfig(t)
	r := NewGameRunner(cfg, nil, zobrist.New())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.PlayGame(ctx, 1, 1)
	is.Equal(err, context.Canceled)
}

func TestSameSeedSameGame(t *testing.T) {
	is := is.New(t)
	cfg := quickConfig(t)
	ctx := context.Background()
	// Without a table nothing carries over between games.
	r := NewGameRunner(cfg, nil, zobrist.New())

	rec1, err := r.PlayGame(ctx, 1, 42)
	is.NoErr(err)
	rec2, err := r.PlayGame(ctx, 2, 42)
	is.NoErr(err)
	is.Equal(rec1.Moves, rec2.Moves)
	is.Equal(rec1.Final, rec2.Final)

	rec3, err := r.PlayGame(ctx, 3, 43)
	is.NoErr(err)
	replay(t, cfg, rec3)
}

func TestPlayGamesLog(t *testing.T) {
	is := is.New(t)
	cfg := quickConfig(t)

	var out bytes.Buffer
	s, err := PlayGames(context.Background(), cfg, 4, 1, &out)
	is.NoErr(err)
	is.Equal(s.Games, 4)
	is.Equal(s.WhiteWins+s.BlackWins+s.Draws, 4)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	is.Equal(len(lines), 5)
	is.Equal(lines[0], strings.Join(csvHeader, ","))

	analyzed, err := AnalyzeLog(&out)
	is.NoErr(err)
	is.Equal(analyzed.Games, s.Games)
	is.Equal(analyzed.WhiteWins, s.WhiteWins)
	is.Equal(analyzed.BlackWins, s.BlackWins)
	is.Equal(analyzed.Draws, s.Draws)
	is.Equal(analyzed.Unfinished, s.Unfinished)
	is.True(stats.FuzzyEqual(analyzed.Plies.Mean(), s.Plies.Mean()))
}

func TestPlayGamesInParallel(t *testing.T) {
	is := is.New(t)
	cfg := quickConfig(t)
	var out bytes.Buffer
	s, err := PlayGames(context.Background(), cfg, 6, 3, &out)
	is.NoErr(err)
	is.Equal(s.Games, 6)
	is.Equal(s.Plies.Count(), 6)
	is.Equal(strings.Count(out.String(), "\n"), 7)
	is.True(strings.Contains(s.String(), "Games played: 6"))

	score, low, high := s.WhiteScore()
	is.True(low <= score && score <= high)
}

func TestPlayGamesStopped(t *testing.T) {
	is := is.New(t)
	cfg := quickConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	s, err := PlayGames(ctx, cfg, 5, 2, &out)
	is.Equal(err, context.Canceled)
	is.Equal(s.Games, 0)
	is.Equal(strings.TrimSpace(out.String()), strings.Join(csvHeader, ","))
}

func TestSeeds(t *testing.T) {
	is := is.New(t)
	seeds := GameSeeds(5, 20)
	is.Equal(seeds, GameSeeds(5, 20))
	is.True(seeds[0] != GameSeeds(6, 20)[0])
	seen := map[uint64]bool{}
	for _, s := range seeds {
		seen[s] = true
	}
	is.Equal(len(seen), 20)

	var buf bytes.Buffer
	is.NoErr(SaveSeeds(seeds, &buf))
	loaded, err := LoadSeeds(&buf)
	is.NoErr(err)
	is.Equal(loaded, seeds)

	_, err = LoadSeeds(strings.NewReader("12\nnope\n"))
	is.True(err != nil)
}
