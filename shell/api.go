package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/domino14/morris/ai/alphabeta"
	"github.com/domino14/morris/ai/player"
	"github.com/domino14/morris/automatic"
	"github.com/domino14/morris/board"
	"github.com/domino14/morris/book"
	"github.com/domino14/morris/config"
	"github.com/domino14/morris/move"
)

const defaultAutoplayGames = 10

type Response struct {
	message string
}

type CmdOptions map[string][]string

func (c CmdOptions) String(key string) string {
	v := c[key]
	if len(v) > 0 {
		return v[0]
	}
	return ""
}

func (c CmdOptions) IntDefault(key string, defaultI int) (int, error) {
	v := c[key]
	if len(v) == 0 {
		return defaultI, nil
	}
	return strconv.Atoi(v[0])
}

func (c CmdOptions) FloatDefault(key string, defaultF float64) (float64, error) {
	v := c[key]
	if len(v) == 0 {
		return defaultF, nil
	}
	return strconv.ParseFloat(v[0], 64)
}

func (c CmdOptions) Bool(key string) bool {
	v := c[key]
	if len(v) == 0 {
		return false
	}
	return strings.ToLower(v[0]) == "true"
}

func msg(message string) *Response {
	return &Response{message: message}
}

func (sc *ShellController) resetPosition() error {
	pos, err := board.NewPosition(sc.config.Rules(), sc.zobrist)
	if err != nil {
		return err
	}
	sc.pos = pos
	return nil
}

func (sc *ShellController) displayPosition() string {
	return sc.pos.String() + "\n" + sc.pos.Notation()
}

func (sc *ShellController) newGame(cmd *shellcmd) (*Response, error) {
	if sc.solving() {
		return nil, errBusy
	}
	if err := sc.resetPosition(); err != nil {
		return nil, err
	}
	return msg(sc.displayPosition()), nil
}

func (sc *ShellController) load(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) == 0 {
		return nil, errors.New("usage: load <position notation>")
	}
	if sc.solving() {
		return nil, errBusy
	}
	pos, err := board.FromNotation(sc.config.Rules(), sc.zobrist, strings.Join(cmd.args, " "))
	if err != nil {
		return nil, err
	}
	sc.pos = pos
	return msg(sc.displayPosition()), nil
}

func (sc *ShellController) show(cmd *shellcmd) (*Response, error) {
	return msg(sc.displayPosition()), nil
}

func (sc *ShellController) play(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) == 0 {
		return nil, errors.New("usage: play <move>, for example play d6, play a1-a4 or play xg7")
	}
	if sc.solving() {
		return nil, errBusy
	}
	for _, arg := range cmd.args {
		m, err := move.Parse(arg)
		if err != nil {
			return nil, err
		}
		if err := sc.pos.MakeMove(m); err != nil {
			return nil, err
		}
	}
	return msg(sc.displayPosition()), nil
}

func (sc *ShellController) undo(cmd *shellcmd) (*Response, error) {
	if sc.solving() {
		return nil, errBusy
	}
	n, err := cmd.options.IntDefault("n", 1)
	if err != nil {
		return nil, err
	}
	for range n {
		if err := sc.pos.UnmakeMove(); err != nil {
			return nil, err
		}
	}
	return msg(sc.displayPosition()), nil
}

func (sc *ShellController) moves(cmd *shellcmd) (*Response, error) {
	moves := sc.pos.LegalMoves(nil)
	if len(moves) == 0 {
		return msg("No legal moves."), nil
	}
	strs := lo.Map(moves, func(m move.Move, _ int) string { return m.String() })
	return msg(fmt.Sprintf("%d legal moves: %s", len(moves), strings.Join(strs, " "))), nil
}

// searchBudget starts from the configured budget. Positional arguments
// are depth then seconds; -depth and -time do the same.
func (sc *ShellController) searchBudget(cmd *shellcmd) (alphabeta.Budget, error) {
	budget := sc.config.Budget()
	var err error
	if len(cmd.args) > 0 {
		if budget.MaxDepth, err = strconv.Atoi(cmd.args[0]); err != nil {
			return budget, err
		}
	}
	if len(cmd.args) > 1 {
		secs, err := strconv.ParseFloat(cmd.args[1], 64)
		if err != nil {
			return budget, err
		}
		budget.TimeLimit = time.Duration(secs * float64(time.Second))
	}
	if budget.MaxDepth, err = cmd.options.IntDefault("depth", budget.MaxDepth); err != nil {
		return budget, err
	}
	secs, err := cmd.options.FloatDefault("time", budget.TimeLimit.Seconds())
	if err != nil {
		return budget, err
	}
	budget.TimeLimit = time.Duration(secs * float64(time.Second))
	return budget, nil
}

func formatChoice(c player.Choice) string {
	var sb strings.Builder
	if c.Move.IsNone() {
		return "No legal moves."
	}
	fmt.Fprintf(&sb, "Best move: %v (value %+d, depth %d, from %v)\n", c.Move, c.Value, c.Depth, c.Source)
	if len(c.PV) > 0 {
		pv := lo.Map(c.PV, func(m move.Move, _ int) string { return m.String() })
		fmt.Fprintf(&sb, "Principal variation: %s\n", strings.Join(pv, " "))
	}
	if c.Source == player.SourceSearch {
		fmt.Fprintf(&sb, "Nodes: %d, evaluated: %d, hash hits: %d\n",
			c.Stats.NodeCount, c.Stats.EvaluatedNodeCount, c.Stats.HashHitCount)
	}
	if c.Cancelled {
		sb.WriteString("The search was stopped early; this is the best move found so far.\n")
	}
	return sb.String()
}

func (sc *ShellController) runSearch(ctx context.Context, chooser player.MoveChooser, pos *board.Position) (string, error) {
	c, err := chooser.ChooseMove(ctx, pos)
	if err != nil {
		return "", err
	}
	sc.mu.Lock()
	sc.lastChoice = &c
	sc.lastPos = pos
	sc.mu.Unlock()
	return formatChoice(c), nil
}

func (sc *ShellController) search(cmd *shellcmd, sync bool) (*Response, error) {
	budget, err := sc.searchBudget(cmd)
	if err != nil {
		return nil, err
	}
	if sc.pos.IsTerminal() {
		return nil, errors.New("the game is over")
	}
	ctx, err := sc.startJob()
	if err != nil {
		return nil, err
	}
	sc.solver.SetOptions(sc.config.SolverOptions())
	var chooser player.MoveChooser = player.NewSearchPlayer(sc.solver, budget)
	if sc.book != nil {
		bp := player.NewBookPlayer(sc.book, chooser)
		bp.SetLearning(cmd.options.Bool("learn"))
		chooser = bp
	}
	// The search works on a copy so the shell can keep showing the game.
	pos := sc.pos.Copy()
	log.Debug().Str("position", pos.Notation()).Int("depth", budget.MaxDepth).
		Dur("time-limit", budget.TimeLimit).Msg("starting-search")

	if sync {
		defer sc.endJob()
		result, err := sc.runSearch(ctx, chooser, pos)
		if err != nil {
			return nil, err
		}
		return msg(result), nil
	}
	go func() {
		defer sc.endJob()
		result, err := sc.runSearch(ctx, chooser, pos)
		if err != nil {
			sc.showError(err)
			return
		}
		sc.showMessage(result)
	}()
	return msg("Searching... use stop to stop early."), nil
}

func (sc *ShellController) stop(cmd *shellcmd) (*Response, error) {
	if err := sc.stopJob(); err != nil {
		return nil, err
	}
	return msg("Stopping..."), nil
}

func (sc *ShellController) autoplay(cmd *shellcmd, sync bool) (*Response, error) {
	numGames := defaultAutoplayGames
	var err error
	if len(cmd.args) > 0 {
		if numGames, err = strconv.Atoi(cmd.args[0]); err != nil {
			return nil, err
		}
	}
	threads, err := cmd.options.IntDefault("threads", sc.config.GetInt(config.ConfigAutoplayThreads))
	if err != nil {
		return nil, err
	}
	outFile := cmd.options.String("out")
	if outFile == "" {
		outFile = "/tmp/morris_autoplay.csv"
	}

	var seeds []uint64
	if seedFile := cmd.options.String("seeds"); seedFile != "" {
		f, err := os.Open(seedFile)
		if err != nil {
			return nil, err
		}
		seeds, err = automatic.LoadSeeds(f)
		f.Close()
		if err != nil {
			return nil, err
		}
	} else {
		seeds = automatic.GameSeeds(sc.config.GetUint64(config.ConfigSeed), numGames)
	}
	if saveFile := cmd.options.String("saveseeds"); saveFile != "" {
		f, err := os.Create(saveFile)
		if err != nil {
			return nil, err
		}
		err = automatic.SaveSeeds(seeds, f)
		f.Close()
		if err != nil {
			return nil, err
		}
	}

	logfile, err := os.Create(outFile)
	if err != nil {
		return nil, err
	}
	ctx, err := sc.startJob()
	if err != nil {
		logfile.Close()
		return nil, err
	}
	run := func() (string, error) {
		defer logfile.Close()
		summary, err := automatic.PlaySeededGames(ctx, sc.config, seeds, threads, logfile)
		if err != nil && !errors.Is(err, context.Canceled) {
			return "", err
		}
		return summary.String() + "Games written to " + outFile, nil
	}

	if sync {
		defer sc.endJob()
		result, err := run()
		if err != nil {
			return nil, err
		}
		return msg(result), nil
	}
	go func() {
		defer sc.endJob()
		result, err := run()
		if err != nil {
			sc.showError(err)
			return
		}
		sc.showMessage(result)
	}()
	return msg(fmt.Sprintf("Playing %d games on %d threads; use stop to stop early.", len(seeds), threads)), nil
}

func (sc *ShellController) openBook(path string) error {
	b, err := book.Open(context.Background(), path)
	if err != nil {
		return err
	}
	if sc.book != nil {
		sc.book.Close()
	}
	sc.book = b
	return nil
}

func (sc *ShellController) bookCmd(cmd *shellcmd) (*Response, error) {
	ctx := context.Background()
	sub := "show"
	if len(cmd.args) > 0 {
		sub = cmd.args[0]
	}
	if sub == "open" {
		if len(cmd.args) < 2 {
			return nil, errors.New("usage: book open <path>")
		}
		if sc.solving() {
			return nil, errBusy
		}
		if err := sc.openBook(cmd.args[1]); err != nil {
			return nil, err
		}
		return msg("Opened book " + cmd.args[1]), nil
	}
	if sc.book == nil {
		return nil, errors.New("no book is open; use book open <path>")
	}
	switch sub {
	case "show":
		e, err := sc.book.Lookup(ctx, sc.pos)
		if errors.Is(err, book.ErrNotFound) {
			return msg("This position is not in the book."), nil
		}
		if err != nil {
			return nil, err
		}
		return msg(fmt.Sprintf("Book move: %v (value %+d, depth %d)", e.Move, e.Value, e.Depth)), nil
	case "add":
		sc.mu.Lock()
		c, pos := sc.lastChoice, sc.lastPos
		sc.mu.Unlock()
		if c == nil || pos.Notation() != sc.pos.Notation() {
			return nil, errors.New("search this position first")
		}
		if c.Cancelled {
			return nil, errors.New("the last search was stopped early")
		}
		if err := sc.book.Put(ctx, sc.pos, book.Entry{Move: c.Move, Value: c.Value, Depth: c.Depth}); err != nil {
			return nil, err
		}
		return msg("Added " + c.Move.String()), nil
	case "size":
		n, err := sc.book.Len(ctx)
		if err != nil {
			return nil, err
		}
		return msg(fmt.Sprintf("%d positions in the book", n)), nil
	case "close":
		if sc.solving() {
			return nil, errBusy
		}
		err := sc.book.Close()
		sc.book = nil
		return msg("Closed the book."), err
	}
	return nil, fmt.Errorf("unknown book command %v", sub)
}

func (sc *ShellController) set(cmd *shellcmd) (*Response, error) {
	keys := sc.config.AllKeys()
	slices.Sort(keys)
	if len(cmd.args) == 0 {
		var sb strings.Builder
		for _, k := range keys {
			fmt.Fprintf(&sb, "%-28s %v\n", k, sc.config.Get(k))
		}
		return msg(sb.String()), nil
	}
	key := cmd.args[0]
	if !lo.Contains(keys, key) {
		return nil, fmt.Errorf("unknown setting %v", key)
	}
	if len(cmd.args) == 1 {
		return msg(fmt.Sprintf("%v = %v", key, sc.config.Get(key))), nil
	}
	if sc.solving() {
		return nil, errBusy
	}
	sc.config.Set(key, cmd.args[1])
	note := ""
	switch key {
	case config.ConfigPiecesPerSide, config.ConfigFlying, config.ConfigMaxMovesWithoutCapture:
		note = " (applies from the next new game)"
	case config.ConfigTTCapacity, config.ConfigTTMemoryFraction:
		note = " (applies after a restart)"
	}
	return msg(fmt.Sprintf("set %v to %v%s", key, cmd.args[1], note)), nil
}

func (sc *ShellController) tt(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) > 0 && cmd.args[0] == "clear" {
		if sc.solving() {
			return nil, errBusy
		}
		sc.solver.ResetTable()
		return msg("Cleared the transposition table."), nil
	}
	st := sc.ttable.Stats()
	return msg(fmt.Sprintf(
		"Capacity: %d, generation: %d\nLookups: %d, hits: %d, stores: %d, rejected: %d, collisions: %d",
		sc.ttable.Capacity(), sc.ttable.Generation(),
		st.Lookups, st.Hits, st.Stores, st.Rejected, st.Collisions)), nil
}

func (sc *ShellController) dot(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) == 0 {
		return nil, errors.New("usage: dot <file>")
	}
	if sc.solving() {
		return nil, errBusy
	}
	f, err := os.Create(cmd.args[0])
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := sc.solver.WriteDot(f); err != nil {
		return nil, err
	}
	return msg("Wrote the search tree to " + cmd.args[0]), nil
}
