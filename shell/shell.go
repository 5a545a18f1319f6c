package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog/log"

	"github.com/domino14/morris/ai/alphabeta"
	"github.com/domino14/morris/ai/player"
	"github.com/domino14/morris/board"
	"github.com/domino14/morris/book"
	"github.com/domino14/morris/config"
	"github.com/domino14/morris/ttable"
	"github.com/domino14/morris/zobrist"
)

var (
	errBusy     = errors.New("a search or autoplay is running; use stop first")
	errNoSearch = errors.New("nothing to stop")
)

type shellcmd struct {
	cmd     string
	args    []string
	options CmdOptions
}

type ShellController struct {
	l      *readline.Instance
	out    io.Writer
	config *config.Config

	gitVersion string

	zobrist *zobrist.Zobrist
	ttable  *ttable.TranspositionTable
	solver  *alphabeta.Solver
	pos     *board.Position
	book    *book.Book

	// lastChoice is the result of the last finished search, for book add.
	lastChoice *player.Choice
	lastPos    *board.Position

	mu     sync.Mutex
	busy   bool
	cancel context.CancelFunc
	// wg tracks the background search or autoplay.
	wg sync.WaitGroup
}

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func NewShellController(cfg *config.Config, gitVersion string) *ShellController {
	sc := &ShellController{
		config:     cfg,
		out:        os.Stdout,
		gitVersion: gitVersion,
		zobrist:    zobrist.New(),
		ttable:     cfg.TranspositionTable(),
	}
	sc.solver = alphabeta.NewSolver(sc.ttable, cfg.SolverOptions())
	if path := cfg.GetString(config.ConfigBookPath); path != "" {
		if err := sc.openBook(path); err != nil {
			log.Err(err).Str("path", path).Msg("could-not-open-book")
		}
	}
	if err := sc.resetPosition(); err != nil {
		log.Err(err).Msg("bad-rules-in-config")
	}
	return sc
}

func (sc *ShellController) initReadline() error {
	l, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[31mmorris>\033[0m ",
		HistoryFile:     "/tmp/morris_readline.tmp",
		AutoComplete:    NewShellCompleter(sc),
		EOFPrompt:       "exit",
		InterruptPrompt: "^C",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return err
	}
	sc.l = l
	sc.out = l.Stdout()
	return nil
}

func (sc *ShellController) showMessage(msg string) {
	io.WriteString(sc.out, msg)
	if !strings.HasSuffix(msg, "\n") {
		io.WriteString(sc.out, "\n")
	}
}

func (sc *ShellController) showError(err error) {
	sc.showMessage("Error: " + err.Error())
}

// startJob marks the controller busy and returns the context for the job.
func (sc *ShellController) startJob() (context.Context, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.busy {
		return nil, errBusy
	}
	ctx, cancel := context.WithCancel(context.Background())
	sc.busy = true
	sc.cancel = cancel
	sc.wg.Add(1)
	return ctx, nil
}

func (sc *ShellController) endJob() {
	sc.mu.Lock()
	sc.cancel()
	sc.busy = false
	sc.cancel = nil
	sc.mu.Unlock()
	sc.wg.Done()
}

func (sc *ShellController) solving() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.busy
}

func (sc *ShellController) stopJob() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if !sc.busy {
		return errNoSearch
	}
	sc.cancel()
	return nil
}

func extractFields(line string) (*shellcmd, error) {
	fields, err := shellquote.Split(line)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, errors.New("no command")
	}
	cmd := &shellcmd{cmd: fields[0], options: CmdOptions{}}
	for i := 1; i < len(fields); i++ {
		f := fields[i]
		// A leading dash followed by a letter is an option; -3 is a number.
		if len(f) > 1 && f[0] == '-' && !strings.ContainsAny(f[1:2], "0123456789") {
			if i+1 >= len(fields) {
				return nil, fmt.Errorf("option %v needs a value", f)
			}
			key := f[1:]
			cmd.options[key] = append(cmd.options[key], fields[i+1])
			i++
			continue
		}
		cmd.args = append(cmd.args, f)
	}
	return cmd, nil
}

func (sc *ShellController) standardModeSwitch(line string, sig chan os.Signal) (*Response, error) {
	cmd, err := extractFields(line)
	if err != nil {
		return nil, err
	}
	switch cmd.cmd {
	case "exit":
		sig <- syscall.SIGINT
		return msg("Goodbye."), nil
	case "help":
		return sc.help(cmd)
	case "new":
		return sc.newGame(cmd)
	case "load":
		return sc.load(cmd)
	case "show":
		return sc.show(cmd)
	case "play", "p":
		return sc.play(cmd)
	case "undo":
		return sc.undo(cmd)
	case "moves":
		return sc.moves(cmd)
	case "go":
		return sc.search(cmd, false)
	case "gosync":
		return sc.search(cmd, true)
	case "stop":
		return sc.stop(cmd)
	case "autoplay":
		return sc.autoplay(cmd, false)
	case "autoplaysync":
		return sc.autoplay(cmd, true)
	case "book":
		return sc.bookCmd(cmd)
	case "set":
		return sc.set(cmd)
	case "tt":
		return sc.tt(cmd)
	case "dot":
		return sc.dot(cmd)
	default:
		log.Info().Msgf("command %v not found", cmd.cmd)
		return nil, errors.New("command not found; try help")
	}
}

// Execute runs the semicolon-separated commands in line, waiting for each
// to finish. Used for scripting the shell from the command line.
func (sc *ShellController) Execute(sig chan os.Signal, line string) {
	for _, c := range strings.Split(line, ";") {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		// Background commands have synchronous twins.
		switch {
		case c == "go" || strings.HasPrefix(c, "go "):
			c = "gosync" + strings.TrimPrefix(c, "go")
		case c == "autoplay" || strings.HasPrefix(c, "autoplay "):
			c = "autoplaysync" + strings.TrimPrefix(c, "autoplay")
		}
		resp, err := sc.standardModeSwitch(c, sig)
		if err != nil {
			sc.showError(err)
			return
		}
		if resp != nil && resp.message != "" {
			sc.showMessage(resp.message)
		}
		if c == "exit" {
			return
		}
	}
}

func (sc *ShellController) Loop(sig chan os.Signal) {
	if err := sc.initReadline(); err != nil {
		log.Err(err).Msg("could-not-start-readline")
		sig <- syscall.SIGINT
		return
	}
	defer sc.l.Close()

	for {
		line, err := sc.l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				sig <- syscall.SIGINT
				break
			} else {
				continue
			}
		} else if err == io.EOF {
			sig <- syscall.SIGINT
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		resp, err := sc.standardModeSwitch(line, sig)
		if err != nil {
			sc.showError(err)
			continue
		}
		if resp != nil && resp.message != "" {
			sc.showMessage(resp.message)
		}
		if line == "exit" {
			break
		}
	}
	log.Debug().Msgf("Exiting readline loop...")
}

// Cleanup stops any background job and closes the book.
func (sc *ShellController) Cleanup() {
	if sc.solving() {
		sc.stopJob()
	}
	sc.wg.Wait()
	if sc.book != nil {
		if err := sc.book.Close(); err != nil {
			log.Err(err).Msg("closing-book")
		}
	}
}
