package shell

import (
	"slices"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/samber/lo"

	"github.com/domino14/morris/move"
)

// ShellCompleter provides context-aware autocomplete for shell commands
type ShellCompleter struct {
	sc *ShellController
}

func NewShellCompleter(sc *ShellController) *ShellCompleter {
	return &ShellCompleter{sc: sc}
}

// CommandMetadata holds autocomplete information for a command
type CommandMetadata struct {
	Options []string
	Args    []string
}

var commandMetadata = map[string]CommandMetadata{
	"go":       {Options: []string{"-depth", "-time", "-learn"}},
	"autoplay": {Options: []string{"-threads", "-out", "-seeds", "-saveseeds"}},
	"undo":     {Options: []string{"-n"}},
	"book":     {Args: []string{"open", "add", "size", "close"}},
	"tt":       {Args: []string{"clear"}},
	"help":     {Args: []string{"go", "autoplay", "book", "load", "play", "set"}},
}

var commandNames = []string{
	"new", "load", "show", "play", "undo", "moves", "go", "stop", "autoplay",
	"book", "set", "tt", "dot", "help", "exit",
}

var boolValues = []string{"true", "false"}

// Do implements the readline.AutoComplete interface.
func (c *ShellCompleter) Do(line []rune, pos int) ([][]rune, int) {
	text := string(line[:pos])

	fields, err := shellquote.Split(text)
	if err != nil {
		// Unbalanced quotes; fall back to simple space splitting.
		fields = strings.Fields(text)
	}
	endsWithSpace := len(text) > 0 && text[len(text)-1] == ' '

	var prefix string
	var completions []string

	if len(fields) == 0 || (len(fields) == 1 && !endsWithSpace) {
		if len(fields) == 1 {
			prefix = fields[0]
		}
		completions = commandNames
	} else {
		cmdName := fields[0]
		if !endsWithSpace {
			prefix = fields[len(fields)-1]
		}
		var lastCompleteField string
		if endsWithSpace {
			lastCompleteField = fields[len(fields)-1]
		} else if len(fields) > 1 {
			lastCompleteField = fields[len(fields)-2]
		}

		switch {
		case lastCompleteField == "-learn":
			completions = boolValues
		case cmdName == "set" && len(fields) <= 2 && (len(fields) == 1 || !endsWithSpace):
			completions = c.sc.config.AllKeys()
			slices.Sort(completions)
		case cmdName == "play":
			completions = c.legalMoves()
		default:
			meta := commandMetadata[cmdName]
			completions = append(slices.Clone(meta.Args), meta.Options...)
		}
	}

	var out [][]rune
	for _, comp := range completions {
		if strings.HasPrefix(comp, prefix) {
			out = append(out, []rune(comp[len(prefix):]+" "))
		}
	}
	return out, len([]rune(prefix))
}

func (c *ShellCompleter) legalMoves() []string {
	if c.sc.pos == nil || c.sc.solving() {
		return nil
	}
	return lo.Map(c.sc.pos.LegalMoves(nil), func(m move.Move, _ int) string {
		return m.String()
	})
}
