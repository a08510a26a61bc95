// Command bingocard regenerates cards from an issued seed and evaluates
// claims offline, the same way the server arbitrates them.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/KeiJoi/ffxivbingo4all/internal/bingo"
)

type CLI struct {
	Show  ShowCmd  `cmd:"" help:"Print the cards issued under a seed"`
	Check CheckCmd `cmd:"" help:"Evaluate one card against called numbers"`
}

type ShowCmd struct {
	Seed  string `help:"Issued master seed" required:""`
	Count int    `short:"n" help:"Number of cards to print" default:"1"`
}

func (c *ShowCmd) Run(out io.Writer) error {
	if c.Count < 1 {
		return fmt.Errorf("count must be positive, got %d", c.Count)
	}
	for i := range c.Count {
		fmt.Fprintf(out, "card %d (%s)\n", i, bingo.CardSeed(c.Seed, i))
		fmt.Fprint(out, bingo.CardFor(c.Seed, i).String())
		if i < c.Count-1 {
			fmt.Fprintln(out)
		}
	}
	return nil
}

type CheckCmd struct {
	Seed     string `help:"Issued master seed" required:""`
	Index    int    `short:"i" help:"Card index under the seed" default:"0"`
	GameType string `name:"game-type" short:"g" help:"single_line, two_lines, four_corners or blackout" default:"single_line"`
	Called   []int  `short:"c" help:"Called numbers, comma separated"`
}

func (c *CheckCmd) Run(out io.Writer) error {
	if c.Index < 0 {
		return fmt.Errorf("index must not be negative, got %d", c.Index)
	}
	g, err := bingo.ParseGameType(c.GameType)
	if err != nil {
		return err
	}
	for _, n := range c.Called {
		if !bingo.ValidNumber(n) {
			return fmt.Errorf("called number %d out of range", n)
		}
	}

	card := bingo.CardFor(c.Seed, c.Index)
	marks := card.Marks(c.Called)
	fmt.Fprint(out, card.String())
	fmt.Fprintf(out, "lines: %d\n", marks.CompletedLines())
	if bingo.Evaluate(g, marks) {
		fmt.Fprintf(out, "%s: BINGO\n", g)
	} else {
		fmt.Fprintf(out, "%s: no bingo\n", g)
	}
	return nil
}

func newParser(cli *CLI, out io.Writer, opts ...kong.Option) (*kong.Kong, error) {
	opts = append([]kong.Option{
		kong.Name("bingocard"),
		kong.Description("Regenerate bingo cards and check claims"),
		kong.UsageOnError(),
		kong.BindTo(out, (*io.Writer)(nil)),
	}, opts...)
	return kong.New(cli, opts...)
}

func main() {
	var cli CLI
	parser, err := newParser(&cli, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)
	ctx.FatalIfErrorf(ctx.Run())
}
