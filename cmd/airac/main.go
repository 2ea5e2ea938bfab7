// Command airac prints AIRAC cycles for a date or a year.
//
// Usage:
//
//	airac                         # cycle effective today (UTC)
//	airac -date 2022-05-23 -next 3
//	airac -year 2024 -format yaml
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/zapponejosh/airac-api/internal/airac"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, time.Now()); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "airac: %v\n", err)
		}
		os.Exit(2)
	}
}

type options struct {
	date   string
	year   int
	next   int
	prev   int
	format string
}

func parseFlags(args []string) (options, error) {
	var opts options

	fs := flag.NewFlagSet("airac", flag.ContinueOnError)
	fs.StringVar(&opts.date, "date", "", "date to look up (YYYY-MM-DD, default today UTC)")
	fs.IntVar(&opts.year, "year", 0, "list every cycle starting in this year")
	fs.IntVar(&opts.next, "next", 0, "also list this many following cycles")
	fs.IntVar(&opts.prev, "prev", 0, "also list this many preceding cycles")
	fs.StringVar(&opts.format, "format", "text", "output format: text, json or yaml")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	switch {
	case opts.next < 0 || opts.prev < 0:
		return opts, errors.New("-next and -prev must not be negative")
	case opts.year != 0 && (opts.date != "" || opts.next != 0 || opts.prev != 0):
		return opts, errors.New("-year cannot be combined with -date, -next or -prev")
	}
	switch opts.format {
	case "text", "json", "yaml":
	default:
		return opts, fmt.Errorf("unknown format %q", opts.format)
	}
	return opts, nil
}

func run(args []string, out io.Writer, now time.Time) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	cycles, selected, err := selectCycles(opts, now)
	if err != nil {
		return err
	}

	switch opts.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(airac.Summaries(cycles))
	case "yaml":
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(airac.Summaries(cycles))
	default:
		_, err := fmt.Fprintln(out, renderTable(cycles, selected))
		return err
	}
}

// selectCycles returns the cycles to print and the one to highlight. For a
// year listing nothing is highlighted.
func selectCycles(opts options, now time.Time) ([]airac.Cycle, airac.Cycle, error) {
	if opts.year != 0 {
		return airac.CyclesInYear(opts.year), airac.Cycle{}, nil
	}

	target := airac.CurrentAt(now)
	if opts.date != "" {
		date, err := airac.ParseDate(opts.date)
		if err != nil {
			return nil, airac.Cycle{}, err
		}
		target = airac.FromDate(date)
	}

	cycles := make([]airac.Cycle, 0, opts.prev+1+opts.next)
	for i := -opts.prev; i <= opts.next; i++ {
		cycles = append(cycles, target.Add(i))
	}
	return cycles, target, nil
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	rowStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	boxStyle      = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

func renderTable(cycles []airac.Cycle, selected airac.Cycle) string {
	lines := []string{headerStyle.Render(fmt.Sprintf("%-6s %-10s  %-10s", "AIRAC", "Effective", "Ends"))}

	for _, c := range cycles {
		line := fmt.Sprintf("%-6s %s  %s", c.Ident(), airac.FormatDate(c.Starts()), airac.FormatDate(c.Ends()))
		if !selected.IsZero() && c.Equal(selected) {
			lines = append(lines, selectedStyle.Render(line+" *"))
			continue
		}
		lines = append(lines, rowStyle.Render(line))
	}

	return boxStyle.Render(strings.Join(lines, "\n"))
}
