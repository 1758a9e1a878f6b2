package console

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/hedgebot/internal/strategy"
)

// Console is the interactive command surface. It reads lines from in,
// drives the engine and renders results to out.
type Console struct {
	engine *strategy.Engine
	in     io.Reader
	out    io.Writer

	quit chan struct{}
}

func New(engine *strategy.Engine, in io.Reader, out io.Writer) *Console {
	return &Console{
		engine: engine,
		in:     in,
		out:    out,
		quit:   make(chan struct{}),
	}
}

// Done closes when the user asks to quit
func (c *Console) Done() <-chan struct{} {
	return c.quit
}

// Run processes commands until EOF or quit. Blocks; run in a goroutine.
func (c *Console) Run() {
	fmt.Fprintln(c.out, "Hedge bot console. Type 'help' for commands.")

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, "bot> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !c.dispatch(line) {
			close(c.quit)
			return
		}
	}
}

// dispatch runs one command; returns false when the loop should exit
func (c *Console) dispatch(line string) bool {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "help":
		c.printHelp()
	case "auto":
		c.cmdAuto(args)
	case "status":
		c.cmdStatus()
	case "history":
		c.cmdHistory(args)
	case "set":
		c.cmdSet(args)
	case "quit", "exit":
		fmt.Fprintln(c.out, "Bye 👋")
		return false
	default:
		fmt.Fprintf(c.out, "Unknown command %q. Type 'help'.\n", cmd)
	}
	return true
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `Commands:
  auto on [shares] [sum=0.95] [move=0.15] [windowMin=2]
                       enable auto-trading, optionally retuning it
  auto off             disable auto-trading
  status               show engine state, round and totals
  history [n]          show the last n completed trades (default 10)
  set <param> <value>  tune shares, hedge_sum, move_threshold,
                       window_minutes, drop_window_sec
  help                 this text
  quit                 stop the bot`)
}

func (c *Console) cmdAuto(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(c.out, "Usage: auto on [shares] [sum=] [move=] [windowMin=] | auto off")
		return
	}
	switch strings.ToLower(args[0]) {
	case "on":
		if len(args) > 1 {
			if !c.applyAutoArgs(args[1:]) {
				return
			}
		}
		c.engine.Enable()
		p := c.engine.Params()
		fmt.Fprintf(c.out, "Auto-trading ON | shares=%s sum=%s move=%s windowMin=%g\n",
			p.Shares, p.HedgeSum, p.MoveThreshold, p.WindowMinutes)
	case "off":
		c.engine.Disable()
		fmt.Fprintln(c.out, "Auto-trading OFF")
	default:
		fmt.Fprintln(c.out, "Usage: auto on [shares] [sum=] [move=] [windowMin=] | auto off")
	}
}

// applyAutoArgs parses "auto on <shares> [sum=] [move=] [windowMin=]"
// and reconfigures the engine. Returns false on a bad argument.
func (c *Console) applyAutoArgs(args []string) bool {
	params := c.engine.Params()

	rest := args
	if !strings.Contains(args[0], "=") {
		shares, err := decimal.NewFromString(args[0])
		if err != nil || !shares.IsPositive() {
			fmt.Fprintf(c.out, "Bad share count %q\n", args[0])
			return false
		}
		params.Shares = shares
		rest = args[1:]
	}

	for _, arg := range rest {
		key, value, found := strings.Cut(arg, "=")
		if !found {
			fmt.Fprintf(c.out, "Expected key=value, got %q\n", arg)
			return false
		}
		switch strings.ToLower(key) {
		case "sum":
			v, err := decimal.NewFromString(value)
			if err != nil || v.GreaterThanOrEqual(decimal.NewFromInt(1)) {
				fmt.Fprintf(c.out, "Bad sum %q (must be a number below 1.0)\n", value)
				return false
			}
			params.HedgeSum = v
		case "move":
			v, err := decimal.NewFromString(value)
			if err != nil {
				fmt.Fprintf(c.out, "Bad move %q\n", value)
				return false
			}
			params.MoveThreshold = v
		case "windowmin":
			v, err := strconv.ParseFloat(value, 64)
			if err != nil || v <= 0 {
				fmt.Fprintf(c.out, "Bad windowMin %q\n", value)
				return false
			}
			params.WindowMinutes = v
		default:
			fmt.Fprintf(c.out, "Unknown option %q\n", key)
			return false
		}
	}

	c.engine.Configure(params)
	return true
}

func (c *Console) cmdStatus() {
	s := c.engine.Status()

	enabled := "OFF"
	if s.Enabled {
		enabled = "ON"
	}
	round := s.Round
	if round == "" {
		round = "-"
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Field", "Value")
	table.Append("Auto-trading", enabled)
	table.Append("State", s.State.String())
	table.Append("Round", round)
	table.Append("Seconds left", fmt.Sprintf("%.0f", s.SecondsRemaining))
	table.Append("Trades done", strconv.Itoa(s.TradesCompleted))
	table.Append("Total cost", s.TotalCost.StringFixed(4))
	table.Append("Total profit", s.TotalProfit.StringFixed(4))
	table.Append("ROI %", s.ROIPct.StringFixed(2))
	table.Append("Shares", s.Params.Shares.String())
	table.Append("Hedge sum", s.Params.HedgeSum.String())
	table.Append("Move threshold", s.Params.MoveThreshold.String())
	table.Render()

	for _, p := range s.OpenPositions {
		fmt.Fprintf(c.out, "Open leg %d: %s %s shares @ %s\n",
			p.Leg, p.Outcome, p.Shares.String(), p.Price.StringFixed(4))
	}
}

func (c *Console) cmdHistory(args []string) {
	n := 10
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			fmt.Fprintln(c.out, "Usage: history [n]")
			return
		}
		n = v
	}

	trades := c.engine.RecentTrades(n)
	if len(trades) == 0 {
		fmt.Fprintln(c.out, "No trades yet.")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Time", "Round", "Leg1", "Leg2", "Cost", "Profit")
	for _, t := range trades {
		table.Append(
			t.Timestamp.Format("15:04:05"),
			shortRound(t.RoundID),
			fmt.Sprintf("%s@%s", t.Leg1Outcome, t.Leg1Price.StringFixed(3)),
			fmt.Sprintf("%s@%s", t.Leg2Outcome, t.Leg2Price.StringFixed(3)),
			t.CombinedCost.StringFixed(4),
			t.Profit.StringFixed(4),
		)
	}
	table.Render()
}

func (c *Console) cmdSet(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.out, "Usage: set <param> <value>")
		return
	}
	name := strings.ToLower(args[0])
	params := c.engine.Params()

	switch name {
	case "shares", "hedge_sum", "move_threshold":
		v, err := decimal.NewFromString(args[1])
		if err != nil {
			fmt.Fprintf(c.out, "Bad value %q: %v\n", args[1], err)
			return
		}
		switch name {
		case "shares":
			if !v.IsPositive() {
				fmt.Fprintln(c.out, "shares must be > 0")
				return
			}
			params.Shares = v
		case "hedge_sum":
			if v.GreaterThanOrEqual(decimal.NewFromInt(1)) {
				fmt.Fprintln(c.out, "hedge_sum must be < 1.0")
				return
			}
			params.HedgeSum = v
		case "move_threshold":
			params.MoveThreshold = v
		}
	case "window_minutes", "drop_window_sec":
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil || v <= 0 {
			fmt.Fprintf(c.out, "Bad value %q\n", args[1])
			return
		}
		if name == "window_minutes" {
			params.WindowMinutes = v
		} else {
			params.DropWindowSec = v
		}
	default:
		fmt.Fprintf(c.out, "Unknown parameter %q\n", name)
		return
	}

	c.engine.Configure(params)
	fmt.Fprintf(c.out, "Set %s = %s\n", name, args[1])
}

func shortRound(id string) string {
	if len(id) > 10 {
		return id[:10]
	}
	return id
}
