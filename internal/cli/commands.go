package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"github.com/punchamoorthee/coinwallet/internal/domain"
	"github.com/punchamoorthee/coinwallet/internal/export"
	"github.com/punchamoorthee/coinwallet/internal/service"
)

type verifyCmd struct {
	code string
}

func (*verifyCmd) Name() string { return "verify" }
func (*verifyCmd) Synopsis() string { return "verify with a one-time code and show the account" }
func (*verifyCmd) Usage() string {
	return `wallet verify -code <code>

  Checks the code against the ledger by loading balance and history.
  On success the code is cached for later commands.
`
}

func (c *verifyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.code, "code", "", "The one-time verification code from your authenticator.")
}

func (c *verifyCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	env, w, closer, ok := envOf(ctx, args)
	if !ok {
		return subcommands.ExitFailure
	}
	defer closer()

	view, err := w.Gate.SubmitCredential(ctx, c.code)
	if err != nil {
		fmt.Fprintln(env.Err, explain(err))
		return subcommands.ExitFailure
	}
	printView(env.Out, w.Session, view)
	return subcommands.ExitSuccess
}

type accountCmd struct{}

func (*accountCmd) Name() string { return "account" }
func (*accountCmd) Synopsis() string { return "show balance and history using the cached code" }
func (*accountCmd) Usage() string {
	return `wallet account

  Reloads balance and history with the code cached by the last verify.
`
}

func (*accountCmd) SetFlags(*flag.FlagSet) {}

func (*accountCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	env, w, closer, ok := envOf(ctx, args)
	if !ok {
		return subcommands.ExitFailure
	}
	defer closer()

	view, err := w.Gate.Resume(ctx)
	if err != nil {
		fmt.Fprintln(env.Err, explain(err))
		return subcommands.ExitFailure
	}
	printView(env.Out, w.Session, view)
	return subcommands.ExitSuccess
}

type searchCmd struct{}

func (*searchCmd) Name() string { return "search" }
func (*searchCmd) Synopsis() string { return "find recipients by username" }
func (*searchCmd) Usage() string {
	return `wallet search <query>

  Lists users matching the query. At least three characters are needed.
`
}

func (*searchCmd) SetFlags(*flag.FlagSet) {}

func (*searchCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	env, ok := envFrom(args)
	if !ok {
		return subcommands.ExitFailure
	}
	if f.NArg() != 1 {
		fmt.Fprintln(env.Err, "search takes exactly one query")
		return subcommands.ExitUsageError
	}
	w, closer, ok := env.wallet(ctx)
	if !ok {
		return subcommands.ExitFailure
	}
	defer closer()

	query := f.Arg(0)
	found, err := w.Search.Search(ctx, query)
	if err != nil {
		fmt.Fprintln(env.Err, explain(err))
		return subcommands.ExitFailure
	}
	if len(found) == 0 {
		if len([]rune(query)) < service.MinQueryLength {
			fmt.Fprintf(env.Out, "type at least %d characters\n", service.MinQueryLength)
		} else {
			fmt.Fprintln(env.Out, "no users found")
		}
		return subcommands.ExitSuccess
	}
	for _, c := range found {
		fmt.Fprintln(env.Out, c.Label())
	}
	return subcommands.ExitSuccess
}

type transferCmd struct {
	to          string
	amount      string
	description string
	code        string
	receipt     string
	dir         string
}

func (*transferCmd) Name() string { return "transfer" }
func (*transferCmd) Synopsis() string { return "send coins to another user" }
func (*transferCmd) Usage() string {
	return `wallet transfer -to <username> -amount <n> -description <text> -code <code> [-receipt md|html] [-dir <dir>]

  Sends a single transfer and prints its receipt. With -receipt the
  receipt is also written to <dir>/transfer-receipt.<format>.
`
}

func (c *transferCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.to, "to", "", "Username of the recipient.")
	f.StringVar(&c.amount, "amount", "", "Amount of coins to send.")
	f.StringVar(&c.description, "description", "", "What the transfer is for.")
	f.StringVar(&c.code, "code", "", "A fresh one-time verification code.")
	f.StringVar(&c.receipt, "receipt", "", "Also export the receipt (md, html).")
	f.StringVar(&c.dir, "dir", ".", "Directory the exported receipt is written to.")
}

func (c *transferCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	env, ok := envFrom(args)
	if !ok {
		return subcommands.ExitFailure
	}
	if c.receipt != "" && c.receipt != "md" && c.receipt != "html" {
		fmt.Fprintf(env.Err, "unknown receipt format %q\n", c.receipt)
		return subcommands.ExitUsageError
	}
	w, closer, ok := env.wallet(ctx)
	if !ok {
		return subcommands.ExitFailure
	}
	defer closer()

	flow := w.Transfers.NewFlow()
	defer flow.Close()

	out, err := flow.Submit(ctx, domain.TransferInput{
		ToHandle:    c.to,
		Amount:      c.amount,
		Description: c.description,
		Code:        c.code,
	})
	if err != nil {
		fmt.Fprintln(env.Err, explain(err))
		if out != nil && !out.BalanceStale {
			fmt.Fprintf(env.Out, "Balance: %s %s\n", out.Balance, export.Unit)
		}
		return subcommands.ExitFailure
	}

	env.Out.Write(export.Markdown(out.Receipt, time.Local))
	if out.BalanceStale {
		fmt.Fprintf(env.Out, "\n%s\n", out.Warning)
	} else {
		fmt.Fprintf(env.Out, "\nBalance: %s %s\n", out.Balance, export.Unit)
	}

	if c.receipt == "" {
		return subcommands.ExitSuccess
	}
	body := export.Markdown(out.Receipt, time.Local)
	if c.receipt == "html" {
		if body, err = export.HTML(out.Receipt, time.Local); err != nil {
			fmt.Fprintln(env.Err, err)
			return subcommands.ExitFailure
		}
	}
	path := filepath.Join(c.dir, export.FileName(c.receipt))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		fmt.Fprintf(env.Err, "writing receipt: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(env.Out, "Receipt written to %s\n", path)
	return subcommands.ExitSuccess
}

type logoutCmd struct{}

func (*logoutCmd) Name() string { return "logout" }
func (*logoutCmd) Synopsis() string { return "forget the cached verification code" }
func (*logoutCmd) Usage() string { return "wallet logout\n" }
func (*logoutCmd) SetFlags(*flag.FlagSet) {}

func (*logoutCmd) Execute(ctx context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	env, w, closer, ok := envOf(ctx, args)
	if !ok {
		return subcommands.ExitFailure
	}
	defer closer()

	if err := w.Logout(ctx); err != nil {
		fmt.Fprintln(env.Err, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(env.Out, "logged out")
	return subcommands.ExitSuccess
}

func printView(out io.Writer, s domain.Session, view service.ProtectedView) {
	name := s.DisplayName
	if name == "" {
		name = s.Handle
	}
	fmt.Fprintf(out, "%s\nBalance: %s %s\n\n", name, view.Balance, export.Unit)
	if len(view.Transactions) == 0 {
		fmt.Fprintln(out, "No transactions yet.")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tWITH\tAMOUNT\tDESCRIPTION")
	for _, t := range view.Transactions {
		desc := strings.TrimSpace(t.Description)
		if desc == "" {
			desc = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.OccurredAt.Local().Format("2006-01-02 15:04"), t.Counterpart, t.DisplayAmount(), desc)
	}
	tw.Flush()
}
