package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/amirasaad/crossledger/infra/initializer"
	"github.com/amirasaad/crossledger/pkg/app"
	"github.com/amirasaad/crossledger/pkg/config"
	domaincross "github.com/amirasaad/crossledger/pkg/domain/cross"
	domainwallet "github.com/amirasaad/crossledger/pkg/domain/wallet"
	"github.com/amirasaad/crossledger/pkg/repository"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"golang.org/x/term"
)

const usage = `Usage: cli <command> [arguments]
Commands:
  balances [team|collaborator|client]   balance sheet
  wallets                               registered wallets
  crosses [active|suspended|closed]     crosses, newest first
  receipt <cross_id>                    settlement receipt`

var (
	positive = color.New(color.FgGreen)
	negative = color.New(color.FgRed)
	muted    = color.New(color.Faint)
	heading  = color.New(color.Bold)
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		return
	}
	color.NoColor = !term.IsTerminal(int(os.Stdout.Fd()))
	if err := run(context.Background(), os.Stdout, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, negative.Sprint("Error: "), err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, cmd string, args []string) error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	deps, cleanup, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	a := app.New(deps, nil)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	defer w.Flush() //nolint:errcheck

	switch cmd {
	case "balances":
		return balances(ctx, w, a, args)
	case "wallets":
		return wallets(ctx, w, a)
	case "crosses":
		return crosses(ctx, w, a, args)
	case "receipt":
		return receipt(ctx, w, a, args)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func balances(ctx context.Context, w io.Writer, a *app.App, args []string) error {
	var filter repository.WalletFilter
	if len(args) > 0 {
		kind := domainwallet.Kind(strings.ToLower(args[0]))
		if !kind.IsValid() {
			return fmt.Errorf("unknown wallet kind %q", args[0])
		}
		filter.Kind = &kind
	}
	list, err := a.Calculator.Balances(ctx, filter)
	if err != nil {
		return err
	}
	heading.Fprintln(w, "WALLET\tKIND\tBALANCE\tCURRENCY\t") //nolint:errcheck
	for _, b := range list {
		name := b.Wallet
		if !b.Active {
			name = muted.Sprint(name + " (inactive)")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", name, b.Kind, signed(b.Balance.StringAmount()), b.Balance.Currency())
	}
	return nil
}

func wallets(ctx context.Context, w io.Writer, a *app.App) error {
	list, err := a.WalletService.List(ctx, repository.WalletFilter{})
	if err != nil {
		return err
	}
	heading.Fprintln(w, "NAME\tKIND\tCURRENCY\tOWNER\tACTIVE\t") //nolint:errcheck
	for _, wl := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t\n", wl.Name, wl.Kind, wl.Currency, wl.Owner, wl.Active)
	}
	return nil
}

func crosses(ctx context.Context, w io.Writer, a *app.App, args []string) error {
	var filter repository.CrossFilter
	if len(args) > 0 {
		filter.State = domaincross.State(args[0])
		if !filter.State.IsValid() {
			return fmt.Errorf("unknown cross state %q", args[0])
		}
	}
	list, err := a.CrossManager.List(ctx, filter)
	if err != nil {
		return err
	}
	heading.Fprintln(w, "ID\tNAME\tPAIR\tLONG\tSHORT\tSTATE\tOPENED\t") //nolint:errcheck
	for _, c := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			c.ID, c.Name, c.Pair, c.Long.ClientWallet, c.Short.ClientWallet, c.State,
			c.OpenedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func receipt(ctx context.Context, w io.Writer, a *app.App, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: receipt <cross_id>")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid cross id: %w", err)
	}
	r, err := a.CrossManager.Receipt(ctx, id)
	if err != nil {
		return err
	}
	places := r.Currency.Decimals()
	fmt.Fprintf(w, "cross\t%s\t\n", r.CrossID)
	fmt.Fprintf(w, "winner\t%s\t\n", r.Winner)
	fmt.Fprintf(w, "long %s\t%s\t\n", r.LongWallet, signed(r.DeltaLong.StringFixed(places)))
	fmt.Fprintf(w, "short %s\t%s\t\n", r.ShortWallet, signed(r.DeltaShort.StringFixed(places)))
	fmt.Fprintf(w, "fee\t%s %s\t\n", r.Fee.StringFixed(places), r.Currency)
	fmt.Fprintf(w, "closed\t%s by %s\t\n", r.ClosedAt.Format("2006-01-02 15:04"), r.ClosedBy)
	return nil
}

func signed(amount string) string {
	if strings.HasPrefix(amount, "-") {
		return negative.Sprint(amount)
	}
	if strings.Trim(amount, "0.") == "" {
		return amount
	}
	return positive.Sprint(amount)
}
