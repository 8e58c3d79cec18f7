package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/monzokit/monzokit/internal/config"
	"github.com/monzokit/monzokit/internal/misc"
	"github.com/monzokit/monzokit/sdk/monzo"
)

// apiClient builds a client ready for API calls, exiting with guidance when
// no access token is configured.
func apiClient(cfg *config.Config) (*monzo.Client, context.Context, context.CancelFunc) {
	client := newClient(cfg, nil)
	if client.AccessToken() == "" {
		fmt.Println("No access token configured. Run monzokit -login first, then store the token as access-token or MONZO_ACCESS_TOKEN.")
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return client, ctx, stop
}

func fail(err error) {
	fmt.Printf("Request failed: %v\n", err)
	os.Exit(1)
}

// DoWhoAmI prints the identity behind the configured access token.
func DoWhoAmI(cfg *config.Config) {
	client, ctx, stop := apiClient(cfg)
	defer stop()

	identity, err := client.WhoAmI(ctx)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Authenticated: %t\n", identity.Authenticated)
	fmt.Printf("Client ID:     %s\n", identity.ClientID)
	fmt.Printf("User ID:       %s\n", identity.UserID)
}

// DoAccounts lists the accounts visible to the access token.
func DoAccounts(cfg *config.Config) {
	client, ctx, stop := apiClient(cfg)
	defer stop()

	accounts, err := client.Accounts(ctx)
	if err != nil {
		fail(err)
	}
	if len(accounts) == 0 {
		fmt.Println("No accounts.")
		return
	}
	for _, account := range accounts {
		printAccount(account)
	}
}

func printAccount(account monzo.Account) {
	fmt.Printf("%s  %s\n", account.ID, account.Type)
	if account.Description != "" {
		fmt.Printf("  description: %s\n", account.Description)
	}
	if account.AccountNumber != "" {
		fmt.Printf("  account number: %s  sort code: %s\n", account.AccountNumber, account.SortCode)
	}
	if !account.Created.IsZero() {
		fmt.Printf("  created: %s\n", account.Created.Format("2006-01-02"))
	}
	if account.Closed {
		fmt.Println("  closed")
	}
}

// DoBalance prints the balance of one account.
func DoBalance(cfg *config.Config, accountID string) {
	client, ctx, stop := apiClient(cfg)
	defer stop()

	balance, err := client.Balance(ctx, accountID)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Balance:       %s\n", misc.FormatAmount(balance.Balance, balance.Currency))
	fmt.Printf("Total balance: %s\n", misc.FormatAmount(balance.TotalBalance, balance.Currency))
	fmt.Printf("Spent today:   %s\n", misc.FormatAmount(balance.SpendToday, balance.Currency))
}

// DoPots lists the open pots of the authenticated user.
func DoPots(cfg *config.Config) {
	client, ctx, stop := apiClient(cfg)
	defer stop()

	pots, err := client.Pots(ctx)
	if err != nil {
		fail(err)
	}
	open := 0
	for _, pot := range pots {
		if pot.Deleted {
			continue
		}
		open++
		roundUp := ""
		if pot.RoundUp {
			roundUp = "  round-up"
		}
		fmt.Printf("%s  %-24s %12s%s\n", pot.ID, pot.Name, misc.FormatAmount(pot.Balance, pot.Currency), roundUp)
	}
	if open == 0 {
		fmt.Println("No pots.")
	}
}

// DoTransactions prints the transaction feed of one account, oldest first.
func DoTransactions(cfg *config.Config, accountID string) {
	client, ctx, stop := apiClient(cfg)
	defer stop()

	transactions, err := client.Transactions(ctx, accountID)
	if err != nil {
		fail(err)
	}
	if len(transactions) == 0 {
		fmt.Println("No transactions.")
		return
	}
	for _, tx := range transactions {
		settled := " "
		if tx.Settled.IsZero() {
			settled = "*"
		}
		fmt.Printf("%s %s %12s  %s\n", settled, tx.Created.Format("2006-01-02 15:04"), misc.FormatAmount(tx.Amount, tx.Currency), tx.Description)
	}
	fmt.Println()
	fmt.Printf("%d transactions (* = pending)\n", len(transactions))
}

// DoSummary prints identity, accounts with balances and pots in one view.
// Everything independent is fetched concurrently.
func DoSummary(cfg *config.Config) {
	client, ctx, stop := apiClient(cfg)
	defer stop()

	var (
		identity *monzo.WhoAmI
		accounts []monzo.Account
		pots     []monzo.Pot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		identity, err = client.WhoAmI(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		accounts, err = client.Accounts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		pots, err = client.Pots(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		fail(err)
	}

	balances := make([]*monzo.Balance, len(accounts))
	bg, bctx := errgroup.WithContext(ctx)
	for i, account := range accounts {
		bg.Go(func() error {
			balance, err := client.Balance(bctx, account.ID)
			if err != nil {
				return err
			}
			balances[i] = balance
			return nil
		})
	}
	if err := bg.Wait(); err != nil {
		fail(err)
	}

	fmt.Printf("User: %s\n\n", identity.UserID)
	fmt.Println("Accounts")
	for i, account := range accounts {
		label := account.Description
		if label == "" {
			label = account.ID
		}
		fmt.Printf("  %-32s %12s  spent today %s\n", label,
			misc.FormatAmount(balances[i].Balance, balances[i].Currency),
			misc.FormatAmount(balances[i].SpendToday, balances[i].Currency))
	}
	fmt.Println()
	fmt.Println("Pots")
	open := 0
	for _, pot := range pots {
		if pot.Deleted {
			continue
		}
		open++
		fmt.Printf("  %-32s %12s\n", pot.Name, misc.FormatAmount(pot.Balance, pot.Currency))
	}
	if open == 0 {
		fmt.Println("  none")
	}
}
