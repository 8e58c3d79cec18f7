// Package main provides the entry point for the monzokit CLI.
// It drives the OAuth login flow, exposes the read API operations from the
// command line, and hosts the terminal dashboard and the local webhook
// receiver.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/monzokit/monzokit/internal/buildinfo"
	"github.com/monzokit/monzokit/internal/cmd"
	"github.com/monzokit/monzokit/internal/config"
	"github.com/monzokit/monzokit/internal/logging"
	"github.com/monzokit/monzokit/internal/util"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = ""
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

// main parses command-line flags, loads configuration, and dispatches to the
// requested command (login, an API query, the dashboard or the webhook
// receiver).
func main() {
	var login bool
	var noBrowser bool
	var callbackPort int
	var whoami bool
	var accounts bool
	var balance string
	var pots bool
	var transactions string
	var summary bool
	var tuiMode bool
	var listen bool
	var version bool
	var configPath string

	flag.BoolVar(&login, "login", false, "Log in to Monzo via the browser and print the access token")
	flag.BoolVar(&noBrowser, "no-browser", false, "Don't open the browser automatically during login")
	flag.IntVar(&callbackPort, "callback-port", 0, "Override the OAuth callback port (default 36453)")
	flag.BoolVar(&whoami, "whoami", false, "Print the identity behind the access token")
	flag.BoolVar(&accounts, "accounts", false, "List accounts")
	flag.StringVar(&balance, "balance", "", "Print the balance of the given account ID")
	flag.BoolVar(&pots, "pots", false, "List pots")
	flag.StringVar(&transactions, "transactions", "", "List the transactions of the given account ID")
	flag.BoolVar(&summary, "summary", false, "Print accounts, balances and pots in one view")
	flag.BoolVar(&tuiMode, "tui", false, "Start the terminal dashboard")
	flag.BoolVar(&listen, "listen", false, "Run the local webhook receiver")
	flag.BoolVar(&version, "version", false, "Print version information and exit")
	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configuration file path (default monzokit.yaml)")

	flag.Parse()

	if version {
		fmt.Printf("monzokit %s, commit %s, built %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		return
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		return
	}

	// Load environment variables from .env if present.
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	configFilePath := configPath
	if configFilePath == "" {
		configFilePath = filepath.Join(wd, "monzokit.yaml")
	}
	cfg, err := config.LoadOrDefault(configFilePath)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		return
	}

	if err = logging.ConfigureLogOutput(cfg); err != nil {
		log.Errorf("failed to configure log output: %v", err)
		return
	}
	util.SetLogLevel(cfg)
	log.Debugf("monzokit %s, commit %s, built %s", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	options := &cmd.LoginOptions{
		NoBrowser:    noBrowser,
		CallbackPort: callbackPort,
	}

	switch {
	case login:
		cmd.DoLogin(cfg, options)
	case whoami:
		cmd.DoWhoAmI(cfg)
	case accounts:
		cmd.DoAccounts(cfg)
	case balance != "":
		cmd.DoBalance(cfg, balance)
	case pots:
		cmd.DoPots(cfg)
	case transactions != "":
		cmd.DoTransactions(cfg, transactions)
	case summary:
		cmd.DoSummary(cfg)
	case tuiMode:
		cmd.DoTUI(cfg)
	case listen:
		cmd.DoListen(cfg, configFilePath)
	default:
		flag.Usage()
	}
}
