package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/monzokit/monzokit/internal/misc"
	"github.com/monzokit/monzokit/sdk/monzo"
)

const fetchTimeout = 30 * time.Second

// Model is the root bubbletea model for the dashboard.
type Model struct {
	client *monzo.Client

	spinner  spinner.Model
	viewport viewport.Model

	loading  bool
	err      error
	identity *monzo.WhoAmI
	accounts []monzo.Account
	balances []*monzo.Balance
	pots     []monzo.Pot

	transactions []monzo.Transaction
	txAccountID  string
	loadingTx    bool

	selected int
	status   string

	width  int
	height int
	ready  bool
}

type summaryMsg struct {
	identity *monzo.WhoAmI
	accounts []monzo.Account
	balances []*monzo.Balance
	pots     []monzo.Pot
	err      error
}

type transactionsMsg struct {
	accountID    string
	transactions []monzo.Transaction
	err          error
}

type copiedMsg struct{ err error }

type statusClearMsg struct{}

// NewModel builds the dashboard model around an authenticated client.
func NewModel(client *monzo.Client) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorPrimary)
	return Model{
		client:  client,
		spinner: sp,
		loading: true,
	}
}

// Run starts the dashboard and blocks until the user quits.
func Run(client *monzo.Client) error {
	_, err := tea.NewProgram(NewModel(client), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchSummary)
}

// fetchSummary loads everything the dashboard shows. Identity, accounts
// and pots load concurrently, then one balance per account.
func (m Model) fetchSummary() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	var (
		identity *monzo.WhoAmI
		accounts []monzo.Account
		pots     []monzo.Pot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		identity, err = m.client.WhoAmI(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		accounts, err = m.client.Accounts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		pots, err = m.client.Pots(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return summaryMsg{err: err}
	}

	balances := make([]*monzo.Balance, len(accounts))
	bg, bctx := errgroup.WithContext(ctx)
	for i, account := range accounts {
		bg.Go(func() error {
			balance, err := m.client.Balance(bctx, account.ID)
			if err != nil {
				return err
			}
			balances[i] = balance
			return nil
		})
	}
	if err := bg.Wait(); err != nil {
		return summaryMsg{err: err}
	}
	return summaryMsg{identity: identity, accounts: accounts, balances: balances, pots: pots}
}

// fetchTransactions loads the transaction feed for one account.
func (m Model) fetchTransactions(accountID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		transactions, err := m.client.Transactions(ctx, accountID)
		return transactionsMsg{accountID: accountID, transactions: transactions, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		contentH := m.height - 2
		if contentH < 1 {
			contentH = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, contentH)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = contentH
		}
		m.viewport.SetContent(m.renderContent())
		return m, nil

	case spinner.TickMsg:
		if !m.loading && !m.loadingTx {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.viewport.SetContent(m.renderContent())
		return m, cmd

	case summaryMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.identity = msg.identity
			m.accounts = msg.accounts
			m.balances = msg.balances
			m.pots = msg.pots
			if m.selected >= len(m.accounts) {
				m.selected = 0
			}
			m.transactions = nil
			m.txAccountID = ""
		}
		m.viewport.SetContent(m.renderContent())
		return m, nil

	case transactionsMsg:
		m.loadingTx = false
		if msg.err != nil {
			m.status = "failed to load transactions: " + msg.err.Error()
		} else {
			m.transactions = msg.transactions
			m.txAccountID = msg.accountID
		}
		m.viewport.SetContent(m.renderContent())
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.status = "clipboard unavailable"
		} else {
			m.status = "account ID copied"
		}
		return m, tea.Tick(2*time.Second, func(time.Time) tea.Msg { return statusClearMsg{} })

	case statusClearMsg:
		m.status = ""
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.loading = true
			m.err = nil
			m.viewport.SetContent(m.renderContent())
			return m, tea.Batch(m.spinner.Tick, m.fetchSummary)
		case "up", "k":
			if m.selected > 0 {
				m.selected--
				m.viewport.SetContent(m.renderContent())
			}
			return m, nil
		case "down", "j":
			if m.selected < len(m.accounts)-1 {
				m.selected++
				m.viewport.SetContent(m.renderContent())
			}
			return m, nil
		case "enter":
			if len(m.accounts) == 0 || m.loadingTx {
				return m, nil
			}
			m.loadingTx = true
			m.viewport.SetContent(m.renderContent())
			return m, tea.Batch(m.spinner.Tick, m.fetchTransactions(m.accounts[m.selected].ID))
		case "c":
			return m, m.copySelectedAccountID()
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// copySelectedAccountID puts the selected account's ID on the clipboard.
func (m Model) copySelectedAccountID() tea.Cmd {
	if len(m.accounts) == 0 {
		return nil
	}
	id := m.accounts[m.selected].ID
	return func() tea.Msg {
		return copiedMsg{err: clipboard.WriteAll(id)}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	return m.viewport.View() + "\n" + m.statusBar()
}

func (m Model) statusBar() string {
	help := "↑/↓ select · enter transactions · c copy account id · r refresh · q quit"
	if m.status != "" {
		help = m.status + " · " + help
	}
	width := m.width
	if width < 0 {
		width = 0
	}
	return statusBarStyle.Width(width).Render(helpStyle.Render(help))
}

func (m Model) renderContent() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("monzokit"))
	sb.WriteString("\n")

	if m.loading {
		sb.WriteString(m.spinner.View())
		sb.WriteString(" Loading account data...")
		return sb.String()
	}
	if m.err != nil {
		sb.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		sb.WriteString("\n\n")
		sb.WriteString(helpStyle.Render("press r to retry"))
		return sb.String()
	}

	if m.identity != nil {
		sb.WriteString(fmt.Sprintf("%s %s\n\n",
			labelStyle.Render("User:"),
			valueStyle.Render(m.identity.UserID)))
	}

	sb.WriteString(sectionStyle.Render("Accounts"))
	sb.WriteString("\n")
	if len(m.accounts) == 0 {
		sb.WriteString(helpStyle.Render("no accounts"))
		sb.WriteString("\n")
	}
	for i, account := range m.accounts {
		sb.WriteString(m.renderAccountCard(i, account))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	sb.WriteString(sectionStyle.Render("Pots"))
	sb.WriteString("\n")
	sb.WriteString(m.renderPots())

	if m.loadingTx {
		sb.WriteString("\n")
		sb.WriteString(m.spinner.View())
		sb.WriteString(" Loading transactions...")
		sb.WriteString("\n")
	} else if m.txAccountID != "" {
		sb.WriteString("\n")
		sb.WriteString(sectionStyle.Render("Transactions"))
		sb.WriteString("\n")
		sb.WriteString(m.renderTransactions())
	}
	return sb.String()
}

func (m Model) renderAccountCard(i int, account monzo.Account) string {
	style := cardStyle
	if i == m.selected {
		style = cardSelectedStyle
	}

	description := account.Description
	if description == "" {
		description = account.ID
	}
	header := valueStyle.Bold(true).Render(truncate(description, 40)) +
		"  " + helpStyle.Render(string(account.Type))
	if account.Closed {
		header += "  " + errorStyle.Render("closed")
	}

	balanceLine := helpStyle.Render("balance unavailable")
	if i < len(m.balances) && m.balances[i] != nil {
		b := m.balances[i]
		balanceLine = fmt.Sprintf("%s   spent today %s",
			styleAmount(b.Balance, b.Currency),
			misc.FormatAmount(b.SpendToday, b.Currency))
	}

	return style.Render(header + "\n" + balanceLine)
}

func (m Model) renderPots() string {
	var sb strings.Builder
	open := make([]monzo.Pot, 0, len(m.pots))
	for _, pot := range m.pots {
		if !pot.Deleted {
			open = append(open, pot)
		}
	}
	if len(open) == 0 {
		sb.WriteString(helpStyle.Render("no pots"))
		sb.WriteString("\n")
		return sb.String()
	}

	sb.WriteString(tableHeaderStyle.Render(fmt.Sprintf("  %-24s %12s %9s", "Name", "Balance", "Round up")))
	sb.WriteString("\n")
	for _, pot := range open {
		roundUp := "no"
		if pot.RoundUp {
			roundUp = "yes"
		}
		row := fmt.Sprintf("  %-24s %12s %9s",
			truncate(pot.Name, 24),
			misc.FormatAmount(pot.Balance, pot.Currency),
			roundUp)
		sb.WriteString(tableCellStyle.Render(row))
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderTransactions shows the most recent transactions first. The API
// returns them oldest first.
func (m Model) renderTransactions() string {
	var sb strings.Builder
	if len(m.transactions) == 0 {
		sb.WriteString(helpStyle.Render("no transactions"))
		sb.WriteString("\n")
		return sb.String()
	}

	const maxRows = 15
	sb.WriteString(tableHeaderStyle.Render(fmt.Sprintf("  %-10s %-34s %12s", "Date", "Description", "Amount")))
	sb.WriteString("\n")
	shown := 0
	for i := len(m.transactions) - 1; i >= 0 && shown < maxRows; i-- {
		tx := m.transactions[i]
		row := fmt.Sprintf("  %-10s %-34s %12s",
			tx.Created.Format("2006-01-02"),
			truncate(tx.Description, 34),
			misc.FormatAmount(tx.Amount, tx.Currency))
		sb.WriteString(tableCellStyle.Render(row))
		sb.WriteString("\n")
		shown++
	}
	if len(m.transactions) > maxRows {
		sb.WriteString(helpStyle.Render(fmt.Sprintf("  ... and %d earlier", len(m.transactions)-maxRows)))
		sb.WriteString("\n")
	}
	return sb.String()
}

func styleAmount(minor int64, currency string) string {
	if minor < 0 {
		return balanceNegativeStyle.Render(misc.FormatAmount(minor, currency))
	}
	return balancePositiveStyle.Render(misc.FormatAmount(minor, currency))
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen-3] + "..."
	}
	return s
}
