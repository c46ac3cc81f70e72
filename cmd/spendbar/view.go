package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/spendbar/spendbar/internal/config"
	"github.com/spendbar/spendbar/internal/core"
	"github.com/spendbar/spendbar/internal/orchestrator"
)

// Catppuccin Mocha subset.
var (
	colorText    = lipgloss.Color("#CDD6F4")
	colorSubtext = lipgloss.Color("#A6ADC8")
	colorDim     = lipgloss.Color("#585B70")
	colorAccent  = lipgloss.Color("#CBA6F7")
	colorGreen   = lipgloss.Color("#A6E3A1")
	colorYellow  = lipgloss.Color("#F9E2AF")
	colorRed     = lipgloss.Color("#F38BA8")
	colorTeal    = lipgloss.Color("#94E2D5")
	colorPeach   = lipgloss.Color("#FAB387")
)

var (
	titleStyle    = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	providerStyle = lipgloss.NewStyle().Foreground(colorText).Bold(true).Width(12)
	spendStyle    = lipgloss.NewStyle().Foreground(colorTeal).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	subtextStyle  = lipgloss.NewStyle().Foreground(colorSubtext)
	noteStyle     = lipgloss.NewStyle().Foreground(colorPeach).Bold(true)
	helpStyle     = lipgloss.NewStyle().Foreground(colorDim)
)

type snapshotsMsg map[core.Provider]core.SpendingData

type noteMsg string

type clearNoteMsg struct{}

type watchModel struct {
	cfg     config.Config
	orch    *orchestrator.Orchestrator
	ctx     context.Context
	updates <-chan map[core.Provider]core.SpendingData
	notes   <-chan string

	snaps map[core.Provider]core.SpendingData
	note  string
	width int
}

func newWatchModel(
	ctx context.Context,
	cfg config.Config,
	orch *orchestrator.Orchestrator,
	updates <-chan map[core.Provider]core.SpendingData,
	notes <-chan string,
) watchModel {
	return watchModel{
		cfg:     cfg,
		orch:    orch,
		ctx:     ctx,
		updates: updates,
		notes:   notes,
		snaps:   orch.Snapshot(),
	}
}

func (m watchModel) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		snaps, ok := <-m.updates
		if !ok {
			return nil
		}
		return snapshotsMsg(snaps)
	}
}

func (m watchModel) waitForNote() tea.Cmd {
	return func() tea.Msg {
		note, ok := <-m.notes
		if !ok {
			return nil
		}
		return noteMsg(note)
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.waitForUpdate(), m.waitForNote())
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.FocusMsg:
		go m.orch.HandleForeground(m.ctx)
		return m, nil

	case snapshotsMsg:
		m.snaps = msg
		return m, m.waitForUpdate()

	case noteMsg:
		m.note = string(msg)
		return m, tea.Batch(m.waitForNote(), tea.Tick(10*time.Second, func(time.Time) tea.Msg {
			return clearNoteMsg{}
		}))

	case clearNoteMsg:
		m.note = ""
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			go m.orch.RefreshAllProviders(m.ctx)
			return m, nil
		}
	}
	return m, nil
}

func (m watchModel) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("spendbar") + dimStyle.Render("  ·  AI spend this month") + "\n\n")

	shown := 0
	for _, p := range core.AllProviders() {
		if !m.cfg.Enabled(p) {
			continue
		}
		shown++
		snap, ok := m.snaps[p]
		if !ok {
			sb.WriteString(fmt.Sprintf("  %s %s\n",
				providerStyle.Render(p.DisplayName()),
				dimStyle.Render("logged out, run: spendbar login "+string(p))))
			continue
		}
		sb.WriteString("  " + renderProviderLine(p, snap) + "\n")
		if bar := renderUsageBar(snap); bar != "" {
			sb.WriteString("               " + bar + "\n")
		}
	}
	if shown == 0 {
		sb.WriteString(dimStyle.Render("  no providers enabled\n"))
	}

	if m.note != "" {
		sb.WriteString("\n  " + noteStyle.Render(m.note) + "\n")
	}

	sb.WriteString("\n" + helpStyle.Render("  r refresh · q quit") + "\n")
	return sb.String()
}

// renderProviderLine formats one provider row: name, spend, status, age.
func renderProviderLine(p core.Provider, snap core.SpendingData) string {
	spend := dimStyle.Render("—")
	if snap.CurrentSpendingUSD != nil {
		spend = spendStyle.Render(formatMoney(snap.DisplaySpending, snap.DisplayCurrency))
	}

	parts := []string{
		providerStyle.Render(p.DisplayName()),
		fmt.Sprintf("%-14s", spend),
		renderStatus(snap.Status),
	}
	if !snap.LastSuccessfulRefresh.IsZero() {
		parts = append(parts, dimStyle.Render(relativeAge(time.Since(snap.LastSuccessfulRefresh))))
	}
	return strings.Join(parts, " ")
}

func renderStatus(s core.ConnectionStatus) string {
	switch s.Kind {
	case core.StatusConnecting:
		return subtextStyle.Render("◌ connecting")
	case core.StatusSyncing:
		return subtextStyle.Render("◌ syncing")
	case core.StatusConnected:
		return lipgloss.NewStyle().Foreground(colorGreen).Render("● ok")
	case core.StatusStale:
		return lipgloss.NewStyle().Foreground(colorYellow).Render("◐ stale")
	case core.StatusRateLimited:
		return lipgloss.NewStyle().Foreground(colorYellow).Render(
			"◐ rate limited until " + s.RetryAfter.Format("15:04"))
	case core.StatusError:
		return lipgloss.NewStyle().Foreground(colorRed).Render("✗ " + s.Message)
	}
	return dimStyle.Render(string(s.Kind))
}

func renderUsageBar(snap core.SpendingData) string {
	if snap.Usage == nil {
		return ""
	}
	pct := snap.Usage.PercentUsed()
	if pct < 0 {
		return ""
	}
	const width = 20
	filled := int(pct / 100 * width)
	if filled > width {
		filled = width
	}
	barColor := colorGreen
	switch {
	case pct >= 90:
		barColor = colorRed
	case pct >= 75:
		barColor = colorYellow
	}
	bar := lipgloss.NewStyle().Foreground(barColor).Render(strings.Repeat("█", filled))
	track := dimStyle.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s%s %s", bar, track,
		lipgloss.NewStyle().Foreground(barColor).Render(fmt.Sprintf("%3.0f%%", pct)))
}

func formatMoney(amount float64, currency string) string {
	switch currency {
	case "USD":
		return fmt.Sprintf("$%.2f", amount)
	case "EUR":
		return fmt.Sprintf("€%.2f", amount)
	case "GBP":
		return fmt.Sprintf("£%.2f", amount)
	case "JPY":
		return fmt.Sprintf("¥%.0f", amount)
	default:
		return fmt.Sprintf("%.2f %s", amount, currency)
	}
}

func relativeAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// channelNotifier forwards limit notifications into the watch view.
type channelNotifier struct {
	notes chan<- string
}

func (n channelNotifier) WarningLimitReached(p core.Provider, spend, limit float64) {
	n.send(fmt.Sprintf("%s passed the $%.0f warning limit ($%.2f spent)", p.DisplayName(), limit, spend))
}

func (n channelNotifier) UpperLimitReached(p core.Provider, spend, limit float64) {
	n.send(fmt.Sprintf("%s passed the $%.0f upper limit ($%.2f spent)", p.DisplayName(), limit, spend))
}

func (n channelNotifier) send(msg string) {
	select {
	case n.notes <- msg:
	default:
	}
}

func runWatch(cfg config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notes := make(chan string, 8)
	a, err := buildApp(cfg, channelNotifier{notes: notes})
	if err != nil {
		return err
	}
	defer a.close()

	updates := make(chan map[core.Provider]core.SpendingData, 1)
	a.orch.OnUpdate(func(snaps map[core.Provider]core.SpendingData) {
		// Keep only the newest snapshot when the view is busy.
		for {
			select {
			case updates <- snaps:
				return
			default:
				select {
				case <-updates:
				default:
				}
			}
		}
	})

	go runNetProbe(ctx, a.monitor)
	go a.orch.Run(ctx)

	program := tea.NewProgram(
		newWatchModel(ctx, cfg, a.orch, updates, notes),
		tea.WithAltScreen(),
		tea.WithReportFocus(),
	)
	_, err = program.Run()
	return err
}
