package reviewconsole

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"apiview/internal/bootstrap/logging"
	domainreview "apiview/internal/domain/review"
	"apiview/internal/usecase/review"
)

const maxShownTextLines = 24
const maxAuditLines = 8

var errNoService = errors.New("review service is required")

type ConsoleOptions struct {
	Actor           string
	Language        string
	IncludeClosed   bool
	RefreshInterval time.Duration
}

type reviewModel struct {
	ctx             context.Context
	service         *review.Service
	actor           string
	language        string
	includeClosed   bool
	refreshInterval time.Duration

	reviews       []domainreview.Review
	selectedIndex int
	// revisionIndex counts back from the current revision; 0 is the last one.
	revisionIndex int

	text           []review.RevisionFileText
	hasText        bool
	textReviewID   string
	textRevisionID string

	status    string
	auditLogs []string
}

type reviewsLoadedMsg struct {
	items []domainreview.Review
	err   error
}

type revisionTextLoadedMsg struct {
	reviewID   string
	revisionID string
	files      []review.RevisionFileText
	err        error
}

type tickMsg struct{}

type actionDoneMsg struct {
	action     string
	reviewID   string
	revisionID string
	result     string
	err        error
}

func NewReviewModel(ctx context.Context, service *review.Service, options ConsoleOptions) tea.Model {
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &reviewModel{
		ctx:             ctx,
		service:         service,
		actor:           strings.TrimSpace(options.Actor),
		language:        strings.TrimSpace(options.Language),
		includeClosed:   options.IncludeClosed,
		refreshInterval: interval,
		status:          "loading",
	}
}

func (m *reviewModel) Init() tea.Cmd {
	return tea.Batch(m.loadReviewsCmd(), m.tickCmd())
}

func (m *reviewModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadReviewsCmd(), m.tickCmd())
	case reviewsLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		previous, hadSelection := m.selectedReview()
		m.reviews = msg.items
		if len(m.reviews) == 0 {
			m.selectedIndex = 0
			m.revisionIndex = 0
			m.clearText()
			m.status = "no reviews"
			return m, nil
		}
		if hadSelection {
			if idx := indexOfReview(m.reviews, previous.ReviewID); idx >= 0 {
				m.selectedIndex = idx
			}
		}
		m.clampSelection()
		m.status = fmt.Sprintf("refreshed, %d reviews", len(m.reviews))
		return m, m.loadSelectedTextCmd()
	case revisionTextLoadedMsg:
		if !m.isCurrentSelection(msg.reviewID, msg.revisionID) {
			return m, nil
		}
		if msg.err != nil {
			m.clearText()
			m.status = "revision text failed: " + msg.err.Error()
			return m, nil
		}
		m.text = msg.files
		m.hasText = true
		m.textReviewID = msg.reviewID
		m.textRevisionID = msg.revisionID
		return m, nil
	case actionDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
		} else {
			m.status = fmt.Sprintf("%s done: %s", msg.action, msg.result)
		}
		m.appendAuditLog(msg.action, msg.reviewID, msg.revisionID, msg.result, msg.err)
		return m, m.loadReviewsCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadReviewsCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
				m.revisionIndex = 0
				return m, m.loadSelectedTextCmd()
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.reviews)-1 {
				m.selectedIndex++
				m.revisionIndex = 0
				return m, m.loadSelectedTextCmd()
			}
			return m, nil
		case "left", "h":
			selected, ok := m.selectedReview()
			if ok && m.revisionIndex < len(selected.Revisions)-1 {
				m.revisionIndex++
				return m, m.loadSelectedTextCmd()
			}
			return m, nil
		case "right", "l":
			if m.revisionIndex > 0 {
				m.revisionIndex--
				return m, m.loadSelectedTextCmd()
			}
			return m, nil
		case "c":
			m.includeClosed = !m.includeClosed
			m.status = fmt.Sprintf("include closed=%t", m.includeClosed)
			return m, m.loadReviewsCmd()
		case "a":
			return m, m.toggleApprovalCmd()
		case "x":
			return m, m.toggleClosedCmd()
		}
	}
	return m, nil
}

func (m *reviewModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))
	approvedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("APIView Review Console"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"actor=%s language=%s closed=%t refresh=%s",
		firstNonEmpty(m.actor, "-"),
		firstNonEmpty(m.language, "all"),
		m.includeClosed,
		m.refreshInterval,
	)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Reviews"))
	builder.WriteString("\n")
	if len(m.reviews) == 0 {
		builder.WriteString(dimStyle.Render("- no reviews"))
		builder.WriteString("\n\n")
	} else {
		for index, item := range m.reviews {
			line := reviewLine(item)
			if index == m.selectedIndex {
				builder.WriteString(selectedStyle.Render("> " + line))
			} else {
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Revision"))
	builder.WriteString("\n")
	selected, ok := m.selectedReview()
	revision, hasRevision := m.selectedRevision()
	if !ok || !hasRevision {
		builder.WriteString(dimStyle.Render("- no revision"))
		builder.WriteString("\n\n")
	} else {
		builder.WriteString(fmt.Sprintf("Review: %s (%s)\n", selected.ReviewID, selected.Name))
		builder.WriteString(fmt.Sprintf(
			"Revision: %d/%d %s label=%s author=%s\n",
			len(selected.Revisions)-m.revisionIndex,
			len(selected.Revisions),
			revision.RevisionID,
			firstNonEmpty(revision.Label, "-"),
			revision.Author,
		))
		approval := approvalLine(revision)
		if revision.IsApproved() {
			approval = approvedStyle.Render(approval)
		}
		builder.WriteString("Approval: " + approval + "\n")
		builder.WriteString("\n")
		if !m.hasText {
			builder.WriteString(dimStyle.Render("- loading text"))
			builder.WriteString("\n")
		} else {
			for _, line := range clipText(m.text, maxShownTextLines) {
				builder.WriteString(line)
				builder.WriteString("\n")
			}
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Audit Log"))
	builder.WriteString("\n")
	if len(m.auditLogs) == 0 {
		builder.WriteString(dimStyle.Render("- no actions"))
		builder.WriteString("\n\n")
	} else {
		for _, line := range m.auditLogs {
			builder.WriteString("- " + line)
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(dimStyle.Render("Keys: ↑/k ↓/j review  ←/h →/l revision  g refresh  a approve  x close/reopen  c closed  q quit"))
	return builder.String()
}

func (m *reviewModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *reviewModel) loadReviewsCmd() tea.Cmd {
	input := review.ListReviewsInput{
		IncludeClosed: m.includeClosed,
		Language:      m.language,
	}
	return func() tea.Msg {
		items, err := m.service.ListReviews(m.ctx, input)
		if err != nil {
			return reviewsLoadedMsg{err: err}
		}
		return reviewsLoadedMsg{items: items}
	}
}

func (m *reviewModel) loadSelectedTextCmd() tea.Cmd {
	selected, ok := m.selectedReview()
	if !ok {
		return nil
	}
	revision, ok := m.selectedRevision()
	if !ok {
		m.clearText()
		return nil
	}
	if m.hasText && m.textReviewID == selected.ReviewID && m.textRevisionID == revision.RevisionID {
		return nil
	}
	m.clearText()

	reviewID := selected.ReviewID
	revisionID := revision.RevisionID
	return func() tea.Msg {
		files, err := m.service.GetRevisionText(m.ctx, reviewID, revisionID)
		return revisionTextLoadedMsg{
			reviewID:   reviewID,
			revisionID: revisionID,
			files:      files,
			err:        err,
		}
	}
}

func (m *reviewModel) toggleApprovalCmd() tea.Cmd {
	selected, ok := m.selectedReview()
	if !ok {
		m.status = "no review selected"
		return nil
	}
	revision, ok := m.selectedRevision()
	if !ok {
		m.status = "review has no revisions"
		return nil
	}
	if m.actor == "" {
		m.status = "approve needs an actor"
		return nil
	}
	m.status = "toggling approval"

	reviewID := selected.ReviewID
	revisionID := revision.RevisionID
	return func() tea.Msg {
		approved, err := m.service.ToggleApproval(m.ctx, review.ToggleApprovalInput{
			Actor:      m.actor,
			ReviewID:   reviewID,
			RevisionID: revisionID,
		})
		if err != nil {
			return actionDoneMsg{action: "approve", reviewID: reviewID, revisionID: revisionID, err: err}
		}
		result := "approved"
		if !approved {
			result = "approval withdrawn"
		}
		return actionDoneMsg{action: "approve", reviewID: reviewID, revisionID: revisionID, result: result}
	}
}

func (m *reviewModel) toggleClosedCmd() tea.Cmd {
	selected, ok := m.selectedReview()
	if !ok {
		m.status = "no review selected"
		return nil
	}
	if m.actor == "" {
		m.status = "close needs an actor"
		return nil
	}
	m.status = "toggling closed"

	reviewID := selected.ReviewID
	return func() tea.Msg {
		closed, err := m.service.ToggleClosed(m.ctx, review.ToggleClosedInput{
			Actor:    m.actor,
			ReviewID: reviewID,
		})
		if err != nil {
			return actionDoneMsg{action: "close", reviewID: reviewID, err: err}
		}
		result := "closed"
		if !closed {
			result = "reopened"
		}
		return actionDoneMsg{action: "close", reviewID: reviewID, result: result}
	}
}

func (m *reviewModel) selectedReview() (domainreview.Review, bool) {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.reviews) {
		return domainreview.Review{}, false
	}
	return m.reviews[m.selectedIndex], true
}

func (m *reviewModel) selectedRevision() (domainreview.Revision, bool) {
	selected, ok := m.selectedReview()
	if !ok {
		return domainreview.Revision{}, false
	}
	idx := len(selected.Revisions) - 1 - m.revisionIndex
	if idx < 0 || idx >= len(selected.Revisions) {
		return domainreview.Revision{}, false
	}
	return selected.Revisions[idx], true
}

func (m *reviewModel) isCurrentSelection(reviewID string, revisionID string) bool {
	selected, ok := m.selectedReview()
	if !ok || selected.ReviewID != reviewID {
		return false
	}
	revision, ok := m.selectedRevision()
	return ok && revision.RevisionID == revisionID
}

func (m *reviewModel) clampSelection() {
	if m.selectedIndex < 0 {
		m.selectedIndex = 0
	}
	if m.selectedIndex >= len(m.reviews) {
		m.selectedIndex = len(m.reviews) - 1
	}
	selected, _ := m.selectedReview()
	if m.revisionIndex >= len(selected.Revisions) {
		m.revisionIndex = 0
	}
}

func (m *reviewModel) clearText() {
	m.text = nil
	m.hasText = false
	m.textReviewID = ""
	m.textRevisionID = ""
}

func (m *reviewModel) appendAuditLog(action string, reviewID string, revisionID string, result string, opErr error) {
	outcome := strings.TrimSpace(result)
	if opErr != nil {
		outcome = "error: " + opErr.Error()
		if kind := domainreview.Kind(opErr); kind != "" {
			outcome = kind + ": " + opErr.Error()
		}
	}
	if outcome == "" {
		outcome = "ok"
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	line := fmt.Sprintf("%s actor=%s review=%s revision=%s action=%s result=%s",
		timestamp, m.actor, reviewID, firstNonEmpty(revisionID, "-"), action, outcome)
	m.auditLogs = append([]string{line}, m.auditLogs...)
	if len(m.auditLogs) > maxAuditLines {
		m.auditLogs = m.auditLogs[:maxAuditLines]
	}

	logging.Info(m.ctx, "review console action",
		slog.String("actor", m.actor),
		slog.String("review_id", reviewID),
		slog.String("revision_id", revisionID),
		slog.String("action", action),
		slog.String("result", outcome),
	)
}

func reviewLine(item domainreview.Review) string {
	kind := "manual"
	if item.IsAutomatic {
		kind = "auto"
	}
	state := "open"
	if item.IsClosed {
		state = "closed"
	}
	approved := "-"
	if last, ok := item.LastRevision(); ok && last.IsApproved() {
		approved = "approved"
	}
	return fmt.Sprintf(
		"%s [%s/%s] %s %s revisions=%d %s",
		item.ReviewID,
		kind,
		state,
		firstNonEmpty(item.Language(), "-"),
		firstNonEmpty(item.Name, item.PackageName(), "-"),
		len(item.Revisions),
		approved,
	)
}

func approvalLine(revision domainreview.Revision) string {
	if len(revision.Approvers) == 0 {
		return "pending"
	}
	return "approved by " + strings.Join(revision.Approvers, ",")
}

// clipText flattens the files of a revision into at most limit lines.
func clipText(files []review.RevisionFileText, limit int) []string {
	out := make([]string, 0, limit)
	for _, file := range files {
		if len(out) >= limit {
			break
		}
		if len(files) > 1 {
			out = append(out, "# "+file.File.Name)
		}
		for _, line := range file.Lines {
			if len(out) >= limit {
				break
			}
			out = append(out, line)
		}
	}

	total := 0
	for _, file := range files {
		total += len(file.Lines)
		if len(files) > 1 {
			total++
		}
	}
	if total > limit {
		out = append(out, fmt.Sprintf("... %d more lines", total-limit))
	}
	return out
}

func indexOfReview(items []domainreview.Review, reviewID string) int {
	for i, item := range items {
		if item.ReviewID == reviewID {
			return i
		}
	}
	return -1
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		normalized := strings.TrimSpace(value)
		if normalized != "" {
			return normalized
		}
	}
	return ""
}

// Run starts the console on the terminal and blocks until the user quits.
func Run(ctx context.Context, service *review.Service, options ConsoleOptions, programOptions ...tea.ProgramOption) error {
	if service == nil {
		return errNoService
	}
	programOptions = append([]tea.ProgramOption{tea.WithContext(ctx)}, programOptions...)
	_, err := tea.NewProgram(NewReviewModel(ctx, service, options), programOptions...).Run()
	return err
}
