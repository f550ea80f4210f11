package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/cloudanchors/internal/anchor"
	"github.com/jask/cloudanchors/internal/config"
	"github.com/jask/cloudanchors/internal/prefs"
	"github.com/jask/cloudanchors/internal/provider"
	"github.com/jask/cloudanchors/internal/service"
	"github.com/jask/cloudanchors/internal/shortcode"
)

// App is the AR scene stand-in. It owns the lifecycle: every lifecycle call
// happens inside Update, and storage work comes back as completionMsg.
type App struct {
	ctx      context.Context
	cfg      config.Config
	services Services
	logger   *slog.Logger
	keys     keyMap
	help     help.Model

	cursorCol int
	cursorRow int
	glyph     string
	status    string
	modal     modalState
	modalErr  string
	// inputBuffer holds the code typed into the resolve dialog.
	inputBuffer string
	recent      []shortcode.Code
	recentIdx   int
	events      []anchor.Event
	frames      uint64
}

type Services struct {
	Anchors     *service.AnchorService
	Maintenance *service.MaintenanceService
	// History fills the recent-code list when no prefs file exists yet.
	// It may be nil, e.g. for the http store.
	History CodeHistory
}

// CodeHistory lists the newest bound codes.
type CodeHistory interface {
	Recent(ctx context.Context, limit int) ([]shortcode.Record, error)
}

type modalState string

const (
	modalNone         modalState = ""
	modalResolve      modalState = "resolve"
	modalConfirmReset modalState = "confirmReset"
	modalError        modalState = "error"
)

// New builds the app. The lifecycle inside services should report its events
// to the returned app's Notify.
func New(ctx context.Context, cfg config.Config, services Services, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a := &App{
		ctx:       ctx,
		cfg:       cfg,
		services:  services,
		logger:    logger,
		keys:      defaultKeyMap,
		help:      help.New(),
		cursorCol: gridCols / 2,
		cursorRow: gridRows / 2,
		status:    "Tap a floor tile to host an anchor, or press r to resolve one.",
	}
	glyph, err := loadModel(cfg.UI.Model)
	if err != nil {
		a.showError(err)
	}
	a.glyph = glyph
	return a
}

// Notify queues lifecycle events. They are turned into status text and
// commands once the current Update step returns from the lifecycle.
func (a *App) Notify(e anchor.Event) {
	a.events = append(a.events, e)
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.frame(), a.loadRecent())
}

func (a *App) frame() tea.Cmd {
	return tea.Tick(a.cfg.UI.FrameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (a *App) loadRecent() tea.Cmd {
	return func() tea.Msg {
		codes, err := prefs.LoadRecentCodes()
		if err != nil {
			return errMsg{fmt.Errorf("load recent codes: %w", err)}
		}
		if len(codes) == 0 && a.services.History != nil {
			recs, err := a.services.History.Recent(a.ctx, prefs.MaxRecent)
			if err != nil {
				return errMsg{fmt.Errorf("load recent codes: %w", err)}
			}
			for _, r := range recs {
				codes = append(codes, r.Code)
			}
		}
		return recentMsg(codes)
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.KeyMsg:
		if a.modal != modalNone {
			return a.handleModalKey(m)
		}
		return a.handleSceneKey(m)
	case frameMsg:
		a.frames++
		cmds := []tea.Cmd{a.frame()}
		if task := a.services.Anchors.Lifecycle.Poll(); task != nil {
			cmds = append(cmds, a.runTask(task))
		}
		cmds = append(cmds, a.drainEvents()...)
		return a, tea.Batch(cmds...)
	case completionMsg:
		a.services.Anchors.Lifecycle.Complete(anchor.Completion(m))
		return a, tea.Batch(a.drainEvents()...)
	case lookupMsg:
		if _, err := a.services.Anchors.Resolve(m.anchorID); err != nil {
			a.status = "error: " + err.Error()
			return a, nil
		}
		return a, tea.Batch(a.drainEvents()...)
	case tea.WindowSizeMsg:
		a.help.Width = m.Width
	case recentMsg:
		a.recent = []shortcode.Code(m)
		a.recentIdx = 0
	case resetDoneMsg:
		a.recent = nil
		a.status = "Stored anchors and short codes wiped."
	case statusMsg:
		a.status = string(m)
	case errMsg:
		a.status = "error: " + m.Error()
	}
	return a, nil
}

func (a *App) View() string {
	body := a.renderScene()
	if a.modal != modalNone {
		body += "\n\n" + a.renderModal()
	}
	return body
}

func (a *App) handleSceneKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(m, a.keys.Quit):
		return a, tea.Quit
	case key.Matches(m, a.keys.Up):
		a.moveCursor(0, -1)
	case key.Matches(m, a.keys.Down):
		a.moveCursor(0, 1)
	case key.Matches(m, a.keys.Left):
		a.moveCursor(-1, 0)
	case key.Matches(m, a.keys.Right):
		a.moveCursor(1, 0)
	case key.Matches(m, a.keys.Host):
		return a, a.tap()
	case key.Matches(m, a.keys.Resolve):
		if err := a.services.Anchors.CheckResolvable(); err != nil {
			a.status = "Please clear Anchor first"
			return a, nil
		}
		a.modal = modalResolve
		a.inputBuffer = ""
		a.recentIdx = 0
	case key.Matches(m, a.keys.Clear):
		a.services.Anchors.Clear()
		a.status = "Anchor cleared."
		return a, tea.Batch(a.drainEvents()...)
	case key.Matches(m, a.keys.Reset):
		a.modal = modalConfirmReset
	}
	return a, nil
}

func (a *App) handleModalKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.modal {
	case modalError:
		// any key dismisses
		a.modal = modalNone
		a.modalErr = ""
	case modalConfirmReset:
		switch m.String() {
		case "y":
			a.modal = modalNone
			a.services.Anchors.Clear()
			return a, tea.Batch(append(a.drainEvents(), a.resetCmd())...)
		case "n", "esc":
			a.modal = modalNone
		}
	case modalResolve:
		switch m.Type {
		case tea.KeyEsc:
			a.modal = modalNone
			a.inputBuffer = ""
			a.status = "Resolve cancelled."
		case tea.KeyEnter:
			text := strings.TrimSpace(a.inputBuffer)
			a.modal = modalNone
			a.inputBuffer = ""
			return a, a.lookupCmd(text)
		case tea.KeyBackspace:
			if len(a.inputBuffer) > 0 {
				a.inputBuffer = a.inputBuffer[:len(a.inputBuffer)-1]
			}
		case tea.KeyTab:
			if len(a.recent) > 0 {
				a.inputBuffer = a.recent[a.recentIdx%len(a.recent)].String()
				a.recentIdx++
			}
		case tea.KeyRunes:
			a.inputBuffer += string(m.Runes)
		}
	}
	return a, nil
}

// tap hosts an anchor at the cursor.
func (a *App) tap() tea.Cmd {
	hit := hitAt(a.cursorCol, a.cursorRow)
	if _, err := a.services.Anchors.Host(hit); err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedPlane):
			a.status = "Anchors can only be placed on the floor."
		case errors.Is(err, anchor.ErrAlreadyInProgress):
			a.status = "Please clear Anchor first"
		default:
			a.status = "error: " + err.Error()
		}
		return nil
	}
	return tea.Batch(a.drainEvents()...)
}

func (a *App) moveCursor(dc, dr int) {
	a.cursorCol = clamp(a.cursorCol+dc, 0, gridCols-1)
	a.cursorRow = clamp(a.cursorRow+dr, 0, gridRows-1)
}

// drainEvents turns queued lifecycle events into status text. A hosted code
// is remembered for the resolve dialog.
func (a *App) drainEvents() []tea.Cmd {
	var cmds []tea.Cmd
	for _, e := range a.events {
		if msg := e.Message(); msg != "" {
			a.status = msg
		}
		if e.Kind == anchor.HostingFailed && shortcode.Retryable(e.Err) && a.services.Anchors.Lifecycle.State() == anchor.StateHosting {
			a.status += " (retrying)"
		}
		if e.Kind == anchor.HostingSucceeded {
			cmds = append(cmds, rememberCmd(e.Code))
		}
	}
	a.events = a.events[:0]
	return cmds
}

func (a *App) showError(err error) {
	a.logger.Error("tui", "err", err)
	a.modal = modalError
	a.modalErr = err.Error()
}

// commands
func (a *App) runTask(task anchor.Task) tea.Cmd {
	return func() tea.Msg {
		return completionMsg(task(a.ctx))
	}
}

func (a *App) lookupCmd(input string) tea.Cmd {
	return func() tea.Msg {
		id, err := a.services.Anchors.Lookup(a.ctx, input)
		if err != nil {
			switch {
			case errors.Is(err, shortcode.ErrInvalidCode):
				return statusMsg(fmt.Sprintf("%q is not a valid short code", input))
			case errors.Is(err, shortcode.ErrNotFound):
				return statusMsg(fmt.Sprintf("No anchor for short code %s", input))
			}
			return errMsg{err}
		}
		return lookupMsg{input: input, anchorID: id}
	}
}

func (a *App) resetCmd() tea.Cmd {
	return func() tea.Msg {
		if a.services.Maintenance == nil {
			return errMsg{fmt.Errorf("maintenance not configured")}
		}
		if err := a.services.Maintenance.Reset(a.ctx); err != nil {
			return errMsg{err}
		}
		if err := prefs.SaveRecentCodes(nil); err != nil {
			return errMsg{err}
		}
		return resetDoneMsg{}
	}
}

func rememberCmd(code shortcode.Code) tea.Cmd {
	return func() tea.Msg {
		codes, err := prefs.RememberCode(code)
		if err != nil {
			return errMsg{fmt.Errorf("remember code: %w", err)}
		}
		return recentMsg(codes)
	}
}

// anchorPose is where the model should be drawn, if anywhere.
func (a *App) anchorPose() (provider.Pose, bool) {
	lc := a.services.Anchors.Lifecycle
	h, ok := lc.Handle().(*provider.Handle)
	if !ok {
		return provider.Pose{}, false
	}
	switch lc.State() {
	case anchor.StateHosting, anchor.StateHosted, anchor.StateResolved:
		return h.Pose(), true
	}
	return provider.Pose{}, false
}

type frameMsg time.Time

type completionMsg anchor.Completion

type lookupMsg struct {
	input    string
	anchorID string
}

type recentMsg []shortcode.Code

type resetDoneMsg struct{}

type statusMsg string

type errMsg struct{ error }
