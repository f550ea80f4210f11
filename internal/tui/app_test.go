package tui

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/jask/cloudanchors/internal/anchor"
	"github.com/jask/cloudanchors/internal/config"
	"github.com/jask/cloudanchors/internal/database"
	"github.com/jask/cloudanchors/internal/database/repository"
	"github.com/jask/cloudanchors/internal/prefs"
	"github.com/jask/cloudanchors/internal/provider"
	"github.com/jask/cloudanchors/internal/service"
	"github.com/jask/cloudanchors/internal/shortcode"
)

type fixture struct {
	t     *testing.T
	app   *App
	lc    *anchor.Lifecycle
	codes *repository.ShortCodeRepo
}

func newFixture(t *testing.T, model string) *fixture {
	t.Helper()
	prefsDir := t.TempDir()
	prev := prefs.Dir
	prefs.Dir = func() (string, error) { return prefsDir, nil }
	t.Cleanup(func() { prefs.Dir = prev })

	ctx, cancel := context.WithCancel(context.Background())
	dbPath := filepath.Join(t.TempDir(), "scene.db")
	require.NoError(t, database.RunMigrations(dbPath))
	db, err := database.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, database.SeedDefaults(ctx, db, 0))

	codes := repository.NewShortCodeRepo(db, 0)
	prov := provider.NewService(ctx, repository.NewCloudAnchorRepo(db), provider.Config{APIKey: "key"})
	t.Cleanup(func() {
		cancel()
		prov.Wait()
		_ = db.Close()
	})

	var app *App
	lc := anchor.New(codes, anchor.WithNotifier(anchor.NotifierFunc(func(e anchor.Event) { app.Notify(e) })))
	cfg := config.Config{UI: config.UIConfig{FrameInterval: time.Millisecond, Model: model}}
	app = New(ctx, cfg, Services{
		Anchors:     &service.AnchorService{Store: codes, Provider: prov, Lifecycle: lc},
		Maintenance: &service.MaintenanceService{DB: db},
		History:     codes,
	}, nil)
	return &fixture{t: t, app: app, lc: lc, codes: codes}
}

// send delivers msg and runs the resulting commands to completion, feeding
// their messages back in. Frame ticks are dropped; tests pump frames by hand.
func (f *fixture) send(msg tea.Msg) {
	_, cmd := f.app.Update(msg)
	f.run(cmd)
}

func (f *fixture) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	switch m := cmd().(type) {
	case nil, frameMsg:
	case tea.BatchMsg:
		for _, c := range m {
			f.run(c)
		}
	default:
		f.send(m)
	}
}

func (f *fixture) key(s string) {
	switch s {
	case "enter":
		f.send(tea.KeyMsg{Type: tea.KeyEnter})
	case "esc":
		f.send(tea.KeyMsg{Type: tea.KeyEsc})
	case "tab":
		f.send(tea.KeyMsg{Type: tea.KeyTab})
	case "up":
		f.send(tea.KeyMsg{Type: tea.KeyUp})
	default:
		f.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	}
}

func (f *fixture) pumpUntil(want anchor.State) {
	f.t.Helper()
	require.Eventually(f.t, func() bool {
		f.send(frameMsg(time.Now()))
		return f.lc.State() == want
	}, 2*time.Second, time.Millisecond)
}

func TestHostThenResolveFromScene(t *testing.T) {
	f := newFixture(t, "Fox.sfb")

	f.key("enter")
	require.Equal(t, anchor.StateHosting, f.lc.State())
	require.Equal(t, "Now hosting anchor...", f.app.status)

	f.pumpUntil(anchor.StateHosted)
	code, ok := f.lc.HostedCode()
	require.True(t, ok)
	require.Equal(t, database.DefaultInitialCode, code)
	require.Contains(t, f.app.status, "Short code: 142")
	require.Equal(t, []shortcode.Code{142}, f.app.recent)
	require.Contains(t, f.app.View(), "short code: 142")

	f.key("r")
	require.Equal(t, modalNone, f.app.modal)
	require.Equal(t, "Please clear Anchor first", f.app.status)

	f.key("c")
	require.Equal(t, anchor.StateNone, f.lc.State())

	f.key("r")
	require.Equal(t, modalResolve, f.app.modal)
	f.key("tab")
	require.Equal(t, "142", f.app.inputBuffer)
	f.key("enter")
	require.Equal(t, modalNone, f.app.modal)
	require.Equal(t, anchor.StateResolving, f.lc.State())

	f.pumpUntil(anchor.StateResolved)
	require.Contains(t, f.app.View(), "F")
	pose, ok := f.app.anchorPose()
	require.True(t, ok)
	col, row := tileAt(pose)
	require.Equal(t, gridCols/2, col)
	require.Equal(t, gridRows/2, row)
}

func TestWallTapIsRejected(t *testing.T) {
	f := newFixture(t, "Fox.sfb")
	for i := 0; i < gridRows; i++ {
		f.key("up")
	}
	require.Equal(t, wallRow, f.app.cursorRow)
	require.Contains(t, f.app.View(), "host here")

	f.key("enter")
	require.Equal(t, anchor.StateNone, f.lc.State())
	require.Equal(t, "Anchors can only be placed on the floor.", f.app.status)
}

func TestBadCodesDoNotTouchLifecycle(t *testing.T) {
	f := newFixture(t, "Fox.sfb")

	f.key("r")
	f.key("abc")
	f.key("enter")
	require.Equal(t, anchor.StateNone, f.lc.State())
	require.Contains(t, f.app.status, "not a valid short code")

	f.key("r")
	f.key("999")
	f.key("enter")
	require.Equal(t, anchor.StateNone, f.lc.State())
	require.Equal(t, "No anchor for short code 999", f.app.status)
	require.Nil(t, f.lc.Handle())
}

func TestUnknownModelShowsErrorModal(t *testing.T) {
	f := newFixture(t, "Missing.sfb")
	require.Equal(t, modalError, f.app.modal)
	require.Contains(t, f.app.View(), "unable to load renderable")
	require.Equal(t, anchor.StateNone, f.lc.State())

	// dismissing is the only effect of a key while the modal is up
	f.key("enter")
	require.Equal(t, modalNone, f.app.modal)
	require.Equal(t, anchor.StateNone, f.lc.State())
}

func TestResetWipesRecentCodes(t *testing.T) {
	f := newFixture(t, "Fox.sfb")
	f.key("enter")
	f.pumpUntil(anchor.StateHosted)
	require.NotEmpty(t, f.app.recent)

	f.key("X")
	require.Equal(t, modalConfirmReset, f.app.modal)
	f.key("y")
	require.Equal(t, anchor.StateNone, f.lc.State())
	require.Empty(t, f.app.recent)
	require.Equal(t, "Stored anchors and short codes wiped.", f.app.status)

	codes, err := prefs.LoadRecentCodes()
	require.NoError(t, err)
	require.Empty(t, codes)
}

func TestTileMapping(t *testing.T) {
	for row := wallRow + 1; row < gridRows; row++ {
		for col := 0; col < gridCols; col++ {
			hit := hitAt(col, row)
			require.Equal(t, provider.PlaneHorizontalUpward, hit.Plane)
			gotCol, gotRow := tileAt(hit.Pose)
			require.Equal(t, col, gotCol)
			require.Equal(t, row, gotRow)
		}
	}
	require.Equal(t, provider.PlaneVertical, hitAt(0, wallRow).Plane)

	// far-away poses land on the nearest floor tile
	col, row := tileAt(provider.Translation(100, 0, -100))
	require.Equal(t, gridCols-1, col)
	require.Equal(t, wallRow+1, row)
}

func TestRecentCodesFallBackToStore(t *testing.T) {
	f := newFixture(t, "Fox.sfb")
	ctx := context.Background()
	for _, id := range []string{"ua-a", "ua-b"} {
		code, err := f.codes.Allocate(ctx)
		require.NoError(t, err)
		require.NoError(t, f.codes.Put(ctx, code, id))
	}

	f.send(f.app.loadRecent()())
	require.Equal(t, []shortcode.Code{143, 142}, f.app.recent)

	// once prefs has codes they win
	require.NoError(t, prefs.SaveRecentCodes([]shortcode.Code{7}))
	f.send(f.app.loadRecent()())
	require.Equal(t, []shortcode.Code{7}, f.app.recent)
}
