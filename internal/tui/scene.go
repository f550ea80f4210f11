package tui

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jask/cloudanchors/internal/anchor"
	"github.com/jask/cloudanchors/internal/provider"
)

// The scene is a room seen from above: row 0 is the far wall, the rest is
// floor. One tile is cellSize metres; the viewer stands just past the last row.
const (
	gridCols = 9
	gridRows = 7
	cellSize = 0.5
	wallRow  = 0
)

var ErrModelNotFound = errors.New("unable to load renderable")

// models maps renderable asset names to the glyph drawn for them.
var models = map[string]string{
	"Fox.sfb":  "F",
	"Andy.sfb": "A",
	"Lamp.sfb": "L",
}

func loadModel(name string) (string, error) {
	glyph, ok := models[name]
	if !ok {
		return "?", fmt.Errorf("%w %q", ErrModelNotFound, name)
	}
	return glyph, nil
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	floorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	wallStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("94"))
	cursorStyle  = lipgloss.NewStyle().Reverse(true)
	pendingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	anchorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
)

// hitAt converts a tile into the hit test result a tap there would produce.
func hitAt(col, row int) provider.HitResult {
	x := float64(col-gridCols/2) * cellSize
	z := -float64(gridRows-row) * cellSize
	if row == wallRow {
		return provider.HitResult{Plane: provider.PlaneVertical, Pose: provider.Translation(x, 1, z)}
	}
	return provider.HitResult{Plane: provider.PlaneHorizontalUpward, Pose: provider.Translation(x, 0, z)}
}

// tileAt is the floor tile nearest to p.
func tileAt(p provider.Pose) (col, row int) {
	col = int(math.Round(p.Tx/cellSize)) + gridCols/2
	row = gridRows - int(math.Round(-p.Tz/cellSize))
	return clamp(col, 0, gridCols-1), clamp(row, wallRow+1, gridRows-1)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func (a *App) renderScene() string {
	lc := a.services.Anchors.Lifecycle
	var b strings.Builder
	b.WriteString(titleStyle.Render("Cloud Anchors"))
	b.WriteString("\n")

	header := "state: " + lc.State().String()
	if code, ok := lc.HostedCode(); ok {
		header += fmt.Sprintf("  short code: %d", code)
	}
	b.WriteString(header + "\n\n")

	anchorCol, anchorRow := -1, -1
	if pose, ok := a.anchorPose(); ok {
		anchorCol, anchorRow = tileAt(pose)
	}
	for row := 0; row < gridRows; row++ {
		for col := 0; col < gridCols; col++ {
			cell := a.renderTile(col, row, col == anchorCol && row == anchorRow, lc.State())
			b.WriteString(cell)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n" + a.status + "\n")
	b.WriteString(a.help.View(a.keys))
	return b.String()
}

func (a *App) renderTile(col, row int, hasAnchor bool, st anchor.State) string {
	text := " . "
	style := floorStyle
	if row == wallRow {
		text = "###"
		style = wallStyle
	}
	if hasAnchor {
		text = " " + a.glyph + " "
		style = anchorStyle
		if st.InFlight() {
			style = pendingStyle
		}
	}
	if col == a.cursorCol && row == a.cursorRow {
		style = style.Inherit(cursorStyle)
	}
	return style.Render(text)
}

func (a *App) renderModal() string {
	switch a.modal {
	case modalResolve:
		out := titleStyle.Render("Resolve anchor") + fmt.Sprintf("\nEnter short code: %s_\n", a.inputBuffer)
		if len(a.recent) > 0 {
			codes := make([]string, len(a.recent))
			for i, c := range a.recent {
				codes[i] = c.String()
			}
			out += "recent: " + strings.Join(codes, ", ") + "  [tab] fill\n"
		}
		return out + "[enter] Resolve  [esc] Cancel"
	case modalConfirmReset:
		return titleStyle.Render("Reset stored anchors?") + "\nThis deletes every hosted anchor and short code.\n[y] Yes  [n] No"
	case modalError:
		return titleStyle.Render("Error") + "\n" + a.modalErr + "\n[any key] Dismiss"
	}
	return ""
}
