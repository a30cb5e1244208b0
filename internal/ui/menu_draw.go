package ui

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

const settingsTitle = "Settings (Up/Down select; Left/Right change; Enter: edit/apply; Backspace/Esc: back)"

func onOff(b bool) string {
	if b {
		return "On"
	}
	return "Off"
}

// drawMenu dims the game view and renders the open menu page.
func (a *App) drawMenu(screen *ebiten.Image) {
	overlay := ebiten.NewImage(160, 144)
	overlay.Fill(color.RGBA{0, 0, 0, 140})
	screen.DrawImage(overlay, nil)
	switch a.menuMode {
	case menuMain:
		a.drawMainMenu(screen)
	case menuSlot:
		a.drawSlotMenu(screen)
	case menuROM:
		a.drawROMMenu(screen)
	case menuKeys:
		a.drawKeysMenu(screen)
	case menuSettings:
		a.drawSettingsMenu(screen)
	}
}

func (a *App) drawMainMenu(screen *ebiten.Image) {
	lines := []string{
		"Menu:",
		fmt.Sprintf("  Save state (slot %d)", a.currentSlot+1),
		fmt.Sprintf("  Load state (slot %d)", a.currentSlot+1),
		"  Select Slot",
		"  Switch ROM",
		"  Settings",
		"  Keybindings",
		"  Close",
	}
	for i, s := range lines {
		prefix := "  "
		if i == a.menuIdx+1 {
			prefix = "> "
		}
		ebitenutil.DebugPrintAt(screen, prefix+s, 10, 10+i*14)
	}
	hint := "F5: Save  F9: Load  1-4: Slot  F11: Fullscreen  Backspace: Back"
	if maxChars := a.maxCharsForText(10); len(hint) > maxChars {
		hint = a.truncateText(hint, maxChars)
	}
	ebitenutil.DebugPrintAt(screen, hint, 10, 10+len(lines)*14)
}

// drawSlotMenu lays the ten slots out in two columns of five so they
// fit the 144-pixel screen.
func (a *App) drawSlotMenu(screen *ebiten.Image) {
	ebitenutil.DebugPrintAt(screen, "Select Slot:", 10, 10)
	for i := 0; i < 10; i++ {
		marker := "[empty]"
		if _, err := os.Stat(a.statePath(i)); err == nil {
			marker = ""
		}
		prefix := "  "
		if i == a.menuIdx {
			prefix = "> "
		}
		x := 10 + (i/5)*76
		y := 24 + (i%5)*14
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%s%d %s", prefix, i+1, marker), x, y)
	}
}

func (a *App) drawROMMenu(screen *ebiten.Image) {
	ebitenutil.DebugPrintAt(screen, "Select ROM (Enter to load, Backspace/Esc to return)", 10, 10)
	ebitenutil.DebugPrintAt(screen, a.truncateText("Dir: "+a.cfg.ROMsDir, a.maxCharsForText(10)), 10, 24)
	if len(a.romList) == 0 {
		ebitenutil.DebugPrintAt(screen, "No ROMs found", 10, 40)
	}
	const baseY = 40
	maxRows := (144 - baseY) / 14
	if maxRows < 1 {
		maxRows = 1
	}
	end := a.romOff + maxRows
	if end > len(a.romList) {
		end = len(a.romList)
	}
	maxChars := a.maxCharsForText(10) - 2 // leave room for "> "
	if maxChars < 1 {
		maxChars = 1
	}
	for i, p := range a.romList[a.romOff:end] {
		name := a.truncateText(filepath.Base(p), maxChars)
		prefix := "  "
		if a.romOff+i == a.romSel {
			prefix = "> "
		}
		ebitenutil.DebugPrintAt(screen, prefix+name, 10, baseY+i*14)
	}
	a.drawScrollMarks(screen, a.romOff > 0, end < len(a.romList), baseY, maxRows)
}

func (a *App) drawKeysMenu(screen *ebiten.Image) {
	cursorY := 10
	for _, w := range a.wrapText("Keybindings (Up/Down to scroll, Backspace/Esc to return)", a.maxCharsForText(10)) {
		ebitenutil.DebugPrintAt(screen, w, 10, cursorY)
		cursorY += 14
	}
	rows := []string{
		"Z: A",
		"X: B",
		"Enter: Start",
		"RightShift: Select",
		"Arrows: D-Pad",
		"P: Pause",
		"N: Step (when paused)",
		"Tab: Fast-forward",
		"R: Reset",
		"B: Reset with Boot ROM",
		"Esc: Open/Close Menu",
	}
	baseY := cursorY + 4
	maxRows := (144 - baseY) / 14
	if maxRows < 1 {
		maxRows = 1
	}
	if a.keysOff < 0 {
		a.keysOff = 0
	}
	if a.keysOff > len(rows)-1 {
		a.keysOff = len(rows) - 1
	}
	end := a.keysOff + maxRows
	if end > len(rows) {
		end = len(rows)
	}
	maxChars := a.maxCharsForText(10)
	for i := a.keysOff; i < end; i++ {
		ebitenutil.DebugPrintAt(screen, a.truncateText(rows[i], maxChars), 10, baseY+(i-a.keysOff)*14)
	}
	a.drawScrollMarks(screen, a.keysOff > 0, end < len(rows), baseY, maxRows)
}

func (a *App) drawSettingsMenu(screen *ebiten.Image) {
	cursorY := 10
	for _, w := range a.wrapText(settingsTitle, a.maxCharsForText(10)) {
		ebitenutil.DebugPrintAt(screen, w, 10, cursorY)
		cursorY += 14
	}
	romDir := a.cfg.ROMsDir
	if a.editingROMDir {
		romDir = a.romDirInput + "_"
	}
	audioMode := "Mono"
	if a.cfg.AudioStereo {
		audioMode = "Stereo"
	}
	bgMode := "Classic"
	if a.cfg.UseFetcherBG {
		bgMode = "Fetcher"
	}
	items := []string{
		fmt.Sprintf("Scale: %dx", a.cfg.Scale),
		"Audio: " + audioMode,
		"Audio Adaptive: " + onOff(a.cfg.AudioAdaptive),
		"Low-Latency Audio: " + onOff(a.cfg.AudioLowLatency),
		"BG Renderer: " + bgMode,
		"ROMs Dir: " + a.truncateText(romDir, a.maxCharsForText(10)-11),
		"CGB Colors: " + onOff(a.m != nil && a.m.WantCGBColors()),
	}
	if a.m != nil && a.m.IsCGBCompat() {
		pid := a.m.CurrentCompatPalette()
		items = append(items, fmt.Sprintf("Compat Palette: %d - %s  ([/]): cycle", pid, a.m.CompatPaletteName(pid)))
	}
	baseY := cursorY
	maxRows := (144 - baseY) / 14
	if maxRows < 1 {
		maxRows = 1
	}
	end := a.settingsOff + maxRows
	if end > len(items) {
		end = len(items)
	}
	for i := a.settingsOff; i < end; i++ {
		prefix := "  "
		if i == a.menuIdx {
			prefix = "> "
		}
		line := a.truncateText(prefix+items[i], a.maxCharsForText(10))
		ebitenutil.DebugPrintAt(screen, line, 10, baseY+(i-a.settingsOff)*14)
	}
	a.drawScrollMarks(screen, a.settingsOff > 0, end < len(items), baseY, maxRows)
}

// drawScrollMarks renders the up/down indicators beside a scrollable list.
func (a *App) drawScrollMarks(screen *ebiten.Image, up, down bool, baseY, maxRows int) {
	if up {
		ebitenutil.DebugPrintAt(screen, "^", 2, baseY)
	}
	if down {
		ebitenutil.DebugPrintAt(screen, "v", 2, baseY+(maxRows-1)*14)
	}
}
