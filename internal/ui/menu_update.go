package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// Menu modes. The overlay is a tiny state machine keyed by these.
const (
	menuMain     = "main"
	menuSlot     = "slot"
	menuROM      = "rom"
	menuKeys     = "keys"
	menuSettings = "settings"
)

// updateMenu dispatches one input tick to whichever menu page is open.
func (a *App) updateMenu() {
	switch a.menuMode {
	case menuMain:
		a.updateMainMenu()
	case menuSlot:
		a.updateSlotMenu()
	case menuROM:
		a.updateROMMenu()
	case menuKeys:
		a.updateKeysMenu()
	case menuSettings:
		a.updateSettingsMenu()
	}
}

func (a *App) updateMainMenu() {
	const lastIdx = 6
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.menuIdx > 0 {
		a.menuIdx--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.menuIdx < lastIdx {
		a.menuIdx++
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		switch a.menuIdx {
		case 0:
			a.doSaveSlot()
		case 1:
			a.doLoadSlot()
		case 2:
			a.menuMode = menuSlot
			a.menuIdx = a.currentSlot
		case 3:
			a.romList = a.findROMs()
			a.romSel = 0
			a.romOff = 0
			a.menuMode = menuROM
		case 4:
			a.menuMode = menuSettings
			a.menuIdx = 0
			a.editingROMDir = false
		case 5:
			a.menuMode = menuKeys
			a.keysOff = 0
		case 6:
			a.showMenu = false
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		a.showMenu = false
	}
}

// doSaveSlot / doLoadSlot are shared by the menu and the F5/F9 hotkeys.
func (a *App) doSaveSlot() {
	if err := a.saveSlot(a.currentSlot); err == nil {
		a.toast(fmt.Sprintf("Saved slot %d", a.currentSlot+1))
	} else {
		a.toast("Save failed: " + err.Error())
	}
}

func (a *App) doLoadSlot() {
	if _, err := os.Stat(a.statePath(a.currentSlot)); err != nil {
		a.toast("Slot is empty")
		return
	}
	if err := a.loadSlot(a.currentSlot); err == nil {
		a.toast(fmt.Sprintf("Loaded slot %d", a.currentSlot+1))
	} else {
		a.toast("Load failed: " + err.Error())
	}
}

func (a *App) updateSlotMenu() {
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.menuIdx > 0 {
		a.menuIdx--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.menuIdx < 9 {
		a.menuIdx++
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		a.currentSlot = a.menuIdx
		a.toast(fmt.Sprintf("Slot set to %d", a.currentSlot+1))
		a.menuMode = menuMain
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		a.menuMode = menuMain
	}
}

func (a *App) updateROMMenu() {
	n := len(a.romList)
	if n == 0 {
		if inpututil.IsKeyJustPressed(ebiten.KeyEnter) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
			a.menuMode = menuMain
		}
		return
	}
	// keep the selection inside the visible window
	const baseY = 40
	maxRows := (144 - baseY) / 14
	if maxRows < 1 {
		maxRows = 1
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.romSel > 0 {
		a.romSel--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.romSel < n-1 {
		a.romSel++
	}
	if a.romSel < a.romOff {
		a.romOff = a.romSel
	}
	if a.romSel >= a.romOff+maxRows {
		a.romOff = a.romSel - maxRows + 1
	}
	if a.romOff < 0 {
		a.romOff = 0
	}
	if a.romOff > n-1 {
		a.romOff = n - 1
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		a.loadSelectedROM()
		a.menuMode = menuMain
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		a.menuMode = menuMain
	}
}

// loadSelectedROM loads the highlighted ROM, restores its .sav sibling
// if present, and applies per-ROM palette preferences.
func (a *App) loadSelectedROM() {
	path := a.romList[a.romSel]
	if err := a.m.LoadROMFromFile(path); err != nil {
		a.toast("ROM load failed: " + err.Error())
		return
	}
	a.toast("Loaded ROM: " + filepath.Base(path))
	if strings.HasSuffix(strings.ToLower(path), ".gb") {
		sav := strings.TrimSuffix(path, ".gb") + ".sav"
		if data, err := os.ReadFile(sav); err == nil {
			_ = a.m.LoadBattery(data)
		}
	}
	if a.m.WantCGBColors() && !a.m.UseCGBBG() {
		a.m.ResetCGBPostBoot(true)
	}
	title := a.cfg.Title
	if t := a.m.ROMTitle(); t != "" {
		title = a.cfg.Title + " - [" + t + "]"
	}
	ebiten.SetWindowTitle(title)
	if a.m.IsCGBCompat() && a.cfg.PerROMCompatPalette != nil {
		if pid, ok := a.cfg.PerROMCompatPalette[path]; ok {
			a.m.SetCompatPalette(pid)
		}
	}
}

func (a *App) updateKeysMenu() {
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.keysOff > 0 {
		a.keysOff--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) {
		a.keysOff++
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		a.menuMode = menuMain
	}
}

// Settings rows, in display order. The compat-palette row only appears
// when a cartridge is loaded.
const (
	settingScale = iota
	settingAudioOutput
	settingAudioAdaptive
	settingLowLatency
	settingBGRenderer
	settingROMsDir
	settingCGBColors
	settingCompatPalette
)

func (a *App) updateSettingsMenu() {
	rows := settingCompatPalette
	if a.m != nil && a.m.IsCGBCompat() {
		rows = settingCompatPalette + 1
	}
	if !a.editingROMDir {
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.menuIdx > 0 {
			a.menuIdx--
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.menuIdx < rows-1 {
			a.menuIdx++
		}
		baseY := 10 + 14*len(a.wrapText(settingsTitle, a.maxCharsForText(10))) + 14
		maxRows := (144 - baseY) / 14
		if maxRows < 1 {
			maxRows = 1
		}
		if a.menuIdx < a.settingsOff {
			a.settingsOff = a.menuIdx
		}
		if a.menuIdx >= a.settingsOff+maxRows {
			a.settingsOff = a.menuIdx - maxRows + 1
		}
	}

	left := inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft)
	right := inpututil.IsKeyJustPressed(ebiten.KeyArrowRight)
	enter := inpututil.IsKeyJustPressed(ebiten.KeyEnter)

	switch {
	case a.menuIdx == settingScale && !a.editingROMDir:
		if left && a.cfg.Scale > 1 {
			a.cfg.Scale--
			ebiten.SetWindowSize(160*a.cfg.Scale, 144*a.cfg.Scale)
		}
		if right && a.cfg.Scale < 10 {
			a.cfg.Scale++
			ebiten.SetWindowSize(160*a.cfg.Scale, 144*a.cfg.Scale)
		}
	case a.menuIdx == settingAudioOutput && !a.editingROMDir:
		if left || right {
			a.cfg.AudioStereo = !a.cfg.AudioStereo
			a.restartAudioPlayer()
		}
	case a.menuIdx == settingAudioAdaptive && !a.editingROMDir:
		if left || right {
			a.cfg.AudioAdaptive = !a.cfg.AudioAdaptive
		}
	case a.menuIdx == settingLowLatency && !a.editingROMDir:
		if left || right || enter {
			a.cfg.AudioLowLatency = !a.cfg.AudioLowLatency
			a.saveSettings()
			if a.m != nil && a.cfg.AudioLowLatency {
				a.m.APUCapBufferedStereo(1440) // ~30ms
			}
			if a.audioSrc != nil {
				a.audioSrc.lowLatency = a.cfg.AudioLowLatency
			}
			a.applyPlayerBufferSize()
		}
	case a.menuIdx == settingBGRenderer && !a.editingROMDir:
		if left || right || enter {
			a.cfg.UseFetcherBG = !a.cfg.UseFetcherBG
			if a.m != nil {
				a.m.SetUseFetcherBG(a.cfg.UseFetcherBG)
			}
			a.saveSettings()
		}
	case a.menuIdx == settingROMsDir:
		a.updateROMsDirRow(enter)
	case a.menuIdx == settingCGBColors && !a.editingROMDir:
		if (left || right || enter) && a.m != nil {
			if !a.m.WantCGBColors() {
				// DMG-only ROMs enter compat mode with a clean reset.
				a.m.SetUseCGBBG(true)
				if a.m.IsCGBCompat() {
					a.m.ResetCGBPostBoot(true)
				}
			} else {
				a.m.SetUseCGBBG(false)
				a.m.ResetPostBoot()
			}
		}
	case a.menuIdx == settingCompatPalette && rows > settingCompatPalette && !a.editingROMDir:
		if left {
			a.cycleAndPersistPalette(-1)
		}
		if right || enter {
			a.cycleAndPersistPalette(+1)
		}
	}

	if !a.editingROMDir && (enter || inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyBackspace)) {
		a.menuMode = menuMain
	}
}

// updateROMsDirRow handles the one text-editable settings row.
func (a *App) updateROMsDirRow(enter bool) {
	if !a.editingROMDir {
		if enter {
			a.editingROMDir = true
			a.romDirInput = a.cfg.ROMsDir
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
			a.menuMode = menuMain
		}
		return
	}
	for _, r := range ebiten.InputChars() {
		if r != '\n' && r != '\r' {
			a.romDirInput += string(r)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) && len(a.romDirInput) > 0 {
		a.romDirInput = a.romDirInput[:len(a.romDirInput)-1]
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		val := strings.TrimSpace(a.romDirInput)
		if val != "" {
			a.cfg.ROMsDir = val
			a.saveSettings()
			a.romList = a.findROMs()
			a.toast("ROMs dir set")
		}
		a.editingROMDir = false
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		a.editingROMDir = false
		a.romDirInput = a.cfg.ROMsDir
	}
}

// cycleAndPersistPalette steps the compat palette and remembers the
// choice per ROM path.
func (a *App) cycleAndPersistPalette(delta int) {
	a.m.CycleCompatPalette(delta)
	pid := a.m.CurrentCompatPalette()
	a.toast(fmt.Sprintf("Compat palette: %d - %s", pid, a.m.CompatPaletteName(pid)))
	if a.m.ROMPath() != "" {
		a.cfg.PerROMCompatPalette[a.m.ROMPath()] = pid
		a.saveSettings()
	}
}
