package emu

// Config carries the knobs that affect how a Machine runs. Trace and
// LimitFPS are host-level concerns passed through to the CLI layer;
// UseFetcherBG round-trips the settings UI's renderer label.
type Config struct {
	Trace        bool // log CPU instructions
	LimitFPS     bool // throttle to ~60 Hz (headless runs want max speed)
	UseFetcherBG bool // render BG via fetcher/FIFO scanline path
}
