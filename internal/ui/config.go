package ui

// Config holds the window/input/audio settings the front end persists
// between runs (see settingsPath).
type Config struct {
	Title string // window title
	Scale int    // integer upscaling factor

	AudioStereo     bool // true: stereo output; false: fold to mono
	AudioAdaptive   bool // grow the buffer target on underruns
	AudioBufferMs   int  // initial desired buffer, approximate
	AudioLowLatency bool // hard-cap buffering for minimal latency

	ROMsDir      string // directory the ROM picker browses
	UseFetcherBG bool   // render BG via the fetcher/FIFO path

	// PerROMCompatPalette remembers the compat-palette pick per ROM path.
	PerROMCompatPalette map[string]int
}

// Defaults fills missing fields in place.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "gbemu"
	}
	if c.Scale <= 0 {
		c.Scale = 3
	}
	if c.AudioBufferMs <= 0 {
		c.AudioBufferMs = 60
	}
	if c.ROMsDir == "" {
		c.ROMsDir = "roms"
	}
	if c.PerROMCompatPalette == nil {
		c.PerROMCompatPalette = make(map[string]int)
	}
}
