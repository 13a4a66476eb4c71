package color

import (
	"hash/fnv"

	fatih "github.com/fatih/color"
)

// palette holds the colors handed out to keys. Red and yellow are left
// out so a key never looks like an error or warning level.
var palette = []fatih.Attribute{
	fatih.FgHiGreen,
	fatih.FgHiBlue,
	fatih.FgHiMagenta,
	fatih.FgHiCyan,
	fatih.FgGreen,
	fatih.FgBlue,
	fatih.FgMagenta,
	fatih.FgCyan,
}

// Index returns a stable palette position for key.
func Index(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(palette)))
}

// ForKey returns the color assigned to key. The same key always gets the
// same color, so interleaved log lines of concurrent tasks stay apart.
func ForKey(key string) *fatih.Color {
	return fatih.New(palette[Index(key)])
}
