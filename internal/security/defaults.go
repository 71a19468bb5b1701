package security

import "runtime"

// Default blocked patterns per platform. These protect system directories
// from script file access regardless of security mode.
var (
	defaultBlockedWindows = []string{
		"C:/Windows/*",
		"C:/Program Files/*",
		"C:/Program Files (x86)/*",
	}

	defaultBlockedDarwin = []string{
		"/System/*",
		"/Library/*",
		"/Applications/*",
		"/usr/*",
		"/bin/*",
		"/sbin/*",
		"/etc/*",
		"/var/*",
	}

	defaultBlockedLinux = []string{
		"/usr/*",
		"/bin/*",
		"/sbin/*",
		"/etc/*",
		"/var/*",
	}
)

// defaultAllowedWrite lists the write destinations permitted in sandboxed
// mode when no override is configured. Placeholders are resolved at
// evaluation time so the defaults stay portable across users.
var defaultAllowedWrite = []string{
	"~/Desktop/*",
	"~/Documents/*",
	"${TEMP}/*",
}

// DefaultBlocked returns a copy of the platform's default blocked patterns.
func DefaultBlocked() []string {
	var src []string
	switch runtime.GOOS {
	case "windows":
		src = defaultBlockedWindows
	case "darwin":
		src = defaultBlockedDarwin
	default:
		src = defaultBlockedLinux
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// DefaultAllowedWrite returns a copy of the default write-allow patterns.
func DefaultAllowedWrite() []string {
	out := make([]string, len(defaultAllowedWrite))
	copy(out, defaultAllowedWrite)
	return out
}
