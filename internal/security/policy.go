// Package security implements the filesystem path policy enforced on every
// file operation a script performs.
//
// A policy pairs a mode with two pattern sets. Blocked patterns apply to all
// access in both modes. In sandboxed mode, writes are additionally
// default-denied unless they match a write-allow pattern. Patterns are
// glob-style, matched against the whole normalized path: `*` matches any run
// of characters including directory separators, so "/etc/*" covers everything
// under /etc and "/data/secret*" covers "/data/secretdir/inner.txt". A
// pattern without a trailing wildcard matches only that exact path.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/cadbridge/cadbridge/internal/shared/errs"
)

// Mode selects how much the policy restricts script file access.
type Mode string

const (
	// ModeUnrestricted applies only the blocked-pattern list.
	ModeUnrestricted Mode = "unrestricted"

	// ModeSandboxed additionally default-denies writes outside the
	// write-allow list.
	ModeSandboxed Mode = "sandboxed"
)

// ParseMode interprets a configured mode string. Matching is
// case-insensitive; unrecognized values fall back to unrestricted.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeSandboxed)) {
		return ModeSandboxed
	}
	return ModeUnrestricted
}

// Intent distinguishes read access from write access.
type Intent int

const (
	IntentRead Intent = iota
	IntentWrite
)

// caseInsensitiveFS reports whether path matching should fold case.
var caseInsensitiveFS = runtime.GOOS == "windows"

// PatternSet is an ordered set of glob patterns whose placeholder-expanded
// forms are computed lazily and cached for the set's lifetime.
type PatternSet struct {
	raw      []string
	once     sync.Once
	expanded []string // placeholder-resolved, for display in denial messages
	compiled []string // expanded plus wildcard translation, for matching
}

// NewPatternSet creates a pattern set from raw patterns.
func NewPatternSet(patterns []string) *PatternSet {
	raw := make([]string, len(patterns))
	copy(raw, patterns)
	return &PatternSet{raw: raw}
}

func (s *PatternSet) resolve() {
	s.once.Do(func() {
		s.expanded = make([]string, len(s.raw))
		s.compiled = make([]string, len(s.raw))
		for i, p := range s.raw {
			exp := ExpandPattern(p)
			s.expanded[i] = exp
			s.compiled[i] = compilePattern(exp)
		}
	})
}

// Expanded returns the placeholder-resolved patterns.
func (s *PatternSet) Expanded() []string {
	s.resolve()
	return s.expanded
}

// Matches reports whether the normalized path matches any pattern in the set.
func (s *PatternSet) Matches(normalizedPath string) bool {
	s.resolve()
	subject := foldSeparators(normalizedPath)
	for _, pat := range s.compiled {
		ok, err := doublestar.Match(pat, subject)
		if err == nil && ok {
			return true
		}
	}
	return false
}

// ExpandPattern resolves the ~ and ${TEMP} placeholders in a pattern and
// normalizes separators to forward slashes.
func ExpandPattern(pattern string) string {
	if strings.HasPrefix(pattern, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			pattern = home + pattern[1:]
		}
	}
	if strings.Contains(pattern, "${TEMP}") {
		pattern = strings.ReplaceAll(pattern, "${TEMP}", os.TempDir())
	}
	return filepath.ToSlash(pattern)
}

// matchSep substitutes for the path separator while matching. With no real
// separators left in either side, `*` and `?` cross directory boundaries,
// giving the whole-string glob semantics the policy promises.
const matchSep = "\x00"

func foldSeparators(s string) string {
	return strings.ReplaceAll(s, "/", matchSep)
}

// compilePattern translates an expanded pattern into matcher syntax:
// separators are folded so every wildcard spans them, and case is folded on
// case-insensitive filesystems.
func compilePattern(expanded string) string {
	out := foldSeparators(expanded)
	if caseInsensitiveFS {
		out = strings.ToLower(out)
	}
	return out
}

/// NormalizePath converts a path into the canonical matching form: home
// reference expanded, absolute, symlinks resolved, cleaned, forward slashes,
// case folded on case-insensitive filesystems.
func NormalizePath(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + path[1:]
		}
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	path = resolveSymlinks(path)
	out := filepath.ToSlash(filepath.Clean(path))
	if caseInsensitiveFS {
		out = strings.ToLower(out)
	}
	return out
}

// resolveSymlinks canonicalizes the path so a symlink cannot alias a path
// out of a blocked directory. For paths that do not exist yet, the deepest
// existing ancestor is resolved and the remainder kept lexical.
func resolveSymlinks(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	dir := path
	rest := ""
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return path
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, rest)
		}
	}
}

// Policy is the immutable security policy governing script file access.
// Construct once at startup; safe for concurrent use.
type Policy struct {
	mode         Mode
	blocked      *PatternSet
	allowedWrite *PatternSet
}

// New creates a policy from a mode and raw pattern lists.
func New(mode Mode, blocked, allowedWrite []string) *Policy {
	return &Policy{
		mode:         mode,
		blocked:      NewPatternSet(blocked),
		allowedWrite: NewPatternSet(allowedWrite),
	}
}

// Default returns an unrestricted policy with platform defaults.
func Default() *Policy {
	return New(ModeUnrestricted, DefaultBlocked(), DefaultAllowedWrite())
}

// FromEnv builds a policy from the raw configuration strings. Extra blocked
// patterns merge with the platform defaults; configured write-allow patterns
// replace the defaults entirely.
func FromEnv(mode, blockedPaths, allowedWritePaths string) *Policy {
	blocked := DefaultBlocked()
	blocked = append(blocked, splitPatternList(blockedPaths)...)

	allowedWrite := splitPatternList(allowedWritePaths)
	if len(allowedWrite) == 0 {
		allowedWrite = DefaultAllowedWrite()
	}

	return New(ParseMode(mode), blocked, allowedWrite)
}

func splitPatternList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ";") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Mode returns the policy's security mode.
func (p *Policy) Mode() Mode {
	return p.mode
}

// BlockedPatterns returns the placeholder-resolved blocked patterns.
func (p *Policy) BlockedPatterns() []string {
	return p.blocked.Expanded()
}

// AllowedWritePatterns returns the placeholder-resolved write-allow patterns.
func (p *Policy) AllowedWritePatterns() []string {
	return p.allowedWrite.Expanded()
}

// IsBlocked reports whether access to path with the given intent is denied.
func (p *Policy) IsBlocked(path string, intent Intent) bool {
	norm := NormalizePath(path)

	if p.blocked.Matches(norm) {
		return true
	}

	// Sandboxed writes are default-deny: absence from the allowlist blocks.
	if intent == IntentWrite && p.mode == ModeSandboxed {
		return !p.allowedWrite.Matches(norm)
	}

	return false
}

// Check returns a PolicyViolation error when access is denied, enumerating
// the pattern list responsible so the caller can self-correct.
func (p *Policy) Check(path string, intent Intent) error {
	if !p.IsBlocked(path, intent) {
		return nil
	}

	if intent == IntentWrite && p.mode == ModeSandboxed {
		return errs.Newf(errs.KindPolicyViolation,
			"Write access denied: '%s' is not in allowed write paths. Allowed: %s",
			path, strings.Join(p.AllowedWritePatterns(), ", ")).
			WithDetail("path", path).
			WithSuggestion("Write to one of the allowed paths instead")
	}
	return errs.Newf(errs.KindPolicyViolation,
		"Access denied: '%s' is in a blocked directory. Blocked: %s",
		path, strings.Join(p.BlockedPatterns(), ", ")).
		WithDetail("path", path)
}

// Describe renders the active policy for caller-facing documentation,
// showing resolved paths rather than placeholders.
func (p *Policy) Describe() string {
	var b strings.Builder
	if p.mode == ModeSandboxed {
		b.WriteString("File access (sandboxed): reads allowed outside blocked directories, writes restricted.\n")
		b.WriteString("Allowed write paths:\n")
		for _, pat := range p.AllowedWritePatterns() {
			fmt.Fprintf(&b, "  - %s\n", pat)
		}
	} else {
		b.WriteString("File access: read/write allowed outside blocked directories.\n")
	}
	b.WriteString("Blocked (system directories):\n")
	for _, pat := range p.BlockedPatterns() {
		fmt.Fprintf(&b, "  - %s\n", pat)
	}
	return b.String()
}
