package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeSandboxed, ParseMode("sandboxed"))
	assert.Equal(t, ModeSandboxed, ParseMode("SANDBOXED"))
	assert.Equal(t, ModeSandboxed, ParseMode("  Sandboxed "))
	assert.Equal(t, ModeUnrestricted, ParseMode("unrestricted"))
	assert.Equal(t, ModeUnrestricted, ParseMode("bogus"))
	assert.Equal(t, ModeUnrestricted, ParseMode(""))
}

func TestBlockedAppliesToBothIntentsAndModes(t *testing.T) {
	for _, mode := range []Mode{ModeUnrestricted, ModeSandboxed} {
		p := New(mode, []string{"/etc/*"}, []string{"/etc/*"})
		assert.True(t, p.IsBlocked("/etc/passwd", IntentRead), "mode %s read", mode)
		assert.True(t, p.IsBlocked("/etc/passwd", IntentWrite), "mode %s write", mode)
	}
}

func TestBlockedCoversNestedPaths(t *testing.T) {
	p := New(ModeUnrestricted, []string{"/etc/*"}, nil)
	assert.True(t, p.IsBlocked("/etc/ssh/sshd_config", IntentRead))
	assert.False(t, p.IsBlocked("/etc", IntentRead))
	assert.False(t, p.IsBlocked("/home/user/etc/passwd", IntentRead))
}

func TestSandboxedWriteDefaultDeny(t *testing.T) {
	p := New(ModeSandboxed, []string{"/etc/*"}, []string{"~/Desktop/*"})

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.True(t, p.IsBlocked("/tmp/x.txt", IntentWrite))
	assert.False(t, p.IsBlocked(filepath.Join(home, "Desktop", "out.txt"), IntentWrite))
	assert.False(t, p.IsBlocked("/tmp/x.txt", IntentRead))
}

func TestSandboxedReadsOnlyCheckBlocklist(t *testing.T) {
	p := New(ModeSandboxed, []string{"/etc/*"}, []string{"~/Desktop/*"})
	assert.False(t, p.IsBlocked("/home/someone/notes.txt", IntentRead))
	assert.True(t, p.IsBlocked("/etc/hosts", IntentRead))
}

func TestUnrestrictedWritesOnlyCheckBlocklist(t *testing.T) {
	p := New(ModeUnrestricted, []string{"/etc/*"}, []string{"~/Desktop/*"})
	assert.False(t, p.IsBlocked("/tmp/anywhere.txt", IntentWrite))
	assert.True(t, p.IsBlocked("/etc/hosts", IntentWrite))
}

func TestHomePlacementInvariance(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	p := New(ModeSandboxed, nil, []string{"~/Desktop/*"})

	tilde := p.IsBlocked("~/Desktop/out.txt", IntentWrite)
	absolute := p.IsBlocked(filepath.Join(home, "Desktop", "out.txt"), IntentWrite)
	assert.Equal(t, tilde, absolute)
	assert.False(t, tilde)
}

func TestTempPlaceholderExpansion(t *testing.T) {
	p := New(ModeSandboxed, nil, []string{"${TEMP}/*"})
	target := filepath.Join(os.TempDir(), "report.csv")
	assert.False(t, p.IsBlocked(target, IntentWrite))
	assert.True(t, p.IsBlocked("/somewhere/else.csv", IntentWrite))
}

func TestEmbeddedStarCrossesSeparators(t *testing.T) {
	p := New(ModeUnrestricted, []string{"/data/secret*"}, nil)
	assert.True(t, p.IsBlocked("/data/secret.txt", IntentRead))
	assert.True(t, p.IsBlocked("/data/secretdir/inner.txt", IntentRead))
	assert.True(t, p.IsBlocked("/data/secrets/deep/nested/file", IntentRead))
	assert.False(t, p.IsBlocked("/data/sec.txt", IntentRead))
	assert.False(t, p.IsBlocked("/other/secretdir/inner.txt", IntentRead))
}

func TestSymlinkIntoBlockedDirIsBlocked(t *testing.T) {
	base, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	blocked := filepath.Join(base, "blocked")
	require.NoError(t, os.Mkdir(blocked, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(blocked, "secret.txt"), []byte("x"), 0o600))

	alias := filepath.Join(base, "alias")
	require.NoError(t, os.Symlink(blocked, alias))

	p := New(ModeUnrestricted, []string{filepath.ToSlash(blocked) + "/*"}, nil)
	assert.True(t, p.IsBlocked(filepath.Join(blocked, "secret.txt"), IntentRead))
	assert.True(t, p.IsBlocked(filepath.Join(alias, "secret.txt"), IntentRead))
}

func TestNonexistentPathKeepsLexicalForm(t *testing.T) {
	p := New(ModeUnrestricted, []string{"/no/such/place/*"}, nil)
	assert.True(t, p.IsBlocked("/no/such/place/file.txt", IntentRead))
	assert.Equal(t, "/no/such/place/file.txt", NormalizePath("/no/such/place/file.txt"))
}

func TestExactPatternMatchesOnlyExactPath(t *testing.T) {
	p := New(ModeUnrestricted, []string{"/opt/secrets"}, nil)
	assert.True(t, p.IsBlocked("/opt/secrets", IntentRead))
	assert.False(t, p.IsBlocked("/opt/secrets/key.pem", IntentRead))
}

func TestSeparatorNormalization(t *testing.T) {
	p := New(ModeUnrestricted, []string{"/data/blocked/*"}, nil)
	assert.True(t, p.IsBlocked(`/data/blocked/file.txt`, IntentRead))
	assert.True(t, p.IsBlocked(`/data/blocked/../blocked/file.txt`, IntentRead))
}

func TestCheckMessagesEnumeratePatterns(t *testing.T) {
	p := New(ModeSandboxed, []string{"/etc/*"}, []string{"~/Desktop/*"})

	err := p.Check("/tmp/x.txt", IntentWrite)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allowed write paths")
	assert.Contains(t, err.Error(), "Desktop")

	err = p.Check("/etc/passwd", IntentRead)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked directory")
	assert.Contains(t, err.Error(), "/etc/*")

	assert.NoError(t, p.Check("/home/user/notes.txt", IntentRead))
}

func TestFromEnvMergesBlockedReplacesAllowed(t *testing.T) {
	p := FromEnv("sandboxed", "/custom/*; /other/*", "~/Exports/*")

	require.Equal(t, ModeSandboxed, p.Mode())

	// Defaults are still present, extras are appended.
	assert.True(t, p.IsBlocked("/custom/file", IntentRead))
	assert.True(t, p.IsBlocked("/other/file", IntentRead))
	assert.True(t, p.IsBlocked("/etc/passwd", IntentRead) || len(DefaultBlocked()) == 0)

	// Allowlist is replaced, so the default Desktop entry no longer applies.
	assert.True(t, p.IsBlocked("~/Desktop/out.txt", IntentWrite))
	assert.False(t, p.IsBlocked("~/Exports/out.txt", IntentWrite))
}

func TestFromEnvEmptyAllowedKeepsDefaults(t *testing.T) {
	p := FromEnv("sandboxed", "", "")
	assert.False(t, p.IsBlocked("~/Desktop/out.txt", IntentWrite))
}

func TestExpandedPatternListsAreStable(t *testing.T) {
	p := New(ModeSandboxed, []string{"~/blocked/*"}, []string{"${TEMP}/*"})
	first := p.BlockedPatterns()
	second := p.BlockedPatterns()
	assert.Equal(t, first, second)
	assert.NotContains(t, first[0], "~")

	allowed := p.AllowedWritePatterns()
	assert.NotContains(t, allowed[0], "${TEMP}")
}
