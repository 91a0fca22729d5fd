package email

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderTemplate(t *testing.T, store *TemplateStore, name string, data TemplateData) string {
	t.Helper()
	tmpl, ok := store.Lookup(name)
	require.True(t, ok)
	var buf bytes.Buffer
	require.NoError(t, tmpl.Execute(&buf, data))
	return buf.String()
}

func TestTemplateStore_Defaults(t *testing.T) {
	store, err := NewTemplateStore("", quietLogger())
	require.NoError(t, err)

	for _, name := range []string{TemplateInvitation, TemplateWelcome, TemplateMemberRemoved} {
		_, ok := store.Lookup(name)
		assert.True(t, ok, "missing template %s", name)
	}

	html := renderTemplate(t, store, TemplateInvitation, TemplateData{
		OrgName:     "Acme",
		InviterName: "Alice",
		Role:        "member",
		InviteURL:   "https://app.example.com/accept?token=t",
		Year:        2026,
	})
	assert.Contains(t, html, "Acme")
	assert.Contains(t, html, "Alice")
	assert.Contains(t, html, "2026")
}

func TestTemplateStore_EscapesHTML(t *testing.T) {
	store, err := NewTemplateStore("", quietLogger())
	require.NoError(t, err)

	html := renderTemplate(t, store, TemplateInvitation, TemplateData{
		OrgName:     "<script>alert(1)</script>",
		InviterName: "Alice",
	})
	assert.NotContains(t, html, "<script>alert(1)</script>")
}

func TestTemplateStore_DirOverride(t *testing.T) {
	dir := t.TempDir()
	override := filepath.Join(dir, "welcome.html")
	require.NoError(t, os.WriteFile(override, []byte("custom welcome for {{.OrgName}}"), 0o644))

	store, err := NewTemplateStore(dir, quietLogger())
	require.NoError(t, err)

	html := renderTemplate(t, store, TemplateWelcome, TemplateData{OrgName: "Acme"})
	assert.Equal(t, "custom welcome for Acme", html)

	// Templates without an override keep the default.
	html = renderTemplate(t, store, TemplateInvitation, TemplateData{OrgName: "Acme", InviterName: "A"})
	assert.Contains(t, html, "Accept invitation")
}

func TestTemplateStore_BadOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "invitation.html"), []byte("{{.Broken"), 0o644))

	_, err := NewTemplateStore(dir, quietLogger())
	assert.Error(t, err)
}

func TestTemplateStore_WatchReload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewTemplateStore(dir, quietLogger())
	require.NoError(t, err)

	require.NoError(t, store.Watch())
	defer store.Close()

	path := filepath.Join(dir, "member_removed.html")
	require.NoError(t, os.WriteFile(path, []byte("reloaded {{.OrgName}}"), 0o644))

	assert.Eventually(t, func() bool {
		tmpl, ok := store.Lookup(TemplateMemberRemoved)
		if !ok {
			return false
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, TemplateData{OrgName: "Acme"}); err != nil {
			return false
		}
		return buf.String() == "reloaded Acme"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestTemplateStore_WatchWithoutDir(t *testing.T) {
	store, err := NewTemplateStore("", quietLogger())
	require.NoError(t, err)

	// No directory configured, Watch is a no-op.
	require.NoError(t, store.Watch())
	require.NoError(t, store.Close())
}
