package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want Pattern
		ok   bool
	}{
		{"", Pattern{}, false},
		{"   ", Pattern{}, false},
		{"# comment", Pattern{}, false},
		{"!keep.txt", Pattern{}, false},
		{"*.log", Pattern{Glob: "**/*.log"}, true},
		{"node_modules/", Pattern{Glob: "**/node_modules", DirOnly: true}, true},
		{"/dist", Pattern{Glob: "dist"}, true},
		{"docs/generated", Pattern{Glob: "docs/generated"}, true},
		{"**/build", Pattern{Glob: "**/build"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := parseLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatcher_Match(t *testing.T) {
	m, err := Compile([]string{"*.log", "node_modules/", "/dist", "docs/generated"})
	require.NoError(t, err)

	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{"app.log", false, true},
		{"logs/app.log", false, true},
		{"node_modules", true, true},
		{"web/node_modules", true, true},
		{"web/node_modules/react/index.js", false, true},
		{"node_modules", false, false},
		{"dist/bundle.js", false, true},
		{"web/dist/bundle.js", false, false},
		{"docs/generated/api.md", false, true},
		{"docs/guide.md", false, false},
		{"main.go", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.path, tt.isDir))
		})
	}
}

func TestParseProject(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("# build\nbin/\n*.tmp\n"), 0600))

	m, err := NewParser([]string{".gitignore", ".gavignore"}, []string{"vendor/"}).ParseProject(root)
	require.NoError(t, err)

	assert.True(t, m.Match(".git", true))
	assert.True(t, m.Match("bin/gav", false))
	assert.True(t, m.Match("x.tmp", false))
	// Fallback is not used when an ignore file exists.
	assert.False(t, m.Match("vendor", true))
}

func TestParseProject_Fallback(t *testing.T) {
	m, err := NewParser([]string{".gitignore"}, []string{"vendor/"}).ParseProject(t.TempDir())
	require.NoError(t, err)

	assert.True(t, m.Match("vendor", true))
	assert.True(t, m.Match(".git/config", false))
	assert.Len(t, m.Patterns(), 2)
}

func TestNilMatcher(t *testing.T) {
	var m *Matcher
	assert.False(t, m.Match("anything", false))
}
