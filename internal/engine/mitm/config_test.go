package mitm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRule = `
- id: block-admin
  name: block admin path
  action: block
  matchers:
    - target: path
      type: word
      words:
        - "/admin"
`

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRule), 0o644))

	rules, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "block-admin", rules[0].ID)
	assert.Equal(t, ActionBlock, rules[0].Action)
}

func TestLoadDir_SkipsMalformedAndLoadsRest(t *testing.T) {
	dir := t.TempDir()
	bad := "- id: bad\n  action: not-a-real-action\n  matchers:\n    - target: not-a-real-target\n      type: word\n"

	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.yaml"), []byte(sampleRule), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(bad), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a rule file"), 0o644))

	rules, errs := LoadDir(dir)
	require.Len(t, rules, 1)
	assert.Equal(t, "block-admin", rules[0].ID)
	assert.Len(t, errs, 1)
}
