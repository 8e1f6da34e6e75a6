package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validConfig = `
hosts:
  - type: github
    use_as: source
    token: $TEST_GH_TOKEN
    owners: ["alice,bob"]
  - type: gitlab
    use_as: mirror
    token: glpat-secret
    group_id: 42
    group_path: mirrors
`

func TestLoadConfigResolvesEnvAndDefaults(t *testing.T) {
	t.Setenv("TEST_GH_TOKEN", "gh-secret")

	config, err := LoadConfig(writeConfig(t, validConfig))
	require.NoError(t, err)

	source := config.Source()
	require.NotNil(t, source)
	assert.Equal(t, "github", source.Name, "name defaults to type")
	assert.Equal(t, "https://github.com", source.BaseUrl)
	assert.Equal(t, "gh-secret", source.Token.Value())
	assert.Equal(t, []string{"alice", "bob"}, source.Owners)

	mirror := config.Mirror()
	require.NotNil(t, mirror)
	assert.Equal(t, "https://gitlab.com", mirror.BaseUrl)
	assert.Equal(t, 42, mirror.GroupId)

	assert.True(t, *config.DryRun, "mutations are opt-in")
	assert.Equal(t, 7, *config.Prune.GraceDays)
	assert.Equal(t, "prune_state.json", config.Prune.StateFile)
	assert.Equal(t, []string{"mirror-scripts"}, config.Prune.Exclude)
}

func TestLoadConfigMissingEnvVarFails(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, validConfig))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_GH_TOKEN")
}

func TestLoadConfigRequiresOneSourceAndOneMirror(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
hosts:
  - type: github
    use_as: source
    token: tok
`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "mirror")
}

func TestLoadConfigRejectsInvalidHostType(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
hosts:
  - type: bitbucket
    use_as: source
    token: tok
`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid host type")
}

func TestLoadConfigGitlabMirrorRequiresGroup(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
hosts:
  - type: github
    use_as: source
    token: tok
  - type: gitlab
    use_as: mirror
    token: tok
`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "group_id")
}

func TestLoadConfigKeepsExplicitPruneSettings(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, `
hosts:
  - type: github
    use_as: source
    token: tok
  - type: gitea
    use_as: mirror
    base: https://gitea.example.com
    org: mirrors
    token: tok
dry_run: false
prune:
  grace_days: 0
  exclude: ["keep-me,also-keep"]
  state_file: /tmp/state.json
`))
	require.NoError(t, err)

	assert.False(t, *config.DryRun)
	assert.Equal(t, 0, *config.Prune.GraceDays, "zero grace means immediate eligibility, not the default")
	assert.Equal(t, "/tmp/state.json", config.Prune.StateFile)
	assert.Equal(t, []string{"keep-me", "also-keep"}, config.Prune.Exclude)

	set := config.Prune.ExcludeSet()
	_, found := set["keep-me"]
	assert.True(t, found)
}

func TestSecretRedactsInLogsAndJson(t *testing.T) {
	secret := Secret("super-secret")

	assert.Equal(t, "[redacted]", secret.String())
	assert.Equal(t, "[redacted]", fmt.Sprintf("%v", secret))
	assert.Equal(t, "[redacted]", fmt.Sprintf("%s", secret))

	raw, err := json.Marshal(secret)
	require.NoError(t, err)
	assert.Equal(t, `"[redacted]"`, string(raw))

	assert.Equal(t, "super-secret", secret.Value())
}
