package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spec(name, desc string, tags ...string) ToolSpec {
	return ToolSpec{OriginalName: name, Description: desc, Tags: tags}
}

func TestRegisterBareAliasSingleOwner(t *testing.T) {
	r := New()
	r.Register("github", "github", []ToolSpec{spec("get_repo", "fetch a repository")})

	entry, ok := r.Get("get_repo")
	require.True(t, ok)
	assert.Equal(t, "github", entry.BackendName)

	_, ok = r.Get("github.get_repo")
	assert.True(t, ok)
}

func TestRegisterCollisionRemovesBareAlias(t *testing.T) {
	r := New()
	r.Register("github", "github", []ToolSpec{spec("get_repo", "fetch a repository")})
	r.Register("gitlab", "gitlab", []ToolSpec{spec("get_repo", "fetch a project")})

	_, ok := r.Get("get_repo")
	assert.False(t, ok, "bare alias must be retired once two backends collide")

	ghEntry, ok := r.Get("github.get_repo")
	require.True(t, ok)
	assert.Equal(t, "github", ghEntry.BackendName)

	glEntry, ok := r.Get("gitlab.get_repo")
	require.True(t, ok)
	assert.Equal(t, "gitlab", glEntry.BackendName)
}

func TestRemoveRestoresBareAliasOnResolvedCollision(t *testing.T) {
	r := New()
	r.Register("github", "github", []ToolSpec{spec("get_repo", "fetch a repository")})
	r.Register("gitlab", "gitlab", []ToolSpec{spec("get_repo", "fetch a project")})
	require.False(t, func() bool { _, ok := r.Get("get_repo"); return ok }())

	r.Remove("gitlab")

	entry, ok := r.Get("get_repo")
	require.True(t, ok, "bare alias must be restored once the collision resolves")
	assert.Equal(t, "github", entry.BackendName)
}

func TestReRegistrationDoesNotCauseFalseCollision(t *testing.T) {
	r := New()
	r.Register("github", "github", []ToolSpec{spec("get_repo", "fetch a repository")})
	r.Register("github", "github", []ToolSpec{spec("get_repo", "fetch a repository, v2")})

	entry, ok := r.Get("get_repo")
	require.True(t, ok)
	assert.Equal(t, "fetch a repository, v2", entry.Description)
	assert.Equal(t, 1, r.BackendCount())
}

func TestThirdOwnerLeavesBareAliasRetired(t *testing.T) {
	r := New()
	r.Register("a", "a", []ToolSpec{spec("fetch", "a fetch")})
	r.Register("b", "b", []ToolSpec{spec("fetch", "b fetch")})
	r.Register("c", "c", []ToolSpec{spec("fetch", "c fetch")})

	r.Remove("b")

	_, ok := r.Get("fetch")
	assert.False(t, ok, "three-way collision down to two owners must not restore the bare alias")
}

func TestSearchRanksNameMatchesHigher(t *testing.T) {
	r := New()
	r.Register("ns", "ns", []ToolSpec{
		spec("deploy_service", "deploy something to the cloud"),
		spec("list_clouds", "deploy is mentioned here only in passing text about clouds"),
	})

	results := r.Search("deploy", 10, nil, nil)
	require.NotEmpty(t, results)
	assert.Equal(t, "ns.deploy_service", results[0].Name)
}

func TestSearchDropsZeroScoreDocs(t *testing.T) {
	r := New()
	r.Register("ns", "ns", []ToolSpec{spec("totally_unrelated", "nothing in common")})

	results := r.Search("kubernetes", 10, nil, nil)
	assert.Empty(t, results)
}

func TestSearchFilterTags(t *testing.T) {
	r := New()
	r.Register("ns", "ns", []ToolSpec{
		spec("deploy_a", "deploy service a", "prod"),
		spec("deploy_b", "deploy service b", "staging"),
	})

	results := r.Search("deploy", 10, []string{"prod"}, nil)
	require.Len(t, results, 1)
	assert.Equal(t, "ns.deploy_a", results[0].Name)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"get", "repo", "v2"}, tokenize("Get-Repo_V2!!"))
	assert.Empty(t, tokenize("***"))
}

func TestSnapshotOmitsBareAliasWhenNamespacedExists(t *testing.T) {
	r := New()
	r.Register("github", "github", []ToolSpec{spec("get_repo", "fetch a repository")})

	snap := r.Snapshot()
	entries := snap["github"]
	require.Len(t, entries, 1)
	assert.Equal(t, "github.get_repo", entries[0].Name)
}

func TestAliasResolvesAfterDirectMiss(t *testing.T) {
	r := New()
	r.Register("github", "github", []ToolSpec{spec("get_repo", "fetch a repository")})
	r.SetAliases(map[string]string{"gh": "github.get_repo"})

	entry, ok := r.Get("gh")
	require.True(t, ok)
	assert.Equal(t, "github", entry.BackendName)
}

func TestAliasNeverShadowsRealTool(t *testing.T) {
	r := New()
	r.Register("github", "github", []ToolSpec{spec("get_repo", "real tool")})
	r.SetAliases(map[string]string{"get_repo": "github.nonexistent"})

	entry, ok := r.Get("get_repo")
	require.True(t, ok)
	assert.Equal(t, "real tool", entry.Description)
}
