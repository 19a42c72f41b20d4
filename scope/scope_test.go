package scope

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/deskagent/resolve"
	"github.com/BaSui01/deskagent/store"
)

func TestExtractMentions(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"none", "plain message", nil},
		{"single", "check @[Backend] please", []string{"Backend"}},
		{"multiple", "@[A] and @[B]", []string{"A", "B"}},
		{"dedup first seen", "@[Backend] then @[backend] again", []string{"Backend"}},
		{"empty brackets skipped", "@[ ] and @[Real]", []string{"Real"}},
		{"unterminated ignored", "@[oops and @[ok]", []string{"oops and @[ok"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractMentions(tt.in))
		})
	}
}

type scopeFixture struct {
	selector *Selector
	projects *store.ProjectRepo
	access   *store.AccessRepo
}

func newScopeFixture(t *testing.T) *scopeFixture {
	t.Helper()
	db, err := store.Open(store.DefaultConfig(), zap.NewNop())
	require.NoError(t, err)
	projects := store.NewProjectRepo(db, zap.NewNop())
	access := store.NewAccessRepo(db, zap.NewNop())
	resolver := resolve.NewResolver(projects, zap.NewNop())
	return &scopeFixture{
		selector: NewSelector(resolver, access, zap.NewNop()),
		projects: projects,
		access:   access,
	}
}

func (f *scopeFixture) seed(t *testing.T, userID uint64, name string) *store.Project {
	t.Helper()
	p := &store.Project{UserID: userID, Name: name}
	require.NoError(t, f.projects.Create(context.Background(), p))
	return p
}

func TestCompute_GlobalIsUnscoped(t *testing.T) {
	f := newScopeFixture(t)
	p := f.seed(t, 1, "main")

	sc, err := f.selector.Compute(context.Background(), 1, store.ContextModeGlobal, &p.ID, "anything @[main]")
	require.NoError(t, err)
	assert.False(t, sc.Skip)
	assert.Empty(t, sc.ProjectIDs)
	assert.Empty(t, sc.Ignored)
}

func TestCompute_ProjectMode(t *testing.T) {
	f := newScopeFixture(t)
	p := f.seed(t, 1, "main")

	sc, err := f.selector.Compute(context.Background(), 1, store.ContextModeProject, &p.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, []uint{p.ID}, sc.ProjectIDs)

	// Without a project the query runs unscoped rather than skipping.
	sc, err = f.selector.Compute(context.Background(), 1, store.ContextModeProject, nil, "hello")
	require.NoError(t, err)
	assert.False(t, sc.Skip)
	assert.Empty(t, sc.ProjectIDs)
}

func TestCompute_ACLMentionsRequiresProject(t *testing.T) {
	f := newScopeFixture(t)

	sc, err := f.selector.Compute(context.Background(), 1, store.ContextModeACLMentions, nil, "@[other]")
	require.NoError(t, err)
	assert.True(t, sc.Skip)
	assert.NotEmpty(t, sc.Warning)
	assert.Empty(t, sc.ProjectIDs)
}

func TestCompute_ACLMentions(t *testing.T) {
	f := newScopeFixture(t)
	ctx := context.Background()
	active := f.seed(t, 1, "active")
	granted := f.seed(t, 1, "granted")
	denied := f.seed(t, 1, "denied")
	_ = denied

	_, err := f.access.Grant(ctx, active.ID, granted.ID, "read")
	require.NoError(t, err)

	sc, err := f.selector.Compute(ctx, 1, store.ContextModeACLMentions, &active.ID,
		"see @[granted], @[denied] and @[ghost]")
	require.NoError(t, err)
	assert.Equal(t, []uint{active.ID, granted.ID}, sc.ProjectIDs)
	assert.Equal(t, []IgnoredMention{
		{Name: "denied", Reason: ReasonNoAccess},
		{Name: "ghost", Reason: ReasonNotFound},
	}, sc.Ignored)
}

func TestCompute_ACLMentionDirectionMatters(t *testing.T) {
	f := newScopeFixture(t)
	ctx := context.Background()
	active := f.seed(t, 1, "active")
	other := f.seed(t, 1, "other")

	// The reverse edge: sessions in other may read active. That does
	// not let a session in active read other.
	_, err := f.access.Grant(ctx, other.ID, active.ID, "read")
	require.NoError(t, err)

	sc, err := f.selector.Compute(ctx, 1, store.ContextModeACLMentions, &active.ID, "@[other]")
	require.NoError(t, err)
	assert.Equal(t, []uint{active.ID}, sc.ProjectIDs)
	require.Len(t, sc.Ignored, 1)
	assert.Equal(t, ReasonNoAccess, sc.Ignored[0].Reason)
}

func TestCompute_ACLMentionOfActiveProjectIsSilent(t *testing.T) {
	f := newScopeFixture(t)
	ctx := context.Background()
	active := f.seed(t, 1, "active")

	sc, err := f.selector.Compute(ctx, 1, store.ContextModeACLMentions, &active.ID, "@[active]")
	require.NoError(t, err)
	assert.Equal(t, []uint{active.ID}, sc.ProjectIDs)
	assert.Empty(t, sc.Ignored)
}
