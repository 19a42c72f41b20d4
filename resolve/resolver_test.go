package resolve

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/deskagent/store"
)

func newTestResolver(t *testing.T) (*Resolver, *store.ProjectRepo) {
	t.Helper()
	db, err := store.Open(store.DefaultConfig(), zap.NewNop())
	require.NoError(t, err)
	repo := store.NewProjectRepo(db, zap.NewNop())
	return NewResolver(repo, zap.NewNop()), repo
}

func seedProject(t *testing.T, repo *store.ProjectRepo, userID uint64, name string) *store.Project {
	t.Helper()
	p := &store.Project{UserID: userID, Name: name}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func TestResolveOwned_ByID(t *testing.T) {
	r, repo := newTestResolver(t)
	ctx := context.Background()
	p := seedProject(t, repo, 1, "alpha")

	for _, ref := range []string{fmt.Sprintf("%d", p.ID), fmt.Sprintf("#%d", p.ID)} {
		got, err := r.ResolveOwned(ctx, 1, ref, false)
		require.NoError(t, err, ref)
		assert.Equal(t, p.ID, got.ID)
	}
}

func TestResolveOwned_IDOwnershipRequired(t *testing.T) {
	r, repo := newTestResolver(t)
	ctx := context.Background()
	other := seedProject(t, repo, 2, "theirs")

	_, err := r.ResolveOwned(ctx, 1, fmt.Sprintf("#%d", other.ID), false)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestResolveOwned_NumericNameFallsThrough(t *testing.T) {
	r, repo := newTestResolver(t)
	ctx := context.Background()
	// A project literally named "9000"; no project has that id.
	p := seedProject(t, repo, 1, "9000")
	require.NotEqual(t, uint(9000), p.ID)

	got, err := r.ResolveOwned(ctx, 1, "9000", false)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestResolveOwned_ExactThenNormalized(t *testing.T) {
	r, repo := newTestResolver(t)
	ctx := context.Background()
	p := seedProject(t, repo, 1, "My Project")

	got, err := r.ResolveOwned(ctx, 1, "My Project", false)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	// Case and surrounding whitespace differences resolve via the
	// normalized step.
	got, err = r.ResolveOwned(ctx, 1, "  my project ", false)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestResolveOwned_ConfusablesOnlyWhenLoose(t *testing.T) {
	r, repo := newTestResolver(t)
	ctx := context.Background()
	p := seedProject(t, repo, 1, "Проект A")

	// Greek capital alpha instead of Latin "A".
	ref := "Проект Α"

	_, err := r.ResolveOwned(ctx, 1, ref, false)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)

	got, err := r.ResolveOwned(ctx, 1, ref, true)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestResolveOwned_Suggestions(t *testing.T) {
	r, repo := newTestResolver(t)
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		seedProject(t, repo, 1, fmt.Sprintf("backend-%d", i))
	}
	seedProject(t, repo, 1, "frontend")

	_, err := r.ResolveOwned(ctx, 1, "backend", false)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Len(t, nf.Suggestions, maxSuggestions)
	for _, s := range nf.Suggestions {
		assert.Contains(t, s, "backend")
	}
}

func TestResolveByName_IgnoresIDs(t *testing.T) {
	r, repo := newTestResolver(t)
	ctx := context.Background()
	p := seedProject(t, repo, 1, "alpha")

	// A mention of the project's numeric id must not resolve.
	_, err := r.ResolveByName(ctx, 1, fmt.Sprintf("#%d", p.ID))
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)

	got, err := r.ResolveByName(ctx, 1, "ALPHA")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestResolveOwned_EmptyRef(t *testing.T) {
	r, _ := newTestResolver(t)
	_, err := r.ResolveOwned(context.Background(), 1, "   ", false)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Empty(t, nf.Suggestions)
}
