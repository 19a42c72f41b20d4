package resolve

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/deskagent/store"
)

// maxSuggestions caps the hint list attached to a failed lookup.
const maxSuggestions = 5

var idPattern = regexp.MustCompile(`^#?\d+$`)

// NotFoundError reports a reference that matched no owned project,
// together with up to five similarly named candidates.
type NotFoundError struct {
	Ref         string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("project %q not found", e.Ref)
	}
	return fmt.Sprintf("project %q not found, similar: %s", e.Ref, strings.Join(e.Suggestions, ", "))
}

// ProjectSource is the slice of the project repository the resolver needs.
// *store.ProjectRepo satisfies it.
type ProjectSource interface {
	GetByID(ctx context.Context, id uint) (*store.Project, error)
	GetByName(ctx context.Context, userID uint64, name string) (*store.Project, error)
	ListByUser(ctx context.Context, userID uint64) ([]store.Project, error)
}

// Resolver resolves free-form project references for a given owner.
type Resolver struct {
	projects ProjectSource
	logger   *zap.Logger
}

// NewResolver creates a Resolver.
func NewResolver(projects ProjectSource, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{projects: projects, logger: logger}
}

// ResolveOwned resolves ref to one of the user's projects. Resolution
// order: numeric id ("#12" or "12", ownership required), exact name,
// then normalized name equality. A failed id lookup falls through to the
// name steps. With loose set, the normalized step additionally folds
// Cyrillic/Greek confusables into Latin.
func (r *Resolver) ResolveOwned(ctx context.Context, userID uint64, ref string, loose bool) (*store.Project, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, &NotFoundError{Ref: ref}
	}

	if idPattern.MatchString(ref) {
		id, err := strconv.ParseUint(strings.TrimPrefix(ref, "#"), 10, 64)
		if err == nil {
			p, err := r.projects.GetByID(ctx, uint(id))
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, err
			}
			if err == nil && p.UserID == userID {
				return p, nil
			}
		}
	}

	normalizer := Normalize
	if loose {
		normalizer = NormalizeLoose
	}
	return r.resolveByName(ctx, userID, ref, normalizer)
}

// ResolveByName resolves ref by exact then normalized name equality,
// never by id. This is the form used for @[Name] mentions, where a
// numeric name must not be mistaken for an id.
func (r *Resolver) ResolveByName(ctx context.Context, userID uint64, ref string) (*store.Project, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, &NotFoundError{Ref: ref}
	}
	return r.resolveByName(ctx, userID, ref, Normalize)
}

func (r *Resolver) resolveByName(ctx context.Context, userID uint64, ref string, normalizer func(string) string) (*store.Project, error) {
	p, err := r.projects.GetByName(ctx, userID, ref)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	all, err := r.projects.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	target := normalizer(ref)
	for i := range all {
		if normalizer(all[i].Name) == target {
			return &all[i], nil
		}
	}

	var suggestions []string
	if target != "" {
		for i := range all {
			if strings.Contains(normalizer(all[i].Name), target) {
				suggestions = append(suggestions, all[i].Name)
				if len(suggestions) == maxSuggestions {
					break
				}
			}
		}
	}
	r.logger.Debug("project reference unresolved",
		zap.Uint64("user_id", userID),
		zap.String("ref", ref),
		zap.Int("suggestions", len(suggestions)),
	)
	return nil, &NotFoundError{Ref: ref, Suggestions: suggestions}
}
