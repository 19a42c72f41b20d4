// Package scope decides which projects a retrieval query may touch,
// based on the session's context mode and any @[Name] mentions in the
// user's message.
package scope

import (
	"context"
	"errors"
	"regexp"

	"go.uber.org/zap"

	"github.com/BaSui01/deskagent/resolve"
	"github.com/BaSui01/deskagent/store"
)

// Reasons attached to ignored mentions. User-facing text states the
// outcome only, never which project denied it.
const (
	ReasonNotFound = "not found"
	ReasonNoAccess = "no access"
)

var mentionPattern = regexp.MustCompile(`@\[([^\]]+)\]`)

// IgnoredMention is a mention that did not widen the scope.
type IgnoredMention struct {
	Name   string
	Reason string
}

// Scope is the computed retrieval boundary for one turn. A nil
// ProjectIDs with Skip unset means the query runs unscoped across all
// of the user's memory.
type Scope struct {
	Skip       bool
	Warning    string
	ProjectIDs []uint
	Ignored    []IgnoredMention
}

// AccessChecker reports whether the directed edge owner -> allowed
// exists in the access graph. *store.AccessRepo satisfies it.
type AccessChecker interface {
	IsAllowed(ctx context.Context, ownerProjectID, allowedProjectID uint) (bool, error)
}

// MentionResolver resolves a mentioned name to one of the user's
// projects. *resolve.Resolver satisfies it.
type MentionResolver interface {
	ResolveByName(ctx context.Context, userID uint64, name string) (*store.Project, error)
}

// Selector computes retrieval scopes.
type Selector struct {
	resolver MentionResolver
	access   AccessChecker
	logger   *zap.Logger
}

// NewSelector creates a Selector.
func NewSelector(resolver MentionResolver, access AccessChecker, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{resolver: resolver, access: access, logger: logger}
}

// ExtractMentions returns the @[Name] mentions in text, deduplicated on
// their normalized form, first occurrence wins.
func ExtractMentions(text string) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		key := resolve.Normalize(m[1])
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

// Compute derives the retrieval scope for a turn. In project mode the
// scope is the active project, or unscoped when the session has none.
// Global mode is always unscoped. In acl_mentions mode an active
// project is required; mentions widen the scope to projects that have
// granted access to it, and everything else lands in Ignored.
func (s *Selector) Compute(ctx context.Context, userID uint64, mode string, activeProjectID *uint, text string) (*Scope, error) {
	switch mode {
	case store.ContextModeGlobal:
		return &Scope{}, nil

	case store.ContextModeACLMentions:
		if activeProjectID == nil {
			return &Scope{
				Skip:    true,
				Warning: "acl_mentions requires an active project; retrieval skipped",
			}, nil
		}
		return s.computeMentions(ctx, userID, *activeProjectID, text)

	default: // project
		if activeProjectID == nil {
			return &Scope{}, nil
		}
		return &Scope{ProjectIDs: []uint{*activeProjectID}}, nil
	}
}

func (s *Selector) computeMentions(ctx context.Context, userID uint64, activeProjectID uint, text string) (*Scope, error) {
	sc := &Scope{ProjectIDs: []uint{activeProjectID}}
	for _, name := range ExtractMentions(text) {
		p, err := s.resolver.ResolveByName(ctx, userID, name)
		if err != nil {
			var nf *resolve.NotFoundError
			if errors.As(err, &nf) {
				sc.Ignored = append(sc.Ignored, IgnoredMention{Name: name, Reason: ReasonNotFound})
				continue
			}
			return nil, err
		}
		if p.ID == activeProjectID {
			// Already in scope.
			continue
		}
		ok, err := s.access.IsAllowed(ctx, activeProjectID, p.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.logger.Debug("mention denied by acl",
				zap.Uint64("user_id", userID),
				zap.Uint("mentioned_project_id", p.ID),
				zap.Uint("active_project_id", activeProjectID),
			)
			sc.Ignored = append(sc.Ignored, IgnoredMention{Name: name, Reason: ReasonNoAccess})
			continue
		}
		sc.ProjectIDs = append(sc.ProjectIDs, p.ID)
	}
	return sc, nil
}
