package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// ExtractPageRefs walks a wizard body's step list and returns the distinct
// pageRef values, sorted. Steps without a pageRef carry inline fields and are
// skipped.
func ExtractPageRefs(body JSONDoc) []string {
	steps, _ := body["steps"].([]any)
	seen := make(map[string]struct{})
	for _, raw := range steps {
		step, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		ref, ok := step["pageRef"].(string)
		if !ok || ref == "" {
			continue
		}
		seen[ref] = struct{}{}
	}

	refs := make([]string, 0, len(seen))
	for ref := range seen {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// SplitPageRef splits a reference into its page key and optional version tag.
// The split is on the last "@", so page keys may themselves contain "@".
func SplitPageRef(ref string) (key, version string) {
	if idx := strings.LastIndex(ref, "@"); idx >= 0 {
		return ref[:idx], ref[idx+1:]
	}
	return ref, ""
}

// checkPageRefs verifies that every page reference in a wizard body resolves
// to a published page: versioned refs to that exact published version,
// unversioned refs to any published version of the key. All failures are
// accumulated so the publisher sees the complete set in one round-trip.
func (s *DefinitionStore) checkPageRefs(ctx context.Context, body JSONDoc) ([]string, error) {
	var broken []string
	for _, ref := range ExtractPageRefs(body) {
		key, version := SplitPageRef(ref)

		resolved, err := s.pageRefResolves(ctx, key, version)
		if err != nil {
			return nil, err
		}
		if !resolved {
			broken = append(broken, fmt.Sprintf("page reference %q not found or not published", ref))
		}
	}
	return broken, nil
}

func (s *DefinitionStore) pageRefResolves(ctx context.Context, key, version string) (bool, error) {
	query := s.db.WithContext(ctx).Model(&DefinitionRecord{}).
		Where("kind = ? AND def_key = ? AND status = ?", KindPage, key, StatusPublished)
	if version != "" {
		if _, err := ParseVersion(version); err != nil {
			// A malformed tag can never match a published row.
			return false, nil
		}
		query = query.Where("version = ?", version)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, &TransientError{Op: "page reference check", Err: err}
	}
	return count > 0, nil
}
