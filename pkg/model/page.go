package model

// Materialized-path bookkeeping. Every tree level contributes a fixed-width
// step to the path, so ancestry is pure string arithmetic.

// StepLen is the number of characters per tree level in a page path.
const StepLen = 4

// ParentPath returns the path of the page's parent, or "" at the root.
func ParentPath(path string) string {
	if len(path) <= StepLen {
		return ""
	}
	return path[:len(path)-StepLen]
}

// AncestorPaths returns the paths of all ancestors of the given path,
// shallowest first, excluding the path itself.
func AncestorPaths(path string) []string {
	var out []string
	for n := StepLen; n < len(path); n += StepLen {
		out = append(out, path[:n])
	}
	return out
}

// Status renders the publication state the way the admin UI labels it.
func Status(live, hasUnpublishedChanges bool) string {
	switch {
	case live && hasUnpublishedChanges:
		return "live + draft"
	case live:
		return "live"
	default:
		return "draft"
	}
}

// AdminDisplayTitle is the title shown in the admin: the draft title when
// one exists, else the live title.
func AdminDisplayTitle(in Instance) string {
	if t := in.Str("draft_title"); t != "" {
		return t
	}
	return in.Str("title")
}

// CommonAncestorPath returns the longest whole-step prefix shared by all
// paths, i.e. the path of their deepest common ancestor.
func CommonAncestorPath(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	common := paths[0]
	for _, p := range paths[1:] {
		for !hasStepPrefix(p, common) {
			common = ParentPath(common)
			if common == "" {
				return ""
			}
		}
	}
	return common
}

func hasStepPrefix(path, prefix string) bool {
	return len(path) >= len(prefix) && path[:len(prefix)] == prefix
}
