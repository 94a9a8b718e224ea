// Package paths builds the canonical filenames and network-share paths the
// ERP and the Executor must agree on without a shared addressing scheme.
package paths

import (
	"fmt"
	"strings"
)

// OriginalNameMarker separates a quote id from a preserved, human-uploaded
// filename inside the stored excel_file_path.
const OriginalNameMarker = "___"

// Resolver resolves artifact names and paths against a fixed base root (the
// Windows network share the Executor works on). It holds no mutable state.
type Resolver struct {
	baseRoot string
}

// NewResolver creates a Resolver. An empty baseRoot falls back to the
// standard share used by the legacy automation.
func NewResolver(baseRoot string) *Resolver {
	if baseRoot == "" {
		baseRoot = `F:\nxerp`
	}
	return &Resolver{baseRoot: strings.TrimRight(baseRoot, `\`)}
}

// Sanitize strips everything except ASCII letters, digits and hyphens,
// replacing the rest with underscore. The legacy automation matches folders
// and files on these names, so the rule must not change.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// CanonicalFilename builds the deterministic artifact name
// Ref_Client_Project_Material<ext>. Parts that sanitize to nothing are
// skipped so a quote without a material still gets a stable name.
func CanonicalFilename(reference, clientName, projectName, materialName, ext string) string {
	raw := []string{reference, clientName, projectName, materialName}
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		s := Sanitize(p)
		if strings.Trim(s, "_") == "" {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "_") + ext
}

// CanonicalPath places a filename under the project folder on the share.
// The separator is a backslash regardless of where this service runs: the
// path is consumed on the Executor's Windows host, not here.
func (r *Resolver) CanonicalPath(projectName, filename string) string {
	if projectName == "" {
		projectName = "Projet"
	}
	return fmt.Sprintf(`%s\%s\%s`, r.baseRoot, projectName, filename)
}

// PreservedOriginalName extracts a human-uploaded filename embedded in a
// stored path after the triple-underscore marker. The Executor's macro
// layer matches files by exact name, so when a preserved name exists it
// must be reused verbatim instead of the canonical reconstruction.
func PreservedOriginalName(storedPath string) (string, bool) {
	idx := strings.LastIndex(storedPath, OriginalNameMarker)
	if idx < 0 {
		return "", false
	}
	name := storedPath[idx+len(OriginalNameMarker):]
	if name == "" {
		return "", false
	}
	return name, true
}

// UploadFilename builds the deterministic stored name for an uploaded
// artifact: <quoteID>__<name>, or <quoteID>___<name> when the original name
// must survive the round trip back to the Executor.
func UploadFilename(quoteID, originalName string, preserve bool) string {
	safe := sanitizeUploadName(originalName)
	marker := "__"
	if preserve {
		marker = OriginalNameMarker
	}
	return quoteID + marker + safe
}

// sanitizeUploadName is looser than Sanitize: dots, spaces and underscores
// survive because they are part of legitimate uploaded filenames.
func sanitizeUploadName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_', r == ' ':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
