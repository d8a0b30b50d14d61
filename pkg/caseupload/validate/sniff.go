package validate

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Legacy Office files (.doc, .xls) sniff as the compound-file container,
// sometimes refined to their nominal type when the sub-headers allow it,
// so the whole container family is accepted alongside the real
// allow-lists.
const compoundFileMime = "application/x-ole-storage"

const unknownMime = "application/octet-stream"

// sniffedType is the identity detected from the file's bytes.
type sniffedType struct {
	MimeType  string
	Extension string
	mt        *mimetype.MIME
}

// isCompoundFile reports whether the detected type is the legacy Office
// container or one of its refinements: real .doc/.xls files carry a root
// CLSID or BIFF sub-header that resolves them past the container to
// application/msword / application/vnd.ms-excel, but their ancestry still
// roots at it.
func (s sniffedType) isCompoundFile() bool {
	for mt := s.mt; mt != nil; mt = mt.Parent() {
		if mt.Is(compoundFileMime) {
			return true
		}
	}
	return false
}

func (s sniffedType) isPDF() bool { return s.mt != nil && s.mt.Is("application/pdf") }

// sniffContent detects the file's true type from its byte content. A ZIP
// container is rejected unconditionally regardless of what the file
// claims to be: several legacy Office formats can mask a ZIP payload, and
// ZIP is not an allowed top-level type in this system.
func sniffContent(f File, _ Policy) (sniffedType, []Violation) {
	mt := mimetype.Detect(f.Content)

	base, _, _ := strings.Cut(mt.String(), ";")
	base = strings.TrimSpace(base)
	sniffed := sniffedType{
		MimeType:  base,
		Extension: strings.TrimPrefix(mt.Extension(), "."),
		mt:        mt,
	}

	if base == unknownMime {
		return sniffed, []Violation{{
			Message: fmt.Sprintf("could not determine file type of %s", f.Name),
			Field:   "fileName",
		}}
	}

	if mt.Is("application/zip") || sniffed.Extension == "zip" {
		return sniffed, []Violation{{
			Message: fmt.Sprintf("%s is a zip archive, which is not allowed", f.Name),
			Field:   "fileName",
		}}
	}

	return sniffed, nil
}

// crossValidate is the spoofing defense: the sniffed identity must be in
// the allow-lists and must agree with at least one of the declared
// extension or declared MIME type. The compound-file container is the one
// documented escape hatch.
func crossValidate(f File, sniffed sniffedType, p Policy) []Violation {
	if sniffed.isCompoundFile() {
		return nil
	}

	allowed := p.ExtensionAllowed(sniffed.Extension) && p.MimeAllowed(sniffed.MimeType)
	matchesDeclared := sniffed.Extension == f.Extension() ||
		strings.EqualFold(sniffed.MimeType, f.DeclaredMime)

	if allowed && matchesDeclared {
		return nil
	}

	return []Violation{{
		Message: fmt.Sprintf("signature mismatch: %s declared as %s (%s) but detected as %s (%s)",
			f.Name, f.Extension(), f.DeclaredMime, sniffed.Extension, sniffed.MimeType),
		Field: "mimeType",
	}}
}
