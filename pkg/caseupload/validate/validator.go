// Package validate inspects uploaded file bytes against their declared
// metadata and an allow-list policy. All checks are pure functions over
// the candidate bytes; the package performs no I/O.
//
// Checks run in a fixed order and short-circuit at the first failing
// group: basic attributes, declared MIME allow-list, special text-format
// heuristics, byte-signature sniffing, declared/sniffed cross-validation,
// and finally encryption detection. A step may emit several violations at
// once, but once a group fails no deeper group runs, since later checks
// assume the structural guarantees of earlier ones.
package validate

import (
	"fmt"
	"regexp"
)

const maxFileNameLength = 255

var fileNamePattern = regexp.MustCompile(`^[a-zA-Z0-9._\- ]+$`)

// Validate runs every check group against the candidate file. An empty
// result means the file is acceptable.
func Validate(f File, p Policy) []Violation {
	if vs := checkBasicAttributes(f, p); len(vs) > 0 {
		return vs
	}

	if !p.MimeAllowed(f.DeclaredMime) {
		return []Violation{{
			Message: fmt.Sprintf("%s: file type %q is not allowed", f.Name, f.DeclaredMime),
			Field:   "mimeType",
		}}
	}

	// Formats that are ambiguous under byte-signature detection are
	// validated by structural heuristics instead, and validation ends
	// there on success.
	if check, ok := specialFormatChecks[f.Extension()]; ok {
		if v := check(f); v != nil {
			return []Violation{*v}
		}
		return nil
	}

	sniffed, vs := sniffContent(f, p)
	if len(vs) > 0 {
		return vs
	}

	if vs := crossValidate(f, sniffed, p); len(vs) > 0 {
		return vs
	}

	if v := checkEncryption(f, sniffed); v != nil {
		return []Violation{*v}
	}

	return nil
}

// checkBasicAttributes validates size and name before anything looks at
// the bytes. Violations here are cumulative: a file can be both too large
// and badly named.
func checkBasicAttributes(f File, p Policy) []Violation {
	var vs []Violation

	if f.DeclaredSize <= 0 {
		vs = append(vs, Violation{
			Message: fmt.Sprintf("%s is empty", f.Name),
			Field:   "sizeBytes",
		})
	} else if f.DeclaredSize > p.MaxFileSizeBytes {
		vs = append(vs, Violation{
			Message: fmt.Sprintf("%s must be smaller than %d bytes", f.Name, p.MaxFileSizeBytes),
			Field:   "sizeBytes",
		})
	}

	if len(f.Name) > maxFileNameLength {
		vs = append(vs, Violation{
			Message: fmt.Sprintf("file name is longer than %d characters", maxFileNameLength),
			Field:   "fileName",
		})
	} else if !fileNamePattern.MatchString(f.Name) {
		vs = append(vs, Violation{
			Message: fmt.Sprintf("%s: file name contains special characters", f.Name),
			Field:   "fileName",
		})
	}

	return vs
}
