package validate

import "strings"

// Violation describes a single user-correctable problem with an uploaded
// file. Violations are returned as data, never as errors, so that one
// request can report every problem at once.
type Violation struct {
	Message string `json:"message"`
	Field   string `json:"field_reference"`
}

// Policy is the immutable allow-list a file is validated against. It is
// passed explicitly into every call; validators never consult ambient
// configuration.
type Policy struct {
	AllowedExtensions []string
	AllowedMimeTypes  []string
	MaxFileSizeBytes  int64
}

// ExtensionAllowed reports whether ext (without a leading dot) is in the
// policy's extension allow-list. Comparison is case-insensitive.
func (p Policy) ExtensionAllowed(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, e := range p.AllowedExtensions {
		if strings.ToLower(strings.TrimPrefix(e, ".")) == ext {
			return true
		}
	}
	return false
}

// MimeAllowed reports whether mimeType is in the policy's MIME allow-list.
func (p Policy) MimeAllowed(mimeType string) bool {
	for _, m := range p.AllowedMimeTypes {
		if strings.EqualFold(m, mimeType) {
			return true
		}
	}
	return false
}

// File is a candidate upload: the raw bytes plus everything the client
// declared about them. Validation trusts none of the declared fields.
type File struct {
	Name         string
	DeclaredMime string
	DeclaredSize int64
	Content      []byte
}

// Extension returns the candidate's declared extension, lowercased,
// without the leading dot. Empty if the name has no extension.
func (f File) Extension() string {
	idx := strings.LastIndex(f.Name, ".")
	if idx < 0 || idx == len(f.Name)-1 {
		return ""
	}
	return strings.ToLower(f.Name[idx+1:])
}
