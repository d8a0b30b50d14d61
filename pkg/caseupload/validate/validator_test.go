package validate_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casevault/casevault/pkg/caseupload/validate"
)

func testPolicy() validate.Policy {
	return validate.Policy{
		AllowedExtensions: []string{"pdf", "png", "doc", "xls", "html", "prj", "gis", "dbf", "shp", "shx"},
		AllowedMimeTypes: []string{
			"application/pdf", "image/png", "application/msword",
			"application/vnd.ms-excel", "text/html", "text/plain",
		},
		MaxFileSizeBytes: 2048,
	}
}

// minimalPDF builds a parseable one-page PDF with a correct xref table.
func minimalPDF(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	offsets := make([]int, 4)

	buf.WriteString("%PDF-1.4\n")
	offsets[1] = buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	offsets[2] = buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	offsets[3] = buf.Len()
	buf.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n")

	xref := buf.Len()
	buf.WriteString("xref\n0 4\n")
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= 3; i++ {
		buf.WriteString(fmt.Sprintf("%010d 00000 n \n", offsets[i]))
	}
	buf.WriteString("trailer\n<< /Size 4 /Root 1 0 R >>\nstartxref\n")
	buf.WriteString(fmt.Sprintf("%d\n", xref))
	buf.WriteString("%%EOF\n")

	return buf.Bytes()
}

func pngBytes() []byte {
	return append([]byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}, make([]byte, 24)...)
}

func TestValidateAcceptsCleanPDF(t *testing.T) {
	content := minimalPDF(t)
	f := validate.File{
		Name:         "invoice.pdf",
		DeclaredMime: "application/pdf",
		DeclaredSize: 1024,
		Content:      content,
	}

	policy := validate.Policy{
		AllowedExtensions: []string{"pdf"},
		AllowedMimeTypes:  []string{"application/pdf"},
		MaxFileSizeBytes:  2048,
	}

	vs := validate.Validate(f, policy)
	assert.Empty(t, vs)
}

func TestValidateBasicAttributes(t *testing.T) {
	tests := []struct {
		name     string
		file     validate.File
		messages []string
	}{
		{
			name: "empty file",
			file: validate.File{Name: "a.pdf", DeclaredMime: "application/pdf", DeclaredSize: 0},
			messages: []string{"is empty"},
		},
		{
			name: "too large",
			file: validate.File{Name: "a.pdf", DeclaredMime: "application/pdf", DeclaredSize: 4096},
			messages: []string{"must be smaller than"},
		},
		{
			name: "special characters",
			file: validate.File{Name: "a;rm.pdf", DeclaredMime: "application/pdf", DeclaredSize: 10},
			messages: []string{"special characters"},
		},
		{
			name: "name too long",
			file: validate.File{Name: strings.Repeat("a", 270) + ".pdf", DeclaredMime: "application/pdf", DeclaredSize: 10},
			messages: []string{"longer than 255"},
		},
		{
			name: "too large and bad name reported together",
			file: validate.File{Name: "bad\x00name.pdf", DeclaredMime: "application/pdf", DeclaredSize: 4096},
			messages: []string{"must be smaller than", "special characters"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs := validate.Validate(tt.file, testPolicy())
			require.Len(t, vs, len(tt.messages))
			for i, want := range tt.messages {
				assert.Contains(t, vs[i].Message, want)
			}
		})
	}
}

func TestValidateSizeFailureSkipsSignatureCheck(t *testing.T) {
	// The content is garbage that would fail sniffing, but a 2MB file
	// against a 1MB limit must report only the size violation.
	f := validate.File{
		Name:         "huge.pdf",
		DeclaredMime: "application/pdf",
		DeclaredSize: 2 << 20,
		Content:      []byte{0x00, 0x01, 0x02, 0x03},
	}
	policy := testPolicy()
	policy.MaxFileSizeBytes = 1 << 20

	vs := validate.Validate(f, policy)
	require.Len(t, vs, 1)
	assert.Contains(t, vs[0].Message, "must be smaller than")
}

func TestValidateDeclaredMimeNotAllowed(t *testing.T) {
	f := validate.File{
		Name:         "movie.avi",
		DeclaredMime: "video/x-msvideo",
		DeclaredSize: 100,
		Content:      pngBytes(),
	}

	vs := validate.Validate(f, testPolicy())
	require.Len(t, vs, 1)
	assert.Contains(t, vs[0].Message, "not allowed")
}

func TestValidateSignatureMismatch(t *testing.T) {
	// EXE magic declared as a PNG.
	exe := append([]byte("MZ"), make([]byte, 62)...)
	f := validate.File{
		Name:         "image.png",
		DeclaredMime: "image/png",
		DeclaredSize: int64(len(exe)),
		Content:      exe,
	}

	vs := validate.Validate(f, testPolicy())
	require.Len(t, vs, 1)
	assert.Contains(t, vs[0].Message, "signature mismatch")
	assert.Contains(t, vs[0].Message, "png (image/png)")
	assert.Contains(t, vs[0].Message, "exe")
}

func TestValidateSpoofedTypeWithinAllowList(t *testing.T) {
	// PNG bytes declared as a PDF: both types are allowed, but the
	// declared and sniffed identities disagree on every axis.
	f := validate.File{
		Name:         "report.pdf",
		DeclaredMime: "application/pdf",
		DeclaredSize: 32,
		Content:      pngBytes(),
	}

	vs := validate.Validate(f, testPolicy())
	require.Len(t, vs, 1)
	assert.Contains(t, vs[0].Message, "signature mismatch")
}

func TestValidateRejectsZipRegardlessOfDeclaration(t *testing.T) {
	zip := append([]byte{0x50, 0x4b, 0x03, 0x04}, make([]byte, 28)...)

	policy := testPolicy()
	policy.AllowedExtensions = append(policy.AllowedExtensions, "zip")
	policy.AllowedMimeTypes = append(policy.AllowedMimeTypes, "application/zip")

	f := validate.File{
		Name:         "archive.zip",
		DeclaredMime: "application/zip",
		DeclaredSize: int64(len(zip)),
		Content:      zip,
	}

	vs := validate.Validate(f, policy)
	require.Len(t, vs, 1)
	assert.Contains(t, vs[0].Message, "zip archive")
}

func TestValidateUndeterminedType(t *testing.T) {
	f := validate.File{
		Name:         "mystery.pdf",
		DeclaredMime: "application/pdf",
		DeclaredSize: 16,
		Content:      []byte{0x00, 0x00, 0x00, 0x00, 0xff, 0x00, 0x00, 0xfe, 0x00, 0x00, 0x00, 0x00},
	}

	vs := validate.Validate(f, testPolicy())
	require.Len(t, vs, 1)
	assert.Contains(t, vs[0].Message, "could not determine file type")
}

func TestValidateCorruptCompoundFileFailsClosed(t *testing.T) {
	// A valid OLE2 signature over an unparseable directory must be
	// reported as password protection, never silently passed.
	content := append([]byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}, make([]byte, 1016)...)

	f := validate.File{
		Name:         "legacy.doc",
		DeclaredMime: "application/msword",
		DeclaredSize: int64(len(content)),
		Content:      content,
	}

	vs := validate.Validate(f, testPolicy())
	require.Len(t, vs, 1)
	assert.Contains(t, vs[0].Message, "password protected")
}

func TestValidateRefinedCompoundFileStillChecked(t *testing.T) {
	// A BIFF8 BOF sub-header at offset 512 makes the sniffer resolve the
	// container past application/x-ole-storage to application/vnd.ms-excel.
	// The refined type must still go through the container's encryption
	// checks; here the directory is unparseable, so it fails closed.
	content := make([]byte, 1024)
	copy(content, []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1})
	copy(content[512:], []byte{0x09, 0x08, 0x10, 0x00, 0x00, 0x06, 0x05, 0x00})

	f := validate.File{
		Name:         "ledger.xls",
		DeclaredMime: "application/vnd.ms-excel",
		DeclaredSize: int64(len(content)),
		Content:      content,
	}

	vs := validate.Validate(f, testPolicy())
	require.Len(t, vs, 1)
	assert.Contains(t, vs[0].Message, "password protected")
}

func TestValidateEncryptedPDF(t *testing.T) {
	// Garbage behind a PDF signature does not parse; per policy that is
	// reported as password protection.
	content := append([]byte("%PDF-1.7\n"), []byte("not actually a pdf body")...)

	f := validate.File{
		Name:         "secret.pdf",
		DeclaredMime: "application/pdf",
		DeclaredSize: int64(len(content)),
		Content:      content,
	}

	vs := validate.Validate(f, testPolicy())
	require.Len(t, vs, 1)
	assert.Contains(t, vs[0].Message, "password protected")
}
