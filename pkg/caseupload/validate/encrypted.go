package validate

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/richardlehane/mscfb"
	"rsc.io/pdf"
)

// filePassRecord is the BIFF record type Excel writes when a workbook is
// encrypted.
const filePassRecord = 0x002F

// wordEncryptedOffset is the byte of the Word FIB holding the
// password-protection bit.
const (
	wordEncryptedOffset = 11
	wordEncryptedBit    = 0x01
)

// encryptedStreamNames are compound-file stream names whose mere presence
// marks the container as encrypted.
var encryptedStreamNames = map[string]bool{
	"encryptedstream":  true,
	"encryptedpackage": true,
	"encryptioninfo":   true,
}

// checkEncryption detects password protection for the formats that
// support it. It runs only after every earlier check group has passed.
// Parse failures are treated conservatively as encrypted rather than
// letting an unreadable file through.
func checkEncryption(f File, sniffed sniffedType) *Violation {
	switch {
	case sniffed.isPDF():
		if pdfIsProtected(f.Content) {
			return protectedViolation(f)
		}
	case sniffed.isCompoundFile():
		if compoundFileIsProtected(f.Content) {
			return protectedViolation(f)
		}
	}
	return nil
}

func protectedViolation(f File) *Violation {
	return &Violation{
		Message: fmt.Sprintf("%s is password protected", f.Name),
		Field:   "fileName",
	}
}

// pdfIsProtected reports whether the PDF cannot be opened without a
// password. A parse failure counts as protection, not corruption; a
// corrupted-but-unencrypted PDF is therefore misclassified as encrypted.
// That approximation is kept intentionally.
func pdfIsProtected(content []byte) (protected bool) {
	defer func() {
		if recover() != nil {
			protected = true
		}
	}()

	_, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	return err != nil
}

// compoundFileIsProtected walks the container's stream directory looking
// for encryption markers: the well-known encrypted stream names, the
// password bit in the Word FIB, and a FILEPASS record in the Excel
// workbook stream. Any parse failure fails closed.
func compoundFileIsProtected(content []byte) bool {
	doc, err := mscfb.New(bytes.NewReader(content))
	if err != nil {
		return true
	}

	for {
		entry, err := doc.Next()
		if err == io.EOF {
			return false
		}
		if err != nil {
			return true
		}

		name := strings.ToLower(entry.Name)
		if encryptedStreamNames[name] {
			return true
		}

		switch name {
		case "worddocument":
			if wordStreamIsProtected(entry) {
				return true
			}
		case "workbook", "book":
			if workbookHasFilePass(entry) {
				return true
			}
		}
	}
}

func wordStreamIsProtected(r io.Reader) bool {
	fib := make([]byte, wordEncryptedOffset+1)
	if _, err := io.ReadFull(r, fib); err != nil {
		return true
	}
	return fib[wordEncryptedOffset]&wordEncryptedBit != 0
}

// workbookHasFilePass scans the stream's BIFF records. Each record is a
// 16-bit type and 16-bit length, both little-endian, followed by the
// payload.
func workbookHasFilePass(r io.Reader) bool {
	var header [4]byte
	for {
		_, err := io.ReadFull(r, header[:])
		if err == io.EOF {
			return false
		}
		if err != nil {
			return true
		}

		recordType := binary.LittleEndian.Uint16(header[0:2])
		if recordType == filePassRecord {
			return true
		}

		recordLen := binary.LittleEndian.Uint16(header[2:4])
		if _, err := io.CopyN(io.Discard, r, int64(recordLen)); err != nil {
			return true
		}
	}
}
