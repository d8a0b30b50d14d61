package validate

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// specialFormatChecks maps the extensions that cannot be identified by
// magic-byte sniffing to their structural heuristic. The set is closed;
// adding a format means adding an entry here.
var specialFormatChecks = map[string]func(File) *Violation{
	"html": checkHTML,
	"prj":  checkPRJ,
	"gis":  checkGIS,
	"dbf":  checkDBF,
	"shp":  checkShapefile,
	"shx":  checkShapefile,
}

// textPreviewLength bounds how much of the file is decoded for the
// text-based heuristics.
const textPreviewLength = 200

// dbfVersionMarkers are the valid dBASE version bytes, as two hex digits.
var dbfVersionMarkers = map[string]bool{
	"02": true, "03": true, "04": true, "05": true,
	"30": true, "31": true, "32": true,
	"43": true, "63": true,
	"83": true, "8b": true, "8e": true,
	"cb": true, "f5": true, "fb": true,
}

// shapefileMagic is the big-endian ESRI shapefile file code (9994), as
// eight hex digits. Both .shp and .shx share it.
const shapefileMagic = "0000270a"

func textPreview(content []byte) string {
	if len(content) > textPreviewLength {
		content = content[:textPreviewLength]
	}
	return string(content)
}

func formatViolation(f File, format string) *Violation {
	return &Violation{
		Message: fmt.Sprintf("%s is not a valid %s file", f.Name, format),
		Field:   "fileName",
	}
}

func checkHTML(f File) *Violation {
	preview := strings.ToLower(textPreview(f.Content))
	if strings.Contains(preview, "<html") || strings.Contains(preview, "<!doctype html") {
		return nil
	}
	return formatViolation(f, "html")
}

func checkPRJ(f File) *Violation {
	text := string(f.Content)
	if strings.HasPrefix(text, "PROJCS[") || strings.HasPrefix(text, "GEOGCS[") {
		return nil
	}
	return formatViolation(f, "prj")
}

func checkGIS(f File) *Violation {
	preview := strings.ToLower(textPreview(f.Content))
	for _, marker := range []string{"coordinate", "longitude", "latitude"} {
		if strings.Contains(preview, marker) {
			return nil
		}
	}
	return formatViolation(f, "gis")
}

func checkDBF(f File) *Violation {
	if len(f.Content) == 0 {
		return formatViolation(f, "dbf")
	}
	if dbfVersionMarkers[hex.EncodeToString(f.Content[:1])] {
		return nil
	}
	return formatViolation(f, "dbf")
}

func checkShapefile(f File) *Violation {
	if len(f.Content) < 4 {
		return formatViolation(f, f.Extension())
	}
	if hex.EncodeToString(f.Content[:4]) == shapefileMagic {
		return nil
	}
	return formatViolation(f, f.Extension())
}
