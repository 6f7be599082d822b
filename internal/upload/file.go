package upload

import (
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Ashfaaq98/insights-console/internal/api"
)

// AcceptedMIME is the only content type the backend ingests.
const AcceptedMIME = "application/pdf"

// File is one locally selected file.
type File struct {
	Name string
	Path string
	Size int64
	MIME string
}

// Accepted reports whether f passes the upload filter.
func (f File) Accepted() bool { return f.MIME == AcceptedMIME }

// UploadFile converts f to the API client's representation.
func (f File) UploadFile() api.UploadFile {
	return api.UploadFile{Name: f.Name, Path: f.Path, MIME: f.MIME}
}

// Inspect stats path and determines its content type from the leading bytes,
// falling back to the extension when sniffing is inconclusive. Unreadable
// paths are returned with an empty MIME so the filter rejects them.
func Inspect(path string) File {
	f := File{Name: filepath.Base(path), Path: path}
	st, err := os.Stat(path)
	if err != nil || st.IsDir() {
		return f
	}
	f.Size = st.Size()
	f.MIME = detectMIME(path)
	return f
}

// InspectAll inspects every path, preserving order.
func InspectAll(paths []string) []File {
	out := make([]File, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, Inspect(p))
	}
	return out
}

func detectMIME(path string) string {
	fh, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer fh.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(fh, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return ""
	}
	sniffed := http.DetectContentType(head[:n])
	if i := strings.Index(sniffed, ";"); i >= 0 {
		sniffed = sniffed[:i]
	}
	if sniffed != "application/octet-stream" {
		return sniffed
	}
	// Unrecognized binary content: trust the extension.
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
		if i := strings.Index(byExt, ";"); i >= 0 {
			byExt = byExt[:i]
		}
		return byExt
	}
	return sniffed
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders bytes with at most two decimals, e.g. "1.5 KB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	v := float64(bytes)
	i := 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	v = math.Round(v*100) / 100
	return fmt.Sprintf("%s %s", strconv.FormatFloat(v, 'f', -1, 64), sizeUnits[i])
}

// SplitError splits a server upload error "<file>: <message>" at the first
// separator. Errors without a separator are returned whole as the file part.
func SplitError(e string) (file, message string) {
	if i := strings.Index(e, ": "); i >= 0 {
		return e[:i], e[i+2:]
	}
	return e, ""
}
