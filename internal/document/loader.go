// Package document extracts raw text from uploaded files and remote pages.
package document

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
)

// Document is an uploaded file after text extraction. It lives only for the
// request that ingests it; the vector store keeps the chunk copies.
type Document struct {
	Name       string
	Type       string
	Text       string
	Size       int64
	UploadedAt time.Time
}

var (
	// ErrUnsupported is returned for file types other than pdf, docx, txt.
	ErrUnsupported = errors.New("unsupported file type")
	// ErrEmpty is returned when extraction yields no text content.
	ErrEmpty = errors.New("no text content found in document")
)

// Loader extracts text from uploaded files.
type Loader struct {
	httpClient *http.Client
}

// NewLoader creates a loader. The HTTP client is used for URL ingestion only.
func NewLoader() *Loader {
	return &Loader{httpClient: &http.Client{Timeout: 30 * time.Second}}
}

// Load extracts text from the uploaded bytes based on the filename extension.
// A corrupt or unsupported file yields an error and nothing is indexed.
func (l *Loader) Load(name string, data []byte) (*Document, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	var (
		text string
		err  error
	)
	switch ext {
	case "pdf":
		text, err = extractPDF(data)
	case "docx":
		text, err = extractDOCX(data)
	case "txt":
		text, err = extractTXT(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmpty
	}
	return &Document{
		Name:       name,
		Type:       ext,
		Text:       text,
		Size:       int64(len(data)),
		UploadedAt: time.Now(),
	}, nil
}

// LoadURL fetches a web page and extracts its readable article text.
func (l *Loader) LoadURL(ctx context.Context, rawURL string) (*Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch url: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read url body: %w", err)
	}
	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return nil, fmt.Errorf("extract article: %w", err)
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return nil, ErrEmpty
	}
	name := article.Title
	if strings.TrimSpace(name) == "" {
		name = u.Host + u.Path
	}
	return &Document{
		Name:       name,
		Type:       "url",
		Text:       text,
		Size:       int64(len(body)),
		UploadedAt: time.Now(),
	}, nil
}

// extractPDF pulls plain text page by page, prefixing each page with a
// [Page N] marker so answers can cite page positions.
func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf extraction: %w", err)
	}
	var sb strings.Builder
	for n := 1; n <= r.NumPage(); n++ {
		page := r.Page(n)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		fmt.Fprintf(&sb, "\n[Page %d]\n%s\n", n, content)
	}
	return sb.String(), nil
}

// docx body elements we care about: w:p paragraphs containing w:t text runs.
type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []struct {
		Text string `xml:"t"`
	} `xml:"r"`
}

// extractDOCX reads word/document.xml from the OOXML container and joins the
// paragraph texts, one paragraph per line.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("docx extraction: %w", err)
	}
	var docXML []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("docx extraction: %w", err)
		}
		docXML, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("docx extraction: %w", err)
		}
		break
	}
	if docXML == nil {
		return "", fmt.Errorf("docx extraction: word/document.xml missing")
	}
	var doc docxDocument
	if err := xml.Unmarshal(docXML, &doc); err != nil {
		return "", fmt.Errorf("docx extraction: %w", err)
	}
	var parts []string
	for _, p := range doc.Body.Paragraphs {
		var line strings.Builder
		for _, run := range p.Runs {
			line.WriteString(run.Text)
		}
		if strings.TrimSpace(line.String()) != "" {
			parts = append(parts, line.String())
		}
	}
	return strings.Join(parts, "\n"), nil
}

// extractTXT decodes the bytes as UTF-8, replacing invalid sequences instead
// of rejecting the file.
func extractTXT(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}
