package media

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

const (
	// MaxDocumentSize limits the HTML kept for probing.
	MaxDocumentSize = 10 * 1024 * 1024

	// maxFrameDepth bounds recursion into iframe srcdoc documents.
	maxFrameDepth = 3
)

// durationSelectors are tried in order; each names the attribute it reads.
var durationSelectors = []struct {
	selector string
	attr     string
}{
	{"video[duration]", "duration"},
	{"video[data-duration]", "data-duration"},
	{"wistia-player[data-duration]", "data-duration"},
	{"wistia-player video[data-duration]", "data-duration"},
	{"[data-video-duration]", "data-video-duration"},
}

const durationMetaXPath = `//meta[@property='og:video:duration' or @property='video:duration' or @name='video:duration' or @itemprop='duration']`

// DocumentStore remembers the last HTML document served to the page.
type DocumentStore struct {
	mu   sync.RWMutex
	data []byte
	url  string
}

// NewDocumentStore creates an empty store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{}
}

// Remember replaces the stored document. Oversized documents are ignored.
func (s *DocumentStore) Remember(url string, data []byte) bool {
	if len(data) == 0 || len(data) > MaxDocumentSize {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = bytes.Clone(data)
	s.url = url
	return true
}

// Latest returns the stored document and the URL it was served for.
func (s *DocumentStore) Latest() ([]byte, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data, s.url
}

// DocumentProbe reads the duration out of the stored document.
type DocumentProbe struct {
	store *DocumentStore
}

// NewDocumentProbe creates a probe over store.
func NewDocumentProbe(store *DocumentStore) *DocumentProbe {
	return &DocumentProbe{store: store}
}

func (p *DocumentProbe) Duration(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	data, _ := p.store.Latest()
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: no document loaded", ErrNoDuration)
	}
	d, err := FromHTML(data)
	if err != nil {
		return 0, err
	}
	return d, nil
}

// FromHTML extracts the media duration from an HTML document, rounded up
// to whole seconds.
func FromHTML(data []byte) (float64, error) {
	doc, err := LoadHTML(data)
	if err != nil {
		return 0, fmt.Errorf("parse failed: %w", err)
	}
	if d, ok := fromSelection(doc.Selection, 0); ok {
		return math.Ceil(d), nil
	}

	node, err := LoadHTMLNode(data)
	if err != nil {
		return 0, fmt.Errorf("parse failed: %w", err)
	}
	if d, ok := fromMeta(node); ok {
		return math.Ceil(d), nil
	}
	return 0, ErrNoDuration
}

func fromSelection(sel *goquery.Selection, depth int) (float64, bool) {
	for _, ds := range durationSelectors {
		var found float64
		sel.Find(ds.selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			d, ok := parseSeconds(s.AttrOr(ds.attr, ""))
			if ok {
				found = d
			}
			return !ok
		})
		if found > 0 {
			return found, true
		}
	}

	if depth >= maxFrameDepth {
		return 0, false
	}

	var found float64
	sel.Find("iframe[srcdoc]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		inner, err := goquery.NewDocumentFromReader(strings.NewReader(s.AttrOr("srcdoc", "")))
		if err != nil {
			return true
		}
		d, ok := fromSelection(inner.Selection, depth+1)
		if ok {
			found = d
		}
		return !ok
	})
	return found, found > 0
}

func fromMeta(node *html.Node) (float64, bool) {
	metas, err := htmlquery.QueryAll(node, durationMetaXPath)
	if err != nil {
		return 0, false
	}
	for _, m := range metas {
		if d, ok := parseISODuration(htmlquery.SelectAttr(m, "content")); ok {
			return d, true
		}
		if d, ok := parseSeconds(htmlquery.SelectAttr(m, "content")); ok {
			return d, true
		}
	}
	return 0, false
}

// DetectCharset detects and returns charset from HTML bytes
func DetectCharset(data []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

// LoadHTML loads HTML with automatic charset detection
func LoadHTML(data []byte) (*goquery.Document, error) {
	r, err := charset.NewReader(bytes.NewReader(data), "text/html; charset="+DetectCharset(data))
	if err != nil {
		return goquery.NewDocumentFromReader(bytes.NewReader(data))
	}
	return goquery.NewDocumentFromReader(r)
}

// LoadHTMLNode loads HTML into an xpath-compatible node
func LoadHTMLNode(data []byte) (*html.Node, error) {
	r, err := charset.NewReader(bytes.NewReader(data), "text/html; charset="+DetectCharset(data))
	if err != nil {
		return htmlquery.Parse(bytes.NewReader(data))
	}
	return htmlquery.Parse(r)
}

// parseISODuration handles the schema.org form, e.g. "PT1M33S".
func parseISODuration(s string) (float64, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "PT") {
		return 0, false
	}
	s = s[2:]

	total := 0.0
	num := ""
	for _, r := range s {
		switch r {
		case 'H', 'M', 'S':
			v, ok := parseSeconds(num)
			if !ok && num != "0" {
				return 0, false
			}
			switch r {
			case 'H':
				total += v * 3600
			case 'M':
				total += v * 60
			default:
				total += v
			}
			num = ""
		default:
			num += string(r)
		}
	}
	if num != "" {
		return 0, false
	}
	return total, valid(total)
}
