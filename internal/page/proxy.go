package page

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/aptools/internal/domain/media"
)

// NewProxy creates a reverse proxy to target whose requests pass through the
// runtime's interceptor. Top-level HTML documents are reported to the runtime.
func NewProxy(target *url.URL, rt *Runtime) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Host = target.Host
		},
		Transport: rt.Transport(),
		ModifyResponse: func(resp *http.Response) error {
			return observeDocument(target, rt, resp)
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			rt.logger.Warn("Proxy request failed", zap.String("path", r.URL.Path), zap.Error(err))
			w.WriteHeader(http.StatusBadGateway)
		},
	}
}

// observeDocument hands a top-level HTML document to the runtime and leaves
// the response body intact for the client.
func observeDocument(target *url.URL, rt *Runtime, resp *http.Response) error {
	kind := documentKind(resp)
	if kind == notDocument {
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, media.MaxDocumentSize+1))
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	resp.Body = readCloser{io.MultiReader(bytes.NewReader(raw), resp.Body), resp.Body}
	if len(raw) > media.MaxDocumentSize {
		return nil
	}

	body, err := decode(resp.Header.Get("Content-Encoding"), raw)
	if err != nil {
		rt.logger.Debug("Skipped undecodable document", zap.Error(err))
		body = nil
	}
	if kind == maybeDocument && (body == nil || !mimetype.Detect(body).Is("text/html")) {
		return nil
	}

	pageURL := target.ResolveReference(&url.URL{Path: resp.Request.URL.Path, RawQuery: resp.Request.URL.RawQuery})
	rt.DocumentLoaded(pageURL.String(), body)
	return nil
}

type docKind int

const (
	notDocument docKind = iota
	isDocument
	// maybeDocument has no Content-Type; its body is sniffed.
	maybeDocument
)

func documentKind(resp *http.Response) docKind {
	req := resp.Request
	if req == nil || req.Method != http.MethodGet || resp.StatusCode != http.StatusOK {
		return notDocument
	}
	if dest := req.Header.Get("Sec-Fetch-Dest"); dest != "" && dest != "document" {
		return notDocument
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		return maybeDocument
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "text/html" {
		return notDocument
	}
	return isDocument
}

// decode undoes a content coding. Unsupported codings are an error.
func decode(coding string, data []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(coding)) {
	case "", "identity":
		return data, nil
	case "gzip", "x-gzip":
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(io.LimitReader(r, media.MaxDocumentSize))
	case "deflate":
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(io.LimitReader(r, media.MaxDocumentSize))
	case "zstd":
		d, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(media.MaxDocumentSize))
		if err != nil {
			return nil, err
		}
		defer d.Close()
		return d.DecodeAll(data, nil)
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", coding)
	}
}

type readCloser struct {
	io.Reader
	io.Closer
}
