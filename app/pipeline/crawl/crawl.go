// Package crawl implements the Crawl stage (spec §4.5): fetch a URL,
// extract plain text, dedup by content hash, store it in the blob store,
// create the document row, discover outbound links, and hand off to the
// Chunk stage. Grounded in original_source/workers/crawler/worker.py's
// process_crawl_request, expressed with net/http and x/net/html instead
// of requests/BeautifulSoup.
package crawl

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/ironvale-labs/dtcforge/app/core"
	"github.com/ironvale-labs/dtcforge/pkg/pipelineerr"
	"github.com/ironvale-labs/dtcforge/pkg/types"
)

// minExtractedTextLength rejects pages that are effectively empty (nav
// chrome, paywall stubs) before they ever reach a document row.
const minExtractedTextLength = 50

// Do runs one crawl request end to end. jobID is a crawl_request ID, not a
// document ID — Crawl is the one stage whose queue payload isn't a
// document, so it advances the crawl-request and pushes jobs:chunk itself
// rather than relying on the runtime's generic StageDef.NextStage/NextQueue.
func Do(ctx context.Context, c *core.Core, jobID string) *pipelineerr.StageError {
	req, err := c.Store.Documents.GetCrawlRequest(ctx, jobID)
	if err != nil {
		return pipelineerr.Poison("crawl.Do", "crawl request not found", err)
	}

	httpCtx, cancel := context.WithTimeout(ctx, time.Duration(c.Config.Pipeline.HTTPTimeoutS)*time.Second)
	defer cancel()

	body, contentType, fetchErr := fetchWithRetry(httpCtx, req.URL)
	if fetchErr != nil {
		_ = c.Store.Documents.MarkCrawlRequestFailed(ctx, req.ID, fetchErr.Error())
		return pipelineerr.Permanent("crawl.Do", "fetch failed", fetchErr)
	}

	mimeType := detectMIME(contentType, body)
	text, title, links, extractErr := extractText(mimeType, body)
	if extractErr != nil {
		_ = c.Store.Documents.MarkCrawlRequestFailed(ctx, req.ID, extractErr.Error())
		return pipelineerr.Permanent("crawl.Do", "text extraction failed", extractErr)
	}

	if len(strings.TrimSpace(text)) < minExtractedTextLength {
		_ = c.Store.Documents.MarkCrawlRequestFailed(ctx, req.ID, "extracted text too short")
		return pipelineerr.Permanent("crawl.Do", "extracted text below minimum length", nil)
	}

	hash := sha256Hex(text)
	existing, err := c.Store.Documents.GetDocumentByContentHash(ctx, hash)
	if err != nil {
		return pipelineerr.Transient("crawl.Do", "content hash lookup failed", err)
	}
	if existing != nil {
		if err := c.Store.Documents.MarkCrawlRequestDone(ctx, req.ID, existing.ID); err != nil {
			return pipelineerr.Transient("crawl.Do", "failed to mark crawl request done", err)
		}
		return nil
	}

	documentID := uuid.NewString()
	ext := ".txt"
	if mimeType == "application/pdf" {
		ext = ".pdf.txt"
	}
	location, err := c.Blobs.Put(ctx, "", documentID+ext, []byte(text))
	if err != nil {
		return pipelineerr.Transient("crawl.Do", "blob store write failed", err)
	}

	bucket, key, _ := strings.Cut(location, "/")
	if title == "" {
		title = firstLine(text)
	}

	doc := &types.Document{
		ID:              documentID,
		Title:           title,
		SourceURL:       req.URL,
		ContentHash:     hash,
		MimeType:        mimeType,
		BlobBucket:      bucket,
		BlobKey:         key,
		ProcessingStage: types.StageChunking,
	}
	if err := c.Store.Documents.CreateDocument(ctx, doc); err != nil {
		return pipelineerr.Transient("crawl.Do", "document insert failed", err)
	}

	if req.Depth < req.MaxDepth {
		discoverLinks(ctx, c, req, links)
	}

	if err := c.Queue.Push(ctx, types.QueueChunk, documentID); err != nil {
		return pipelineerr.Transient("crawl.Do", "failed to enqueue chunk job", err)
	}

	if err := c.Store.Documents.MarkCrawlRequestDone(ctx, req.ID, documentID); err != nil {
		return pipelineerr.Transient("crawl.Do", "failed to mark crawl request done", err)
	}
	return nil
}

// fetchWithRetry implements spec §4.5's closing paragraph: 4xx retried
// once, 5xx retried up to 3 times with backoff.
func fetchWithRetry(ctx context.Context, rawURL string) ([]byte, string, error) {
	client := &http.Client{}

	var lastErr error
	for attempt, maxAttempts := 1, 1; attempt <= maxAttempts; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
		if err != nil {
			cancel()
			return nil, "", err
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			cancel()
			lastErr = err
			maxAttempts = 3
			time.Sleep(backoff(attempt))
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return body, resp.Header.Get("Content-Type"), readErr
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			maxAttempts = 2
			lastErr = errStatus(resp.StatusCode)
		default: // 5xx
			maxAttempts = 4
			lastErr = errStatus(resp.StatusCode)
		}
		time.Sleep(backoff(attempt))
	}
	return nil, "", lastErr
}

func backoff(attempt int) time.Duration {
	return time.Duration(attempt) * 500 * time.Millisecond
}

type httpStatusError struct{ code int }

func errStatus(code int) error { return &httpStatusError{code} }
func (e *httpStatusError) Error() string {
	return "non-2xx response: " + http.StatusText(e.code)
}

func detectMIME(contentType string, body []byte) string {
	switch {
	case strings.Contains(contentType, "pdf"):
		return "application/pdf"
	case strings.Contains(contentType, "html"):
		return "text/html"
	case bytes.HasPrefix(body, []byte("%PDF-")):
		return "application/pdf"
	default:
		return "text/html"
	}
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return strings.TrimSpace(text[:idx])
	}
	return strings.TrimSpace(text)
}

// discoverLinks extracts same-host outbound links and inserts them as new
// crawl-request rows one depth deeper (SPEC_FULL §12: same-host filter
// decision). Failures here never fail the crawl itself — link discovery
// is a best-effort enrichment, not part of this request's success.
func discoverLinks(ctx context.Context, c *core.Core, req *types.CrawlRequest, links []string) {
	base, err := url.Parse(req.URL)
	if err != nil {
		return
	}

	seen := map[string]struct{}{}
	for _, raw := range links {
		resolved, err := base.Parse(raw)
		if err != nil || resolved.Host != base.Host {
			continue
		}
		resolved.Fragment = ""
		canon := resolved.String()
		if _, dup := seen[canon]; dup {
			continue
		}
		seen[canon] = struct{}{}

		parentURL := req.URL
		child := &types.CrawlRequest{
			ID:        uuid.NewString(),
			URL:       canon,
			Status:    types.CrawlStatusPending,
			Depth:     req.Depth + 1,
			MaxDepth:  req.MaxDepth,
			ParentURL: &parentURL,
		}
		if err := c.Store.Documents.CreateCrawlRequest(ctx, child); err != nil {
			continue
		}
		_ = c.Queue.Push(ctx, types.QueueCrawl, child.ID)
	}
}

// extractText dispatches to the HTML or PDF text extractor and also
// returns any outbound links discovered (HTML only).
func extractText(mimeType string, body []byte) (text, title string, links []string, err error) {
	if mimeType == "application/pdf" {
		text, err = extractPDFText(body)
		return text, "", nil, err
	}
	return extractHTMLText(body)
}

func extractHTMLText(body []byte) (text, title string, links []string, err error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", "", nil, err
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "title":
				if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "a":
				for _, attr := range n.Attr {
					if attr.Key == "href" && attr.Val != "" {
						links = append(links, attr.Val)
					}
				}
			}
		}
		if n.Type == html.TextNode {
			trimmed := strings.TrimSpace(n.Data)
			if trimmed != "" {
				b.WriteString(trimmed)
				b.WriteString(" ")
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return strings.TrimSpace(b.String()), title, links, nil
}
