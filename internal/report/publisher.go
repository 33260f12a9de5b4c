package report

import (
	"bytes"
	"context"
	"log/slog"
	"path"

	"github.com/mind-engage/mindengage-coach/internal/session"
	"github.com/mind-engage/mindengage-coach/internal/storage"
	syncx "github.com/mind-engage/mindengage-coach/internal/sync"
)

// Publisher renders submitted sessions and stores them in blob storage.
type Publisher struct {
	Blobs  storage.BlobStore
	PDF    *ChromeRenderer   // optional; nil stores HTML
	Events *syncx.EventRepo // optional
	Log    *slog.Logger
}

// Key returns the blob key for a session report with the given extension.
func Key(tenantID, sessionID, ext string) string {
	return path.Join("reports", tenantID, sessionID+"."+ext)
}

func (p *Publisher) Publish(ctx context.Context, v session.View) (string, error) {
	html, err := RenderHTML(Assemble(v))
	if err != nil {
		return "", err
	}
	data, ext, ctype := html, "html", "text/html; charset=utf-8"
	if p.PDF != nil && p.PDF.Binary != "" {
		pdf, err := p.PDF.RenderPDF(ctx, html)
		if err != nil {
			// fall back to the HTML document
			p.log().Warn("pdf rendering failed, storing html", "session", v.Session.ID, "error", err)
		} else {
			data, ext, ctype = pdf, "pdf", "application/pdf"
		}
	}
	key, err := p.Blobs.Put(ctx, Key(v.Session.TenantID, v.Session.ID, ext), ctype, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	if p.Events != nil {
		ev := syncx.NewEvent(v.Session.TenantID, syncx.TypeReportGenerated, v.Session.ID, "",
			map[string]any{"key": key, "content_type": ctype, "bytes": len(data)})
		if err := p.Events.Append(ctx, ev); err != nil {
			p.log().Warn("report event not recorded", "session", v.Session.ID, "error", err)
		}
	}
	p.log().Info("report stored", "session", v.Session.ID, "key", key)
	return key, nil
}

func (p *Publisher) log() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.Default()
}

// ContentType guesses the stored report type from its key.
func ContentType(key string) string {
	switch path.Ext(key) {
	case ".pdf":
		return "application/pdf"
	case ".html":
		return "text/html; charset=utf-8"
	}
	return "application/octet-stream"
}
