package gonotifications

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-notifications/pkg/onready"
	"github.com/goliatone/go-schooldocs/docgen"
)

// ReadyEvent is the lifecycle event that triggers a notification.
const ReadyEvent = "document.export.ready"

// Config configures the ready notifier.
type Config struct {
	// DownloadURL is the artifact route prefix, e.g.
	// "https://school.example/api/docgen/artifacts". The document key is
	// appended as the last path segment.
	DownloadURL string
	Channels    []string
	Locale      string
	// TTL is how long the artifact is kept; zero leaves ExpiresAt empty.
	TTL time.Duration
}

// Notifier tells the exporting actor that a document is ready through
// go-notifications. Other lifecycle events are ignored.
type Notifier struct {
	delegate onready.OnReadyNotifier
	cfg      Config
}

var _ docgen.ChangeEmitter = (*Notifier)(nil)

func NewNotifier(delegate onready.OnReadyNotifier, cfg Config) *Notifier {
	return &Notifier{delegate: delegate, cfg: cfg}
}

func (n *Notifier) Emit(ctx context.Context, evt docgen.ChangeEvent) error {
	if evt.Name != ReadyEvent {
		return nil
	}
	if n == nil || n.delegate == nil {
		return docgen.NewError(docgen.KindNotImpl, "go-notifications notifier not configured", nil)
	}
	if evt.Actor.ID == "" {
		return nil
	}
	return n.delegate.Send(ctx, n.event(evt))
}

func (n *Notifier) event(evt docgen.ChangeEvent) onready.OnReadyEvent {
	filename, _ := evt.Metadata["filename"].(string)
	pages, _ := evt.Metadata["pages"].(int)

	payload := onready.OnReadyEvent{
		Recipients: []string{evt.Actor.ID},
		Locale:     n.cfg.Locale,
		TenantID:   evt.Actor.TenantID,
		ActorID:    evt.Actor.ID,
		Channels:   n.cfg.Channels,
		FileName:   filename,
		Format:     "pdf",
		URL:        n.downloadURL(evt.DocumentKey),
		Parts:      pages,
		Message:    fmt.Sprintf("Your %s is ready", strings.ReplaceAll(string(evt.DocumentType), "_", " ")),
	}
	if n.cfg.TTL > 0 && !evt.Timestamp.IsZero() {
		payload.ExpiresAt = evt.Timestamp.Add(n.cfg.TTL).UTC().Format(time.RFC3339)
	}
	return payload
}

func (n *Notifier) downloadURL(key string) string {
	base := strings.TrimRight(strings.TrimSpace(n.cfg.DownloadURL), "/")
	if base == "" || key == "" {
		return ""
	}
	return base + "/" + url.PathEscape(key)
}
