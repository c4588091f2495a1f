// Package wazzup parses Wazzup24 webhook batches.
package wazzup

import (
	"encoding/json"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/roboricindustries/raycon-multichat/internal/crm"
	"github.com/roboricindustries/raycon-multichat/internal/ingest"
)

// ProviderName is the registry key for this adapter.
const ProviderName = "wazzup"

type payload struct {
	// Wazzup posts {"test": true} once to validate the webhook URL.
	Test     bool          `json:"test"`
	Messages []messageItem `json:"messages"`
	Statuses []statusItem  `json:"statuses"`
}

type messageItem struct {
	MessageID  string `json:"messageId"`
	ChannelID  string `json:"channelId"`
	ChatType   string `json:"chatType"`
	ChatID     string `json:"chatId"`
	DateTime   string `json:"dateTime"`
	Type       string `json:"type"`
	IsEcho     bool   `json:"isEcho"`
	Text       string `json:"text"`
	ContentURI string `json:"contentUri"`
	AuthorName string `json:"authorName"`
	Contact    struct {
		Name string `json:"name"`
	} `json:"contact"`
}

type statusItem struct {
	MessageID string `json:"messageId"`
	ChannelID string `json:"channelId"`
	Status    string `json:"status"`
	DateTime  string `json:"dateTime"`
	Timestamp int64  `json:"timestamp"`
}

// Adapter parses Wazzup24 webhook payloads into canonical events.
// A single delivery batches independent messages and statuses.
type Adapter struct {
	logger *slog.Logger
}

// New creates the Wazzup24 adapter.
func New(log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{logger: log.With(slog.String("adapter", ProviderName))}
}

// Provider returns the registry key.
func (a *Adapter) Provider() string {
	return ProviderName
}

// Parse maps a webhook batch to canonical events. The URL-validation
// probe and unknown message types produce no events and no error. A
// malformed item is skipped so its siblings in the same batch still
// get processed; only an unparseable envelope fails the delivery.
func (a *Adapter) Parse(body []byte) ([]ingest.Event, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, ingest.NewParseError(ProviderName, "malformed json", err)
	}
	if p.Test {
		a.logger.Info("webhook validation probe received")
		return nil, nil
	}

	events := make([]ingest.Event, 0, len(p.Messages)+len(p.Statuses))
	for _, m := range p.Messages {
		ev, err := a.parseMessage(m)
		if err != nil {
			a.logger.Warn("skipping malformed batch message", slog.Any("error", err))
			continue
		}
		if ev != nil {
			events = append(events, *ev)
		}
	}
	for _, s := range p.Statuses {
		ev, err := a.parseStatus(s)
		if err != nil {
			a.logger.Warn("skipping malformed batch status", slog.Any("error", err))
			continue
		}
		if ev != nil {
			events = append(events, *ev)
		}
	}
	return events, nil
}

func (a *Adapter) parseMessage(m messageItem) (*ingest.Event, error) {
	if strings.TrimSpace(m.MessageID) == "" {
		return nil, ingest.NewParseError(ProviderName, "message without messageId", nil)
	}
	chatID := strings.TrimSpace(m.ChatID)
	if chatID == "" {
		return nil, ingest.NewParseError(ProviderName, "message without chatId", nil)
	}

	direction := crm.DirectionIncoming
	if m.IsEcho {
		// isEcho marks messages the organization itself sent, whether
		// from the phone or through the API.
		direction = crm.DirectionOutgoing
	}

	ev := ingest.NewMessage{
		Provider:          ProviderName,
		InstanceID:        strings.TrimSpace(m.ChannelID),
		ProviderMessageID: m.MessageID,
		ChatID:            chatID,
		ChatType:          chatType(m),
		Direction:         direction,
		OccurredAt:        parseDateTime(m.DateTime),
		SenderDisplayName: senderName(m),
	}
	if ev.ChatType == crm.ChatTypeIndividual {
		// For individual WhatsApp chats the chatId is the bare phone.
		ev.ChatPhone = chatID
	}

	text, media, ok := a.extractContent(m)
	if !ok {
		a.logger.Debug("ignoring message type", slog.String("type", m.Type))
		return nil, nil
	}
	ev.Text = text
	ev.Media = media

	e := ingest.NewMessageEvent(ev)
	return &e, nil
}

// extractContent resolves text and media for one message. Wazzup keeps
// the caption in text for media types and the download link in
// contentUri; a missing caption falls back to the content file name and
// then the locale placeholder.
func (a *Adapter) extractContent(m messageItem) (string, *ingest.Media, bool) {
	switch m.Type {
	case "text":
		return m.Text, nil, true
	case "image":
		return a.mediaContent(m, crm.MediaImage)
	case "video":
		return a.mediaContent(m, crm.MediaVideo)
	case "audio", "voice":
		return a.mediaContent(m, crm.MediaAudio)
	case "document", "file":
		return a.mediaContent(m, crm.MediaDocument)
	default:
		return "", nil, false
	}
}

func (a *Adapter) mediaContent(m messageItem, mediaType crm.MediaType) (string, *ingest.Media, bool) {
	filename := ""
	if m.ContentURI != "" {
		filename = path.Base(m.ContentURI)
	}
	caption := strings.TrimSpace(m.Text)
	if caption == "" {
		caption = filename
	}
	if caption == "" {
		caption = ingest.MediaPlaceholder(mediaType)
	}
	return caption, &ingest.Media{
		URL:      m.ContentURI,
		Type:     mediaType,
		Filename: filename,
	}, true
}

func (a *Adapter) parseStatus(s statusItem) (*ingest.Event, error) {
	if strings.TrimSpace(s.MessageID) == "" {
		return nil, ingest.NewParseError(ProviderName, "status without messageId", nil)
	}
	status, ok := mapStatus(s.Status)
	if !ok {
		a.logger.Debug("ignoring status value", slog.String("status", s.Status))
		return nil, nil
	}
	at := parseDateTime(s.DateTime)
	if s.Timestamp > 0 {
		at = time.Unix(s.Timestamp, 0).UTC()
	}
	e := ingest.StatusUpdateEvent(ingest.StatusUpdate{
		Provider:          ProviderName,
		InstanceID:        strings.TrimSpace(s.ChannelID),
		ProviderMessageID: s.MessageID,
		Status:            status,
		OccurredAt:        at,
	})
	return &e, nil
}

func mapStatus(raw string) (crm.MessageStatus, bool) {
	switch raw {
	case "sent":
		return crm.StatusSent, true
	case "delivered":
		return crm.StatusDelivered, true
	case "read":
		return crm.StatusRead, true
	case "error":
		return crm.StatusFailed, true
	default:
		// "inbound" and transport-internal values carry no delivery
		// transition for our rows.
		return "", false
	}
}

func chatType(m messageItem) crm.ChatType {
	ct := strings.ToLower(strings.TrimSpace(m.ChatType))
	if strings.Contains(ct, "group") || strings.HasSuffix(m.ChatID, "@g.us") {
		return crm.ChatTypeGroup
	}
	return crm.ChatTypeIndividual
}

func senderName(m messageItem) string {
	if name := strings.TrimSpace(m.Contact.Name); name != "" {
		return name
	}
	return strings.TrimSpace(m.AuthorName)
}

func parseDateTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().UTC()
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000Z"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
