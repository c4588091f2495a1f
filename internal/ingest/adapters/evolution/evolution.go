// Package evolution parses Evolution API webhook events.
package evolution

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/roboricindustries/raycon-multichat/internal/crm"
	"github.com/roboricindustries/raycon-multichat/internal/ingest"
)

// ProviderName is the registry key for this adapter.
const ProviderName = "evolution"

const (
	groupJidSuffix      = "@g.us"
	individualJidSuffix = "@s.whatsapp.net"
)

type payload struct {
	Event    string    `json:"event"`
	Instance string    `json:"instance"`
	Data     eventData `json:"data"`
}

type messageKey struct {
	RemoteJid string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

type mediaDescriptor struct {
	URL      string `json:"url"`
	Caption  string `json:"caption"`
	FileName string `json:"fileName"`
	MimeType string `json:"mimetype"`
}

type eventData struct {
	Key              messageKey `json:"key"`
	PushName         string     `json:"pushName"`
	MessageType      string     `json:"messageType"`
	MessageTimestamp int64      `json:"messageTimestamp"`
	Message          struct {
		Conversation        string `json:"conversation"`
		ExtendedTextMessage struct {
			Text string `json:"text"`
		} `json:"extendedTextMessage"`
		ImageMessage    *mediaDescriptor `json:"imageMessage"`
		VideoMessage    *mediaDescriptor `json:"videoMessage"`
		AudioMessage    *mediaDescriptor `json:"audioMessage"`
		DocumentMessage *mediaDescriptor `json:"documentMessage"`
	} `json:"message"`
	// messages.update fields. Older Evolution builds put the message id
	// in keyId, newer ones repeat the full key.
	KeyID  string `json:"keyId"`
	Status string `json:"status"`
	// connection.update field.
	State string `json:"state"`
}

// Adapter parses Evolution API events into canonical events.
type Adapter struct {
	logger *slog.Logger
}

// New creates the Evolution API adapter.
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

// Parse maps one event body to zero or one canonical event. Events
// other than message upserts, status updates, and connection updates
// are ignored.
func (a *Adapter) Parse(body []byte) ([]ingest.Event, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, ingest.NewParseError(ProviderName, "malformed json", err)
	}

	switch strings.ToLower(strings.TrimSpace(p.Event)) {
	case "messages.upsert":
		return a.parseMessage(p)
	case "messages.update":
		return a.parseStatus(p)
	case "connection.update":
		return []ingest.Event{ingest.ConnectionStateEvent(ingest.ConnectionState{
			Provider:   ProviderName,
			InstanceID: strings.TrimSpace(p.Instance),
			State:      strings.TrimSpace(p.Data.State),
		})}, nil
	case "":
		return nil, ingest.NewParseError(ProviderName, "missing event", nil)
	default:
		a.logger.Debug("ignoring event", slog.String("event", p.Event))
		return nil, nil
	}
}

func (a *Adapter) parseMessage(p payload) ([]ingest.Event, error) {
	key := p.Data.Key
	if strings.TrimSpace(key.ID) == "" {
		return nil, ingest.NewParseError(ProviderName, "missing data.key.id", nil)
	}
	jid := strings.TrimSpace(key.RemoteJid)
	if jid == "" {
		return nil, ingest.NewParseError(ProviderName, "missing data.key.remoteJid", nil)
	}

	direction := crm.DirectionIncoming
	if key.FromMe {
		direction = crm.DirectionOutgoing
	}

	ev := ingest.NewMessage{
		Provider:          ProviderName,
		InstanceID:        strings.TrimSpace(p.Instance),
		ProviderMessageID: key.ID,
		ChatID:            jid,
		ChatType:          chatType(jid),
		Direction:         direction,
		OccurredAt:        occurredAt(p.Data.MessageTimestamp),
		SenderDisplayName: strings.TrimSpace(p.Data.PushName),
	}
	if ev.ChatType == crm.ChatTypeIndividual {
		ev.ChatPhone = strings.TrimSuffix(jid, individualJidSuffix)
	}

	ev.Text, ev.Media = a.extractContent(p.Data)
	return []ingest.Event{ingest.NewMessageEvent(ev)}, nil
}

// extractContent walks the message union: plain text in conversation,
// quoted/previewed text in extendedTextMessage, and one media
// descriptor per subtype. Media captions fall back to the file name and
// then the locale placeholder.
func (a *Adapter) extractContent(d eventData) (string, *ingest.Media) {
	if text := d.Message.Conversation; text != "" {
		return text, nil
	}
	if text := d.Message.ExtendedTextMessage.Text; text != "" {
		return text, nil
	}
	switch {
	case d.Message.ImageMessage != nil:
		return mediaContent(d.Message.ImageMessage, crm.MediaImage)
	case d.Message.VideoMessage != nil:
		return mediaContent(d.Message.VideoMessage, crm.MediaVideo)
	case d.Message.AudioMessage != nil:
		return mediaContent(d.Message.AudioMessage, crm.MediaAudio)
	case d.Message.DocumentMessage != nil:
		return mediaContent(d.Message.DocumentMessage, crm.MediaDocument)
	default:
		a.logger.Debug("message without recognizable content", slog.String("message_type", d.MessageType))
		return "", nil
	}
}

func mediaContent(m *mediaDescriptor, mediaType crm.MediaType) (string, *ingest.Media) {
	caption := strings.TrimSpace(m.Caption)
	if caption == "" {
		caption = strings.TrimSpace(m.FileName)
	}
	if caption == "" {
		caption = ingest.MediaPlaceholder(mediaType)
	}
	return caption, &ingest.Media{
		URL:      m.URL,
		Type:     mediaType,
		Filename: m.FileName,
	}
}

func (a *Adapter) parseStatus(p payload) ([]ingest.Event, error) {
	id := strings.TrimSpace(p.Data.KeyID)
	if id == "" {
		id = strings.TrimSpace(p.Data.Key.ID)
	}
	if id == "" {
		return nil, ingest.NewParseError(ProviderName, "status update without message id", nil)
	}
	status, ok := mapAck(p.Data.Status)
	if !ok {
		a.logger.Debug("ignoring ack status", slog.String("status", p.Data.Status))
		return nil, nil
	}
	return []ingest.Event{ingest.StatusUpdateEvent(ingest.StatusUpdate{
		Provider:          ProviderName,
		InstanceID:        strings.TrimSpace(p.Instance),
		ProviderMessageID: id,
		ChatID:            strings.TrimSpace(p.Data.Key.RemoteJid),
		Status:            status,
		OccurredAt:        occurredAt(p.Data.MessageTimestamp),
	})}, nil
}

func mapAck(raw string) (crm.MessageStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SERVER_ACK":
		return crm.StatusSent, true
	case "DELIVERY_ACK":
		return crm.StatusDelivered, true
	case "READ", "PLAYED":
		return crm.StatusRead, true
	case "ERROR":
		return crm.StatusFailed, true
	default:
		return "", false
	}
}

func chatType(jid string) crm.ChatType {
	if strings.HasSuffix(jid, groupJidSuffix) {
		return crm.ChatTypeGroup
	}
	return crm.ChatTypeIndividual
}

func occurredAt(unix int64) time.Time {
	if unix <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(unix, 0).UTC()
}
