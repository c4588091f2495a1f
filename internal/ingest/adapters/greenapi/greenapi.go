// Package greenapi parses GREEN-API WhatsApp webhook notifications.
package greenapi

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/roboricindustries/raycon-multichat/internal/crm"
	"github.com/roboricindustries/raycon-multichat/internal/ingest"
)

// ProviderName is the registry key for this adapter.
const ProviderName = "greenapi"

const (
	groupChatSuffix      = "@g.us"
	individualChatSuffix = "@c.us"
)

type payload struct {
	TypeWebhook  string `json:"typeWebhook"`
	Timestamp    int64  `json:"timestamp"`
	IDMessage    string `json:"idMessage"`
	InstanceData struct {
		IDInstance json.Number `json:"idInstance"`
		Wid        string      `json:"wid"`
	} `json:"instanceData"`
	SenderData struct {
		ChatID     string `json:"chatId"`
		Sender     string `json:"sender"`
		ChatName   string `json:"chatName"`
		SenderName string `json:"senderName"`
	} `json:"senderData"`
	MessageData struct {
		TypeMessage     string `json:"typeMessage"`
		TextMessageData struct {
			TextMessage string `json:"textMessage"`
		} `json:"textMessageData"`
		ExtendedTextMessageData struct {
			Text string `json:"text"`
		} `json:"extendedTextMessageData"`
		FileMessageData struct {
			DownloadURL string `json:"downloadUrl"`
			Caption     string `json:"caption"`
			FileName    string `json:"fileName"`
			MimeType    string `json:"mimeType"`
		} `json:"fileMessageData"`
	} `json:"messageData"`
	// Fields of the outgoingMessageStatus notification.
	Status string `json:"status"`
	ChatID string `json:"chatId"`
	// Field of the stateInstanceChanged notification.
	StateInstance string `json:"stateInstance"`
}

// Adapter parses GREEN-API notifications into canonical events.
type Adapter struct {
	logger *slog.Logger
}

// New creates the GREEN-API adapter.
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

// Parse maps one notification body to zero or one canonical event.
// Unknown typeWebhook values are ignored so newly introduced
// notification types do not break ingestion.
func (a *Adapter) Parse(body []byte) ([]ingest.Event, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, ingest.NewParseError(ProviderName, "malformed json", err)
	}

	switch p.TypeWebhook {
	case "incomingMessageReceived":
		return a.parseMessage(p, crm.DirectionIncoming)
	case "outgoingMessageReceived", "outgoingAPIMessageReceived":
		return a.parseMessage(p, crm.DirectionOutgoing)
	case "outgoingMessageStatus":
		return a.parseStatus(p)
	case "stateInstanceChanged":
		return []ingest.Event{ingest.ConnectionStateEvent(ingest.ConnectionState{
			Provider:   ProviderName,
			InstanceID: p.InstanceData.IDInstance.String(),
			State:      p.StateInstance,
		})}, nil
	case "":
		return nil, ingest.NewParseError(ProviderName, "missing typeWebhook", nil)
	default:
		a.logger.Debug("ignoring notification type", slog.String("type_webhook", p.TypeWebhook))
		return nil, nil
	}
}

func (a *Adapter) parseMessage(p payload, direction crm.Direction) ([]ingest.Event, error) {
	if strings.TrimSpace(p.IDMessage) == "" {
		return nil, ingest.NewParseError(ProviderName, "missing idMessage", nil)
	}
	chatID := strings.TrimSpace(p.SenderData.ChatID)
	if chatID == "" {
		return nil, ingest.NewParseError(ProviderName, "missing senderData.chatId", nil)
	}

	ev := ingest.NewMessage{
		Provider:          ProviderName,
		InstanceID:        p.InstanceData.IDInstance.String(),
		ProviderMessageID: p.IDMessage,
		ChatID:            chatID,
		ChatType:          chatType(chatID),
		Direction:         direction,
		OccurredAt:        occurredAt(p.Timestamp),
		SenderDisplayName: strings.TrimSpace(p.SenderData.SenderName),
		ChatDisplayName:   strings.TrimSpace(p.SenderData.ChatName),
	}
	if ev.ChatType == crm.ChatTypeIndividual {
		ev.ChatPhone = strings.TrimSuffix(chatID, individualChatSuffix)
	}

	ev.Text, ev.Media = a.extractContent(p)
	return []ingest.Event{ingest.NewMessageEvent(ev)}, nil
}

// extractContent resolves text and media from the typed message data.
// Text lives under textMessageData for plain messages and under
// extendedTextMessageData for quoted/link-previewed ones; every media
// subtype shares fileMessageData with caption falling back to the file
// name and then a locale placeholder.
func (a *Adapter) extractContent(p payload) (string, *ingest.Media) {
	md := p.MessageData
	switch md.TypeMessage {
	case "textMessage":
		return md.TextMessageData.TextMessage, nil
	case "extendedTextMessage":
		text := md.ExtendedTextMessageData.Text
		if text == "" {
			text = md.TextMessageData.TextMessage
		}
		return text, nil
	case "imageMessage":
		return a.fileContent(p, crm.MediaImage)
	case "videoMessage":
		return a.fileContent(p, crm.MediaVideo)
	case "audioMessage", "voiceMessage":
		return a.fileContent(p, crm.MediaAudio)
	case "documentMessage":
		return a.fileContent(p, crm.MediaDocument)
	default:
		a.logger.Debug("unhandled typeMessage", slog.String("type_message", md.TypeMessage))
		return "", nil
	}
}

func (a *Adapter) fileContent(p payload, mediaType crm.MediaType) (string, *ingest.Media) {
	fd := p.MessageData.FileMessageData
	caption := strings.TrimSpace(fd.Caption)
	if caption == "" {
		caption = strings.TrimSpace(fd.FileName)
	}
	if caption == "" {
		caption = ingest.MediaPlaceholder(mediaType)
	}
	return caption, &ingest.Media{
		URL:      fd.DownloadURL,
		Type:     mediaType,
		Filename: fd.FileName,
	}
}

func (a *Adapter) parseStatus(p payload) ([]ingest.Event, error) {
	if strings.TrimSpace(p.IDMessage) == "" {
		return nil, ingest.NewParseError(ProviderName, "missing idMessage", nil)
	}
	status, ok := mapStatus(p.Status)
	if !ok {
		a.logger.Debug("ignoring message status", slog.String("status", p.Status))
		return nil, nil
	}
	return []ingest.Event{ingest.StatusUpdateEvent(ingest.StatusUpdate{
		Provider:          ProviderName,
		InstanceID:        p.InstanceData.IDInstance.String(),
		ProviderMessageID: p.IDMessage,
		ChatID:            strings.TrimSpace(p.ChatID),
		Status:            status,
		OccurredAt:        occurredAt(p.Timestamp),
	})}, nil
}

func mapStatus(raw string) (crm.MessageStatus, bool) {
	switch raw {
	case "sent":
		return crm.StatusSent, true
	case "delivered":
		return crm.StatusDelivered, true
	case "read":
		return crm.StatusRead, true
	case "failed", "noAccount", "notInGroup":
		return crm.StatusFailed, true
	default:
		return "", false
	}
}

func chatType(chatID string) crm.ChatType {
	if strings.HasSuffix(chatID, groupChatSuffix) {
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
