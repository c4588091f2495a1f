package ingest

import "github.com/roboricindustries/raycon-multichat/internal/crm"

// MediaPlaceholder returns the caption shown in the CRM when a media
// message carries no caption of its own. Tokens match what managers see
// in the chat list, hence the RU locale.
func MediaPlaceholder(t crm.MediaType) string {
	switch t {
	case crm.MediaImage:
		return "[Изображение]"
	case crm.MediaVideo:
		return "[Видео]"
	case crm.MediaAudio:
		return "[Аудио]"
	case crm.MediaDocument:
		return "[Документ]"
	default:
		return "[Файл]"
	}
}
