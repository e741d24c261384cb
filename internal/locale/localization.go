// Package locale holds the bot's user-facing texts in every supported
// language and picks one from the Telegram language code.
package locale

import (
	"fmt"
	"strings"
)

// DefaultLanguage is used when the user's language is unknown or unsupported
const DefaultLanguage = "en"

// Text keys for localization
const (
	KeyWelcome            = "welcome"
	KeyJoinChannel        = "join_channel"
	KeyStarting           = "starting"
	KeyInvalidURL         = "invalid_url"
	KeyCooldown           = "cooldown"
	KeyJoinFirst          = "join_first"
	KeyTaskInProgress     = "task_in_progress"
	KeyWaitHint           = "wait_hint"
	KeyDownloading        = "downloading"
	KeyDownloadComplete   = "download_complete"
	KeyDownloadFailed     = "download_failed"
	KeyCompressing        = "compressing"
	KeyFileTooLarge       = "file_too_large"
	KeyUploading          = "uploading"
	KeyUploadFailed       = "upload_failed"
	KeyCaption            = "caption"
	KeyShutdown           = "shutdown"
	KeyDownloadedLabel    = "downloaded_label"
	KeyDownloadingSubline = "downloading_subline"
)

// Localization resolves text keys for a language with English fallback
type Localization struct {
	texts map[string]map[string]string
}

// NewLocalization creates a catalog with all built-in languages
func NewLocalization() *Localization {
	l := &Localization{
		texts: make(map[string]map[string]string),
	}

	l.initializeTexts()
	return l
}

// Resolve maps a Telegram language code ("pt-br", "ru") to a supported language
func (l *Localization) Resolve(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if idx := strings.IndexAny(code, "-_"); idx > 0 {
		code = code[:idx]
	}
	if _, exists := l.texts[code]; exists {
		return code
	}
	return DefaultLanguage
}

// GetText returns localized text for the given key
func (l *Localization) GetText(lang, key string) string {
	if texts, exists := l.texts[l.Resolve(lang)]; exists {
		if text, found := texts[key]; found {
			return text
		}
	}

	// Fallback to English
	if texts, exists := l.texts[DefaultLanguage]; exists {
		if text, found := texts[key]; found {
			return text
		}
	}

	// Final fallback - return key itself
	return key
}

// Format returns the localized text for key rendered with fmt.Sprintf
func (l *Localization) Format(lang, key string, args ...any) string {
	return fmt.Sprintf(l.GetText(lang, key), args...)
}

// GetAvailableLanguages returns map of available languages with their display names
func (l *Localization) GetAvailableLanguages() map[string]string {
	return map[string]string{
		"en": "English",
		"ru": "Русский",
		"pt": "Português",
	}
}

// initializeTexts initializes all text translations
func (l *Localization) initializeTexts() {
	// English texts
	l.texts["en"] = map[string]string{
		KeyWelcome:            "👋 Welcome to the YouTube & Instagram Video Downloader Bot!\n\nSend a video link to get started.",
		KeyJoinChannel:        "Join Channel",
		KeyStarting:           "🔄 Starting download...",
		KeyInvalidURL:         "❌ Please send a valid YouTube or Instagram URL.",
		KeyCooldown:           "⏳ Please wait %d seconds before next request.",
		KeyJoinFirst:          "🔒 Join the channel first!",
		KeyTaskInProgress:     "⏳ Your previous download is still running.",
		KeyWaitHint:           "⏳ Please wait, time depends on file size...",
		KeyDownloading:        "⬇️ <b>Downloading%s</b>",
		KeyDownloadComplete:   "⬇️ <b>Download Complete</b>",
		KeyDownloadedLabel:    "<b>Downloaded:</b>",
		KeyDownloadingSubline: "⏱️ Please wait, time depends on file size.",
		KeyDownloadFailed:     "❌ Failed to download media.",
		KeyCompressing:        "🗜 <b>Compressing</b> %d%%",
		KeyFileTooLarge:       "❌ The file is too large to send.",
		KeyUploading:          "⬆️ Uploading...",
		KeyUploadFailed:       "❌ Failed to upload file.",
		KeyCaption:            "✅ Here's your video! 🥳",
		KeyShutdown:           "🛑 Bot is shutting down, download cancelled.",
	}

	// Russian texts
	l.texts["ru"] = map[string]string{
		KeyWelcome:            "👋 Добро пожаловать в бот для скачивания видео с YouTube и Instagram!\n\nОтправьте ссылку на видео, чтобы начать.",
		KeyJoinChannel:        "Вступить в канал",
		KeyStarting:           "🔄 Начинаю загрузку...",
		KeyInvalidURL:         "❌ Отправьте корректную ссылку YouTube или Instagram.",
		KeyCooldown:           "⏳ Подождите %d секунд перед следующим запросом.",
		KeyJoinFirst:          "🔒 Сначала вступите в канал!",
		KeyTaskInProgress:     "⏳ Предыдущая загрузка ещё выполняется.",
		KeyWaitHint:           "⏳ Пожалуйста, подождите, время зависит от размера файла...",
		KeyDownloading:        "⬇️ <b>Загрузка%s</b>",
		KeyDownloadComplete:   "⬇️ <b>Загрузка завершена</b>",
		KeyDownloadedLabel:    "<b>Загружено:</b>",
		KeyDownloadingSubline: "⏱️ Пожалуйста, подождите, время зависит от размера файла.",
		KeyDownloadFailed:     "❌ Не удалось скачать медиа.",
		KeyCompressing:        "🗜 <b>Сжатие</b> %d%%",
		KeyFileTooLarge:       "❌ Файл слишком большой для отправки.",
		KeyUploading:          "⬆️ Отправка...",
		KeyUploadFailed:       "❌ Не удалось отправить файл.",
		KeyCaption:            "✅ Ваше видео готово! 🥳",
		KeyShutdown:           "🛑 Бот выключается, загрузка отменена.",
	}

	// Portuguese texts
	l.texts["pt"] = map[string]string{
		KeyWelcome:            "👋 Bem-vindo ao bot de download de vídeos do YouTube e Instagram!\n\nEnvie um link de vídeo para começar.",
		KeyJoinChannel:        "Entrar no canal",
		KeyStarting:           "🔄 Iniciando download...",
		KeyInvalidURL:         "❌ Envie uma URL válida do YouTube ou Instagram.",
		KeyCooldown:           "⏳ Aguarde %d segundos antes do próximo pedido.",
		KeyJoinFirst:          "🔒 Entre no canal primeiro!",
		KeyTaskInProgress:     "⏳ Seu download anterior ainda está em andamento.",
		KeyWaitHint:           "⏳ Aguarde, o tempo depende do tamanho do arquivo...",
		KeyDownloading:        "⬇️ <b>Baixando%s</b>",
		KeyDownloadComplete:   "⬇️ <b>Download concluído</b>",
		KeyDownloadedLabel:    "<b>Baixado:</b>",
		KeyDownloadingSubline: "⏱️ Aguarde, o tempo depende do tamanho do arquivo.",
		KeyDownloadFailed:     "❌ Falha ao baixar a mídia.",
		KeyCompressing:        "🗜 <b>Comprimindo</b> %d%%",
		KeyFileTooLarge:       "❌ O arquivo é grande demais para enviar.",
		KeyUploading:          "⬆️ Enviando...",
		KeyUploadFailed:       "❌ Falha ao enviar o arquivo.",
		KeyCaption:            "✅ Aqui está seu vídeo! 🥳",
		KeyShutdown:           "🛑 O bot está desligando, download cancelado.",
	}
}
