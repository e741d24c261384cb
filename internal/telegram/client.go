package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ytget/relay-bot/internal/model"
)

const (
	// DefaultBaseURL is the public Bot API endpoint
	DefaultBaseURL = "https://api.telegram.org"
	// ParseModeHTML is used for every text the relay sends
	ParseModeHTML = "HTML"

	defaultHTTPTimeout = 60 * time.Second
	pollGrace          = 5 * time.Second
)

// Client talks to the Bot API over plain HTTPS
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

// NewClient creates a client. A nil httpClient gets a default with a 60s timeout.
// Uploads of large files may need a longer timeout or none.
func NewClient(httpClient *http.Client, baseURL, token string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

// GetMe returns the bot's own account
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var out User
	if err := c.call(ctx, "getMe", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUpdates long-polls for new updates and returns the next offset to use
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, int64, error) {
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(secs)*time.Second+pollGrace)
	defer cancel()

	var updates []Update
	err := c.call(reqCtx, "getUpdates", getUpdatesRequest{
		Offset:         offset,
		Timeout:        secs,
		AllowedUpdates: []string{"message"},
	}, &updates)
	if err != nil {
		return nil, offset, err
	}

	next := offset
	for _, u := range updates {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return updates, next, nil
}

// SendMessage posts an HTML-formatted message, optionally replying to replyTo
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, replyTo int64, buttons []model.Button) (model.MessageRef, error) {
	var msg Message
	err := c.call(ctx, "sendMessage", sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             ParseModeHTML,
		ReplyToMessageID:      replyTo,
		DisableWebPagePreview: true,
		ReplyMarkup:           keyboard(buttons),
	}, &msg)
	if err != nil {
		return model.MessageRef{}, err
	}
	return messageRef(chatID, &msg), nil
}

// EditMessage replaces the text of an existing message
func (c *Client) EditMessage(ctx context.Context, ref model.MessageRef, text string, buttons []model.Button) error {
	return c.call(ctx, "editMessageText", editMessageTextRequest{
		ChatID:      ref.ChatID,
		MessageID:   ref.MessageID,
		Text:        text,
		ParseMode:   ParseModeHTML,
		ReplyMarkup: keyboard(buttons),
	}, nil)
}

// DeleteMessage removes a message the bot sent
func (c *Client) DeleteMessage(ctx context.Context, ref model.MessageRef) error {
	return c.call(ctx, "deleteMessage", deleteMessageRequest{
		ChatID:    ref.ChatID,
		MessageID: ref.MessageID,
	}, nil)
}

// GetMembership looks up userID in channel, given as @username or numeric id
func (c *Client) GetMembership(ctx context.Context, channel string, userID int64) (model.MemberStatus, error) {
	var member ChatMember
	err := c.call(ctx, "getChatMember", getChatMemberRequest{
		ChatID: channel,
		UserID: userID,
	}, &member)
	if err != nil {
		return "", err
	}
	return model.MemberStatus(member.Status), nil
}

// SendVideo streams the file at path to chatID as a video with a caption
func (c *Client) SendVideo(ctx context.Context, chatID int64, path, caption string) (model.MessageRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.MessageRef{}, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return model.MessageRef{}, err
	}
	if st.IsDir() {
		return model.MessageRef{}, fmt.Errorf("path is a directory: %s", path)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer pw.Close()
		defer mw.Close()

		_ = mw.WriteField("chat_id", strconv.FormatInt(chatID, 10))
		_ = mw.WriteField("supports_streaming", "true")
		if caption != "" {
			_ = mw.WriteField("caption", caption)
			_ = mw.WriteField("parse_mode", ParseModeHTML)
		}

		part, err := mw.CreateFormFile("video", filepath.Base(path))
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendVideo"), pr)
	if err != nil {
		_ = pr.Close()
		return model.MessageRef{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var msg Message
	if err := c.do(req, "sendVideo", &msg); err != nil {
		_ = pr.Close()
		return model.MessageRef{}, err
	}
	return messageRef(chatID, &msg), nil
}

func (c *Client) call(ctx context.Context, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram %s: encode request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, method, out)
}

func (c *Client) do(req *http.Request, method string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	raw, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return fmt.Errorf("telegram %s: read response: %w", method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &APIError{Method: method, Code: resp.StatusCode, Description: strings.TrimSpace(string(raw))}
		}
		return fmt.Errorf("telegram %s: decode response: %w", method, err)
	}
	if !envelope.OK {
		apiErr := &APIError{Method: method, Code: envelope.ErrorCode, Description: envelope.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if envelope.Parameters != nil && envelope.Parameters.RetryAfter > 0 {
			apiErr.RetryAfter = time.Duration(envelope.Parameters.RetryAfter) * time.Second
		}
		return apiErr
	}
	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		// editMessageText answers "true" for inline messages
		var flag bool
		if json.Unmarshal(envelope.Result, &flag) == nil {
			return nil
		}
		return fmt.Errorf("telegram %s: decode result: %w", method, err)
	}
	return nil
}

func keyboard(buttons []model.Button) *InlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}
	rows := make([][]InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []InlineKeyboardButton{{Text: b.Text, URL: b.URL}})
	}
	return &InlineKeyboardMarkup{InlineKeyboard: rows}
}

func messageRef(chatID int64, msg *Message) model.MessageRef {
	if msg.Chat != nil && msg.Chat.ID != 0 {
		chatID = msg.Chat.ID
	}
	return model.MessageRef{ChatID: chatID, MessageID: msg.MessageID}
}

// ToInbound converts an update into the relay's message shape.
// It returns false for updates that carry no user message.
func ToInbound(u Update) (model.Inbound, bool) {
	msg := u.Message
	if msg == nil || msg.Chat == nil || msg.From == nil {
		return model.Inbound{}, false
	}
	return model.Inbound{
		UpdateID:  u.UpdateID,
		MessageID: msg.MessageID,
		ChatID:    msg.Chat.ID,
		ChatType:  msg.Chat.Type,
		UserID:    msg.From.ID,
		Lang:      msg.From.LanguageCode,
		Text:      msg.Text,
	}, true
}
