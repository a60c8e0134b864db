// Package api, mesajlaşma sunucusunun REST endpoint'leri için HTTP client'ı.
//
// Sunucu yanıtları envelope'suz düz JSON'dur (dizi veya obje). Hata durumunda
// body'de {"error": "..."} beklenir; status code pkg domain error'larına çevrilir:
//
//	_, err := client.ListConversations(ctx)
//	if errors.Is(err, pkg.ErrUnauthorized) { ... }
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/akinalp/dmsync/models"
	"github.com/akinalp/dmsync/pkg"
	"github.com/akinalp/dmsync/pkg/metrics"
)

// maxResponseSize, tek bir yanıt için okunacak üst sınır (8MB).
const maxResponseSize = 8 << 20

// TokenProvider, her istekte güncel bearer token'ı verir.
// Token boşsa istek Authorization header'ı olmadan gider ve sunucu 401 döner.
type TokenProvider interface {
	BearerToken() string
}

// Client, REST client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider
}

// NewClient, yeni bir REST client oluşturur. timeout tek istek için üst sınırdır.
func NewClient(baseURL string, timeout time.Duration, tokens TokenProvider) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
	}
}

// ListConversations, GET /api/conversations.
func (c *Client) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	var out []models.Conversation
	if err := c.do(ctx, http.MethodGet, "/api/conversations", "/api/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateConversation, POST /api/conversations.
func (c *Client) CreateConversation(ctx context.Context, req models.CreateConversationRequest) (*models.Conversation, error) {
	var out models.Conversation
	if err := c.do(ctx, http.MethodPost, "/api/conversations", "/api/conversations", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMembers, GET /api/users/members, yeni konuşma için seçilebilir kullanıcılar.
func (c *Client) ListMembers(ctx context.Context) ([]models.User, error) {
	var out []models.User
	if err := c.do(ctx, http.MethodGet, "/api/users/members", "/api/users/members", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMessages, GET /api/messages/{conversationId}?limit=N[&before=ISO8601].
//
// before nil ise en yeni sayfa döner. before verilirse o andan önce
// oluşturulmuş mesajlar gelir (cursor-based pagination).
func (c *Client) GetMessages(ctx context.Context, conversationID string, before *time.Time, limit int) (*models.MessagePage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if before != nil {
		q.Set("before", FormatCursor(*before))
	}

	path := "/api/messages/" + url.PathEscape(conversationID) + "?" + q.Encode()

	var out models.MessagePage
	if err := c.do(ctx, http.MethodGet, path, "/api/messages/{id}", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FormatCursor, pagination cursor'ını sunucunun beklediği ISO 8601 (UTC, milisaniye) formatına çevirir.
func FormatCursor(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// do, isteği gönderir, status code'u domain error'a çevirir ve body'yi out'a decode eder.
// route, metrik label'ı için path'in parametresiz halidir.
func (c *Client) do(ctx context.Context, method, path, route string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		if token := c.tokens.BearerToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.APIRequestDuration.WithLabelValues(method, route, "error").Observe(time.Since(start).Seconds())
		return fmt.Errorf("%w: %s %s: %v", pkg.ErrUnavailable, method, route, err)
	}
	defer resp.Body.Close()

	metrics.APIRequestDuration.WithLabelValues(method, route, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if domainErr := pkg.ErrorFromStatus(resp.StatusCode); domainErr != nil {
		var errResp struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(respBody, &errResp)
		msg := errResp.Error
		if msg == "" {
			msg = errResp.Message
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%w: %s %s returned %d: %s", domainErr, method, route, resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", route, err)
	}
	return nil
}
