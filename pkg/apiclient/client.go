// Package apiclient — HTTP-клиент REST API tender-kb для настольных утилит
// и редактора схем. Все запросы идут с bearer-токеном, полученным при логине.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrPasswordMismatch возвращается до обращения к сети, когда подтверждение
// нового пароля не совпадает с ним.
var ErrPasswordMismatch = errors.New("Пароли не совпадают")

// APIError — ошибка уровня API. Текст из поля detail ответа имеет приоритет
// над транспортным сообщением.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("запрос завершился с кодом %d", e.StatusCode)
}

// Client — клиент REST API. Токен выставляется после Login либо SetToken.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient создаёт клиент для указанного базового URL (включая /api/v1).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetToken выставляет bearer-токен вручную (например, из сохранённой сессии).
func (c *Client) SetToken(token string) {
	c.token = token
}

// ClearToken сбрасывает токен, например при логауте или неудачной проверке
// идентичности.
func (c *Client) ClearToken() {
	c.token = ""
}

// TokenResponse — ответ эндпоинта выдачи токена.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login выполняет OAuth2-password аутентификацию: форма
// username/password/grant_type=password. Полученный токен сохраняется в
// клиенте и прикладывается ко всем последующим запросам.
func (c *Client) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	form.Set("grant_type", "password")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var token TokenResponse
	if err := c.do(req, &token); err != nil {
		return nil, err
	}
	c.token = token.AccessToken
	return &token, nil
}

// ChangePassword меняет пароль текущего пользователя. Совпадение нового
// пароля и подтверждения проверяется локально: при расхождении запрос не
// отправляется вовсе.
func (c *Client) ChangePassword(ctx context.Context, currentPassword, newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}
	body := map[string]string{
		"current_password": currentPassword,
		"new_password":     newPassword,
	}
	return c.postJSON(ctx, "/users/me/password", body, nil)
}

// SchemaVersionPreset — пресет в составе версии схемы.
type SchemaVersionPreset struct {
	ID          int64          `json:"id"`
	Code        string         `json:"code"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Version     int            `json:"version"`
	Status      string         `json:"status"`
	JSONSchema  map[string]any `json:"json_schema"`
}

// SchemaVersion — запись версии схемы узла.
type SchemaVersion struct {
	ID          int64                 `json:"id"`
	NodeID      int64                 `json:"node_id"`
	Version     int                   `json:"version"`
	Status      string                `json:"status"`
	JSONSchema  map[string]any        `json:"json_schema"`
	Presets     []SchemaVersionPreset `json:"presets"`
	Comment     string                `json:"comment,omitempty"`
	PublishedAt *time.Time            `json:"published_at,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
}

// SchemaDiff — дельта версии схемы относительно предыдущей.
type SchemaDiff struct {
	NodeID    int64          `json:"node_id"`
	Version   int            `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	Diff      map[string]any `json:"diff"`
}

// CreateSchemaVersionRequest — тело запроса на создание черновика.
type CreateSchemaVersionRequest struct {
	JSONSchema map[string]any `json:"json_schema"`
	Presets    []int64        `json:"presets"`
	Comment    string         `json:"comment,omitempty"`
}

// ListSchemaVersions возвращает версии схемы узла, новые первыми.
func (c *Client) ListSchemaVersions(ctx context.Context, nodeID int64) ([]SchemaVersion, error) {
	var versions []SchemaVersion
	err := c.getJSON(ctx, fmt.Sprintf("/nomenclature/nodes/%d/schemas", nodeID), &versions)
	return versions, err
}

// ListPublishedPresets возвращает библиотеку опубликованных пресетов.
func (c *Client) ListPublishedPresets(ctx context.Context) ([]SchemaVersionPreset, error) {
	var presets []SchemaVersionPreset
	err := c.getJSON(ctx, "/nomenclature/presets?status=published", &presets)
	return presets, err
}

// CreateSchemaVersion создаёт новую версию-черновик схемы узла.
func (c *Client) CreateSchemaVersion(ctx context.Context, nodeID int64, payload CreateSchemaVersionRequest) (*SchemaVersion, error) {
	var created SchemaVersion
	if err := c.postJSON(ctx, fmt.Sprintf("/nomenclature/nodes/%d/schemas", nodeID), payload, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// PublishSchemaVersion публикует явно указанную версию схемы узла.
func (c *Client) PublishSchemaVersion(ctx context.Context, nodeID int64, version int) (*SchemaVersion, error) {
	var published SchemaVersion
	path := fmt.Sprintf("/nomenclature/nodes/%d/schemas/%d/publish", nodeID, version)
	if err := c.postJSON(ctx, path, nil, &published); err != nil {
		return nil, err
	}
	return &published, nil
}

// FetchDiff запрашивает дельту конкретной версии. Отсутствие дельты (первая
// версия) — валидный результат: возвращается (nil, nil).
func (c *Client) FetchDiff(ctx context.Context, nodeID int64, version int) (*SchemaDiff, error) {
	var diff SchemaDiff
	path := fmt.Sprintf("/nomenclature/nodes/%d/schemas/%d/diff", nodeID, version)
	err := c.getJSON(ctx, path, &diff)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &diff, nil
}

// NomenclatureNode — узел классификатора в ответах API.
type NomenclatureNode struct {
	ID         int64  `json:"id"`
	ParentID   *int64 `json:"parent_id,omitempty"`
	Code       string `json:"code"`
	Name       string `json:"name"`
	NodeType   string `json:"node_type"`
	Depth      int    `json:"depth"`
	Version    int    `json:"version"`
	Status     string `json:"status"`
	IsArchived bool   `json:"is_archived"`
}

// ListNodes возвращает узлы классификатора. Пустой status означает все.
func (c *Client) ListNodes(ctx context.Context, status string) ([]NomenclatureNode, error) {
	path := "/nomenclature/nodes"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var nodes []NomenclatureNode
	err := c.getJSON(ctx, path, &nodes)
	return nodes, err
}

// ArchiveNode архивирует узел классификатора. Узлы с неархивными дочерними
// узлами сервер отклоняет, текст ошибки приходит в detail.
func (c *Client) ArchiveNode(ctx context.Context, nodeID int64) error {
	return c.postJSON(ctx, fmt.Sprintf("/nomenclature/nodes/%d/archive", nodeID), nil, nil)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

// do выполняет запрос, прикладывает токен и разбирает ответ. Для неуспешных
// статусов возвращается APIError с текстом из поля detail, когда оно есть.
func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Detail string `json:"detail"`
		}
		if err := json.Unmarshal(raw, &payload); err == nil && payload.Detail != "" {
			apiErr.Detail = payload.Detail
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
