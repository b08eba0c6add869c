// client.go — HTTP-клиент к Google Sheets API v4.
// Авторизация — сервисный аккаунт Google (JWT bearer), токен кэшируется
// и обновляется средствами golang.org/x/oauth2.
// Операции: ReadRange (values.get), AppendRows (values.append), CheckReady.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/bigkaa/feedgate/internal/tabular"
)

// Scope — OAuth2 scope для чтения и дописывания значений.
const Scope = "https://www.googleapis.com/auth/spreadsheets"

// backend — значение лейбла и поля UnavailableError.Backend.
const backend = "sheets"

// maxErrorBody — сколько байт тела ответа upstream сохраняется для диагностики.
const maxErrorBody = 4096

// Client — клиент Sheets API, реализует tabular.Store.
// resource в операциях — ID таблицы; пустой resource означает таблицу
// по умолчанию из конструктора.
type Client struct {
	baseURL       string // Базовый URL API (без trailing slash)
	spreadsheetID string // Таблица по умолчанию

	httpClient *http.Client
	logger     *slog.Logger
}

var _ tabular.Store = (*Client)(nil)

// New создаёт клиент поверх готового HTTP-клиента.
// httpClient должен сам добавлять авторизацию (см. NewWithServiceAccount).
func New(baseURL, spreadsheetID string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		spreadsheetID: spreadsheetID,
		httpClient:    httpClient,
		logger:        logger.With(slog.String("component", "sheets_client")),
	}
}

// NewWithServiceAccount создаёт клиент, авторизованный JSON-ключом
// сервисного аккаунта Google. ctx используется oauth2 при обновлении токена
// и должен жить столько же, сколько клиент.
func NewWithServiceAccount(
	ctx context.Context,
	baseURL, spreadsheetID string,
	credentialsJSON []byte,
	timeout time.Duration,
	logger *slog.Logger,
) (*Client, error) {
	jwtCfg, err := google.JWTConfigFromJSON(credentialsJSON, Scope)
	if err != nil {
		return nil, fmt.Errorf("разбор ключа сервисного аккаунта: %w", err)
	}

	// Тот же таймаут для запросов токена
	base := &http.Client{Timeout: timeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	httpClient := oauth2.NewClient(ctx, jwtCfg.TokenSource(ctx))
	httpClient.Timeout = timeout

	return New(baseURL, spreadsheetID, httpClient, logger), nil
}

// valueRange — тело values.get / values.append.
type valueRange struct {
	Range          string  `json:"range,omitempty"`
	MajorDimension string  `json:"majorDimension,omitempty"`
	Values         [][]any `json:"values,omitempty"`
}

// ReadRange читает диапазон rng. Пустые строки в конце листа и пустые
// ячейки в конце строки Sheets не возвращает.
func (c *Client) ReadRange(ctx context.Context, resource, rng string) ([]tabular.Row, error) {
	path := c.valuesPath(resource, rng) + "?majorDimension=ROWS"

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, c.unavailable("read", err)
	}
	defer resp.Body.Close()

	if err := c.checkResponse(resp, "read"); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var vr valueRange
	if err := dec.Decode(&vr); err != nil {
		return nil, c.unavailable("read", fmt.Errorf("декодирование ответа Sheets: %w", err))
	}

	rows := make([]tabular.Row, 0, len(vr.Values))
	for _, raw := range vr.Values {
		row := make(tabular.Row, len(raw))
		for i, v := range raw {
			row[i] = cellString(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// AppendRows дописывает строки после последней заполненной строки таблицы,
// на которую указывает rng. Значения пишутся как есть (RAW).
func (c *Client) AppendRows(ctx context.Context, resource, rng string, rows []tabular.Row) error {
	if len(rows) == 0 {
		return nil
	}

	body := valueRange{Range: rng, MajorDimension: "ROWS", Values: make([][]any, 0, len(rows))}
	for _, r := range rows {
		cells := make([]any, len(r))
		for i, v := range r {
			cells[i] = v
		}
		body.Values = append(body.Values, cells)
	}

	path := c.valuesPath(resource, rng) + ":append?valueInputOption=RAW&insertDataOption=INSERT_ROWS"
	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return c.unavailable("append", err)
	}
	defer resp.Body.Close()

	if err := c.checkResponse(resp, "append"); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug("Строки дописаны",
		slog.String("range", rng),
		slog.Int("rows", len(rows)),
	)
	return nil
}

// CheckReady проверяет доступ к таблице по умолчанию.
// Реализует handlers.ReadinessChecker.
func (c *Client) CheckReady() (string, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	path := "/v4/spreadsheets/" + url.PathEscape(c.spreadsheetID) + "?fields=spreadsheetId"
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "fail", fmt.Sprintf("Sheets API недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "fail", fmt.Sprintf("Sheets API вернул статус %d", resp.StatusCode)
	}
	return "ok", "таблица доступна"
}

// --- HTTP helpers ---

// valuesPath возвращает путь ресурса values для таблицы и диапазона.
func (c *Client) valuesPath(resource, rng string) string {
	id := resource
	if id == "" {
		id = c.spreadsheetID
	}
	return "/v4/spreadsheets/" + url.PathEscape(id) + "/values/" + url.PathEscape(rng)
}

// do выполняет запрос к API; body сериализуется в JSON.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("сериализация тела запроса: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// checkResponse превращает не-2xx ответ в UnavailableError со статусом и телом.
func (c *Client) checkResponse(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	c.logger.Warn("Sheets API вернул ошибку",
		slog.String("op", op),
		slog.Int("status", resp.StatusCode),
		slog.String("body", string(body)),
	)
	return &tabular.UnavailableError{
		Backend:    backend,
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}

func (c *Client) unavailable(op string, err error) error {
	c.logger.Warn("Запрос к Sheets API не выполнен",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return &tabular.UnavailableError{Backend: backend, Op: op, Err: err}
}

// cellString приводит значение ячейки к строке.
func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
