// Package api is the client for the admin console's AI provider endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/joshuadavidthomas/aikeys/internal/httpclient"
	"github.com/joshuadavidthomas/aikeys/internal/logging"
	"github.com/joshuadavidthomas/aikeys/internal/secret"
)

const (
	pathProviders        = "providers"
	pathModels           = "models"
	pathPersonalSettings = "personal-settings"
	pathMySettings       = "personal-settings/mine"
)

// Backend is the subset of the admin API the credential engine depends on.
type Backend interface {
	ListProviders(ctx context.Context) ([]ProviderRecord, error)
	ListMySettings(ctx context.Context) ([]PersonalSettingRecord, error)
	ListModels(ctx context.Context) ([]ModelRecord, error)
	SavePersonalSetting(ctx context.Context, p PersonalSettingPayload) (PersonalSettingRecord, error)
	SaveSharedKey(ctx context.Context, backendID *int64, p SharedKeyPayload) (ProviderRecord, error)
	ToggleProvider(ctx context.Context, backendID int64, active bool) error
}

// Client talks to the admin API over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *httpclient.Client
}

var _ Backend = (*Client)(nil)

// New creates a Client for baseURL authenticating with token.
func New(baseURL, token string, hc *httpclient.Client) *Client {
	if hc == nil {
		hc = httpclient.New()
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   token,
		http:    hc,
	}
}

func (c *Client) url(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) opts() []httpclient.RequestOption {
	return []httpclient.RequestOption{
		httpclient.WithBearer(c.token),
		httpclient.WithHeader("Accept", "application/json"),
		httpclient.WithRequestID(),
	}
}

func (c *Client) ListProviders(ctx context.Context) ([]ProviderRecord, error) {
	return getList[ProviderRecord](ctx, c, pathProviders)
}

func (c *Client) ListMySettings(ctx context.Context) ([]PersonalSettingRecord, error) {
	return getList[PersonalSettingRecord](ctx, c, pathMySettings)
}

func (c *Client) ListModels(ctx context.Context) ([]ModelRecord, error) {
	return getList[ModelRecord](ctx, c, pathModels)
}

// SavePersonalSetting creates the record when p.ID is nil and patches it
// otherwise.
func (c *Client) SavePersonalSetting(ctx context.Context, p PersonalSettingPayload) (PersonalSettingRecord, error) {
	method, path := http.MethodPost, pathPersonalSettings
	if p.ID != nil {
		method, path = http.MethodPatch, pathPersonalSettings+"/"+strconv.FormatInt(*p.ID, 10)
	}
	logging.FromContext(ctx).Debug("saving personal setting",
		"method", method, "provider", p.ProviderName, "api_key", redactPtr(p.APIKey),
		"use_shared_api", p.UseSharedAPI, "is_active", p.IsActive)

	var out PersonalSettingRecord
	if err := c.send(ctx, method, path, p, &out); err != nil {
		return PersonalSettingRecord{}, err
	}
	return out, nil
}

// SaveSharedKey patches providers/{id} when the backend row exists and posts
// to providers otherwise.
func (c *Client) SaveSharedKey(ctx context.Context, backendID *int64, p SharedKeyPayload) (ProviderRecord, error) {
	method, path := http.MethodPost, pathProviders
	if backendID != nil {
		method, path = http.MethodPatch, pathProviders+"/"+strconv.FormatInt(*backendID, 10)
	}
	logging.FromContext(ctx).Debug("saving shared key",
		"method", method, "provider", p.ProviderName, "shared_api_key", redactPtr(p.SharedAPIKey),
		"is_active", p.IsActive)

	var out ProviderRecord
	if err := c.send(ctx, method, path, p, &out); err != nil {
		return ProviderRecord{}, err
	}
	return out, nil
}

func (c *Client) ToggleProvider(ctx context.Context, backendID int64, active bool) error {
	path := pathProviders + "/" + strconv.FormatInt(backendID, 10) + "/toggle"
	return c.send(ctx, http.MethodPatch, path, togglePayload{IsActive: active}, nil)
}

func (c *Client) send(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.http.SendJSONCtx(ctx, method, c.url(path), body, out, c.opts()...)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if !resp.OK() {
		return remoteError(method, path, resp)
	}
	if resp.JSONErr != nil {
		return fmt.Errorf("%s %s: decoding response: %w", method, path, resp.JSONErr)
	}
	return nil
}

func getList[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	resp, err := c.http.DoCtx(ctx, http.MethodGet, c.url(path), nil, c.opts()...)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if !resp.OK() {
		return nil, remoteError(http.MethodGet, path, resp)
	}
	out, err := decodeList[T](resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: decoding response: %w", path, err)
	}
	return out, nil
}

func decodeList[T any](body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var out []T
		err := json.Unmarshal(trimmed, &out)
		return out, err
	}
	var env listEnvelope[T]
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, err
	}
	if env.Results != nil {
		return env.Results, nil
	}
	return env.Data, nil
}

func remoteError(method, path string, resp *httpclient.Response) error {
	return &RemoteError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Message:    httpclient.ErrorMessage(resp.Body),
	}
}

func redactPtr(v *string) string {
	if v == nil {
		return "(unchanged)"
	}
	if *v == "" {
		return "(cleared)"
	}
	return secret.Redact(*v)
}

// ValidateBaseURL checks that raw is an absolute http(s) URL.
func ValidateBaseURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid API URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid API URL %q: must be an absolute http(s) URL", raw)
	}
	return nil
}
