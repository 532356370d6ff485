// Package client fala com a API do portal: autenticação (implementa session.Backend)
// e chamadas autenticadas aos módulos, sempre pelo envelope {"data","error"}.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/digiurbis/portal/internal/apperr"
	"github.com/digiurbis/portal/internal/request"
	"github.com/digiurbis/portal/internal/session"
)

const maxResponse = 8 << 20

// Client cliente HTTP da API.
type Client struct {
	baseURL string
	http    *http.Client
	policy  request.Policy
	now     func() time.Time

	mu        sync.RWMutex
	session   *session.Session
	listeners map[int]func(session.Event, *session.Session)
	nextID    int
}

// Options parâmetros do cliente. Zero usa os padrões.
type Options struct {
	HTTPClient *http.Client
	Policy     request.Policy
}

func New(baseURL string, opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      hc,
		policy:    opts.Policy,
		now:       time.Now,
		listeners: map[int]func(session.Event, *session.Session){},
	}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details any    `json:"details"`
	} `json:"error"`
}

// call faz uma requisição e decodifica data em out (pode ser nil).
func (c *Client) call(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return err
	}
	return decode(resp.StatusCode, raw, out)
}

func decode(status int, raw []byte, out any) error {
	var env envelope
	jsonErr := json.Unmarshal(raw, &env)

	if status < 200 || status >= 300 {
		category := apperr.FromHTTPStatus(status)
		if jsonErr == nil && env.Error != nil {
			if category == apperr.Unexpected {
				category = apperr.FromCode(env.Error.Code)
			}
			e := apperr.New(category, env.Error.Code, env.Error.Message)
			if env.Error.Details != nil {
				e = e.WithDetails(env.Error.Details)
			}
			return e
		}
		return apperr.New(category, "HTTP_"+fmt.Sprint(status), http.StatusText(status))
	}

	if jsonErr != nil {
		return apperr.Wrap(jsonErr, apperr.Unexpected, "resposta inválida da API")
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apperr.Wrap(err, apperr.Unexpected, "resposta inválida da API")
	}
	return nil
}

// Session sessão em uso pelas chamadas autenticadas.
func (c *Client) Session() *session.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// UseSession troca a sessão sem emitir evento.
func (c *Client) UseSession(s *session.Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

// OnAuthStateChange listeners são chamados fora do lock, na goroutine de quem causou o evento.
func (c *Client) OnAuthStateChange(fn func(session.Event, *session.Session)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) emit(evt session.Event, s *session.Session) {
	c.mu.RLock()
	ls := make([]func(session.Event, *session.Session), 0, len(c.listeners))
	for _, l := range c.listeners {
		ls = append(ls, l)
	}
	c.mu.RUnlock()
	for _, l := range ls {
		l(evt, s)
	}
}

// Do chamada autenticada com retry da política. Um 401 tenta renovar a sessão uma vez.
func Do[T any](ctx context.Context, c *Client, method, path string, in any, label string) (T, error) {
	return request.Do(ctx, func(ctx context.Context) (T, error) {
		var out T
		s := c.Session()
		if s == nil {
			return out, session.ErrNoSession
		}
		err := c.call(ctx, method, path, s.AccessToken, in, &out)
		if apperr.CategoryOf(err) != apperr.Authentication || s.RefreshToken == "" {
			return out, err
		}
		renewed, rerr := c.refresh(ctx, s)
		if rerr != nil {
			return out, err
		}
		out = *new(T)
		return out, c.call(ctx, method, path, renewed.AccessToken, in, &out)
	}, c.policy.Apply(request.Options{Context: "api." + label})).Unwrap()
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.authed(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.authed(ctx, http.MethodPost, path, in, out)
}

func (c *Client) Patch(ctx context.Context, path string, in, out any) error {
	return c.authed(ctx, http.MethodPatch, path, in, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.authed(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) authed(ctx context.Context, method, path string, in, out any) error {
	raw, err := Do[json.RawMessage](ctx, c, method, path, in, strings.ToLower(method))
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

var errNoRefresh = errors.New("sessão sem refresh token")

var _ session.Backend = (*Client)(nil)
