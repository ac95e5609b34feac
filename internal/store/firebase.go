package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
)

// FirebaseConfig configures the Realtime Database REST client.
type FirebaseConfig struct {
	DatabaseURL string
	RootNode    string
	AuthToken   string
	Timeout     time.Duration
	Retries     int
}

// FirebaseStore reads items through the Firebase Realtime Database REST API.
type FirebaseStore struct {
	client  *resty.Client
	root    string
	auth    string
	retries uint64
	logger  *slog.Logger
}

// NewFirebaseStore creates a REST-backed store.
func NewFirebaseStore(cfg FirebaseConfig, logger *slog.Logger) (*FirebaseStore, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("firebase: database URL is required")
	}
	if _, err := url.ParseRequestURI(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("firebase: invalid database URL: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.DatabaseURL, "/"))
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")
	client.SetHeader("User-Agent", "otruyen-api/1.0")

	return &FirebaseStore{
		client:  client,
		root:    strings.Trim(cfg.RootNode, "/"),
		auth:    cfg.AuthToken,
		retries: uint64(retries),
		logger:  logger,
	}, nil
}

func (s *FirebaseStore) Get(ctx context.Context, key string) (Record, error) {
	if !validKey(key) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	body, err := s.fetch(ctx, s.nodePath(url.PathEscape(key)), nil)
	if err != nil {
		return Record{}, err
	}
	if valueRank(body) == 0 {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return Record{Key: key, Value: body}, nil
}

func (s *FirebaseStore) Query(ctx context.Context, q Query) ([]Record, error) {
	params := map[string]string{"orderBy": strconv.Quote("$key")}
	if q.OrderBy != "" {
		params["orderBy"] = strconv.Quote(q.OrderBy)
	}
	if q.StartAt != "" {
		params["startAt"] = strconv.Quote(q.StartAt)
	}
	if q.LimitToFirst > 0 {
		params["limitToFirst"] = strconv.Itoa(q.LimitToFirst)
	}
	if q.LimitToLast > 0 {
		params["limitToLast"] = strconv.Itoa(q.LimitToLast)
	}

	body, err := s.fetch(ctx, s.nodePath(""), params)
	if err != nil {
		return nil, err
	}
	if valueRank(body) == 0 {
		return nil, nil
	}
	var children map[string]json.RawMessage
	if err := json.Unmarshal(body, &children); err != nil {
		return nil, fmt.Errorf("firebase: decode query result: %w", err)
	}

	records := make([]Record, 0, len(children))
	for k, v := range children {
		records = append(records, Record{Key: k, Value: v})
	}
	// The REST API returns an unordered object.
	sortRecords(records, q.OrderBy)
	return records, nil
}

func (s *FirebaseStore) nodePath(child string) string {
	p := "/" + s.root
	if child != "" {
		p += "/" + child
	}
	return p + ".json"
}

// fetch performs a GET with exponential backoff. Transport failures and 5xx
// responses are retried; other error statuses are permanent.
func (s *FirebaseStore) fetch(ctx context.Context, path string, params map[string]string) (json.RawMessage, error) {
	var body []byte
	attempt := 0
	operation := func() error {
		attempt++
		req := s.client.R().SetContext(ctx).SetQueryParams(params)
		if s.auth != "" {
			req.SetQueryParam("auth", s.auth)
		}
		resp, err := req.Get(path)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			s.logger.Debug("firebase request failed", "path", path, "attempt", attempt, "error", err)
			return fmt.Errorf("firebase: GET %s: %w", path, err)
		}
		switch {
		case resp.StatusCode() >= http.StatusInternalServerError:
			s.logger.Debug("firebase server error", "path", path, "attempt", attempt, "status", resp.StatusCode())
			return fmt.Errorf("firebase: GET %s: HTTP %d", path, resp.StatusCode())
		case resp.StatusCode() != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("firebase: GET %s: HTTP %d: %s",
				path, resp.StatusCode(), strings.TrimSpace(resp.String())))
		}
		body = resp.Body()
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, s.retries), ctx)

	if err := backoff.Retry(operation, retry); err != nil {
		return nil, err
	}
	return body, nil
}
