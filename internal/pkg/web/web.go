// Package web posts run events and results to an HTTP endpoint.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ohowland/cgc_planner/internal/pkg/model"
	"github.com/ohowland/cgc_planner/internal/pkg/msg"
	"github.com/ohowland/cgc_planner/internal/pkg/results"
)

// DefaultTimeout bounds a single post.
const DefaultTimeout = 10 * time.Second

type Config struct {
	URL     string
	Timeout time.Duration
}

// Writer is a datastreams.Writer that posts JSON to
//
//	<URL>/runs/<run id>/status   for each lifecycle event
//	<URL>/runs/<run id>          for the results
type Writer struct {
	base   string
	client *http.Client
}

func New(cfg Config) (*Writer, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("web: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("web: url %q must be http or https", cfg.URL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Writer{
		base:   strings.TrimSuffix(cfg.URL, "/"),
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (w *Writer) Name() string { return "web" }

func (w *Writer) Write(ctx context.Context, m msg.Msg) error {
	switch p := m.Payload().(type) {
	case results.Event:
		return w.post(ctx, "/runs/"+p.RunID.String()+"/status", p)
	case *results.Results:
		return w.post(ctx, "/runs/"+p.RunID.String(), p)
	case model.Progress:
		return nil
	}
	return fmt.Errorf("web: unsupported payload %T", m.Payload())
}

func (w *Writer) post(ctx context.Context, path string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("web: POST %s: %s", path, resp.Status)
	}
	return nil
}

func (w *Writer) Close(context.Context) error {
	w.client.CloseIdleConnections()
	return nil
}
