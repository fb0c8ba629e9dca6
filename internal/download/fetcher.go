package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"tessera/internal/config"
	"tessera/internal/faults"
	"tessera/internal/logging"
)

// PartSuffix marks a download that has not completed.
const PartSuffix = ".part"

// Options configures a Fetcher.
type Options struct {
	Timeout      time.Duration
	MaxRedirects int
	Retries      int
	UserAgent    string
}

// OptionsFromConfig maps the [download] section onto Options.
func OptionsFromConfig(cfg config.Download) Options {
	return Options{
		Timeout:      time.Duration(cfg.TimeoutSeconds) * time.Second,
		MaxRedirects: cfg.MaxRedirects,
		Retries:      cfg.Retries,
		UserAgent:    cfg.UserAgent,
	}
}

// Result describes a completed download.
type Result struct {
	URL       string
	FinalURL  string
	Path      string
	Bytes     int64
	Redirects int
	Elapsed   time.Duration
}

// Fetcher downloads URLs to files.
type Fetcher struct {
	client       *resty.Client
	maxRedirects int
	logger       *slog.Logger
}

// New builds a Fetcher. Automatic redirects are disabled on the client; Fetch follows them itself.
func New(opts Options, logger *slog.Logger) *Fetcher {
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 10
	}
	client := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))
	component := logging.NewComponentLogger(logger, "download")
	client.SetLogger(restyLogger{logger: component})
	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		client.SetHeader("User-Agent", ua)
	}
	return &Fetcher{
		client:       client,
		maxRedirects: opts.MaxRedirects,
		logger:       component,
	}
}

// restyLogger routes resty's own diagnostics into slog.
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)), logging.String(logging.FieldEventType, "http_client"))
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)), logging.String(logging.FieldEventType, "http_client"))
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Fetch streams rawURL into destPath. On failure the partial file is removed
// and destPath is left untouched.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, destPath string) (Result, error) {
	start := time.Now()
	result := Result{URL: rawURL, Path: destPath}
	logger := logging.WithContext(ctx, f.logger)

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return result, faults.Wrap(faults.ErrFilesystem, "", "create download directory", filepath.Dir(destPath), err)
	}
	partPath := destPath + PartSuffix
	out, err := os.OpenFile(partPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return result, faults.Wrap(faults.ErrFilesystem, "", "open destination", partPath, err)
	}
	cleanup := func() {
		_ = out.Close()
		_ = os.Remove(partPath)
	}

	logger.Info("download started",
		logging.String("url", rawURL),
		logging.String("path", destPath),
		logging.String(logging.FieldEventType, "download_started"),
	)

	body, finalURL, redirects, err := f.open(ctx, rawURL)
	result.FinalURL = finalURL
	result.Redirects = redirects
	if err != nil {
		cleanup()
		return result, err
	}
	n, copyErr := io.Copy(out, body)
	_ = body.Close()
	result.Bytes = n
	if copyErr != nil {
		cleanup()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		var pathErr *os.PathError
		if errors.As(copyErr, &pathErr) {
			return result, faults.Wrap(faults.ErrFilesystem, "", "write", partPath, copyErr)
		}
		return result, faults.Wrap(faults.ErrNetwork, "", "read body", finalURL, copyErr)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(partPath)
		return result, faults.Wrap(faults.ErrFilesystem, "", "close", partPath, err)
	}
	if err := os.Rename(partPath, destPath); err != nil {
		_ = os.Remove(partPath)
		return result, faults.Wrap(faults.ErrFilesystem, "", "rename", destPath, err)
	}

	result.Elapsed = time.Since(start)
	logger.Info("download completed",
		logging.String("url", finalURL),
		logging.Int64("bytes", n),
		logging.Int("redirects", redirects),
		logging.Duration("elapsed", result.Elapsed),
		logging.String(logging.FieldEventType, "download_completed"),
	)
	return result, nil
}

// open issues GETs until a non-redirect response arrives, returning its body.
func (f *Fetcher) open(ctx context.Context, rawURL string) (io.ReadCloser, string, int, error) {
	current := rawURL
	for redirects := 0; ; redirects++ {
		resp, err := f.client.R().
			SetContext(ctx).
			SetDoNotParseResponse(true).
			Get(current)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, current, redirects, ctxErr
			}
			return nil, current, redirects, faults.Wrap(faults.ErrNetwork, "", "GET", current, err)
		}
		status := resp.StatusCode()
		switch {
		case status >= 200 && status < 300:
			return resp.RawBody(), current, redirects, nil
		case status >= 300 && status < 400:
			location := resp.Header().Get("Location")
			closeBody(resp)
			if location == "" {
				return nil, current, redirects, faults.Wrap(faults.ErrNetwork, "", "redirect", fmt.Sprintf("HTTP %d without Location from %s", status, current), nil)
			}
			if redirects+1 > f.maxRedirects {
				return nil, current, redirects, faults.Wrap(faults.ErrNetwork, "", "redirect", fmt.Sprintf("stopped after %d redirects", f.maxRedirects), nil)
			}
			next, err := resolve(current, location)
			if err != nil {
				return nil, current, redirects, faults.Wrap(faults.ErrNetwork, "", "redirect", "invalid Location "+location, err)
			}
			f.logger.Debug("following redirect",
				logging.Int("status", status),
				logging.String("from", current),
				logging.String("to", next),
			)
			current = next
		default:
			closeBody(resp)
			return nil, current, redirects, faults.Wrap(faults.ErrNetwork, "", "GET", fmt.Sprintf("HTTP %d from %s", status, current), nil)
		}
	}
}

func resolve(base, location string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(ref).String(), nil
}

func closeBody(resp *resty.Response) {
	if body := resp.RawBody(); body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(body, 64*1024))
		_ = body.Close()
	}
}
