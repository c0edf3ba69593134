package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/udovicic/security-scanner-sub004/internal/model"
)

const (
	uploadPath  = "api/v1/reports"
	contentType = "application/json"
)

// ReportUploader publishes batch reports to a remote repository over HTTP.
type ReportUploader struct {
	requestURL *url.URL
	auth       model.Auth
	client     *http.Client
}

func NewReportUploader(serverURL string, auth model.Auth) (*ReportUploader, error) {
	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}
	parsedURL.Path = strings.TrimRight(parsedURL.Path, "/")

	if parsedURL.Scheme == "" || parsedURL.Host == "" || parsedURL.Path != "" {
		return nil, errors.New("please define the server url with a scheme and without path, e.g. `http://some-url.com`")
	}

	if auth.Type == model.AuthTypeStaticToken && auth.Token == "" {
		return nil, errors.New("auth type static_token requires a token")
	}

	parsedURL.Path = uploadPath

	c := &ReportUploader{
		requestURL: parsedURL,
		auth:       auth,
		client:     &http.Client{},
	}

	return c, nil
}

func (c *ReportUploader) Upload(ctx context.Context, raw []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.requestURL.String(), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	if c.auth.Type == model.AuthTypeStaticToken {
		req.Header.Set("Authorization", "Bearer "+c.auth.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	createResp, err := c.decodeUploadResponse(resp)
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "report uploaded successfully.",
		slog.String("id", createResp.ID),
		slog.Int("version", createResp.Version))

	return nil
}

type ReportCreateResponse struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
}

func (c *ReportUploader) decodeUploadResponse(resp *http.Response) (ReportCreateResponse, error) {
	respType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return ReportCreateResponse{}, fmt.Errorf("failed to parse response content type header: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusCreated:
		if respType != "application/json" {
			return ReportCreateResponse{}, fmt.Errorf("expected `application/json` content type, got: %s", respType)
		}
		var rc ReportCreateResponse
		if err := json.NewDecoder(resp.Body).Decode(&rc); err != nil {
			return ReportCreateResponse{}, fmt.Errorf("decoding json response failed: %w", err)
		}
		if rc.ID == "" {
			return ReportCreateResponse{}, errors.New("received unexpected body")
		}
		return rc, nil

	// for now this is good enough, maybe later we'll decode the problem+json manually
	// for extra additional fields
	case http.StatusBadRequest:
		fallthrough
	case http.StatusUnauthorized:
		fallthrough
	case http.StatusConflict:
		fallthrough
	case http.StatusUnsupportedMediaType:
		if respType != "application/problem+json" {
			return ReportCreateResponse{}, fmt.Errorf("expected `application/problem+json` content type, got: %s", respType)
		}
		var problemDetail struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&problemDetail); err != nil {
			return ReportCreateResponse{}, fmt.Errorf("decoding json response failed: %w", err)
		}
		return ReportCreateResponse{}, fmt.Errorf("status code: %d, detail: %s", resp.StatusCode, problemDetail.Detail)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ReportCreateResponse{}, err
	}
	return ReportCreateResponse{}, fmt.Errorf("unknown error, status: %d, body: %s", resp.StatusCode, string(respBody))
}
