package coverity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/daimoniac/covdocs/internal/defects"
	"github.com/daimoniac/covdocs/internal/errors"
)

const apiVersion = "v2"

// LastSnapshot is the server-side sentinel for the most recent snapshot of
// a stream.
const LastSnapshot = "last()"

// Service is a client for the Coverity Connect REST API. It authenticates
// once per build and retrieves defect records by stream and snapshot.
type Service struct {
	baseURL     string
	apiEndpoint string
	username    string
	password    string
	client      *http.Client
	logger      *slog.Logger
}

// Option configures a Service
type Option func(*serviceOptions)

type serviceOptions struct {
	port      int
	transport string
	client    *http.Client
}

// WithPort sets a non-default server port
func WithPort(port int) Option {
	return func(o *serviceOptions) { o.port = port }
}

// WithTransport sets the URL scheme, "http" or "https" (default https)
func WithTransport(transport string) Option {
	return func(o *serviceOptions) { o.transport = transport }
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(o *serviceOptions) { o.client = client }
}

// NewService creates a client for the given server hostname
func NewService(hostname string, logger *slog.Logger, opts ...Option) *Service {
	options := serviceOptions{
		transport: "https",
		client:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(&options)
	}

	hostname = strings.Trim(hostname, "/")
	base := fmt.Sprintf("%s://%s", options.transport, hostname)
	if options.port != 0 {
		base = fmt.Sprintf("%s:%d", base, options.port)
	}

	return &Service{
		baseURL:     base,
		apiEndpoint: fmt.Sprintf("%s/api/%s", base, apiVersion),
		client:      options.client,
		logger:      logger,
	}
}

// BaseURL returns the base URL of the service
func (s *Service) BaseURL() string {
	return s.baseURL
}

// Login stores credentials used for basic auth on every request
func (s *Service) Login(username, password string) {
	s.username = username
	s.password = password
}

// DefectURL returns the server URL for a given defect CID
func (s *Service) DefectURL(stream string, cid int) string {
	params := url.Values{}
	params.Set("stream", stream)
	params.Set("cid", fmt.Sprintf("%d", cid))
	return fmt.Sprintf("%s/query/defects.htm?%s", s.baseURL, params.Encode())
}

// ValidateStream retrieves the named stream. A failure means the stream does
// not exist or the user has no access to it.
func (s *Service) ValidateStream(ctx context.Context, stream string) error {
	var out json.RawMessage
	err := s.get(ctx, fmt.Sprintf("%s/streams/%s", s.apiEndpoint, url.PathEscape(stream)), &out)
	if err != nil {
		return errors.NewRetrieval(stream, "", err)
	}
	return nil
}

// ResolveSnapshot validates a snapshot ID against the server. An empty or
// invalid ID falls back to the latest snapshot with a warning.
func (s *Service) ResolveSnapshot(ctx context.Context, snapshot string) string {
	if snapshot == "" {
		return LastSnapshot
	}
	var out json.RawMessage
	if err := s.get(ctx, fmt.Sprintf("%s/snapshots/%s", s.apiEndpoint, url.PathEscape(snapshot)), &out); err != nil {
		s.logger.Warn("snapshot not found, using the latest snapshot",
			"snapshot", snapshot,
			"error", err.Error())
		return LastSnapshot
	}
	s.logger.Debug("snapshot validated", "snapshot", snapshot)
	return snapshot
}

// Column keys requested on every defect search. Keys the server reports
// beyond the known set land in the record's checker properties under their
// column label.
var searchColumns = []string{
	"cid",
	"checker",
	"classification",
	"action",
	"status",
	"displayComponent",
	"displayImpact",
	"displayIssueKind",
	"cwe",
	"displayFile",
	"lineNumber",
	"lastTriageComment",
	"externalReference",
	"displayCategory",
	"displayType",
}

type searchRequest struct {
	Filters       []queryFilter `json:"filters"`
	Columns       []string      `json:"columns"`
	SnapshotScope snapshotScope `json:"snapshotScope"`
}

type queryFilter struct {
	ColumnKey string    `json:"columnKey"`
	MatchMode string    `json:"matchMode"`
	Matchers  []matcher `json:"matchers"`
}

type matcher struct {
	Type  string `json:"type"`
	Class string `json:"class,omitempty"`
	Name  string `json:"name,omitempty"`
	Key   string `json:"key,omitempty"`
}

type snapshotScope struct {
	Show scopeSpec `json:"show"`
}

type scopeSpec struct {
	Scope                    string `json:"scope"`
	IncludeOutdatedSnapshots bool   `json:"includeOutdatedSnapshots"`
}

type searchResponse struct {
	Offset    int          `json:"offset"`
	TotalRows int          `json:"totalRows"`
	Columns   []columnDesc `json:"columns"`
	Rows      [][]rowValue `json:"rows"`
}

type columnDesc struct {
	Name      string `json:"name"`
	ColumnKey string `json:"columnKey"`
}

type rowValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// FetchDefects retrieves all defect records for the given stream and
// snapshot scope. It implements the defects.Fetcher contract consumed by
// the defect cache.
func (s *Service) FetchDefects(ctx context.Context, stream, snapshot string) ([]defects.Record, error) {
	if snapshot == "" {
		snapshot = LastSnapshot
	}

	params := url.Values{}
	params.Set("includeColumnLabels", "true")
	params.Set("offset", "0")
	params.Set("queryType", "bySnapshot")
	params.Set("rowCount", "-1")
	params.Set("sortOrder", "asc")
	endpoint := fmt.Sprintf("%s/issues/search?%s", s.apiEndpoint, params.Encode())

	req := searchRequest{
		Filters: []queryFilter{
			{
				ColumnKey: "streams",
				MatchMode: "oneOrMoreMatch",
				Matchers: []matcher{
					{Type: "nameMatcher", Class: "Stream", Name: stream},
				},
			},
		},
		Columns: searchColumns,
		SnapshotScope: snapshotScope{
			Show: scopeSpec{Scope: snapshot},
		},
	}

	var resp searchResponse
	if err := s.post(ctx, endpoint, req, &resp); err != nil {
		return nil, errors.NewRetrieval(stream, snapshot, err)
	}

	labels := make(map[string]string, len(resp.Columns))
	for _, col := range resp.Columns {
		labels[col.ColumnKey] = col.Name
	}

	records := make([]defects.Record, 0, len(resp.Rows))
	for i, row := range resp.Rows {
		record, err := decodeRow(row, labels)
		if err != nil {
			return nil, errors.NewRetrieval(stream, snapshot,
				fmt.Errorf("row %d: %w", i, err))
		}
		records = append(records, record)
	}

	s.logger.Debug("defect search complete",
		"stream", stream,
		"snapshot", snapshot,
		"total_rows", resp.TotalRows,
		"decoded", len(records))

	return records, nil
}

func (s *Service) get(ctx context.Context, endpoint string, out interface{}) error {
	return s.request(ctx, http.MethodGet, endpoint, nil, out)
}

func (s *Service) post(ctx context.Context, endpoint string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	return s.request(ctx, http.MethodPost, endpoint, payload, out)
}

func (s *Service) request(ctx context.Context, method, endpoint string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.username, s.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return s.responseError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", errors.ErrMalformedResponse)
	}
	return nil
}

func (s *Service) responseError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	message := strings.TrimSpace(string(raw))
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		message = body.Message
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %w", message, errors.ErrUnauthorized)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", message, errors.ErrNotFound)
	default:
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, message)
	}
}
