package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"handover/internal/registration/models"
	id "handover/pkg/domain"
	"handover/pkg/platform/sentinel"
	"handover/pkg/requestcontext"
)

const registrationsTable = "homeowner_registrations"

// PostgRESTStore talks to the hosted backend's REST interface. The caller's
// bearer token is forwarded so the backend's row-level policies apply; the
// builder filter is still sent explicitly so ownership never depends on them alone.
// Calls without a builder session, such as delivery receipts, authenticate
// with the service key when one is configured.
type PostgRESTStore struct {
	baseURL    string
	apiKey     string
	serviceKey string
	client     *http.Client
}

// PostgRESTOption configures a PostgRESTStore.
type PostgRESTOption func(*PostgRESTStore)

// WithServiceKey sets the bearer used when the context carries no access token.
func WithServiceKey(key string) PostgRESTOption {
	return func(s *PostgRESTStore) {
		s.serviceKey = key
	}
}

// NewPostgREST constructs a client targeting the provided base URL (for example
// "https://project.example.co/rest/v1").
func NewPostgREST(baseURL, apiKey string, timeout time.Duration, opts ...PostgRESTOption) *PostgRESTStore {
	s := &PostgRESTStore{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PostgRESTStore) Create(ctx context.Context, r *models.Registration) error {
	var created []models.Registration
	if err := s.do(ctx, http.MethodPost, nil, r, &created); err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

func (s *PostgRESTStore) Update(ctx context.Context, builderID id.BuilderID, regID id.RegistrationID, p models.Payload, now time.Time) (*models.Registration, error) {
	body := make(map[string]any, len(p.Columns())+1)
	for _, c := range p.Columns() {
		body[c.Name] = c.Value
	}
	body["updated_at"] = now

	var updated []models.Registration
	if err := s.do(ctx, http.MethodPatch, ownedBy(builderID, regID), body, &updated); err != nil {
		return nil, fmt.Errorf("update registration: %w", err)
	}
	if len(updated) == 0 {
		return nil, fmt.Errorf("registration %s: %w", regID, sentinel.ErrNotFound)
	}
	return normalize(&updated[0]), nil
}

func (s *PostgRESTStore) FindByID(ctx context.Context, builderID id.BuilderID, regID id.RegistrationID) (*models.Registration, error) {
	q := ownedBy(builderID, regID)
	q.Set("select", "*")

	var found []models.Registration
	if err := s.do(ctx, http.MethodGet, q, nil, &found); err != nil {
		return nil, fmt.Errorf("find registration: %w", err)
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("registration %s: %w", regID, sentinel.ErrNotFound)
	}
	return normalize(&found[0]), nil
}

func (s *PostgRESTStore) List(ctx context.Context, builderID id.BuilderID, filter models.ListFilter) ([]*models.Registration, error) {
	filter = filter.Normalize()
	q := url.Values{}
	q.Set("builder_id", "eq."+builderID.String())
	if filter.Status != "" {
		q.Set("status", "eq."+string(filter.Status))
	}
	if filter.Query != "" {
		pattern := quoteFilterValue("*" + filter.Query + "*")
		q.Set("or", "(customer_name.ilike."+pattern+",customer_email.ilike."+pattern+
			",property_address.ilike."+pattern+",project_name.ilike."+pattern+")")
	}
	q.Set("select", "*")
	q.Set("order", "created_at.desc,id.asc")
	q.Set("limit", strconv.Itoa(filter.Limit))
	q.Set("offset", strconv.Itoa(filter.Offset))

	var found []models.Registration
	if err := s.do(ctx, http.MethodGet, q, nil, &found); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	out := make([]*models.Registration, 0, len(found))
	for i := range found {
		out = append(out, normalize(&found[i]))
	}
	return out, nil
}

// CountByStatus fetches only the status column and tallies it locally.
func (s *PostgRESTStore) CountByStatus(ctx context.Context, builderID id.BuilderID) (map[models.Status]int, error) {
	q := url.Values{}
	q.Set("builder_id", "eq."+builderID.String())
	q.Set("select", "status")

	var rows []struct {
		Status models.Status `json:"status"`
	}
	if err := s.do(ctx, http.MethodGet, q, nil, &rows); err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	counts := make(map[models.Status]int)
	for _, r := range rows {
		counts[r.Status]++
	}
	return counts, nil
}

func (s *PostgRESTStore) Delete(ctx context.Context, builderID id.BuilderID, regID id.RegistrationID) error {
	var deleted []models.Registration
	if err := s.do(ctx, http.MethodDelete, ownedBy(builderID, regID), nil, &deleted); err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if len(deleted) == 0 {
		return fmt.Errorf("registration %s: %w", regID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgRESTStore) do(ctx context.Context, method string, query url.Values, body any, out any) error {
	endpoint := s.baseURL + "/" + registrationsTable
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", "return=representation")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+s.bearer(ctx))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		switch resp.StatusCode {
		case http.StatusConflict:
			return fmt.Errorf("backend %s: %s: %w", resp.Status, msg, sentinel.ErrConflict)
		default:
			return fmt.Errorf("backend %s: %s: %w", resp.Status, msg, sentinel.ErrUnavailable)
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (s *PostgRESTStore) bearer(ctx context.Context) string {
	if token := requestcontext.AccessToken(ctx); token != "" {
		return token
	}
	if s.serviceKey != "" {
		return s.serviceKey
	}
	return s.apiKey
}

var filterEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// quoteFilterValue double-quotes a value so commas and parentheses in user
// text stay inside a logical filter.
func quoteFilterValue(v string) string {
	return `"` + filterEscaper.Replace(v) + `"`
}

func ownedBy(builderID id.BuilderID, regID id.RegistrationID) url.Values {
	q := url.Values{}
	q.Set("id", "eq."+regID.String())
	q.Set("builder_id", "eq."+builderID.String())
	return q
}

// normalize replaces JSON nulls with empty maps.
func normalize(r *models.Registration) *models.Registration {
	if r.SelectedItems == nil {
		r.SelectedItems = map[string][]string{}
	}
	if r.DocumentsUploaded == nil {
		r.DocumentsUploaded = map[string][]string{}
	}
	if r.ItemDetails == nil {
		r.ItemDetails = map[string]models.ItemDetail{}
	}
	if r.SettlementDate != nil && r.SettlementDate.IsZero() {
		r.SettlementDate = nil
	}
	return r
}
