// Package registry bridges to the external professional-license registry.
//
// The client applies a deliberate asymmetry: when the registry is unreachable
// it fails OPEN on format validity (a government API outage must not block
// emergency access) but fails CLOSED on the verification claim (IsVerified
// stays false — we never report a check that did not happen). An authoritative
// "not found" from the registry, by contrast, is a hard negative.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vida-health/vida/internal/cache"
	"github.com/vida-health/vida/internal/license"
	"github.com/vida-health/vida/internal/models"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultCacheTTL = 7 * 24 * time.Hour

	// Registry search endpoint defaults
	defaultRows      = 10
	responseFieldSet = "license_number,first_name,last_name,maternal_name,title,institution,year,gender,score"
)

// Config holds registry client configuration.
type Config struct {
	BaseURL  string
	Timeout  time.Duration // hard timeout per query
	CacheTTL time.Duration // registry records are near-immutable
	Enabled  bool          // administrative kill switch
	// OnLookup is called with the verification source after every lookup,
	// for metric counting. May be nil.
	OnLookup func(source models.VerificationSource)
}

// Client queries the professional registry with caching, a hard timeout and
// graceful degradation.
type Client struct {
	httpClient *http.Client
	config     Config
	cache      *cache.Namespace
	logger     *slog.Logger
}

// NewClient creates a registry client. The cache namespace may be nil, in
// which case every verification goes to the live API.
func NewClient(config Config, verifyCache *cache.Namespace, logger *slog.Logger) *Client {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaultCacheTTL
	}

	return &Client{
		// Transport-level timeout slightly above the per-query context
		// timeout so the context deadline is the one that fires.
		httpClient: &http.Client{Timeout: config.Timeout + time.Second},
		config:     config,
		cache:      verifyCache,
		logger:     logger,
	}
}

// registryResponse mirrors the registry's search envelope.
type registryResponse struct {
	Response struct {
		NumFound int           `json:"numFound"`
		Docs     []registryDoc `json:"docs"`
	} `json:"response"`
}

type registryDoc struct {
	LicenseNumber string  `json:"license_number"`
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	MaternalName  string  `json:"maternal_name"`
	Title         string  `json:"title"`
	Institution   string  `json:"institution"`
	Year          string  `json:"year"`
	Gender        string  `json:"gender"`
	Score         float64 `json:"score"`
}

func (d *registryDoc) toRecord() *models.RegistryRecord {
	return &models.RegistryRecord{
		LicenseNumber: d.LicenseNumber,
		FirstName:     d.FirstName,
		LastName:      d.LastName,
		MaternalName:  d.MaternalName,
		Title:         d.Title,
		Institution:   d.Institution,
		Year:          d.Year,
		Gender:        d.Gender,
		Score:         d.Score,
	}
}

// VerifyByNumber verifies a claimed license number. It never returns an
// error: degraded outcomes are encoded in the result so callers can decide
// how much to trust the credential.
func (c *Client) VerifyByNumber(ctx context.Context, rawLicense string) *models.VerificationResult {
	normalized, ok := license.Validate(rawLicense)
	if !ok {
		return c.observe(&models.VerificationResult{
			IsValid:    false,
			IsVerified: false,
			Source:     models.SourceFormatOnly,
			Error:      models.ErrInvalidLicenseFormat.Error(),
		})
	}

	if cached, hit := c.cacheGet(ctx, normalized); hit {
		cached.Source = models.SourceCache
		return c.observe(cached)
	}

	if !c.config.Enabled {
		return c.observe(&models.VerificationResult{
			IsValid:    true,
			IsVerified: false,
			Source:     models.SourceFormatOnly,
			Error:      models.ErrRegistryDisabled.Error(),
		})
	}

	result, err := c.queryByNumber(ctx, normalized)
	if err != nil {
		// Fail open on format validity, fail closed on the verification
		// claim: the outage must not block emergency access, but must not
		// silently claim a verification that didn't happen.
		errMsg := models.ErrRegistryUnavailable.Error()
		if errors.Is(err, models.ErrRegistryTimeout) {
			errMsg = models.ErrRegistryTimeout.Error()
		}
		c.logger.Warn("registry verification degraded",
			slog.String("license", normalized),
			slog.Any("error", err),
		)
		return c.observe(&models.VerificationResult{
			IsValid:    true,
			IsVerified: false,
			Source:     models.SourceFormatOnly,
			Error:      errMsg,
		})
	}

	c.cacheSet(ctx, normalized, result)
	return c.observe(result)
}

func (c *Client) observe(result *models.VerificationResult) *models.VerificationResult {
	if c.config.OnLookup != nil {
		c.config.OnLookup(result.Source)
	}
	return result
}

// queryByNumber performs one live registry query for an already-normalized
// license number.
func (c *Client) queryByNumber(ctx context.Context, normalized string) (*models.VerificationResult, error) {
	resp, err := c.search(ctx, normalized, 0, 1)
	if err != nil {
		return nil, err
	}

	if resp.Response.NumFound == 0 {
		// Authoritative negative: the registry was reached and rejects the
		// number. Harder than a mere format-only pass.
		return &models.VerificationResult{
			IsValid:    false,
			IsVerified: true,
			Source:     models.SourceLiveAPI,
			Error:      models.ErrLicenseNotInRegistry.Error(),
		}, nil
	}

	// Registry orders docs by relevance; take the best match.
	doc := resp.Response.Docs[0]
	return &models.VerificationResult{
		IsValid:    true,
		IsVerified: true,
		Record:     doc.toRecord(),
		MatchScore: doc.Score,
		Source:     models.SourceLiveAPI,
	}, nil
}

// SearchByName performs a free-text query by holder name. It never fails:
// a disabled integration or a query error yields an empty slice.
func (c *Client) SearchByName(ctx context.Context, first, paternal, maternal string) []*models.RegistryRecord {
	if !c.config.Enabled {
		return nil
	}

	parts := make([]string, 0, 3)
	for _, p := range []string{first, paternal, maternal} {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return nil
	}

	resp, err := c.search(ctx, strings.Join(parts, " "), 0, defaultRows)
	if err != nil {
		c.logger.Warn("registry name search failed", slog.Any("error", err))
		return nil
	}

	records := make([]*models.RegistryRecord, 0, len(resp.Response.Docs))
	for i := range resp.Response.Docs {
		records = append(records, resp.Response.Docs[i].toRecord())
	}
	return records
}

// VerifyHealthProfessional verifies a license and classifies the holder's
// title against the health-profession vocabulary. Name matching is heuristic
// (containment / first-token overlap), not identity proof; see NamesMatch.
func (c *Client) VerifyHealthProfessional(ctx context.Context, rawLicense, expectedName string) *models.HealthProfessionalCheck {
	result := c.VerifyByNumber(ctx, rawLicense)

	check := &models.HealthProfessionalCheck{Details: result}
	if result.Record == nil {
		return check
	}

	specialty, isHealth := ClassifyTitle(result.Record.Title)
	check.IsHealthProfessional = isHealth
	check.Specialty = specialty

	if strings.TrimSpace(expectedName) != "" {
		matches := NamesMatch(result.Record.FullName(), expectedName)
		check.MatchesName = &matches
	}
	return check
}

// search issues one GET against the registry search endpoint.
func (c *Client) search(ctx context.Context, query string, start, rows int) (*registryResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	params := url.Values{}
	params.Set("q", query)
	params.Set("fl", responseFieldSet)
	params.Set("start", strconv.Itoa(start))
	params.Set("rows", strconv.Itoa(rows))
	params.Set("wt", "json")

	endpoint := strings.TrimRight(c.config.BaseURL, "/") + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build registry request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, models.ErrRegistryTimeout
		}
		return nil, fmt.Errorf("%w: %s", models.ErrRegistryUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", models.ErrRegistryUnavailable, resp.StatusCode)
	}

	var parsed registryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %s", models.ErrRegistryUnavailable, err)
	}

	return &parsed, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *Client) cacheGet(ctx context.Context, normalized string) (*models.VerificationResult, bool) {
	if c.cache == nil {
		return nil, false
	}
	var cached models.VerificationResult
	hit, err := c.cache.GetJSON(ctx, normalized, &cached)
	if err != nil {
		c.logger.Warn("verification cache read failed", slog.Any("error", err))
		return nil, false
	}
	if !hit {
		return nil, false
	}
	return &cached, true
}

func (c *Client) cacheSet(ctx context.Context, normalized string, result *models.VerificationResult) {
	if c.cache == nil {
		return
	}
	if err := c.cache.SetJSON(ctx, normalized, result, c.config.CacheTTL); err != nil {
		c.logger.Warn("verification cache write failed", slog.Any("error", err))
	}
}
