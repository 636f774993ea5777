// Package service resolves which regional store a subject's data belongs to.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"privata/internal/cache"
	"privata/internal/region/geo"
	"privata/internal/region/models"
	"privata/internal/region/store"
	"privata/pkg/domain"
	dErrors "privata/pkg/domain-errors"
	"privata/pkg/platform/sentinel"
	"privata/pkg/requestcontext"
)

const defaultCacheTTL = 10 * time.Minute

// Router resolves regions from, in priority order, the recorded mapping,
// structured data and request metadata. It never guesses: input with no
// usable signal is region_undetermined.
type Router struct {
	store     store.Store
	cache     cache.Cache
	cacheTTL  time.Duration
	locator   geo.Locator
	countries map[string]domain.Region
	logger    *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithCache serves mapping lookups from c. The store stays authoritative.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(r *Router) {
		r.cache = c
		if ttl > 0 {
			r.cacheTTL = ttl
		}
	}
}

// WithLocator enables IP based resolution.
func WithLocator(l geo.Locator) Option {
	return func(r *Router) {
		r.locator = l
	}
}

// WithCountries replaces the country to region table.
func WithCountries(countries map[string]domain.Region) Option {
	return func(r *Router) {
		r.countries = countries
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New constructs a Router over the authoritative mapping store.
func New(st store.Store, opts ...Option) *Router {
	if st == nil {
		panic("region mapping store is required")
	}
	r := &Router{
		store:     st,
		cacheTTL:  defaultCacheTTL,
		countries: geo.DefaultCountries(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve determines the region for in.
func (r *Router) Resolve(ctx context.Context, in models.Input) (models.Resolution, error) {
	res, err := r.resolve(ctx, in)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeRegionUndetermined) {
			resolutionsTotal.WithLabelValues("undetermined").Inc()
		}
		return models.Resolution{}, err
	}
	resolutionsTotal.WithLabelValues(string(res.Source)).Inc()
	return res, nil
}

func (r *Router) resolve(ctx context.Context, in models.Input) (models.Resolution, error) {
	// A data error only surfaces when no mapping exists; the mapping wins.
	fromData, hasData, dataErr := r.fromData(in.Data)
	if dataErr != nil {
		hasData = false
	}

	if !in.SubjectID.IsNil() {
		mapped, ok, err := r.mapping(ctx, in.SubjectID, fromData, hasData)
		if err != nil {
			return models.Resolution{}, err
		}
		if ok {
			return models.Resolution{Region: mapped, Source: models.SourceMapping}, nil
		}
	}
	if dataErr != nil {
		return models.Resolution{}, dataErr
	}
	if hasData {
		return fromData, nil
	}
	if res, ok, err := r.fromRequest(ctx, in.Request); err != nil || ok {
		return res, err
	}
	return models.Resolution{}, dErrors.New(dErrors.CodeRegionUndetermined, "no residency signal for subject")
}

// mapping returns the recorded region. A cached value that contradicts the
// data-derived region is re-read from the store and the cache overwritten.
func (r *Router) mapping(ctx context.Context, subjectID domain.SubjectID, fromData models.Resolution, hasData bool) (domain.Region, bool, error) {
	if cached, ok := r.cached(ctx, subjectID); ok {
		if !hasData || cached == fromData.Region {
			return cached, true, nil
		}
		cacheDisagreements.Inc()
		r.logger.WarnContext(ctx, "cached region disagrees with data, re-reading mapping",
			"subject_id", subjectID,
			"cached_region", cached,
			"data_region", fromData.Region,
		)
	}

	m, err := r.store.Get(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			r.evict(ctx, subjectID)
			return "", false, nil
		}
		return "", false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read region mapping")
	}
	r.fill(ctx, subjectID, m.Region)
	return m.Region, true, nil
}

// Pin records the explicit mapping, writing through to the cache.
func (r *Router) Pin(ctx context.Context, subjectID domain.SubjectID, region domain.Region) error {
	if subjectID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "subject ID is required")
	}
	if region.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "region is required")
	}
	err := r.store.Put(ctx, &models.Mapping{
		SubjectID:  subjectID,
		Region:     region,
		RecordedAt: requestcontext.Now(ctx),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record region mapping")
	}
	r.fill(ctx, subjectID, region)
	return nil
}

// Lookup returns the recorded region without inference.
func (r *Router) Lookup(ctx context.Context, subjectID domain.SubjectID) (domain.Region, bool, error) {
	return r.mapping(ctx, subjectID, models.Resolution{}, false)
}

func (r *Router) fromData(data map[string]any) (models.Resolution, bool, error) {
	if len(data) == 0 {
		return models.Resolution{}, false, nil
	}
	for _, key := range []string{"country", "country_code"} {
		if s, ok := data[key].(string); ok && strings.TrimSpace(s) != "" {
			return r.countryResolution(s, models.SourceData)
		}
	}
	if addr, ok := data["address"].(map[string]any); ok {
		if s, ok := addr["country"].(string); ok && strings.TrimSpace(s) != "" {
			return r.countryResolution(s, models.SourceData)
		}
	}
	if s, ok := data["address.country"].(string); ok && strings.TrimSpace(s) != "" {
		return r.countryResolution(s, models.SourceData)
	}
	if s, ok := data["phone"].(string); ok {
		if country, ok := geo.PhoneCountry(s); ok {
			return r.countryResolution(country, models.SourceData)
		}
	}
	return models.Resolution{}, false, nil
}

// countryResolution maps an explicit country onto a region. A country that
// is named but not served by any region is undetermined rather than skipped.
func (r *Router) countryResolution(country string, source models.Source) (models.Resolution, bool, error) {
	code, ok := geo.NormalizeCountry(country)
	if !ok {
		return models.Resolution{}, false, dErrors.New(dErrors.CodeRegionUndetermined, fmt.Sprintf("unrecognised country %q", country))
	}
	region, ok := r.countries[code]
	if !ok {
		return models.Resolution{}, false, dErrors.New(dErrors.CodeRegionUndetermined, "no region serves country "+code)
	}
	return models.Resolution{Region: region, Source: source, Country: code}, true, nil
}

func (r *Router) fromRequest(ctx context.Context, req models.RequestMeta) (models.Resolution, bool, error) {
	if r.locator != nil && req.IP != "" {
		if addr, err := netip.ParseAddr(req.IP); err == nil {
			country, ok, err := r.locator.Locate(ctx, addr)
			if err != nil {
				return models.Resolution{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "ip geolocation failed")
			}
			if region, served := r.countries[country]; ok && served {
				return models.Resolution{Region: region, Source: models.SourceIP, Country: country}, true, nil
			}
		}
	}
	for _, country := range geo.AcceptLanguageCountries(req.AcceptLanguage) {
		if region, ok := r.countries[country]; ok {
			return models.Resolution{Region: region, Source: models.SourceAcceptLanguage, Country: country}, true, nil
		}
	}
	return models.Resolution{}, false, nil
}

func (r *Router) cached(ctx context.Context, subjectID domain.SubjectID) (domain.Region, bool) {
	if r.cache == nil {
		return "", false
	}
	raw, ok, err := r.cache.Get(ctx, cache.RegionKey(subjectID))
	if err != nil {
		r.logger.WarnContext(ctx, "region cache read failed", "error", err)
		return "", false
	}
	if !ok || len(raw) == 0 {
		return "", false
	}
	return domain.Region(raw), true
}

func (r *Router) fill(ctx context.Context, subjectID domain.SubjectID, region domain.Region) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, cache.RegionKey(subjectID), []byte(region), r.cacheTTL); err != nil {
		r.logger.WarnContext(ctx, "region cache write failed", "error", err)
	}
}

func (r *Router) evict(ctx context.Context, subjectID domain.SubjectID) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, cache.RegionKey(subjectID)); err != nil {
		r.logger.WarnContext(ctx, "region cache delete failed", "error", err)
	}
}
