package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"arc-backend/internal/logger"
	"arc-backend/internal/models"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	DefaultWeatherQuery = "Jacksonville, NC"

	openMeteoGeocodeURL  = "https://geocoding-api.open-meteo.com/v1/search"
	openMeteoForecastURL = "https://api.open-meteo.com/v1/forecast"
	newsDataURL          = "https://newsdata.io/api/1/news"
	newsAPIURL           = "https://newsapi.org/v2/top-headlines"

	toolTimeout   = 12 * time.Second
	headlineLimit = 12
	maxToolBody   = 1 << 20

	weatherUnavailable = "Weather unavailable."
	newsUnavailable    = "News unavailable"
	noHeadlines        = "No headlines right now"
	newsKeysMissing    = "News unavailable (missing NEWSDATA_API_KEY / NEWSAPI_KEY)"
)

var locationPattern = regexp.MustCompile(`(?i)\b(?:in|for|at|near)\s+([\p{L} .,'-]+)`)

// ToolsService fetches live weather and headlines. Every call is best effort and
// returns a canned line instead of an error.
type ToolsService struct {
	client      *http.Client
	geocodeURL  string
	forecastURL string
	newsDataURL string
	newsAPIURL  string
	newsDataKey string
	newsAPIKey  string
	log         zerolog.Logger
}

// ToolsOption configures a ToolsService.
type ToolsOption func(*ToolsService)

func WithToolsHTTPClient(c *http.Client) ToolsOption {
	return func(t *ToolsService) { t.client = c }
}

// WithWeatherURLs overrides the Open-Meteo endpoints.
func WithWeatherURLs(geocode, forecast string) ToolsOption {
	return func(t *ToolsService) {
		t.geocodeURL = geocode
		t.forecastURL = forecast
	}
}

// WithNewsURLs overrides the NewsData.io and NewsAPI.org endpoints.
func WithNewsURLs(newsData, newsAPI string) ToolsOption {
	return func(t *ToolsService) {
		t.newsDataURL = newsData
		t.newsAPIURL = newsAPI
	}
}

func NewToolsService(newsDataKey, newsAPIKey string, opts ...ToolsOption) *ToolsService {
	t := &ToolsService{
		client:      &http.Client{Timeout: toolTimeout},
		geocodeURL:  openMeteoGeocodeURL,
		forecastURL: openMeteoForecastURL,
		newsDataURL: newsDataURL,
		newsAPIURL:  newsAPIURL,
		newsDataKey: newsDataKey,
		newsAPIKey:  newsAPIKey,
		log:         logger.Component("ToolsService"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Weather geocodes q and reports current conditions in one line.
func (t *ToolsService) Weather(ctx context.Context, q string) models.WeatherResponse {
	q = strings.TrimSpace(q)
	if q == "" {
		q = DefaultWeatherQuery
	}
	resp := models.WeatherResponse{Query: q, Line: weatherUnavailable}

	// Open-Meteo matches place names only, so drop any ", STATE" suffix.
	name := strings.TrimSpace(strings.SplitN(q, ",", 2)[0])

	geo, err := t.getJSON(ctx, t.geocodeURL, url.Values{
		"name":     {name},
		"count":    {"1"},
		"language": {"en"},
		"format":   {"json"},
	}, nil)
	if err != nil {
		t.log.Warn().Err(err).Str("q", q).Msg("geocoding failed")
		return resp
	}
	place := gjson.GetBytes(geo, "results.0")
	if !place.Exists() {
		resp.Line = fmt.Sprintf("Weather unavailable: no match for %q.", q)
		return resp
	}

	forecast, err := t.getJSON(ctx, t.forecastURL, url.Values{
		"latitude":         {place.Get("latitude").String()},
		"longitude":        {place.Get("longitude").String()},
		"current":          {"temperature_2m,wind_speed_10m,weather_code"},
		"temperature_unit": {"fahrenheit"},
		"wind_speed_unit":  {"mph"},
	}, nil)
	if err != nil {
		t.log.Warn().Err(err).Str("q", q).Msg("forecast failed")
		return resp
	}
	current := gjson.GetBytes(forecast, "current")
	if !current.Get("temperature_2m").Exists() {
		return resp
	}

	label := place.Get("name").String()
	if admin := place.Get("admin1").String(); admin != "" {
		label += ", " + admin
	}
	resp.OK = true
	resp.Line = fmt.Sprintf("%s: %.0f°F, %s, wind %.0f mph",
		label,
		current.Get("temperature_2m").Float(),
		describeWeatherCode(int(current.Get("weather_code").Int())),
		current.Get("wind_speed_10m").Float(),
	)
	return resp
}

// News returns top US headlines from NewsData.io, falling back to NewsAPI.org.
func (t *ToolsService) News(ctx context.Context) models.NewsResponse {
	if t.newsDataKey == "" && t.newsAPIKey == "" {
		return models.NewsResponse{OK: true, Headlines: []string{newsKeysMissing}}
	}

	if t.newsDataKey != "" {
		body, err := t.getJSON(ctx, t.newsDataURL, url.Values{
			"apikey":   {t.newsDataKey},
			"country":  {"us"},
			"language": {"en"},
			"size":     {fmt.Sprint(headlineLimit)},
		}, nil)
		if err == nil {
			return models.NewsResponse{OK: true, Provider: "newsdata", Headlines: titles(body, "results")}
		}
		t.log.Warn().Err(err).Msg("newsdata.io failed")
	}

	if t.newsAPIKey != "" {
		body, err := t.getJSON(ctx, t.newsAPIURL, url.Values{
			"country":  {"us"},
			"pageSize": {fmt.Sprint(headlineLimit)},
		}, map[string]string{"X-Api-Key": t.newsAPIKey})
		if err == nil {
			return models.NewsResponse{OK: true, Provider: "newsapi", Headlines: titles(body, "articles")}
		}
		t.log.Warn().Err(err).Msg("newsapi.org failed")
	}

	return models.NewsResponse{OK: true, Headlines: []string{newsUnavailable}}
}

// WeatherQueryFrom pulls a location out of free text such as "weather in Boston?".
func WeatherQueryFrom(msg string) string {
	m := locationPattern.FindStringSubmatch(msg)
	if m == nil {
		return DefaultWeatherQuery
	}
	loc := strings.Trim(strings.TrimSpace(m[1]), ".,'-")
	if loc == "" {
		return DefaultWeatherQuery
	}
	return loc
}

func titles(body []byte, listPath string) []string {
	var out []string
	gjson.GetBytes(body, listPath).ForEach(func(_, item gjson.Result) bool {
		if title := strings.TrimSpace(item.Get("title").String()); title != "" {
			out = append(out, title)
		}
		return len(out) < headlineLimit
	})
	if len(out) == 0 {
		return []string{noHeadlines}
	}
	return out
}

func (t *ToolsService) getJSON(ctx context.Context, endpoint string, params url.Values, headers map[string]string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxToolBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("malformed response")
	}
	return body, nil
}

// describeWeatherCode maps WMO weather codes to short words.
func describeWeatherCode(code int) string {
	switch {
	case code == 0:
		return "clear"
	case code <= 3:
		return "partly cloudy"
	case code == 45 || code == 48:
		return "fog"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67, code >= 80 && code <= 82:
		return "rain"
	case code >= 71 && code <= 77, code == 85 || code == 86:
		return "snow"
	case code >= 95:
		return "thunderstorms"
	}
	return "unsettled"
}
