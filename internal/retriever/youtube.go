package retriever

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/ObiAU/feeddigest/internal/models"
)

const (
	youtubeBaseURL       = "https://www.youtube.com"
	innertubeClientName  = "ANDROID"
	innertubeClientVer   = "20.10.38"
	recaptchaMarker      = `class="g-recaptcha"`
	maxResponseBodyBytes = 8 << 20
)

var apiKeyPattern = regexp.MustCompile(`"INNERTUBE_API_KEY":\s*"([a-zA-Z0-9_-]+)"`)

// YouTube reads caption tracks through the innertube player endpoint.
type YouTube struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

// NewYouTube builds a transcript source. cookiesFile is an optional
// Netscape cookies.txt used to get past consent and bot walls.
func NewYouTube(timeout time.Duration, userAgent, cookiesFile string) (*YouTube, error) {
	client := &http.Client{Timeout: timeout}
	if cookiesFile != "" {
		jar, err := loadCookies(cookiesFile)
		if err != nil {
			return nil, err
		}
		client.Jar = jar
	}

	return &YouTube{
		client:    client,
		baseURL:   youtubeBaseURL,
		userAgent: userAgent,
	}, nil
}

func (y *YouTube) Fetch(ctx context.Context, item models.Item, languages []string) ([]string, error) {
	page, err := y.get(ctx, y.baseURL+"/watch?v="+url.QueryEscape(item.ID))
	if err != nil {
		return nil, err
	}

	m := apiKeyPattern.FindSubmatch(page)
	if m == nil {
		if strings.Contains(string(page), recaptchaMarker) {
			return nil, fetchError(models.ReasonRateLimited, "watch page answered with a captcha")
		}
		return nil, fetchError(models.ReasonUnknown, "innertube api key not found on watch page")
	}

	player, err := y.player(ctx, string(m[1]), item.ID)
	if err != nil {
		return nil, err
	}

	if err := checkPlayability(player); err != nil {
		return nil, err
	}

	tracks := player.Get("captions.playerCaptionsTracklistRenderer.captionTracks")
	if !tracks.Exists() || len(tracks.Array()) == 0 {
		return nil, fetchError(models.ReasonTranscriptsDisabled, "video %s has no caption tracks", item.ID)
	}

	trackURL, ok := selectTrack(tracks.Array(), languages)
	if !ok {
		return nil, fetchError(models.ReasonNoTranscript, "no caption track in %s", strings.Join(languages, ", "))
	}

	return y.transcript(ctx, trackURL)
}

func (y *YouTube) player(ctx context.Context, apiKey, videoID string) (gjson.Result, error) {
	body, _ := sjson.Set("", "context.client.clientName", innertubeClientName)
	body, _ = sjson.Set(body, "context.client.clientVersion", innertubeClientVer)
	body, _ = sjson.Set(body, "context.client.hl", "en")
	body, err := sjson.Set(body, "videoId", videoID)
	if err != nil {
		return gjson.Result{}, fetchError(models.ReasonUnknown, "build player request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		y.baseURL+"/youtubei/v1/player?key="+url.QueryEscape(apiKey), strings.NewReader(body))
	if err != nil {
		return gjson.Result{}, fetchError(models.ReasonUnknown, "%v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	data, err := y.do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fetchError(models.ReasonUnknown, "player response is not JSON")
	}
	return gjson.ParseBytes(data), nil
}

func checkPlayability(player gjson.Result) error {
	status := player.Get("playabilityStatus.status").String()
	if status == "" || status == "OK" {
		return nil
	}

	reason := player.Get("playabilityStatus.reason").String()
	if status == "LOGIN_REQUIRED" && strings.Contains(strings.ToLower(reason), "bot") {
		return fetchError(models.ReasonRateLimited, "%s", reason)
	}
	return fetchError(models.ReasonUnknown, "video unplayable (%s): %s", status, reason)
}

// selectTrack walks the preferred languages in order and takes a manual
// track before an auto-generated one.
func selectTrack(tracks []gjson.Result, languages []string) (string, bool) {
	for _, lang := range languages {
		var generated string
		for _, t := range tracks {
			if !strings.EqualFold(t.Get("languageCode").String(), lang) {
				continue
			}
			base := t.Get("baseUrl").String()
			if base == "" {
				continue
			}
			if t.Get("kind").String() != "asr" {
				return base, true
			}
			if generated == "" {
				generated = base
			}
		}
		if generated != "" {
			return generated, true
		}
	}
	return "", false
}

func (y *YouTube) transcript(ctx context.Context, trackURL string) ([]string, error) {
	base, _ := url.Parse(y.baseURL)
	u, err := base.Parse(trackURL)
	if err != nil {
		return nil, fetchError(models.ReasonUnknown, "bad caption url: %v", err)
	}
	q := u.Query()
	q.Set("fmt", "json3")
	u.RawQuery = q.Encode()

	data, err := y.get(ctx, u.String())
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fetchError(models.ReasonUnknown, "caption track is not JSON")
	}

	var lines []string
	gjson.GetBytes(data, "events").ForEach(func(_, event gjson.Result) bool {
		var sb strings.Builder
		event.Get("segs").ForEach(func(_, seg gjson.Result) bool {
			sb.WriteString(seg.Get("utf8").String())
			return true
		})
		if line := strings.TrimSpace(strings.ReplaceAll(sb.String(), "\n", " ")); line != "" {
			lines = append(lines, line)
		}
		return true
	})
	return lines, nil
}

func (y *YouTube) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fetchError(models.ReasonUnknown, "%v", err)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	return y.do(req)
}

func (y *YouTube) do(req *http.Request) ([]byte, error) {
	if y.userAgent != "" {
		req.Header.Set("User-Agent", y.userAgent)
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fetchError(models.ReasonUnknown, "%v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fetchError(models.ReasonRateLimited, "%s answered 429", req.URL.Host)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fetchError(models.ReasonUnknown, "%s returned status %d", req.URL.Path, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, fetchError(models.ReasonUnknown, "read response: %v", err)
	}
	return data, nil
}

// loadCookies reads a Netscape cookies.txt file into a jar.
func loadCookies(path string) (http.CookieJar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open cookies file: %v", models.ErrConfigInvalid, err)
	}
	defer f.Close()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	byHost := make(map[string][]*http.Cookie)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		httpOnly := false
		if strings.HasPrefix(line, "#HttpOnly_") {
			line = strings.TrimPrefix(line, "#HttpOnly_")
			httpOnly = true
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			continue
		}

		domain := fields[0]
		cookie := &http.Cookie{
			Domain:   domain,
			Path:     fields[2],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			Name:     fields[5],
			Value:    fields[6],
			HttpOnly: httpOnly,
		}
		if exp, err := strconv.ParseInt(fields[4], 10, 64); err == nil && exp > 0 {
			cookie.Expires = time.Unix(exp, 0)
		}

		host := strings.TrimPrefix(domain, ".")
		byHost[host] = append(byHost[host], cookie)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read cookies file: %v", models.ErrConfigInvalid, err)
	}

	for host, cookies := range byHost {
		jar.SetCookies(&url.URL{Scheme: "https", Host: host, Path: "/"}, cookies)
	}
	return jar, nil
}
