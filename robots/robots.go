// Package robots answers "may we fetch this URL" from robots.txt, failing
// open: any problem retrieving or parsing the file allows the fetch.
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/irislabs/iris/logger"
)

const (
	keyPrefix    = "iris:robots:"
	fetchTimeout = 5 * time.Second

	// DefaultTTL is how long fetched robots.txt bodies stay in Redis so
	// that restarts and sibling instances skip the network round trip.
	DefaultTTL = 24 * time.Hour
)

// Oracle checks URLs against robots.txt. Parsed rules live in process memory
// for the life of the service; raw bodies are mirrored in Redis with a TTL.
type Oracle struct {
	userAgent string
	respect   bool
	ttl       time.Duration
	client    *http.Client
	redis     *redis.Client
	log       logger.Logger

	cache sync.Map // origin -> *Rules
	group singleflight.Group
}

// New creates an oracle for the given user agent. redisClient may be nil to
// skip the shared mirror; respect false turns every check into an allow.
func New(userAgent string, redisClient *redis.Client, respect bool, log logger.Logger) *Oracle {
	if log == nil {
		log = logger.Noop()
	}
	return &Oracle{
		userAgent: userAgent,
		respect:   respect,
		ttl:       DefaultTTL,
		client:    &http.Client{Timeout: fetchTimeout},
		redis:     redisClient,
		log:       log,
	}
}

// CanFetch reports whether url may be fetched. It never returns an error:
// unretrievable or unparseable robots.txt allows the fetch.
func (o *Oracle) CanFetch(ctx context.Context, rawURL string) bool {
	if !o.respect {
		return true
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return true
	}
	origin := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)

	rules := o.rules(ctx, origin)
	if rules == nil {
		return true
	}

	path := parsed.Path
	if parsed.RawQuery != "" {
		path = path + "?" + parsed.RawQuery
	}
	return rules.isAllowed(path)
}

// rules returns the parsed rules for an origin, fetching at most once per
// origin across concurrent callers. A nil result means allow everything.
func (o *Oracle) rules(ctx context.Context, origin string) *Rules {
	if v, ok := o.cache.Load(origin); ok {
		return v.(*Rules)
	}

	v, _, _ := o.group.Do(origin, func() (any, error) {
		if v, ok := o.cache.Load(origin); ok {
			return v.(*Rules), nil
		}
		return o.load(ctx, origin), nil
	})
	if v == nil {
		return nil
	}
	return v.(*Rules)
}

func (o *Oracle) load(ctx context.Context, origin string) *Rules {
	if o.redis != nil {
		body, err := o.redis.Get(ctx, keyPrefix+origin).Result()
		if err == nil {
			rules := parse(body, o.userAgent)
			o.cache.Store(origin, rules)
			return rules
		}
		if err != redis.Nil {
			o.log.Debug("robots redis read failed", "origin", origin, "error", err)
		}
	}

	body, status, err := o.fetch(ctx, origin)
	if err != nil {
		// Do not cache: the next fetch for this origin retries.
		o.log.Warn("failed to fetch robots.txt", "origin", origin, "error", err)
		return nil
	}

	var rules *Rules
	if status != http.StatusOK {
		rules = &Rules{}
	} else {
		rules = parse(body, o.userAgent)
	}
	o.cache.Store(origin, rules)

	if o.redis != nil && status == http.StatusOK {
		if err := o.redis.Set(ctx, keyPrefix+origin, body, o.ttl).Err(); err != nil {
			o.log.Debug("robots redis write failed", "origin", origin, "error", err)
		}
	}
	return rules
}

func (o *Oracle) fetch(ctx context.Context, origin string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("User-Agent", o.userAgent)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, err
	}
	return string(body), resp.StatusCode, nil
}
