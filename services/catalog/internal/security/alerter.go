package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultAlertPrefix = "smartimmo:catalog:alerts"

var incrWithExpiry = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

type rule struct {
	threshold int64
	window    time.Duration
}

// Alert is the outcome of observing one security event.
type Alert struct {
	Triggered bool
	Count     int64
	Threshold int64
	Window    time.Duration
}

// Alerter counts failed or denied security events per client IP in fixed
// windows and reports when a threshold is reached.
type Alerter struct {
	client *redis.Client
	prefix string
}

// NewAlerter returns nil when addr is empty; a nil Alerter observes nothing.
func NewAlerter(addr, password, prefix string) *Alerter {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil
	}
	return NewAlerterWithClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	}), prefix)
}

// NewAlerterWithClient wraps an existing client.
func NewAlerterWithClient(client *redis.Client, prefix string) *Alerter {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultAlertPrefix
	}
	return &Alerter{client: client, prefix: prefix}
}

// Observe records event with outcome for ip.
func (a *Alerter) Observe(ctx context.Context, event, outcome, ip string) (Alert, error) {
	if a == nil || a.client == nil {
		return Alert{}, nil
	}
	r, ok := ruleFor(event, outcome)
	if !ok {
		return Alert{}, nil
	}
	windowMs := r.window.Milliseconds()
	slot := time.Now().UTC().UnixMilli() / windowMs
	key := fmt.Sprintf("%s:%s:%s:%s:%d", a.prefix, segment(event), segment(outcome), segment(ip), slot)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	count, err := incrWithExpiry.Run(ctx, a.client, []string{key}, windowMs).Int64()
	if err != nil {
		return Alert{}, err
	}
	return Alert{
		Triggered: count >= r.threshold,
		Count:     count,
		Threshold: r.threshold,
		Window:    r.window,
	}, nil
}

// Close releases the Redis client.
func (a *Alerter) Close() error {
	if a == nil || a.client == nil {
		return nil
	}
	return a.client.Close()
}

func ruleFor(event, outcome string) (rule, bool) {
	switch strings.TrimSpace(outcome) {
	case "rate_limited":
		return rule{threshold: 20, window: time.Minute}, true
	case "denied":
		return rule{threshold: 15, window: 5 * time.Minute}, true
	case "fail":
	default:
		return rule{}, false
	}
	switch strings.TrimSpace(event) {
	case "catalog.login", "catalog.signup":
		return rule{threshold: 10, window: 5 * time.Minute}, true
	case "catalog.logout":
		return rule{threshold: 15, window: 5 * time.Minute}, true
	case "catalog.authorize":
		return rule{threshold: 25, window: 5 * time.Minute}, true
	default:
		return rule{}, false
	}
}

var segmentReplacer = strings.NewReplacer(":", "_", "|", "_", " ", "_")

func segment(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}
	return segmentReplacer.Replace(in)
}
