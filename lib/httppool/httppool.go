// Package httppool maintains a fixed set of pre-configured resty clients
// shared by every crawl task. Clients are never mutated after
// construction, so handing them out without synchronization is safe and
// imprecise load balancing between them is acceptable.
package httppool

import (
	"net/http"
	"sync"
	"time"

	"fcrank-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type Options struct {
	// number of pooled clients, defaults to 10
	Size int
	// static credential sent as the x-nxopen-api-key header
	ApiKey    string
	UserAgent string
	// overall per-request ceiling, individual calls use shorter
	// context deadlines on top of this
	Timeout time.Duration
	// wraps the transport with the browser-protection bypass, needed
	// for the HTML datacenter host
	BypassBrowserCheck bool
	TracerName         string
}

type Pool struct {
	clients []*resty.Client
}

func New(opts Options) *Pool {
	size := opts.Size
	if size <= 0 {
		size = 10
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second * 5
	}
	if opts.TracerName == "" {
		opts.TracerName = "lib/httppool"
	}

	clients := make([]*resty.Client, size)
	for i := range clients {
		clients[i] = newClient(opts)
	}
	return &Pool{clients: clients}
}

func newClient(opts Options) *resty.Client {
	client := resty.New()
	client.SetHeader("user-agent", opts.UserAgent)
	if opts.ApiKey != "" {
		client.SetHeader("x-nxopen-api-key", opts.ApiKey)
	}
	client.SetTimeout(opts.Timeout)

	client.SetRetryCount(3)
	client.SetRetryWaitTime(time.Millisecond * 100)
	client.SetRetryMaxWaitTime(time.Second * 2)
	client.AddRetryCondition(func(res *resty.Response, err error) bool {
		if res == nil || res.Request == nil {
			return false
		}
		method := res.Request.Method
		if method != http.MethodGet && method != http.MethodPost {
			return false
		}
		switch res.StatusCode() {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	})

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
	}
	if opts.BypassBrowserCheck {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(transport)
	} else {
		client.GetClient().Transport = transport
	}

	telemetry.InstrumentResty(client, opts.TracerName)
	return client
}

// Acquire hands out one of the pooled clients picked by a time-based
// hash. Best effort on purpose: the clients are interchangeable.
func (p *Pool) Acquire() *resty.Client {
	idx := int(uint64(time.Now().UnixNano()) % uint64(len(p.clients)))
	return p.clients[idx]
}

func (p *Pool) Size() int {
	return len(p.clients)
}

var (
	defaultOnce sync.Once
	defaultPool *Pool
)

// Default lazily constructs the process-lifetime pool on first use.
// Options are only honored on the constructing call.
func Default(opts Options) *Pool {
	defaultOnce.Do(func() {
		defaultPool = New(opts)
	})
	return defaultPool
}
