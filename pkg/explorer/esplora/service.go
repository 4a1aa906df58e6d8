package esplora

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"

	"github.com/ordex-network/ordex-daemon/pkg/circuitbreaker"
	"github.com/ordex-network/ordex-daemon/pkg/explorer"
	"github.com/ordex-network/ordex-daemon/pkg/httputil"
)

// pageSize is the number of items requested per page when fetching unspents.
// The upstream signals the end of the list with a short page.
const pageSize = 64

type esplora struct {
	apiURL  string
	ordURL  string
	cb      *gobreaker.CircuitBreaker
	limiter ratelimit.Limiter
}

// NewService returns a new esplora service as an explorer.Service interface.
// It talks to two upstreams fixed at construction time: an esplora-style API
// for fees and broadcasting, and an ord indexer API for inscriptions and
// address unspents.
func NewService(apiURL, ordURL string, requestsPerSecond int) (explorer.Service, error) {
	service := &esplora{
		apiURL:  apiURL,
		ordURL:  ordURL,
		cb:      circuitbreaker.NewCircuitBreaker(),
		limiter: ratelimit.New(requestsPerSecond),
	}

	if err := service.healthCheck(); err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}

	return service, nil
}

func (e *esplora) healthCheck() error {
	url := fmt.Sprintf("%s/blocks/tip/height", e.apiURL)
	status, resp, err := e.request("GET", url, "", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return errors.New(resp)
	}
	return nil
}

type httpResponse struct {
	status int
	body   string
}

// request wraps every upstream call with rate limiting and the circuit
// breaker. Only transport failures count against the breaker; non-200
// statuses are upstream verdicts and are left to the caller.
func (e *esplora) request(method, url, body string, headers map[string]string) (int, string, error) {
	e.limiter.Take()

	iRes, err := e.cb.Execute(func() (interface{}, error) {
		status, resp, err := httputil.NewHTTPRequest(method, url, body, headers)
		if err != nil {
			return nil, err
		}
		return httpResponse{status, resp}, nil
	})
	if err != nil {
		return 0, "", err
	}

	res := iRes.(httpResponse)
	return res.status, res.body, nil
}
