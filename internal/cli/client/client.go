package client

import (
	"github.com/go-resty/resty/v2"
	"github.com/zfogg/sidechain/ranking/internal/cli/config"
	"github.com/zfogg/sidechain/ranking/internal/cli/logger"
)

// ActorHeader names the user mutations act as
const ActorHeader = "X-User-ID"

var httpClient *resty.Client

// Init initializes the HTTP client from the loaded configuration
func Init() {
	httpClient = resty.New()
	httpClient.SetBaseURL(config.GetString("api.base_url"))
	httpClient.SetTimeout(config.Timeout())
	httpClient.SetHeader("User-Agent", "trendctl/0.1.0")

	httpClient.OnBeforeRequest(func(c *resty.Client, req *resty.Request) error {
		if actor := config.GetString("api.user_id"); actor != "" && req.Header.Get(ActorHeader) == "" {
			req.Header.Set(ActorHeader, actor)
		}
		logger.Debug("HTTP Request", "method", req.Method, "url", req.URL)
		return nil
	})

	httpClient.OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
		logger.Debug("HTTP Response",
			"status", resp.StatusCode(),
			"request_id", resp.Header().Get("X-Request-ID"),
			"elapsed", resp.Time())
		return nil
	})
}

// GetClient returns the HTTP client
func GetClient() *resty.Client {
	if httpClient == nil {
		Init()
	}
	return httpClient
}

// Reset drops the client so the next GetClient picks up new configuration
func Reset() {
	httpClient = nil
}
