package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(toolCacheRequests) }

// Cache names used by the tool catalog decorator.
const (
	CacheTool     = "tool"
	CacheToolList = "tool_list"
)

var toolCacheRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tool_cache_requests_total",
		Help: "Tool catalog cache lookups by cache and result.",
	},
	[]string{"cache", "result"}, // cache="tool"|"tool_list", result="hit"|"miss"
)

func IncCacheRequest(cacheName, result string) {
	toolCacheRequests.WithLabelValues(norm(cacheName), norm(result)).Inc()
}
