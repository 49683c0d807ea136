package lambda

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/core"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"

	"github.com/dwsmith1983/trashcan/internal/server"
)

// Adapter proxies API Gateway HTTP API (payload v2) events to an http.Handler.
type Adapter struct {
	proxy *httpadapter.HandlerAdapterV2
}

// NewAdapter wraps h so the gateway request id becomes the request's
// X-Request-ID when the caller did not send one.
func NewAdapter(h http.Handler) *Adapter {
	return &Adapter{proxy: httpadapter.NewV2(gatewayRequestID(h))}
}

// Handle serves one event through the wrapped handler.
func (a *Adapter) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	return a.proxy.ProxyWithContext(ctx, req)
}

func gatewayRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(server.RequestIDHeader) == "" {
			if gw, ok := core.GetAPIGatewayV2ContextFromContext(r.Context()); ok && gw.RequestID != "" {
				r.Header.Set(server.RequestIDHeader, gw.RequestID)
			}
		}
		next.ServeHTTP(w, r)
	})
}
