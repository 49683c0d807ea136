// api Lambda serves the sensor HTTP API behind an API Gateway HTTP API.
package main

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	awslambda "github.com/aws/aws-lambda-go/lambda"

	intlambda "github.com/dwsmith1983/trashcan/internal/lambda"
)

var (
	deps     *intlambda.Deps
	depsOnce sync.Once
	depsErr  error
)

func getDeps() (*intlambda.Deps, error) {
	depsOnce.Do(func() {
		deps, depsErr = intlambda.Init(context.Background())
	})
	return deps, depsErr
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	d, err := getDeps()
	if err != nil {
		return events.APIGatewayV2HTTPResponse{}, err
	}
	return d.Adapter.Handle(ctx, req)
}

// flush is best effort: the runtime allows about 500ms after SIGTERM.
func flush() {
	if deps == nil || deps.Shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()
	if err := deps.Shutdown(ctx); err != nil {
		deps.Logger.Warn("tracer shutdown failed", "error", err)
	}
}

func main() {
	awslambda.StartWithOptions(handler, awslambda.WithEnableSIGTERM(flush))
}
