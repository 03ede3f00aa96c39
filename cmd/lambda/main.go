package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"valuetree/infrastructure/config"
	"valuetree/infrastructure/di"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var (
	chiLambda *chiadapter.ChiLambdaV2
	container *di.Container

	coldStart     = true
	coldStartTime time.Time
)

// Headers the middleware trusts when the gateway authorizer ran. Clients
// must never be able to set them.
var gatewayHeaders = []string{
	"X-API-Gateway-Authorized",
	"X-User-ID",
	"X-User-Email",
	"X-User-Roles",
}

func init() {
	coldStartTime = time.Now()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err = di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	chiRouter, ok := container.Handler.(*chi.Mux)
	if !ok {
		log.Fatal("Failed to cast handler to chi.Mux")
	}
	chiLambda = chiadapter.NewV2(chiRouter)

	container.Logger.Info("Lambda cold start completed",
		zap.Duration("duration", time.Since(coldStartTime)),
	)
}

// applyGatewayClaims replaces client supplied identity headers with the
// claims of the API Gateway JWT authorizer, if it ran
func applyGatewayClaims(req *events.APIGatewayV2HTTPRequest) {
	if req.Headers == nil {
		req.Headers = make(map[string]string)
	}
	for key := range req.Headers {
		canonical := http.CanonicalHeaderKey(key)
		for _, h := range gatewayHeaders {
			if canonical == h {
				delete(req.Headers, key)
			}
		}
	}

	authz := req.RequestContext.Authorizer
	if authz == nil || authz.JWT == nil {
		return
	}
	sub := authz.JWT.Claims["sub"]
	if sub == "" {
		return
	}

	req.Headers["X-API-Gateway-Authorized"] = "true"
	req.Headers["X-User-ID"] = sub
	if email := authz.JWT.Claims["email"]; email != "" {
		req.Headers["X-User-Email"] = email
	}
}

// Handler is the Lambda function handler
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	applyGatewayClaims(&req)

	resp, err := chiLambda.ProxyWithContextV2(ctx, req)

	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	if coldStart {
		resp.Headers["X-Cold-Start"] = "true"
		coldStart = false
	}
	if req.RequestContext.RequestID != "" {
		resp.Headers["X-Request-ID"] = req.RequestContext.RequestID
	}

	if resp.StatusCode >= 500 {
		container.Logger.Error("Lambda error response",
			zap.String("method", req.RequestContext.HTTP.Method),
			zap.String("path", req.RequestContext.HTTP.Path),
			zap.String("request_id", req.RequestContext.RequestID),
			zap.Int("status_code", resp.StatusCode),
		)
	}

	return resp, err
}

func main() {
	lambda.Start(Handler)
}
