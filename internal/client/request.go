package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"portfolio_aggregator/internal/domain/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// getJSON issues a GET honouring the context deadline (falling back to timeout) and
// returns the status code and body. Transport failures wrap entity.ErrUpstream or
// entity.ErrUpstreamTimeout.
func getJSON(ctx context.Context, client *fasthttp.Client, requestURL string, timeout time.Duration, logger *zap.Logger) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", entity.ErrUpstreamTimeout, err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetContentTypeBytes([]byte("application/json"))

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = client.DoDeadline(req, resp, deadline)
	} else {
		err = client.DoTimeout(req, resp, timeout)
	}
	if err != nil {
		logger.Warn("Failed to execute request", zap.String("url", requestURL), zap.Error(err))
		if errors.Is(err, fasthttp.ErrTimeout) {
			return 0, nil, fmt.Errorf("%w: %s: %v", entity.ErrUpstreamTimeout, requestURL, err)
		}
		return 0, nil, fmt.Errorf("%w: %s: %v", entity.ErrUpstream, requestURL, err)
	}
	return resp.StatusCode(), append([]byte(nil), resp.Body()...), nil
}
