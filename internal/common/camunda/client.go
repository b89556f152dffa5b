package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"landreg-workers/internal/common/config"
	"landreg-workers/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// RetryConfig bounds how long startup waits for the broker.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = RetryConfig{
	MaxRetries: 10,
	BaseDelay:  1 * time.Second,
	MaxDelay:   15 * time.Second,
}

// Connect opens a Zeebe client and waits until the gateway answers a
// topology request, backing off between attempts.
func Connect(ctx context.Context, cfg config.CamundaConfig, retry RetryConfig, log logger.Logger) (zbc.Client, error) {
	client, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	requestTimeout := time.Duration(cfg.RequestTimeout) * time.Millisecond
	delay := retry.BaseDelay
	for attempt := 0; ; attempt++ {
		err = topology(ctx, client, requestTimeout)
		if err == nil {
			return client, nil
		}
		if !isRetryableZeebeError(err) || attempt >= retry.MaxRetries {
			client.Close()
			return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", cfg.BrokerAddress, err)
		}

		log.Warn("zeebe not reachable, retrying", map[string]interface{}{
			"error":       err,
			"attempt":     attempt + 1,
			"nextRetryIn": delay.String(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			client.Close()
			return nil, ctx.Err()
		}
		delay *= 2
		if delay > retry.MaxDelay {
			delay = retry.MaxDelay
		}
	}
}

// HealthCheck sends a topology request, used by the readiness endpoint.
func HealthCheck(ctx context.Context, client zbc.Client) error {
	if err := topology(ctx, client, 3*time.Second); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}

func topology(ctx context.Context, client zbc.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := client.NewTopologyCommand().Send(ctx)
	return err
}

func isRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, phrase := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"deadline exceeded",
		"unavailable",
		"unreachable",
		"broken pipe",
	} {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
