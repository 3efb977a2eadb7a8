package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerSettings returns the circuit breaker settings shared by outbound providers:
// five consecutive failures open the circuit for half a minute.
func BreakerSettings(name string, log *slog.Logger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
}

type breakerMailer struct {
	next Mailer
	cb   *gobreaker.CircuitBreaker[struct{}]
}

func NewBreakerMailer(next Mailer, settings gobreaker.Settings) Mailer {
	return &breakerMailer{next: next, cb: gobreaker.NewCircuitBreaker[struct{}](settings)}
}

func (b *breakerMailer) SendEmail(ctx context.Context, email Email) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.SendEmail(ctx, email)
	})
	return err
}

type breakerTexter struct {
	next Texter
	cb   *gobreaker.CircuitBreaker[struct{}]
}

func NewBreakerTexter(next Texter, settings gobreaker.Settings) Texter {
	return &breakerTexter{next: next, cb: gobreaker.NewCircuitBreaker[struct{}](settings)}
}

func (b *breakerTexter) SendSMS(ctx context.Context, to, body string) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.SendSMS(ctx, to, body)
	})
	return err
}
