// Package backoff — экспоненциальный backoff с джиттером для пауз
// агента при простое и ошибках.
package backoff

import (
	"context"
	"math/rand"
	"time"
)

// Значения по умолчанию.
const (
	defaultMin    = time.Second
	defaultMax    = 30 * time.Second
	defaultFactor = 2.0
	defaultJitter = 0.25
)

// Backoff — экспоненциальный backoff с джиттером.
// Не потокобезопасен: каждый агент держит собственный экземпляр.
type Backoff struct {
	// Min — начальная задержка.
	Min time.Duration

	// Max — потолок задержки.
	Max time.Duration

	// Factor — множитель роста.
	Factor float64

	// Jitter — доля случайного разброса (0..1) вокруг вычисленной задержки.
	Jitter float64

	attempt int
}

// New создаёт Backoff со значениями по умолчанию (1s → 30s, множитель 2).
func New() *Backoff {
	return &Backoff{Min: defaultMin, Max: defaultMax, Factor: defaultFactor, Jitter: defaultJitter}
}

// Next возвращает следующую задержку и увеличивает счётчик попыток.
func (b *Backoff) Next() time.Duration {
	min := b.Min
	if min <= 0 {
		min = defaultMin
	}
	max := b.Max
	if max <= 0 {
		max = defaultMax
	}
	factor := b.Factor
	if factor < 1 {
		factor = defaultFactor
	}

	delay := float64(min)
	for i := 0; i < b.attempt; i++ {
		delay *= factor
		if delay >= float64(max) {
			delay = float64(max)
			break
		}
	}
	b.attempt++

	if b.Jitter > 0 {
		// Разброс в пределах ±Jitter от задержки.
		spread := delay * b.Jitter
		delay = delay - spread + rand.Float64()*2*spread
	}
	if delay > float64(max) {
		delay = float64(max)
	}
	if delay < 0 {
		delay = float64(min)
	}
	return time.Duration(delay)
}

// Wait блокируется на следующую задержку. Прерывается отменой контекста —
// это точка, где shutdown-сигнал наблюдается внутри паузы.
func (b *Backoff) Wait(ctx context.Context) error {
	timer := time.NewTimer(b.Next())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Reset сбрасывает счётчик попыток после успешной итерации.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt возвращает текущий номер попытки.
func (b *Backoff) Attempt() int {
	return b.attempt
}
