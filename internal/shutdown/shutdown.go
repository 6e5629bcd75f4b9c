package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Hook is run once a termination signal arrives. The context expires after the grace period.
type Hook func(ctx context.Context)

func CreateGracefulShutdownChannel() chan os.Signal {
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGTERM, syscall.SIGINT)

	return gracefulShutdown
}

// ListenForShutdown blocks until SIGTERM/SIGINT, runs the hooks in order and then waits
// for the remainder of the grace period so in-flight work can drain.
func ListenForShutdown(
	signalChan chan os.Signal,
	gracePeriod time.Duration,
	l *zap.Logger,
	hooks ...Hook,
) {
	sig := <-signalChan
	l.Sugar().Infow("Caught signal", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), gracePeriod)
	defer cancel()

	for _, hook := range hooks {
		hook(ctx)
	}

	l.Sugar().Infow("Waiting for in-flight work to finish", zap.Float64("seconds", gracePeriod.Seconds()))
	<-ctx.Done()
	l.Sugar().Infow("Exiting")
}
