package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	pingTimeout = 5 * time.Second
	retryDelay  = time.Minute
)

// Pinger requests the service's own health endpoint on a fixed interval so
// free-tier hosts don't spin the instance down.
type Pinger struct {
	client   *resty.Client
	url      string
	interval time.Duration
	retry    time.Duration
	delay    time.Duration
	log      *logrus.Logger
}

func NewPinger(url string, interval time.Duration, log *logrus.Logger) *Pinger {
	client := resty.New().
		SetTimeout(pingTimeout).
		SetHeader("User-Agent", "viral-music-bot-keepalive")

	return &Pinger{
		client:   client,
		url:      url,
		interval: interval,
		retry:    retryDelay,
		delay:    interval,
		log:      log,
	}
}

func (p *Pinger) Ping(ctx context.Context) error {
	resp, err := p.client.R().SetContext(ctx).Get(p.url)
	if err != nil {
		return fmt.Errorf("ping %s: %w", p.url, err)
	}
	if resp.IsError() {
		return fmt.Errorf("ping %s: unexpected status %d", p.url, resp.StatusCode())
	}
	return nil
}

// Run waits one interval, so the web server is listening before the first
// ping, then pings every interval until ctx is cancelled. After a failed
// ping the next attempt comes after the shorter retry delay.
func (p *Pinger) Run(ctx context.Context) {
	p.log.WithFields(logrus.Fields{
		"url":      p.url,
		"interval": p.interval.String(),
	}).Info("keep-alive pinger started")

	wait := p.delay
	for {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.log.Info("keep-alive pinger stopped")
			return
		case <-timer.C:
		}

		wait = p.interval
		if err := p.Ping(ctx); err != nil {
			if ctx.Err() != nil {
				p.log.Info("keep-alive pinger stopped")
				return
			}
			p.log.WithError(err).Warn("keep-alive ping failed")
			wait = p.retry
		} else {
			p.log.WithField("url", p.url).Debug("keep-alive ping ok")
		}
	}
}
