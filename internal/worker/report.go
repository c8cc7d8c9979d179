package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"viral-music-bot/internal/cache"
)

// Notifier delivers a Markdown message to a chat.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// ReportJob sends the aggregate statistics to every admin.
type ReportJob struct {
	stats    cache.StatsSource
	notifier Notifier
	adminIDs []int64
	timeout  time.Duration
	log      *logrus.Logger
}

func NewReportJob(stats cache.StatsSource, notifier Notifier, adminIDs []int64, log *logrus.Logger) *ReportJob {
	return &ReportJob{
		stats:    stats,
		notifier: notifier,
		adminIDs: adminIDs,
		timeout:  time.Minute,
		log:      log,
	}
}

// Run implements cron.Job.
func (j *ReportJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if err := j.Send(ctx); err != nil {
		j.log.WithError(err).Error("daily report failed")
	}
}

// Send reports to each admin. Delivery failures are logged per admin and
// do not stop the others.
func (j *ReportJob) Send(ctx context.Context) error {
	if len(j.adminIDs) == 0 {
		return nil
	}

	entry := j.log.WithField("run_id", uuid.NewString())

	st, err := j.stats.AggregateStats(ctx)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}

	text := fmt.Sprintf("📈 *Daily Report*\n\n"+
		"👥 Users: %d\n"+
		"📢 Active groups: %d\n"+
		"🎵 Promotions: %d\n"+
		"💎 Shares outstanding: %d\n"+
		"🌍 Reach estimate: %d members",
		st.Users, st.ActiveGroups, st.Promotions, st.SharesOutstanding, st.ReachEstimate)

	sent := 0
	for _, id := range j.adminIDs {
		if err := j.notifier.Notify(ctx, id, text); err != nil {
			entry.WithField("admin_id", id).WithError(err).Warn("failed to deliver report")
			continue
		}
		sent++
	}
	entry.WithFields(logrus.Fields{
		"sent":   sent,
		"admins": len(j.adminIDs),
	}).Info("daily report sent")
	return nil
}

// Manager owns the cron engine.
type Manager struct {
	engine *cron.Cron
	log    *logrus.Logger
}

func NewManager(log *logrus.Logger) *Manager {
	return &Manager{
		engine: cron.New(),
		log:    log,
	}
}

// Register schedules job using a standard cron spec or descriptor such as
// "@daily".
func (m *Manager) Register(spec string, job cron.Job) error {
	if _, err := m.engine.AddJob(spec, job); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	return nil
}

func (m *Manager) Start() {
	m.log.Info("cron scheduler started")
	m.engine.Start()
}

// Stop waits for running jobs to finish.
func (m *Manager) Stop() {
	<-m.engine.Stop().Done()
	m.log.Info("cron scheduler stopped")
}
