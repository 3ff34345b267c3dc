package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"adbudget/internal/models"
	"adbudget/internal/services"

	"github.com/shopspring/decimal"
)

// reprocessLookbackDays is how far back each run re-attributes spend.
// The ETL restates feed rows for up to two days after the fact.
const reprocessLookbackDays = 3

type CampaignLister interface {
	List(ctx context.Context) ([]models.Campaign, error)
}

type AttributionRunner interface {
	ProcessCampaign(ctx context.Context, campaign models.Campaign, from, to time.Time) error
}

type StopChecker interface {
	SwitchLowBudgetCampaignsToLandingMode(ctx context.Context) error
	StopAndNotifyDepletedBudgetCampaigns(ctx context.Context) error
}

type PilotRunner interface {
	Run(ctx context.Context) error
}

type Auditor interface {
	AuditSpendPatterns(ctx context.Context, date time.Time, firstInMonthThreshold, threshold decimal.Decimal, dayRange int) ([]services.PacingAlarm, error)
	AuditSpendIntegrity(ctx context.Context, date time.Time) ([]services.IntegrityAlarm, error)
}

// AlarmSink receives audit findings; the websocket hub implements it so
// operators watching the dashboard see alarms as the audit produces them.
type AlarmSink interface {
	PacingAlarms(alarms []services.PacingAlarm)
	IntegrityAlarms(alarms []services.IntegrityAlarm)
}

// Config is the scheduler's tuning, resolved from the application config.
type Config struct {
	Interval              time.Duration
	Workers               int
	HeartbeatTTL          time.Duration
	PacingDayRange        int
	PacingThreshold       decimal.Decimal
	FirstInMonthThreshold decimal.Decimal
}

// Scheduler drives the recurring pipeline: attribution, depletion checks,
// autopilot, audits. The lease makes sure a single instance runs the
// pipeline even when several replicas are deployed; it is re-verified
// between campaigns so a replica that lost it stops early instead of
// double-processing.
type Scheduler struct {
	cfg         Config
	lease       Lease
	campaigns   CampaignLister
	attribution AttributionRunner
	stops       StopChecker
	pilot       PilotRunner
	auditor     Auditor
	alarms      AlarmSink
	logger      *slog.Logger
	now         func() time.Time
}

func NewScheduler(cfg Config, lease Lease, campaigns CampaignLister, attribution AttributionRunner, stops StopChecker, pilot PilotRunner, auditor Auditor, alarms AlarmSink, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cfg:         cfg,
		lease:       lease,
		campaigns:   campaigns,
		attribution: attribution,
		stops:       stops,
		pilot:       pilot,
		auditor:     auditor,
		alarms:      alarms,
		logger:      logger,
		now:         time.Now,
	}
}

// Start blocks, running the pipeline once immediately and then on every
// interval tick until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.runOnce(ctx)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	acquired, err := s.lease.Acquire(ctx)
	if err != nil {
		s.logger.Error("leader election failed", "error", err)
		return
	}
	if !acquired {
		s.logger.Debug("another instance holds the job lease, skipping run")
		return
	}
	defer s.lease.Release(ctx)

	renewCtx, cancelRenew := context.WithCancel(ctx)
	defer cancelRenew()
	go s.renewLease(renewCtx)

	if err := s.Run(ctx); err != nil {
		s.logger.Error("job run failed", "error", err)
	}
}

// Run executes one full pipeline pass. Exported so the ops API can
// trigger an out-of-band reprocess.
func (s *Scheduler) Run(ctx context.Context) error {
	started := s.now()
	today := dayOf(started)
	from := today.AddDate(0, 0, -reprocessLookbackDays)

	campaigns, err := s.campaigns.List(ctx)
	if err != nil {
		return err
	}
	s.processCampaigns(ctx, campaigns, from, today)

	if err := s.stops.SwitchLowBudgetCampaignsToLandingMode(ctx); err != nil {
		s.logger.Error("landing mode check failed", "error", err)
	}
	if err := s.stops.StopAndNotifyDepletedBudgetCampaigns(ctx); err != nil {
		s.logger.Error("auto-stop check failed", "error", err)
	}
	if err := s.pilot.Run(ctx); err != nil {
		s.logger.Error("autopilot run failed", "error", err)
	}

	s.runAudits(ctx, today.AddDate(0, 0, -1))

	s.logger.Info("job run complete",
		"campaigns", len(campaigns),
		"duration", s.now().Sub(started).String())
	return nil
}

// processCampaigns attributes spend for every campaign with a bounded
// worker pool. Campaigns are independent of each other; the dates inside
// one campaign are processed strictly in order by the attribution
// service itself.
func (s *Scheduler) processCampaigns(ctx context.Context, campaigns []models.Campaign, from, to time.Time) {
	workers := s.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	work := make(chan models.Campaign)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for campaign := range work {
				if !s.lease.Held(ctx) {
					s.logger.Warn("lost job lease mid-run, stopping",
						"campaign_id", campaign.ID)
					return
				}
				if err := s.attribution.ProcessCampaign(ctx, campaign, from, to); err != nil {
					s.logger.Error("attribution failed for campaign",
						"campaign_id", campaign.ID, "error", err)
				}
			}
		}()
	}

	for _, campaign := range campaigns {
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return
		case work <- campaign:
		}
	}
	close(work)
	wg.Wait()
}

func (s *Scheduler) runAudits(ctx context.Context, date time.Time) {
	pacing, err := s.auditor.AuditSpendPatterns(ctx, date,
		s.cfg.FirstInMonthThreshold, s.cfg.PacingThreshold, s.cfg.PacingDayRange)
	if err != nil {
		s.logger.Error("pacing audit failed", "error", err)
	} else if len(pacing) > 0 {
		s.logger.Warn("pacing alarms raised", "count", len(pacing))
		s.alarms.PacingAlarms(pacing)
	}

	integrity, err := s.auditor.AuditSpendIntegrity(ctx, date)
	if err != nil {
		s.logger.Error("integrity audit failed", "error", err)
	} else if len(integrity) > 0 {
		s.logger.Warn("integrity alarms raised", "count", len(integrity))
		s.alarms.IntegrityAlarms(integrity)
	}
}

// renewLease extends the lease while the run is in progress. Losing the
// key, for instance after a Redis failover, is detected by the
// per-campaign ownership checks.
func (s *Scheduler) renewLease(ctx context.Context) {
	interval := s.cfg.HeartbeatTTL / 3
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.lease.Held(ctx) {
				return
			}
			if err := s.lease.Renew(ctx); err != nil {
				s.logger.Error("heartbeat renewal failed", "error", err)
			}
		}
	}
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
