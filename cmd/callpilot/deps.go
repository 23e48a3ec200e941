package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"callpilot/internal/ats"
	"callpilot/internal/audit"
	"callpilot/internal/blob"
	"callpilot/internal/calling"
	"callpilot/internal/campaign"
	"callpilot/internal/config"
	"callpilot/internal/greeting"
	"callpilot/internal/interview"
	"callpilot/internal/orgs"
	"callpilot/internal/phone"
	"callpilot/internal/reporting"
	"callpilot/internal/retry"
	"callpilot/internal/subscription"
	"callpilot/internal/taskqueue"
	"callpilot/internal/telephony"
	"callpilot/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// deps holds every long-lived dependency of a process. Each subcommand uses a subset.
type deps struct {
	cfg config.Config
	log *slog.Logger

	db  *sql.DB
	rdb *redis.Client

	queue  *taskqueue.RedisQueue
	locker *utils.Locker

	orgs          *orgs.PostgresRepo
	subscriptions *subscription.Service
	interviews    *interview.Service
	ats           *ats.Client
	speaker       *greeting.Generator
	orchestrator  *campaign.Orchestrator
	retry         *retry.Service
	reports       *reporting.Service
	audit         *audit.Service
}

func openDeps(ctx context.Context, cfg config.Config, log *slog.Logger) (*deps, error) {
	db, err := utils.OpenPostgres(ctx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return nil, err
	}
	rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	d := &deps{cfg: cfg, log: log, db: db, rdb: rdb}
	d.queue = taskqueue.NewRedisQueue(rdb, cfg.Queue.Key)
	d.locker = utils.NewLocker(rdb, "callpilot:lock:")
	policy := phone.CountryPolicy{DialCode: cfg.Phone.DialCode}

	d.orgs = orgs.NewPostgresRepo(db)
	d.subscriptions = subscription.NewService(subscription.NewPostgresRepo(db))
	interviewRepo := interview.NewPostgresRepo(db)
	d.interviews = interview.NewService(interviewRepo, d.orgs, calling.NewFollowups(d.queue))

	d.ats = ats.NewClient(cfg.ATS, d.orgs, &http.Client{}, policy).WithLocker(d.locker)
	d.speaker = greeting.NewGenerator(cfg.TTS, blob.NewLocalStore(cfg.Blob.Dir, cfg.Blob.PublicURL), &http.Client{})

	d.orchestrator = campaign.NewOrchestrator(d.interviews, d.orgs, d.campaignSession, d.speaker, d.queue, d.subscriptions)
	d.orchestrator.Stagger = cfg.Campaign.Stagger

	d.retry = retry.NewService(d.interviews, d.orgs, d.speaker, d.queue, policy)
	d.retry.Stagger = cfg.Campaign.Stagger

	d.reports = reporting.NewService(interviewRepo)
	d.audit = audit.NewService(audit.NewPostgresRepo(db))
	return d, nil
}

func (d *deps) Close() {
	if err := d.rdb.Close(); err != nil {
		d.log.Warn("redis close failed", "err", err)
	}
	if err := d.db.Close(); err != nil {
		d.log.Warn("postgres close failed", "err", err)
	}
}

func (d *deps) campaignSession(ctx context.Context, platformID int64) (campaign.Session, error) {
	s, err := d.ats.Session(ctx, platformID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (d *deps) statusWriter(ctx context.Context, platformID int64) (calling.StatusWriter, error) {
	s, err := d.ats.Session(ctx, platformID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Statuses lists ATS application statuses through the organization's configured platform.
func (d *deps) Statuses(ctx context.Context, organizationID int64) ([]ats.Status, error) {
	cfg, err := d.interviews.Config(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	s, err := d.ats.Session(ctx, cfg.PlatformID)
	if err != nil {
		return nil, err
	}
	return s.ListStatuses(ctx)
}

// worker registers a handler for every task kind the system produces.
func (d *deps) worker() *taskqueue.Worker {
	w := taskqueue.NewWorker(d.queue, d.log)
	w.Concurrency = d.cfg.Queue.Workers
	w.PollInterval = d.cfg.Queue.PollInterval
	w.TaskTimeout = d.cfg.Queue.TaskTimeout

	engine := calling.NewEngineClient(d.cfg.Calling, &http.Client{})
	w.Handle(taskqueue.KindInterviewCall, calling.NewDispatcher(d.interviews, engine, d.queue).HandleTask)
	w.Handle(taskqueue.KindApplicationStatus, calling.NewStatusSyncer(d.interviews, d.statusWriter).HandleTask)
	w.Handle(taskqueue.KindCampaignBulk, d.orchestrator.HandleTask)
	w.Handle(taskqueue.KindSMS, telephony.Sender{Provider: telephony.NewTwilioSMS(d.cfg.Twilio, &http.Client{}).WithAccounts(d.orgs)}.HandleTask)
	return w
}
