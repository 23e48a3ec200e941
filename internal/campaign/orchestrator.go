// Package campaign turns an organization's live job ads into a staggered run of interview calls.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"callpilot/internal/ats"
	"callpilot/internal/calling"
	"callpilot/internal/eligibility"
	"callpilot/internal/greeting"
	"callpilot/internal/interview"
	"callpilot/internal/metrics"
	"callpilot/internal/orgs"
	"callpilot/internal/taskqueue"
	"callpilot/pkg/logger"
)

// DefaultStagger separates consecutive calls of one run.
const DefaultStagger = 120 * time.Second

type Configs interface {
	Config(ctx context.Context, organizationID int64) (interview.CallConfig, error)
}

type Directory interface {
	GetOrganization(ctx context.Context, id int64) (orgs.Organization, error)
}

// Session is the part of an ATS session a campaign reads.
type Session interface {
	ListJobAds(ctx context.Context) ([]ats.JobAd, error)
	FetchJobDetails(ctx context.Context, selfURL string) ats.JobDetails
	ListApplications(ctx context.Context, applicationsURL string) ([]ats.Application, error)
}

type OpenFunc func(ctx context.Context, platformID int64) (Session, error)

// Entitlements lists organizations allowed to run calling campaigns.
type Entitlements interface {
	CallingOrganizations(ctx context.Context) ([]int64, error)
}

// BulkRequest is the payload of a campaign.bulk task.
type BulkRequest struct {
	OrganizationID int64 `json:"organization_id"`
}

// SkippedJobAd records a job ad whose candidates were not scheduled.
type SkippedJobAd struct {
	AdID   int64  `json:"ad_id"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// Summary describes one bulk run.
type Summary struct {
	OrganizationID int64          `json:"organization_id"`
	ConfigMissing  bool           `json:"config_missing,omitempty"`
	JobAds         int            `json:"job_ads"`
	Eligible       int            `json:"eligible"`
	Scheduled      int            `json:"scheduled"`
	Failed         int            `json:"failed"`
	Skipped        []SkippedJobAd `json:"skipped,omitempty"`
}

const (
	reasonNoApplicationsLink = "no applications link"
	reasonApplications       = "applications unavailable"
	reasonGreeting           = "greeting generation failed"
)

type Orchestrator struct {
	configs Configs
	dir     Directory
	open    OpenFunc
	speaker greeting.Speaker
	queue   taskqueue.Queue
	subs    Entitlements

	Stagger time.Duration
	clock   func() time.Time
}

func NewOrchestrator(configs Configs, dir Directory, open OpenFunc, speaker greeting.Speaker, queue taskqueue.Queue, subs Entitlements) *Orchestrator {
	return &Orchestrator{
		configs: configs,
		dir:     dir,
		open:    open,
		speaker: speaker,
		queue:   queue,
		subs:    subs,
		Stagger: DefaultStagger,
		clock:   time.Now,
	}
}

// BulkInterviewCalls schedules a call for every eligible candidate of the organization's
// matching job ads. The n-th candidate (0-based, across all job ads) is delayed n*Stagger.
// A missing configuration is a logged no-op.
func (o *Orchestrator) BulkInterviewCalls(ctx context.Context, organizationID int64) (Summary, error) {
	sum := Summary{OrganizationID: organizationID}
	log := logger.From(ctx).With("organization_id", organizationID)

	cfg, err := o.configs.Config(ctx, organizationID)
	if errors.Is(err, interview.ErrConfigNotFound) {
		log.Warn("no call configuration found, campaign skipped")
		sum.ConfigMissing = true
		return sum, nil
	}
	if err != nil {
		return sum, err
	}
	org, err := o.dir.GetOrganization(ctx, organizationID)
	if err != nil {
		return sum, fmt.Errorf("load organization: %w", err)
	}
	sess, err := o.open(ctx, cfg.PlatformID)
	if err != nil {
		return sum, err
	}
	ads, err := sess.ListJobAds(ctx)
	if err != nil {
		return sum, fmt.Errorf("list job ads: %w", err)
	}

	rules := eligibility.Rules{StatusID: cfg.ApplicationStatusForCalling, WaitMinutes: cfg.CallingTimeAfterStatusUpdate}
	questions := cfg.QuestionTexts()
	var calls []calling.Call

	live := ats.FilterByState(ads, cfg.JobAdStatusForCalling)
	sum.JobAds = len(live)
	log.Info("job ads fetched", "total", len(ads), "matching", len(live))

	for _, ad := range live {
		adLog := log.With("ad_id", ad.AdID, "title", ad.Title)
		if ad.Links.Applications == "" {
			adLog.Info("job ad has no applications link")
			sum.Skipped = append(sum.Skipped, SkippedJobAd{AdID: ad.AdID, Title: ad.Title, Reason: reasonNoApplicationsLink})
			continue
		}
		apps, err := sess.ListApplications(ctx, ad.Links.Applications)
		if err != nil {
			adLog.Error("list applications failed", "err", err)
			sum.Skipped = append(sum.Skipped, SkippedJobAd{AdID: ad.AdID, Title: ad.Title, Reason: reasonApplications})
			continue
		}

		now := o.clock()
		var eligible []ats.Application
		for _, app := range apps {
			c := eligibility.Candidate{StatusID: app.StatusID, UpdatedAt: app.UpdatedAt, Phone: app.Candidate.Phone}
			if eligibility.IsEligible(c, rules, now) {
				eligible = append(eligible, app)
			} else if app.StatusID == rules.StatusID {
				adLog.Debug("candidate not eligible yet", "application_id", app.ApplicationID, "updated_at", app.UpdatedAt)
			}
		}
		if len(eligible) == 0 {
			continue
		}

		details := sess.FetchJobDetails(ctx, ad.Links.Self)
		audio, err := o.speaker.Generate(ctx, greeting.WelcomeScript(org.Name, ad.Title), cfg.VoiceID)
		if err != nil {
			adLog.Error("greeting generation failed, job ad skipped", "candidates", len(eligible), "err", err)
			sum.Skipped = append(sum.Skipped, SkippedJobAd{AdID: ad.AdID, Title: ad.Title, Reason: reasonGreeting})
			continue
		}

		for _, app := range eligible {
			calls = append(calls, calling.Call{Request: calling.CallRequest{
				ToPhoneNumber:       app.Candidate.Phone,
				FromPhoneNumber:     cfg.FromNumber,
				OrganizationID:      organizationID,
				ApplicationID:       app.ApplicationID,
				CandidateID:         app.Candidate.CandidateID,
				JobTitle:            ad.Title,
				JobID:               ad.AdID,
				JobDetails:          details,
				CandidateName:       app.Candidate.FullName(),
				InterviewType:       calling.InterviewTypeGeneral,
				PrimaryQuestions:    questions,
				EndOnNegativeAnswer: cfg.EndCallIfPrimaryAnswerNegative,
				WelcomeAudioURL:     audio.URL,
				WelcomeText:         audio.Script,
				VoiceID:             cfg.VoiceID,
				CandidateEmail:      app.Candidate.Email,
			}})
		}
	}

	sum.Eligible = len(calls)
	for i, call := range calls {
		if _, err := calling.Schedule(ctx, o.queue, call, time.Duration(i)*o.Stagger); err != nil {
			log.Error("schedule call failed", "application_id", call.Request.ApplicationID, "err", err)
			sum.Failed++
			continue
		}
		sum.Scheduled++
	}
	metrics.CampaignCandidates.Add(float64(sum.Scheduled))
	log.Info("campaign scheduled", "eligible", sum.Eligible, "scheduled", sum.Scheduled, "skipped_job_ads", len(sum.Skipped))
	return sum, nil
}

// InitiateAll queues one campaign.bulk task per entitled organization and returns how many were queued.
func (o *Orchestrator) InitiateAll(ctx context.Context) (int, error) {
	ids, err := o.subs.CallingOrganizations(ctx)
	if err != nil {
		return 0, err
	}
	log := logger.From(ctx)
	n := 0
	for _, id := range ids {
		if _, err := o.queue.Enqueue(ctx, taskqueue.KindCampaignBulk, BulkRequest{OrganizationID: id}, 0); err != nil {
			log.Error("queue bulk interview calls failed", "organization_id", id, "err", err)
			continue
		}
		log.Info("bulk interview calls queued", "organization_id", id)
		n++
	}
	return n, nil
}

// HandleTask is the taskqueue handler for taskqueue.KindCampaignBulk.
func (o *Orchestrator) HandleTask(ctx context.Context, t taskqueue.Task) error {
	req, err := taskqueue.Decode[BulkRequest](t)
	if err != nil {
		return err
	}
	_, err = o.BulkInterviewCalls(ctx, req.OrganizationID)
	return err
}
