package ats

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"callpilot/pkg/logger"
)

// maxPages bounds pagination in case the ATS keeps returning a next link.
const maxPages = 100

type Links struct {
	Self         string `json:"self"`
	Applications string `json:"applications"`
	Next         string `json:"next"`
}

type JobAd struct {
	AdID  int64  `json:"adId"`
	Title string `json:"title"`
	State string `json:"state"`
	Links Links  `json:"links"`
}

// JobDetails is the subset of a job ad forwarded to the calling engine.
type JobDetails struct {
	Description string `json:"description"`
	Summary     string `json:"summary"`
	Location    string `json:"location"`
	Salary      string `json:"salary"`
}

type Candidate struct {
	CandidateID int64
	FirstName   string
	LastName    string
	Email       string
	// Phone is normalized: mobile, falling back to landline.
	Phone string
}

// FullName joins first and last name the way the calling engine greets the candidate.
func (c Candidate) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

type Application struct {
	ApplicationID int64
	UpdatedAt     string
	StatusID      int64
	Candidate     Candidate
}

// Status is one entry of the organization's application workflow.
type Status struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type jobAdsPage struct {
	Items []JobAd `json:"items"`
	Links Links   `json:"links"`
}

type applicationsPage struct {
	Items []struct {
		ApplicationID int64  `json:"applicationId"`
		UpdatedAt     string `json:"updatedAt"`
		Status        struct {
			StatusID int64 `json:"statusId"`
		} `json:"status"`
		Candidate struct {
			CandidateID int64  `json:"candidateId"`
			FirstName   string `json:"firstName"`
			LastName    string `json:"lastName"`
			Email       string `json:"email"`
			Mobile      string `json:"mobile"`
			Phone       string `json:"phone"`
		} `json:"candidate"`
	} `json:"items"`
	Links Links `json:"links"`
}

type jobAdResponse struct {
	Description string `json:"description"`
	Summary     string `json:"summary"`
	Location    struct {
		City string `json:"city"`
	} `json:"location"`
	Salary struct {
		Description string `json:"description"`
	} `json:"salary"`
}

type statusListResponse struct {
	Items []struct {
		StatusID int64  `json:"statusId"`
		Name     string `json:"name"`
	} `json:"items"`
}

// ListJobAds returns every job ad visible to the connection, following next links.
func (s *Session) ListJobAds(ctx context.Context) ([]JobAd, error) {
	base := strings.TrimRight(s.snapshot().BaseURL, "/")
	next := base + "/jobads"
	var out []JobAd
	seen := map[string]bool{}
	for page := 0; next != "" && page < maxPages && !seen[next]; page++ {
		seen[next] = true
		var p jobAdsPage
		if err := s.call(ctx, "list_jobads", http.MethodGet, next, nil, s.c.requestTimeout, &p); err != nil {
			return nil, err
		}
		out = append(out, p.Items...)
		next = s.resolve(p.Links.Next)
	}
	if err := s.c.store.MarkSynced(ctx, s.snapshot().ID, s.c.clock().UTC()); err != nil {
		logger.From(ctx).Warn("mark platform synced failed", "platform_id", s.snapshot().ID, "err", err)
	}
	return out, nil
}

// FetchJobDetails reads a job ad's self link. Any failure yields empty details.
func (s *Session) FetchJobDetails(ctx context.Context, selfURL string) JobDetails {
	if selfURL == "" {
		return JobDetails{}
	}
	var r jobAdResponse
	if err := s.call(ctx, "get_jobad", http.MethodGet, s.resolve(selfURL), nil, s.c.requestTimeout, &r); err != nil {
		logger.From(ctx).Warn("fetch job details failed", "url", selfURL, "err", err)
		return JobDetails{}
	}
	return JobDetails{
		Description: r.Description,
		Summary:     r.Summary,
		Location:    r.Location.City,
		Salary:      r.Salary.Description,
	}
}

// ListApplications reads a job ad's applications link, following next links.
// Candidate phones are normalized with the client's phone policy.
func (s *Session) ListApplications(ctx context.Context, applicationsURL string) ([]Application, error) {
	next := s.resolve(applicationsURL)
	var out []Application
	seen := map[string]bool{}
	for page := 0; next != "" && page < maxPages && !seen[next]; page++ {
		seen[next] = true
		var p applicationsPage
		if err := s.call(ctx, "list_applications", http.MethodGet, next, nil, s.c.requestTimeout, &p); err != nil {
			return nil, err
		}
		for _, it := range p.Items {
			mobile := strings.TrimSpace(it.Candidate.Mobile)
			if mobile == "" {
				mobile = it.Candidate.Phone
			}
			out = append(out, Application{
				ApplicationID: it.ApplicationID,
				UpdatedAt:     it.UpdatedAt,
				StatusID:      it.Status.StatusID,
				Candidate: Candidate{
					CandidateID: it.Candidate.CandidateID,
					FirstName:   it.Candidate.FirstName,
					LastName:    it.Candidate.LastName,
					Email:       it.Candidate.Email,
					Phone:       s.c.policy.Normalize(mobile),
				},
			})
		}
		next = s.resolve(p.Links.Next)
	}
	return out, nil
}

// UpdateApplicationStatus moves an application to statusID. Failures are logged and reported as false.
func (s *Session) UpdateApplicationStatus(ctx context.Context, applicationID, statusID int64) bool {
	url := strings.TrimRight(s.snapshot().BaseURL, "/") + "/applications/" + strconv.FormatInt(applicationID, 10)
	body := map[string]int64{"statusId": statusID}
	log := logger.From(ctx).With("application_id", applicationID, "status_id", statusID)
	if err := s.call(ctx, "update_application_status", http.MethodPut, url, body, s.c.statusTimeout, nil); err != nil {
		log.Error("update application status failed", "err", err)
		return false
	}
	log.Info("application status updated")
	return true
}

// ListStatuses returns the organization's application status workflow.
func (s *Session) ListStatuses(ctx context.Context) ([]Status, error) {
	url := strings.TrimRight(s.snapshot().BaseURL, "/") + "/applications/lists/status"
	var r statusListResponse
	if err := s.call(ctx, "list_statuses", http.MethodGet, url, nil, s.c.requestTimeout, &r); err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(r.Items))
	for _, it := range r.Items {
		out = append(out, Status{ID: it.StatusID, Name: it.Name})
	}
	return out, nil
}

// FilterByState keeps the ads whose state matches exactly.
func FilterByState(ads []JobAd, state string) []JobAd {
	var out []JobAd
	for _, ad := range ads {
		if ad.State == state {
			out = append(out, ad)
		}
	}
	return out
}
