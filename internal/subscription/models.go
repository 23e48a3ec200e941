package subscription

import (
	"errors"
	"time"
)

// FeatureType identifies what a plan feature unlocks.
type FeatureType string

const (
	FeatureAICall     FeatureType = "AI_CALL"
	FeatureAISMS      FeatureType = "AI_SMS"
	FeatureAIWhatsApp FeatureType = "AI_WHATSAPP"
)

const (
	StatusActive = "ACTIVE"
	StatusHidden = "HIDDEN"
)

var (
	ErrNotFound        = errors.New("subscription: not found")
	ErrInvalidArgument = errors.New("subscription: invalid argument")
)

type Feature struct {
	ID   int64       `json:"id"`
	Name string      `json:"name"`
	Type FeatureType `json:"type"`
}

type PlanFeature struct {
	ID       int64   `json:"id"`
	PlanName string  `json:"plan_name"`
	Feature  Feature `json:"feature"`
	Quota    int     `json:"quota"`
}

// Subscription grants an organization a plan feature with a remaining usage allowance.
type Subscription struct {
	ID             int64       `json:"id"`
	OrganizationID int64       `json:"organization_id"`
	PlanFeature    PlanFeature `json:"plan_feature"`
	AvailableLimit int         `json:"available_limit"`
	Status         string      `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Entitles reports whether s currently unlocks feature.
func (s Subscription) Entitles(feature FeatureType) bool {
	return s.Status == StatusActive && s.AvailableLimit > 0 && s.PlanFeature.Feature.Type == feature
}
