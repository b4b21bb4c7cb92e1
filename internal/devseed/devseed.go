// Package devseed loads the stock audience presets into a fresh store.
package devseed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/target/prospector/internal/domain/model"
	apperrors "github.com/target/prospector/internal/errors"
)

// AudienceCreator is the slice of the audience service seeding needs.
type AudienceCreator interface {
	Create(ctx context.Context, req *model.CreateAudienceRequest) (*model.Audience, error)
}

// AudienceConfig is the config document stored on a seeded audience.
type AudienceConfig struct {
	AudienceType       string             `json:"audience_type"`
	SearchPatterns     []string           `json:"search_patterns"`
	Keywords           []string           `json:"keywords"`
	ScoringWeights     map[string]float64 `json:"scoring_weights"`
	ImprovementFocuses []string           `json:"improvement_focuses"`
	BudgetRange        [2]int             `json:"budget_range"`
	PitchTone          string             `json:"pitch_tone"`
	MaxProspectsPerRun int                `json:"max_prospects_per_run"`
}

// Preset is a named audience with its config.
type Preset struct {
	Name        string
	Description string
	Config      AudienceConfig
}

// Request builds the create request for the preset.
func (p Preset) Request() (*model.CreateAudienceRequest, error) {
	raw, err := json.Marshal(p.Config)
	if err != nil {
		return nil, fmt.Errorf("encode %s config: %w", p.Name, err)
	}
	desc := p.Description
	return &model.CreateAudienceRequest{Name: p.Name, Description: &desc, Config: raw}, nil
}

// Presets returns the stock audiences in a stable order.
func Presets() []Preset {
	return []Preset{
		{
			Name:        "local_business",
			Description: "Local service-based businesses (e.g. plumbers, dentists) in a specific city.",
			Config: AudienceConfig{
				AudienceType: "local_business",
				SearchPatterns: []string{
					"{keyword} {location}",
					"{keyword} near me {location}",
					"best {keyword} {location}",
					"{location} {keyword} services",
				},
				Keywords: []string{
					"plumber", "electrician", "dentist", "lawyer", "accountant",
					"real estate agent", "contractor", "auto repair", "veterinarian",
					"restaurant", "hair salon", "fitness gym", "chiropractor",
				},
				ScoringWeights: map[string]float64{
					"mobile_responsiveness": 0.3,
					"local_seo":             0.25,
					"contact_visibility":    0.2,
					"modern_design":         0.15,
					"page_speed":            0.1,
				},
				ImprovementFocuses: []string{
					"mobile_optimization", "local_seo", "contact_forms",
					"google_business_profile", "online_reviews", "call_to_action",
				},
				BudgetRange:        [2]int{1000, 5000},
				PitchTone:          "friendly_local",
				MaxProspectsPerRun: 25,
			},
		},
		{
			Name:        "ecommerce",
			Description: "Small to mid-size e-commerce stores selling physical products online.",
			Config: AudienceConfig{
				AudienceType: "ecommerce",
				SearchPatterns: []string{
					"buy {keyword} online",
					"{keyword} online store",
					"{keyword} shop",
					"{keyword} ecommerce",
				},
				Keywords: []string{
					"jewelry", "clothing", "electronics", "home goods", "books",
					"sporting goods", "beauty products", "pet supplies", "toys",
				},
				ScoringWeights: map[string]float64{
					"conversion_optimization": 0.3,
					"page_speed":              0.25,
					"mobile_commerce":         0.2,
					"security":                0.15,
					"modern_design":           0.1,
				},
				ImprovementFocuses: []string{
					"conversion_rate", "checkout_optimization", "product_pages",
					"payment_security", "mobile_shopping", "search_functionality",
				},
				BudgetRange:        [2]int{3000, 15000},
				PitchTone:          "roi_focused",
				MaxProspectsPerRun: 20,
			},
		},
		{
			Name:        "saas",
			Description: "B2B SaaS companies offering subscription-based software/services.",
			Config: AudienceConfig{
				AudienceType: "saas",
				SearchPatterns: []string{
					"{keyword} software",
					"{keyword} platform",
					"{keyword} solution",
					"{keyword} tools",
				},
				Keywords: []string{
					"project management", "crm", "accounting", "hr", "marketing",
					"analytics", "communication", "design", "development",
				},
				ScoringWeights: map[string]float64{
					"user_experience":       0.3,
					"conversion_funnel":     0.25,
					"technical_performance": 0.2,
					"modern_design":         0.15,
					"security":              0.1,
				},
				ImprovementFocuses: []string{
					"signup_flow", "feature_presentation", "social_proof",
					"pricing_clarity", "demo_requests", "user_onboarding",
				},
				BudgetRange:        [2]int{5000, 25000},
				PitchTone:          "technical_professional",
				MaxProspectsPerRun: 15,
			},
		},
	}
}

// Result counts what a seeding pass did.
type Result struct {
	Created  int
	Existing int
}

// Run creates every preset that does not exist yet. Existing audiences are
// left untouched so operator edits survive a re-seed.
func Run(ctx context.Context, svc AudienceCreator, logger *slog.Logger) (Result, error) {
	var res Result
	failures := 0
	for _, p := range Presets() {
		created, err := createAudience(ctx, svc, p)
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to create audience", "name", p.Name, "error", err)
			}
			failures++
			continue
		}
		msg := "audience already exists"
		if created {
			res.Created++
			msg = "created audience"
		} else {
			res.Existing++
		}
		if logger != nil {
			logger.InfoContext(ctx, msg, "name", p.Name)
		}
	}
	if failures > 0 {
		return res, fmt.Errorf("%d seed errors; check logs", failures)
	}
	return res, nil
}

func createAudience(ctx context.Context, svc AudienceCreator, p Preset) (bool, error) {
	req, err := p.Request()
	if err != nil {
		return false, err
	}
	if _, err := svc.Create(ctx, req); err != nil {
		if apperrors.IsConflict(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
