package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	signupMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playerlab_signups_total", Help: "Completed self-service signups",
	})
	verificationMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playerlab_email_verifications_total", Help: "Successful email verifications",
	})
	onboardingMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playerlab_onboarding_completions_total", Help: "Completed role onboardings",
	}, []string{"role"})
	ownershipTransferMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playerlab_ownership_transfers_total", Help: "Completed ownership transfers",
	})
	evaluationMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playerlab_evaluations_recorded_total", Help: "Recorded evaluation cycles",
	})
)
