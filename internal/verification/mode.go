// Package verification decides how much autonomy the reconciliation engine has
// over a scored match: confirm on its own, or park the booking for an admin.
package verification

import (
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/matching"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/config"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/logger"
)

type Decision string

const (
	DecisionAutoConfirm Decision = "auto_confirm"
	DecisionEscalate    Decision = "escalate"
	DecisionNoMatch     Decision = "no_match"
)

// HybridConfirmThreshold is the minimum confidence for hands-off confirmation
// in hybrid mode. A match below it still exists; it just goes to a human.
const HybridConfirmThreshold = 70

type Controller struct {
	log *logger.Logger
}

func NewController(log *logger.Logger) *Controller {
	return &Controller{log: log}
}

// Decide is stateless and must be re-evaluated per payment: the mode is read
// fresh from configuration on every call, so an operator flipping it affects
// only payments scored afterwards.
//
// An unknown mode string falls back to manual with a logged warning: the
// fail-safe default is to never confirm without a human.
func (c *Controller) Decide(mode string, result matching.Result) Decision {
	if !result.Matched {
		return DecisionNoMatch
	}

	switch mode {
	case config.ModeManual:
		return DecisionEscalate
	case config.ModeAutomated:
		return DecisionAutoConfirm
	case config.ModeHybrid:
		if result.Confidence >= HybridConfirmThreshold {
			return DecisionAutoConfirm
		}
		return DecisionEscalate
	default:
		c.log.Warn("Unknown verification mode, falling back to manual",
			"mode", mode,
		)
		return DecisionEscalate
	}
}
