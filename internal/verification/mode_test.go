package verification

import (
	"testing"

	"github.com/smbilal1/Huts-And-Farms-AI-sub002/internal/matching"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/config"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/logger"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/model"
)

func testController() *Controller {
	return NewController(logger.New(logger.Config{
		Level:   logger.ERROR,
		Format:  logger.TEXT,
		Service: "test",
	}))
}

func matchWith(confidence int) matching.Result {
	return matching.Result{
		Booking:    &model.Booking{ID: "b1"},
		Confidence: confidence,
		Matched:    true,
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name   string
		mode   string
		result matching.Result
		want   Decision
	}{
		{"no match short-circuits any mode", config.ModeAutomated, matching.Result{}, DecisionNoMatch},
		{"manual always escalates", config.ModeManual, matchWith(100), DecisionEscalate},
		{"automated confirms any match", config.ModeAutomated, matchWith(matching.BaseScore), DecisionAutoConfirm},
		{"hybrid confirms at threshold", config.ModeHybrid, matchWith(HybridConfirmThreshold), DecisionAutoConfirm},
		{"hybrid escalates below threshold", config.ModeHybrid, matchWith(HybridConfirmThreshold - 1), DecisionEscalate},
		{"hybrid confirms full confidence", config.ModeHybrid, matchWith(matching.MaxConfidence), DecisionAutoConfirm},
		{"unknown mode falls back to manual", "turbo", matchWith(100), DecisionEscalate},
		{"empty mode falls back to manual", "", matchWith(100), DecisionEscalate},
	}

	c := testController()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Decide(tt.mode, tt.result); got != tt.want {
				t.Errorf("Decide(%q, confidence=%d) = %s, want %s", tt.mode, tt.result.Confidence, got, tt.want)
			}
		})
	}
}

func TestDecide_ManualNeverAutoConfirms(t *testing.T) {
	c := testController()
	for confidence := 0; confidence <= matching.MaxConfidence; confidence += 10 {
		if got := c.Decide(config.ModeManual, matchWith(confidence)); got == DecisionAutoConfirm {
			t.Fatalf("manual mode auto-confirmed at confidence %d", confidence)
		}
	}
}
