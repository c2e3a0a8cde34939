package conf

import (
	"github.com/morpheus1988wer/HertzBridge/internal/errors"
)

// ValidateSettings checks that the loaded settings are usable. It rejects
// values that would stall or spin the decision engine.
func ValidateSettings(settings *Settings) error {
	if settings.Engine.TransitionPoll <= 0 || settings.Engine.SteadyPoll <= 0 {
		return errors.Newf("poll intervals must be positive").
			Component("conf").
			Category(errors.CategoryValidation).
			Context("transition_poll", settings.Engine.TransitionPoll.String()).
			Context("steady_poll", settings.Engine.SteadyPoll.String()).
			Build()
	}

	if settings.Engine.StabilityAttempts <= 0 {
		return errors.Newf("stability attempt budget must be positive").
			Component("conf").
			Category(errors.CategoryValidation).
			Context("attempts", settings.Engine.StabilityAttempts).
			Build()
	}

	if settings.Engine.StabilityPeriod <= 0 {
		return errors.Newf("stability period must be positive").
			Component("conf").
			Category(errors.CategoryValidation).
			Context("period", settings.Engine.StabilityPeriod.String()).
			Build()
	}

	if settings.Engine.RateEpsilon <= 0 {
		return errors.Newf("rate epsilon must be positive").
			Component("conf").
			Category(errors.CategoryValidation).
			Context("epsilon", settings.Engine.RateEpsilon).
			Build()
	}

	if settings.Engine.FallbackRate <= 0 {
		return errors.Newf("fallback rate must be positive").
			Component("conf").
			Category(errors.CategoryValidation).
			Context("fallback_rate", settings.Engine.FallbackRate).
			Build()
	}

	if settings.Engine.ManualRate < 0 {
		return errors.Newf("manual rate override cannot be negative").
			Component("conf").
			Category(errors.CategoryValidation).
			Context("manual_rate", settings.Engine.ManualRate).
			Build()
	}

	if settings.Player.QueryTimeout <= 0 {
		return errors.Newf("player query timeout must be positive").
			Component("conf").
			Category(errors.CategoryValidation).
			Context("query_timeout", settings.Player.QueryTimeout.String()).
			Build()
	}

	return nil
}
