package api

import (
	"errors"
	"fmt"
	"net/url"

	"nearp/internal/model"
)

func validateNetworkSource(req *model.SolveRequest) error {
	switch {
	case req.Instance == "" && req.Network == nil:
		return errors.New("one of instance or network is required")
	case req.Instance != "" && req.Network != nil:
		return errors.New("instance and network are mutually exclusive")
	}
	return nil
}

// validateSolveRequest checks the request shape; value ranges of the merged
// solver config are checked by opt.Config.Validate.
func validateSolveRequest(req *model.SolveRequest) error {
	if err := validateNetworkSource(req); err != nil {
		return err
	}
	if req.Seed < 0 {
		return fmt.Errorf("seed must be >= 0")
	}
	if c := req.Config; c != nil {
		if c.TimeBudgetMs != nil && *c.TimeBudgetMs < 0 {
			return fmt.Errorf("timeBudgetMs must be >= 0")
		}
		if c.Workers != nil && *c.Workers < 0 {
			return fmt.Errorf("workers must be >= 0")
		}
	}
	if req.CallbackURL != "" {
		u, err := url.Parse(req.CallbackURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("callbackUrl must be an absolute http(s) URL")
		}
	}
	return nil
}
