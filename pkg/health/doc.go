/*
Package health provides VM readiness probes for cyroid ranges.

It provides HTTP, TCP and Exec Checkers and a Status that tracks
consecutive pass/fail streaks: a Status starts healthy, turns healthy
again on any passing check, and turns unhealthy once Config.Retries
consecutive checks have failed. No other package in this module calls
these checkers; a caller polls them itself.

	checker := health.NewHTTPChecker("http://" + vmAddr + "/healthz")
	status := health.NewStatus()
	cfg := health.DefaultConfig()
	for {
		result := checker.Check(ctx)
		status.Update(result, cfg)
		if result.Healthy {
			break
		}
		time.Sleep(cfg.Interval)
	}
*/
package health
