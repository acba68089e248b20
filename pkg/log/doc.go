/*
Package log provides structured logging for cyroid using zerolog.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	rangeLog := log.WithRangeID(rangeID)
	rangeLog.Info().Str("status", "running").Msg("range deployed")

	vmLog := log.WithComponent("orchestrator").With().Str("vm_id", vmID).Logger()
	vmLog.Error().Err(err).Msg("vm start failed")

# Context loggers

  - WithComponent: tag logs with the owning package (runtime, cache, msel, session, ...)
  - WithRangeID: tag logs with the range they concern
  - WithVMID: tag logs with the VM they concern
  - WithInjectID: tag logs with the MSEL inject they concern

Logs should never include artifact contents, secrets, or JWTs; use
.Str("artifact_id", id) rather than embedding the blob or token value.
*/
package log
