/*
Package practice assembles the typing-practice content and validation caches
into a single Service.

The service builds, from one Configuration:

  - a structured logger (text or JSON, from global.log_level and global.log_format)
  - a metrics collector on a private Prometheus registry
  - one storage adapter over the configured backend (memory, file or s3)
  - two-tier caches for exercise batches and validation results sharing that adapter
  - the exercise cache with the built-in generators, the validator and the progress tracker
  - a health tracker for storage and both caches

With storage.backend set to "none" the caches are memory-only and progress
lives for the life of the process.

# Usage

	cfg := config.NewDefault()
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}

	svc, err := practice.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close(context.Background())

	if err := svc.Start(ctx); err != nil {
		return err
	}

	items, err := svc.Exercises().GetItems(ctx, types.ExerciseWords, 20, false)
	result := svc.Validator().Validate(ctx, input, items[0].Text, validation.DefaultOptions())

A storage failure never reaches these calls: the caches switch to memory-only
mode, the health tracker reports the affected components as degraded, and
ResetFallback re-enables storage once it is back.
*/
package practice
