package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Terminal
	out.Terminal = cfg.Terminal
	redact(&out.Terminal.ApiKey)
	redact(&out.Terminal.ApiSecret)

	// Mail
	out.Mail = cfg.Mail
	redact(&out.Mail.Password)
	redact(&out.Mail.KeyPassword)
	redact(&out.Mail.ApiToken)

	// Postgres
	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// S3
	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Notify.ErrorRecipients != nil {
		out.Notify.ErrorRecipients = make([]string, len(cfg.Notify.ErrorRecipients))
		copy(out.Notify.ErrorRecipients, cfg.Notify.ErrorRecipients)
	}
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
