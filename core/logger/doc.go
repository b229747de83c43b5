// Package logger builds *slog.Logger values and supplies attribute helpers
// for broadcast logs.
//
//	log := logger.New(
//		logger.WithProduction("quicksilver"),
//		logger.WithOutput(os.Stderr),
//	)
//	log.Info("Message sent", logger.Channels(msg.Channels), logger.MessageID(msg.ID))
//
// WithDevelopment selects text output at debug level; WithStaging and
// WithProduction select JSON at info level. WithContextValue and
// WithContextExtractors copy values from the context into every record
// logged with a *Context method.
//
// Library types in this module take a *slog.Logger option and default to
// Discard, so nothing is written unless the caller asks for it.
package logger
