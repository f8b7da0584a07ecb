package audit

import "os"

// EnvEnabledVar is the runtime toggle spec §4.8 names:
// "BOXLANG_MODULES_BXAI_AUDIT_ENABLED toggles audit at runtime."
const EnvEnabledVar = "BOXLANG_MODULES_BXAI_AUDIT_ENABLED"

// Config mirrors spec §6's audit.{enabled, store, storeConfig,
// captureInput, captureOutput, captureMessages, captureToolArgs,
// sanitizePatterns, redactValue, maxInputSize, maxOutputSize,
// retentionDays, asyncWrite, batchSize} settings block.
type Config struct {
	// ModuleEnabled is the lowest-precedence "module settings" layer
	// (spec §4.8's trailing "> module settings").
	ModuleEnabled bool

	CaptureInput    bool
	CaptureOutput   bool
	CaptureMessages bool
	CaptureToolArgs bool
	Sanitize        SanitizeConfig
	RetentionDays   int
	AsyncWrite      bool
	BatchSize       int

	// SettingsEnabled, when non-nil, is the
	// application.modules.bxai.settings.audit.enabled value — the
	// highest-precedence layer.
	SettingsEnabled *bool
}

// Enabled resolves the dynamic toggle per spec §4.8's precedence:
// "application.modules.bxai.settings.audit.enabled > env
// BOXLANG_MODULES_BXAI_AUDIT_ENABLED > module settings."
func (c Config) Enabled() bool {
	if c.SettingsEnabled != nil {
		return *c.SettingsEnabled
	}
	if v, ok := os.LookupEnv(EnvEnabledVar); ok {
		return v == "true" || v == "1"
	}
	return c.ModuleEnabled
}

// NewContextIfEnabled returns a live audit Context writing to store when
// c.Enabled() resolves true, or a Context that persists nothing
// (store=nil; spans stay only on its own trace) otherwise —
// callers build their Context once per process/config reload and pass it
// down rather than re-checking Enabled() per call.
func (c Config) NewContextIfEnabled(store Store) *Context {
	if !c.Enabled() {
		return NewContext(nil)
	}
	return NewContext(store)
}
