package config

// Default values applied before any configuration file is read.
const (
	defaultScratchDir = "~/.local/share/packmule/scratch"
	defaultDurableDir = "~/.local/share/packmule/artifacts"
	defaultLogDir     = "~/.local/share/packmule/logs"
	defaultHistoryDB  = "~/.local/share/packmule/history.db"

	defaultTokenName = "catalog-api-token"

	defaultNewAppNaming    = "APPNAME (packmule)"
	defaultEnforcementType = "install_once"
	defaultTestDelayDays   = 3
	defaultProdDelayDays   = 7
	defaultAuditScript     = "audit_app_and_version.zsh"

	defaultSimilarityThreshold = 0.85
	defaultUploadTokenLength   = 8

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a configuration populated with repository defaults. Paths
// keep their tilde form until normalize expands them.
func Default() Config {
	return Config{
		Paths: Paths{
			ScratchDir: defaultScratchDir,
			DurableDir: defaultDurableDir,
			LogDir:     defaultLogDir,
			HistoryDB:  defaultHistoryDB,
		},
		Catalog: Catalog{
			TokenName: defaultTokenName,
		},
		TokenKeystore: TokenKeystore{
			Environment: true,
			Keychain:    true,
		},
		Defaults: Defaults{
			AutoCreate:    false,
			NewAppNaming:  defaultNewAppNaming,
			DynamicLookup: true,
		},
		Enforcement: Enforcement{
			Type:          defaultEnforcementType,
			TestDelayDays: defaultTestDelayDays,
			ProdDelayDays: defaultProdDelayDays,
			AuditScript:   defaultAuditScript,
		},
		Matcher: Matcher{
			SimilarityThreshold: defaultSimilarityThreshold,
			UploadTokenLength:   defaultUploadTokenLength,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
