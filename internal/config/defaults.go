package config

const (
	defaultDataDir   = "~/.local/share/platter"
	defaultLogDir    = "~/.local/share/platter/logs"
	defaultCoversDir = "~/.local/share/platter/covers"
	defaultAPIBind   = "127.0.0.1:7512"

	defaultEncoderBaseURL        = "http://127.0.0.1:8765"
	defaultEncoderModelVersion   = "clip-vit-b-32/1"
	defaultEncoderTimeoutSeconds = 60

	// Confidence policy constants tuned against a household-sized catalog.
	// Scores are cosine similarities of L2-normalized CLIP vectors.
	defaultMatcherAbsThreshold = 0.80
	defaultMatcherGapThreshold = 0.10
	defaultMatcherTopK         = 5

	defaultRebuildWorkers            = 4
	defaultRebuildItemTimeoutSeconds = 60

	defaultDiscogsBaseURL        = "https://api.discogs.com"
	defaultDiscogsUserAgent      = "Platter/dev"
	defaultDiscogsTimeoutSeconds = 20

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			CoversDir: defaultCoversDir,
			APIBind:   defaultAPIBind,
		},
		Encoder: Encoder{
			BaseURL:        defaultEncoderBaseURL,
			ModelVersion:   defaultEncoderModelVersion,
			TimeoutSeconds: defaultEncoderTimeoutSeconds,
		},
		Matcher: Matcher{
			AbsThreshold: defaultMatcherAbsThreshold,
			GapThreshold: defaultMatcherGapThreshold,
			TopK:         defaultMatcherTopK,
		},
		Rebuild: Rebuild{
			Workers:            defaultRebuildWorkers,
			ItemTimeoutSeconds: defaultRebuildItemTimeoutSeconds,
		},
		Discogs: Discogs{
			BaseURL:        defaultDiscogsBaseURL,
			UserAgent:      defaultDiscogsUserAgent,
			TimeoutSeconds: defaultDiscogsTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
