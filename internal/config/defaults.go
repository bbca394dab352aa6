package config

const (
	defaultStateDir        = "~/.local/share/arcam"
	defaultLogDir          = "~/.local/share/arcam/logs"
	defaultAPIBind         = "127.0.0.1:7491"
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultFacingHint      = "environment"
	defaultFocusMode       = "continuous"
	defaultAspectRatio     = 4.0 / 3.0
	defaultFrameRate       = 30
	defaultWidthIdeal      = 640
	defaultWidthMin        = 480
	defaultWidthMax        = 1280
	defaultHeightIdeal     = 480
	defaultHeightMin       = 360
	defaultHeightMax       = 720
	defaultZoomAttempts    = 5
	defaultZoomIntervalMS  = 1000
	defaultHintTTLMS       = 5000
	defaultWatchdogTickMS  = 1500
	defaultMinCoverage     = 0.9
	defaultMaxOffsetPx     = 5
	defaultARReadyGraceMS  = 10000
	defaultEventBufferSize = 32
	defaultBridgeTimeoutMS = 30000

	defaultNegotiateTimeoutMS = 60000
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Camera: Camera{
			WidthIdeal:  defaultWidthIdeal,
			WidthMin:    defaultWidthMin,
			WidthMax:    defaultWidthMax,
			HeightIdeal: defaultHeightIdeal,
			HeightMin:   defaultHeightMin,
			HeightMax:   defaultHeightMax,
			FrameRate:   defaultFrameRate,
			AspectRatio: defaultAspectRatio,
			FacingHint:  defaultFacingHint,
			FocusMode:   defaultFocusMode,
			PinZoom:     true,
		},
		Scoring: DefaultScoring(),
		Zoom: Zoom{
			Attempts:   defaultZoomAttempts,
			IntervalMS: defaultZoomIntervalMS,
			HintTTLMS:  defaultHintTTLMS,
		},
		Watchdog: Watchdog{
			IntervalMS:  defaultWatchdogTickMS,
			MinCoverage: defaultMinCoverage,
			MaxOffsetPx: defaultMaxOffsetPx,
		},
		Session: Session{
			ARReadyGraceMS:     defaultARReadyGraceMS,
			EventBufferSize:    defaultEventBufferSize,
			BridgeTimeoutMS:    defaultBridgeTimeoutMS,
			NegotiateTimeoutMS: defaultNegotiateTimeoutMS,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// DefaultScoring returns the label rule table used for camera scoring.
func DefaultScoring() Scoring {
	return Scoring{
		Base:              100,
		TelephotoPenalty:  -50,
		UltraWidePenalty:  -30,
		PrimaryBonus:      20,
		GenericFirstBonus: 10,
		FirstBonus:        15,
		LastPenalty:       -25,
		Exclude:           []string{"front", "selfie", "user", "face"},
		Telephoto:         []string{"telephoto", "tele", "zoom", "periscope", "2x", "3x", "5x", "10x", "64mp", "108mp"},
		UltraWide:         []string{"ultrawide", "ultra wide", "ultra-wide", "uw", "0.5x"},
		Primary:           []string{"main", "wide", "primary", "principal"},
		Generic:           []string{"camera"},
	}
}
