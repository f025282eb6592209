package remote

// Endpoint paths served by the backing store.
const (
	PathSaveConfig       = "/save-config"
	PathSavePluginConfig = "/save-plugin-config"
	PathSaveCredentials  = "/save-credentials"
	PathConfig           = "/config"
	PathPluginConfig     = "/plugin-config"
	PathCredentials      = "/credentials"
	PathJarFilePicker    = "/jar-file-picker"
)

// HeaderRequestID correlates client requests with host logs.
const HeaderRequestID = "X-Request-Id"
