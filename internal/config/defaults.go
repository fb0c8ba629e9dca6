package config

const (
	defaultHome              = "~/tesserae"
	defaultStateDir          = "~/.local/share/tessera"
	defaultLogDirName        = "logs"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogMaxSizeMB      = 10
	defaultLogRetentionDays  = 14
	defaultServiceName       = "mongod"
	defaultServiceInstallDir = "mongodb"
	defaultServiceDataDir    = "tessdb"
	defaultServiceVersion    = "4.2.6"
	defaultServicePort       = "40404"
	defaultServiceResource   = "tesserae"
	defaultServiceSection    = "MONGO"
	defaultServiceProbe      = ProbeMongo
	defaultVerifyAttempts    = 10
	defaultVerifyIntervalMS  = 500
	defaultVerifyTimeoutMS   = 2000
	defaultWorkerDistDir     = "dist-python"
	defaultWorkerSrcDir      = "tisapi"
	defaultWorkerModule      = "run_app"
	defaultWorkerInterpreter = "python"
	defaultDownloadTimeout   = 600
	defaultMaxRedirects      = 10
	defaultUserAgent         = "tessera/dev"
	defaultPollIntervalMS    = 30
	defaultGraceMS           = 5000
	defaultSurfaceBind       = "127.0.0.1:40480"
	defaultAppName           = "Tesserae"
	defaultBundleSuffix      = "models_cltk"
	defaultBundleURL         = "https://github.com/cltk/{id}_{suffix}/archive/master.tar.gz"
	defaultBundleRoot        = "{id}_{suffix}-master"
)

// Probe kinds accepted by service.probe.
const (
	ProbeMongo = "mongo"
	ProbeTCP   = "tcp"
)

func defaultDownloads() map[string]string {
	return map[string]string{
		"windows": "https://fastdl.mongodb.org/win32/mongodb-win32-x86_64-2012plus-4.2.6.zip",
		"darwin":  "https://fastdl.mongodb.org/osx/mongodb-macos-x86_64-4.2.6.tgz",
		"linux":   "https://fastdl.mongodb.org/linux/mongodb-linux-x86_64-ubuntu1804-4.2.6.tgz",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			Home: defaultHome,
		},
		Service: Service{
			Name:             defaultServiceName,
			InstallDir:       defaultServiceInstallDir,
			DataDir:          defaultServiceDataDir,
			Version:          defaultServiceVersion,
			Port:             defaultServicePort,
			Resource:         defaultServiceResource,
			Section:          defaultServiceSection,
			Probe:            defaultServiceProbe,
			VerifyAttempts:   defaultVerifyAttempts,
			VerifyIntervalMS: defaultVerifyIntervalMS,
			VerifyTimeoutMS:  defaultVerifyTimeoutMS,
			Downloads:        defaultDownloads(),
		},
		Worker: Worker{
			DistDir:     defaultWorkerDistDir,
			SrcDir:      defaultWorkerSrcDir,
			Module:      defaultWorkerModule,
			Interpreter: defaultWorkerInterpreter,
		},
		Bundles: []Bundle{
			{ID: "lat", Suffix: defaultBundleSuffix, URL: defaultBundleURL, Root: defaultBundleRoot},
			{ID: "grc", Suffix: defaultBundleSuffix, URL: defaultBundleURL, Root: defaultBundleRoot},
		},
		Download: Download{
			TimeoutSeconds: defaultDownloadTimeout,
			MaxRedirects:   defaultMaxRedirects,
			UserAgent:      defaultUserAgent,
		},
		Shutdown: Shutdown{
			PollIntervalMS: defaultPollIntervalMS,
			GraceMS:        defaultGraceMS,
		},
		Surface: Surface{
			Bind:    defaultSurfaceBind,
			AppName: defaultAppName,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			MaxSizeMB:     defaultLogMaxSizeMB,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
