package serve

import (
	"net/http"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gonefs/gonefs/cmd/util"
	"github.com/gonefs/gonefs/lib/clockproc"
	"github.com/gonefs/gonefs/rpc/common"
	"github.com/gonefs/gonefs/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the clock RPC server",
		Long:    `Start the clock RPC server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is GONEFS_<flag> (e.g. GONEFS_ENDPOINT=0.0.0.0:20049)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:20049", util.WrapString("The address on which the server will listen (host:port for tcp, a path for unix)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "metrics-addr"
	ServeCmd.PersistentFlags().String(key, "", util.WrapString("Optional address for the Prometheus /metrics endpoint (empty = disabled)"))

	util.SetupSocketFlags(ServeCmd)
}

// processConfig reads the configuration from the command line flags and environment variables
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = util.GetTransportConfig()

	return nil
}

func run(_ *cobra.Command, _ []string) error {
	common.InitLoggers(serveCmdConfig.LogLevel)

	connector, err := util.GetServerConnector()
	if err != nil {
		return err
	}

	s, err := server.New(clockproc.Def(), connector, *serveCmdConfig)
	if err != nil {
		return err
	}

	server.Logger.Infof(serveCmdConfig.String())

	// Optional Prometheus endpoint
	if addr := viper.GetString("metrics-addr"); addr != "" {
		http.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			metrics.WritePrometheus(w, true)
		})
		go func() {
			server.Logger.Infof("serving metrics on %s", addr)
			server.Logger.Errorf("metrics endpoint stopped: %v", http.ListenAndServe(addr, nil))
		}()
	}

	return s.Serve()
}
