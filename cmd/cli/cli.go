package cli

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/canopy-network/batchdex/cmd/rpc"
	"github.com/canopy-network/batchdex/dex"
	"github.com/canopy-network/batchdex/lib"
	"github.com/canopy-network/batchdex/store"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var rootCmd = &cobra.Command{
	Use:   "batchdex",
	Short: "the batchdex settlement engine",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(rpc.SoftwareVersion)
	},
}

var (
	client, config, l = &rpc.Client{}, lib.Config{}, lib.LoggerI(nil)
	DataDir           = ""
)

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(applyBlockCmd)
	rootCmd.AddCommand(populateCmd)
	rootCmd.PersistentFlags().StringVar(&DataDir, "data-dir", lib.DefaultDataDirPath(), "custom data directory location")
	// the data directory flag must be parsed before the config it holds is loaded
	cobra.OnInitialize(func() {
		config = InitializeDataDirectory(DataDir, lib.NewDefaultLogger())
		l = lib.NewLogger(lib.LoggerConfig{Level: config.GetLogLevel()}, config.DataDirPath)
		client = rpc.NewClient(config.RPCUrl, config.AdminRPCUrl, config.ClientRetries)
	})
}

// Execute() runs the command line interface
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "start the settlement engine",
	Run: func(cmd *cobra.Command, args []string) {
		Start()
	},
}

// Start() is the entrypoint of the application
func Start() {
	db, err := store.New(config.StoreConfig, l)
	if err != nil {
		l.Fatal(err.Error())
	}
	metrics := lib.NewMetricsServer(config.MetricsConfig, l)
	sm, err := dex.New(config, db, metrics, l)
	if err != nil {
		l.Fatal(err.Error())
	}
	metrics.Start()
	server := rpc.NewServer(sm, config, l)
	if err = server.Start(); err != nil {
		l.Fatal(err.Error())
	}
	l.Infof("Batchdex %s started at height %d", rpc.SoftwareVersion, sm.Height())
	// block until a signal is received
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGABRT)
	s := <-stop
	l.Infof("Exit command %s received", s)
	server.Stop()
	metrics.Stop()
	if err = db.Close(); err != nil {
		l.Error(err.Error())
	}
	os.Exit(0)
}

// InitializeDataDirectory() creates the data directory and its config file if missing, and loads the config
func InitializeDataDirectory(dataDirPath string, log lib.LoggerI) (c lib.Config) {
	if err := os.MkdirAll(dataDirPath, os.ModePerm); err != nil {
		panic(err)
	}
	configFilePath := filepath.Join(dataDirPath, lib.ConfigFilePath)
	if _, err := os.Stat(configFilePath); errors.Is(err, os.ErrNotExist) {
		log.Infof("Creating %s file", lib.ConfigFilePath)
		if err = lib.DefaultConfig().WriteToFile(configFilePath); err != nil {
			panic(err)
		}
	}
	c, err := lib.NewConfigFromFile(configFilePath)
	if err != nil {
		panic(err)
	}
	c.DataDirPath = dataDirPath
	return
}

// parseAsset() accepts a hex encoded asset id or a denomination
func parseAsset(s string) dex.AssetId {
	if bz, err := hex.DecodeString(s); err == nil && len(bz) == len(dex.AssetId{}) {
		id, _ := dex.AssetIdFromHex(s)
		return id
	}
	return dex.NewAssetId(s)
}

func writeToConsole(a any, err error) {
	if err != nil {
		l.Fatal(err.Error())
	}
	switch v := a.(type) {
	case int, uint32, uint64:
		p := message.NewPrinter(language.English)
		if _, err = p.Printf("%d\n", v); err != nil {
			l.Fatal(err.Error())
		}
	case string:
		fmt.Println(v)
	case *string:
		fmt.Println(*v)
	default:
		s, e := lib.MarshalJSONIndentString(a)
		if e != nil {
			l.Fatal(e.Error())
		}
		fmt.Println(s)
	}
}
