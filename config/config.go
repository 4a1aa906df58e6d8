package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/ordex-network/ordex-daemon/pkg/explorer"
	"github.com/ordex-network/ordex-daemon/pkg/explorer/esplora"
	"github.com/ordex-network/ordex-daemon/pkg/httputil"
)

const (
	// DatadirKey is the local data directory to store the internal state of
	// the daemon
	DatadirKey = "DATA_DIR_PATH"
	// LogLevelKey are the different logging levels. For reference on the
	// values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// NetworkKey is the network to use. Either "mainnet", "testnet" or
	// "regtest"
	NetworkKey = "NETWORK"
	// ExplorerEndpointKey is the endpoint of the esplora REST API
	ExplorerEndpointKey = "EXPLORER_ENDPOINT"
	// OrdEndpointKey is the endpoint of the ordinals indexer REST API
	OrdEndpointKey = "ORD_ENDPOINT"
	// ExplorerRequestTimeoutKey are the milliseconds to wait for HTTP
	// responses before timeouts
	ExplorerRequestTimeoutKey = "EXPLORER_REQUEST_TIMEOUT"
	// ExplorerLimitKey represents the number of requests per second permitted
	// towards the explorer
	ExplorerLimitKey = "EXPLORER_LIMIT"
	// SweepIntervalKey is the interval in seconds between two runs of the
	// expired-offer sweep
	SweepIntervalKey = "SWEEP_INTERVAL"
	// OfferExpiryTimeKey is the default lifetime in seconds of an offer whose
	// request carries no expiry
	OfferExpiryTimeKey = "OFFER_EXPIRY_TIME"

	DbLocation = "db"
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("ordex-daemon", false)

func init() {
	vip = viper.New()
	vip.SetEnvPrefix("ORDEX")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(NetworkKey, "mainnet")
	vip.SetDefault(ExplorerRequestTimeoutKey, 15000)
	vip.SetDefault(ExplorerLimitKey, 10)
	vip.SetDefault(SweepIntervalKey, 60)
	vip.SetDefault(OfferExpiryTimeKey, 86400)

	if err := validate(); err != nil {
		log.WithError(err).Panic("error while validating config")
	}

	if err := initDatadir(); err != nil {
		log.WithError(err).Panic("error while creating datadir")
	}
}

// GetString ...
func GetString(key string) string {
	return vip.GetString(key)
}

// GetInt ...
func GetInt(key string) int {
	return vip.GetInt(key)
}

// GetDuration ...
func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

// Set a value for the given key
func Set(key string, value interface{}) {
	vip.Set(key, value)
}

// IsSet returns whether the given key is set
func IsSet(key string) bool {
	return vip.IsSet(key)
}

// GetNetwork ...
func GetNetwork() *chaincfg.Params {
	switch vip.GetString(NetworkKey) {
	case "regtest":
		return &chaincfg.RegressionNetParams
	case "testnet":
		return &chaincfg.TestNet3Params
	default:
		return &chaincfg.MainNetParams
	}
}

func GetDatadir() string {
	return filepath.Join(GetString(DatadirKey), GetString(NetworkKey))
}

// GetExplorer returns the chain gateway configured against the esplora and
// ordinals indexer endpoints of the selected network.
func GetExplorer() (explorer.Service, error) {
	httputil.SetTimeout(
		time.Duration(GetInt(ExplorerRequestTimeoutKey)) * time.Millisecond,
	)

	apiURL := GetString(ExplorerEndpointKey)
	if apiURL == "" {
		apiURL = defaultExplorerEndpoint()
	}
	ordURL := GetString(OrdEndpointKey)
	if ordURL == "" {
		ordURL = defaultOrdEndpoint()
	}

	return esplora.NewService(apiURL, ordURL, GetInt(ExplorerLimitKey))
}

func defaultExplorerEndpoint() string {
	switch vip.GetString(NetworkKey) {
	case "regtest":
		return "http://localhost:3000"
	case "testnet":
		return "https://blockstream.info/testnet/api"
	default:
		return "https://blockstream.info/api"
	}
}

func defaultOrdEndpoint() string {
	switch vip.GetString(NetworkKey) {
	case "regtest":
		return "http://localhost:8080"
	case "testnet":
		return "https://open-api-testnet.unisat.io"
	default:
		return "https://open-api.unisat.io"
	}
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("datadir must not be null")
	}

	networkName := GetString(NetworkKey)
	if networkName != "mainnet" && networkName != "testnet" &&
		networkName != "regtest" {
		return fmt.Errorf(
			"network must be one of 'mainnet', 'testnet' or 'regtest'",
		)
	}

	if GetInt(SweepIntervalKey) <= 0 {
		return fmt.Errorf("sweep interval must be a positive number of seconds")
	}
	if GetInt(OfferExpiryTimeKey) <= 0 {
		return fmt.Errorf("offer expiry time must be a positive number of seconds")
	}

	return nil
}

func initDatadir() error {
	return makeDirectoryIfNotExists(GetDatadir())
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
