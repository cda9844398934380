package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for the multisig engine and CLI
const (
	EnvMultisigChainID         = "MULTISIG_CHAIN_ID"
	EnvMultisigRPCURL          = "MULTISIG_RPC_URL"
	EnvMultisigMaxDepth        = "MULTISIG_MAX_DEPTH"
	EnvMultisigResolverRPS     = "MULTISIG_RESOLVER_RPS"
	EnvMultisigPersistenceType = "MULTISIG_PERSISTENCE_TYPE"
	EnvMultisigBadgerPath      = "MULTISIG_BADGER_PATH"
	EnvMultisigRedisAddress    = "MULTISIG_REDIS_ADDRESS"
	EnvMultisigRedisPassword   = "MULTISIG_REDIS_PASSWORD"
	EnvMultisigRedisDB         = "MULTISIG_REDIS_DB"
	EnvMultisigRedisKeyPrefix  = "MULTISIG_REDIS_KEY_PREFIX"
	EnvMultisigPrivateKey      = "MULTISIG_PRIVATE_KEY"
	EnvMultisigAWSRegion       = "MULTISIG_AWS_REGION"
	EnvMultisigKMSKeyID        = "MULTISIG_KMS_KEY_ID"
	EnvMultisigVerbose         = "MULTISIG_VERBOSE"
)

type ChainId uint

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_EthereumSepolia ChainId = 11155111
	ChainId_EthereumAnvil   ChainId = 31337
)

type ChainName string

const (
	ChainName_EthereumMainnet ChainName = "mainnet"
	ChainName_EthereumSepolia ChainName = "sepolia"
	ChainName_EthereumAnvil   ChainName = "devnet"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_EthereumMainnet: ChainName_EthereumMainnet,
	ChainId_EthereumSepolia: ChainName_EthereumSepolia,
	ChainId_EthereumAnvil:   ChainName_EthereumAnvil,
}
var ChainNameToId = map[ChainName]ChainId{
	ChainName_EthereumMainnet: ChainId_EthereumMainnet,
	ChainName_EthereumSepolia: ChainId_EthereumSepolia,
	ChainName_EthereumAnvil:   ChainId_EthereumAnvil,
}

func (c ChainId) BigInt() *big.Int {
	return new(big.Int).SetUint64(uint64(c))
}

// GetSupportedChainIDsString returns supported chain IDs for CLI help
func GetSupportedChainIDsString() string {
	return fmt.Sprintf("%d (mainnet), %d (sepolia), %d (anvil)",
		ChainId_EthereumMainnet, ChainId_EthereumSepolia, ChainId_EthereumAnvil)
}

// DefaultMaxDepth bounds nested ownership chains when nothing else is configured
const DefaultMaxDepth = 8

// EngineConfig configures hashing domains, recursion limits and on-chain resolution
type EngineConfig struct {
	ChainID   ChainId   `json:"chain_id"`
	ChainName ChainName `json:"chain_name"`

	// MaxDepth is the deepest nested account chain accepted
	MaxDepth int `json:"max_depth"`

	// RpcUrl is optional; without it account configurations must be supplied directly
	RpcUrl      string  `json:"rpc_url"`
	ResolverRPS float64 `json:"resolver_rps"`

	Debug   bool `json:"debug"`
	Verbose bool `json:"verbose"`
}

// Validate checks the engine configuration and fills in ChainName and a default MaxDepth
func (c *EngineConfig) Validate() error {
	var allErrors field.ErrorList

	chainName, ok := ChainIdToName[c.ChainID]
	if !ok {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("chainId"), c.ChainID, []string{
			fmt.Sprint(ChainId_EthereumMainnet), fmt.Sprint(ChainId_EthereumSepolia), fmt.Sprint(ChainId_EthereumAnvil),
		}))
	}
	if c.MaxDepth < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("maxDepth"), c.MaxDepth, "must not be negative"))
	}
	if c.ResolverRPS < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("resolverRps"), c.ResolverRPS, "must not be negative"))
	}
	if c.RpcUrl != "" && !strings.HasPrefix(c.RpcUrl, "http") && !strings.HasPrefix(c.RpcUrl, "ws") {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rpcUrl"), c.RpcUrl, "must be an http(s) or ws(s) URL"))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}

	c.ChainName = chainName
	if c.MaxDepth == 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	return nil
}

type PersistenceType string

const (
	PersistenceType_Memory PersistenceType = "memory"
	PersistenceType_Badger PersistenceType = "badger"
	PersistenceType_Redis  PersistenceType = "redis"
)

// PersistenceConfig selects where published blobs are stored
type PersistenceConfig struct {
	Type           PersistenceType `json:"type" yaml:"type"`
	BadgerPath     string          `json:"badgerPath" yaml:"badgerPath"`
	RedisAddress   string          `json:"redisAddress" yaml:"redisAddress"`
	RedisPassword  string          `json:"redisPassword" yaml:"redisPassword"`
	RedisDB        int             `json:"redisDb" yaml:"redisDb"`
	RedisKeyPrefix string          `json:"redisKeyPrefix" yaml:"redisKeyPrefix"`
}

func (pc *PersistenceConfig) Validate() error {
	var allErrors field.ErrorList
	switch pc.Type {
	case PersistenceType_Memory:
	case PersistenceType_Badger:
		if pc.BadgerPath == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("badgerPath"), "badgerPath is required for badger persistence"))
		}
	case PersistenceType_Redis:
		if pc.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("redisAddress"), "redisAddress is required for redis persistence"))
		}
		if pc.RedisDB < 0 || pc.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("redisDb"), pc.RedisDB, "must be between 0 and 15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("type"), pc.Type, []string{
			string(PersistenceType_Memory), string(PersistenceType_Badger), string(PersistenceType_Redis),
		}))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// OwnerSignerConfig selects the key an owner signs with. Exactly one source is used.
type OwnerSignerConfig struct {
	PrivateKey string `json:"privateKey" yaml:"privateKey"`
	KMSKeyId   string `json:"kmsKeyId" yaml:"kmsKeyId"`
	AWSRegion  string `json:"awsRegion" yaml:"awsRegion"`
}

func (osc *OwnerSignerConfig) Validate() error {
	var allErrors field.ErrorList
	switch {
	case osc.PrivateKey == "" && osc.KMSKeyId == "":
		allErrors = append(allErrors, field.Required(field.NewPath("privateKey"), "one of privateKey or kmsKeyId is required"))
	case osc.PrivateKey != "" && osc.KMSKeyId != "":
		allErrors = append(allErrors, field.Forbidden(field.NewPath("kmsKeyId"), "privateKey and kmsKeyId are mutually exclusive"))
	case osc.PrivateKey != "":
		key := strings.TrimPrefix(osc.PrivateKey, "0x")
		if len(key) != 64 || !isHex(key) {
			allErrors = append(allErrors, field.Invalid(field.NewPath("privateKey"), "<redacted>", "must be 32 bytes of hex"))
		}
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// ParseAddress parses a hex address, rejecting anything common.HexToAddress would silently accept
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address format: %s", s)
	}
	return common.HexToAddress(s), nil
}

func isHex(s string) bool {
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}
