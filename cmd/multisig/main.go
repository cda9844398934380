package main

import (
	"fmt"
	"log"
	"os"

	"github.com/clemsos/safe-docs/pkg/config"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "multisig",
		Usage: "Collect, aggregate and validate multi-owner account signatures",
		Description: `Operator tool for multi-owner smart accounts.

Digests bind an action to one account on one chain. Owners sign the digest with a
local key or an AWS KMS key, signatures are aggregated into a canonical blob, and
blobs are validated against the account's owners and threshold. Owners that are
themselves accounts are supported through nested blobs.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:     "chain-id",
				Aliases:  []string{"chain"},
				Usage:    fmt.Sprintf("Ethereum chain ID: %s", config.GetSupportedChainIDsString()),
				EnvVars:  []string{config.EnvMultisigChainID},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Aliases: []string{"rpc"},
				Usage:   "Ethereum RPC endpoint URL used to read account configurations",
				EnvVars: []string{config.EnvMultisigRPCURL},
			},
			&cli.IntFlag{
				Name:    "max-depth",
				Usage:   "Deepest nested account chain accepted",
				Value:   config.DefaultMaxDepth,
				EnvVars: []string{config.EnvMultisigMaxDepth},
			},
			&cli.Float64Flag{
				Name:    "resolver-rps",
				Usage:   "RPC requests per second when reading account configurations (0 = unlimited)",
				EnvVars: []string{config.EnvMultisigResolverRPS},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvMultisigVerbose},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "digest",
				Usage: "Compute the digest an account's owners sign for an action",
				Flags: append(append(accountFlags(), actionFlags()...),
					&cli.StringFlag{
						Name:  "requester",
						Usage: "Parent account asking --account to co-sign; prints the nested digest",
					},
					&cli.StringFlag{
						Name:  "parent-digest",
						Usage: "Requester's digest (32 bytes hex); without it the requester is resolved and the action hashed",
					},
				),
				Action: digestCommand,
			},
			{
				Name:  "keygen",
				Usage: "Provision an owner key locally or in AWS KMS",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "key-name",
						Usage: "Name tag of the key",
						Value: "multisig-owner",
					},
					&cli.StringFlag{
						Name:  "alias",
						Usage: "KMS alias (without the alias/ prefix)",
					},
					&cli.BoolFlag{
						Name:  "kms",
						Usage: "Create the key in AWS KMS instead of locally",
					},
					&cli.StringFlag{
						Name:    "aws-region",
						Usage:   "AWS region for the KMS key",
						EnvVars: []string{config.EnvMultisigAWSRegion},
					},
				},
				Action: keygenCommand,
			},
			{
				Name:  "sign",
				Usage: "Sign a digest with a local key or an AWS KMS key",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "digest",
						Usage:    "Digest to sign (32 bytes hex)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "method",
						Usage: "Signing method: eth_signTypedData or eth_sign",
						Value: "eth_signTypedData",
					},
					&cli.StringFlag{
						Name:    "private-key",
						Usage:   "Owner private key (hex)",
						EnvVars: []string{config.EnvMultisigPrivateKey},
					},
					&cli.StringFlag{
						Name:    "kms-key-id",
						Usage:   "AWS KMS key id or alias of an ECC_SECG_P256K1 key",
						EnvVars: []string{config.EnvMultisigKMSKeyID},
					},
					&cli.StringFlag{
						Name:    "aws-region",
						Usage:   "AWS region of the KMS key",
						EnvVars: []string{config.EnvMultisigAWSRegion},
					},
				},
				Action: signCommand,
			},
			{
				Name:  "aggregate",
				Usage: "Aggregate owner signatures into a blob",
				Flags: append(append(accountFlags(), persistenceFlags()...),
					&cli.StringFlag{
						Name:     "digest",
						Usage:    "Digest the signatures approve",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:  "signature",
						Usage: "Direct owner signature as 0x<r||s||v>:<method>; repeatable",
					},
					&cli.StringSliceFlag{
						Name:  "nested",
						Usage: "Aggregated blob of an owner account as <owner>=0x<blob>; repeatable",
					},
					&cli.BoolFlag{
						Name:  "partial",
						Usage: "Return an in-progress blob when the threshold is not met",
					},
					&cli.BoolFlag{
						Name:  "publish",
						Usage: "Validate and publish the blob to the configured persistence",
					},
				),
				Action: aggregateCommand,
			},
			{
				Name:  "validate",
				Usage: "Validate a signature blob for an account and digest",
				Flags: append(accountFlags(),
					&cli.StringFlag{
						Name:     "digest",
						Usage:    "Digest the blob approves",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "signatures",
						Usage:    "Encoded signature blob (hex)",
						Required: true,
					},
				),
				Action: validateCommand,
			},
			{
				Name:  "fetch",
				Usage: "Load a published blob and re-validate it",
				Flags: append(append(accountFlags(), persistenceFlags()...),
					&cli.StringFlag{
						Name:     "digest",
						Usage:    "Digest the blob approves",
						Required: true,
					},
				),
				Action: fetchCommand,
			},
			{
				Name:   "list",
				Usage:  "List the blobs published for an account that still validate",
				Flags:  append(accountFlags(), persistenceFlags()...),
				Action: listCommand,
			},
		},
	}
}

func accountFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "account",
			Usage:    "Account address",
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:  "owners",
			Usage: "Owner addresses; when set the account is not read from chain",
		},
		&cli.Uint64Flag{
			Name:  "threshold",
			Usage: "Approval threshold used with --owners",
		},
		&cli.StringFlag{
			Name:  "account-version",
			Usage: "Account contract version used with --owners",
			Value: "1.4.1",
		},
	}
}

func actionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "message",
			Usage: "Raw message (UTF-8 string)",
		},
		&cli.StringFlag{
			Name:  "message-hex",
			Usage: "Raw message (hex bytes)",
		},
		&cli.StringFlag{
			Name:  "typed-data-file",
			Usage: "Path to an EIP-712 typed data JSON document",
		},
		&cli.StringFlag{
			Name:  "tx-file",
			Usage: "Path to a transaction JSON document",
		},
	}
}

func persistenceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "persistence-type",
			Usage:   "Blob persistence: memory, badger or redis",
			Value:   string(config.PersistenceType_Memory),
			EnvVars: []string{config.EnvMultisigPersistenceType},
		},
		&cli.StringFlag{
			Name:    "badger-path",
			Usage:   "Badger data directory",
			EnvVars: []string{config.EnvMultisigBadgerPath},
		},
		&cli.StringFlag{
			Name:    "redis-address",
			Usage:   "Redis host:port",
			EnvVars: []string{config.EnvMultisigRedisAddress},
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Usage:   "Redis password",
			EnvVars: []string{config.EnvMultisigRedisPassword},
		},
		&cli.IntFlag{
			Name:    "redis-db",
			Usage:   "Redis database number",
			EnvVars: []string{config.EnvMultisigRedisDB},
		},
		&cli.StringFlag{
			Name:    "redis-key-prefix",
			Usage:   "Prefix for every Redis key",
			EnvVars: []string{config.EnvMultisigRedisKeyPrefix},
		},
	}
}
