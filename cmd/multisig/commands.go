package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/clemsos/safe-docs/internal/aws"
	"github.com/clemsos/safe-docs/internal/keyGenerator"
	"github.com/clemsos/safe-docs/internal/keyGenerator/awsKms"
	"github.com/clemsos/safe-docs/internal/keyGenerator/localKeyGenerator"
	"github.com/clemsos/safe-docs/pkg/config"
	"github.com/clemsos/safe-docs/pkg/multisig"
	"github.com/clemsos/safe-docs/pkg/signature"
	"github.com/clemsos/safe-docs/pkg/types"
	"github.com/clemsos/safe-docs/pkg/validator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
)

type blobOutput struct {
	Account    common.Address   `json:"account"`
	Digest     common.Hash      `json:"digest"`
	Signatures hexutil.Bytes    `json:"signatures"`
	Signers    []common.Address `json:"signers"`
	Partial    bool             `json:"partial"`
	Published  bool             `json:"published,omitempty"`
}

func printJSON(c *cli.Context, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, string(out))
	return err
}

func digestCommand(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	engine, cleanup, err := newEngine(c, l, false)
	if err != nil {
		return err
	}
	defer cleanup()

	address, err := config.ParseAddress(c.String("account"))
	if err != nil {
		return err
	}
	account, err := engine.ResolveAccount(c.Context, address)
	if err != nil {
		return err
	}

	if !c.IsSet("requester") {
		action, err := parseAction(c.String("message"), c.String("message-hex"), c.String("typed-data-file"), c.String("tx-file"))
		if err != nil {
			return err
		}
		digest, err := engine.Digest(account, action)
		if err != nil {
			return err
		}
		return printJSON(c, map[string]interface{}{
			"account": account.Address,
			"chainId": engine.ChainID().String(),
			"digest":  digest,
		})
	}

	requester, err := config.ParseAddress(c.String("requester"))
	if err != nil {
		return fmt.Errorf("invalid requester: %w", err)
	}
	parentDigest, err := requesterDigest(c, engine, requester, account.Address)
	if err != nil {
		return err
	}
	digest, err := engine.NestedDigest(account, requester, parentDigest)
	if err != nil {
		return err
	}
	return printJSON(c, map[string]interface{}{
		"account":      account.Address,
		"chainId":      engine.ChainID().String(),
		"requester":    requester,
		"parentDigest": parentDigest,
		"digest":       digest,
	})
}

// requesterDigest is --parent-digest when given, otherwise the requester's digest of
// the action. The latter needs the requester to be resolvable and owned by nested.
func requesterDigest(c *cli.Context, engine *multisig.Engine, requester common.Address, nested common.Address) (types.Digest, error) {
	if c.IsSet("parent-digest") {
		return parseDigest(c.String("parent-digest"))
	}
	action, err := parseAction(c.String("message"), c.String("message-hex"), c.String("typed-data-file"), c.String("tx-file"))
	if err != nil {
		return types.Digest{}, err
	}
	parent, err := engine.ResolveAccount(c.Context, requester)
	if err != nil {
		return types.Digest{}, fmt.Errorf("failed to resolve requester: %w", err)
	}
	if !parent.IsOwner(nested) {
		return types.Digest{}, fmt.Errorf("%w: %s is not an owner of %s", types.ErrUnknownSigner, nested.Hex(), requester.Hex())
	}
	return engine.Digest(parent, action)
}

func keygenCommand(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	cfg, err := parseEngineConfig(c)
	if err != nil {
		return err
	}

	if !c.Bool("kms") {
		generator := localKeyGenerator.NewLocalKeyGenerator(l)
		key, err := generator.GenerateOwnerKey(c.Context, c.String("key-name"), c.String("alias"))
		if err != nil {
			return err
		}
		privateKey, err := generator.ExportPrivateKeyHex(key.KeyId)
		if err != nil {
			return err
		}
		return printKey(c, key, privateKey)
	}

	awsCfg, err := aws.LoadAWSConfig(c.Context, c.String("aws-region"))
	if err != nil {
		return err
	}
	generator := awsKms.NewAWSKMSKeyGeneratorFromConfig(awsCfg, cfg.ChainName, l)
	key, err := generator.GenerateOwnerKey(c.Context, c.String("key-name"), c.String("alias"))
	if err != nil {
		return err
	}
	return printKey(c, key, "")
}

func printKey(c *cli.Context, key *keyGenerator.GeneratedOwnerKey, privateKey string) error {
	publicKey, err := key.GetPublicKeyHex()
	if err != nil {
		return err
	}
	out := map[string]interface{}{
		"keyId":     key.KeyId,
		"address":   key.Address,
		"publicKey": publicKey,
	}
	if privateKey != "" {
		out["privateKey"] = privateKey
	}
	return printJSON(c, out)
}

func signCommand(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	digest, err := parseDigest(c.String("digest"))
	if err != nil {
		return err
	}
	method, err := signature.ParseMethod(c.String("method"))
	if err != nil {
		return err
	}
	signer, err := newOwnerSigner(c, l)
	if err != nil {
		return err
	}

	sig, err := signer.SignDigest(c.Context, digest, method)
	if err != nil {
		return err
	}
	return printJSON(c, map[string]interface{}{
		"signer":    signer.Address(),
		"digest":    digest,
		"signature": formatSignatureArg(sig),
	})
}

func aggregateCommand(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	digest, err := parseDigest(c.String("digest"))
	if err != nil {
		return err
	}
	if c.Bool("publish") && c.Bool("partial") {
		return fmt.Errorf("--publish and --partial are mutually exclusive")
	}

	engine, cleanup, err := newEngine(c, l, c.Bool("publish"))
	if err != nil {
		return err
	}
	defer cleanup()

	address, err := config.ParseAddress(c.String("account"))
	if err != nil {
		return err
	}
	account, err := engine.ResolveAccount(c.Context, address)
	if err != nil {
		return err
	}
	session, err := engine.NewSessionForDigest(account, digest)
	if err != nil {
		return err
	}

	for _, arg := range c.StringSlice("signature") {
		sig, err := parseSignatureArg(arg)
		if err != nil {
			return err
		}
		if _, err := session.AddSignature(sig); err != nil {
			return err
		}
	}
	for _, arg := range c.StringSlice("nested") {
		owner, blob, err := parseNestedArg(arg)
		if err != nil {
			return err
		}
		if err := session.AddNestedSignatures(owner, blob); err != nil {
			return err
		}
	}

	if c.Bool("publish") {
		record, err := engine.Finalize(c.Context, session)
		if err != nil {
			return err
		}
		return printJSON(c, &blobOutput{
			Account:    record.Account,
			Digest:     record.Digest,
			Signatures: record.Signatures,
			Signers:    record.Signers,
			Published:  true,
		})
	}

	blob, err := session.Aggregate(c.Context, c.Bool("partial"))
	if err != nil {
		return err
	}
	return printJSON(c, &blobOutput{
		Account:    account.Address,
		Digest:     digest,
		Signatures: blob.Signatures,
		Signers:    blob.Signers,
		Partial:    blob.Partial,
	})
}

func validateCommand(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	digest, err := parseDigest(c.String("digest"))
	if err != nil {
		return err
	}
	sigs, err := hexutil.Decode(c.String("signatures"))
	if err != nil {
		return fmt.Errorf("invalid signatures: %w", err)
	}

	engine, cleanup, err := newEngine(c, l, false)
	if err != nil {
		return err
	}
	defer cleanup()

	address, err := config.ParseAddress(c.String("account"))
	if err != nil {
		return err
	}
	account, err := engine.ResolveAccount(c.Context, address)
	if err != nil {
		return err
	}

	err = engine.Validate(c.Context, account, digest, &signature.Blob{Signatures: sigs})
	if err == nil {
		return printJSON(c, map[string]interface{}{"accepted": true})
	}

	var rejection *validator.RejectionError
	if !errors.As(err, &rejection) {
		return err
	}
	if perr := printJSON(c, map[string]interface{}{
		"accepted": false,
		"reason":   rejection.Reason.String(),
		"account":  rejection.Account,
		"state":    rejection.State.String(),
		"error":    rejection.Error(),
	}); perr != nil {
		return perr
	}
	return cli.Exit("", 1)
}

func fetchCommand(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	digest, err := parseDigest(c.String("digest"))
	if err != nil {
		return err
	}
	address, err := config.ParseAddress(c.String("account"))
	if err != nil {
		return err
	}

	engine, cleanup, err := newEngine(c, l, true)
	if err != nil {
		return err
	}
	defer cleanup()

	blob, err := engine.Fetch(c.Context, address, digest)
	if err != nil {
		return err
	}
	if blob == nil {
		return cli.Exit(fmt.Sprintf("no blob published for %s digest %s", address.Hex(), digest.Hex()), 1)
	}
	return printJSON(c, &blobOutput{
		Account:    address,
		Digest:     digest,
		Signatures: blob.Signatures,
		Signers:    blob.Signers,
	})
}

func listCommand(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	address, err := config.ParseAddress(c.String("account"))
	if err != nil {
		return err
	}

	engine, cleanup, err := newEngine(c, l, true)
	if err != nil {
		return err
	}
	defer cleanup()

	records, err := engine.List(c.Context, address)
	if err != nil {
		return err
	}
	blobs := make([]*blobOutput, 0, len(records))
	for _, record := range records {
		blobs = append(blobs, &blobOutput{
			Account:    record.Account,
			Digest:     record.Digest,
			Signatures: record.Signatures,
			Signers:    record.Signers,
		})
	}
	return printJSON(c, map[string]interface{}{
		"account": address,
		"blobs":   blobs,
	})
}
