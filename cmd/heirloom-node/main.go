// heirloom-node is the operator CLI for the inheritance-vault store:
// it creates and funds vaults, records liveness attestations, executes
// claims, and performs the beneficiary's off-system secret recovery.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"heirloom.dev/vault/core"
	"heirloom.dev/vault/crypto"
	"heirloom.dev/vault/node"
	"heirloom.dev/vault/node/store"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	if len(argv) < 1 {
		usage()
		return 2
	}
	sub := argv[0]
	subargv := argv[1:]

	var err error
	switch sub {
	case "create":
		err = cmdCreate(subargv)
	case "fund":
		err = cmdFund(subargv)
	case "attest-record":
		err = cmdAttestRecord(subargv)
	case "ping":
		err = cmdPing(subargv)
	case "execute":
		err = cmdExecute(subargv)
	case "verify-identity":
		err = cmdVerifyIdentity(subargv)
	case "cancel":
		err = cmdCancel(subargv)
	case "show":
		err = cmdShow(subargv)
	case "events":
		err = cmdEvents(subargv)
	case "unwrap":
		err = cmdUnwrap(subargv)
	case "demo":
		err = cmdDemo(subargv)
	default:
		usage()
		return 2
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s error: %v\n", sub, err)
		return 1
	}
	return 0
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: heirloom-node <create|fund|attest-record|ping|execute|verify-identity|cancel|show|events|unwrap|demo> [flags]")
}

// runtime bundles everything a store-backed subcommand needs.
type runtime struct {
	cfg     node.Config
	hash    crypto.HashProvider
	sealer  crypto.SecretSealer
	db      *store.DB
	ledger  *store.Ledger
	service *node.Service
}

func openRuntime(cfg node.Config, attest core.AttestationClient) (*runtime, error) {
	if err := node.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	h, err := crypto.ProviderByName(cfg.HashAlg)
	if err != nil {
		return nil, err
	}
	sealer, err := crypto.SealerByName(cfg.SealMode)
	if err != nil {
		return nil, err
	}
	db, err := store.Open(cfg.DataDir, cfg.HashAlg, cfg.SealMode)
	if err != nil {
		return nil, err
	}
	if attest == nil {
		attest = node.StaticAttestationClient{Hash: h}
	}
	ledger := db.Ledger()
	svc := node.NewService(db, h, sealer, attest, node.SystemClock{}, node.NewLogger(cfg.LogLevel))
	return &runtime{cfg: cfg, hash: h, sealer: sealer, db: db, ledger: ledger, service: svc}, nil
}

func (r *runtime) close() {
	_ = r.db.Close()
}

func configFlags(fs *flag.FlagSet) *node.Config {
	defaults := node.DefaultConfig()
	cfg := &node.Config{}
	fs.StringVar(&cfg.DataDir, "datadir", defaults.DataDir, "vault data directory")
	fs.StringVar(&cfg.LogLevel, "log-level", defaults.LogLevel, "log level: debug|info|warn|error")
	fs.StringVar(&cfg.HashAlg, "hash-alg", defaults.HashAlg, "hash backend: sha3|blake3")
	fs.StringVar(&cfg.SealMode, "seal-mode", defaults.SealMode, "secret sealer: xor|aeskw|aead")
	return cfg
}

func cmdCreate(argv []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	cfg := configFlags(fs)
	testator := fs.String("testator", "", "testator id (32 bytes hex)")
	beneficiary := fs.String("beneficiary", "", "beneficiary id (32 bytes hex)")
	verifier := fs.String("verifier", "", "verifier id (32 bytes hex)")
	identityHash := fs.String("identity-hash", "", "beneficiary identity hash (32 bytes hex)")
	emailHash := fs.String("email-hash", "", "beneficiary email hash (32 bytes hex)")
	documentHash := fs.String("document-hash", "", "beneficiary document id hash (32 bytes hex)")
	contentRef := fs.String("content-ref", "", "content reference (32 bytes hex)")
	contentRefValidator := fs.String("content-ref-validator", "", "content reference validator (32 bytes hex)")
	warning := fs.Uint64("warning-timeout-secs", 0, "warning timeout in seconds")
	timeout := fs.Uint64("timeout-secs", 0, "claim timeout in seconds")
	amount := fs.Uint64("amount", 0, "custody amount")
	passwordHex := fs.String("password-hex", "", "encrypted password blob (hex, 1..64 bytes)")
	secretHex := fs.String("secret-hex", "", "master secret (32 bytes hex)")
	debugMode := fs.Bool("debug", false, "permissive liveness validation (test only)")
	nonce := fs.Uint("nonce", 0, "derivation nonce (0..255)")
	_ = fs.Parse(argv)

	p := core.CreateParams{
		WarningTimeoutSecs: *warning,
		TimeoutSecs:        *timeout,
		CustodyAmount:      *amount,
		DebugMode:          *debugMode,
		DerivationNonce:    byte(*nonce),
	}
	var err error
	if p.Testator, err = decode32(*testator, "testator"); err != nil {
		return err
	}
	if p.Beneficiary, err = decode32(*beneficiary, "beneficiary"); err != nil {
		return err
	}
	if p.Verifier, err = decode32(*verifier, "verifier"); err != nil {
		return err
	}
	if p.BeneficiaryIdentityHash, err = decode32(*identityHash, "identity-hash"); err != nil {
		return err
	}
	if p.BeneficiaryEmailHash, err = decode32(*emailHash, "email-hash"); err != nil {
		return err
	}
	if p.BeneficiaryDocumentIDHash, err = decode32(*documentHash, "document-hash"); err != nil {
		return err
	}
	if p.ContentRef, err = decode32(*contentRef, "content-ref"); err != nil {
		return err
	}
	if p.ContentRefValidator, err = decode32(*contentRefValidator, "content-ref-validator"); err != nil {
		return err
	}
	if p.EncryptedPassword, err = decodeHexStrict(*passwordHex); err != nil {
		return fmt.Errorf("password-hex: %w", err)
	}
	if p.MasterSecret, err = decodeHexStrict(*secretHex); err != nil {
		return fmt.Errorf("secret-hex: %w", err)
	}

	r, err := openRuntime(*cfg, nil)
	if err != nil {
		return err
	}
	defer r.close()

	v, err := r.service.Create(p)
	if err != nil {
		return err
	}
	fmt.Println(hex.EncodeToString(v.ID[:]))
	return nil
}

func cmdFund(argv []string) error {
	fs := flag.NewFlagSet("fund", flag.ExitOnError)
	cfg := configFlags(fs)
	account := fs.String("account", "", "account id (32 bytes hex)")
	amount := fs.Uint64("amount", 0, "amount to credit")
	floor := fs.Uint64("retention-floor", 0, "minimum balance the account must retain")
	_ = fs.Parse(argv)

	acct, err := decode32(*account, "account")
	if err != nil {
		return err
	}
	r, err := openRuntime(*cfg, nil)
	if err != nil {
		return err
	}
	defer r.close()

	if *amount > 0 {
		if err := r.ledger.Credit(acct, *amount); err != nil {
			return err
		}
	}
	if err := r.ledger.SetRetentionFloor(acct, *floor); err != nil {
		return err
	}
	fmt.Printf("balance=%d floor=%d\n", r.ledger.BalanceOf(acct), r.ledger.MinRetainedBalance(acct))
	return nil
}

func cmdAttestRecord(argv []string) error {
	fs := flag.NewFlagSet("attest-record", flag.ExitOnError)
	cfg := configFlags(fs)
	vaultID := fs.String("vault-id", "", "vault id (32 bytes hex)")
	caller := fs.String("caller", "", "caller testator id (32 bytes hex)")
	_ = fs.Parse(argv)

	id, err := decode32(*vaultID, "vault-id")
	if err != nil {
		return err
	}
	c, err := decode32(*caller, "caller")
	if err != nil {
		return err
	}
	r, err := openRuntime(*cfg, nil)
	if err != nil {
		return err
	}
	defer r.close()

	if err := r.service.CreateAttestationRecord(id, c); err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}

func cmdPing(argv []string) error {
	fs := flag.NewFlagSet("ping", flag.ExitOnError)
	cfg := configFlags(fs)
	vaultID := fs.String("vault-id", "", "vault id (32 bytes hex)")
	caller := fs.String("caller", "", "caller testator id (32 bytes hex)")
	rootHex := fs.String("root", "", "claimed attestation root (32 bytes hex)")
	proofHex := fs.String("proof", "", "inclusion proof: comma-separated 32-byte hex siblings, leaf to root")
	attestedRootHex := fs.String("attested-root", "", "root currently published by the attestation service (defaults to --root)")
	_ = fs.Parse(argv)

	id, err := decode32(*vaultID, "vault-id")
	if err != nil {
		return err
	}
	c, err := decode32(*caller, "caller")
	if err != nil {
		return err
	}
	root, err := decode32(*rootHex, "root")
	if err != nil {
		return err
	}
	attestedRoot := root
	if *attestedRootHex != "" {
		if attestedRoot, err = decode32(*attestedRootHex, "attested-root"); err != nil {
			return err
		}
	}
	proof, err := decodeProof(*proofHex)
	if err != nil {
		return err
	}

	h, err := crypto.ProviderByName(cfg.HashAlg)
	if err != nil {
		return err
	}
	r, err := openRuntime(*cfg, node.StaticAttestationClient{Hash: h, Root: attestedRoot})
	if err != nil {
		return err
	}
	defer r.close()

	if err := r.service.UpdateLiveness(id, c, root, proof); err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}

func cmdExecute(argv []string) error {
	fs := flag.NewFlagSet("execute", flag.ExitOnError)
	cfg := configFlags(fs)
	vaultID := fs.String("vault-id", "", "vault id (32 bytes hex)")
	verifier := fs.String("verifier", "", "caller verifier id (32 bytes hex)")
	release := fs.Bool("release-funds", true, "transfer the custody amount to the beneficiary")
	_ = fs.Parse(argv)

	id, err := decode32(*vaultID, "vault-id")
	if err != nil {
		return err
	}
	c, err := decode32(*verifier, "verifier")
	if err != nil {
		return err
	}
	r, err := openRuntime(*cfg, nil)
	if err != nil {
		return err
	}
	defer r.close()

	released, err := r.service.Execute(id, c, *release)
	if err != nil {
		return err
	}
	return printJSON(releasedView(released))
}

func cmdVerifyIdentity(argv []string) error {
	fs := flag.NewFlagSet("verify-identity", flag.ExitOnError)
	cfg := configFlags(fs)
	vaultID := fs.String("vault-id", "", "vault id (32 bytes hex)")
	claimed := fs.String("claimed-hash", "", "claimed beneficiary identity hash (32 bytes hex)")
	_ = fs.Parse(argv)

	id, err := decode32(*vaultID, "vault-id")
	if err != nil {
		return err
	}
	hash, err := decode32(*claimed, "claimed-hash")
	if err != nil {
		return err
	}
	r, err := openRuntime(*cfg, nil)
	if err != nil {
		return err
	}
	defer r.close()

	res, err := r.service.VerifyBeneficiaryIdentity(id, hash)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"vault_id":  hex.EncodeToString(res.VaultID[:]),
		"verified":  res.Verified,
		"state":     res.State.String(),
		"claimable": res.Claimable,
		"executed":  res.Executed,
	})
}

func cmdCancel(argv []string) error {
	fs := flag.NewFlagSet("cancel", flag.ExitOnError)
	cfg := configFlags(fs)
	vaultID := fs.String("vault-id", "", "vault id (32 bytes hex)")
	caller := fs.String("caller", "", "caller testator id (32 bytes hex)")
	_ = fs.Parse(argv)

	id, err := decode32(*vaultID, "vault-id")
	if err != nil {
		return err
	}
	c, err := decode32(*caller, "caller")
	if err != nil {
		return err
	}
	r, err := openRuntime(*cfg, nil)
	if err != nil {
		return err
	}
	defer r.close()

	if err := r.service.Cancel(id, c); err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}

func cmdShow(argv []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	cfg := configFlags(fs)
	vaultID := fs.String("vault-id", "", "vault id (32 bytes hex)")
	_ = fs.Parse(argv)

	id, err := decode32(*vaultID, "vault-id")
	if err != nil {
		return err
	}
	r, err := openRuntime(*cfg, nil)
	if err != nil {
		return err
	}
	defer r.close()

	v, err := r.service.Vault(id)
	if err != nil {
		return err
	}
	state, err := r.service.State(id)
	if err != nil {
		return err
	}
	view := map[string]any{
		"vault_id":                hex.EncodeToString(v.ID[:]),
		"testator":                hex.EncodeToString(v.Testator[:]),
		"beneficiary":             hex.EncodeToString(v.Beneficiary[:]),
		"verifier":                hex.EncodeToString(v.Verifier[:]),
		"state":                   state.String(),
		"last_ping":               v.LastPing,
		"created_at":              v.CreatedAt,
		"warning_timeout_secs":    v.WarningTimeoutSecs,
		"timeout_secs":            v.TimeoutSecs,
		"custody_amount":          v.CustodyAmount,
		"executed":                v.Executed,
		"debug_mode":              v.DebugMode,
		"has_compressed_liveness": v.HasCompressedLiveness,
		"secret_wrapped":          v.EncryptedKey != nil,
	}
	if v.AttestationRoot != nil {
		view["attestation_root"] = hex.EncodeToString(v.AttestationRoot[:])
	}
	return printJSON(view)
}

func cmdEvents(argv []string) error {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	cfg := configFlags(fs)
	_ = fs.Parse(argv)

	r, err := openRuntime(*cfg, nil)
	if err != nil {
		return err
	}
	defer r.close()

	events, err := r.service.Events()
	if err != nil {
		return err
	}
	for _, ev := range events {
		switch ev.Kind {
		case node.EventKindInheritanceExecuted:
			e, err := node.DecodeInheritanceExecuted(ev.Payload)
			if err != nil {
				return err
			}
			fmt.Printf("%d inheritance_executed vault=%x beneficiary=%x\n", ev.Seq, e.VaultID, e.Beneficiary)
		case node.EventKindBeneficiaryVerified:
			e, err := node.DecodeBeneficiaryVerified(ev.Payload)
			if err != nil {
				return err
			}
			fmt.Printf("%d beneficiary_verified vault=%x claimable=%v executed=%v\n", ev.Seq, e.VaultID, e.Claimable, e.Executed)
		default:
			fmt.Printf("%d unknown kind=0x%02x\n", ev.Seq, ev.Kind)
		}
	}
	return nil
}

// cmdUnwrap is the beneficiary's off-system recovery path. It needs no
// store: only the released blob, the public root, and the identities.
func cmdUnwrap(argv []string) error {
	fs := flag.NewFlagSet("unwrap", flag.ExitOnError)
	rootHex := fs.String("root", "", "attestation root (32 bytes hex)")
	vaultID := fs.String("vault-id", "", "vault id (32 bytes hex)")
	beneficiary := fs.String("beneficiary", "", "beneficiary id (32 bytes hex)")
	encryptedKey := fs.String("encrypted-key", "", "wrapped master secret (hex)")
	hashAlg := fs.String("hash-alg", "sha3", "hash backend: sha3|blake3")
	sealMode := fs.String("seal-mode", "xor", "secret sealer: xor|aeskw|aead")
	_ = fs.Parse(argv)

	root, err := decode32(*rootHex, "root")
	if err != nil {
		return err
	}
	id, err := decode32(*vaultID, "vault-id")
	if err != nil {
		return err
	}
	b, err := decode32(*beneficiary, "beneficiary")
	if err != nil {
		return err
	}
	blob, err := decodeHexStrict(*encryptedKey)
	if err != nil {
		return fmt.Errorf("encrypted-key: %w", err)
	}
	h, err := crypto.ProviderByName(*hashAlg)
	if err != nil {
		return err
	}
	sealer, err := crypto.SealerByName(*sealMode)
	if err != nil {
		return err
	}

	secret, err := core.RecoverMasterSecret(h, sealer, root, id, b, blob)
	if err != nil {
		return err
	}
	fmt.Println(hex.EncodeToString(secret))
	return nil
}

func releasedView(rs *core.ReleasedSecret) map[string]any {
	view := map[string]any{
		"vault_id":           hex.EncodeToString(rs.VaultID[:]),
		"testator":           hex.EncodeToString(rs.Testator[:]),
		"beneficiary":        hex.EncodeToString(rs.Beneficiary[:]),
		"encrypted_password": hex.EncodeToString(rs.EncryptedPassword),
		"encrypted_key":      hex.EncodeToString(rs.EncryptedKey),
		"content_ref":        hex.EncodeToString(rs.ContentRef[:]),
	}
	if rs.AttestationRoot != nil {
		view["attestation_root"] = hex.EncodeToString(rs.AttestationRoot[:])
	}
	return view
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func decodeHexStrict(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return nil, fmt.Errorf("empty hex input")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func decode32(s, name string) ([32]byte, error) {
	var out [32]byte
	b, err := decodeHexStrict(s)
	if err != nil {
		return out, fmt.Errorf("%s: %w", name, err)
	}
	if len(b) != 32 {
		return out, fmt.Errorf("%s must be 32 bytes (got %d)", name, len(b))
	}
	copy(out[:], b)
	return out, nil
}

func decodeProof(s string) ([][32]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([][32]byte, 0, len(parts))
	for i, p := range parts {
		sib, err := decode32(p, fmt.Sprintf("proof[%d]", i))
		if err != nil {
			return nil, err
		}
		out = append(out, sib)
	}
	return out, nil
}
