package doctor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/ethereum/go-ethereum/common"

	"github.com/majorcontext/opensig/internal/config"
	"github.com/majorcontext/opensig/internal/journal"
	"github.com/majorcontext/opensig/internal/network"
	"github.com/majorcontext/opensig/internal/ui"
)

func init() {
	ui.SetColorEnabled(false)
}

type mockSection struct {
	name   string
	output string
	err    error
}

func (m *mockSection) Name() string { return m.name }

func (m *mockSection) Print(_ context.Context, w io.Writer) error {
	io.WriteString(w, m.output)
	return m.err
}

func TestRegistry_Run(t *testing.T) {
	reg := NewRegistry()
	if len(reg.Sections()) != 0 {
		t.Fatalf("new registry should be empty")
	}
	reg.Register(&mockSection{name: "First", output: "one\n"})
	reg.Register(&mockSection{name: "Second", output: "two\n", err: errors.New("broken")})

	var buf bytes.Buffer
	failed := reg.Run(context.Background(), &buf)
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	want := "First\none\n\nSecond\ntwo\n✗ broken\n\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestNetworkSection(t *testing.T) {
	nets := network.Default().All()[:3]
	check := func(_ context.Context, cfg network.Config) (uint64, error) {
		if cfg.ChainID == 137 {
			return 0, errors.New("connection refused")
		}
		return 100 + uint64(cfg.ChainID), nil
	}

	var buf bytes.Buffer
	err := (&NetworkSection{Networks: nets, Check: check}).Print(context.Background(), &buf)
	if err == nil || !strings.Contains(err.Error(), "1 of 3 networks unreachable") {
		t.Errorf("err = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "block 101") {
		t.Errorf("missing Ethereum block: %q", out)
	}
	if !strings.Contains(out, "connection refused") {
		t.Errorf("missing Polygon failure: %q", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "1 ") {
		t.Errorf("rows should follow registry order: %q", lines)
	}
}

func TestRPCCheck_NoEndpoint(t *testing.T) {
	_, err := RPCCheck(context.Background(), network.Config{ChainID: 1, Provider: network.KindAnkr, Endpoint: "https://x"})
	if !errors.Is(err, ErrNoEndpoint) {
		t.Errorf("err = %v, want ErrNoEndpoint", err)
	}
}

func TestJournalSection(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	var buf bytes.Buffer
	if err := (&JournalSection{Path: path}).Print(ctx, &buf); err != nil {
		t.Fatalf("missing journal: %v", err)
	}
	if !strings.Contains(buf.String(), "not created yet") {
		t.Errorf("output = %q", buf.String())
	}

	store, err := journal.Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Append(ctx, journal.KindVerify, journal.VerifyData{Document: "a"}); err != nil {
		t.Fatal(err)
	}
	store.Close()

	buf.Reset()
	if err := (&JournalSection{Path: path}).Print(ctx, &buf); err != nil {
		t.Fatalf("Print: %v", err)
	}
	if !strings.Contains(buf.String(), "hash chain intact") {
		t.Errorf("output = %q", buf.String())
	}

	buf.Reset()
	if err := (&JournalSection{Disabled: true}).Print(ctx, &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "disabled") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestSignerSection(t *testing.T) {
	addr := common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
	ok := &SignerSection{Resolve: func(context.Context) (common.Address, string, error) {
		return addr, "system keychain", nil
	}}
	var buf bytes.Buffer
	if err := ok.Print(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), addr.Hex()) {
		t.Errorf("output = %q", buf.String())
	}

	missing := &SignerSection{Resolve: func(context.Context) (common.Address, string, error) {
		return common.Address{}, "", errors.New("signer key not found")
	}}
	buf.Reset()
	if err := missing.Print(context.Background(), &buf); err == nil {
		t.Error("expected error")
	}
}

func TestConfigSection(t *testing.T) {
	t.Setenv("OPENSIG_HOME", t.TempDir())
	cfg := config.Default()
	var buf bytes.Buffer
	if err := (&ConfigSection{Path: config.Path(), Config: cfg}).Print(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "defaults (no file)") || !strings.Contains(buf.String(), "137") {
		t.Errorf("output = %q", buf.String())
	}
}

type stubIdentity struct {
	arn   string
	err   error
	calls int
}

func (s *stubIdentity) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &sts.GetCallerIdentityOutput{Arn: aws.String(s.arn)}, nil
}

func TestAWSSection(t *testing.T) {
	client := &stubIdentity{arn: "arn:aws:iam::123456789012:user/signer"}
	s := &AWSSection{
		References: []string{"env://ANKR_KEY", "awssm://eu-west-1/opensig/ankr", ""},
		Client:     client,
	}

	var buf bytes.Buffer
	if err := s.Print(context.Background(), &buf); err != nil {
		t.Fatalf("Print: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "awssm://eu-west-1/opensig/ankr") {
		t.Errorf("output missing reference: %q", out)
	}
	if strings.Contains(out, "env://ANKR_KEY") {
		t.Errorf("non-AWS reference listed: %q", out)
	}
	if !strings.Contains(out, "arn:aws:iam::123456789012:user/signer") {
		t.Errorf("output missing principal: %q", out)
	}
}

func TestAWSSection_NoReferences(t *testing.T) {
	client := &stubIdentity{}
	s := &AWSSection{References: []string{"env://X"}, Client: client}

	var buf bytes.Buffer
	if err := s.Print(context.Background(), &buf); err != nil {
		t.Fatalf("Print: %v", err)
	}
	if client.calls != 0 {
		t.Errorf("STS called %d times without awssm references", client.calls)
	}
	if !strings.Contains(buf.String(), "no awssm:// references") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestAWSSection_IdentityError(t *testing.T) {
	s := &AWSSection{
		References: []string{"awssm:///opensig/key"},
		Client:     &stubIdentity{err: errors.New("ExpiredToken")},
	}

	var buf bytes.Buffer
	err := s.Print(context.Background(), &buf)
	if err == nil || !strings.Contains(err.Error(), "ExpiredToken") {
		t.Fatalf("err = %v, want ExpiredToken", err)
	}
	if !strings.Contains(buf.String(), "unknown") {
		t.Errorf("output = %q", buf.String())
	}
}
