package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/munihash/internal/config"
	"github.com/JonMunkholm/munihash/internal/emit"
	"github.com/JonMunkholm/munihash/internal/history"
)

const testCatalog = "CÓDIGO DO MUNICÍPIO - TOM;CÓDIGO DO MUNICÍPIO - IBGE;MUNICÍPIO - TOM;MUNICÍPIO - IBGE;UF\n" +
	"7107;3550308;SAO PAULO;São Paulo;SP\n" +
	"6001;3304557;RIO DE JANEIRO;Rio de Janeiro;RJ\n" +
	"9701;5300108;BRASILIA;Brasília;DF\n" +
	"6291;3509502;CAMPINAS;Campinas;SP\n" +
	"8001;9999999;ARGENTINA;Argentina;EX\n" +
	"1234;;SEM CODIGO;;SP\n"

// testConfig returns a config reading catalog text from a temp file and
// writing artifacts to a temp dir.
func testConfig(t *testing.T, catalogText string) *config.Config {
	t.Helper()
	dir := t.TempDir()

	path := filepath.Join(dir, "catalog.csv")
	if err := os.WriteFile(path, []byte(catalogText), 0o644); err != nil {
		t.Fatal(err)
	}

	return &config.Config{
		Hash: config.HashConfig{
			Iterations:       100,
			KeyLength:        32,
			Workers:          4,
			ProgressInterval: 50,
		},
		Output: config.OutputConfig{
			Dir:        filepath.Join(dir, "output"),
			Delimiter:  ";",
			JSONIndent: "2",
		},
		Catalog: config.CatalogConfig{
			Path:           path,
			Encoding:       "utf-8",
			Delimiter:      ";",
			ExcludedRegion: "EX",
			FetchTimeout:   time.Second,
			MaxBytes:       1 << 20,
		},
	}
}

func newTestService(t *testing.T, cfg *config.Config) (*Service, *history.MemoryStore) {
	t.Helper()
	store := history.NewMemoryStore(10)
	svc, err := NewService(cfg, store)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	return svc, store
}

func TestService_Run(t *testing.T) {
	cfg := testConfig(t, testCatalog)
	svc, store := newTestService(t, cfg)

	report, err := svc.Run(ContextWithTrigger(context.Background(), TriggerHTTP))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.Status != history.StatusOK {
		t.Errorf("Status = %s, want ok", report.Status)
	}
	if report.Trigger != TriggerHTTP {
		t.Errorf("Trigger = %s, want %s", report.Trigger, TriggerHTTP)
	}
	if report.Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", report.Rejected)
	}

	var regions []string
	for _, rr := range report.Regions {
		regions = append(regions, rr.Region)
		if rr.Status != history.StatusOK || rr.Artifacts == nil {
			t.Errorf("region %s = %+v, want ok with artifacts", rr.Region, rr)
		}
	}
	if strings.Join(regions, ",") != "DF,RJ,SP" {
		t.Errorf("regions = %v, want DF,RJ,SP", regions)
	}

	// SP is sorted by preferred name: Campinas before São Paulo.
	results, err := svc.RegionResults("sp")
	if err != nil {
		t.Fatalf("RegionResults() error = %v", err)
	}
	if len(results) != 2 || results[0].IBGE != "3509502" || results[1].IBGE != "3550308" {
		t.Errorf("SP results = %+v, want Campinas then São Paulo", results)
	}

	table, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "municipios_SP.csv"))
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(table), "\n"), "\n")
	if len(lines) != 3 || lines[0] != "codigo_tom;codigo_ibge;nome_tom;nome_ibge;uf;hash" {
		t.Errorf("table lines = %q", lines)
	}

	listed, err := svc.Regions()
	if err != nil {
		t.Fatalf("Regions() error = %v", err)
	}
	if strings.Join(listed, ",") != "DF,RJ,SP" {
		t.Errorf("Regions() = %v, want DF,RJ,SP", listed)
	}

	run, err := store.Get(context.Background(), report.RunID)
	if err != nil {
		t.Fatalf("history Get() error = %v", err)
	}
	if run.Status != history.StatusOK || len(run.Regions) != 3 || run.FinishedAt == nil {
		t.Errorf("history run = %+v", run)
	}
	if svc.Current() != nil {
		t.Errorf("Current() = %+v after run, want nil", svc.Current())
	}
}

func TestService_Run_VerifiesArtifacts(t *testing.T) {
	cfg := testConfig(t, testCatalog)
	svc, _ := newTestService(t, cfg)

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	v, err := NewVerifier(svc.Params())
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	mismatches, n, err := v.VerifyFile(filepath.Join(cfg.Output.Dir, "municipios_RJ.json"))
	if err != nil {
		t.Fatalf("VerifyFile() error = %v", err)
	}
	if n != 1 || len(mismatches) != 0 {
		t.Errorf("VerifyFile() = %d entries, %v mismatches; want 1 entry, none", n, mismatches)
	}
}

// blockRegion makes publishing the region's table fail by occupying its
// path with a directory.
func blockRegion(t *testing.T, cfg *config.Config, region string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(cfg.Output.Dir, "municipios_"+region+".csv"), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestService_Run_FailFast(t *testing.T) {
	cfg := testConfig(t, testCatalog)
	blockRegion(t, cfg, "RJ")
	svc, store := newTestService(t, cfg)

	report, err := svc.Run(context.Background())
	if err == nil {
		t.Fatal("Run() expected error")
	}

	var re *RegionError
	if !errors.As(err, &re) || re.Region != "RJ" {
		t.Fatalf("error = %v, want RegionError for RJ", err)
	}
	if !errors.Is(err, emit.ErrWrite) {
		t.Errorf("error = %v, want ErrWrite in chain", err)
	}
	if got := MapError(err).Code; got != "IO001" {
		t.Errorf("MapError code = %s, want IO001", got)
	}

	if len(report.Regions) != 2 {
		t.Fatalf("report regions = %+v, want DF and RJ only", report.Regions)
	}
	if report.Status != history.StatusFailed {
		t.Errorf("Status = %s, want failed", report.Status)
	}

	// DF was emitted before the failure and stays; SP never ran.
	if _, err := os.Stat(filepath.Join(cfg.Output.Dir, "municipios_DF.json")); err != nil {
		t.Errorf("DF artifacts missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Output.Dir, "municipios_SP.json")); !os.IsNotExist(err) {
		t.Errorf("SP artifacts exist after abort, stat err = %v", err)
	}

	run, err := store.Get(context.Background(), report.RunID)
	if err != nil {
		t.Fatalf("history Get() error = %v", err)
	}
	if run.Status != history.StatusFailed || run.Error == "" {
		t.Errorf("history run = %+v, want failed with error", run)
	}
}

func TestService_Run_ContinueOnError(t *testing.T) {
	cfg := testConfig(t, testCatalog)
	cfg.Run.ContinueOnError = true
	blockRegion(t, cfg, "RJ")
	svc, _ := newTestService(t, cfg)

	report, err := svc.Run(context.Background())
	if err == nil {
		t.Fatal("Run() expected error")
	}
	var re *RegionError
	if !errors.As(err, &re) || re.Region != "RJ" {
		t.Errorf("error = %v, want RegionError for RJ", err)
	}
	if len(report.Regions) != 3 {
		t.Fatalf("report regions = %d, want 3", len(report.Regions))
	}
	if report.Regions[2].Region != "SP" || report.Regions[2].Status != history.StatusOK {
		t.Errorf("SP = %+v, want ok", report.Regions[2])
	}
}

func TestService_Run_EmptyCatalog(t *testing.T) {
	cfg := testConfig(t, "tom;ibge;nome_tom;nome_ibge;uf\n8001;1;X;X;EX\n")
	svc, _ := newTestService(t, cfg)

	_, err := svc.Run(context.Background())
	if !errors.Is(err, ErrEmptyCatalog) {
		t.Errorf("Run() error = %v, want ErrEmptyCatalog", err)
	}
}

func TestService_Run_MissingCatalog(t *testing.T) {
	cfg := testConfig(t, testCatalog)
	cfg.Catalog.Path = filepath.Join(t.TempDir(), "missing.csv")
	svc, _ := newTestService(t, cfg)

	_, err := svc.Run(context.Background())
	if got := MapError(err).Code; got != "CAT001" {
		t.Errorf("MapError(%v) code = %s, want CAT001", err, got)
	}
}

func TestService_RejectsOverlappingRuns(t *testing.T) {
	svc, _ := newTestService(t, testConfig(t, testCatalog))

	if !svc.limiter.TryAcquire() {
		t.Fatal("TryAcquire() on idle limiter failed")
	}
	defer svc.limiter.Release()

	if _, err := svc.Run(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("Run() error = %v, want ErrRunInProgress", err)
	}
	if _, err := svc.Start(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("Start() error = %v, want ErrRunInProgress", err)
	}
}

func TestService_Start(t *testing.T) {
	svc, store := newTestService(t, testConfig(t, testCatalog))

	runID, err := svc.Start(ContextWithTrigger(context.Background(), TriggerHTTP))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := svc.Limiter().WaitForDrain(ctx); err != nil {
		t.Fatalf("WaitForDrain() error = %v", err)
	}

	run, err := svc.GetRun(context.Background(), runID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if run.Trigger != TriggerHTTP || run.Status != history.StatusOK {
		t.Errorf("run = %+v, want http/ok", run)
	}

	recent, err := store.Recent(context.Background(), 5)
	if err != nil || len(recent) != 1 {
		t.Errorf("Recent() = %v, %v; want one run", recent, err)
	}
}

func TestService_RegionArtifacts_Unknown(t *testing.T) {
	svc, _ := newTestService(t, testConfig(t, testCatalog))

	for _, region := range []string{"SP", "S1", ""} {
		if _, err := svc.RegionArtifacts(region); !errors.Is(err, ErrUnknownRegion) {
			t.Errorf("RegionArtifacts(%q) error = %v, want ErrUnknownRegion", region, err)
		}
	}
}

func TestNewService_InvalidParams(t *testing.T) {
	cfg := testConfig(t, testCatalog)
	cfg.Hash.Iterations = 0

	if _, err := NewService(cfg, nil); MapError(err).Code != "KDF001" {
		t.Errorf("NewService() error = %v, want KDF001", err)
	}
}
