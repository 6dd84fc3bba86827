package main

import (
	"os"
	"path/filepath"
	"testing"

	"archdoc/internal/paths"
	"archdoc/internal/storage"
	"archdoc/internal/testutil"
)

// executeGenerate runs the generate command the way main does, with flags
// reset so earlier invocations do not leak into this one.
func executeGenerate(t *testing.T, args ...string) error {
	t.Helper()
	reset := func() {
		generateForce = false
		generateOut = ""
		generateDoc = ""
		generateFormat = "human"
		generateNoRender = false
		verbosity = 0
		quiet = false
	}
	reset()
	t.Cleanup(reset)

	rootCmd.SetArgs(append([]string{"generate", "-q"}, args...))
	defer rootCmd.SetArgs(nil)
	return rootCmd.Execute()
}

func shopCopy(t *testing.T) *testutil.Fixture {
	t.Helper()
	fx := testutil.CopyFixture(t, "shop")
	testutil.WriteFiles(t, fx.Root, map[string]string{
		".archdoc/config.json": `{"render": {"cacheDir": "` + filepath.ToSlash(t.TempDir()) + `"}}`,
	})
	return fx
}

func lastRun(t *testing.T, root string) storage.RunRecord {
	t.Helper()
	db, err := storage.Open(paths.GetLedgerPath(root), nil)
	if err != nil {
		t.Fatalf("opening ledger: %v", err)
	}
	defer db.Close()

	runs, err := storage.NewRunStore(db).List(1)
	if err != nil {
		t.Fatalf("listing runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("ledger has %d runs, want 1", len(runs))
	}
	return runs[0]
}

func TestGenerate_UnwritableOutputFails(t *testing.T) {
	fx := shopCopy(t)
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := executeGenerate(t, "--no-render", "--out", filepath.Join(blocker, "diagrams"), fx.Path("Shop.sln"))
	if err == nil {
		t.Fatal("generate succeeded with an output directory under a regular file, want error")
	}

	if run := lastRun(t, fx.Root); run.Outcome != storage.OutcomeFailed || run.Error == "" {
		t.Errorf("last run = %s (%q), want failed with an error", run.Outcome, run.Error)
	}
}

func TestGenerate_SourceOnlySucceeds(t *testing.T) {
	fx := shopCopy(t)
	out := filepath.Join(t.TempDir(), "diagrams")

	if err := executeGenerate(t, "--no-render", "--out", out, fx.Path("Shop.sln")); err != nil {
		t.Fatalf("generate: %v", err)
	}

	sources, _ := filepath.Glob(filepath.Join(out, "*.puml"))
	if len(sources) != 2 {
		t.Errorf("diagram sources = %v, want context and container", sources)
	}
	images, _ := filepath.Glob(filepath.Join(out, "*.png"))
	if len(images) != 0 {
		t.Errorf("images = %v, want none", images)
	}

	if run := lastRun(t, fx.Root); run.Outcome != storage.OutcomeSourceOnly {
		t.Errorf("last run outcome = %s, want %s", run.Outcome, storage.OutcomeSourceOnly)
	}
}
