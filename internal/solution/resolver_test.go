package solution

import (
	"context"
	"path/filepath"
	"testing"

	"archdoc/internal/config"
	"archdoc/internal/errors"
	"archdoc/internal/testutil"
)

func newTestResolver(globs ...string) *Resolver {
	cfg := config.DefaultConfig().Discovery
	cfg.IgnoreGlobs = globs
	return NewResolver(cfg, nil)
}

func relPaths(t *testing.T, root string, abs []string) []string {
	t.Helper()
	out := make([]string, 0, len(abs))
	for _, p := range abs {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			t.Fatalf("Rel(%s, %s): %v", root, p, err)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func assertPaths(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("manifests = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("manifests[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestResolve_Solution(t *testing.T) {
	fx := testutil.LoadFixture(t, "shop")

	res := newTestResolver().Resolve(context.Background(), fx.Path("Shop.sln"))

	if res.Kind != KindSolution {
		t.Errorf("Kind = %s, want solution", res.Kind)
	}
	if res.Name != "Shop" {
		t.Errorf("Name = %s, want Shop", res.Name)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", res.Warnings)
	}
	assertPaths(t, relPaths(t, fx.Root, res.Manifests), []string{
		"src/Web/Web.csproj",
		"src/Worker/Worker.csproj",
		"src/Data/Data.csproj",
		"src/Shared/Shared.csproj",
		"src/Legacy.Admin/Legacy.Admin.csproj",
		"tests/Worker.Tests/Worker.Tests.csproj",
	})
}

func TestResolve_SolutionMissingAndDuplicate(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"App.sln": `Microsoft Visual Studio Solution File, Format Version 12.00
Project("{2150E333-8FDC-42A3-9474-1A3956D46DE8}") = "Solution Items", "Solution Items", "{11111111-1111-1111-1111-111111111111}"
EndProject
Project("{9A19103F-16F7-4668-BE54-9A1E7A4F7556}") = "Api", "Api\Api.csproj", "{22222222-2222-2222-2222-222222222222}"
EndProject
Project("{9A19103F-16F7-4668-BE54-9A1E7A4F7556}") = "Api", "Api\Api.csproj", "{22222222-2222-2222-2222-222222222222}"
EndProject
Project("{9A19103F-16F7-4668-BE54-9A1E7A4F7556}") = "Gone", "Gone\Gone.csproj", "{33333333-3333-3333-3333-333333333333}"
EndProject
Project("{F2A71F9B-5D33-465A-A702-920D77279786}") = "Fn", "Fn\Fn.fsproj", "{44444444-4444-4444-4444-444444444444}"
EndProject
`,
		"Api/Api.csproj": `<Project Sdk="Microsoft.NET.Sdk.Web" />`,
		"Fn/Fn.fsproj":   `<Project Sdk="Microsoft.NET.Sdk" />`,
	})

	res := newTestResolver().Resolve(context.Background(), filepath.Join(dir, "App.sln"))

	assertPaths(t, relPaths(t, dir, res.Manifests), []string{"Api/Api.csproj", "Fn/Fn.fsproj"})
	if len(res.Warnings) != 1 {
		t.Fatalf("Warnings = %v, want one for the missing manifest", res.Warnings)
	}
	if res.Warnings[0].Code != errors.ManifestUnreadable {
		t.Errorf("warning code = %s, want %s", res.Warnings[0].Code, errors.ManifestUnreadable)
	}
}

func TestResolve_Slnx(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"App.slnx": `<Solution>
  <Folder Name="/src/">
    <Project Path="src/Api/Api.csproj" />
    <Folder Name="/src/inner/">
      <Project Path="src/Jobs/Jobs.csproj" />
    </Folder>
  </Folder>
  <Project Path="Tools/Tools.csproj" />
</Solution>`,
		"src/Api/Api.csproj":   `<Project Sdk="Microsoft.NET.Sdk.Web" />`,
		"src/Jobs/Jobs.csproj": `<Project Sdk="Microsoft.NET.Sdk.Worker" />`,
		"Tools/Tools.csproj":   `<Project Sdk="Microsoft.NET.Sdk" />`,
	})

	res := newTestResolver().Resolve(context.Background(), filepath.Join(dir, "App.slnx"))

	assertPaths(t, relPaths(t, dir, res.Manifests), []string{
		"Tools/Tools.csproj",
		"src/Api/Api.csproj",
		"src/Jobs/Jobs.csproj",
	})
}

func TestResolve_Directory(t *testing.T) {
	fx := testutil.LoadFixture(t, "shop")

	res := newTestResolver().Resolve(context.Background(), fx.Root)

	if res.Kind != KindDirectory {
		t.Errorf("Kind = %s, want directory", res.Kind)
	}
	if res.Name != "shop" {
		t.Errorf("Name = %s, want shop", res.Name)
	}
	assertPaths(t, relPaths(t, fx.Root, res.Manifests), []string{
		"src/Data/Data.csproj",
		"src/Legacy.Admin/Legacy.Admin.csproj",
		"src/Shared/Shared.csproj",
		"src/Web/Web.csproj",
		"src/Worker/Worker.csproj",
		"tests/Worker.Tests/Worker.Tests.csproj",
	})
}

func TestResolve_DirectoryIgnores(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"App/App.csproj":                  `<Project Sdk="Microsoft.NET.Sdk" />`,
		"App/bin/Debug/Copy.csproj":       `<Project Sdk="Microsoft.NET.Sdk" />`,
		"node_modules/pkg/Pkg.csproj":     `<Project Sdk="Microsoft.NET.Sdk" />`,
		"samples/Demo/Demo.csproj":        `<Project Sdk="Microsoft.NET.Sdk" />`,
		"src/Legacy/Legacy.Backup.csproj": `<Project Sdk="Microsoft.NET.Sdk" />`,
		"src/Legacy/Legacy.csproj":        `<Project Sdk="Microsoft.NET.Sdk" />`,
	})

	res := newTestResolver("samples/**", "**/*.Backup.csproj").Resolve(context.Background(), dir)

	assertPaths(t, relPaths(t, dir, res.Manifests), []string{
		"App/App.csproj",
		"src/Legacy/Legacy.csproj",
	})
}

func TestResolve_Failures(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"README.md": "# hi"})

	tests := []struct {
		name   string
		target string
	}{
		{"missing target", filepath.Join(dir, "Nope.sln")},
		{"unsupported file", filepath.Join(dir, "README.md")},
		{"empty directory", dir},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newTestResolver().Resolve(context.Background(), tt.target)
			if len(res.Manifests) != 0 {
				t.Errorf("Manifests = %v, want none", res.Manifests)
			}
			if len(res.Warnings) == 0 {
				t.Fatal("expected a warning")
			}
			if res.Warnings[0].Code != errors.ResolutionFailed {
				t.Errorf("warning code = %s, want %s", res.Warnings[0].Code, errors.ResolutionFailed)
			}
		})
	}
}

func TestParseSln(t *testing.T) {
	data := []byte("\ufeffProject(\"{9A19103F-16F7-4668-BE54-9A1E7A4F7556}\") = \"A\", \"A\\A.csproj\", \"{1}\"\r\nEndProject\r\n")
	got := parseSln(data)
	if len(got) != 1 || got[0] != `A\A.csproj` {
		t.Errorf("parseSln() = %v, want [A\\A.csproj]", got)
	}
}
