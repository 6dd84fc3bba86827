package render

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archdoc/internal/config"
	"archdoc/internal/errors"
)

// fakeJava writes a stand-in for java that reports version and, when
// invoked with -jar, writes "<source>.<format>" unless failRender is set.
func fakeJava(t *testing.T, version string, failRender bool) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-script java stand-in requires a Unix shell")
	}

	render := `fmt=svg
for a in "$@"; do
  case "$a" in -t*) fmt="${a#-t}" ;; esac
  last="$a"
done
echo "$@" > "$(dirname "$last")/java-args.txt"
printf '<svg/>' > "${last%.puml}.$fmt"`
	if failRender {
		render = `echo "Syntax error" >&2
exit 3`
	}

	script := `#!/bin/sh
if [ "$1" = "-version" ]; then
  echo '` + version + `' >&2
  exit 0
fi
` + render + "\n"

	path := filepath.Join(t.TempDir(), "java")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func plantumlConfig(t *testing.T, java string) config.RenderConfig {
	t.Helper()
	cfg := config.DefaultConfig().Render
	cfg.JavaBinary = java
	cfg.PlantUMLJar = filepath.Join(t.TempDir(), JarName)
	cfg.DownloadURL = ""
	require.NoError(t, os.WriteFile(cfg.PlantUMLJar, []byte("jar"), 0o644))
	return cfg
}

func writeSource(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "containers.puml")
	require.NoError(t, os.WriteFile(src, []byte("@startuml\n@enduml\n"), 0o644))
	return src
}

func TestParseJavaVersion(t *testing.T) {
	tests := []struct {
		output string
		want   string
	}{
		{`openjdk version "17.0.2" 2022-01-18`, "17.0.2"},
		{`java version "1.8.0_292"`, "8.0.292"},
		{`openjdk version "21" 2023-09-19`, "21.0.0"},
		{`openjdk version "11.0.20.1" 2023-08-24`, "11.0.20"},
		{`openjdk version "22-ea" 2024-03-19`, "22.0.0"},
		{"Picked up JAVA_TOOL_OPTIONS: -Xmx1g\nopenjdk version \"17.0.9\"", "17.0.9"},
	}
	for _, tt := range tests {
		v, err := ParseJavaVersion(tt.output)
		require.NoError(t, err, tt.output)
		assert.Equal(t, tt.want, v.String(), tt.output)
	}

	_, err := ParseJavaVersion("command not found")
	assert.Error(t, err)
}

func TestNewPlantUML_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig().Render
	cfg.JavaArgs = `-Dfoo="unterminated`
	_, err := NewPlantUML(cfg, nil)
	assert.True(t, errors.Is(err, errors.ConfigInvalid))

	cfg = config.DefaultConfig().Render
	cfg.MinJavaVersion = "eleven"
	_, err = NewPlantUML(cfg, nil)
	assert.True(t, errors.Is(err, errors.ConfigInvalid))
}

func TestPlantUML_ReadyAndRender(t *testing.T) {
	java := fakeJava(t, `openjdk version "17.0.2" 2022-01-18`, false)
	cfg := plantumlConfig(t, java)
	cfg.JavaArgs = `-Xmx512m "-Dplantuml.include.path=some dir"`

	p, err := NewPlantUML(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, p.Ready(context.Background()))

	src := writeSource(t)
	out, err := p.Render(context.Background(), src, "svg")
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSuffix(src, ".puml")+".svg", out)
	assert.FileExists(t, out)

	args, err := os.ReadFile(filepath.Join(filepath.Dir(src), "java-args.txt"))
	require.NoError(t, err)
	assert.Equal(t,
		"-Xmx512m -Dplantuml.include.path=some dir -jar "+cfg.PlantUMLJar+" -tsvg -charset UTF-8 "+src,
		strings.TrimSpace(string(args)))
}

func TestPlantUML_RenderFailure(t *testing.T) {
	java := fakeJava(t, `openjdk version "17.0.2"`, true)
	p, err := NewPlantUML(plantumlConfig(t, java), nil)
	require.NoError(t, err)

	_, err = p.Render(context.Background(), writeSource(t), "svg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited with code 3")
	assert.Contains(t, err.Error(), "Syntax error")
}

func TestPlantUML_JavaTooOld(t *testing.T) {
	java := fakeJava(t, `java version "1.7.0_80"`, false)
	cfg := plantumlConfig(t, java)
	cfg.MinJavaVersion = "8"

	p, err := NewPlantUML(cfg, nil)
	require.NoError(t, err)

	err = p.Ready(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ToolchainUnavailable))
	assert.Contains(t, err.Error(), "older than required")
}

func TestPlantUML_MissingJava(t *testing.T) {
	cfg := plantumlConfig(t, "archdoc-no-such-java")
	p, err := NewPlantUML(cfg, nil)
	require.NoError(t, err)

	err = p.Ready(context.Background())
	assert.True(t, errors.Is(err, errors.ToolchainUnavailable))
}

func TestPlantUML_Acquire(t *testing.T) {
	dir := t.TempDir()
	published := filepath.Join(dir, "published", "plantuml.jar")
	require.NoError(t, os.MkdirAll(filepath.Dir(published), 0o755))
	require.NoError(t, os.WriteFile(published, []byte("fake jar"), 0o644))

	cfg := config.DefaultConfig().Render
	cfg.PlantUMLJar = filepath.Join(dir, "tools", JarName)
	cfg.DownloadURL = published

	p, err := NewPlantUML(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, p.Acquire(context.Background()))

	data, err := os.ReadFile(cfg.PlantUMLJar)
	require.NoError(t, err)
	assert.Equal(t, "fake jar", string(data))
	assert.NoFileExists(t, cfg.PlantUMLJar+".download")
}

func TestPlantUML_AcquireFailure(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig().Render
	cfg.PlantUMLJar = filepath.Join(dir, "tools", JarName)
	cfg.DownloadURL = filepath.Join(dir, "nowhere", "plantuml.jar")

	p, err := NewPlantUML(cfg, nil)
	require.NoError(t, err)

	err = p.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ToolchainUnavailable))
	assert.NoFileExists(t, cfg.PlantUMLJar)
}

func TestRenderer_WithFakeJava(t *testing.T) {
	java := fakeJava(t, `openjdk version "17.0.2"`, false)
	p, err := NewPlantUML(plantumlConfig(t, java), nil)
	require.NoError(t, err)

	r := NewRenderer(p, NewOnlineService("", 0, nil), "svg", nil)
	out := r.Render(context.Background(), writeSource(t))

	assert.Equal(t, StateRendered, out.State)
	assert.FileExists(t, out.OutputPath)
}

func TestDiagnose(t *testing.T) {
	java := fakeJava(t, `openjdk version "17.0.2"`, false)
	cfg := plantumlConfig(t, java)
	p, err := NewPlantUML(cfg, nil)
	require.NoError(t, err)

	report := Diagnose(context.Background(), p, nil, DoctorOptions{})
	assert.True(t, report.Healthy)
	assert.Equal(t, TierLocal, report.Tier)
	require.Len(t, report.Checks, 2)
	assert.Equal(t, StatusPass, report.Checks[0].Status)
	assert.Equal(t, StatusPass, report.Checks[1].Status)

	require.NoError(t, os.Remove(cfg.PlantUMLJar))
	report = Diagnose(context.Background(), p, nil, DoctorOptions{})
	assert.Equal(t, StatusWarn, report.Checks[1].Status)

	missing, err := NewPlantUML(plantumlConfig(t, "archdoc-no-such-java"), nil)
	require.NoError(t, err)
	report = Diagnose(context.Background(), missing, nil, DoctorOptions{})
	assert.False(t, report.Healthy)
	assert.Equal(t, TierSourceOnly, report.Tier)
	assert.NotEmpty(t, report.Checks[0].SuggestedFixes)
}
